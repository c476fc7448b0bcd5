package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"soulfra/api/internal/genimg"
	"soulfra/api/internal/qrchain"
	"soulfra/api/internal/store"
	"soulfra/api/internal/util"
)

type CreateQRInput struct {
	TargetURL string `json:"targetUrl"`
	Size      int    `json:"size"`
}

func (s *Service) CreateQR(ctx context.Context, session Session, input CreateQRInput) (map[string]any, error) {
	targetURL := strings.TrimSpace(input.TargetURL)
	if !strings.HasPrefix(targetURL, "http://") && !strings.HasPrefix(targetURL, "https://") {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "targetUrl must be an absolute http(s) URL", nil)
	}

	slug := util.NewSlug()
	png, err := genimg.QRPNG(targetURL, input.Size)
	if err != nil {
		return nil, err
	}

	imageKey := ""
	if s.objects != nil {
		imageKey = "qr/" + slug + ".png"
		if err := s.objects.Put(ctx, imageKey, png, "image/png"); err != nil {
			return nil, err
		}
	}

	code := store.QRCode{
		ID:        util.NewID("qrc"),
		Slug:      slug,
		TargetURL: targetURL,
		ImageKey:  imageKey,
		CreatedBy: session.UserID,
	}
	if err := s.store.InsertQRCode(ctx, code); err != nil {
		return nil, err
	}
	return s.GetQR(ctx, slug)
}

func (s *Service) GetQR(ctx context.Context, slug string) (map[string]any, error) {
	code, err := s.store.GetQRCodeBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return qrPayload(code), nil
}

func (s *Service) ListQRCodes(ctx context.Context) ([]map[string]any, error) {
	codes, err := s.store.ListQRCodes(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(codes))
	for _, code := range codes {
		items = append(items, qrPayload(code))
	}
	return items, nil
}

// QRImage serves the stored PNG, rendering on the fly when object storage
// is not configured.
func (s *Service) QRImage(ctx context.Context, slug string) ([]byte, error) {
	code, err := s.store.GetQRCodeBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if s.objects != nil && code.ImageKey != "" {
		if data, err := s.objects.Get(ctx, code.ImageKey); err == nil {
			return data, nil
		}
	}
	return genimg.QRPNG(code.TargetURL, 0)
}

// ScanQR appends a verified entry to a QR code's scan chain and returns the
// new chain head.
func (s *Service) ScanQR(ctx context.Context, slug, remoteIP, userAgent string) (map[string]any, error) {
	code, err := s.store.GetQRCodeBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	stored, position, err := s.store.AppendScan(ctx, store.QRScan{
		QRID:      code.ID,
		IPHash:    hashValue(remoteIP),
		UserAgent: userAgent,
		ScannedAt: time.Now().UTC().Truncate(time.Second),
	})
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"scanId":    stored.ID,
		"slug":      code.Slug,
		"targetUrl": code.TargetURL,
		"position":  position,
		"chainHash": stored.ChainHash,
	}, nil
}

// QRScans returns the full chain with a per-entry validity flag computed by
// replaying the hash chain.
func (s *Service) QRScans(ctx context.Context, slug string) (map[string]any, error) {
	code, err := s.store.GetQRCodeBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	scans, err := s.store.ListScans(ctx, code.ID)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(scans))
	prevHash := ""
	chainValid := true
	for i, scan := range scans {
		expected := qrchain.Hash(prevHash, scan.QRID, scan.ScannedAt, scan.IPHash)
		valid := scan.ChainHash == expected
		if i == 0 && scan.PreviousScanID != nil {
			valid = false
		}
		if i > 0 && (scan.PreviousScanID == nil || *scan.PreviousScanID != scans[i-1].ID) {
			valid = false
		}
		chainValid = chainValid && valid
		items = append(items, map[string]any{
			"id":         scan.ID,
			"chainHash":  scan.ChainHash,
			"chainValid": valid,
			"scannedAt":  scan.ScannedAt,
			"userAgent":  scan.UserAgent,
		})
		prevHash = scan.ChainHash
	}

	return map[string]any{
		"slug":       code.Slug,
		"scanCount":  len(scans),
		"chainValid": chainValid,
		"scans":      items,
	}, nil
}

// Avatar returns a deterministic identicon PNG for a user, cached in object
// storage when available.
func (s *Service) Avatar(ctx context.Context, userID string) ([]byte, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	key := "avatars/" + user.ID + ".png"
	if s.objects != nil {
		if data, err := s.objects.Get(ctx, key); err == nil {
			return data, nil
		}
	}

	png, err := genimg.AvatarPNG(user.Username, 240)
	if err != nil {
		return nil, err
	}
	if s.objects != nil {
		_ = s.objects.Put(ctx, key, png, "image/png")
	}
	return png, nil
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

func qrPayload(code store.QRCode) map[string]any {
	return map[string]any{
		"id":        code.ID,
		"slug":      code.Slug,
		"targetUrl": code.TargetURL,
		"scanCount": code.ScanCount,
		"createdBy": code.CreatedBy,
		"createdAt": code.CreatedAt,
	}
}
