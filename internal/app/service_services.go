package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"soulfra/api/internal/store"
	"soulfra/api/internal/util"
)

type CreateProfessionalInput struct {
	Trade string `json:"trade"`
	City  string `json:"city"`
	Bio   string `json:"bio"`
}

type CertificationInput struct {
	Skill     string     `json:"skill"`
	IssuedBy  string     `json:"issuedBy"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

func (s *Service) ListProfessionals(ctx context.Context, trade, city string) ([]map[string]any, error) {
	professionals, err := s.store.ListProfessionals(ctx, strings.ToLower(trade), strings.ToLower(city))
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(professionals))
	for _, pro := range professionals {
		items = append(items, professionalPayload(pro))
	}
	return items, nil
}

func (s *Service) GetProfessional(ctx context.Context, professionalID string) (map[string]any, error) {
	pro, err := s.store.GetProfessional(ctx, professionalID)
	if err != nil {
		return nil, err
	}
	certifications, err := s.store.ListCertifications(ctx, professionalID)
	if err != nil {
		return nil, err
	}
	payload := professionalPayload(pro)
	payload["certifications"] = certificationPayloads(certifications)
	return payload, nil
}

func (s *Service) CreateProfessional(ctx context.Context, session Session, input CreateProfessionalInput) (map[string]any, error) {
	trade := strings.ToLower(strings.TrimSpace(input.Trade))
	city := strings.ToLower(strings.TrimSpace(input.City))
	if trade == "" || city == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "trade and city are required", nil)
	}

	pro := store.Professional{
		ID:     util.NewID("pro"),
		UserID: session.UserID,
		Trade:  trade,
		City:   city,
		Bio:    strings.TrimSpace(input.Bio),
	}
	if err := s.store.InsertProfessional(ctx, pro); err != nil {
		return nil, err
	}
	return s.GetProfessional(ctx, pro.ID)
}

func (s *Service) AddCertification(ctx context.Context, professionalID string, input CertificationInput) (map[string]any, error) {
	skill := strings.TrimSpace(input.Skill)
	if skill == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "skill is required", nil)
	}
	if _, err := s.store.GetProfessional(ctx, professionalID); err != nil {
		return nil, err
	}

	cert := store.SkillCertification{
		ID:             util.NewID("crt"),
		ProfessionalID: professionalID,
		Skill:          skill,
		IssuedBy:       strings.TrimSpace(input.IssuedBy),
		ExpiresAt:      input.ExpiresAt,
	}
	if err := s.store.InsertCertification(ctx, cert); err != nil {
		return nil, err
	}
	return s.GetProfessional(ctx, professionalID)
}

func (s *Service) VerifyProfessional(ctx context.Context, professionalID string, verified bool) (map[string]any, error) {
	if _, err := s.store.GetProfessional(ctx, professionalID); err != nil {
		return nil, err
	}
	if err := s.store.SetProfessionalVerified(ctx, professionalID, verified); err != nil {
		return nil, err
	}
	return s.GetProfessional(ctx, professionalID)
}

func (s *Service) LoyaltySummary(ctx context.Context, userID string, limit int) (map[string]any, error) {
	account, err := s.store.GetLoyaltyAccount(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		account = store.LoyaltyAccount{UserID: userID}
	} else if err != nil {
		return nil, err
	}
	ledger, err := s.store.ListLoyaltyLedger(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]map[string]any, 0, len(ledger))
	for _, entry := range ledger {
		entries = append(entries, map[string]any{
			"id":        entry.ID,
			"delta":     entry.Delta,
			"reason":    entry.Reason,
			"reference": entry.Reference,
			"createdAt": entry.CreatedAt,
		})
	}
	return map[string]any{
		"userId":  userID,
		"balance": account.Balance,
		"ledger":  entries,
	}, nil
}

// AwardLoyalty appends a ledger entry and returns the new balance. Negative
// deltas are allowed for redemptions but may not overdraw the account.
func (s *Service) AwardLoyalty(ctx context.Context, userID string, delta int, reason, reference string) (map[string]any, error) {
	if delta == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "delta cannot be zero", nil)
	}
	if strings.TrimSpace(reason) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "reason is required", nil)
	}
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	balance, err := s.store.AwardLoyalty(ctx, userID, delta, reason, reference)
	if err != nil {
		if strings.Contains(err.Error(), "negative") {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "balance cannot go negative", nil)
		}
		return nil, err
	}
	return map[string]any{
		"userId":  userID,
		"balance": balance,
		"awarded": delta,
	}, nil
}

func professionalPayload(pro store.Professional) map[string]any {
	return map[string]any{
		"id":         pro.ID,
		"userId":     pro.UserID,
		"trade":      pro.Trade,
		"city":       pro.City,
		"bio":        pro.Bio,
		"isVerified": pro.IsVerified,
		"createdAt":  pro.CreatedAt,
	}
}

func certificationPayloads(certs []store.SkillCertification) []map[string]any {
	items := make([]map[string]any, 0, len(certs))
	for _, cert := range certs {
		items = append(items, map[string]any{
			"id":        cert.ID,
			"skill":     cert.Skill,
			"issuedBy":  cert.IssuedBy,
			"issuedAt":  cert.IssuedAt,
			"expiresAt": cert.ExpiresAt,
		})
	}
	return items
}
