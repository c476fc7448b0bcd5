package app

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"soulfra/api/internal/qrchain"
	"soulfra/api/internal/store"
)

// scanLog is a stateful scan chain backing the fake store.
type scanLog struct {
	scans []store.QRScan
}

func qrStoreWithCode(code store.QRCode, log *scanLog) *fakeStore {
	fs := &fakeStore{}
	fs.getQRCodeBySlugFn = func(_ context.Context, slug string) (store.QRCode, error) {
		if slug == code.Slug {
			c := code
			c.ScanCount = len(log.scans)
			return c, nil
		}
		return store.QRCode{}, sql.ErrNoRows
	}
	fs.appendScanFn = func(_ context.Context, scan store.QRScan) (store.QRScan, int, error) {
		prevHash := ""
		if len(log.scans) > 0 {
			last := log.scans[len(log.scans)-1]
			prevHash = last.ChainHash
			id := last.ID
			scan.PreviousScanID = &id
		}
		scan.ChainHash = qrchain.Hash(prevHash, scan.QRID, scan.ScannedAt, scan.IPHash)
		scan.ID = int64(len(log.scans) + 1)
		log.scans = append(log.scans, scan)
		return scan, len(log.scans), nil
	}
	fs.listScansFn = func(_ context.Context, qrID string) ([]store.QRScan, error) {
		return append([]store.QRScan(nil), log.scans...), nil
	}
	return fs
}

func scanOnce(t *testing.T, server *HTTPServer, slug, ip string) map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/qr/"+slug+"/scan", nil)
	req.Header.Set("X-Forwarded-For", ip)
	req.Header.Set("User-Agent", "test-phone/1.0")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("scan failed: %d %s", rr.Code, rr.Body.String())
	}
	return decodePayload(t, rr)
}

func TestScanChainLinksAndVerifies(t *testing.T) {
	code := store.QRCode{ID: "qrc_1", Slug: "abc123", TargetURL: "https://soulfra.com"}
	log := &scanLog{}
	user := userFixture("usr_v", "vera", "viewer")
	fs := qrStoreWithCode(code, log)
	fs.getUserByIDFn = func(_ context.Context, userID string) (store.User, error) {
		return user, nil
	}
	svc := newTestService(fs, &fakeGit{})
	server := NewHTTPServer(svc, "*")

	first := scanOnce(t, server, "abc123", "10.0.0.1")
	second := scanOnce(t, server, "abc123", "10.0.0.2")
	third := scanOnce(t, server, "abc123", "10.0.0.1")

	if first["position"] != float64(1) || second["position"] != float64(2) || third["position"] != float64(3) {
		t.Fatalf("unexpected positions: %v %v %v", first["position"], second["position"], third["position"])
	}
	if first["chainHash"] == second["chainHash"] {
		t.Fatal("consecutive scans must not share a chain hash")
	}

	// Scans are anonymous; reading the chain requires a session.
	req := httptest.NewRequest(http.MethodGet, "/api/qr/abc123/scans", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	assertUnauthorized(t, rr)

	req = authedRequest(t, svc, user, http.MethodGet, "/api/qr/abc123/scans", "")
	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	payload := decodePayload(t, rr)
	if payload["chainValid"] != true {
		t.Fatalf("expected a valid chain: %v", payload)
	}
	if payload["scanCount"] != float64(3) {
		t.Fatalf("expected 3 scans, got %v", payload["scanCount"])
	}
	scans := payload["scans"].([]any)
	for i, raw := range scans {
		entry := raw.(map[string]any)
		if entry["chainValid"] != true {
			t.Fatalf("scan %d flagged invalid: %v", i, entry)
		}
	}
}

func TestScanChainDetectsTampering(t *testing.T) {
	code := store.QRCode{ID: "qrc_1", Slug: "abc123", TargetURL: "https://soulfra.com"}
	log := &scanLog{}
	user := userFixture("usr_v", "vera", "viewer")
	fs := qrStoreWithCode(code, log)
	fs.getUserByIDFn = func(_ context.Context, userID string) (store.User, error) {
		return user, nil
	}
	svc := newTestService(fs, &fakeGit{})
	server := NewHTTPServer(svc, "*")

	scanOnce(t, server, "abc123", "10.0.0.1")
	scanOnce(t, server, "abc123", "10.0.0.2")
	scanOnce(t, server, "abc123", "10.0.0.3")

	// Rewrite the middle entry the way a tampered row would look.
	log.scans[1].IPHash = hashValue("203.0.113.99")

	req := authedRequest(t, svc, user, http.MethodGet, "/api/qr/abc123/scans", "")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	payload := decodePayload(t, rr)
	if payload["chainValid"] != false {
		t.Fatal("expected the chain to be flagged invalid")
	}
	scans := payload["scans"].([]any)
	if scans[0].(map[string]any)["chainValid"] != true {
		t.Fatal("first scan predates the tampering and must verify")
	}
	if scans[1].(map[string]any)["chainValid"] != false {
		t.Fatal("tampered scan must be flagged")
	}
}

func TestCreateQRRequiresAbsoluteURL(t *testing.T) {
	user := userFixture("usr_c", "carl", "creator")
	svc := newTestService(storeWithUser(user), &fakeGit{})
	server := NewHTTPServer(svc, "*")

	req := authedRequest(t, svc, user, http.MethodPost, "/api/qr", `{"targetUrl":"soulfra.com"}`)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rr.Code, rr.Body.String())
	}
	if payload := decodePayload(t, rr); payload["code"] != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %v", payload["code"])
	}
}

func TestQRScanUnknownSlugReturns404(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeGit{})
	server := NewHTTPServer(svc, "*")

	req := httptest.NewRequest(http.MethodPost, "/api/qr/nope/scan", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if payload := decodePayload(t, rr); payload["code"] != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %v", payload["code"])
	}
}
