package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"soulfra/api/internal/qrchain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	ctx := context.Background()

	db, err := Open(ctx, filepath.Join(t.TempDir(), "soulfra.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewSQLiteStore(db)
}

func mustCreateUser(t *testing.T, s *SQLiteStore, id, username string) User {
	t.Helper()
	user := User{
		ID:       id,
		Username: username,
		Email:    username + "@example.com",
		Role:     "member",
	}
	if err := s.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func TestUserRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateUser(t, s, "usr_1", "avery")

	byEmail, err := s.GetUserByEmail(ctx, "avery@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if byEmail.Username != "avery" {
		t.Errorf("expected username avery, got %s", byEmail.Username)
	}

	byName, err := s.GetUserByUsername(ctx, "avery")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if byName.ID != "usr_1" {
		t.Errorf("expected id usr_1, got %s", byName.ID)
	}
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateUser(t, s, "usr_1", "avery")
	err := s.CreateUser(ctx, User{ID: "usr_2", Username: "avery", Email: "other@example.com"})
	if err == nil {
		t.Fatal("expected unique violation for duplicate username")
	}
}

func TestVerifyUserEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := mustCreateUser(t, s, "usr_1", "avery")
	if err := s.UpdateUserVerificationToken(ctx, user.ID, "tok-123", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("UpdateUserVerificationToken: %v", err)
	}

	if err := s.VerifyUserEmail(ctx, "tok-123"); err != nil {
		t.Fatalf("VerifyUserEmail: %v", err)
	}

	got, err := s.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if !got.IsEmailVerified {
		t.Error("expected email to be verified")
	}

	// Token is single-use.
	if err := s.VerifyUserEmail(ctx, "tok-123"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected ErrNoRows on reuse, got %v", err)
	}
}

func TestRefreshSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := mustCreateUser(t, s, "usr_1", "avery")
	if err := s.SaveRefreshSession(ctx, "hash-1", user.ID, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession: %v", err)
	}

	got, err := s.LookupRefreshSession(ctx, "hash-1")
	if err != nil {
		t.Fatalf("LookupRefreshSession: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("expected user %s, got %s", user.ID, got.ID)
	}

	if err := s.RevokeRefreshSession(ctx, "hash-1"); err != nil {
		t.Fatalf("RevokeRefreshSession: %v", err)
	}
	if _, err := s.LookupRefreshSession(ctx, "hash-1"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected ErrNoRows after revoke, got %v", err)
	}
}

func TestAddSubscriber_DuplicateIsNoOp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	added, err := s.AddSubscriber(ctx, "sub@example.com")
	if err != nil {
		t.Fatalf("AddSubscriber: %v", err)
	}
	if !added {
		t.Error("first subscribe should report added=true")
	}

	added, err = s.AddSubscriber(ctx, "sub@example.com")
	if err != nil {
		t.Fatalf("AddSubscriber duplicate: %v", err)
	}
	if added {
		t.Error("duplicate subscribe should report added=false")
	}

	subs, err := s.ListConfirmedSubscribers(ctx)
	if err != nil {
		t.Fatalf("ListConfirmedSubscribers: %v", err)
	}
	if len(subs) != 1 {
		t.Errorf("expected 1 subscriber, got %d", len(subs))
	}
}

func TestWordmapContribution_MergesCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := mustCreateUser(t, s, "usr_a", "alice")
	bob := mustCreateUser(t, s, "usr_b", "bob")
	domain := Domain{ID: "dom_1", Name: "soulfra.ai", Status: "active"}
	if err := s.InsertDomain(ctx, domain); err != nil {
		t.Fatalf("InsertDomain: %v", err)
	}

	if err := s.ApplyWordmapContribution(ctx, domain.ID, alice.ID, map[string]int{"mesh": 3, "economy": 1}); err != nil {
		t.Fatalf("first contribution: %v", err)
	}
	if err := s.ApplyWordmapContribution(ctx, domain.ID, bob.ID, map[string]int{"mesh": 2}); err != nil {
		t.Fatalf("second contribution: %v", err)
	}

	counts, err := s.GetWordmap(ctx, domain.ID)
	if err != nil {
		t.Fatalf("GetWordmap: %v", err)
	}
	if counts["mesh"] != 5 {
		t.Errorf("expected mesh=5 after merge, got %d", counts["mesh"])
	}
	if counts["economy"] != 1 {
		t.Errorf("expected economy=1, got %d", counts["economy"])
	}

	totals, err := s.ContributionTotals(ctx, domain.ID)
	if err != nil {
		t.Fatalf("ContributionTotals: %v", err)
	}
	if totals[alice.ID] != 4 || totals[bob.ID] != 2 {
		t.Errorf("unexpected totals: %v", totals)
	}
}

func TestInsertDomain_Duplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.InsertDomain(ctx, Domain{ID: "dom_1", Name: "soulfra.ai", Status: "active"}); err != nil {
		t.Fatalf("InsertDomain: %v", err)
	}
	err := s.InsertDomain(ctx, Domain{ID: "dom_2", Name: "soulfra.ai", Status: "parked"})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestAppendScan_BumpsCountAndChains(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateUser(t, s, "usr_1", "avery")
	qr := QRCode{ID: "qr_1", Slug: "abc123", TargetURL: "https://soulfra.ai", CreatedBy: "usr_1"}
	if err := s.InsertQRCode(ctx, qr); err != nil {
		t.Fatalf("InsertQRCode: %v", err)
	}

	scannedAt := time.Now().UTC().Truncate(time.Second)
	first, pos, err := s.AppendScan(ctx, QRScan{QRID: qr.ID, IPHash: "ip-a", ScannedAt: scannedAt})
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if pos != 1 {
		t.Errorf("expected position 1, got %d", pos)
	}
	if first.PreviousScanID != nil {
		t.Errorf("first scan must not link to a predecessor: %+v", first.PreviousScanID)
	}
	if first.ChainHash != qrchain.Hash("", qr.ID, scannedAt, "ip-a") {
		t.Errorf("unexpected genesis hash %s", first.ChainHash)
	}

	second, pos, err := s.AppendScan(ctx, QRScan{QRID: qr.ID, IPHash: "ip-b", ScannedAt: scannedAt})
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if pos != 2 {
		t.Errorf("expected position 2, got %d", pos)
	}
	if second.PreviousScanID == nil || *second.PreviousScanID != first.ID {
		t.Errorf("expected previous_scan_id=%d, got %+v", first.ID, second.PreviousScanID)
	}
	if second.ChainHash != qrchain.Hash(first.ChainHash, qr.ID, scannedAt, "ip-b") {
		t.Errorf("second scan does not commit to the first: %s", second.ChainHash)
	}

	got, err := s.GetQRCodeBySlug(ctx, qr.Slug)
	if err != nil {
		t.Fatalf("GetQRCodeBySlug: %v", err)
	}
	if got.ScanCount != 2 {
		t.Errorf("expected scan_count=2, got %d", got.ScanCount)
	}

	scans, err := s.ListScans(ctx, qr.ID)
	if err != nil {
		t.Fatalf("ListScans: %v", err)
	}
	if len(scans) != 2 {
		t.Fatalf("expected 2 scans, got %d", len(scans))
	}
}

func TestAppendScan_ConcurrentScansKeepChainLinear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateUser(t, s, "usr_1", "avery")
	qr := QRCode{ID: "qr_1", Slug: "abc123", TargetURL: "https://soulfra.ai", CreatedBy: "usr_1"}
	if err := s.InsertQRCode(ctx, qr); err != nil {
		t.Fatalf("InsertQRCode: %v", err)
	}

	const n = 10
	scannedAt := time.Now().UTC().Truncate(time.Second)
	errCh := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := s.AppendScan(ctx, QRScan{QRID: qr.ID, IPHash: fmt.Sprintf("ip-%d", i), ScannedAt: scannedAt})
			errCh <- err
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			t.Fatalf("AppendScan: %v", err)
		}
	}

	scans, err := s.ListScans(ctx, qr.ID)
	if err != nil {
		t.Fatalf("ListScans: %v", err)
	}
	if len(scans) != n {
		t.Fatalf("expected %d scans, got %d", n, len(scans))
	}

	prevHash := ""
	for i, scan := range scans {
		if i == 0 && scan.PreviousScanID != nil {
			t.Fatalf("scan 0 must not link to a predecessor")
		}
		if i > 0 && (scan.PreviousScanID == nil || *scan.PreviousScanID != scans[i-1].ID) {
			t.Fatalf("scan %d forked: previous_scan_id=%v, want %d", i, scan.PreviousScanID, scans[i-1].ID)
		}
		if scan.ChainHash != qrchain.Hash(prevHash, scan.QRID, scan.ScannedAt, scan.IPHash) {
			t.Fatalf("scan %d hash does not replay", i)
		}
		prevHash = scan.ChainHash
	}

	got, err := s.GetQRCodeBySlug(ctx, qr.Slug)
	if err != nil {
		t.Fatalf("GetQRCodeBySlug: %v", err)
	}
	if got.ScanCount != n {
		t.Errorf("expected scan_count=%d, got %d", n, got.ScanCount)
	}
}

func TestAwardLoyalty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := mustCreateUser(t, s, "usr_1", "avery")

	balance, err := s.AwardLoyalty(ctx, user.ID, 50, "referral", "ref-1")
	if err != nil {
		t.Fatalf("AwardLoyalty: %v", err)
	}
	if balance != 50 {
		t.Errorf("expected balance 50, got %d", balance)
	}

	balance, err = s.AwardLoyalty(ctx, user.ID, -20, "redeem", "ref-2")
	if err != nil {
		t.Fatalf("AwardLoyalty redeem: %v", err)
	}
	if balance != 30 {
		t.Errorf("expected balance 30, got %d", balance)
	}

	// Balance cannot go negative; ledger must be untouched on failure.
	if _, err := s.AwardLoyalty(ctx, user.ID, -100, "redeem", "ref-3"); err == nil {
		t.Fatal("expected error for overdraw")
	}

	ledger, err := s.ListLoyaltyLedger(ctx, user.ID, 10)
	if err != nil {
		t.Fatalf("ListLoyaltyLedger: %v", err)
	}
	if len(ledger) != 2 {
		t.Errorf("expected 2 ledger entries, got %d", len(ledger))
	}
}

func TestReplaceDomainOwnership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := mustCreateUser(t, s, "usr_a", "alice")
	bob := mustCreateUser(t, s, "usr_b", "bob")
	if err := s.InsertDomain(ctx, Domain{ID: "dom_1", Name: "soulfra.ai", Status: "active"}); err != nil {
		t.Fatalf("InsertDomain: %v", err)
	}

	owners := []Ownership{
		{UserID: alice.ID, Score: 4, Percent: 66.67},
		{UserID: bob.ID, Score: 2, Percent: 33.33},
	}
	if err := s.ReplaceDomainOwnership(ctx, "dom_1", owners); err != nil {
		t.Fatalf("ReplaceDomainOwnership: %v", err)
	}

	got, err := s.ListDomainOwnership(ctx, "dom_1")
	if err != nil {
		t.Fatalf("ListDomainOwnership: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 owners, got %d", len(got))
	}
	if got[0].Username != "alice" || got[0].Percent != 66.67 {
		t.Errorf("unexpected top owner: %+v", got[0])
	}

	// Replace drops stale rows.
	if err := s.ReplaceDomainOwnership(ctx, "dom_1", owners[:1]); err != nil {
		t.Fatalf("second replace: %v", err)
	}
	got, err = s.ListDomainOwnership(ctx, "dom_1")
	if err != nil {
		t.Fatalf("ListDomainOwnership: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 owner after replace, got %d", len(got))
	}
}
