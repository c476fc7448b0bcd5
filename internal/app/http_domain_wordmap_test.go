package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"soulfra/api/internal/llm"
	"soulfra/api/internal/store"
)

// domainStore backs a single domain with an in-memory wordmap and
// contribution log so ownership math runs for real.
type domainStore struct {
	*fakeStore
	domain        store.Domain
	wordmap       map[string]int
	contributions map[string]int // userID -> total count
	owners        []store.Ownership
}

func newDomainStore(domain store.Domain) *domainStore {
	ds := &domainStore{
		fakeStore:     &fakeStore{},
		domain:        domain,
		wordmap:       map[string]int{},
		contributions: map[string]int{},
	}
	ds.getDomainByNameFn = func(_ context.Context, name string) (store.Domain, error) {
		if name == domain.Name {
			return domain, nil
		}
		return store.Domain{}, sql.ErrNoRows
	}
	ds.applyWordmapContributionFn = func(_ context.Context, domainID, userID string, counts map[string]int) error {
		for keyword, n := range counts {
			ds.wordmap[keyword] += n
			ds.contributions[userID] += n
		}
		return nil
	}
	ds.getWordmapFn = func(_ context.Context, domainID string) (map[string]int, error) {
		return ds.wordmap, nil
	}
	ds.contributionTotalsFn = func(_ context.Context, domainID string) (map[string]int, error) {
		return ds.contributions, nil
	}
	ds.replaceDomainOwnershipFn = func(_ context.Context, domainID string, owners []store.Ownership) error {
		ds.owners = owners
		return nil
	}
	ds.listDomainOwnershipFn = func(_ context.Context, domainID string) ([]store.Ownership, error) {
		return ds.owners, nil
	}
	return ds
}

func TestContributeWordmapMergesAndSplitsOwnership(t *testing.T) {
	ds := newDomainStore(store.Domain{ID: "dom_1", Name: "soulfra.com", Status: "active"})
	alice := userFixture("usr_a", "alice", "member")
	bob := userFixture("usr_b", "bob", "member")
	ds.getUserByIDFn = func(_ context.Context, userID string) (store.User, error) {
		switch userID {
		case alice.ID:
			return alice, nil
		case bob.ID:
			return bob, nil
		}
		return store.User{}, sql.ErrNoRows
	}
	svc := newTestService(ds.fakeStore, &fakeGit{})
	server := NewHTTPServer(svc, "*")

	req := authedRequest(t, svc, alice, http.MethodPost, "/api/domains/soulfra.com/wordmap", `{"keywords":{"Identity":2,"soul":1}}`)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("alice contribution failed: %d %s", rr.Code, rr.Body.String())
	}

	req = authedRequest(t, svc, bob, http.MethodPost, "/api/domains/soulfra.com/wordmap", `{"keywords":{"identity":1}}`)
	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("bob contribution failed: %d %s", rr.Code, rr.Body.String())
	}

	payload := decodePayload(t, rr)
	keywords := payload["keywords"].(map[string]any)
	if keywords["identity"] != float64(3) {
		t.Fatalf("expected merged identity count 3, got %v", keywords["identity"])
	}

	ownership := payload["ownership"].([]any)
	if len(ownership) != 2 {
		t.Fatalf("expected 2 owners, got %d", len(ownership))
	}
	top := ownership[0].(map[string]any)
	if top["userId"] != alice.ID || top["percent"] != float64(75) {
		t.Fatalf("expected alice at 75%%, got %v", top)
	}
	if ownership[1].(map[string]any)["percent"] != float64(25) {
		t.Fatalf("expected bob at 25%%, got %v", ownership[1])
	}
}

func TestContributeWordmapRejectsEmptyInput(t *testing.T) {
	ds := newDomainStore(store.Domain{ID: "dom_1", Name: "soulfra.com"})
	user := userFixture("usr_a", "alice", "member")
	ds.getUserByIDFn = storeWithUser(user).getUserByIDFn
	svc := newTestService(ds.fakeStore, &fakeGit{})
	server := NewHTTPServer(svc, "*")

	req := authedRequest(t, svc, user, http.MethodPost, "/api/domains/soulfra.com/wordmap", `{"keywords":{}}`)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestClassifyDomainMatchesWordmapLexically(t *testing.T) {
	ds := newDomainStore(store.Domain{ID: "dom_1", Name: "coffee.com"})
	ds.wordmap["coffee"] = 5
	ds.wordmap["roast"] = 2
	user := userFixture("usr_a", "alice", "member")
	ds.getUserByIDFn = storeWithUser(user).getUserByIDFn
	svc := newTestService(ds.fakeStore, &fakeGit{})
	server := NewHTTPServer(svc, "*")

	req := authedRequest(t, svc, user, http.MethodPost, "/api/domains/coffee.com/classify", `{"text":"I drink coffee every morning, dark roast coffee especially."}`)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("classify failed: %d %s", rr.Code, rr.Body.String())
	}

	payload := decodePayload(t, rr)
	if payload["usedModel"] != false {
		t.Fatal("no model is configured, usedModel must be false")
	}
	keywords := payload["keywords"].(map[string]any)
	if keywords["coffee"] != float64(2) || keywords["roast"] != float64(1) {
		t.Fatalf("unexpected match counts: %v", keywords)
	}
	// coffee 2*5 + roast 1*2
	if payload["score"] != float64(12) {
		t.Fatalf("expected score 12, got %v", payload["score"])
	}
	// Matched keywords are merged back as a contribution.
	if ds.contributions[user.ID] != 3 {
		t.Fatalf("expected contribution of 3, got %d", ds.contributions[user.ID])
	}
}

func TestClassifyDomainPromptsTopKeywordsDeterministically(t *testing.T) {
	ds := newDomainStore(store.Domain{ID: "dom_1", Name: "coffee.com"})
	for i := 0; i < 35; i++ {
		ds.wordmap[fmt.Sprintf("keyword%02d", i)] = 40 - i
	}
	user := userFixture("usr_a", "alice", "member")
	ds.getUserByIDFn = storeWithUser(user).getUserByIDFn

	var prompts []string
	svc := newTestService(ds.fakeStore, &fakeGit{})
	svc.llm = &fakeLLM{
		completeFn: func(_ context.Context, req llm.Request) (*llm.Response, error) {
			prompts = append(prompts, req.Messages[1].Content)
			return &llm.Response{Content: "none"}, nil
		},
	}
	server := NewHTTPServer(svc, "*")

	for i := 0; i < 2; i++ {
		req := authedRequest(t, svc, user, http.MethodPost, "/api/domains/coffee.com/classify", `{"text":"unrelated text"}`)
		rr := httptest.NewRecorder()
		server.Handler().ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("classify failed: %d %s", rr.Code, rr.Body.String())
		}
	}

	if len(prompts) != 2 {
		t.Fatalf("expected 2 model calls, got %d", len(prompts))
	}
	if prompts[0] != prompts[1] {
		t.Fatalf("candidate list must be deterministic:\n%s\n%s", prompts[0], prompts[1])
	}

	expected := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		expected = append(expected, fmt.Sprintf("keyword%02d", i))
	}
	if !strings.Contains(prompts[0], "Keywords: "+strings.Join(expected, ", ")) {
		t.Fatalf("expected the 30 highest-count keywords in order, got:\n%s", prompts[0])
	}
	for i := 30; i < 35; i++ {
		if strings.Contains(prompts[0], fmt.Sprintf("keyword%02d", i)) {
			t.Fatalf("low-count keyword%02d must not be offered", i)
		}
	}
}

func TestTierProgressReportsGapToNextTier(t *testing.T) {
	user := userFixture("usr_m", "mia", "member")
	fs := storeWithUser(user)
	fs.activityCountsFn = func(_ context.Context, userID string) (store.ActivityCounts, error) {
		return store.ActivityCounts{Posts: 1, Comments: 2, Contributions: 3, Scans: 4}, nil
	}
	svc := newTestService(fs, &fakeGit{})
	server := NewHTTPServer(svc, "*")

	req := authedRequest(t, svc, user, http.MethodGet, "/api/tiers/me", "")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	payload := decodePayload(t, rr)
	// 1*10 + 2*3 + 3*2 + 4*1 = 26 puts the user in tier 2, 49 short of tier 3.
	if payload["score"] != float64(26) || payload["tier"] != float64(2) {
		t.Fatalf("unexpected progression: %v", payload)
	}
	if payload["nextTier"] != float64(3) || payload["remaining"] != float64(49) {
		t.Fatalf("unexpected next-tier gap: %v", payload)
	}
}

func TestUnlockBrandEnforcesTier(t *testing.T) {
	user := userFixture("usr_m", "mia", "member")
	fs := storeWithUser(user)
	fs.getBrandBySlugFn = func(_ context.Context, slug string) (store.Brand, error) {
		return store.Brand{ID: "brd_1", Slug: slug, Name: "CalCompare", Tier: 3}, nil
	}
	fs.activityCountsFn = func(_ context.Context, userID string) (store.ActivityCounts, error) {
		return store.ActivityCounts{}, nil
	}
	svc := newTestService(fs, &fakeGit{})
	server := NewHTTPServer(svc, "*")

	req := authedRequest(t, svc, user, http.MethodPost, "/api/brands/calcompare/unlock", "")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rr.Code, rr.Body.String())
	}
	payload := decodePayload(t, rr)
	if payload["code"] != "TIER_LOCKED" {
		t.Fatalf("expected TIER_LOCKED, got %v", payload["code"])
	}
	details := payload["details"].(map[string]any)
	if details["brandTier"] != float64(3) || details["yourTier"] != float64(1) {
		t.Fatalf("unexpected details: %v", details)
	}

	// Enough activity clears the gate.
	fs.activityCountsFn = func(_ context.Context, userID string) (store.ActivityCounts, error) {
		return store.ActivityCounts{Posts: 10}, nil
	}
	unlocked := false
	fs.unlockBrandFn = func(_ context.Context, userID, brandID string) error {
		unlocked = true
		return nil
	}

	req = authedRequest(t, svc, user, http.MethodPost, "/api/brands/calcompare/unlock", "")
	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !unlocked {
		t.Fatal("expected the unlock to be recorded")
	}
	if payload := decodePayload(t, rr); payload["unlocked"] != true {
		t.Fatalf("unexpected payload: %v", payload)
	}
}
