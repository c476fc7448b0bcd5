package search

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"soulfra/api/internal/store"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	db, err := store.Open(ctx, filepath.Join(t.TempDir(), "soulfra.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := store.ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

func seedSearchData(t *testing.T, db *sql.DB) {
	t.Helper()
	ctx := context.Background()
	s := store.NewSQLiteStore(db)

	if err := s.CreateUser(ctx, store.User{ID: "usr_1", Username: "avery", Email: "avery@example.com", Role: "member"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := s.InsertBrand(ctx, store.Brand{ID: "brd_1", Slug: "soulfra-labs", Name: "Soulfra Labs", Tagline: "The mesh economy workshop", Tier: 1}); err != nil {
		t.Fatalf("insert brand: %v", err)
	}
	if err := s.InsertDomain(ctx, store.Domain{ID: "dom_1", Name: "mesheconomy.ai", Status: "active"}); err != nil {
		t.Fatalf("insert domain: %v", err)
	}

	brandID := "brd_1"
	posts := []store.Post{
		{ID: "pst_1", BrandID: brandID, AuthorID: "usr_1", Title: "Welcome to the mesh", BodyMarkdown: "The mesh economy rewards contribution.", Status: "published"},
		{ID: "pst_2", AuthorID: "usr_1", Title: "Draft thoughts on mesh", BodyMarkdown: "Unfinished mesh ramblings.", Status: "draft"},
		{ID: "pst_3", AuthorID: "usr_1", Title: "Cooking notes", BodyMarkdown: "Nothing relevant here.", Status: "published"},
	}
	for _, p := range posts {
		if err := s.InsertPost(ctx, p); err != nil {
			t.Fatalf("insert post %s: %v", p.ID, err)
		}
	}
}

func TestSqliteFTS_Search(t *testing.T) {
	db := newTestDB(t)
	seedSearchData(t, db)
	fts := NewSqliteFTS(db)

	results, total, err := fts.Search(Query{Text: "mesh"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if total < 3 {
		t.Errorf("expected at least 3 hits (2 posts + brand), got %d", total)
	}

	var sawPost, sawBrand bool
	for _, r := range results {
		switch r.Type {
		case ResultPost:
			sawPost = true
		case ResultBrand:
			sawBrand = true
		}
	}
	if !sawPost || !sawBrand {
		t.Errorf("expected both post and brand hits, got %+v", results)
	}
}

func TestSqliteFTS_PublishedOnly(t *testing.T) {
	db := newTestDB(t)
	seedSearchData(t, db)
	fts := NewSqliteFTS(db)

	results, _, err := fts.Search(Query{Text: "mesh", FilterType: ResultPost, PublishedOnly: true})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	for _, r := range results {
		if r.Status != "published" {
			t.Errorf("draft leaked into published-only search: %+v", r)
		}
	}
	if len(results) != 1 {
		t.Errorf("expected 1 published post hit, got %d", len(results))
	}
}

func TestSqliteFTS_TypeAndBrandFilter(t *testing.T) {
	db := newTestDB(t)
	seedSearchData(t, db)
	fts := NewSqliteFTS(db)

	results, _, err := fts.Search(Query{Text: "mesh", FilterType: ResultPost, FilterBrandID: "brd_1"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != "pst_1" {
		t.Errorf("expected only pst_1, got %+v", results)
	}
}

func TestSqliteFTS_EmptyQuery(t *testing.T) {
	db := newTestDB(t)
	fts := NewSqliteFTS(db)

	results, total, err := fts.Search(Query{Text: "   "})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if total != 0 || len(results) != 0 {
		t.Errorf("blank query should return nothing, got %d results", len(results))
	}
}

func TestSqliteFTS_QuotesInQuery(t *testing.T) {
	db := newTestDB(t)
	seedSearchData(t, db)
	fts := NewSqliteFTS(db)

	// Malformed user input must not break the MATCH expression.
	if _, _, err := fts.Search(Query{Text: `mesh "unclosed`}); err != nil {
		t.Errorf("quoted input should be escaped, got error: %v", err)
	}
}

func TestServiceFallsBackWithoutMeili(t *testing.T) {
	db := newTestDB(t)
	seedSearchData(t, db)

	svc := NewService(nil, NewSqliteFTS(db))
	resp := svc.Search(Query{Text: "mesh"})
	if resp.Total == 0 {
		t.Error("expected fallback results without meilisearch")
	}
	if resp.Query != "mesh" {
		t.Errorf("expected query echoed back, got %q", resp.Query)
	}
}
