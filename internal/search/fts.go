package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SqliteFTS implements Searcher using SQLite FTS5 as a fallback.
type SqliteFTS struct {
	db *sql.DB
}

// NewSqliteFTS creates a SQLite FTS5 searcher.
func NewSqliteFTS(db *sql.DB) *SqliteFTS {
	return &SqliteFTS{db: db}
}

// Healthy always returns true — if SQLite is down, the whole app is down.
func (f *SqliteFTS) Healthy() bool {
	return true
}

// matchExpr turns user text into a safe FTS5 MATCH expression by
// quoting each token. Bare tokens are AND-ed by FTS5.
func matchExpr(text string) string {
	fields := strings.Fields(text)
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, `""`)
		quoted = append(quoted, `"`+f+`"`)
	}
	return strings.Join(quoted, " ")
}

// Search executes a UNION ALL query across the posts, brands, and
// domains shadow tables, using bm25 for ranking and snippet() for
// highlighted extracts.
func (f *SqliteFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	match := matchExpr(q.Text)

	var subQueries []string
	var args []any

	if q.FilterType == "" || q.FilterType == ResultPost {
		where := "posts_fts MATCH ?"
		sub := []any{match}
		if q.FilterBrandID != "" {
			where += " AND p.brand_id = ?"
			sub = append(sub, q.FilterBrandID)
		}
		if q.PublishedOnly {
			where += " AND p.status = 'published'"
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'post' AS type, p.id, p.title,
				snippet(posts_fts, 2, '<mark>', '</mark>', '...', 30) AS snippet,
				coalesce(p.brand_id, '') AS brand_id, p.status,
				bm25(posts_fts) AS rank
			FROM posts_fts
			JOIN posts p ON p.id = posts_fts.id
			WHERE %s`, where))
		args = append(args, sub...)
	}

	if q.FilterType == "" || q.FilterType == ResultBrand {
		subQueries = append(subQueries, `
			SELECT 'brand' AS type, b.id, b.name AS title,
				snippet(brands_fts, 2, '<mark>', '</mark>', '...', 30) AS snippet,
				'' AS brand_id, '' AS status,
				bm25(brands_fts) AS rank
			FROM brands_fts
			JOIN brands b ON b.id = brands_fts.id
			WHERE brands_fts MATCH ?`)
		args = append(args, match)
	}

	if q.FilterType == "" || q.FilterType == ResultDomain {
		subQueries = append(subQueries, `
			SELECT 'domain' AS type, d.id, d.name AS title,
				'' AS snippet,
				'' AS brand_id, d.status,
				bm25(domains_fts) AS rank
			FROM domains_fts
			JOIN domains d ON d.id = domains_fts.id
			WHERE domains_fts MATCH ?`)
		args = append(args, match)
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	union := strings.Join(subQueries, " UNION ALL ")

	ctx := context.Background()

	var total int
	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub", union)
	if err := f.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("fts count: %w", err)
	}

	// bm25 returns lower-is-better scores.
	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, brand_id, status
		FROM (%s) sub
		ORDER BY rank
		LIMIT %d OFFSET %d`, union, limit, offset)

	rows, err := f.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("fts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.BrandID, &r.Status); err != nil {
			return nil, 0, fmt.Errorf("fts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (f *SqliteFTS) LoadAllRecords(ctx context.Context) ([]PostRecord, []BrandRecord, []DomainRecord, error) {
	postRows, err := f.db.QueryContext(ctx, `
		SELECT id, title, body_markdown, coalesce(brand_id, ''), status
		FROM posts
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load posts: %w", err)
	}
	defer postRows.Close()

	posts := make([]PostRecord, 0)
	for postRows.Next() {
		var p PostRecord
		if err := postRows.Scan(&p.ID, &p.Title, &p.Body, &p.BrandID, &p.Status); err != nil {
			return nil, nil, nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := postRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate posts: %w", err)
	}

	brandRows, err := f.db.QueryContext(ctx, `
		SELECT id, slug, name, coalesce(tagline, ''), coalesce(personality, ''), tier
		FROM brands
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load brands: %w", err)
	}
	defer brandRows.Close()

	brands := make([]BrandRecord, 0)
	for brandRows.Next() {
		var b BrandRecord
		if err := brandRows.Scan(&b.ID, &b.Slug, &b.Name, &b.Tagline, &b.Personality, &b.Tier); err != nil {
			return nil, nil, nil, fmt.Errorf("scan brand: %w", err)
		}
		brands = append(brands, b)
	}
	if err := brandRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate brands: %w", err)
	}

	domainRows, err := f.db.QueryContext(ctx, `
		SELECT id, name, status
		FROM domains
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load domains: %w", err)
	}
	defer domainRows.Close()

	domains := make([]DomainRecord, 0)
	for domainRows.Next() {
		var d DomainRecord
		if err := domainRows.Scan(&d.ID, &d.Name, &d.Status); err != nil {
			return nil, nil, nil, fmt.Errorf("scan domain: %w", err)
		}
		domains = append(domains, d)
	}
	if err := domainRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate domains: %w", err)
	}

	return posts, brands, domains, nil
}
