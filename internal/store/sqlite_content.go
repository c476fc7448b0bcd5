package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLiteStore) ListBrands(ctx context.Context) ([]Brand, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, slug, name, tagline, color_scheme, personality, tier, created_at, updated_at
		FROM brands
		ORDER BY tier, slug
	`)
	if err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	defer rows.Close()

	items := make([]Brand, 0)
	for rows.Next() {
		var item Brand
		if err := rows.Scan(&item.ID, &item.Slug, &item.Name, &item.Tagline, &item.ColorScheme, &item.Personality, &item.Tier, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan brand: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate brands: %w", err)
	}
	return items, nil
}

func (s *SQLiteStore) GetBrandBySlug(ctx context.Context, slug string) (Brand, error) {
	var item Brand
	err := s.db.QueryRowContext(ctx, `
		SELECT id, slug, name, tagline, color_scheme, personality, tier, created_at, updated_at
		FROM brands
		WHERE slug=?
	`, slug).Scan(&item.ID, &item.Slug, &item.Name, &item.Tagline, &item.ColorScheme, &item.Personality, &item.Tier, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Brand{}, err
	}
	return item, nil
}

func (s *SQLiteStore) GetBrandByID(ctx context.Context, brandID string) (Brand, error) {
	var item Brand
	err := s.db.QueryRowContext(ctx, `
		SELECT id, slug, name, tagline, color_scheme, personality, tier, created_at, updated_at
		FROM brands
		WHERE id=?
	`, brandID).Scan(&item.ID, &item.Slug, &item.Name, &item.Tagline, &item.ColorScheme, &item.Personality, &item.Tier, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Brand{}, err
	}
	return item, nil
}

func (s *SQLiteStore) InsertBrand(ctx context.Context, item Brand) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO brands (id, slug, name, tagline, color_scheme, personality, tier, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ID, item.Slug, item.Name, item.Tagline, item.ColorScheme, item.Personality, item.Tier, now, now)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert brand: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateBrand(ctx context.Context, slug, name, tagline, colorScheme, personality string, tier int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE brands
		SET name=?, tagline=?, color_scheme=?, personality=?, tier=?, updated_at=?
		WHERE slug=?
	`, name, tagline, colorScheme, personality, tier, time.Now().UTC(), slug)
	if err != nil {
		return fmt.Errorf("update brand: %w", err)
	}
	return nil
}

// UnlockBrand records a tier unlock. Re-unlocking is a no-op.
func (s *SQLiteStore) UnlockBrand(ctx context.Context, userID, brandID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tier_unlocks (user_id, brand_id)
		VALUES (?, ?)
		ON CONFLICT (user_id, brand_id) DO NOTHING
	`, userID, brandID)
	if err != nil {
		return fmt.Errorf("unlock brand: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListUnlockedBrandIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT brand_id FROM tier_unlocks WHERE user_id=?`, userID)
	if err != nil {
		return nil, fmt.Errorf("list unlocks: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan unlock: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unlocks: %w", err)
	}
	return ids, nil
}

func (s *SQLiteStore) ListPosts(ctx context.Context, brandID, status string, limit int) ([]Post, error) {
	query := `
		SELECT id, brand_id, author_id, author_name, title, body_markdown, body_html, status, created_at, updated_at
		FROM posts
	`
	var clauses []string
	var args []any
	if brandID != "" {
		clauses = append(clauses, "brand_id=?")
		args = append(args, brandID)
	}
	if status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, status)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY updated_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	items := make([]Post, 0)
	for rows.Next() {
		var item Post
		var brand *string
		if err := rows.Scan(&item.ID, &brand, &item.AuthorID, &item.AuthorName, &item.Title, &item.BodyMarkdown, &item.BodyHTML, &item.Status, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		if brand != nil {
			item.BrandID = *brand
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return items, nil
}

func (s *SQLiteStore) GetPost(ctx context.Context, postID string) (Post, error) {
	var item Post
	var brand *string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, brand_id, author_id, author_name, title, body_markdown, body_html, status, created_at, updated_at
		FROM posts
		WHERE id=?
	`, postID).Scan(&item.ID, &brand, &item.AuthorID, &item.AuthorName, &item.Title, &item.BodyMarkdown, &item.BodyHTML, &item.Status, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Post{}, err
	}
	if brand != nil {
		item.BrandID = *brand
	}
	return item, nil
}

func (s *SQLiteStore) InsertPost(ctx context.Context, item Post) error {
	now := time.Now().UTC()
	var brand any
	if item.BrandID != "" {
		brand = item.BrandID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (id, brand_id, author_id, author_name, title, body_markdown, body_html, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ID, brand, item.AuthorID, item.AuthorName, item.Title, item.BodyMarkdown, item.BodyHTML, item.Status, now, now)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdatePost(ctx context.Context, postID, title, bodyMarkdown, bodyHTML, status string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE posts
		SET title=?, body_markdown=?, body_html=?, status=?, updated_at=?
		WHERE id=?
	`, title, bodyMarkdown, bodyHTML, status, time.Now().UTC(), postID)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeletePost(ctx context.Context, postID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id=?`, postID)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

func (s *SQLiteStore) InsertComment(ctx context.Context, item Comment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, post_id, author_id, author_name, body, is_ai_generated, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, item.ID, item.PostID, item.AuthorID, item.AuthorName, item.Body, item.IsAIGenerated, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListComments(ctx context.Context, postID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, post_id, author_id, author_name, body, is_ai_generated, created_at
		FROM comments
		WHERE post_id=?
		ORDER BY created_at
	`, postID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		var item Comment
		if err := rows.Scan(&item.ID, &item.PostID, &item.AuthorID, &item.AuthorName, &item.Body, &item.IsAIGenerated, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

// AddSubscriber inserts a subscriber and reports whether the row was new.
// A duplicate email is not an error.
func (s *SQLiteStore) AddSubscriber(ctx context.Context, email string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO subscribers (email) VALUES (?)
		ON CONFLICT (email) DO NOTHING
	`, email)
	if err != nil {
		return false, fmt.Errorf("add subscriber: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add subscriber rows: %w", err)
	}
	return affected > 0, nil
}

func (s *SQLiteStore) RemoveSubscriber(ctx context.Context, email string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM subscribers WHERE email=?`, email)
	if err != nil {
		return fmt.Errorf("remove subscriber: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListConfirmedSubscribers(ctx context.Context) ([]Subscriber, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT email, confirmed, created_at FROM subscribers WHERE confirmed=1 ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	items := make([]Subscriber, 0)
	for rows.Next() {
		var item Subscriber
		if err := rows.Scan(&item.Email, &item.Confirmed, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscribers: %w", err)
	}
	return items, nil
}
