package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

func (s *SQLiteStore) InsertProfessional(ctx context.Context, item Professional) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO professionals (id, user_id, trade, city, bio, is_verified, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, item.ID, item.UserID, item.Trade, item.City, item.Bio, item.IsVerified, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert professional: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetProfessional(ctx context.Context, professionalID string) (Professional, error) {
	var item Professional
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, trade, city, bio, is_verified, created_at
		FROM professionals
		WHERE id=?
	`, professionalID).Scan(&item.ID, &item.UserID, &item.Trade, &item.City, &item.Bio, &item.IsVerified, &item.CreatedAt)
	if err != nil {
		return Professional{}, err
	}
	return item, nil
}

func (s *SQLiteStore) ListProfessionals(ctx context.Context, trade, city string) ([]Professional, error) {
	query := `SELECT id, user_id, trade, city, bio, is_verified, created_at FROM professionals`
	var clauses []string
	var args []any
	if trade != "" {
		clauses = append(clauses, "trade=?")
		args = append(args, trade)
	}
	if city != "" {
		clauses = append(clauses, "city=?")
		args = append(args, city)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY is_verified DESC, created_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list professionals: %w", err)
	}
	defer rows.Close()

	items := make([]Professional, 0)
	for rows.Next() {
		var item Professional
		if err := rows.Scan(&item.ID, &item.UserID, &item.Trade, &item.City, &item.Bio, &item.IsVerified, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan professional: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate professionals: %w", err)
	}
	return items, nil
}

func (s *SQLiteStore) SetProfessionalVerified(ctx context.Context, professionalID string, verified bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE professionals SET is_verified=? WHERE id=?`, verified, professionalID)
	if err != nil {
		return fmt.Errorf("set professional verified: %w", err)
	}
	return nil
}

func (s *SQLiteStore) InsertCertification(ctx context.Context, item SkillCertification) error {
	var expires any
	if item.ExpiresAt != nil {
		expires = item.ExpiresAt.UTC()
	}
	issued := item.IssuedAt
	if issued.IsZero() {
		issued = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO skill_certifications (id, professional_id, skill, issued_by, issued_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, item.ID, item.ProfessionalID, item.Skill, item.IssuedBy, issued.UTC(), expires)
	if err != nil {
		return fmt.Errorf("insert certification: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListCertifications(ctx context.Context, professionalID string) ([]SkillCertification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, professional_id, skill, issued_by, issued_at, expires_at
		FROM skill_certifications
		WHERE professional_id=?
		ORDER BY issued_at DESC
	`, professionalID)
	if err != nil {
		return nil, fmt.Errorf("list certifications: %w", err)
	}
	defer rows.Close()

	items := make([]SkillCertification, 0)
	for rows.Next() {
		var item SkillCertification
		if err := rows.Scan(&item.ID, &item.ProfessionalID, &item.Skill, &item.IssuedBy, &item.IssuedAt, &item.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan certification: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate certifications: %w", err)
	}
	return items, nil
}

// AwardLoyalty appends a ledger entry and updates the balance atomically.
// A negative delta that would take the balance below zero is rejected.
func (s *SQLiteStore) AwardLoyalty(ctx context.Context, userID string, delta int, reason, reference string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin loyalty tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO loyalty_accounts (user_id, balance, updated_at)
		VALUES (?, 0, ?)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, now); err != nil {
		return 0, fmt.Errorf("ensure loyalty account: %w", err)
	}

	var balance int
	if err := tx.QueryRowContext(ctx, `SELECT balance FROM loyalty_accounts WHERE user_id=?`, userID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("read loyalty balance: %w", err)
	}
	if balance+delta < 0 {
		return 0, fmt.Errorf("loyalty balance cannot go negative (have %d, delta %d)", balance, delta)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE loyalty_accounts SET balance = balance + ?, updated_at=? WHERE user_id=?
	`, delta, now, userID); err != nil {
		return 0, fmt.Errorf("update loyalty balance: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO loyalty_ledger (user_id, delta, reason, reference, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, userID, delta, reason, reference, now); err != nil {
		return 0, fmt.Errorf("insert loyalty ledger: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit loyalty tx: %w", err)
	}
	return balance + delta, nil
}

func (s *SQLiteStore) GetLoyaltyAccount(ctx context.Context, userID string) (LoyaltyAccount, error) {
	var item LoyaltyAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, balance, updated_at FROM loyalty_accounts WHERE user_id=?
	`, userID).Scan(&item.UserID, &item.Balance, &item.UpdatedAt)
	if err != nil {
		return LoyaltyAccount{}, err
	}
	return item, nil
}

func (s *SQLiteStore) ListLoyaltyLedger(ctx context.Context, userID string, limit int) ([]LoyaltyEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, delta, reason, reference, created_at
		FROM loyalty_ledger
		WHERE user_id=?
		ORDER BY id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list loyalty ledger: %w", err)
	}
	defer rows.Close()

	items := make([]LoyaltyEntry, 0)
	for rows.Next() {
		var item LoyaltyEntry
		if err := rows.Scan(&item.ID, &item.UserID, &item.Delta, &item.Reason, &item.Reference, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan loyalty entry: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loyalty ledger: %w", err)
	}
	return items, nil
}
