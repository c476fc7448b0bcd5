package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"soulfra/api/internal/qrchain"
)

func (s *SQLiteStore) ListDomains(ctx context.Context, status string) ([]Domain, error) {
	query := `SELECT id, name, brand_id, status, registrar, created_at FROM domains`
	var args []any
	if status != "" {
		query += ` WHERE status=?`
		args = append(args, status)
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	defer rows.Close()

	items := make([]Domain, 0)
	for rows.Next() {
		item, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate domains: %w", err)
	}
	return items, nil
}

func scanDomain(row interface{ Scan(...any) error }) (Domain, error) {
	var item Domain
	var brand *string
	err := row.Scan(&item.ID, &item.Name, &brand, &item.Status, &item.Registrar, &item.CreatedAt)
	if err != nil {
		return Domain{}, err
	}
	if brand != nil {
		item.BrandID = *brand
	}
	return item, nil
}

func (s *SQLiteStore) GetDomainByName(ctx context.Context, name string) (Domain, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, brand_id, status, registrar, created_at FROM domains WHERE name=?
	`, name)
	return scanDomain(row)
}

func (s *SQLiteStore) InsertDomain(ctx context.Context, item Domain) error {
	var brand any
	if item.BrandID != "" {
		brand = item.BrandID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO domains (id, name, brand_id, status, registrar, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, item.ID, item.Name, brand, item.Status, item.Registrar, time.Now().UTC())
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert domain: %w", err)
	}
	return nil
}

// ApplyWordmapContribution merges keyword counts into a domain's wordmap and
// logs the per-user contribution, all in one transaction. The row-level
// upsert is what makes concurrent contributions safe.
func (s *SQLiteStore) ApplyWordmapContribution(ctx context.Context, domainID, userID string, counts map[string]int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin wordmap tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for keyword, count := range counts {
		if count <= 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO wordmap_entries (domain_id, keyword, count)
			VALUES (?, ?, ?)
			ON CONFLICT (domain_id, keyword) DO UPDATE SET count = count + excluded.count
		`, domainID, keyword, count); err != nil {
			return fmt.Errorf("upsert wordmap entry: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO wordmap_contributions (domain_id, user_id, keyword, count, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, domainID, userID, keyword, count, now); err != nil {
			return fmt.Errorf("insert wordmap contribution: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit wordmap tx: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetWordmap(ctx context.Context, domainID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT keyword, count FROM wordmap_entries WHERE domain_id=? ORDER BY count DESC, keyword
	`, domainID)
	if err != nil {
		return nil, fmt.Errorf("get wordmap: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var keyword string
		var count int
		if err := rows.Scan(&keyword, &count); err != nil {
			return nil, fmt.Errorf("scan wordmap entry: %w", err)
		}
		counts[keyword] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wordmap: %w", err)
	}
	return counts, nil
}

// ContributionTotals returns the summed contribution counts per user for a
// domain, the input to ownership percentages.
func (s *SQLiteStore) ContributionTotals(ctx context.Context, domainID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, COALESCE(SUM(count), 0)
		FROM wordmap_contributions
		WHERE domain_id=?
		GROUP BY user_id
	`, domainID)
	if err != nil {
		return nil, fmt.Errorf("contribution totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int)
	for rows.Next() {
		var userID string
		var total int
		if err := rows.Scan(&userID, &total); err != nil {
			return nil, fmt.Errorf("scan contribution total: %w", err)
		}
		totals[userID] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contribution totals: %w", err)
	}
	return totals, nil
}

// ReplaceDomainOwnership swaps the ownership table for a domain with a
// freshly computed set in one transaction.
func (s *SQLiteStore) ReplaceDomainOwnership(ctx context.Context, domainID string, owners []Ownership) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ownership tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM domain_ownership WHERE domain_id=?`, domainID); err != nil {
		return fmt.Errorf("clear ownership: %w", err)
	}

	now := time.Now().UTC()
	for _, owner := range owners {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO domain_ownership (domain_id, user_id, score, percent, computed_at)
			VALUES (?, ?, ?, ?, ?)
		`, domainID, owner.UserID, owner.Score, owner.Percent, now); err != nil {
			return fmt.Errorf("insert ownership: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ownership tx: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListDomainOwnership(ctx context.Context, domainID string) ([]Ownership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT o.domain_id, o.user_id, u.username, o.score, o.percent, o.computed_at
		FROM domain_ownership o
		JOIN users u ON u.id = o.user_id
		WHERE o.domain_id=?
		ORDER BY o.percent DESC, u.username
	`, domainID)
	if err != nil {
		return nil, fmt.Errorf("list ownership: %w", err)
	}
	defer rows.Close()

	items := make([]Ownership, 0)
	for rows.Next() {
		var item Ownership
		if err := rows.Scan(&item.DomainID, &item.UserID, &item.Username, &item.Score, &item.Percent, &item.ComputedAt); err != nil {
			return nil, fmt.Errorf("scan ownership: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ownership: %w", err)
	}
	return items, nil
}

func (s *SQLiteStore) InsertQRCode(ctx context.Context, item QRCode) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO qr_codes (id, slug, target_url, image_key, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, item.ID, item.Slug, item.TargetURL, item.ImageKey, item.CreatedBy, time.Now().UTC())
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert qr code: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetQRCodeBySlug(ctx context.Context, slug string) (QRCode, error) {
	var item QRCode
	err := s.db.QueryRowContext(ctx, `
		SELECT id, slug, target_url, image_key, created_by, scan_count, created_at
		FROM qr_codes
		WHERE slug=?
	`, slug).Scan(&item.ID, &item.Slug, &item.TargetURL, &item.ImageKey, &item.CreatedBy, &item.ScanCount, &item.CreatedAt)
	if err != nil {
		return QRCode{}, err
	}
	return item, nil
}

func (s *SQLiteStore) ListQRCodes(ctx context.Context) ([]QRCode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, slug, target_url, image_key, created_by, scan_count, created_at
		FROM qr_codes
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list qr codes: %w", err)
	}
	defer rows.Close()

	items := make([]QRCode, 0)
	for rows.Next() {
		var item QRCode
		if err := rows.Scan(&item.ID, &item.Slug, &item.TargetURL, &item.ImageKey, &item.CreatedBy, &item.ScanCount, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan qr code: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate qr codes: %w", err)
	}
	return items, nil
}

// ActiveDomainsWithoutQR lists active domains with no QR code pointing at
// them, used by the batch generator.
func (s *SQLiteStore) ActiveDomainsWithoutQR(ctx context.Context) ([]Domain, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.name, d.brand_id, d.status, d.registrar, d.created_at
		FROM domains d
		WHERE d.status='active'
			AND NOT EXISTS (SELECT 1 FROM qr_codes q WHERE q.target_url LIKE '%' || d.name || '%')
		ORDER BY d.name
	`)
	if err != nil {
		return nil, fmt.Errorf("domains without qr: %w", err)
	}
	defer rows.Close()

	items := make([]Domain, 0)
	for rows.Next() {
		item, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate domains: %w", err)
	}
	return items, nil
}

// AppendScan links a scan to the current chain head and inserts it, all in
// one transaction with the denormalized scan counter bump, so two concurrent
// scans can never commit to the same predecessor. The caller provides QRID,
// IPHash, UserAgent, and ScannedAt; the previous-scan link and chain hash
// are computed here. Returns the stored scan and its 1-based chain position.
func (s *SQLiteStore) AppendScan(ctx context.Context, scan QRScan) (QRScan, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return QRScan{}, 0, fmt.Errorf("begin scan tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	prevHash := ""
	var prev any
	var prevID int64
	err = tx.QueryRowContext(ctx, `
		SELECT id, chain_hash
		FROM qr_scans
		WHERE qr_id=?
		ORDER BY id DESC
		LIMIT 1
	`, scan.QRID).Scan(&prevID, &prevHash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return QRScan{}, 0, fmt.Errorf("latest scan: %w", err)
	default:
		scan.PreviousScanID = &prevID
		prev = prevID
	}

	scan.ScannedAt = scan.ScannedAt.UTC()
	scan.ChainHash = qrchain.Hash(prevHash, scan.QRID, scan.ScannedAt, scan.IPHash)

	result, err := tx.ExecContext(ctx, `
		INSERT INTO qr_scans (qr_id, previous_scan_id, chain_hash, ip_hash, user_agent, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, scan.QRID, prev, scan.ChainHash, scan.IPHash, scan.UserAgent, scan.ScannedAt)
	if err != nil {
		return QRScan{}, 0, fmt.Errorf("insert scan: %w", err)
	}
	scan.ID, err = result.LastInsertId()
	if err != nil {
		return QRScan{}, 0, fmt.Errorf("scan id: %w", err)
	}

	var position int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM qr_scans WHERE qr_id=?`, scan.QRID).Scan(&position); err != nil {
		return QRScan{}, 0, fmt.Errorf("scan position: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE qr_codes SET scan_count = scan_count + 1 WHERE id=?`, scan.QRID); err != nil {
		return QRScan{}, 0, fmt.Errorf("bump scan count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return QRScan{}, 0, fmt.Errorf("commit scan tx: %w", err)
	}
	return scan, position, nil
}

func (s *SQLiteStore) ListScans(ctx context.Context, qrID string) ([]QRScan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, qr_id, previous_scan_id, chain_hash, ip_hash, user_agent, scanned_at
		FROM qr_scans
		WHERE qr_id=?
		ORDER BY id
	`, qrID)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	items := make([]QRScan, 0)
	for rows.Next() {
		var item QRScan
		if err := rows.Scan(&item.ID, &item.QRID, &item.PreviousScanID, &item.ChainHash, &item.IPHash, &item.UserAgent, &item.ScannedAt); err != nil {
			return nil, fmt.Errorf("scan qr scan: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scans: %w", err)
	}
	return items, nil
}
