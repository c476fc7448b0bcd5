package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const userColumns = `id, username, email, password_hash, role, is_ai_persona, persona_prompt,
	is_email_verified, verification_token, verification_expires_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var user User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.IsAIPersona,
		&user.PersonaPrompt,
		&user.IsEmailVerified,
		&user.VerificationToken,
		&user.VerificationExpiresAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func (s *SQLiteStore) CreateUser(ctx context.Context, user User) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, role, is_ai_persona, persona_prompt,
			is_email_verified, verification_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, user.ID, user.Username, user.Email, user.PasswordHash, user.Role, user.IsAIPersona,
		user.PersonaPrompt, user.IsEmailVerified, user.VerificationToken, now, now)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, userID)
	return scanUser(row)
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=?`, email)
	return scanUser(row)
}

func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username=?`, username)
	return scanUser(row)
}

func (s *SQLiteStore) ListPersonaUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE is_ai_persona=1 ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list persona users: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan persona user: %w", err)
		}
		items = append(items, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate persona users: %w", err)
	}
	return items, nil
}

func (s *SQLiteStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET verification_token=?, verification_expires_at=?, updated_at=?
		WHERE id=?
	`, token, expiresAt.UTC(), time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("update verification token: %w", err)
	}
	return nil
}

func (s *SQLiteStore) VerifyUserEmail(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET is_email_verified=1, verification_token='', verification_expires_at=NULL, updated_at=?
		WHERE verification_token=? AND verification_token != ''
			AND (verification_expires_at IS NULL OR verification_expires_at > ?)
	`, time.Now().UTC(), token, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("verify email rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *SQLiteStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash=?, updated_at=? WHERE id=?
	`, passwordHash, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT (token) DO UPDATE SET user_id=excluded.user_id, expires_at=excluded.expires_at, used_at=NULL
	`, token, userID, expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM password_resets
		WHERE token=? AND used_at IS NULL AND expires_at > ?
	`, token, time.Now().UTC()).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *SQLiteStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE password_resets SET used_at=? WHERE token=?`, time.Now().UTC(), token)
	if err != nil {
		return fmt.Errorf("mark password reset used: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=excluded.user_id, expires_at=excluded.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.username, u.role, u.is_ai_persona
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = ?
			AND rs.revoked_at IS NULL
			AND rs.expires_at > ?
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash, time.Now().UTC()).Scan(&user.ID, &user.Username, &user.Role, &user.IsAIPersona)
	if err != nil {
		return User{}, err
	}
	if user.Role == "" {
		user.Role = "viewer"
	}
	return user, nil
}

func (s *SQLiteStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=? WHERE token_hash=?`, time.Now().UTC(), tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES (?, ?)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp.UTC())
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *SQLiteStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=?)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// ActivityCounts aggregates the signals that feed tier progression.
func (s *SQLiteStore) ActivityCounts(ctx context.Context, userID string) (ActivityCounts, error) {
	var counts ActivityCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM posts WHERE author_id=?),
			(SELECT COUNT(*) FROM comments WHERE author_id=?),
			(SELECT COALESCE(SUM(count), 0) FROM wordmap_contributions WHERE user_id=?),
			(SELECT COUNT(*) FROM qr_scans sc JOIN qr_codes qc ON qc.id = sc.qr_id WHERE qc.created_by=?)
	`, userID, userID, userID, userID).Scan(&counts.Posts, &counts.Comments, &counts.Contributions, &counts.Scans)
	if err != nil {
		return ActivityCounts{}, fmt.Errorf("activity counts: %w", err)
	}
	return counts, nil
}

// ErrDuplicate is returned by inserts that hit a uniqueness constraint the
// caller treats as a domain condition rather than a server error.
var ErrDuplicate = errors.New("duplicate row")
