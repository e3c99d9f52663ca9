package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/widjayanto/authguard/internal/auth/domain"
)

// DB is the subset of pgxpool.Pool the repository needs; it also matches
// pgxmock's pool interface so tests can substitute a mock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	db DB
}

func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT id, email, password_hash, role, is_email_verified, last_login_at, created_at, updated_at
		FROM users
		WHERE email = $1
		LIMIT 1;
	`
	return r.scanUser(r.db.QueryRow(ctx, query, email))
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT id, email, password_hash, role, is_email_verified, last_login_at, created_at, updated_at
		FROM users
		WHERE id = $1
		LIMIT 1;
	`
	return r.scanUser(r.db.QueryRow(ctx, query, id))
}

func (r *Repository) scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Role,
		&user.IsEmailVerified, &user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *Repository) Create(ctx context.Context, user *domain.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, role, is_email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, user.ID, user.Email, user.PasswordHash, user.Role, user.IsEmailVerified, user.CreatedAt, user.UpdatedAt)
	return err
}

func (r *Repository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1
	`, id, passwordHash)
	return err
}

func (r *Repository) UpdateLastLogin(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE users SET last_login_at = now() WHERE id = $1
	`, id)
	return err
}

func (r *Repository) MarkEmailVerified(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE users SET is_email_verified = TRUE, updated_at = now() WHERE id = $1
	`, id)
	return err
}

func (r *Repository) Store(ctx context.Context, rt *domain.RefreshToken) error {
	query := `INSERT INTO refresh_tokens (id, user_id, token, user_agent, ip_address, expires_at, created_at, is_revoked)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Exec(ctx, query,
		rt.ID, rt.UserID, rt.Token, rt.UserAgent, rt.IPAddress, rt.ExpiresAt, rt.CreatedAt, rt.IsRevoked)
	return err
}

func (r *Repository) GetByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	query := `
		SELECT id, user_id, token, user_agent, ip_address, expires_at, created_at, is_revoked
		FROM refresh_tokens
		WHERE token = $1
		LIMIT 1;
	`
	var rt domain.RefreshToken
	err := r.db.QueryRow(ctx, query, token).Scan(&rt.ID, &rt.UserID, &rt.Token,
		&rt.UserAgent, &rt.IPAddress, &rt.ExpiresAt, &rt.CreatedAt, &rt.IsRevoked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	return &rt, nil
}

// Revoke is the compare-and-swap guarding refresh rotation: the WHERE
// clause only matches a live row, so of two racing calls exactly one sees
// a row flipped.
func (r *Repository) Revoke(ctx context.Context, token string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE refresh_tokens SET is_revoked = TRUE WHERE token = $1 AND is_revoked = FALSE
	`, token)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE refresh_tokens SET is_revoked = TRUE WHERE user_id = $1 AND is_revoked = FALSE
	`, userID)
	return err
}

func (r *Repository) Get(ctx context.Context, userID string) (*domain.MfaSecret, error) {
	query := `
		SELECT user_id, secret, is_enabled, backup_codes, backup_codes_used, created_at, updated_at
		FROM mfa_secrets
		WHERE user_id = $1
		LIMIT 1;
	`
	var secret domain.MfaSecret
	err := r.db.QueryRow(ctx, query, userID).Scan(&secret.UserID, &secret.Secret,
		&secret.IsEnabled, &secret.BackupCodes, &secret.BackupCodesUsed, &secret.CreatedAt, &secret.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get mfa secret: %w", err)
	}
	return &secret, nil
}

func (r *Repository) Upsert(ctx context.Context, secret *domain.MfaSecret) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO mfa_secrets (user_id, secret, is_enabled, backup_codes, backup_codes_used, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id)
		DO UPDATE SET
			secret = EXCLUDED.secret,
			is_enabled = EXCLUDED.is_enabled,
			backup_codes = EXCLUDED.backup_codes,
			backup_codes_used = EXCLUDED.backup_codes_used,
			updated_at = EXCLUDED.updated_at
	`, secret.UserID, secret.Secret, secret.IsEnabled, secret.BackupCodes,
		secret.BackupCodesUsed, secret.CreatedAt, secret.UpdatedAt)
	return err
}

func (r *Repository) Enable(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE mfa_secrets SET is_enabled = TRUE, updated_at = now() WHERE user_id = $1
	`, userID)
	return err
}

func (r *Repository) Delete(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM mfa_secrets WHERE user_id = $1
	`, userID)
	return err
}

// ConsumeBackupCode removes the code and bumps the used counter in one
// conditional statement, so a code replayed concurrently is consumed at
// most once.
func (r *Repository) ConsumeBackupCode(ctx context.Context, userID, code string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE mfa_secrets
		SET backup_codes = array_remove(backup_codes, $2),
		    backup_codes_used = backup_codes_used + 1,
		    updated_at = now()
		WHERE user_id = $1 AND $2 = ANY(backup_codes)
	`, userID, code)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) ReplaceBackupCodes(ctx context.Context, userID string, codes []string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE mfa_secrets
		SET backup_codes = $2, backup_codes_used = 0, updated_at = now()
		WHERE user_id = $1
	`, userID, codes)
	return err
}

func (r *Repository) Record(ctx context.Context, attempt *domain.LoginAttempt) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO login_attempts (id, email, user_id, ip_address, user_agent, is_successful, failure_reason, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8)
	`, attempt.ID, attempt.Email, attempt.UserID, attempt.IPAddress, attempt.UserAgent,
		attempt.IsSuccessful, attempt.FailureReason, attempt.CreatedAt)
	return err
}

func (r *Repository) CountRecentFailures(ctx context.Context, email string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE email = $1 AND is_successful = FALSE AND created_at > $2
	`
	var count int
	if err := r.db.QueryRow(ctx, query, email, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count login attempts: %w", err)
	}
	return count, nil
}

func (r *Repository) Append(ctx context.Context, entry *domain.SecurityLog) error {
	var metadata []byte
	if entry.Metadata != nil {
		var err error
		metadata, err = json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode security log metadata: %w", err)
		}
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO security_logs (id, event_type, user_id, email, ip_address, user_agent, metadata, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8)
	`, entry.ID, string(entry.EventType), entry.UserID, entry.Email,
		entry.IPAddress, entry.UserAgent, metadata, entry.CreatedAt)
	return err
}

func (r *Repository) List(ctx context.Context, userID string, limit, offset int) ([]domain.SecurityLog, error) {
	query := `
		SELECT id, event_type, COALESCE(user_id::text, ''), COALESCE(email, ''), ip_address, COALESCE(user_agent, ''), metadata, created_at
		FROM security_logs
		WHERE ($1 = '' OR user_id::text = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list security logs: %w", err)
	}
	defer rows.Close()

	var entries []domain.SecurityLog
	for rows.Next() {
		var (
			entry     domain.SecurityLog
			eventType string
			metadata  []byte
		)
		if err := rows.Scan(&entry.ID, &eventType, &entry.UserID, &entry.Email,
			&entry.IPAddress, &entry.UserAgent, &metadata, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan security log: %w", err)
		}
		entry.EventType = domain.SecurityEventType(eventType)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode security log metadata: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
