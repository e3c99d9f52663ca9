package domain

//go:generate mockgen -source=interface.go -destination=../../mocks/mock_domain.go -package=mocks

import (
	"context"
	"time"
)

// UserRepository is the user directory. GetByEmail and GetByID return
// (nil, nil) when no user exists.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, user *User) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id string) error
	MarkEmailVerified(ctx context.Context, id string) error
}

type RefreshTokenRepository interface {
	Store(ctx context.Context, rt *RefreshToken) error
	GetByToken(ctx context.Context, token string) (*RefreshToken, error)
	// Revoke flips is_revoked for the given opaque token only if it is not
	// already revoked. It reports whether this call performed the flip, so
	// concurrent rotations of the same token see exactly one winner.
	Revoke(ctx context.Context, token string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID string) error
}

type MfaSecretRepository interface {
	Get(ctx context.Context, userID string) (*MfaSecret, error)
	Upsert(ctx context.Context, secret *MfaSecret) error
	Enable(ctx context.Context, userID string) error
	Delete(ctx context.Context, userID string) error
	// ConsumeBackupCode atomically removes code from the user's backup code
	// set and increments the used counter. It reports whether the code was
	// present, so a replayed code can be consumed at most once.
	ConsumeBackupCode(ctx context.Context, userID, code string) (bool, error)
	ReplaceBackupCodes(ctx context.Context, userID string, codes []string) error
}

type LoginAttemptRepository interface {
	Record(ctx context.Context, attempt *LoginAttempt) error
	CountRecentFailures(ctx context.Context, email string, since time.Time) (int, error)
}

type SecurityLogRepository interface {
	Append(ctx context.Context, entry *SecurityLog) error
	List(ctx context.Context, userID string, limit, offset int) ([]SecurityLog, error)
}

// Cache is an ephemeral key-value store with TTL expiry.
type Cache interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns ok=false when the key is absent or expired.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// GetDel atomically reads and deletes a key, so single-use tokens stay
	// single-use under concurrent consumption.
	GetDel(ctx context.Context, key string) (value string, ok bool, err error)
	Delete(ctx context.Context, key string) error
}

// Mailer delivers outbound mail. Callers treat failures as best-effort.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}
