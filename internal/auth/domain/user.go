package domain

import "time"

type User struct {
	ID              string
	Email           string
	PasswordHash    string
	Role            string
	IsEmailVerified bool
	LastLoginAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	UserAgent string
	IPAddress string
	ExpiresAt time.Time
	CreatedAt time.Time
	IsRevoked bool
}

func (rt *RefreshToken) IsExpired() bool {
	return time.Now().After(rt.ExpiresAt)
}

type LoginAttempt struct {
	ID            string
	Email         string
	UserID        string
	IPAddress     string
	UserAgent     string
	IsSuccessful  bool
	FailureReason string
	CreatedAt     time.Time
}

type MfaSecret struct {
	UserID          string
	Secret          string
	IsEnabled       bool
	BackupCodes     []string
	BackupCodesUsed int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
