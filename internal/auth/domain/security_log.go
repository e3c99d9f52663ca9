package domain

import "time"

type SecurityEventType string

const (
	EventLoginSuccess           SecurityEventType = "login_success"
	EventLoginFailed            SecurityEventType = "login_failed"
	EventPasswordResetRequested SecurityEventType = "password_reset_requested"
	EventPasswordResetCompleted SecurityEventType = "password_reset_completed"
	EventEmailVerified          SecurityEventType = "email_verified"
	EventMfaEnabled             SecurityEventType = "mfa_enabled"
	EventMfaDisabled            SecurityEventType = "mfa_disabled"
	EventMfaSuccess             SecurityEventType = "mfa_success"
	EventMfaFailed              SecurityEventType = "mfa_failed"
	EventAccountLocked          SecurityEventType = "account_locked"
	EventAccountUnlocked        SecurityEventType = "account_unlocked"
	EventTokenRevoked           SecurityEventType = "token_revoked"
	EventSuspiciousActivity     SecurityEventType = "suspicious_activity"
)

type SecurityLog struct {
	ID        string
	EventType SecurityEventType
	UserID    string
	Email     string
	IPAddress string
	UserAgent string
	Metadata  map[string]any
	CreatedAt time.Time
}
