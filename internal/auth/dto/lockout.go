package dto

import "time"

type LockoutInfo struct {
	IsLocked          bool       `json:"is_locked"`
	LockedUntil       *time.Time `json:"locked_until,omitempty"`
	AttemptsRemaining int        `json:"attempts_remaining"`
}
