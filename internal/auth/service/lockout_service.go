package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/widjayanto/authguard/internal/auth/domain"
	"github.com/widjayanto/authguard/internal/auth/dto"
)

const lockoutKeyPrefix = "lockout:"

// LockoutService counts failed login attempts per email over a sliding
// window and writes a temporary lockout record once the threshold is hit.
// The lockout lives in the cache with a TTL and is additionally cleared
// lazily on reads past its deadline.
type LockoutService struct {
	attempts    domain.LoginAttemptRepository
	cache       domain.Cache
	securityLog *SecurityLogService

	maxFailedAttempts int
	attemptWindow     time.Duration
	lockoutDuration   time.Duration
}

func NewLockoutService(
	attempts domain.LoginAttemptRepository,
	cache domain.Cache,
	securityLog *SecurityLogService,
	maxFailedAttempts, windowMinutes, lockoutMinutes int,
) *LockoutService {
	return &LockoutService{
		attempts:          attempts,
		cache:             cache,
		securityLog:       securityLog,
		maxFailedAttempts: maxFailedAttempts,
		attemptWindow:     time.Duration(windowMinutes) * time.Minute,
		lockoutDuration:   time.Duration(lockoutMinutes) * time.Minute,
	}
}

// RecordAttempt appends a login attempt row. A successful attempt clears
// any lockout for the email; a failed one re-evaluates the threshold and
// locks the account when reached.
func (s *LockoutService) RecordAttempt(ctx context.Context, email, ipAddress, userAgent string, successful bool, user *domain.User, failureReason string) error {
	attempt := &domain.LoginAttempt{
		ID:            uuid.NewString(),
		Email:         email,
		IPAddress:     ipAddress,
		UserAgent:     userAgent,
		IsSuccessful:  successful,
		FailureReason: failureReason,
		CreatedAt:     time.Now(),
	}
	if user != nil {
		attempt.UserID = user.ID
	}

	if err := s.attempts.Record(ctx, attempt); err != nil {
		return fmt.Errorf("failed to record login attempt: %w", err)
	}

	if successful {
		if err := s.Clear(ctx, email); err != nil {
			return err
		}
		s.securityLog.Record(ctx, domain.EventLoginSuccess, ipAddress, userAgent, attempt.UserID, email, nil)
		return nil
	}

	s.securityLog.Record(ctx, domain.EventLoginFailed, ipAddress, userAgent, attempt.UserID, email, map[string]any{
		"reason": failureReason,
	})

	return s.checkAndLock(ctx, email, ipAddress, userAgent, attempt.UserID)
}

// IsLocked reports whether the email is currently locked out. A record past
// its deadline is cleared on read.
func (s *LockoutService) IsLocked(ctx context.Context, email string) (bool, error) {
	lockedUntil, ok, err := s.lockedUntil(ctx, email)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if time.Now().After(lockedUntil) {
		if err := s.Clear(ctx, email); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *LockoutService) LockoutInfo(ctx context.Context, email string) (*dto.LockoutInfo, error) {
	lockedUntil, ok, err := s.lockedUntil(ctx, email)
	if err != nil {
		return nil, err
	}
	if ok {
		if time.Now().Before(lockedUntil) {
			return &dto.LockoutInfo{IsLocked: true, LockedUntil: &lockedUntil}, nil
		}
		if err := s.Clear(ctx, email); err != nil {
			return nil, err
		}
	}

	failures, err := s.recentFailures(ctx, email)
	if err != nil {
		return nil, err
	}
	remaining := s.maxFailedAttempts - failures
	if remaining < 0 {
		remaining = 0
	}
	return &dto.LockoutInfo{IsLocked: false, AttemptsRemaining: remaining}, nil
}

// Unlock clears a lockout ahead of its deadline, e.g. by admin action.
func (s *LockoutService) Unlock(ctx context.Context, email, unlockedBy string) error {
	if err := s.Clear(ctx, email); err != nil {
		return err
	}
	s.securityLog.Record(ctx, domain.EventAccountUnlocked, "system", "admin-action", "", email, map[string]any{
		"unlocked_by": unlockedBy,
	})
	return nil
}

func (s *LockoutService) Clear(ctx context.Context, email string) error {
	if err := s.cache.Delete(ctx, lockoutKeyPrefix+email); err != nil {
		return fmt.Errorf("failed to clear lockout: %w", err)
	}
	return nil
}

func (s *LockoutService) lockedUntil(ctx context.Context, email string) (time.Time, bool, error) {
	value, ok, err := s.cache.Get(ctx, lockoutKeyPrefix+email)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read lockout record: %w", err)
	}
	if !ok {
		return time.Time{}, false, nil
	}
	millis, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("malformed lockout record for %s: %w", email, err)
	}
	return time.UnixMilli(millis), true, nil
}

func (s *LockoutService) recentFailures(ctx context.Context, email string) (int, error) {
	since := time.Now().Add(-s.attemptWindow)
	count, err := s.attempts.CountRecentFailures(ctx, email, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count failed attempts: %w", err)
	}
	return count, nil
}

func (s *LockoutService) checkAndLock(ctx context.Context, email, ipAddress, userAgent, userID string) error {
	failures, err := s.recentFailures(ctx, email)
	if err != nil {
		return err
	}
	if failures < s.maxFailedAttempts {
		return nil
	}

	lockedUntil := time.Now().Add(s.lockoutDuration)
	key := lockoutKeyPrefix + email
	if err := s.cache.Set(ctx, key, strconv.FormatInt(lockedUntil.UnixMilli(), 10), s.lockoutDuration); err != nil {
		return fmt.Errorf("failed to write lockout record: %w", err)
	}

	s.securityLog.Record(ctx, domain.EventAccountLocked, ipAddress, userAgent, userID, email, map[string]any{
		"locked_until": lockedUntil.Format(time.RFC3339),
		"max_attempts": s.maxFailedAttempts,
	})
	return nil
}
