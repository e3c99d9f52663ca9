package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/widjayanto/authguard/internal/auth/domain"
	autherror "github.com/widjayanto/authguard/internal/errors"
)

const verificationTokenTTL = time.Hour

// VerificationService issues single-use, TTL-bound tokens for email
// verification and password reset flows.
type VerificationService struct {
	cache domain.Cache
}

func NewVerificationService(cache domain.Cache) *VerificationService {
	return &VerificationService{cache: cache}
}

// Issue stores a random 128-bit token mapped to the email for one hour and
// returns it.
func (s *VerificationService) Issue(ctx context.Context, purpose, email string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate verification token: %w", err)
	}
	token := hex.EncodeToString(buf)

	if err := s.cache.Set(ctx, purpose+":"+token, email, verificationTokenTTL); err != nil {
		return "", fmt.Errorf("failed to store verification token: %w", err)
	}
	return token, nil
}

// Consume resolves a token to its email and deletes it in the same step, so
// a token authorizes exactly one verification even within its TTL.
func (s *VerificationService) Consume(ctx context.Context, purpose, token string) (string, error) {
	email, ok, err := s.cache.GetDel(ctx, purpose+":"+token)
	if err != nil {
		return "", fmt.Errorf("failed to consume verification token: %w", err)
	}
	if !ok {
		return "", autherror.ErrInvalidOrExpiredToken
	}
	return email, nil
}
