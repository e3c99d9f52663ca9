package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/widjayanto/authguard/internal/auth/domain"
)

const (
	tokenBlacklistKeyPrefix = "blacklist:"
	userBlacklistKeyPrefix  = "user_blacklist:"
)

// BlacklistService rejects otherwise-valid signed access tokens. Entries
// carry the token's remaining lifetime as TTL, so the registry never needs
// explicit cleanup.
type BlacklistService struct {
	cache             domain.Cache
	accessTokenExpiry time.Duration
}

func NewBlacklistService(cache domain.Cache, accessTokenExpiry time.Duration) *BlacklistService {
	return &BlacklistService{cache: cache, accessTokenExpiry: accessTokenExpiry}
}

// BlacklistToken marks a single access token revoked until its natural
// expiry. The token is only decoded for its exp claim; a token that cannot
// be parsed does not need a blacklist entry.
func (s *BlacklistService) BlacklistToken(ctx context.Context, token string) error {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		log.Printf("warn: not blacklisting unparseable token: %v", err)
		return nil
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}

	ttl := time.Until(exp.Time)
	if ttl <= 0 {
		return nil
	}

	if err := s.cache.Set(ctx, tokenBlacklistKeyPrefix+token, "true", ttl); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}
	return nil
}

func (s *BlacklistService) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	_, ok, err := s.cache.Get(ctx, tokenBlacklistKeyPrefix+token)
	if err != nil {
		return false, fmt.Errorf("failed to check token blacklist: %w", err)
	}
	return ok, nil
}

// BlacklistAllForUser records the current instant under the user's key with
// the maximum access-token lifetime as TTL. Tokens issued before this
// instant are rejected by IsUserBlacklisted, which is what makes "logout
// everywhere" cover tokens already in flight.
func (s *BlacklistService) BlacklistAllForUser(ctx context.Context, userID string) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := s.cache.Set(ctx, userBlacklistKeyPrefix+userID, now, s.accessTokenExpiry); err != nil {
		return fmt.Errorf("failed to blacklist user tokens: %w", err)
	}
	return nil
}

func (s *BlacklistService) IsUserBlacklisted(ctx context.Context, userID string, tokenIssuedAt time.Time) (bool, error) {
	value, ok, err := s.cache.Get(ctx, userBlacklistKeyPrefix+userID)
	if err != nil {
		return false, fmt.Errorf("failed to check user blacklist: %w", err)
	}
	if !ok {
		return false, nil
	}
	millis, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return false, fmt.Errorf("malformed user blacklist entry for %s: %w", userID, err)
	}
	return tokenIssuedAt.Before(time.UnixMilli(millis)), nil
}
