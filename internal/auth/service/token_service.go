package service

//go:generate mockgen -destination=../../mocks/mock_token_generator.go -package=mocks github.com/widjayanto/authguard/internal/auth/service TokenGenerator

import (
	"fmt"
	"time"

	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/widjayanto/authguard/internal/auth/domain"
	autherror "github.com/widjayanto/authguard/internal/errors"
)

type TokenGenerator interface {
	IssueAccessToken(user *domain.User) (string, error)
	IssueRefreshToken(ctx context.Context, user *domain.User, userAgent, ipAddress string) (string, error)
	Rotate(ctx context.Context, refreshToken string) (string, string, error)
	Revoke(ctx context.Context, refreshToken string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	VerifyAccessToken(tokenString string) (*JWTCustomClaims, error)
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
}

// UserTokenBlacklister invalidates already-issued access tokens for a user.
type UserTokenBlacklister interface {
	BlacklistAllForUser(ctx context.Context, userID string) error
}

type TokenService struct {
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration

	users         domain.UserRepository
	refreshTokens domain.RefreshTokenRepository
	blacklist     UserTokenBlacklister
}

type JWTCustomClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role,omitempty"`
}

func NewTokenService(
	accessSecret, refreshSecret string,
	accessMinutes, refreshMinutes int,
	users domain.UserRepository,
	refreshTokens domain.RefreshTokenRepository,
	blacklist UserTokenBlacklister,
) *TokenService {
	return &TokenService{
		AccessTokenSecret:  accessSecret,
		RefreshTokenSecret: refreshSecret,
		AccessTokenExpiry:  time.Duration(accessMinutes) * time.Minute,
		RefreshTokenExpiry: time.Duration(refreshMinutes) * time.Minute,
		users:              users,
		refreshTokens:      refreshTokens,
		blacklist:          blacklist,
	}
}

func (ts *TokenService) IssueAccessToken(user *domain.User) (string, error) {
	now := time.Now()

	claims := JWTCustomClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(ts.AccessTokenSecret))
}

// IssueRefreshToken persists a server-side refresh token row keyed by a
// random opaque value, then returns that value wrapped in a signed JWT
// (jti claim) so the bearer token is verifiable without a lookup. The row
// is what makes revocation-before-expiry possible.
func (ts *TokenService) IssueRefreshToken(ctx context.Context, user *domain.User, userAgent, ipAddress string) (string, error) {
	now := time.Now()
	opaque := uuid.NewString()

	row := &domain.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     opaque,
		UserAgent: userAgent,
		IPAddress: ipAddress,
		ExpiresAt: now.Add(ts.RefreshTokenExpiry),
		CreatedAt: now,
	}
	if err := ts.refreshTokens.Store(ctx, row); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	claims := JWTCustomClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        opaque,
			ExpiresAt: jwt.NewNumericDate(row.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(ts.RefreshTokenSecret))
}

// Rotate exchanges a still-valid refresh token for a fresh pair. The old row
// is revoked with a conditional update before anything new is issued; when
// two rotations race on the same token, the loser observes the flip and
// fails instead of minting a second pair.
func (ts *TokenService) Rotate(ctx context.Context, refreshToken string) (string, string, error) {
	claims, err := ts.parseRefreshToken(refreshToken)
	if err != nil {
		return "", "", autherror.ErrInvalidRefreshToken
	}

	row, err := ts.refreshTokens.GetByToken(ctx, claims.ID)
	if err != nil {
		return "", "", fmt.Errorf("failed to look up refresh token: %w", err)
	}
	if row == nil || row.IsRevoked || row.IsExpired() {
		return "", "", autherror.ErrInvalidRefreshToken
	}

	revoked, err := ts.refreshTokens.Revoke(ctx, row.Token)
	if err != nil {
		return "", "", fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	if !revoked {
		// Another rotation won the race.
		return "", "", autherror.ErrInvalidRefreshToken
	}

	user, err := ts.users.GetByID(ctx, row.UserID)
	if err != nil {
		return "", "", fmt.Errorf("failed to load user for rotation: %w", err)
	}
	if user == nil {
		return "", "", autherror.ErrInvalidRefreshToken
	}

	access, err := ts.IssueAccessToken(user)
	if err != nil {
		return "", "", fmt.Errorf("failed to issue access token: %w", err)
	}

	refresh, err := ts.IssueRefreshToken(ctx, user, row.UserAgent, row.IPAddress)
	if err != nil {
		return "", "", err
	}

	return access, refresh, nil
}

// Revoke marks the presented refresh token revoked. Revoking an
// already-revoked token is a no-op.
func (ts *TokenService) Revoke(ctx context.Context, refreshToken string) error {
	claims, err := ts.parseRefreshToken(refreshToken)
	if err != nil {
		return autherror.ErrInvalidRefreshToken
	}

	if _, err := ts.refreshTokens.Revoke(ctx, claims.ID); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAllForUser revokes every live refresh token for the user and
// blacklists access tokens already in flight.
func (ts *TokenService) RevokeAllForUser(ctx context.Context, userID string) error {
	if err := ts.refreshTokens.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	if err := ts.blacklist.BlacklistAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to blacklist access tokens: %w", err)
	}
	return nil
}

// VerifyAccessToken parses and validates the given access token string.
func (ts *TokenService) VerifyAccessToken(tokenString string) (*JWTCustomClaims, error) {
	return ts.parse(tokenString, ts.AccessTokenSecret)
}

func (ts *TokenService) parseRefreshToken(tokenString string) (*JWTCustomClaims, error) {
	return ts.parse(tokenString, ts.RefreshTokenSecret)
}

func (ts *TokenService) parse(tokenString, secret string) (*JWTCustomClaims, error) {
	claims := &JWTCustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Ensure the token's signing method is HMAC.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

func (ts *TokenService) GetAccessTokenExpiry() time.Duration {
	return ts.AccessTokenExpiry
}

func (ts *TokenService) GetRefreshTokenExpiry() time.Duration {
	return ts.RefreshTokenExpiry
}
