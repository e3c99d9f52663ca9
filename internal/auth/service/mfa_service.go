package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/widjayanto/authguard/internal/auth/domain"
	"github.com/widjayanto/authguard/internal/auth/dto"
	autherror "github.com/widjayanto/authguard/internal/errors"
	"github.com/widjayanto/authguard/pkg/constant"
)

// totpSkew is the number of 30-second steps accepted on either side of the
// current one, tolerating ~60s of client clock drift.
const totpSkew = 2

// MfaService drives the per-user MFA state machine: unenrolled, pending
// verification (secret stored, not enabled), enabled, and back to unenrolled
// on disable.
type MfaService struct {
	secrets domain.MfaSecretRepository
	issuer  string
}

func NewMfaService(secrets domain.MfaSecretRepository, issuer string) *MfaService {
	return &MfaService{secrets: secrets, issuer: issuer}
}

// Setup generates a fresh shared secret and backup codes for the user and
// stores them disabled. Enabling requires proving possession of the secret
// via Enable. Re-running setup replaces any previous pending secret.
func (s *MfaService) Setup(ctx context.Context, userID, email string) (*dto.MfaSetupOutput, error) {
	existing, err := s.secrets.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load mfa secret: %w", err)
	}
	if existing != nil && existing.IsEnabled {
		return nil, autherror.ErrMfaAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: email,
		SecretSize:  32,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate totp secret: %w", err)
	}

	backupCodes, err := generateBackupCodes(constant.BackupCodeCount)
	if err != nil {
		return nil, fmt.Errorf("failed to generate backup codes: %w", err)
	}

	now := time.Now()
	secret := &domain.MfaSecret{
		UserID:      userID,
		Secret:      key.Secret(),
		IsEnabled:   false,
		BackupCodes: backupCodes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.secrets.Upsert(ctx, secret); err != nil {
		return nil, fmt.Errorf("failed to store mfa secret: %w", err)
	}

	return &dto.MfaSetupOutput{
		Secret:     key.Secret(),
		OtpauthURL: key.URL(),
	}, nil
}

// VerifyTotp checks a time-based code against the user's stored secret,
// accepting codes up to totpSkew steps before or after the current one.
func (s *MfaService) VerifyTotp(ctx context.Context, userID, code string) (bool, error) {
	secret, err := s.secrets.Get(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to load mfa secret: %w", err)
	}
	if secret == nil {
		return false, autherror.ErrMfaNotSetUp
	}

	valid, err := totp.ValidateCustom(code, secret.Secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false, nil
	}
	return valid, nil
}

// VerifyBackupCode consumes a single-use backup code. The removal is a
// conditional repository update, so a replayed code succeeds at most once.
func (s *MfaService) VerifyBackupCode(ctx context.Context, userID, code string) (bool, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return false, nil
	}

	consumed, err := s.secrets.ConsumeBackupCode(ctx, userID, normalized)
	if err != nil {
		return false, fmt.Errorf("failed to consume backup code: %w", err)
	}
	return consumed, nil
}

// Enable transitions a pending secret to enabled after the user proves
// possession with a valid TOTP code. The backup codes are returned here
// exactly once.
func (s *MfaService) Enable(ctx context.Context, userID, code string) ([]string, error) {
	valid, err := s.VerifyTotp(ctx, userID, code)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, autherror.ErrInvalidMfaCode
	}

	if err := s.secrets.Enable(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to enable mfa: %w", err)
	}

	secret, err := s.secrets.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load mfa secret: %w", err)
	}
	if secret == nil {
		return nil, autherror.ErrMfaNotSetUp
	}
	return secret.BackupCodes, nil
}

// Disable removes the secret and backup codes outright, returning the user
// to the unenrolled state; subsequent verifications fail rather than
// matching a lingering secret.
func (s *MfaService) Disable(ctx context.Context, userID string) error {
	if err := s.secrets.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to disable mfa: %w", err)
	}
	return nil
}

// IsEnabled is the single source of truth for whether a login requires a
// second factor.
func (s *MfaService) IsEnabled(ctx context.Context, userID string) (bool, error) {
	secret, err := s.secrets.Get(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to load mfa secret: %w", err)
	}
	return secret != nil && secret.IsEnabled, nil
}

func (s *MfaService) Status(ctx context.Context, userID string) (*dto.MfaStatusOutput, error) {
	secret, err := s.secrets.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load mfa secret: %w", err)
	}
	if secret == nil {
		return &dto.MfaStatusOutput{IsEnabled: false}, nil
	}
	return &dto.MfaStatusOutput{
		IsEnabled:        secret.IsEnabled,
		BackupCodesCount: len(secret.BackupCodes),
	}, nil
}

// RegenerateBackupCodes replaces the remaining backup codes with a fresh
// set and resets the used counter.
func (s *MfaService) RegenerateBackupCodes(ctx context.Context, userID string) ([]string, error) {
	secret, err := s.secrets.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load mfa secret: %w", err)
	}
	if secret == nil {
		return nil, autherror.ErrMfaNotSetUp
	}

	codes, err := generateBackupCodes(constant.BackupCodeCount)
	if err != nil {
		return nil, fmt.Errorf("failed to generate backup codes: %w", err)
	}
	if err := s.secrets.ReplaceBackupCodes(ctx, userID, codes); err != nil {
		return nil, fmt.Errorf("failed to replace backup codes: %w", err)
	}
	return codes, nil
}

func generateBackupCodes(count int) ([]string, error) {
	codes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		buf := make([]byte, 4)
		if _, err := rand.Read(buf); err != nil {
			return nil, err
		}
		codes = append(codes, strings.ToUpper(hex.EncodeToString(buf)))
	}
	return codes, nil
}
