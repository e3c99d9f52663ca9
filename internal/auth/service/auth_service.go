package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/widjayanto/authguard/config"
	"github.com/widjayanto/authguard/internal/auth/domain"
	"github.com/widjayanto/authguard/internal/auth/dto"
	autherror "github.com/widjayanto/authguard/internal/errors"
	"github.com/widjayanto/authguard/pkg/constant"
)

// AuthService composes the credential, MFA, lockout, blacklist and token
// components into the externally visible auth flows.
type AuthService struct {
	users        domain.UserRepository
	tokens       TokenGenerator
	passwords    *PasswordService
	mfa          *MfaService
	lockout      *LockoutService
	blacklist    *BlacklistService
	verification *VerificationService
	securityLog  *SecurityLogService
	mailer       domain.Mailer
	cfg          *config.Config
}

func NewAuthService(
	users domain.UserRepository,
	tokens TokenGenerator,
	passwords *PasswordService,
	mfa *MfaService,
	lockout *LockoutService,
	blacklist *BlacklistService,
	verification *VerificationService,
	securityLog *SecurityLogService,
	mailer domain.Mailer,
	cfg *config.Config,
) *AuthService {
	return &AuthService{
		users:        users,
		tokens:       tokens,
		passwords:    passwords,
		mfa:          mfa,
		lockout:      lockout,
		blacklist:    blacklist,
		verification: verification,
		securityLog:  securityLog,
		mailer:       mailer,
		cfg:          cfg,
	}
}

func (s *AuthService) Register(ctx context.Context, input dto.RegisterInput) (*domain.User, error) {
	existing, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, autherror.ErrEmailAlreadyInUse
	}

	hashed, err := s.passwords.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        input.Email,
		PasswordHash: hashed,
		Role:         constant.DefaultUserRole,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.sendVerificationMail(ctx, user.Email)

	return user, nil
}

// Login runs the full credential check: lockout state first, then the
// password, then the second factor when one is enrolled. Lockout rejects
// before the password is ever compared, so a locked account reveals nothing
// about credential correctness.
func (s *AuthService) Login(ctx context.Context, input dto.LoginInput) (*dto.TokenResponse, error) {
	locked, err := s.lockout.IsLocked(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, autherror.ErrAccountLocked
	}

	user, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if user == nil || !s.passwords.Verify(input.Password, user.PasswordHash) {
		if err := s.lockout.RecordAttempt(ctx, input.Email, input.IPAddress, input.UserAgent, false, user, "invalid_credentials"); err != nil {
			return nil, err
		}
		return nil, autherror.ErrInvalidCredentials
	}

	mfaEnabled, err := s.mfa.IsEnabled(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if mfaEnabled {
		if err := s.verifySecondFactor(ctx, user, input); err != nil {
			return nil, err
		}
		s.securityLog.Record(ctx, domain.EventMfaSuccess, input.IPAddress, input.UserAgent, user.ID, user.Email, nil)
	}

	if err := s.lockout.RecordAttempt(ctx, input.Email, input.IPAddress, input.UserAgent, true, user, ""); err != nil {
		return nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		log.Printf("warn: failed to update last login for user %s: %v", user.ID, err)
	}

	return s.issuePair(ctx, user, input.UserAgent, input.IPAddress)
}

func (s *AuthService) verifySecondFactor(ctx context.Context, user *domain.User, input dto.LoginInput) error {
	if input.TotpCode == "" && input.BackupCode == "" {
		s.securityLog.Record(ctx, domain.EventMfaFailed, input.IPAddress, input.UserAgent, user.ID, user.Email, map[string]any{
			"reason": "code_missing",
		})
		return autherror.ErrMfaRequired
	}

	var (
		valid bool
		err   error
	)
	if input.TotpCode != "" {
		valid, err = s.mfa.VerifyTotp(ctx, user.ID, input.TotpCode)
	} else {
		valid, err = s.mfa.VerifyBackupCode(ctx, user.ID, input.BackupCode)
	}
	if err != nil {
		return err
	}
	if !valid {
		s.securityLog.Record(ctx, domain.EventMfaFailed, input.IPAddress, input.UserAgent, user.ID, user.Email, map[string]any{
			"reason": "code_invalid",
		})
		if err := s.lockout.RecordAttempt(ctx, user.Email, input.IPAddress, input.UserAgent, false, user, "invalid_mfa_code"); err != nil {
			return err
		}
		return autherror.ErrInvalidMfaCode
	}
	return nil
}

func (s *AuthService) Refresh(ctx context.Context, input dto.RefreshInput) (*dto.TokenResponse, error) {
	access, refresh, err := s.tokens.Rotate(ctx, input.RefreshToken)
	if err != nil {
		return nil, err
	}
	return &dto.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    constant.DefaultTokenType,
		ExpiresIn:    int(s.tokens.GetAccessTokenExpiry().Seconds()),
	}, nil
}

func (s *AuthService) Logout(ctx context.Context, input dto.LogoutInput) error {
	if err := s.tokens.Revoke(ctx, input.RefreshToken); err != nil {
		return err
	}
	if input.AccessToken != "" {
		if err := s.blacklist.BlacklistToken(ctx, input.AccessToken); err != nil {
			return err
		}
	}
	s.securityLog.Record(ctx, domain.EventTokenRevoked, "", "", "", "", nil)
	return nil
}

func (s *AuthService) LogoutAllDevices(ctx context.Context, userID string) error {
	if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
		return err
	}
	s.securityLog.Record(ctx, domain.EventTokenRevoked, "", "", userID, "", map[string]any{
		"scope": "all_devices",
	})
	return nil
}

// VerifyEmail consumes a verification token and flags the user's email as
// trusted. The token is gone after the first consumption attempt even when
// the user has since disappeared.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	email, err := s.verification.Consume(ctx, constant.PurposeEmailVerification, token)
	if err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return autherror.ErrUserNotFound
	}

	if err := s.users.MarkEmailVerified(ctx, user.ID); err != nil {
		return err
	}

	s.securityLog.Record(ctx, domain.EventEmailVerified, "", "", user.ID, user.Email, nil)
	return nil
}

// ResendVerificationEmail is idempotent for already-verified users: it
// reports success without issuing a token.
func (s *AuthService) ResendVerificationEmail(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return autherror.ErrUserNotFound
	}
	if user.IsEmailVerified {
		return nil
	}

	s.sendVerificationMail(ctx, user.Email)
	return nil
}

// ForgotPassword issues a reset token for existing accounts. Unknown emails
// get the same silent success, so the endpoint cannot be used to enumerate
// accounts.
func (s *AuthService) ForgotPassword(ctx context.Context, input dto.ForgotPasswordInput) error {
	user, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	token, err := s.verification.Issue(ctx, constant.PurposePasswordReset, user.Email)
	if err != nil {
		return err
	}

	body := fmt.Sprintf("Reset your password by clicking on the following link: %s", s.cfg.PasswordResetURL(token))
	if err := s.mailer.Send(ctx, user.Email, "Password Reset", body); err != nil {
		log.Printf("warn: failed to send password reset email to %s: %v", user.Email, err)
	}

	s.securityLog.Record(ctx, domain.EventPasswordResetRequested, input.IPAddress, input.UserAgent, user.ID, user.Email, nil)
	return nil
}

// ResetPassword consumes a reset token, overwrites the password hash and
// revokes every outstanding session for the user.
func (s *AuthService) ResetPassword(ctx context.Context, input dto.ResetPasswordInput) error {
	email, err := s.verification.Consume(ctx, constant.PurposePasswordReset, input.Token)
	if err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return autherror.ErrUserNotFound
	}

	hashed, err := s.passwords.Hash(input.NewPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hashed); err != nil {
		return err
	}

	if err := s.tokens.RevokeAllForUser(ctx, user.ID); err != nil {
		return err
	}

	s.securityLog.Record(ctx, domain.EventPasswordResetCompleted, input.IPAddress, input.UserAgent, user.ID, user.Email, nil)
	return nil
}

func (s *AuthService) EnableMfa(ctx context.Context, userID, email, totpCode string) (*dto.MfaEnableOutput, error) {
	codes, err := s.mfa.Enable(ctx, userID, totpCode)
	if err != nil {
		return nil, err
	}
	s.securityLog.Record(ctx, domain.EventMfaEnabled, "", "", userID, email, nil)
	return &dto.MfaEnableOutput{BackupCodes: codes}, nil
}

func (s *AuthService) DisableMfa(ctx context.Context, userID, email string) error {
	if err := s.mfa.Disable(ctx, userID); err != nil {
		return err
	}
	s.securityLog.Record(ctx, domain.EventMfaDisabled, "", "", userID, email, nil)
	return nil
}

func (s *AuthService) issuePair(ctx context.Context, user *domain.User, userAgent, ipAddress string) (*dto.TokenResponse, error) {
	access, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefreshToken(ctx, user, userAgent, ipAddress)
	if err != nil {
		return nil, err
	}
	return &dto.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    constant.DefaultTokenType,
		ExpiresIn:    int(s.tokens.GetAccessTokenExpiry().Seconds()),
	}, nil
}

func (s *AuthService) sendVerificationMail(ctx context.Context, email string) {
	token, err := s.verification.Issue(ctx, constant.PurposeEmailVerification, email)
	if err != nil {
		log.Printf("warn: failed to issue verification token for %s: %v", email, err)
		return
	}

	body := fmt.Sprintf("Please verify your email by clicking on the following link: %s", s.cfg.VerificationURL(token))
	if err := s.mailer.Send(ctx, email, "Email Verification", body); err != nil {
		log.Printf("warn: failed to send verification email to %s: %v", email, err)
	}
}
