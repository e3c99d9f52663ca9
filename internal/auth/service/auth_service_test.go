package service_test

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/widjayanto/authguard/config"
	"github.com/widjayanto/authguard/internal/auth/domain"
	"github.com/widjayanto/authguard/internal/auth/dto"
	"github.com/widjayanto/authguard/internal/auth/service"
	autherror "github.com/widjayanto/authguard/internal/errors"
	"github.com/widjayanto/authguard/internal/mocks"
	"github.com/widjayanto/authguard/pkg/constant"
	"golang.org/x/crypto/bcrypt"
)

type authServiceFixture struct {
	users    *mocks.MockUserRepository
	tokens   *mocks.MockTokenGenerator
	secrets  *mocks.MockMfaSecretRepository
	attempts *mocks.MockLoginAttemptRepository
	cache    *mocks.MockCache
	logs     *mocks.MockSecurityLogRepository
	mailer   *mocks.MockMailer

	svc *service.AuthService
}

func newAuthServiceFixture(ctrl *gomock.Controller) *authServiceFixture {
	f := &authServiceFixture{
		users:    mocks.NewMockUserRepository(ctrl),
		tokens:   mocks.NewMockTokenGenerator(ctrl),
		secrets:  mocks.NewMockMfaSecretRepository(ctrl),
		attempts: mocks.NewMockLoginAttemptRepository(ctrl),
		cache:    mocks.NewMockCache(ctrl),
		logs:     mocks.NewMockSecurityLogRepository(ctrl),
		mailer:   mocks.NewMockMailer(ctrl),
	}

	// Security logging is best-effort and incidental to most scenarios.
	f.logs.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	securityLog := service.NewSecurityLogService(f.logs)
	lockout := service.NewLockoutService(f.attempts, f.cache, securityLog, 5, 15, 30)
	blacklist := service.NewBlacklistService(f.cache, 15*time.Minute)
	verification := service.NewVerificationService(f.cache)
	mfa := service.NewMfaService(f.secrets, "AuthGuard")
	cfg := &config.Config{AppName: "AuthGuard", BaseURL: "http://localhost:8080"}

	f.svc = service.NewAuthService(f.users, f.tokens, service.NewPasswordService(),
		mfa, lockout, blacklist, verification, securityLog, f.mailer, cfg)
	return f
}

func hashPassword(t *testing.T, plain string) string {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	assert.NoError(t, err)
	return string(hashed)
}

func (f *authServiceFixture) expectTokenPair(user *domain.User, userAgent, ipAddress string) {
	f.tokens.EXPECT().IssueAccessToken(user).Return("access-token", nil)
	f.tokens.EXPECT().IssueRefreshToken(gomock.Any(), user, userAgent, ipAddress).Return("refresh-token", nil)
	f.tokens.EXPECT().GetAccessTokenExpiry().Return(15 * time.Minute)
}

func TestAuthService_Register_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthServiceFixture(ctrl)

	input := dto.RegisterInput{Email: "test@example.com", Password: "password123"}

	f.users.EXPECT().GetByEmail(gomock.Any(), input.Email).Return(nil, nil)
	f.users.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	f.cache.EXPECT().Set(gomock.Any(), gomock.Any(), input.Email, time.Hour).Return(nil)
	f.mailer.EXPECT().Send(gomock.Any(), input.Email, "Email Verification", gomock.Any()).Return(nil)

	user, err := f.svc.Register(context.Background(), input)

	assert.NoError(t, err)
	assert.NotNil(t, user)
	assert.Equal(t, input.Email, user.Email)
	assert.NotEmpty(t, user.ID)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, input.Password, user.PasswordHash)
	assert.Equal(t, constant.DefaultUserRole, user.Role)
	assert.False(t, user.IsEmailVerified)
}

func TestAuthService_Register_EmailAlreadyExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthServiceFixture(ctrl)

	input := dto.RegisterInput{Email: "test@example.com", Password: "password123"}

	f.users.EXPECT().GetByEmail(gomock.Any(), input.Email).Return(&domain.User{ID: "existing", Email: input.Email}, nil)

	user, err := f.svc.Register(context.Background(), input)

	assert.ErrorIs(t, err, autherror.ErrEmailAlreadyInUse)
	assert.Nil(t, user)
}

func TestAuthService_Login_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthServiceFixture(ctrl)

	input := dto.LoginInput{Email: "test@example.com", Password: "password123", IPAddress: "10.0.0.1", UserAgent: "go-test"}
	user := &domain.User{ID: "user-1", Email: input.Email, PasswordHash: hashPassword(t, input.Password), Role: "user"}

	f.cache.EXPECT().Get(gomock.Any(), "lockout:"+input.Email).Return("", false, nil)
	f.users.EXPECT().GetByEmail(gomock.Any(), input.Email).Return(user, nil)
	f.secrets.EXPECT().Get(gomock.Any(), user.ID).Return(nil, nil)
	f.attempts.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil)
	f.cache.EXPECT().Delete(gomock.Any(), "lockout:"+input.Email).Return(nil)
	f.users.EXPECT().UpdateLastLogin(gomock.Any(), user.ID).Return(nil)
	f.expectTokenPair(user, input.UserAgent, input.IPAddress)

	tokens, err := f.svc.Login(context.Background(), input)

	assert.NoError(t, err)
	assert.Equal(t, "access-token", tokens.AccessToken)
	assert.Equal(t, "refresh-token", tokens.RefreshToken)
	assert.Equal(t, constant.DefaultTokenType, tokens.TokenType)
	assert.Equal(t, int((15 * time.Minute).Seconds()), tokens.ExpiresIn)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthServiceFixture(ctrl)

	input := dto.LoginInput{Email: "test@example.com", Password: "wrong"}
	user := &domain.User{ID: "user-1", Email: input.Email, PasswordHash: hashPassword(t, "password123")}

	f.cache.EXPECT().Get(gomock.Any(), "lockout:"+input.Email).Return("", false, nil)
	f.users.EXPECT().GetByEmail(gomock.Any(), input.Email).Return(user, nil)
	f.attempts.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil)
	f.attempts.EXPECT().CountRecentFailures(gomock.Any(), input.Email, gomock.Any()).Return(1, nil)

	tokens, err := f.svc.Login(context.Background(), input)

	assert.ErrorIs(t, err, autherror.ErrInvalidCredentials)
	assert.Nil(t, tokens)
}

func TestAuthService_Login_UnknownEmail(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthServiceFixture(ctrl)

	input := dto.LoginInput{Email: "nobody@example.com", Password: "password123"}

	f.cache.EXPECT().Get(gomock.Any(), "lockout:"+input.Email).Return("", false, nil)
	f.users.EXPECT().GetByEmail(gomock.Any(), input.Email).Return(nil, nil)
	f.attempts.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil)
	f.attempts.EXPECT().CountRecentFailures(gomock.Any(), input.Email, gomock.Any()).Return(1, nil)

	_, err := f.svc.Login(context.Background(), input)

	// Same error as a wrong password, so the two cases are indistinguishable.
	assert.ErrorIs(t, err, autherror.ErrInvalidCredentials)
}

func TestAuthService_Login_LockedAccount(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthServiceFixture(ctrl)

	input := dto.LoginInput{Email: "test@example.com", Password: "password123"}
	lockedUntil := strconv.FormatInt(time.Now().Add(10*time.Minute).UnixMilli(), 10)

	f.cache.EXPECT().Get(gomock.Any(), "lockout:"+input.Email).Return(lockedUntil, true, nil)

	tokens, err := f.svc.Login(context.Background(), input)

	assert.ErrorIs(t, err, autherror.ErrAccountLocked)
	assert.Nil(t, tokens)
}

func TestAuthService_Login_MfaRequired(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthServiceFixture(ctrl)

	input := dto.LoginInput{Email: "test@example.com", Password: "password123"}
	user := &domain.User{ID: "user-1", Email: input.Email, PasswordHash: hashPassword(t, input.Password)}

	f.cache.EXPECT().Get(gomock.Any(), "lockout:"+input.Email).Return("", false, nil)
	f.users.EXPECT().GetByEmail(gomock.Any(), input.Email).Return(user, nil)
	f.secrets.EXPECT().Get(gomock.Any(), user.ID).Return(&domain.MfaSecret{UserID: user.ID, Secret: "SECRET", IsEnabled: true}, nil)

	tokens, err := f.svc.Login(context.Background(), input)

	assert.ErrorIs(t, err, autherror.ErrMfaRequired)
	assert.Nil(t, tokens)
}

func TestAuthService_Login_WithBackupCode(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthServiceFixture(ctrl)

	input := dto.LoginInput{Email: "test@example.com", Password: "password123", BackupCode: "abcd1234"}
	user := &domain.User{ID: "user-1", Email: input.Email, PasswordHash: hashPassword(t, input.Password)}

	f.cache.EXPECT().Get(gomock.Any(), "lockout:"+input.Email).Return("", false, nil)
	f.users.EXPECT().GetByEmail(gomock.Any(), input.Email).Return(user, nil)
	f.secrets.EXPECT().Get(gomock.Any(), user.ID).Return(&domain.MfaSecret{UserID: user.ID, Secret: "SECRET", IsEnabled: true}, nil)
	f.secrets.EXPECT().ConsumeBackupCode(gomock.Any(), user.ID, "ABCD1234").Return(true, nil)
	f.attempts.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil)
	f.cache.EXPECT().Delete(gomock.Any(), "lockout:"+input.Email).Return(nil)
	f.users.EXPECT().UpdateLastLogin(gomock.Any(), user.ID).Return(nil)
	f.expectTokenPair(user, input.UserAgent, input.IPAddress)

	tokens, err := f.svc.Login(context.Background(), input)

	assert.NoError(t, err)
	assert.NotNil(t, tokens)
}

func TestAuthService_Login_InvalidBackupCode(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthServiceFixture(ctrl)

	input := dto.LoginInput{Email: "test@example.com", Password: "password123", BackupCode: "WRONG123"}
	user := &domain.User{ID: "user-1", Email: input.Email, PasswordHash: hashPassword(t, input.Password)}

	f.cache.EXPECT().Get(gomock.Any(), "lockout:"+input.Email).Return("", false, nil)
	f.users.EXPECT().GetByEmail(gomock.Any(), input.Email).Return(user, nil)
	f.secrets.EXPECT().Get(gomock.Any(), user.ID).Return(&domain.MfaSecret{UserID: user.ID, Secret: "SECRET", IsEnabled: true}, nil)
	f.secrets.EXPECT().ConsumeBackupCode(gomock.Any(), user.ID, "WRONG123").Return(false, nil)
	f.attempts.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil)
	f.attempts.EXPECT().CountRecentFailures(gomock.Any(), input.Email, gomock.Any()).Return(1, nil)

	tokens, err := f.svc.Login(context.Background(), input)

	assert.ErrorIs(t, err, autherror.ErrInvalidMfaCode)
	assert.Nil(t, tokens)
}

func TestAuthService_Refresh_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthServiceFixture(ctrl)

	f.tokens.EXPECT().Rotate(gomock.Any(), "old-refresh").Return("new-access", "new-refresh", nil)
	f.tokens.EXPECT().GetAccessTokenExpiry().Return(15 * time.Minute)

	tokens, err := f.svc.Refresh(context.Background(), dto.RefreshInput{RefreshToken: "old-refresh"})

	assert.NoError(t, err)
	assert.Equal(t, "new-access", tokens.AccessToken)
	assert.Equal(t, "new-refresh", tokens.RefreshToken)
}

func TestAuthService_Refresh_InvalidToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthServiceFixture(ctrl)

	f.tokens.EXPECT().Rotate(gomock.Any(), "bad").Return("", "", autherror.ErrInvalidRefreshToken)

	tokens, err := f.svc.Refresh(context.Background(), dto.RefreshInput{RefreshToken: "bad"})

	assert.ErrorIs(t, err, autherror.ErrInvalidRefreshToken)
	assert.Nil(t, tokens)
}

func TestAuthService_Logout_BlacklistsAccessToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthServiceFixture(ctrl)

	// An unparseable access token is skipped rather than blacklisted.
	f.tokens.EXPECT().Revoke(gomock.Any(), "refresh-token").Return(nil)

	err := f.svc.Logout(context.Background(), dto.LogoutInput{RefreshToken: "refresh-token", AccessToken: "not-a-jwt"})

	assert.NoError(t, err)
}

func TestAuthService_LogoutAllDevices(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthServiceFixture(ctrl)

	f.tokens.EXPECT().RevokeAllForUser(gomock.Any(), "user-1").Return(nil)

	err := f.svc.LogoutAllDevices(context.Background(), "user-1")

	assert.NoError(t, err)
}

func TestAuthService_VerifyEmail_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthServiceFixture(ctrl)

	user := &domain.User{ID: "user-1", Email: "test@example.com"}

	f.cache.EXPECT().GetDel(gomock.Any(), constant.PurposeEmailVerification+":tok").Return(user.Email, true, nil)
	f.users.EXPECT().GetByEmail(gomock.Any(), user.Email).Return(user, nil)
	f.users.EXPECT().MarkEmailVerified(gomock.Any(), user.ID).Return(nil)

	err := f.svc.VerifyEmail(context.Background(), "tok")

	assert.NoError(t, err)
}

func TestAuthService_VerifyEmail_InvalidToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthServiceFixture(ctrl)

	f.cache.EXPECT().GetDel(gomock.Any(), constant.PurposeEmailVerification+":tok").Return("", false, nil)

	err := f.svc.VerifyEmail(context.Background(), "tok")

	assert.ErrorIs(t, err, autherror.ErrInvalidOrExpiredToken)
}

func TestAuthService_VerifyEmail_UserGone(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthServiceFixture(ctrl)

	f.cache.EXPECT().GetDel(gomock.Any(), constant.PurposeEmailVerification+":tok").Return("gone@example.com", true, nil)
	f.users.EXPECT().GetByEmail(gomock.Any(), "gone@example.com").Return(nil, nil)

	err := f.svc.VerifyEmail(context.Background(), "tok")

	assert.ErrorIs(t, err, autherror.ErrUserNotFound)
}

func TestAuthService_ResendVerification_AlreadyVerified(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthServiceFixture(ctrl)

	user := &domain.User{ID: "user-1", Email: "test@example.com", IsEmailVerified: true}
	f.users.EXPECT().GetByEmail(gomock.Any(), user.Email).Return(user, nil)

	// No token issued and no mail sent.
	err := f.svc.ResendVerificationEmail(context.Background(), user.Email)

	assert.NoError(t, err)
}

func TestAuthService_ForgotPassword_UnknownEmailIsSilent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthServiceFixture(ctrl)

	f.users.EXPECT().GetByEmail(gomock.Any(), "nobody@example.com").Return(nil, nil)

	err := f.svc.ForgotPassword(context.Background(), dto.ForgotPasswordInput{Email: "nobody@example.com"})

	assert.NoError(t, err)
}

func TestAuthService_ForgotPassword_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthServiceFixture(ctrl)

	user := &domain.User{ID: "user-1", Email: "test@example.com"}

	f.users.EXPECT().GetByEmail(gomock.Any(), user.Email).Return(user, nil)
	f.cache.EXPECT().Set(gomock.Any(), gomock.Any(), user.Email, time.Hour).Return(nil)
	f.mailer.EXPECT().Send(gomock.Any(), user.Email, "Password Reset", gomock.Any()).Return(nil)

	err := f.svc.ForgotPassword(context.Background(), dto.ForgotPasswordInput{Email: user.Email})

	assert.NoError(t, err)
}

func TestAuthService_ResetPassword_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthServiceFixture(ctrl)

	user := &domain.User{ID: "user-1", Email: "test@example.com"}

	f.cache.EXPECT().GetDel(gomock.Any(), constant.PurposePasswordReset+":tok").Return(user.Email, true, nil)
	f.users.EXPECT().GetByEmail(gomock.Any(), user.Email).Return(user, nil)
	f.users.EXPECT().UpdatePasswordHash(gomock.Any(), user.ID, gomock.Any()).Return(nil)
	f.tokens.EXPECT().RevokeAllForUser(gomock.Any(), user.ID).Return(nil)

	err := f.svc.ResetPassword(context.Background(), dto.ResetPasswordInput{Token: "tok", NewPassword: "newpassword1"})

	assert.NoError(t, err)
}

func TestAuthService_ResetPassword_InvalidToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthServiceFixture(ctrl)

	f.cache.EXPECT().GetDel(gomock.Any(), constant.PurposePasswordReset+":tok").Return("", false, nil)

	err := f.svc.ResetPassword(context.Background(), dto.ResetPasswordInput{Token: "tok", NewPassword: "newpassword1"})

	assert.ErrorIs(t, err, autherror.ErrInvalidOrExpiredToken)
}

func TestAuthService_Register_CreateError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthServiceFixture(ctrl)

	input := dto.RegisterInput{Email: "test@example.com", Password: "password123"}
	expectedErr := errors.New("database error")

	f.users.EXPECT().GetByEmail(gomock.Any(), input.Email).Return(nil, nil)
	f.users.EXPECT().Create(gomock.Any(), gomock.Any()).Return(expectedErr)

	user, err := f.svc.Register(context.Background(), input)

	assert.Equal(t, expectedErr, err)
	assert.Nil(t, user)
}
