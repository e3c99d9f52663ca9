package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/widjayanto/authguard/config"
	"github.com/widjayanto/authguard/internal/auth/domain"
	"github.com/widjayanto/authguard/internal/auth/dto"
	"github.com/widjayanto/authguard/internal/auth/handler"
	"github.com/widjayanto/authguard/internal/auth/service"
	autherror "github.com/widjayanto/authguard/internal/errors"
	"github.com/widjayanto/authguard/internal/mocks"
	"golang.org/x/crypto/bcrypt"
)

type handlerFixture struct {
	users    *mocks.MockUserRepository
	tokens   *mocks.MockTokenGenerator
	secrets  *mocks.MockMfaSecretRepository
	attempts *mocks.MockLoginAttemptRepository
	cache    *mocks.MockCache
	logs     *mocks.MockSecurityLogRepository
	mailer   *mocks.MockMailer

	app *fiber.App
}

func newHandlerFixture(ctrl *gomock.Controller) *handlerFixture {
	f := &handlerFixture{
		users:    mocks.NewMockUserRepository(ctrl),
		tokens:   mocks.NewMockTokenGenerator(ctrl),
		secrets:  mocks.NewMockMfaSecretRepository(ctrl),
		attempts: mocks.NewMockLoginAttemptRepository(ctrl),
		cache:    mocks.NewMockCache(ctrl),
		logs:     mocks.NewMockSecurityLogRepository(ctrl),
		mailer:   mocks.NewMockMailer(ctrl),
	}
	f.logs.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	securityLog := service.NewSecurityLogService(f.logs)
	lockout := service.NewLockoutService(f.attempts, f.cache, securityLog, 5, 15, 30)
	blacklist := service.NewBlacklistService(f.cache, 15*time.Minute)
	verification := service.NewVerificationService(f.cache)
	mfa := service.NewMfaService(f.secrets, "AuthGuard")
	cfg := &config.Config{AppName: "AuthGuard", BaseURL: "http://localhost:8080"}

	authService := service.NewAuthService(f.users, f.tokens, service.NewPasswordService(),
		mfa, lockout, blacklist, verification, securityLog, f.mailer, cfg)
	mfaHandler := handler.NewMfaHandler(authService, mfa, securityLog)

	f.app = fiber.New()
	handler.RegisterRoutes(f.app, handler.NewAuthHandler(authService), mfaHandler, f.tokens, blacklist)
	return f
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any, headers map[string]string) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return resp.StatusCode, payload
}

func TestRegisterEndpoint(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newHandlerFixture(ctrl)

	t.Run("success", func(t *testing.T) {
		input := dto.RegisterInput{Email: "test@example.com", Password: "password123"}

		f.users.EXPECT().GetByEmail(gomock.Any(), input.Email).Return(nil, nil)
		f.users.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		f.cache.EXPECT().Set(gomock.Any(), gomock.Any(), input.Email, time.Hour).Return(nil)
		f.mailer.EXPECT().Send(gomock.Any(), input.Email, gomock.Any(), gomock.Any()).Return(nil)

		status, payload := doJSON(t, f.app, "POST", "/api/v1/register", input, nil)
		assert.Equal(t, fiber.StatusCreated, status)
		assert.Equal(t, input.Email, payload["email"])
		assert.NotEmpty(t, payload["id"])
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/register", bytes.NewReader([]byte("{")))
		req.Header.Set("Content-Type", "application/json")

		resp, err := f.app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("email already in use", func(t *testing.T) {
		input := dto.RegisterInput{Email: "taken@example.com", Password: "password123"}
		f.users.EXPECT().GetByEmail(gomock.Any(), input.Email).Return(&domain.User{ID: "existing"}, nil)

		status, _ := doJSON(t, f.app, "POST", "/api/v1/register", input, nil)
		assert.Equal(t, fiber.StatusConflict, status)
	})
}

func TestLoginEndpoint(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newHandlerFixture(ctrl)

	email := "test@example.com"
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &domain.User{ID: "user-1", Email: email, PasswordHash: string(hash), Role: "user"}

	t.Run("success", func(t *testing.T) {
		f.cache.EXPECT().Get(gomock.Any(), "lockout:"+email).Return("", false, nil)
		f.users.EXPECT().GetByEmail(gomock.Any(), email).Return(user, nil)
		f.secrets.EXPECT().Get(gomock.Any(), user.ID).Return(nil, nil)
		f.attempts.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil)
		f.cache.EXPECT().Delete(gomock.Any(), "lockout:"+email).Return(nil)
		f.users.EXPECT().UpdateLastLogin(gomock.Any(), user.ID).Return(nil)
		f.tokens.EXPECT().IssueAccessToken(user).Return("access-token", nil)
		f.tokens.EXPECT().IssueRefreshToken(gomock.Any(), user, gomock.Any(), gomock.Any()).Return("refresh-token", nil)
		f.tokens.EXPECT().GetAccessTokenExpiry().Return(15 * time.Minute)

		status, payload := doJSON(t, f.app, "POST", "/api/v1/login", dto.LoginInput{Email: email, Password: "password123"}, nil)
		assert.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, "access-token", payload["access_token"])
		assert.Equal(t, "refresh-token", payload["refresh_token"])
		assert.Equal(t, "Bearer", payload["token_type"])
	})

	t.Run("invalid credentials", func(t *testing.T) {
		f.cache.EXPECT().Get(gomock.Any(), "lockout:"+email).Return("", false, nil)
		f.users.EXPECT().GetByEmail(gomock.Any(), email).Return(user, nil)
		f.attempts.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil)
		f.attempts.EXPECT().CountRecentFailures(gomock.Any(), email, gomock.Any()).Return(1, nil)

		status, _ := doJSON(t, f.app, "POST", "/api/v1/login", dto.LoginInput{Email: email, Password: "wrong"}, nil)
		assert.Equal(t, fiber.StatusUnauthorized, status)
	})

	t.Run("locked account", func(t *testing.T) {
		lockedUntil := strconv.FormatInt(time.Now().Add(10*time.Minute).UnixMilli(), 10)
		f.cache.EXPECT().Get(gomock.Any(), "lockout:"+email).Return(lockedUntil, true, nil)

		status, _ := doJSON(t, f.app, "POST", "/api/v1/login", dto.LoginInput{Email: email, Password: "password123"}, nil)
		assert.Equal(t, fiber.StatusLocked, status)
	})

	t.Run("mfa required", func(t *testing.T) {
		f.cache.EXPECT().Get(gomock.Any(), "lockout:"+email).Return("", false, nil)
		f.users.EXPECT().GetByEmail(gomock.Any(), email).Return(user, nil)
		f.secrets.EXPECT().Get(gomock.Any(), user.ID).Return(&domain.MfaSecret{UserID: user.ID, Secret: "SECRET", IsEnabled: true}, nil)

		status, _ := doJSON(t, f.app, "POST", "/api/v1/login", dto.LoginInput{Email: email, Password: "password123"}, nil)
		assert.Equal(t, fiber.StatusUnauthorized, status)
	})
}

func TestRefreshEndpoint(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newHandlerFixture(ctrl)

	t.Run("success", func(t *testing.T) {
		f.tokens.EXPECT().Rotate(gomock.Any(), "old-refresh").Return("new-access", "new-refresh", nil)
		f.tokens.EXPECT().GetAccessTokenExpiry().Return(15 * time.Minute)

		status, payload := doJSON(t, f.app, "POST", "/api/v1/refresh", dto.RefreshInput{RefreshToken: "old-refresh"}, nil)
		assert.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, "new-access", payload["access_token"])
	})

	t.Run("invalid token", func(t *testing.T) {
		f.tokens.EXPECT().Rotate(gomock.Any(), "bad").Return("", "", autherror.ErrInvalidRefreshToken)

		status, _ := doJSON(t, f.app, "POST", "/api/v1/refresh", dto.RefreshInput{RefreshToken: "bad"}, nil)
		assert.Equal(t, fiber.StatusUnauthorized, status)
	})
}

func TestLogoutEndpoint(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newHandlerFixture(ctrl)

	f.tokens.EXPECT().Revoke(gomock.Any(), "refresh-token").Return(nil)

	status, _ := doJSON(t, f.app, "POST", "/api/v1/logout", dto.LogoutInput{RefreshToken: "refresh-token"}, nil)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestVerifyEmailEndpoint(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newHandlerFixture(ctrl)

	t.Run("missing token", func(t *testing.T) {
		status, _ := doJSON(t, f.app, "GET", "/api/v1/verify-email", nil, nil)
		assert.Equal(t, fiber.StatusBadRequest, status)
	})

	t.Run("invalid token", func(t *testing.T) {
		f.cache.EXPECT().GetDel(gomock.Any(), "email-verification:bad").Return("", false, nil)

		status, _ := doJSON(t, f.app, "GET", "/api/v1/verify-email?token=bad", nil, nil)
		assert.Equal(t, fiber.StatusBadRequest, status)
	})

	t.Run("success", func(t *testing.T) {
		user := &domain.User{ID: "user-1", Email: "test@example.com"}
		f.cache.EXPECT().GetDel(gomock.Any(), "email-verification:good").Return(user.Email, true, nil)
		f.users.EXPECT().GetByEmail(gomock.Any(), user.Email).Return(user, nil)
		f.users.EXPECT().MarkEmailVerified(gomock.Any(), user.ID).Return(nil)

		status, _ := doJSON(t, f.app, "GET", "/api/v1/verify-email?token=good", nil, nil)
		assert.Equal(t, fiber.StatusOK, status)
	})
}

func TestForgotPasswordEndpoint(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newHandlerFixture(ctrl)

	// Unknown emails get the same response as known ones.
	f.users.EXPECT().GetByEmail(gomock.Any(), "nobody@example.com").Return(nil, nil)

	status, _ := doJSON(t, f.app, "POST", "/api/v1/forgot-password", dto.ForgotPasswordInput{Email: "nobody@example.com"}, nil)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestResetPasswordEndpoint(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newHandlerFixture(ctrl)

	user := &domain.User{ID: "user-1", Email: "test@example.com"}

	f.cache.EXPECT().GetDel(gomock.Any(), "password-reset:tok").Return(user.Email, true, nil)
	f.users.EXPECT().GetByEmail(gomock.Any(), user.Email).Return(user, nil)
	f.users.EXPECT().UpdatePasswordHash(gomock.Any(), user.ID, gomock.Any()).Return(nil)
	f.tokens.EXPECT().RevokeAllForUser(gomock.Any(), user.ID).Return(nil)

	status, _ := doJSON(t, f.app, "POST", "/api/v1/reset-password", dto.ResetPasswordInput{Token: "tok", NewPassword: "newpassword1"}, nil)
	assert.Equal(t, fiber.StatusOK, status)
}
