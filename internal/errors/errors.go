package errors

import (
	"errors"
)

var (
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrAccountLocked         = errors.New("account temporarily locked")
	ErrMfaRequired           = errors.New("mfa code required")
	ErrInvalidMfaCode        = errors.New("invalid mfa code")
	ErrInvalidRefreshToken   = errors.New("invalid refresh token")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrUserNotFound          = errors.New("user not found")
	ErrEmailAlreadyInUse     = errors.New("email already in use")
	ErrMfaNotSetUp           = errors.New("mfa not set up for this user")
	ErrMfaAlreadyEnabled     = errors.New("mfa already enabled")
)
