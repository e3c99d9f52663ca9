package constant

const (
	DefaultUserRole  = "user"
	DefaultTokenType = "Bearer"

	// Verification token purposes, used as cache key prefixes.
	PurposeEmailVerification = "email-verification"
	PurposePasswordReset     = "password-reset"

	// Number of single-use backup codes issued per MFA enrollment.
	BackupCodeCount = 10
)
