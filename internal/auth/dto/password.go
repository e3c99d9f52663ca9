package dto

type ForgotPasswordInput struct {
	Email     string `json:"email"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

type ResetPasswordInput struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
	IPAddress   string `json:"-"`
	UserAgent   string `json:"-"`
}

type ResendVerificationInput struct {
	Email string `json:"email"`
}
