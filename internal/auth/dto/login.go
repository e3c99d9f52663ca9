package dto

type LoginInput struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	TotpCode   string `json:"totp_code,omitempty"`
	BackupCode string `json:"backup_code,omitempty"`
	IPAddress  string `json:"-"`
	UserAgent  string `json:"-"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}
