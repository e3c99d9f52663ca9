package dto

type MfaSetupOutput struct {
	Secret     string `json:"secret"`
	OtpauthURL string `json:"otpauth_url"`
}

type MfaEnableInput struct {
	TotpCode string `json:"totp_code"`
}

type MfaEnableOutput struct {
	BackupCodes []string `json:"backup_codes"`
}

type MfaStatusOutput struct {
	IsEnabled        bool `json:"is_enabled"`
	BackupCodesCount int  `json:"backup_codes_count"`
}
