package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/widjayanto/authguard/internal/auth/service"
)

// RegisterRoutes wires every auth endpoint under /api/v1.
func RegisterRoutes(app *fiber.App, authHandler *AuthHandler, mfaHandler *MfaHandler, tokens service.TokenGenerator, blacklist *service.BlacklistService) {
	api := app.Group("/api/v1")

	api.Post("/register", authHandler.Register)
	api.Post("/login", authHandler.Login)
	api.Post("/refresh", authHandler.Refresh)
	api.Post("/logout", authHandler.Logout)
	api.Get("/verify-email", authHandler.VerifyEmail)
	api.Post("/resend-verification", authHandler.ResendVerification)
	api.Post("/forgot-password", authHandler.ForgotPassword)
	api.Post("/reset-password", authHandler.ResetPassword)

	protected := api.Group("", Protected(tokens, blacklist))
	protected.Post("/logout-all", authHandler.LogoutAllDevices)
	protected.Get("/security-logs", mfaHandler.SecurityLogs)

	mfa := protected.Group("/mfa")
	mfa.Get("/status", mfaHandler.Status)
	mfa.Post("/setup", mfaHandler.Setup)
	mfa.Post("/enable", mfaHandler.Enable)
	mfa.Post("/disable", mfaHandler.Disable)
	mfa.Post("/backup-codes/regenerate", mfaHandler.RegenerateBackupCodes)
}
