package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/widjayanto/authguard/internal/auth/dto"
	"github.com/widjayanto/authguard/internal/auth/service"
)

type MfaHandler struct {
	authService *service.AuthService
	mfaService  *service.MfaService
	logService  *service.SecurityLogService
}

func NewMfaHandler(authService *service.AuthService, mfaService *service.MfaService, logService *service.SecurityLogService) *MfaHandler {
	return &MfaHandler{authService: authService, mfaService: mfaService, logService: logService}
}

func (h *MfaHandler) Status(c *fiber.Ctx) error {
	userID, _ := c.Locals(localUserID).(string)

	status, err := h.mfaService.Status(c.Context(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(status)
}

func (h *MfaHandler) Setup(c *fiber.Ctx) error {
	userID, _ := c.Locals(localUserID).(string)
	email, _ := c.Locals(localEmail).(string)

	setup, err := h.mfaService.Setup(c.Context(), userID, email)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"secret":      setup.Secret,
		"otpauth_url": setup.OtpauthURL,
		"message":     "scan the QR payload with your authenticator app, then verify with a TOTP code to complete setup",
	})
}

func (h *MfaHandler) Enable(c *fiber.Ctx) error {
	var input dto.MfaEnableInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	userID, _ := c.Locals(localUserID).(string)
	email, _ := c.Locals(localEmail).(string)

	result, err := h.authService.EnableMfa(c.Context(), userID, email, input.TotpCode)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":      "mfa enabled, save your backup codes in a secure location",
		"backup_codes": result.BackupCodes,
	})
}

func (h *MfaHandler) Disable(c *fiber.Ctx) error {
	userID, _ := c.Locals(localUserID).(string)
	email, _ := c.Locals(localEmail).(string)

	if err := h.authService.DisableMfa(c.Context(), userID, email); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "mfa disabled"})
}

func (h *MfaHandler) RegenerateBackupCodes(c *fiber.Ctx) error {
	userID, _ := c.Locals(localUserID).(string)

	codes, err := h.mfaService.RegenerateBackupCodes(c.Context(), userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"backup_codes": codes})
}

func (h *MfaHandler) SecurityLogs(c *fiber.Ctx) error {
	userID, _ := c.Locals(localUserID).(string)

	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	logs, err := h.logService.Logs(c.Context(), userID, limit, offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(logs)
}
