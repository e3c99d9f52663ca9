package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/widjayanto/authguard/internal/auth/service"
)

const (
	localUserID      = "userID"
	localEmail       = "email"
	localRole        = "role"
	localAccessToken = "accessToken"
)

// Protected rejects requests without a valid, non-blacklisted access token
// and stashes the verified claims in the request locals.
func Protected(tokens service.TokenGenerator, blacklist *service.BlacklistService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := bearerToken(c)
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing or malformed token"})
		}

		claims, err := tokens.VerifyAccessToken(tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		revoked, err := blacklist.IsBlacklisted(c.Context(), tokenString)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to check token state"})
		}
		if !revoked && claims.IssuedAt != nil {
			revoked, err = blacklist.IsUserBlacklisted(c.Context(), claims.UserID, claims.IssuedAt.Time)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to check token state"})
			}
		}
		if revoked {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "token has been revoked"})
		}

		c.Locals(localUserID, claims.UserID)
		c.Locals(localEmail, claims.Email)
		c.Locals(localRole, claims.Role)
		c.Locals(localAccessToken, tokenString)
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
