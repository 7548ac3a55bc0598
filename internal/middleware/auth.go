package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"taskboard/internal/apperror"
	"taskboard/internal/policy"
	"taskboard/internal/token"
)

const identityKey = "identity"

// Auth requires an Authorization header of the exact shape "Bearer <token>"
// and attaches the verified identity to the request context.
func Auth(tokens *token.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return apperror.Unauthorized("Missing or invalid Authorization header")
		}
		claims, err := tokens.Verify(parts[1])
		if err != nil {
			return apperror.Unauthorized("Invalid or expired token")
		}
		c.Locals(identityKey, policy.Identity{UserID: claims.UserID, Role: claims.Role})
		return c.Next()
	}
}

// CallerIdentity returns the identity set by Auth. Only valid on routes
// behind the Auth middleware.
func CallerIdentity(c *fiber.Ctx) policy.Identity {
	return c.Locals(identityKey).(policy.Identity)
}
