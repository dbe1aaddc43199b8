package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/simwallet/internal/auth"
)

// Locals keys set by JWTAuth.
const (
	localUserID       = "user_id"
	localAddress      = "address"
	localTokenVersion = "token_version"
)

// JWTAuth returns a middleware that validates JWT access tokens and checks token version.
func JWTAuth(tokens *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])
		claims, err := tokens.Verify(c.UserContext(), tokenStr)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		c.Locals(localUserID, claims.Subject)
		c.Locals(localAddress, claims.Address)
		c.Locals(localTokenVersion, claims.Version)
		return c.Next()
	}
}
