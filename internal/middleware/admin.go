package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/simwallet/internal/authority"
)

const (
	adminTokenHeader = "X-Admin-Token"
	adminActorName   = "admin-api"
	localActor       = "actor"
)

// AdminAuth admits requests carrying the configured admin token and stores an
// admin authority.Actor in locals. An empty token disables admin routes.
func AdminAuth(token string) fiber.Handler {
	expected := []byte(token)
	return func(c *fiber.Ctx) error {
		got := []byte(c.Get(adminTokenHeader))
		if len(expected) == 0 || subtle.ConstantTimeCompare(got, expected) != 1 {
			return fiber.NewError(http.StatusUnauthorized, "admin token required")
		}
		c.Locals(localActor, authority.Admin(adminActorName))
		return c.Next()
	}
}

// Actor returns the caller's authority: the admin actor set by AdminAuth,
// else the account actor for the JWT-bound wallet address, else the zero
// Actor.
func Actor(c *fiber.Ctx) authority.Actor {
	if actor, ok := c.Locals(localActor).(authority.Actor); ok {
		return actor
	}
	if addr, _ := c.Locals(localAddress).(string); addr != "" {
		return authority.Account(addr)
	}
	return authority.Actor{}
}

// UserID returns the authenticated user id, or "".
func UserID(c *fiber.Ctx) string {
	uid, _ := c.Locals(localUserID).(string)
	return uid
}
