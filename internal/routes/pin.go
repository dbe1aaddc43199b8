package routes

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/simwallet/internal/credential"
)

// RegisterPINRoutes exposes the strength check so clients can validate a PIN
// before registering. The PIN is never echoed back.
func RegisterPINRoutes(r fiber.Router) {
	r.Post("/pin/check", func(c *fiber.Ctx) error {
		var req struct {
			PIN    string `json:"pin"`
			Policy string `json:"policy"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid request body")
		}
		policy, err := credential.PolicyByName(req.Policy)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		err = credential.ValidateStrength(req.PIN, policy)
		var violation *credential.PolicyViolation
		switch {
		case err == nil:
			return c.JSON(fiber.Map{"valid": true, "policy": policy.Name()})
		case errors.As(err, &violation):
			return c.JSON(fiber.Map{"valid": false, "policy": violation.Policy, "rule": violation.Rule})
		default:
			return err
		}
	})
}
