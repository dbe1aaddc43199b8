package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/simwallet/internal/apierror"
	"github.com/congo-pay/simwallet/internal/identity"
)

type credentialsRequest struct {
	Phone    string `json:"phone"`
	Region   string `json:"region"`
	PIN      string `json:"pin"`
	DeviceID string `json:"device_id"`
}

func (r credentialsRequest) credentials() identity.Credentials {
	return identity.Credentials{Phone: r.Phone, Region: r.Region, PIN: r.PIN, DeviceID: r.DeviceID}
}

// RegisterIdentityRoutes wires registration, which provisions the derived
// wallet, and plain credential checks.
func RegisterIdentityRoutes(r fiber.Router, ids *identity.Service, idempotent fiber.Handler) {
	register := func(c *fiber.Ctx) error {
		var req credentialsRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid request body")
		}
		if err := validRegion(req.Region); err != nil {
			return err
		}
		user, w, err := ids.Register(c.UserContext(), req.credentials())
		if err != nil {
			return apierror.From(err)
		}
		return c.Status(http.StatusCreated).JSON(fiber.Map{
			"user_id":        user.ID,
			"phone":          user.Phone,
			"tier":           user.Tier,
			"device_id":      user.DeviceID,
			"wallet_address": w.Address,
			"bump":           w.Bump,
		})
	}
	r.Post("/identity/register", append(optional(idempotent), register)...)

	// Plain authenticate without tokens.
	r.Post("/identity/authenticate", func(c *fiber.Ctx) error {
		var req credentialsRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid request body")
		}
		user, err := ids.Authenticate(c.UserContext(), req.credentials())
		if err != nil {
			return apierror.From(err)
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"user_id":   user.ID,
			"phone":     user.Phone,
			"tier":      user.Tier,
			"device_id": user.DeviceID,
		})
	})
}
