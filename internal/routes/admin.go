package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/simwallet/internal/apierror"
	"github.com/congo-pay/simwallet/internal/middleware"
	"github.com/congo-pay/simwallet/internal/salt"
)

// RegisterAdminRoutes exposes salt administration. Responses carry the salt
// fingerprint only.
func RegisterAdminRoutes(r fiber.Router, salts *salt.Manager, adminmw fiber.Handler) {
	group := r.Group("/admin", adminmw)

	group.Get("/salt", func(c *fiber.Ctx) error {
		current, err := salts.Current()
		if err != nil {
			return apierror.From(err)
		}
		return c.JSON(fiber.Map{"fingerprint": current.Fingerprint()})
	})

	group.Post("/salt/init", func(c *fiber.Ctx) error {
		next, err := saltFromBody(c)
		if err != nil {
			return err
		}
		if err := salts.Initialize(c.UserContext(), next); err != nil {
			return apierror.From(err)
		}
		return c.Status(http.StatusCreated).JSON(fiber.Map{"fingerprint": next.Fingerprint()})
	})

	group.Post("/salt/rotate", func(c *fiber.Ctx) error {
		next, err := saltFromBody(c)
		if err != nil {
			return err
		}
		if err := salts.Rotate(c.UserContext(), middleware.Actor(c), next); err != nil {
			return apierror.From(err)
		}
		return c.JSON(fiber.Map{"fingerprint": next.Fingerprint()})
	})
}

// saltFromBody reads an optional hex salt; an empty body yields a random one.
func saltFromBody(c *fiber.Ctx) (salt.Salt, error) {
	var req struct {
		Salt string `json:"salt"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return salt.Salt{}, fiber.NewError(http.StatusBadRequest, "invalid request body")
		}
	}
	if req.Salt == "" {
		s, err := salt.Random()
		if err != nil {
			return salt.Salt{}, apierror.From(err)
		}
		return s, nil
	}
	s, err := salt.ParseHex(req.Salt)
	if err != nil {
		return salt.Salt{}, apierror.From(err)
	}
	return s, nil
}
