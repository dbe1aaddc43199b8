package routes

import (
	"net/http"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/simwallet/internal/alias"
	"github.com/congo-pay/simwallet/internal/apierror"
	"github.com/congo-pay/simwallet/internal/derive"
	"github.com/congo-pay/simwallet/internal/middleware"
)

// RegisterAliasRoutes wires alias reservation, lookup and release.
func RegisterAliasRoutes(r fiber.Router, aliases *alias.Index, jwtmw, adminmw, idempotent fiber.Handler) {
	reserve := func(c *fiber.Ctx) error {
		var req struct {
			Alias string `json:"alias"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid request body")
		}
		owner, err := callerAddress(c)
		if err != nil {
			return err
		}
		b, err := aliases.Reserve(c.UserContext(), req.Alias, owner)
		if err != nil {
			return apierror.From(err)
		}
		return c.Status(http.StatusCreated).JSON(bindingJSON(b))
	}
	r.Post("/aliases", append([]fiber.Handler{jwtmw}, append(optional(idempotent), reserve)...)...)

	r.Get("/aliases/:alias", func(c *fiber.Ctx) error {
		name, err := aliasParam(c)
		if err != nil {
			return err
		}
		b, err := aliases.Lookup(c.UserContext(), name)
		if err != nil {
			return apierror.From(err)
		}
		return c.JSON(bindingJSON(b))
	})

	r.Delete("/aliases/:alias", ownerOrAdmin(jwtmw, adminmw), func(c *fiber.Ctx) error {
		name, err := aliasParam(c)
		if err != nil {
			return err
		}
		if err := aliases.Release(c.UserContext(), name, middleware.Actor(c)); err != nil {
			return apierror.From(err)
		}
		return c.SendStatus(http.StatusNoContent)
	})
}

// ownerOrAdmin authenticates with the admin token when one is presented and
// with the bearer token otherwise.
func ownerOrAdmin(jwtmw, adminmw fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get("X-Admin-Token") != "" {
			return adminmw(c)
		}
		return jwtmw(c)
	}
}

func callerAddress(c *fiber.Ctx) (derive.Address, error) {
	actor := middleware.Actor(c)
	if actor.Admin || actor.Subject == "" {
		return derive.Address{}, fiber.NewError(http.StatusForbidden, "caller has no wallet")
	}
	addr, err := derive.ParseAddress(actor.Subject)
	if err != nil {
		return derive.Address{}, fiber.NewError(http.StatusForbidden, "caller has no wallet")
	}
	return addr, nil
}

func aliasParam(c *fiber.Ctx) (string, error) {
	name, err := url.PathUnescape(c.Params("alias"))
	if err != nil {
		return "", fiber.NewError(http.StatusBadRequest, "invalid alias encoding")
	}
	return name, nil
}

func bindingJSON(b alias.Binding) fiber.Map {
	return fiber.Map{
		"alias":       b.Alias,
		"reservation": b.Reservation.String(),
		"bump":        b.Bump,
		"owner":       b.Owner.String(),
		"created_at":  b.CreatedAt,
	}
}
