package routes

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/simwallet/internal/apierror"
	"github.com/congo-pay/simwallet/internal/identity"
	"github.com/congo-pay/simwallet/internal/middleware"
	"github.com/congo-pay/simwallet/internal/phone"
	"github.com/congo-pay/simwallet/internal/wallet"
)

// RegisterWalletRoutes exposes the caller's wallet and, to administrators,
// resolution of any phone number to its address.
func RegisterWalletRoutes(r fiber.Router, wallets *wallet.Service, ids *identity.Service, jwtmw, adminmw fiber.Handler) {
	r.Get("/wallets/resolve", adminmw, func(c *fiber.Ctx) error {
		region := c.Query("region")
		if err := validRegion(region); err != nil {
			return err
		}
		identifier, err := ids.Identifier(c.Query("phone"), region)
		if err != nil {
			return apierror.From(err)
		}
		res, err := wallets.Resolve(identifier)
		if err != nil {
			return apierror.From(err)
		}
		_, err = wallets.Get(c.UserContext(), res.Address)
		if err != nil && !errors.Is(err, wallet.ErrNotFound) {
			return apierror.From(err)
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"identifier":       res.Identifier,
			"canonical":        phone.IsCanonical(res.Identifier),
			"address":          res.Address,
			"bump":             res.Bump,
			"salt_fingerprint": res.SaltFingerprint,
			"provisioned":      err == nil,
		})
	})

	r.Get("/wallet", jwtmw, func(c *fiber.Ctx) error {
		uid := middleware.UserID(c)
		if uid == "" {
			return fiber.NewError(http.StatusUnauthorized, "unauthorized")
		}
		user, err := ids.FindByID(c.UserContext(), uid)
		if err != nil {
			return apierror.From(err)
		}
		w, err := wallets.GetByOwner(c.UserContext(), uid)
		if err != nil {
			return apierror.From(err)
		}
		current, err := wallets.IsCurrent(w)
		if err != nil {
			return apierror.From(err)
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"user": fiber.Map{
				"id":            user.ID,
				"phone":         user.Phone,
				"tier":          user.Tier,
				"device_id":     user.DeviceID,
				"token_version": user.TokenVersion,
				"created_at":    user.CreatedAt,
				"last_login":    user.LastLogin,
			},
			"wallet": fiber.Map{
				"address":          w.Address,
				"bump":             w.Bump,
				"status":           w.Status,
				"salt_fingerprint": w.SaltFingerprint,
				"stale":            !current,
				"created_at":       w.CreatedAt,
			},
		})
	})
}

func validRegion(region string) error {
	if region != "" && !phone.ValidRegion(region) {
		return fiber.NewError(http.StatusBadRequest, "region must be an ISO 3166-1 alpha-2 code")
	}
	return nil
}
