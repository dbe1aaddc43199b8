package auth

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/simwallet/internal/apierror"
	"github.com/congo-pay/simwallet/internal/identity"
	"github.com/congo-pay/simwallet/internal/wallet"
)

// Handler exposes auth endpoints for login/refresh/logout.
type Handler struct {
	ids     *identity.Service
	svc     *Service
	wallets *wallet.Service
}

func NewHandler(ids *identity.Service, svc *Service, wallets *wallet.Service) *Handler {
	return &Handler{ids: ids, svc: svc, wallets: wallets}
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Region   string `json:"region"`
	PIN      string `json:"pin"`
	DeviceID string `json:"device_id"`
}

type loginResponse struct {
	UserID        string `json:"user_id"`
	AccessToken   string `json:"access_token"`
	RefreshToken  string `json:"refresh_token"`
	ExpiresIn     int64  `json:"expires_in"`
	TokenVersion  int    `json:"token_version"`
	WalletAddress string `json:"wallet_address,omitempty"`
}

// Login validates credentials and returns a token pair.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	user, err := h.ids.Authenticate(c.UserContext(), identity.Credentials{Phone: req.Phone, Region: req.Region, PIN: req.PIN, DeviceID: req.DeviceID})
	if err != nil {
		return apierror.From(err)
	}
	var address string
	if h.wallets != nil {
		if w, err := h.wallets.GetByOwner(c.UserContext(), user.ID); err == nil {
			address = w.Address
		}
	}
	pair, err := h.svc.Login(user, address)
	if err != nil {
		return apierror.From(err)
	}
	return c.Status(http.StatusOK).JSON(loginResponse{
		UserID:        user.ID,
		AccessToken:   pair.AccessToken,
		RefreshToken:  pair.RefreshToken,
		ExpiresIn:     pair.ExpiresIn,
		TokenVersion:  user.TokenVersion,
		WalletAddress: address,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh issues a new access token using a valid refresh token.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	token, exp, err := h.svc.Refresh(c.UserContext(), req.RefreshToken)
	if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrTokenRevoked) {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	if err != nil {
		return apierror.From(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"access_token": token, "expires_in": exp})
}

// Logout invalidates the caller's tokens by bumping the token version. It
// expects JWT middleware to have set user_id.
func (h *Handler) Logout(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	if err := h.svc.Logout(c.UserContext(), uid); err != nil {
		return apierror.From(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
}
