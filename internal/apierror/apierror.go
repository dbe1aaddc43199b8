// Package apierror maps domain errors onto HTTP responses.
package apierror

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/simwallet/internal/alias"
	"github.com/congo-pay/simwallet/internal/authority"
	"github.com/congo-pay/simwallet/internal/credential"
	"github.com/congo-pay/simwallet/internal/derive"
	"github.com/congo-pay/simwallet/internal/identity"
	"github.com/congo-pay/simwallet/internal/salt"
	"github.com/congo-pay/simwallet/internal/wallet"
)

type mapping struct {
	target error
	status int
}

var table = []mapping{
	{credential.ErrPolicyViolation, http.StatusBadRequest},
	{identity.ErrInvalidPhone, http.StatusBadRequest},
	{alias.ErrAliasTooLong, http.StatusBadRequest},
	{alias.ErrInvalidAlias, http.StatusBadRequest},
	{derive.ErrInvalidAddress, http.StatusBadRequest},
	{derive.ErrSeedTooLong, http.StatusBadRequest},
	{derive.ErrUnknownDomain, http.StatusBadRequest},
	{salt.ErrInvalidSalt, http.StatusBadRequest},

	{identity.ErrInvalidCredentials, http.StatusUnauthorized},
	{identity.ErrDeviceRequired, http.StatusUnauthorized},
	{identity.ErrDeviceMismatch, http.StatusUnauthorized},

	{authority.ErrUnauthorized, http.StatusForbidden},

	{alias.ErrNotFound, http.StatusNotFound},
	{wallet.ErrNotFound, http.StatusNotFound},
	{identity.ErrUserNotFound, http.StatusNotFound},

	{alias.ErrAlreadyTaken, http.StatusConflict},
	{salt.ErrAlreadyInitialized, http.StatusConflict},
	{identity.ErrUserExists, http.StatusConflict},
	{wallet.ErrWalletExists, http.StatusConflict},

	{salt.ErrNotInitialized, http.StatusServiceUnavailable},
}

// Status returns the HTTP status for err. Unknown errors, including an
// exhausted derivation keyspace, are internal.
func Status(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	for _, m := range table {
		if errors.Is(err, m.target) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// internalError hides its cause from clients while keeping it reachable
// for logging through Cause and errors.Unwrap.
type internalError struct {
	cause error
}

func (e *internalError) Error() string { return http.StatusText(http.StatusInternalServerError) }

func (e *internalError) Unwrap() error { return e.cause }

// From converts err into a fiber error. Internal errors get a generic message
// so storage details never reach clients; Cause recovers the original.
func From(err error) error {
	if err == nil {
		return nil
	}
	var ie *internalError
	if errors.As(err, &ie) {
		return err
	}
	status := Status(err)
	if status == http.StatusInternalServerError {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return fe
		}
		return &internalError{cause: err}
	}
	return fiber.NewError(status, err.Error())
}

// Cause returns the error hidden behind an internal error produced by From,
// or err itself.
func Cause(err error) error {
	var ie *internalError
	if errors.As(err, &ie) {
		return ie.cause
	}
	return err
}

// Handler is a fiber.ErrorHandler rendering errors as {"error": message}.
func Handler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if !errors.As(From(err), &fe) {
		fe = fiber.ErrInternalServerError
	}
	return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
}
