package identity

import "errors"

var (
	ErrUserExists   = errors.New("user already registered")
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidPhone means the submitted number had no digits to normalize.
	ErrInvalidPhone = errors.New("phone number has no digits")
	// ErrInvalidCredentials covers both an unknown phone and a wrong PIN so
	// callers cannot tell which numbers are registered.
	ErrInvalidCredentials = errors.New("invalid phone or PIN")
	ErrDeviceRequired     = errors.New("device binding required")
	ErrDeviceMismatch     = errors.New("device mismatch")
)
