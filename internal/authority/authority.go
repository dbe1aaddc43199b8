// Package authority carries the caller's privilege level into operations
// that require one.
package authority

import "errors"

// ErrUnauthorized is returned when the acting party lacks the authority an
// operation requires. Authentication happens in the calling layer; this
// package only carries its outcome.
var ErrUnauthorized = errors.New("unauthorized")

// Actor describes who is invoking a privileged operation.
type Actor struct {
	// Subject is the caller's account address (base58) or an operator name.
	Subject string
	Admin   bool
}

// Admin returns an actor carrying administrative authority.
func Admin(name string) Actor {
	return Actor{Subject: name, Admin: true}
}

// Account returns a non-privileged actor acting for the given address.
func Account(address string) Actor {
	return Actor{Subject: address}
}

// RequireAdmin fails with ErrUnauthorized unless the actor is an administrator.
func (a Actor) RequireAdmin() error {
	if !a.Admin {
		return ErrUnauthorized
	}
	return nil
}
