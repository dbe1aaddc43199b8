// Package salt owns the process-wide secret mixed into identifier hashing.
//
// The salt is versionless: rotating it replaces the value outright, and every
// address derived under the previous value stops matching its identifier.
// Callers must treat Rotate as a breaking migration.
package salt

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// Size is the byte length of a salt.
const Size = 16

var (
	// ErrNotInitialized is returned when no salt has been configured yet.
	ErrNotInitialized = errors.New("salt not initialized")
	// ErrAlreadyInitialized is returned by a second Initialize.
	ErrAlreadyInitialized = errors.New("salt already initialized")
	// ErrInvalidSalt is returned when decoding a salt of the wrong shape.
	ErrInvalidSalt = errors.New("invalid salt")
)

// Salt is the fixed-width secret. Its contents must never be logged; use
// Fingerprint for diagnostics.
type Salt [Size]byte

// Random draws a fresh salt from crypto/rand.
func Random() (Salt, error) {
	var s Salt
	if _, err := rand.Read(s[:]); err != nil {
		return Salt{}, fmt.Errorf("read random salt: %w", err)
	}
	return s, nil
}

// FromBytes copies b into a Salt. b must be exactly Size bytes.
func FromBytes(b []byte) (Salt, error) {
	if len(b) != Size {
		return Salt{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSalt, Size, len(b))
	}
	var s Salt
	copy(s[:], b)
	return s, nil
}

// ParseHex decodes a hex-encoded salt.
func ParseHex(v string) (Salt, error) {
	if v == "" {
		return Salt{}, fmt.Errorf("%w: empty value", ErrInvalidSalt)
	}
	b, err := hex.DecodeString(v)
	if err != nil {
		return Salt{}, fmt.Errorf("%w: not hex", ErrInvalidSalt)
	}
	return FromBytes(b)
}

// Bytes returns a copy of the salt.
func (s Salt) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, s[:])
	return b
}

// Fingerprint is a short, one-way tag identifying the salt value. It is safe
// to log and to persist next to derived records for staleness checks.
func (s Salt) Fingerprint() string {
	sum := sha256.Sum256(s[:])
	return hex.EncodeToString(sum[:8])
}

// String never prints the secret.
func (s Salt) String() string {
	return "salt(" + s.Fingerprint() + ")"
}

// GoString keeps %#v from printing the secret bytes.
func (s Salt) GoString() string {
	return s.String()
}
