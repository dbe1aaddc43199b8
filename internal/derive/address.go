package derive

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// AddressSize is the byte length of an account address.
const AddressSize = 32

// ErrInvalidAddress is returned when decoding a malformed address.
var ErrInvalidAddress = errors.New("invalid address")

// Address is a 32-byte account address, rendered in base58.
type Address [AddressSize]byte

// ParseAddress decodes a base58 address.
func ParseAddress(s string) (Address, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != AddressSize {
		return Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, AddressSize, len(raw))
	}
	var a Address
	copy(a[:], raw)
	return a, nil
}

// MustParseAddress is ParseAddress for constants; it panics on bad input.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String returns the base58 encoding.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// IsZero reports whether the address is all zeros.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Bytes returns a copy of the address.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressSize)
	copy(b, a[:])
	return b
}
