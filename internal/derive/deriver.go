// Package derive turns identifiers into deterministic, non-spendable account
// addresses.
package derive

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"

	"filippo.io/edwards25519"

	"github.com/congo-pay/simwallet/internal/metrics"
)

// Domain partitions the derived-address keyspace by purpose.
type Domain string

const (
	DomainWallet       Domain = "wallet"
	DomainAlias        Domain = "alias"
	DomainConfig       Domain = "config"
	DomainMintRegistry Domain = "mint_registry"
)

// MaxSeedLen bounds each seed, as on the ledgers that use this scheme.
const MaxSeedLen = 32

// derivationMarker is appended to every candidate preimage.
const derivationMarker = "ProgramDerivedAddress"

var (
	// ErrExhaustedKeyspace means no bump in [0, 255] produced an off-curve
	// address. It is not expected to happen and must not be retried.
	ErrExhaustedKeyspace = errors.New("exhausted derivation keyspace")
	// ErrUnknownDomain is returned for a domain tag outside the known set.
	ErrUnknownDomain = errors.New("unknown domain tag")
	// ErrSeedTooLong is returned for seeds longer than MaxSeedLen.
	ErrSeedTooLong = errors.New("seed too long")
	// ErrOnCurve is returned by CreateAddress when the candidate is a valid
	// public key and therefore spendable.
	ErrOnCurve = errors.New("derived address is on curve")
)

func (d Domain) valid() bool {
	switch d {
	case DomainWallet, DomainAlias, DomainConfig, DomainMintRegistry:
		return true
	}
	return false
}

// Deriver maps (domain, seed) to a deterministic address and bump.
type Deriver interface {
	Derive(domain Domain, seed []byte) (Address, uint8, error)
}

// PDADeriver derives program-owned addresses: the first bump, searched from
// 255 down to 0, whose candidate hash does not decode as an ed25519 point.
type PDADeriver struct {
	program Address
	logger  *slog.Logger
	onCurve func([]byte) bool
}

// NewPDADeriver builds a deriver rooted at program.
func NewPDADeriver(program Address, logger *slog.Logger) *PDADeriver {
	return &PDADeriver{program: program, logger: logger, onCurve: isOnCurve}
}

// Program returns the owning program address.
func (d *PDADeriver) Program() Address {
	return d.program
}

// Derive returns the canonical address and bump for (domain, seed).
func (d *PDADeriver) Derive(domain Domain, seed []byte) (Address, uint8, error) {
	if err := checkInputs(domain, seed); err != nil {
		metrics.Derivations.WithLabelValues(string(domain), "rejected").Inc()
		return Address{}, 0, err
	}

	for bump := 255; bump >= 0; bump-- {
		candidate := d.candidate(domain, seed, uint8(bump))
		if !d.onCurve(candidate[:]) {
			metrics.Derivations.WithLabelValues(string(domain), "ok").Inc()
			return candidate, uint8(bump), nil
		}
	}

	metrics.Derivations.WithLabelValues(string(domain), "exhausted").Inc()
	metrics.ExhaustedKeyspace.WithLabelValues(string(domain)).Inc()
	d.logger.Error("address derivation exhausted bump space",
		slog.String("domain", string(domain)),
		slog.Int("seed_len", len(seed)),
		slog.String("program", d.program.String()),
	)
	return Address{}, 0, fmt.Errorf("%w: domain %s", ErrExhaustedKeyspace, domain)
}

// CreateAddress recomputes the address for an explicit bump, failing with
// ErrOnCurve when that bump does not yield a valid derived address.
func (d *PDADeriver) CreateAddress(domain Domain, seed []byte, bump uint8) (Address, error) {
	if err := checkInputs(domain, seed); err != nil {
		return Address{}, err
	}
	candidate := d.candidate(domain, seed, bump)
	if d.onCurve(candidate[:]) {
		return Address{}, ErrOnCurve
	}
	return candidate, nil
}

// Verify reports whether addr is the canonical derivation of (domain, seed).
func (d *PDADeriver) Verify(domain Domain, seed []byte, addr Address) bool {
	got, _, err := d.Derive(domain, seed)
	return err == nil && got == addr
}

func (d *PDADeriver) candidate(domain Domain, seed []byte, bump uint8) Address {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write(seed)
	h.Write([]byte{bump})
	h.Write(d.program[:])
	h.Write([]byte(derivationMarker))

	var a Address
	h.Sum(a[:0])
	return a
}

func checkInputs(domain Domain, seed []byte) error {
	if !domain.valid() {
		return fmt.Errorf("%w: %q", ErrUnknownDomain, string(domain))
	}
	if len(seed) > MaxSeedLen {
		return fmt.Errorf("%w: %d bytes, max %d", ErrSeedTooLong, len(seed), MaxSeedLen)
	}
	return nil
}

func isOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// ProgramFromName derives a stable program address from a human-readable name
// for deployments that do not pin one explicitly.
func ProgramFromName(name string) Address {
	return Address(sha256.Sum256([]byte("simwallet-program:" + name)))
}
