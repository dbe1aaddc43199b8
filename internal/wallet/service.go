package wallet

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/congo-pay/simwallet/internal/derive"
	"github.com/congo-pay/simwallet/internal/salt"
)

const (
	statusActive = "active"
)

// SaltSource yields the salt derivations must use.
type SaltSource interface {
	Current() (salt.Salt, error)
}

type cachedDerivation struct {
	address derive.Address
	bump    uint8
}

// Service provisions wallets at addresses derived from phone identities.
type Service struct {
	repo    Repository
	deriver derive.Deriver
	salts   SaltSource
	cache   *lru.Cache[string, cachedDerivation]
	now     func() time.Time
}

// NewService builds a wallet service instance. cacheSize bounds the number of
// memoized derivations.
func NewService(repo Repository, deriver derive.Deriver, salts SaltSource, cacheSize int) (*Service, error) {
	cache, err := lru.New[string, cachedDerivation](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("derivation cache: %w", err)
	}
	return &Service{repo: repo, deriver: deriver, salts: salts, cache: cache, now: time.Now}, nil
}

// Resolve maps a canonical identifier to its wallet address under the current
// salt. It reads the salt before hashing and fails fast if none is set.
func (s *Service) Resolve(identifier string) (Resolution, error) {
	current, err := s.salts.Current()
	if err != nil {
		return Resolution{}, err
	}
	digest := derive.HashIdentifier(identifier, current)
	addr, bump, err := s.derive(derive.DomainWallet, digest[:])
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{
		Identifier:      identifier,
		Address:         addr.String(),
		Bump:            bump,
		SaltFingerprint: current.Fingerprint(),
	}, nil
}

// Provision creates the wallet record for ownerID at the identifier's derived address.
func (s *Service) Provision(ctx context.Context, ownerID, identifier string) (Wallet, error) {
	res, err := s.Resolve(identifier)
	if err != nil {
		return Wallet{}, err
	}

	wallet := Wallet{
		Address:         res.Address,
		OwnerID:         ownerID,
		Bump:            res.Bump,
		SaltFingerprint: res.SaltFingerprint,
		Status:          statusActive,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.repo.Create(ctx, wallet); err != nil {
		return Wallet{}, err
	}
	return wallet, nil
}

// Get retrieves wallet metadata.
func (s *Service) Get(ctx context.Context, address string) (Wallet, error) {
	return s.repo.Get(ctx, address)
}

// GetByOwner retrieves the owner's current wallet.
func (s *Service) GetByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	return s.repo.GetByOwner(ctx, ownerID)
}

// IsCurrent reports whether w was derived under the salt in effect now. A
// false result means a rotation happened since provisioning and the wallet
// needs an out-of-band migration.
func (s *Service) IsCurrent(w Wallet) (bool, error) {
	current, err := s.salts.Current()
	if err != nil {
		return false, err
	}
	return w.SaltFingerprint == current.Fingerprint(), nil
}

func (s *Service) derive(domain derive.Domain, seed []byte) (derive.Address, uint8, error) {
	key := string(domain) + ":" + hex.EncodeToString(seed)
	if hit, ok := s.cache.Get(key); ok {
		return hit.address, hit.bump, nil
	}
	addr, bump, err := s.deriver.Derive(domain, seed)
	if err != nil {
		return derive.Address{}, 0, err
	}
	s.cache.Add(key, cachedDerivation{address: addr, bump: bump})
	return addr, bump, nil
}
