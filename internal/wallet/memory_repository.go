package wallet

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Wallet
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]Wallet)}
}

func (r *memoryRepository) Create(_ context.Context, wallet Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[wallet.Address]; exists {
		return ErrWalletExists
	}
	r.storage[wallet.Address] = wallet
	return nil
}

func (r *memoryRepository) Get(_ context.Context, address string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wallet, ok := r.storage[address]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return wallet, nil
}

func (r *memoryRepository) GetByOwner(_ context.Context, ownerID string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var (
		found Wallet
		ok    bool
	)
	for _, w := range r.storage {
		if w.OwnerID == ownerID && (!ok || w.CreatedAt.After(found.CreatedAt)) {
			found, ok = w, true
		}
	}
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return found, nil
}
