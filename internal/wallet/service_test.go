package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/congo-pay/simwallet/internal/authority"
	"github.com/congo-pay/simwallet/internal/derive"
	"github.com/congo-pay/simwallet/internal/logging"
	"github.com/congo-pay/simwallet/internal/salt"
)

type countingDeriver struct {
	inner derive.Deriver
	calls int
}

func (d *countingDeriver) Derive(domain derive.Domain, seed []byte) (derive.Address, uint8, error) {
	d.calls++
	return d.inner.Derive(domain, seed)
}

func setup(t *testing.T) (*Service, *salt.Manager, *countingDeriver) {
	t.Helper()
	salts := salt.NewManager(salt.NewMemoryStore(), nil, logging.Discard())
	var initial salt.Salt
	for i := range initial {
		initial[i] = byte(i + 1)
	}
	if err := salts.Initialize(context.Background(), initial); err != nil {
		t.Fatalf("initialize salt: %v", err)
	}
	deriver := &countingDeriver{inner: derive.NewPDADeriver(derive.ProgramFromName("wallet-test"), logging.Discard())}
	svc, err := NewService(NewMemoryRepository(), deriver, salts, 16)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, salts, deriver
}

func TestServiceProvisionAndGet(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()
	ownerID := uuid.NewString()

	wallet, err := svc.Provision(ctx, ownerID, "+16502530000")
	if err != nil {
		t.Fatalf("provision wallet: %v", err)
	}

	fetched, err := svc.Get(ctx, wallet.Address)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if fetched.Address != wallet.Address || fetched.OwnerID != ownerID {
		t.Fatalf("expected wallet %s, got %s", wallet.Address, fetched.Address)
	}

	byOwner, err := svc.GetByOwner(ctx, ownerID)
	if err != nil {
		t.Fatalf("get by owner: %v", err)
	}
	if byOwner.Address != wallet.Address {
		t.Fatalf("unexpected wallet for owner: %s", byOwner.Address)
	}

	if _, err := svc.Provision(ctx, uuid.NewString(), "+16502530000"); !errors.Is(err, ErrWalletExists) {
		t.Fatalf("expected ErrWalletExists for the same identifier, got %v", err)
	}
}

func TestResolveIsDeterministicAndCached(t *testing.T) {
	svc, _, deriver := setup(t)

	first, err := svc.Resolve("+16502530000")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	second, err := svc.Resolve("+16502530000")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if first != second {
		t.Fatalf("resolution not deterministic: %+v vs %+v", first, second)
	}
	if deriver.calls != 1 {
		t.Fatalf("expected a single derivation, got %d", deriver.calls)
	}
}

func TestRotationMarksWalletStale(t *testing.T) {
	svc, salts, _ := setup(t)
	ctx := context.Background()

	wallet, err := svc.Provision(ctx, uuid.NewString(), "+16502530000")
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if ok, err := svc.IsCurrent(wallet); err != nil || !ok {
		t.Fatalf("fresh wallet should be current: ok=%v err=%v", ok, err)
	}

	if err := salts.Rotate(ctx, authority.Admin("ops"), salt.Salt{}); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	if ok, err := svc.IsCurrent(wallet); err != nil || ok {
		t.Fatalf("wallet should be stale after rotation: ok=%v err=%v", ok, err)
	}
	res, err := svc.Resolve("+16502530000")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Address == wallet.Address {
		t.Fatalf("rotation must change the derived address")
	}
}

func TestResolveWithoutSalt(t *testing.T) {
	salts := salt.NewManager(salt.NewMemoryStore(), nil, logging.Discard())
	svc, err := NewService(NewMemoryRepository(), derive.NewPDADeriver(derive.ProgramFromName("x"), logging.Discard()), salts, 4)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.Resolve("+16502530000"); !errors.Is(err, salt.ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}
