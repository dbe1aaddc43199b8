package identity

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/congo-pay/simwallet/internal/credential"
	"github.com/congo-pay/simwallet/internal/derive"
	"github.com/congo-pay/simwallet/internal/logging"
	"github.com/congo-pay/simwallet/internal/salt"
	"github.com/congo-pay/simwallet/internal/wallet"
)

const testPIN = "k7Pq2m9X"

func newTestService(t *testing.T, logger *bytes.Buffer) (*Service, Repository, *salt.Manager) {
	t.Helper()
	salts := salt.NewManager(salt.NewMemoryStore(), nil, logging.Discard())
	if err := salts.Initialize(context.Background(), salt.Salt{}); err != nil {
		t.Fatalf("initialize salt: %v", err)
	}
	wallets, err := wallet.NewService(wallet.NewMemoryRepository(), derive.NewPDADeriver(derive.ProgramFromName("identity-test"), logging.Discard()), salts, 8)
	if err != nil {
		t.Fatalf("wallet service: %v", err)
	}
	repo := NewMemoryRepository()
	hasher := credential.NewHasher(credential.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1})
	l := logging.Discard()
	if logger != nil {
		l = logging.NewWithWriter(logger, "debug")
	}
	return NewService(repo, wallets, hasher, credential.NewAlphanumeric(), "US", l), repo, salts
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	user, w, err := svc.Register(ctx, Credentials{Phone: "(650) 253-0000", PIN: testPIN, DeviceID: "device-1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Phone != "+16502530000" {
		t.Fatalf("expected canonical phone, got %s", user.Phone)
	}
	if user.Tier != tierZero {
		t.Fatalf("expected tier0, got %s", user.Tier)
	}
	if user.PIN.Scheme != credential.SchemeArgon2id {
		t.Fatalf("expected argon2id credential, got %s", user.PIN.Scheme)
	}
	if w.OwnerID != user.ID || w.Address == "" {
		t.Fatalf("wallet not provisioned for user: %+v", w)
	}

	authed, err := svc.Authenticate(ctx, Credentials{Phone: "+1 650 253 0000", PIN: testPIN, DeviceID: "device-1"})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if authed.Tier != tierOne {
		t.Fatalf("expected promotion to tier1, got %s", authed.Tier)
	}
	if authed.LastLogin == nil {
		t.Fatalf("expected last login to be recorded")
	}
}

func TestRegisterWalletMatchesResolve(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	_, w, err := svc.Register(context.Background(), Credentials{Phone: "+16502530000", PIN: testPIN})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	res, err := svc.wallets.Resolve("+16502530000")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Address != w.Address {
		t.Fatalf("registered wallet %s differs from resolved %s", w.Address, res.Address)
	}
}

func TestRegisterRejectsWeakPINAndDuplicates(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, Credentials{Phone: "+16502530000", PIN: "12345678"}); !errors.Is(err, credential.ErrPolicyViolation) {
		t.Fatalf("expected policy violation, got %v", err)
	}
	if _, _, err := svc.Register(ctx, Credentials{Phone: "no digits", PIN: testPIN}); !errors.Is(err, ErrInvalidPhone) {
		t.Fatalf("expected ErrInvalidPhone, got %v", err)
	}
	if _, _, err := svc.Register(ctx, Credentials{Phone: "+16502530000", PIN: testPIN}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := svc.Register(ctx, Credentials{Phone: "650-253-0000", PIN: testPIN}); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestRegisterRequiresSalt(t *testing.T) {
	salts := salt.NewManager(salt.NewMemoryStore(), nil, logging.Discard())
	wallets, err := wallet.NewService(wallet.NewMemoryRepository(), derive.NewPDADeriver(derive.ProgramFromName("identity-test"), logging.Discard()), salts, 8)
	if err != nil {
		t.Fatalf("wallet service: %v", err)
	}
	repo := NewMemoryRepository()
	svc := NewService(repo, wallets, credential.NewHasher(credential.DefaultArgon2Params), credential.NewAlphanumeric(), "US", nil)

	if _, _, err := svc.Register(context.Background(), Credentials{Phone: "+16502530000", PIN: testPIN}); !errors.Is(err, salt.ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if _, err := repo.FindByPhone(context.Background(), "+16502530000"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("no user should be stored without a salt, got %v", err)
	}
}

// flakyWallets fails Create while down is set.
type flakyWallets struct {
	wallet.Repository
	down bool
}

func (r *flakyWallets) Create(ctx context.Context, w wallet.Wallet) error {
	if r.down {
		return errors.New("db down")
	}
	return r.Repository.Create(ctx, w)
}

func TestRegisterRollsBackUserWhenProvisioningFails(t *testing.T) {
	salts := salt.NewManager(salt.NewMemoryStore(), nil, logging.Discard())
	if err := salts.Initialize(context.Background(), salt.Salt{}); err != nil {
		t.Fatalf("initialize salt: %v", err)
	}
	walletRepo := &flakyWallets{Repository: wallet.NewMemoryRepository(), down: true}
	wallets, err := wallet.NewService(walletRepo, derive.NewPDADeriver(derive.ProgramFromName("identity-test"), logging.Discard()), salts, 8)
	if err != nil {
		t.Fatalf("wallet service: %v", err)
	}
	repo := NewMemoryRepository()
	hasher := credential.NewHasher(credential.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1})
	svc := NewService(repo, wallets, hasher, credential.NewAlphanumeric(), "US", logging.Discard())
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, Credentials{Phone: "+16502530000", PIN: testPIN}); err == nil || !strings.Contains(err.Error(), "db down") {
		t.Fatalf("expected provisioning error, got %v", err)
	}
	if _, err := repo.FindByPhone(ctx, "+16502530000"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("user without wallet left behind: %v", err)
	}

	walletRepo.down = false
	user, w, err := svc.Register(ctx, Credentials{Phone: "+16502530000", PIN: testPIN})
	if err != nil {
		t.Fatalf("retry register: %v", err)
	}
	if w.OwnerID != user.ID {
		t.Fatalf("wallet owner %s, want %s", w.OwnerID, user.ID)
	}
}

func TestAuthenticateFailures(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, Credentials{Phone: "+16502530000", PIN: testPIN, DeviceID: "device-1"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Authenticate(ctx, Credentials{Phone: "+16502530000", PIN: testPIN, DeviceID: "device-2"}); !errors.Is(err, ErrDeviceMismatch) {
		t.Fatalf("expected device mismatch error, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, Credentials{Phone: "+16502530000", PIN: "wrongPIN9", DeviceID: "device-1"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, Credentials{Phone: "+16502530001", PIN: testPIN}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown phone must look like a bad PIN, got %v", err)
	}
}

func TestAuthenticateBindsFirstDevice(t *testing.T) {
	svc, repo, _ := newTestService(t, nil)
	ctx := context.Background()

	user, _, err := svc.Register(ctx, Credentials{Phone: "+16502530000", PIN: testPIN})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Authenticate(ctx, Credentials{Phone: "+16502530000", PIN: testPIN}); !errors.Is(err, ErrDeviceRequired) {
		t.Fatalf("expected ErrDeviceRequired, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, Credentials{Phone: "+16502530000", PIN: testPIN, DeviceID: "device-9"}); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	stored, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if stored.DeviceID != "device-9" {
		t.Fatalf("expected bound device, got %q", stored.DeviceID)
	}
}

func TestAuthenticateLegacyCredential(t *testing.T) {
	svc, repo, _ := newTestService(t, nil)
	ctx := context.Background()

	legacy := User{ID: "5b0e1d4e-9f4f-4d8e-9d0c-3b9a4f1f2a10", Phone: "+16502530000", Tier: tierOne, DeviceID: "d",
		PIN: credential.Credential{Scheme: credential.SchemeSHA256, Hash: credential.HashPIN("482915")}}
	if err := repo.Create(ctx, legacy); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := svc.Authenticate(ctx, Credentials{Phone: "+16502530000", PIN: "482915", DeviceID: "d"}); err != nil {
		t.Fatalf("legacy authenticate: %v", err)
	}
}

func TestLogsNeverCarryPINOrFullPhone(t *testing.T) {
	var buf bytes.Buffer
	svc, _, _ := newTestService(t, &buf)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, Credentials{Phone: "+16502530000", PIN: testPIN, DeviceID: "d"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, _ = svc.Authenticate(ctx, Credentials{Phone: "+16502530000", PIN: "wrongPIN9", DeviceID: "d"})

	out := buf.String()
	if out == "" {
		t.Fatalf("expected log output")
	}
	for _, secret := range []string{testPIN, "wrongPIN9", "6502530000"} {
		if strings.Contains(out, secret) {
			t.Fatalf("log output leaks %q: %s", secret, out)
		}
	}
}
