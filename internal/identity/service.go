package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/simwallet/internal/credential"
	"github.com/congo-pay/simwallet/internal/logging"
	"github.com/congo-pay/simwallet/internal/phone"
	"github.com/congo-pay/simwallet/internal/wallet"
)

const (
	tierZero = "tier0"
	tierOne  = "tier1"
)

// Service manages identity lifecycle.
type Service struct {
	repo          Repository
	wallets       *wallet.Service
	hasher        *credential.Hasher
	policy        credential.Policy
	defaultRegion string
	logger        *slog.Logger
	now           func() time.Time
}

// NewService creates a new identity service. Numbers submitted without a
// region are parsed against defaultRegion.
func NewService(repo Repository, wallets *wallet.Service, hasher *credential.Hasher, policy credential.Policy, defaultRegion string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		repo:          repo,
		wallets:       wallets,
		hasher:        hasher,
		policy:        policy,
		defaultRegion: defaultRegion,
		logger:        logger,
		now:           time.Now,
	}
}

// Identifier returns the canonical identifier for a raw number.
func (s *Service) Identifier(raw, region string) (string, error) {
	if region == "" {
		region = s.defaultRegion
	}
	id := phone.Normalize(raw, region)
	if id == "" {
		return "", ErrInvalidPhone
	}
	return id, nil
}

// Register creates a new Tier0 user, seals the PIN and provisions the wallet
// at the address derived from the canonical phone identifier.
func (s *Service) Register(ctx context.Context, creds Credentials) (User, wallet.Wallet, error) {
	identifier, err := s.Identifier(creds.Phone, creds.Region)
	if err != nil {
		return User{}, wallet.Wallet{}, err
	}
	if err := credential.ValidateStrength(creds.PIN, s.policy); err != nil {
		return User{}, wallet.Wallet{}, err
	}
	// Resolve before writing anything so a missing salt fails cleanly.
	if _, err := s.wallets.Resolve(identifier); err != nil {
		return User{}, wallet.Wallet{}, err
	}

	sealed, err := s.hasher.Seal(creds.PIN)
	if err != nil {
		return User{}, wallet.Wallet{}, err
	}

	user := User{
		ID:        uuid.New().String(),
		Phone:     identifier,
		Tier:      tierZero,
		PIN:       sealed,
		DeviceID:  creds.DeviceID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, wallet.Wallet{}, err
	}

	w, err := s.wallets.Provision(ctx, user.ID, identifier)
	if err != nil {
		s.logger.Error("identity.register wallet provisioning failed",
			slog.String("user_id", user.ID),
			slog.String("phone", logging.RedactPhone(identifier)),
			slog.Any("error", err),
		)
		// Drop the user so a retry can register the number again.
		if delErr := s.repo.Delete(context.WithoutCancel(ctx), user.ID); delErr != nil {
			s.logger.Error("identity.register rollback failed",
				slog.String("user_id", user.ID),
				slog.Any("error", delErr),
			)
		}
		return User{}, wallet.Wallet{}, err
	}

	s.logger.Info("identity.register completed",
		slog.String("user_id", user.ID),
		slog.String("phone", logging.RedactPhone(identifier)),
		slog.String("wallet", w.Address),
	)
	return user, w, nil
}

// Authenticate verifies credentials and device binding.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (User, error) {
	identifier, err := s.Identifier(creds.Phone, creds.Region)
	if err != nil {
		return User{}, ErrInvalidCredentials
	}
	user, err := s.repo.FindByPhone(ctx, identifier)
	if errors.Is(err, ErrUserNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}

	ok, err := s.hasher.Verify(creds.PIN, user.PIN)
	if err != nil {
		return User{}, err
	}
	if !ok {
		s.logger.Warn("identity.authenticate rejected",
			slog.String("user_id", user.ID),
			slog.String("reason", "pin"),
		)
		return User{}, ErrInvalidCredentials
	}

	if user.DeviceID == "" {
		if creds.DeviceID == "" {
			return User{}, ErrDeviceRequired
		}
		if err := s.repo.UpdateDevice(ctx, user.ID, creds.DeviceID); err != nil {
			return User{}, err
		}
		user.DeviceID = creds.DeviceID
	} else if creds.DeviceID != "" && user.DeviceID != creds.DeviceID {
		return User{}, ErrDeviceMismatch
	}

	now := s.now().UTC()
	if err := s.repo.TouchLogin(ctx, user.ID, now); err != nil {
		return User{}, err
	}
	user.LastLogin = &now

	if user.Tier == tierZero {
		user.Tier = tierOne
	}

	return user, nil
}

// FindByID returns the user with the given id.
func (s *Service) FindByID(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}
