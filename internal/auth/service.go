package auth

import (
	"context"
	"errors"
	"time"

	"github.com/congo-pay/simwallet/internal/config"
	"github.com/congo-pay/simwallet/internal/identity"
)

var (
	ErrTokenRevoked = errors.New("token version invalidated")
)

type Service struct {
	cfg    config.Config
	idRepo identity.Repository
	now    func() time.Time
}

func NewService(cfg config.Config, idRepo identity.Repository) *Service {
	return &Service{cfg: cfg, idRepo: idRepo, now: time.Now}
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Login issues a token pair for an already authenticated user. address is the
// user's wallet address and may be empty.
func (s *Service) Login(user identity.User, address string) (TokenPair, error) {
	now := s.now()
	access := newClaims(user.ID, user.TokenVersion, now, s.cfg.AccessTokenTTL)
	access.Phone = user.Phone
	access.Tier = user.Tier
	access.Address = address
	accessToken, err := Sign(access, []byte(s.cfg.JWTSecret))
	if err != nil {
		return TokenPair{}, err
	}
	refresh := newClaims(user.ID, user.TokenVersion, now, s.cfg.RefreshTokenTTL)
	refresh.Address = address
	refreshToken, err := Sign(refresh, []byte(s.cfg.RefreshSecret))
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken, ExpiresIn: int64(s.cfg.AccessTokenTTL.Seconds())}, nil
}

// Refresh verifies the refresh token and returns a new access token if valid.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, int64, error) {
	claims, err := Parse(refreshToken, []byte(s.cfg.RefreshSecret))
	if err != nil {
		return "", 0, err
	}
	user, err := s.checkVersion(ctx, claims)
	if err != nil {
		return "", 0, err
	}

	access := newClaims(user.ID, user.TokenVersion, s.now(), s.cfg.AccessTokenTTL)
	access.Phone = user.Phone
	access.Tier = user.Tier
	access.Address = claims.Address
	signed, err := Sign(access, []byte(s.cfg.JWTSecret))
	if err != nil {
		return "", 0, err
	}
	return signed, int64(s.cfg.AccessTokenTTL.Seconds()), nil
}

// Verify parses an access token and checks it has not been revoked.
func (s *Service) Verify(ctx context.Context, accessToken string) (Claims, error) {
	claims, err := Parse(accessToken, []byte(s.cfg.JWTSecret))
	if err != nil {
		return Claims{}, err
	}
	if _, err := s.checkVersion(ctx, claims); err != nil {
		return Claims{}, err
	}
	return claims, nil
}

// Logout increments token version so older tokens become invalid.
func (s *Service) Logout(ctx context.Context, userID string) error {
	user, err := s.idRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	return s.idRepo.UpdateTokenVersion(ctx, user.ID, user.TokenVersion+1)
}

func (s *Service) checkVersion(ctx context.Context, claims Claims) (identity.User, error) {
	user, err := s.idRepo.FindByID(ctx, claims.Subject)
	if errors.Is(err, identity.ErrUserNotFound) {
		return identity.User{}, ErrInvalidToken
	}
	if err != nil {
		return identity.User{}, err
	}
	if user.TokenVersion != claims.Version {
		return identity.User{}, ErrTokenRevoked
	}
	return user, nil
}
