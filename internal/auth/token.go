package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ErrInvalidToken is returned for any token that fails parsing, signature or
// expiry checks.
var ErrInvalidToken = errors.New("invalid token")

// Claims carried by access and refresh tokens.
type Claims struct {
	Phone   string `json:"phone,omitempty"`
	Tier    string `json:"tier,omitempty"`
	Address string `json:"addr,omitempty"`
	Version int    `json:"ver"`
	jwt.RegisteredClaims
}

// Sign creates a compact HS256 token for claims.
func Sign(claims Claims, secret []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Parse verifies the token signature and expiry and returns its claims.
func Parse(token string, secret []byte) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

func newClaims(subject string, version int, now time.Time, ttl time.Duration) Claims {
	return Claims{
		Version: version,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}
