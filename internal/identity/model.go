package identity

import (
	"time"

	"github.com/congo-pay/simwallet/internal/credential"
)

// User represents a registered wallet owner.
type User struct {
	ID           string
	Phone        string
	Tier         string
	PIN          credential.Credential
	DeviceID     string
	TokenVersion int
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// Credentials request structure. Region is optional and falls back to the
// service default.
type Credentials struct {
	Phone    string
	Region   string
	PIN      string
	DeviceID string
}
