package wallet

import "time"

// Wallet is the account record provisioned for a registered phone identity.
type Wallet struct {
	Address string
	OwnerID string
	Bump    uint8
	// SaltFingerprint tags the salt the address was derived under. A wallet
	// whose fingerprint differs from the current salt's predates a rotation.
	SaltFingerprint string
	Status          string
	CreatedAt       time.Time
}

// Resolution is the outcome of mapping a canonical identifier to its address
// under the current salt.
type Resolution struct {
	Identifier      string
	Address         string
	Bump            uint8
	SaltFingerprint string
}
