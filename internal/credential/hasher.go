package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// DigestSize is the byte length of a PIN digest.
const DigestSize = 32

// SaltSize is the byte length of a per-account PIN salt.
const SaltSize = 16

// Schemes stored alongside a credential.
const (
	// SchemeSHA256 is the unsalted single-pass digest. It is weak against
	// precomputation over the small PIN space and is kept only to verify
	// credentials created before per-account salts.
	SchemeSHA256 = "sha256"
	// SchemeArgon2id mixes a per-account random salt through Argon2id.
	SchemeArgon2id = "argon2id"
)

// ErrUnknownScheme is returned when a stored credential names no known scheme.
var ErrUnknownScheme = errors.New("unknown credential scheme")

// Digest is a hashed PIN.
type Digest [DigestSize]byte

// HashPIN is the unsalted SHA-256 of the PIN bytes.
func HashPIN(pin string) Digest {
	return Digest(sha256.Sum256([]byte(pin)))
}

// Credential is what gets persisted for a PIN.
type Credential struct {
	Scheme string
	Salt   []byte
	Hash   Digest
}

// Argon2Params tunes the Argon2id scheme.
type Argon2Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultArgon2Params follows the RFC 9106 second recommended option.
var DefaultArgon2Params = Argon2Params{Time: 3, Memory: 64 * 1024, Threads: 4}

// Hasher seals PINs into credentials and verifies submissions against them.
// It is safe for concurrent use.
type Hasher struct {
	params Argon2Params
}

// NewHasher builds a hasher with the given Argon2id parameters.
func NewHasher(params Argon2Params) *Hasher {
	return &Hasher{params: params}
}

// Seal hashes pin under a fresh per-account salt.
func (h *Hasher) Seal(pin string) (Credential, error) {
	s := make([]byte, SaltSize)
	if _, err := rand.Read(s); err != nil {
		return Credential{}, fmt.Errorf("read pin salt: %w", err)
	}
	return Credential{Scheme: SchemeArgon2id, Salt: s, Hash: h.argon(pin, s)}, nil
}

// Verify re-derives the digest for pin under cred's scheme and compares
// digests in constant time.
func (h *Hasher) Verify(pin string, cred Credential) (bool, error) {
	var got Digest
	switch cred.Scheme {
	case SchemeArgon2id:
		got = h.argon(pin, cred.Salt)
	case SchemeSHA256:
		got = HashPIN(pin)
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownScheme, cred.Scheme)
	}
	return subtle.ConstantTimeCompare(got[:], cred.Hash[:]) == 1, nil
}

func (h *Hasher) argon(pin string, s []byte) Digest {
	var d Digest
	copy(d[:], argon2.IDKey([]byte(pin), s, h.params.Time, h.params.Memory, h.params.Threads, DigestSize))
	return d
}
