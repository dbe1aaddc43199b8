package derive

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/congo-pay/simwallet/internal/salt"
)

// DigestSize is the byte length of an identifier digest.
const DigestSize = sha256.Size

// Digest is the salted hash of a canonical identifier.
type Digest [DigestSize]byte

// HashIdentifier hashes a canonical identifier under s.
//
// Framing: SHA-256( uint32_be(len(identifier)) || identifier || salt ). The
// length prefix keeps (a, b) and (a||b[:1], b[1:]) splits from colliding; the
// salt is fixed width so it needs none.
func HashIdentifier(identifier string, s salt.Salt) Digest {
	h := sha256.New()
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(identifier)))
	h.Write(prefix[:])
	h.Write([]byte(identifier))
	h.Write(s[:])

	var d Digest
	h.Sum(d[:0])
	return d
}

// Bytes returns a copy of the digest.
func (d Digest) Bytes() []byte {
	b := make([]byte, DigestSize)
	copy(b, d[:])
	return b
}

// Hex returns the lowercase hex encoding.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}
