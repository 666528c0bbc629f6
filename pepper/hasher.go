// Package pepper derives server-side device digests from client device
// secrets using a keyed BLAKE2b-256 hash. The key is an operator-held
// pepper that never leaves the server, so a leaked session store cannot
// be replayed against device binding.
package pepper

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/blake2b"
)

// DigestSize is the length in bytes of a device digest.
const DigestSize = 32

var (
	// ErrPepperTooShort is returned when the pepper is under 32 bytes.
	ErrPepperTooShort = errors.New("pepper must be at least 32 bytes")
	// ErrPepperTooLong is returned when the pepper exceeds the keyed
	// BLAKE2b key limit of 64 bytes.
	ErrPepperTooLong = errors.New("pepper must be at most 64 bytes")
)

// Digest is a fixed-size keyed hash of a client device secret.
type Digest [DigestSize]byte

// Hasher computes device digests with a fixed pepper. It is safe for
// concurrent use.
type Hasher struct {
	key []byte
}

// New returns a Hasher keyed with pepper. The pepper must be between 32
// and 64 bytes.
func New(pepper []byte) (*Hasher, error) {
	if len(pepper) < 32 {
		return nil, ErrPepperTooShort
	}
	if len(pepper) > 64 {
		return nil, ErrPepperTooLong
	}
	key := make([]byte, len(pepper))
	copy(key, pepper)
	return &Hasher{key: key}, nil
}

// Sum computes the digest of a client device secret.
func (h *Hasher) Sum(secret string) Digest {
	mac, err := blake2b.New256(h.key)
	if err != nil {
		// New256 only fails on oversized keys, which New rejects.
		panic(err)
	}
	mac.Write([]byte(secret))

	var d Digest
	mac.Sum(d[:0])
	return d
}

// Match reports whether two digests are equal in constant time.
func Match(a, b Digest) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
