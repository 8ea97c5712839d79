package envelope

import (
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"

	"golang.org/x/crypto/pbkdf2"
)

// Digest names the hash function PBKDF2 stretches the passphrase with.
type Digest string

const (
	DigestSHA1   Digest = "sha1"
	DigestSHA256 Digest = "sha256"
)

func (d Digest) newHash() (func() hash.Hash, error) {
	switch d {
	case DigestSHA1:
		return sha1.New, nil
	case DigestSHA256:
		return sha256.New, nil
	default:
		return nil, fmt.Errorf("envelope: unsupported KDF digest %q", d)
	}
}

// DeriveKey stretches password into a keyLen-byte AES key using
// PBKDF2, per spec.md §4.D's key schedule: salt and iterations are
// negotiated in hello.cipher, digest defaults to SHA-256 but SHA-1 is
// accepted for interoperability with older peers.
func DeriveKey(password string, salt []byte, iterations, keyLen int, digest Digest) ([]byte, error) {
	newHash, err := digest.newHash()
	if err != nil {
		return nil, err
	}
	if iterations <= 0 {
		return nil, fmt.Errorf("envelope: iterations must be positive, got %d", iterations)
	}
	if keyLen <= 0 {
		return nil, fmt.Errorf("envelope: keyLen must be positive, got %d", keyLen)
	}
	return pbkdf2.Key([]byte(password), salt, iterations, keyLen, newHash), nil
}
