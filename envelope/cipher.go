// Package envelope implements the AES encryption envelope applied to
// whole framed packets: CBC/GCM/CTR/CFB modes and PBKDF2 key
// stretching, grounded on the Cipher interface shape used by
// balookrd-outline-cli-ws's shadowsocks cipher suite and widened to
// the modes this wire protocol negotiates.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

// Mode names a supported AES cipher mode.
type Mode string

const (
	ModeCBC Mode = "cbc"
	ModeGCM Mode = "gcm"
	ModeCTR Mode = "ctr"
	ModeCFB Mode = "cfb"
)

// Cipher encrypts and decrypts whole packet payloads (after
// rencodeplus encoding and optional compression). Seal and Open match
// frame.Cipher's method set structurally, so any Cipher here can be
// passed directly as a frame.Cipher argument without either package
// importing the other.
type Cipher interface {
	// Seal appends the encrypted form of plaintext to dst and returns
	// the extended slice. The output includes any IV/nonce prefix and,
	// for AEAD modes, the authentication tag.
	Seal(dst, plaintext []byte) ([]byte, error)

	// Open appends the decrypted form of ciphertext to dst and returns
	// the extended slice, or ErrAuthFailed / ErrShortCiphertext /
	// ErrInvalidPadding on failure.
	Open(dst, ciphertext []byte) ([]byte, error)

	// Mode reports which AES mode this Cipher implements.
	Mode() Mode
}

// New builds a Cipher for the given mode and key. key must be 16, 24,
// or 32 bytes (AES-128/192/256); 256-bit keys are recommended, 128/192
// are accepted but discouraged per the wire contract. isInitiator
// matters only for ModeCTR (see ctr.go); other modes ignore it. For
// ModeCTR, a fresh per-connection IV is generated; use NewWithIV to
// reconstruct the peer side of a CTR connection from the IV carried
// in hello.
func New(mode Mode, key []byte, isInitiator bool) (Cipher, error) {
	block, err := newBlock(key)
	if err != nil {
		return nil, err
	}

	switch mode {
	case ModeCBC:
		return newCBCCipher(block)
	case ModeGCM:
		return newGCMCipher(block)
	case ModeCTR:
		iv, err := randomBytes(aes.BlockSize)
		if err != nil {
			return nil, err
		}
		return newCTRCipher(block, iv, isInitiator)
	case ModeCFB:
		return newCFBCipher(block)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
	}
}

// NewWithIV builds a ModeCTR Cipher from an explicit, connection-scoped
// IV — the form the non-initiating side uses to reconstruct the same
// keystream offset the initiator announced in hello.cipher.iv. Other
// modes generate their IV/nonce per packet and ignore iv.
func NewWithIV(mode Mode, key, iv []byte, isInitiator bool) (Cipher, error) {
	if mode != ModeCTR {
		return New(mode, key, isInitiator)
	}
	block, err := newBlock(key)
	if err != nil {
		return nil, err
	}
	return newCTRCipher(block, iv, isInitiator)
}

func newBlock(key []byte) (cipher.Block, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("envelope: aes.NewCipher: %w", err)
	}
	return block, nil
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("envelope: reading random bytes: %w", err)
	}
	return b, nil
}

// pkcs7Pad pads data to a multiple of blockSize per PKCS#7 (RFC 5652
// §6.3), used by CBC and CFB.
func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+padLen)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(padLen)
	}
	return out
}

// pkcs7Unpad reverses pkcs7Pad, validating the padding bytes.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrInvalidPadding
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, ErrInvalidPadding
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, ErrInvalidPadding
		}
	}
	return data[:len(data)-padLen], nil
}
