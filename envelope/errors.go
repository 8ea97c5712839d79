package envelope

import "errors"

var (
	// ErrAuthFailed indicates a GCM authentication tag mismatch, or any
	// other cipher integrity check failing on decrypt.
	ErrAuthFailed = errors.New("envelope: authentication failed")

	// ErrShortCiphertext indicates a ciphertext shorter than its
	// required IV/nonce prefix.
	ErrShortCiphertext = errors.New("envelope: ciphertext shorter than IV/nonce")

	// ErrInvalidPadding indicates PKCS#7 unpadding found a malformed
	// padding block (used by CBC and CFB).
	ErrInvalidPadding = errors.New("envelope: invalid PKCS#7 padding")

	// ErrUnsupportedMode indicates a Mode value with no registered
	// constructor.
	ErrUnsupportedMode = errors.New("envelope: unsupported cipher mode")

	// ErrInvalidKeySize indicates a key whose length does not match
	// any supported AES key size (16, 24, or 32 bytes).
	ErrInvalidKeySize = errors.New("envelope: invalid AES key size")
)
