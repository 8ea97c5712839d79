package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

// cbcCipher implements AES-CBC with PKCS#7 padding and a per-packet
// random IV, prefixed unencrypted to the ciphertext (spec.md §4.D:
// "per-packet IVs are emitted as a fixed-length prefix inside the
// payload before encryption of the remainder").
type cbcCipher struct {
	block cipher.Block
}

func newCBCCipher(block cipher.Block) (Cipher, error) {
	return &cbcCipher{block: block}, nil
}

func (c *cbcCipher) Mode() Mode { return ModeCBC }

func (c *cbcCipher) Seal(dst, plaintext []byte) ([]byte, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("envelope: reading random IV: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(ciphertext, padded)

	out := append(dst, iv...)
	return append(out, ciphertext...), nil
}

func (c *cbcCipher) Open(dst, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < aes.BlockSize {
		return nil, ErrShortCiphertext
	}
	iv := ciphertext[:aes.BlockSize]
	body := ciphertext[aes.BlockSize:]
	if len(body) == 0 || len(body)%aes.BlockSize != 0 {
		return nil, ErrInvalidPadding
	}

	padded := make([]byte, len(body))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(padded, body)

	plaintext, err := pkcs7Unpad(padded, aes.BlockSize)
	if err != nil {
		return nil, err
	}
	return append(dst, plaintext...), nil
}
