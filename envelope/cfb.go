package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

// cfbCipher implements AES-CFB with PKCS#7 padding and a per-packet
// random IV prefix, the mode balookrd-outline-cli-ws's shadowsocks
// suite calls newAES256CFB — widened here to accept any of the three
// AES key sizes rather than hard-coding 256 bits.
type cfbCipher struct {
	block cipher.Block
}

func newCFBCipher(block cipher.Block) (Cipher, error) {
	return &cfbCipher{block: block}, nil
}

func (c *cfbCipher) Mode() Mode { return ModeCFB }

func (c *cfbCipher) Seal(dst, plaintext []byte) ([]byte, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("envelope: reading random IV: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCFBEncrypter(c.block, iv).XORKeyStream(ciphertext, padded)

	out := append(dst, iv...)
	return append(out, ciphertext...), nil
}

func (c *cfbCipher) Open(dst, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < aes.BlockSize {
		return nil, ErrShortCiphertext
	}
	iv := ciphertext[:aes.BlockSize]
	body := ciphertext[aes.BlockSize:]
	if len(body) == 0 || len(body)%aes.BlockSize != 0 {
		return nil, ErrInvalidPadding
	}

	padded := make([]byte, len(body))
	cipher.NewCFBDecrypter(c.block, iv).XORKeyStream(padded, body)

	plaintext, err := pkcs7Unpad(padded, aes.BlockSize)
	if err != nil {
		return nil, err
	}
	return append(dst, plaintext...), nil
}
