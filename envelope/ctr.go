package envelope

import "crypto/cipher"

// ctrCipher implements AES-CTR with a single IV negotiated once at
// handshake time (spec.md §4.D: "IVs are per-connection (CTR)"), split
// into independent encrypt/decrypt keystreams per spec.md §5's
// "cipher state is split: the encryption half is owned by the writer,
// the decryption half by the reader, each with its own IV counter".
//
// Sharing one base IV between both keystreams of the same connection
// would let an endpoint's inbound and outbound traffic collide on the
// same keystream; deriveDirectionIV perturbs the first (most
// significant) byte of the big-endian counter, so the two streams
// would only meet after 2^120 blocks, while still being fully determined by the one
// IV exchanged in hello. The two markers name the A-side's outbound
// and inbound streams respectively; isInitiator swaps which marker
// this endpoint encrypts with so the initiator's encrypt-stream lines
// up with the responder's decrypt-stream, and vice versa.
type ctrCipher struct {
	iv      []byte
	encrypt cipher.Stream
	decrypt cipher.Stream
}

func newCTRCipher(block cipher.Block, iv []byte, isInitiator bool) (Cipher, error) {
	if len(iv) != block.BlockSize() {
		return nil, ErrShortCiphertext
	}
	outboundMarker, inboundMarker := byte(0x00), byte(0x01)
	if !isInitiator {
		outboundMarker, inboundMarker = inboundMarker, outboundMarker
	}
	return &ctrCipher{
		iv:      append([]byte(nil), iv...),
		encrypt: cipher.NewCTR(block, deriveDirectionIV(iv, outboundMarker)),
		decrypt: cipher.NewCTR(block, deriveDirectionIV(iv, inboundMarker)),
	}, nil
}

func deriveDirectionIV(iv []byte, marker byte) []byte {
	out := append([]byte(nil), iv...)
	out[0] ^= marker
	return out
}

func (c *ctrCipher) Mode() Mode { return ModeCTR }

// IV returns the connection-scoped IV this cipher was built from, for
// publishing in (or reading back from) the hello capability vector.
func (c *ctrCipher) IV() []byte { return append([]byte(nil), c.iv...) }

func (c *ctrCipher) Seal(dst, plaintext []byte) ([]byte, error) {
	out := append(dst, make([]byte, len(plaintext))...)
	c.encrypt.XORKeyStream(out[len(dst):], plaintext)
	return out, nil
}

func (c *ctrCipher) Open(dst, ciphertext []byte) ([]byte, error) {
	out := append(dst, make([]byte, len(ciphertext))...)
	c.decrypt.XORKeyStream(out[len(dst):], ciphertext)
	return out, nil
}
