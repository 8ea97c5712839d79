// Package frame implements the 8-byte packet framing header and the
// chunked-payload scheme used to bypass the rencodeplus encoder for
// large payloads.
package frame

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed size, in bytes, of every frame header.
const HeaderSize = 8

// Magic is the first header byte identifying an Xpra wire-protocol frame.
const Magic = 'P'

// Flag bits, packed into the header's flags byte.
const (
	// FlagRencode MUST be set on every main (non-chunk) packet.
	FlagRencode byte = 0x10
	// FlagFlush signals "no packet follows immediately".
	FlagFlush byte = 0x08
	// FlagCipher signals the payload is AES-enveloped.
	FlagCipher byte = 0x02
)

// Compressor codes occupy the high nibble of the header's compression
// byte; the low nibble carries the compression level (0 = uncompressed).
const (
	CompressorNone   byte = 0x00
	CompressorLZ4    byte = 0x10
	CompressorBrotli byte = 0x40

	compressorMask byte = 0xF0
	levelMask      byte = 0x0F
)

// Header is the 8-byte frame header:
// {magic, flags, compression, chunk_index, payload_size:u32 big-endian}.
type Header struct {
	Flags       byte
	Compression byte
	ChunkIndex  byte
	PayloadSize uint32
}

// Compressor extracts the compressor code (the high nibble) from the
// Compression byte.
func (h Header) Compressor() byte { return h.Compression & compressorMask }

// Level extracts the compression level (the low nibble).
func (h Header) Level() byte { return h.Compression & levelMask }

// IsChunk reports whether this header introduces a chunk replacement
// rather than a main packet.
func (h Header) IsChunk() bool { return h.ChunkIndex != 0 }

// HasFlag reports whether the given flag bit is set.
func (h Header) HasFlag(flag byte) bool { return h.Flags&flag != 0 }

// Marshal encodes h as the 8-byte wire form.
func (h Header) Marshal() [HeaderSize]byte {
	var buf [HeaderSize]byte
	buf[0] = Magic
	buf[1] = h.Flags
	buf[2] = h.Compression
	buf[3] = h.ChunkIndex
	binary.BigEndian.PutUint32(buf[4:8], h.PayloadSize)
	return buf
}

// Unmarshal parses an 8-byte buffer into a Header.
//
// Invariants enforced here (spec.md §3):
//   - the magic byte must match;
//   - a chunk header (ChunkIndex != 0) must not carry FlagRencode or a
//     non-zero compressor, since chunks are always raw bytes.
func Unmarshal(buf []byte) (Header, error) {
	if len(buf) != HeaderSize {
		return Header{}, fmt.Errorf("%w: want %d bytes, got %d", ErrMalformedHeader, HeaderSize, len(buf))
	}
	if buf[0] != Magic {
		return Header{}, fmt.Errorf("%w: bad magic 0x%02X", ErrMalformedHeader, buf[0])
	}
	h := Header{
		Flags:       buf[1],
		Compression: buf[2],
		ChunkIndex:  buf[3],
		PayloadSize: binary.BigEndian.Uint32(buf[4:8]),
	}
	if h.IsChunk() && (h.HasFlag(FlagRencode) || h.Compressor() != CompressorNone) {
		return Header{}, fmt.Errorf("%w: chunk header carries rencode/compression flags", ErrMalformedHeader)
	}
	return h, nil
}
