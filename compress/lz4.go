package compress

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/xpra-org/xpra-wire/frame"
)

// lz4Compressor implements the "lz4" codec (header high nibble 0x10)
// using the block API from github.com/pierrec/lz4/v4. The block format
// carries no size header of its own, so Compress prefixes 8 bytes that
// Decompress reads back off: the uncompressed length, then the
// compressed length, each as a 4-byte big-endian integer; a compressed
// length of 0 means the input was stored verbatim.
type lz4Compressor struct{}

func (lz4Compressor) Code() byte { return frame.CompressorLZ4 }

func (lz4Compressor) Compress(data []byte) []byte {
	buf := make([]byte, 4+lz4.CompressBlockBound(len(data)))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(data)))

	var c lz4.Compressor
	n, err := c.CompressBlock(data, buf[4:])
	if err != nil || n == 0 {
		// Incompressible or too small for the block format: fall back
		// to storing the data verbatim, flagged by a zero compressed
		// length so Decompress knows to copy straight through.
		out := make([]byte, 8+len(data))
		binary.BigEndian.PutUint32(out[:4], uint32(len(data)))
		binary.BigEndian.PutUint32(out[4:8], 0)
		copy(out[8:], data)
		return out
	}

	out := make([]byte, 8+n)
	binary.BigEndian.PutUint32(out[:4], uint32(len(data)))
	binary.BigEndian.PutUint32(out[4:8], uint32(n))
	copy(out[8:], buf[4:4+n])
	return out
}

func (lz4Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("compress: lz4 payload too short for length prefix")
	}
	uncompressedLen := binary.BigEndian.Uint32(data[:4])
	compressedLen := binary.BigEndian.Uint32(data[4:8])
	body := data[8:]

	if compressedLen == 0 {
		if uint32(len(body)) != uncompressedLen {
			return nil, fmt.Errorf("compress: lz4 stored-verbatim length mismatch")
		}
		return append([]byte(nil), body...), nil
	}

	if uint32(len(body)) < compressedLen {
		return nil, fmt.Errorf("compress: lz4 payload shorter than declared compressed length")
	}

	out := make([]byte, uncompressedLen)
	n, err := lz4.UncompressBlock(body[:compressedLen], out)
	if err != nil {
		return nil, fmt.Errorf("compress: lz4 decompress: %w", err)
	}
	return out[:n], nil
}
