package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"

	"github.com/xpra-org/xpra-wire/frame"
)

// brotliCompressor implements the "brotli" codec (header high nibble
// 0x40) using github.com/andybalholm/brotli.
type brotliCompressor struct{}

func (brotliCompressor) Code() byte { return frame.CompressorBrotli }

func (brotliCompressor) Compress(data []byte) []byte {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	// In-memory writes to a bytes.Buffer cannot fail; any error here
	// would indicate a broken encoder invariant, not a usage error.
	_, _ = w.Write(data)
	_ = w.Close()
	return buf.Bytes()
}

func (brotliCompressor) Decompress(data []byte) ([]byte, error) {
	out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("compress: brotli decompress: %w", err)
	}
	return out, nil
}
