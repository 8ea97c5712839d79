// Package compress implements the compressor registry: applying and
// stripping lz4 or brotli compression from a rencodeplus payload, with
// a "none" passthrough chosen below a size threshold.
package compress

import (
	"fmt"

	"github.com/xpra-org/xpra-wire/frame"
)

// DefaultThreshold is the default minimum payload size, in bytes,
// below which a packet is sent uncompressed regardless of negotiated
// capability.
const DefaultThreshold = 512

// Compressor applies or reverses one compression codec. Code returns
// the header's compressor nibble value (frame.CompressorNone/LZ4/Brotli).
type Compressor interface {
	Code() byte
	Compress(data []byte) []byte
	Decompress(data []byte) ([]byte, error)
}

// Registry maps a header's compressor code to the Compressor that
// handles it, and chooses a compressor for outgoing packets based on
// size and peer capability.
type Registry struct {
	byCode    map[byte]Compressor
	Threshold int

	// outCodes restricts Select to the given codes, once the peer's
	// hello.compression opt-ins are known; nil means unrestricted
	// (everything this side has registered is fair game), the state
	// before a hello has been exchanged.
	outCodes map[byte]bool
}

// NewRegistry builds a registry with "none" always present, plus lz4
// and/or brotli when enableLZ4/enableBrotli are set. The peer's
// advertised support does not change what is registered; it only
// narrows the outgoing choice later, via RestrictOutgoing.
func NewRegistry(enableLZ4, enableBrotli bool) *Registry {
	r := &Registry{
		byCode:    map[byte]Compressor{frame.CompressorNone: noneCompressor{}},
		Threshold: DefaultThreshold,
	}
	if enableLZ4 {
		r.byCode[frame.CompressorLZ4] = lz4Compressor{}
	}
	if enableBrotli {
		r.byCode[frame.CompressorBrotli] = brotliCompressor{}
	}
	return r
}

// ByCode resolves a header's compressor code. Satisfies frame.CompressorLookup.
func (r *Registry) ByCode(code byte) (Compressor, bool) {
	c, ok := r.byCode[code]
	return c, ok
}

// RestrictOutgoing narrows the codes Select may choose for outgoing
// packets to those the peer actually opted into, keyed by the same
// names Capabilities.CompressionOptins returns ("lz4", "brotli").
// Codes this side can still decompress via ByCode are unaffected —
// only the sender-side choice is restricted, per spec.md §4.C's
// "chosen per packet by the sender based on size thresholds and peer
// capability."
func (r *Registry) RestrictOutgoing(optins map[string]bool) {
	codes := map[byte]bool{}
	if optins["lz4"] {
		codes[frame.CompressorLZ4] = true
	}
	if optins["brotli"] {
		codes[frame.CompressorBrotli] = true
	}
	r.outCodes = codes
}

// Select picks the compressor and level for an outgoing payload.
// dontCompress mirrors a producer marking a packet as already-compressed
// (e.g. image data); payloads under the registry's Threshold, or marked
// dontCompress, are sent via the "none" passthrough.
func (r *Registry) Select(payload []byte, dontCompress bool) (Compressor, byte) {
	if dontCompress || len(payload) < r.Threshold {
		return noneCompressor{}, 0
	}
	if r.allowedOut(frame.CompressorBrotli) {
		if c, ok := r.byCode[frame.CompressorBrotli]; ok {
			return c, 5
		}
	}
	if r.allowedOut(frame.CompressorLZ4) {
		if c, ok := r.byCode[frame.CompressorLZ4]; ok {
			return c, 1
		}
	}
	return noneCompressor{}, 0
}

// allowedOut reports whether code may be used for an outgoing packet:
// always true until RestrictOutgoing has run (no hello exchanged yet),
// and thereafter only for codes the peer opted into.
func (r *Registry) allowedOut(code byte) bool {
	if r.outCodes == nil {
		return true
	}
	return r.outCodes[code]
}

// Validate checks that every code in codes is registered, returning an
// error naming the first one that is not. The handshake does not call
// it; peer opt-ins are applied through RestrictOutgoing instead.
func (r *Registry) Validate(codes []byte) error {
	for _, code := range codes {
		if _, ok := r.byCode[code]; !ok {
			return fmt.Errorf("compress: unsupported compressor code 0x%02X", code)
		}
	}
	return nil
}
