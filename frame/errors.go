package frame

import "errors"

var (
	// ErrMalformedHeader covers a bad magic byte, reserved bits set
	// unexpectedly, or an internally inconsistent header.
	ErrMalformedHeader = errors.New("frame: malformed header")

	// ErrOversizedPacket indicates PayloadSize exceeds the configured limit.
	ErrOversizedPacket = errors.New("frame: payload size exceeds limit")

	// ErrFramingError covers a duplicate chunk index, an attempt to emit
	// a chunk at the reserved index 0, a chunk index beyond the main
	// packet's length, and chunks arriving for a main packet that is not
	// a list. Missing chunks and chunk lengths are not checked, and a
	// chunk arriving after its main packet is held for the next one.
	ErrFramingError = errors.New("frame: chunk reassembly error")

	// ErrUnexpectedEOF indicates the stream ended mid-header or mid-payload.
	ErrUnexpectedEOF = errors.New("frame: unexpected end of stream")

	// ErrCompressionError indicates the header named a compressor code
	// the receiver did not register support for.
	ErrCompressionError = errors.New("frame: unsupported compressor code")

	// ErrTimeout indicates the reassembly deadline expired before all of
	// a main packet's chunks, and the main packet itself, had arrived.
	ErrTimeout = errors.New("frame: reassembly deadline exceeded")
)
