package wire

import "errors"

// Error taxonomy. Every kind is fatal to the connection: on any of
// them the connection enters Closing, emits a disconnect packet when
// the stream is still writable, and transitions to Closed.

var (
	// ErrMalformedHeader indicates a bad magic byte, unexpected reserved
	// bits, or an otherwise impossible frame header.
	ErrMalformedHeader = errors.New("wire: malformed frame header")

	// ErrOversizedPacket indicates a header's payload_size exceeds the
	// configured limit. Raised before any payload allocation.
	ErrOversizedPacket = errors.New("wire: oversized packet")

	// ErrMalformedPayload indicates rencodeplus decoding failed or the
	// decoded structure did not match the expected packet schema.
	ErrMalformedPayload = errors.New("wire: malformed packet payload")

	// ErrCompressionError indicates the decompressor rejected the body,
	// or the header named a compressor code the receiver never
	// advertised support for.
	ErrCompressionError = errors.New("wire: compression error")

	// ErrAuthFailed indicates a GCM tag mismatch, a wrong HMAC challenge
	// response, or hello retries exhausted.
	ErrAuthFailed = errors.New("wire: authentication failed")

	// ErrFramingError indicates a duplicate or missing chunk, a chunk
	// arriving after its main packet, or a chunk size mismatch.
	ErrFramingError = errors.New("wire: framing error")

	// ErrUnexpectedEOF indicates the stream ended mid-header or
	// mid-payload.
	ErrUnexpectedEOF = errors.New("wire: unexpected end of stream")

	// ErrPeerTooSlow indicates the outbound queue's high-water mark was
	// exceeded because the peer is not draining fast enough.
	ErrPeerTooSlow = errors.New("wire: peer too slow, outbound queue full")

	// ErrTimeout indicates a reassembly or handshake timer expired.
	ErrTimeout = errors.New("wire: timeout")

	// ErrLocalError indicates a registered handler returned an error.
	ErrLocalError = errors.New("wire: local handler error")

	// ErrAlreadyStarted indicates RegisterHandler or SetAliasesIn was
	// called after Start().
	ErrAlreadyStarted = errors.New("wire: connection already started")

	// ErrClosed indicates an operation on a connection that has already
	// finished its close sequence.
	ErrClosed = errors.New("wire: connection closed")

	// ErrUnknownPacketType names an unknown packet type. Nothing in this
	// package returns it: Send accepts any packet type, and dispatch of
	// *incoming* unknown types is not an error (they are logged and
	// discarded).
	ErrUnknownPacketType = errors.New("wire: unknown packet type")
)

// fatalReasons maps each taxonomy sentinel to the reason string carried
// in the disconnect packet sent (when possible) before the connection
// closes.
var fatalReasons = map[error]string{
	ErrMalformedHeader:   "malformed header",
	ErrOversizedPacket:   "oversized packet",
	ErrMalformedPayload:  "malformed payload",
	ErrCompressionError:  "compression error",
	ErrAuthFailed:        "authentication failed",
	ErrFramingError:      "framing error",
	ErrUnexpectedEOF:     "unexpected eof",
	ErrPeerTooSlow:       "peer too slow",
	ErrTimeout:           "timeout",
	ErrLocalError:        "local error",
}

// disconnectReason returns the human-readable reason to carry in the
// disconnect packet: "closed" for a voluntary, cause-free shutdown,
// the fixed taxonomy's reason string for a sentinel fatal error, or
// err.Error() for errors outside the fixed taxonomy (e.g. wrapped
// transport errors).
func disconnectReason(err error) string {
	if err == nil {
		return "closed"
	}
	for sentinel, reason := range fatalReasons {
		if errors.Is(err, sentinel) {
			return reason
		}
	}
	return err.Error()
}
