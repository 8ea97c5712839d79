package frame

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"time"

	"github.com/xpra-org/xpra-wire/rencode"
)

// DefaultMaxPayloadSize is the bound picked for the payload-size limit
// open question: 256 MiB, applied before any allocation.
const DefaultMaxPayloadSize = 256 * 1024 * 1024

// DefaultReassemblyTimeout bounds how long Reader.Next waits, once a
// main packet's first chunk has arrived, for the rest of its chunks
// and the main packet itself to follow.
const DefaultReassemblyTimeout = 30 * time.Second

// deadlineSetter is satisfied by any src passed to Reader.Next that
// supports read deadlines — in practice a *net.TCPConn or similar via
// transport.FromNetConn. Sources that don't implement it (e.g. the
// in-memory streams from transport.NewPipe used in tests) simply never
// time out.
type deadlineSetter interface {
	SetReadDeadline(t time.Time) error
}

// Compressor is the subset of compress.Compressor the framer needs.
// Defined locally (rather than imported) so frame has no dependency on
// the compress package; any compress.Compressor satisfies this
// structurally.
type Compressor interface {
	Code() byte
	Compress(data []byte) []byte
	Decompress(data []byte) ([]byte, error)
}

// Cipher is the subset of envelope.Cipher the framer needs. Defined
// locally for the same reason as Compressor.
type Cipher interface {
	Seal(dst, plaintext []byte) ([]byte, error)
	Open(dst, ciphertext []byte) ([]byte, error)
}

// CompressorLookup resolves a header's compressor code to a Compressor
// capable of decompressing it. compress.Registry implements this.
type CompressorLookup interface {
	ByCode(code byte) (Compressor, bool)
}

// Writer emits main packets and their chunks onto an io.Writer.
type Writer struct {
	MaxPayloadSize uint32
}

// NewWriter builds a Writer with the given payload-size bound; zero
// selects DefaultMaxPayloadSize.
func NewWriter(maxPayloadSize uint32) *Writer {
	if maxPayloadSize == 0 {
		maxPayloadSize = DefaultMaxPayloadSize
	}
	return &Writer{MaxPayloadSize: maxPayloadSize}
}

// Emit serialises main (via rencodeplus), optionally compresses and
// encrypts it, and writes it to dst preceded by its chunk blobs.
//
// chunks maps a position in main (a List) to the raw bytes that
// replace it on the wire; main itself should already carry a
// placeholder value (commonly an empty Bytes) at each chunked index.
//
// codec may be nil (equivalent to the "none" compressor). level is
// the compression level to record in the header; ignored when codec
// is nil or reports CompressorNone. cipher may be nil to send
// unencrypted.
func (w *Writer) Emit(dst io.Writer, main rencode.Value, chunks map[int][]byte, codec Compressor, level byte, cipher Cipher, flush bool) error {
	for _, idx := range sortedChunkIndices(chunks) {
		blob := chunks[idx]
		if idx == 0 {
			return fmt.Errorf("%w: chunk index 0 is reserved for the main packet", ErrFramingError)
		}
		h := Header{ChunkIndex: byte(idx), PayloadSize: uint32(len(blob))}
		if err := writeHeaderAndPayload(dst, h, blob); err != nil {
			return err
		}
	}

	payload, err := rencode.Encode(main)
	if err != nil {
		return err
	}

	h := Header{Flags: FlagRencode}
	if codec != nil && codec.Code() != CompressorNone {
		payload = codec.Compress(payload)
		h.Compression = codec.Code() | (level & levelMask)
	}
	if cipher != nil {
		sealed, err := cipher.Seal(nil, payload)
		if err != nil {
			return fmt.Errorf("frame: seal: %w", err)
		}
		payload = sealed
		h.Flags |= FlagCipher
	}
	if flush {
		h.Flags |= FlagFlush
	}
	if uint64(len(payload)) > uint64(w.MaxPayloadSize) {
		return fmt.Errorf("%w: %d bytes", ErrOversizedPacket, len(payload))
	}
	h.PayloadSize = uint32(len(payload))

	return writeHeaderAndPayload(dst, h, payload)
}

func writeHeaderAndPayload(dst io.Writer, h Header, payload []byte) error {
	hb := h.Marshal()
	if _, err := dst.Write(hb[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedEOF, err)
	}
	if len(payload) > 0 {
		if _, err := dst.Write(payload); err != nil {
			return fmt.Errorf("%w: %v", ErrUnexpectedEOF, err)
		}
	}
	return nil
}

func sortedChunkIndices(chunks map[int][]byte) []int {
	indices := make([]int, 0, len(chunks))
	for idx := range chunks {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	return indices
}

// Reader reconstructs main packets from a stream of frame headers,
// reassembling chunk substitutions and reversing compression and
// encryption according to each header.
type Reader struct {
	MaxPayloadSize uint32

	// ReassemblyTimeout bounds how long Next waits for a main packet's
	// remaining chunks once the first one has arrived; zero disables
	// the deadline. Only enforced when src implements deadlineSetter.
	ReassemblyTimeout time.Duration

	pending map[byte][]byte // chunk_index -> raw bytes, for the next main packet
}

// NewReader builds a Reader with the given payload-size bound; zero
// selects DefaultMaxPayloadSize. ReassemblyTimeout defaults to
// DefaultReassemblyTimeout; set the field directly afterward to
// override or disable it.
func NewReader(maxPayloadSize uint32) *Reader {
	if maxPayloadSize == 0 {
		maxPayloadSize = DefaultMaxPayloadSize
	}
	return &Reader{
		MaxPayloadSize:    maxPayloadSize,
		ReassemblyTimeout: DefaultReassemblyTimeout,
		pending:           map[byte][]byte{},
	}
}

// Next reads headers from src until a complete, reassembled main
// packet is available, decrypting with cipher (nil if none negotiated)
// and decompressing via compressors as named by each header.
func (r *Reader) Next(src io.Reader, compressors CompressorLookup, cipher Cipher) (rencode.Value, error) {
	dl, hasDeadline := src.(deadlineSetter)
	deadlineArmed := false
	clearDeadline := func() {
		if deadlineArmed {
			_ = dl.SetReadDeadline(time.Time{})
			deadlineArmed = false
		}
	}
	defer clearDeadline()

	for {
		h, err := r.readHeader(src)
		if err != nil {
			return nil, err
		}

		if h.IsChunk() {
			if _, exists := r.pending[h.ChunkIndex]; exists {
				return nil, fmt.Errorf("%w: duplicate chunk index %d", ErrFramingError, h.ChunkIndex)
			}
			buf, err := readPayload(src, h.PayloadSize)
			if err != nil {
				return nil, err
			}
			r.pending[h.ChunkIndex] = buf
			if !deadlineArmed && hasDeadline && r.ReassemblyTimeout > 0 {
				if err := dl.SetReadDeadline(time.Now().Add(r.ReassemblyTimeout)); err == nil {
					deadlineArmed = true
				}
			}
			continue
		}

		payload, err := readPayload(src, h.PayloadSize)
		if err != nil {
			return nil, err
		}
		clearDeadline()

		if h.HasFlag(FlagCipher) {
			if cipher == nil {
				return nil, fmt.Errorf("%w: cipher flag set but no cipher negotiated", ErrMalformedHeader)
			}
			payload, err = cipher.Open(nil, payload)
			if err != nil {
				return nil, err
			}
		}

		if h.Compressor() != CompressorNone {
			comp, ok := compressorFor(compressors, h.Compressor())
			if !ok {
				return nil, fmt.Errorf("%w: code 0x%02X", ErrCompressionError, h.Compressor())
			}
			payload, err = comp.Decompress(payload)
			if err != nil {
				return nil, err
			}
		}

		if !h.HasFlag(FlagRencode) {
			return nil, fmt.Errorf("%w: main packet missing rencode flag", ErrMalformedHeader)
		}

		val, _, err := rencode.Decode(payload)
		if err != nil {
			return nil, err
		}

		val, err = substituteChunks(val, r.pending)
		r.pending = map[byte][]byte{}
		if err != nil {
			return nil, err
		}
		return val, nil
	}
}

func compressorFor(lookup CompressorLookup, code byte) (Compressor, bool) {
	if lookup == nil {
		return nil, false
	}
	return lookup.ByCode(code)
}

func (r *Reader) readHeader(src io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(src, buf[:]); err != nil {
		if err == io.EOF && len(r.pending) == 0 {
			// Stream ended cleanly between packets.
			return Header{}, io.EOF
		}
		return Header{}, wrapReadError(err)
	}
	h, err := Unmarshal(buf[:])
	if err != nil {
		return Header{}, err
	}
	if h.PayloadSize > r.MaxPayloadSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrOversizedPacket, h.PayloadSize)
	}
	return h, nil
}

func readPayload(src io.Reader, size uint32) ([]byte, error) {
	buf := make([]byte, size)
	if size > 0 {
		if _, err := io.ReadFull(src, buf); err != nil {
			return nil, wrapReadError(err)
		}
	}
	return buf, nil
}

// wrapReadError distinguishes a deadline expiring mid-reassembly
// (ErrTimeout, set up by Next's deadlineSetter arming) from a stream
// that ended mid-header, mid-payload or mid-reassembly (ErrUnexpectedEOF).
func wrapReadError(err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnexpectedEOF, err)
}

// substituteChunks replaces each chunked position in val (expected to
// be a rencode.List — the packet's argument list) with the raw bytes
// stored for that position, per spec.md's chunk-substitution property:
// the receiver reconstructs a packet equal to the main packet with
// m[i] := c_i for each chunk index i.
func substituteChunks(val rencode.Value, pending map[byte][]byte) (rencode.Value, error) {
	if len(pending) == 0 {
		return val, nil
	}
	list, ok := val.(rencode.List)
	if !ok {
		return nil, fmt.Errorf("%w: chunks received but main packet is not a list", ErrFramingError)
	}
	out := make(rencode.List, len(list))
	copy(out, list)
	for idx, blob := range pending {
		if int(idx) >= len(out) {
			return nil, fmt.Errorf("%w: chunk index %d out of range for packet of length %d", ErrFramingError, idx, len(out))
		}
		out[idx] = rencode.Bytes(blob)
	}
	return out, nil
}
