package frame

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xpra-org/xpra-wire/rencode"
)

// fakeCompressor doubles every byte on "compress" and halves on
// "decompress", just distinctive enough to prove the pipeline ran.
type fakeCompressor struct{ code byte }

func (f fakeCompressor) Code() byte { return f.code }

func (f fakeCompressor) Compress(data []byte) []byte {
	out := make([]byte, len(data)*2)
	for i, b := range data {
		out[2*i] = b
		out[2*i+1] = b
	}
	return out
}

func (f fakeCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data)%2 != 0 {
		return nil, errors.New("fakeCompressor: odd length")
	}
	out := make([]byte, len(data)/2)
	for i := range out {
		out[i] = data[2*i]
	}
	return out, nil
}

type fakeLookup map[byte]Compressor

func (l fakeLookup) ByCode(code byte) (Compressor, bool) {
	c, ok := l[code]
	return c, ok
}

// fakeCipher XORs every byte with a fixed key byte; enough to prove
// Seal/Open round-trip through the framer without pulling in the real
// envelope package (which frame must not import).
type fakeCipher struct{ key byte }

func (c fakeCipher) Seal(dst, plaintext []byte) ([]byte, error) {
	out := append(dst, make([]byte, len(plaintext))...)
	for i, b := range plaintext {
		out[len(dst)+i] = b ^ c.key
	}
	return out, nil
}

func (c fakeCipher) Open(dst, ciphertext []byte) ([]byte, error) {
	return c.Seal(dst, ciphertext)
}

func TestFrameRoundTripPlain(t *testing.T) {
	main := rencode.List{rencode.Text("hello"), rencode.NewInt(42)}

	var buf bytes.Buffer
	w := NewWriter(0)
	if err := w.Emit(&buf, main, nil, nil, 0, nil, true); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	r := NewReader(0)
	got, err := r.Next(&buf, nil, nil)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !rencode.Equal(main, got) {
		t.Fatalf("got %#v, want %#v", got, main)
	}
}

func TestFrameRoundTripWithCompressionAndCipher(t *testing.T) {
	main := rencode.List{rencode.Text("hello"), rencode.NewInt(42), rencode.Bytes(bytes.Repeat([]byte{0x7}, 32))}
	codec := fakeCompressor{code: CompressorLZ4}
	cipher := fakeCipher{key: 0x5A}

	var buf bytes.Buffer
	w := NewWriter(0)
	if err := w.Emit(&buf, main, nil, codec, 3, cipher, false); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	r := NewReader(0)
	got, err := r.Next(&buf, fakeLookup{CompressorLZ4: codec}, cipher)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !rencode.Equal(main, got) {
		t.Fatalf("got %#v, want %#v", got, main)
	}
}

func TestChunkSubstitution(t *testing.T) {
	blob := bytes.Repeat([]byte{0xAA}, 1<<20)
	main := rencode.List{rencode.Text("big"), rencode.Bytes(nil), rencode.Text("meta")}

	var buf bytes.Buffer
	w := NewWriter(0)
	if err := w.Emit(&buf, main, map[int][]byte{1: blob}, nil, 0, nil, true); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	r := NewReader(0)
	got, err := r.Next(&buf, nil, nil)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}

	list, ok := got.(rencode.List)
	if !ok || len(list) != 3 {
		t.Fatalf("got %#v, want a 3-element list", got)
	}
	wantFirst := rencode.Text("big")
	if !rencode.Equal(list[0], wantFirst) {
		t.Fatalf("list[0] = %#v, want %#v", list[0], wantFirst)
	}
	gotBlob, ok := list[1].(rencode.Bytes)
	if !ok || !bytes.Equal(gotBlob, blob) {
		t.Fatal("chunk was not substituted correctly at index 1")
	}
}

func TestDuplicateChunkIndexFails(t *testing.T) {
	var buf bytes.Buffer
	h := Header{ChunkIndex: 1, PayloadSize: 3}
	hb := h.Marshal()
	buf.Write(hb[:])
	buf.WriteString("abc")
	buf.Write(hb[:])
	buf.WriteString("xyz")

	r := NewReader(0)
	if _, err := r.Next(&buf, nil, nil); !errors.Is(err, ErrFramingError) {
		t.Fatalf("err = %v, want ErrFramingError", err)
	}
}

func TestOversizeRejectedBeforeAllocation(t *testing.T) {
	h := Header{Flags: FlagRencode, PayloadSize: 1 << 30}
	hb := h.Marshal()

	r := NewReader(1024) // tiny limit; the declared size exceeds it
	if _, err := r.Next(bytes.NewReader(hb[:]), nil, nil); !errors.Is(err, ErrOversizedPacket) {
		t.Fatalf("err = %v, want ErrOversizedPacket", err)
	}
}

func TestUnexpectedEOFMidHeader(t *testing.T) {
	r := NewReader(0)
	if _, err := r.Next(strings.NewReader("short"), nil, nil); !errors.Is(err, ErrUnexpectedEOF) {
		t.Fatalf("err = %v, want ErrUnexpectedEOF", err)
	}
}

// fakeTimeoutErr satisfies net.Error without pulling in a real net.Conn.
type fakeTimeoutErr struct{}

func (fakeTimeoutErr) Error() string   { return "fake: i/o timeout" }
func (fakeTimeoutErr) Timeout() bool   { return true }
func (fakeTimeoutErr) Temporary() bool { return true }

// deadlineStub reads a fixed prefix (a lone chunk header+payload), then,
// once a read deadline has been armed, reports a fake timeout instead of
// EOF — simulating a peer that never follows up with the main packet,
// without an actual wall-clock wait.
type deadlineStub struct {
	rest  []byte
	armed bool
}

func (d *deadlineStub) SetReadDeadline(t time.Time) error {
	d.armed = !t.IsZero()
	return nil
}

func (d *deadlineStub) Read(p []byte) (int, error) {
	if len(d.rest) == 0 {
		if d.armed {
			return 0, fakeTimeoutErr{}
		}
		return 0, errors.New("deadlineStub: exhausted with no deadline armed")
	}
	n := copy(p, d.rest)
	d.rest = d.rest[n:]
	return n, nil
}

func TestReassemblyTimeoutAfterFirstChunk(t *testing.T) {
	h := Header{ChunkIndex: 1, PayloadSize: 3}
	hb := h.Marshal()
	var prefix bytes.Buffer
	prefix.Write(hb[:])
	prefix.WriteString("abc")

	src := &deadlineStub{rest: prefix.Bytes()}
	r := NewReader(0)
	r.ReassemblyTimeout = time.Millisecond

	if _, err := r.Next(src, nil, nil); !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if src.armed {
		t.Fatal("deadline was never cleared after Next returned")
	}
}

func TestUnknownCompressorCodeFails(t *testing.T) {
	main := rencode.List{rencode.NewInt(1)}
	codec := fakeCompressor{code: CompressorBrotli}

	var buf bytes.Buffer
	w := NewWriter(0)
	if err := w.Emit(&buf, main, nil, codec, 1, nil, true); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	r := NewReader(0)
	if _, err := r.Next(&buf, fakeLookup{}, nil); !errors.Is(err, ErrCompressionError) {
		t.Fatalf("err = %v, want ErrCompressionError", err)
	}
}
