package wire

import (
	"testing"

	"github.com/xpra-org/xpra-wire/compress"
	"github.com/xpra-org/xpra-wire/frame"
	"github.com/xpra-org/xpra-wire/transport"
)

// newTestPair builds two unstarted Connections wired together over an
// in-memory transport.NewPipe pair, mirroring the teacher's mockConn helper but
// full-duplex since two real Connections drive each end.
func newTestPair(t *testing.T, opts ...Option) (client, server *Connection) {
	t.Helper()
	a, b := transport.NewPipe()

	newConn := func(s transport.Stream, o ...Option) *Connection {
		return NewConnection(
			s,
			frame.NewWriter(0),
			frame.NewReader(0),
			compress.NewRegistry(true, true),
			0,
			nil,
			nil,
			o...,
		)
	}

	base := []Option{WithCompressionOptin("lz4", true), WithCompressionOptin("brotli", true)}
	client = newConn(a, append(append([]Option{WithInitiator(true)}, base...), opts...)...)
	server = newConn(b, append(append([]Option{WithInitiator(false)}, base...), opts...)...)
	return client, server
}

// newAsymmetricTestPair is newTestPair's counterpart for scenarios
// where the two sides need genuinely different options (distinct
// passwords, one side demanding auth the other doesn't expect).
func newAsymmetricTestPair(t *testing.T, clientOpts, serverOpts []Option) (client, server *Connection) {
	t.Helper()
	a, b := transport.NewPipe()
	client = NewConnection(a, frame.NewWriter(0), frame.NewReader(0), compress.NewRegistry(true, true), 0, nil, nil, clientOpts...)
	server = NewConnection(b, frame.NewWriter(0), frame.NewReader(0), compress.NewRegistry(true, true), 0, nil, nil, serverOpts...)
	return client, server
}
