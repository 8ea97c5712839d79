package wire

import (
	"context"
	"testing"

	"github.com/xpra-org/xpra-wire/compress"
	"github.com/xpra-org/xpra-wire/frame"
	"github.com/xpra-org/xpra-wire/transport"
)

func TestConnectionInitialState(t *testing.T) {
	client, server := newTestPair(t)
	defer client.Close()
	defer server.Close()

	if got := client.State(); got != Opening {
		t.Errorf("initial state: got %v, want Opening", got)
	}
	if client.CipherNegotiated() {
		t.Error("CipherNegotiated true before any handshake")
	}
	if client.QueueLen() != 0 {
		t.Errorf("QueueLen: got %d, want 0", client.QueueLen())
	}
}

func TestConnectionRegisterHandlerAfterStartFails(t *testing.T) {
	a, _ := transport.NewPipe()
	c := NewConnection(a, frame.NewWriter(0), frame.NewReader(0), compress.NewRegistry(false, false), 0, nil, nil)

	if err := c.RegisterHandler("ping", func(Args) error { return nil }); err != nil {
		t.Fatalf("RegisterHandler before Start: %v", err)
	}

	// Start (without ctx cancellation) launches goroutines against a
	// pipe with no peer; close immediately to avoid leaking them past
	// the test.
	_ = c.Start(context.Background())
	defer c.Close()

	if err := c.RegisterHandler("pong", func(Args) error { return nil }); err != ErrAlreadyStarted {
		t.Fatalf("RegisterHandler after Start: got %v, want ErrAlreadyStarted", err)
	}
	if err := c.SetAliasesIn(map[string]int64{"ping": 1}); err != ErrAlreadyStarted {
		t.Fatalf("SetAliasesIn after Start: got %v, want ErrAlreadyStarted", err)
	}
}

func TestConnectionCloseIsIdempotent(t *testing.T) {
	client, server := newTestPair(t)
	defer server.Close()

	if err := client.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if client.State() != Closed {
		t.Errorf("state after Close: got %v, want Closed", client.State())
	}
	select {
	case <-client.Done():
	default:
		t.Error("Done channel not closed after Close")
	}
}
