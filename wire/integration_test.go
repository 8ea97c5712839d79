package wire

import (
	"context"
	"testing"
	"time"

	"github.com/xpra-org/xpra-wire/compress"
	"github.com/xpra-org/xpra-wire/frame"
	"github.com/xpra-org/xpra-wire/rencode"
	"github.com/xpra-org/xpra-wire/transport"
)

// TestIntegrationCipherNegotiation exercises spec.md §8 scenario 4: a
// side offering an AES-CBC cipher in its hello, the peer deriving the
// same key via PBKDF2 and installing a matching Cipher, after which
// ordinary traffic is transparently encrypted end to end.
func TestIntegrationCipherNegotiation(t *testing.T) {
	a, b := transport.NewPipe()

	serverSalt := []byte("0123456789abcdef")
	server := NewConnection(b, frame.NewWriter(0), frame.NewReader(0), compress.NewRegistry(true, true), 0, nil, nil,
		WithInitiator(false),
		WithPassword("swordfish"),
		WithCipherOffer(CipherParams{
			Mode:       "aes-cbc",
			KeySalt:    serverSalt,
			Iterations: 1000,
			Digest:     "sha256",
		}),
	)
	client := NewConnection(a, frame.NewWriter(0), frame.NewReader(0), compress.NewRegistry(true, true), 0, nil, nil,
		WithInitiator(true),
		WithPassword("swordfish"),
	)
	defer client.Close()
	defer server.Close()

	received := make(chan Args, 1)
	_ = client.RegisterHandler("echo", func(a Args) error {
		received <- a
		return nil
	})

	ctx := context.Background()
	_ = server.Start(ctx)
	_ = client.Start(ctx)

	waitForState(t, client, Established)
	waitForState(t, server, Established)

	if !client.CipherNegotiated() {
		t.Fatal("client never installed a cipher from the server's offer")
	}

	if err := server.Send("echo", []rencode.Value{rencode.Text("test,1,2,3")}, nil); err != nil {
		t.Fatalf("server.Send: %v", err)
	}

	select {
	case a := <-received:
		if s, err := a.Text(0); err != nil || s != "test,1,2,3" {
			t.Fatalf("received payload: got (%q, %v), want (\"test,1,2,3\", nil)", s, err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for encrypted echo packet")
	}
}

// TestIntegrationChunkedPacket exercises spec.md §4.E/§8's chunk
// substitution property directly against a Connection's Send/dispatch
// path, rather than the framer alone.
func TestIntegrationChunkedPacket(t *testing.T) {
	client, server := newTestPair(t)
	defer client.Close()
	defer server.Close()

	received := make(chan Args, 1)
	_ = server.RegisterHandler("blob", func(a Args) error {
		received <- a
		return nil
	})

	ctx := context.Background()
	_ = client.Start(ctx)
	_ = server.Start(ctx)
	waitForState(t, client, Established)
	waitForState(t, server, Established)

	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i)
	}
	args := []rencode.Value{rencode.Text("ignored-name"), rencode.Bytes(nil)}
	if err := client.Send("blob", args, map[int][]byte{2: payload}); err != nil {
		t.Fatalf("client.Send: %v", err)
	}

	select {
	case a := <-received:
		got, err := a.Bytes(1)
		if err != nil {
			t.Fatalf("Bytes(1): %v", err)
		}
		if len(got) != len(payload) {
			t.Fatalf("chunk payload length: got %d, want %d", len(got), len(payload))
		}
		for i := range payload {
			if got[i] != payload[i] {
				t.Fatalf("chunk payload mismatch at byte %d", i)
			}
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for chunked packet")
	}
}

// TestIntegrationBackpressureFailsConnection exercises spec.md §4.F's
// high-water queue rule: once Send fails with ErrPeerTooSlow, the
// connection itself fails and closes.
func TestIntegrationBackpressureFailsConnection(t *testing.T) {
	a, _ := transport.NewPipe()
	// No peer reads from a, and the high-water mark is tiny, so the
	// writer goroutine stalls on its first blocking write (after the
	// queue already holds the hello) well before draining further sends.
	c := NewConnection(a, frame.NewWriter(0), frame.NewReader(0), compress.NewRegistry(false, false), 4, nil, nil, WithInitiator(true))
	defer c.Close()

	_ = c.Start(context.Background())

	var lastErr error
	for i := 0; i < 16; i++ {
		if err := c.Send("spam", nil, nil); err != nil {
			lastErr = err
			break
		}
	}
	if lastErr != ErrPeerTooSlow {
		t.Fatalf("Send eventually returned %v, want ErrPeerTooSlow", lastErr)
	}
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("connection did not close after ErrPeerTooSlow")
	}
}

// TestIntegrationOrderPreservation checks that three packets of one
// type, sent back to back after the handshake, reach the receiver's
// handler in the order sent.
func TestIntegrationOrderPreservation(t *testing.T) {
	client, server := newTestPair(t)
	defer client.Close()
	defer server.Close()

	var got []string
	done := make(chan struct{})
	_ = server.RegisterHandler("seq", func(a Args) error {
		s, err := a.Text(0)
		if err != nil {
			return err
		}
		got = append(got, s)
		if len(got) == 3 {
			close(done)
		}
		return nil
	})

	ctx := context.Background()
	_ = client.Start(ctx)
	_ = server.Start(ctx)
	waitForState(t, client, Established)
	waitForState(t, server, Established)

	for _, s := range []string{"one", "two", "three"} {
		if err := client.Send("seq", []rencode.Value{rencode.Text(s)}, nil); err != nil {
			t.Fatalf("Send(%q): %v", s, err)
		}
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for all three packets")
	}
	want := []string{"one", "two", "three"}
	for i, w := range want {
		if got[i] != w {
			t.Fatalf("order mismatch at %d: got %q, want %q", i, got[i], w)
		}
	}
}
