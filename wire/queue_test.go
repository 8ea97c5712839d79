package wire

import (
	"sync"
	"testing"
	"time"
)

func TestQueuePriorityOrdering(t *testing.T) {
	q := newOutboundQueue(0)
	must := func(p outboundPacket) {
		t.Helper()
		if err := q.push(p); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	must(outboundPacket{typeName: "bulk-1", priority: PriorityBulk})
	must(outboundPacket{typeName: "normal-1", priority: PriorityNormal})
	must(outboundPacket{typeName: "urgent-1", priority: PriorityUrgent})
	must(outboundPacket{typeName: "normal-2", priority: PriorityNormal})

	want := []string{"urgent-1", "normal-1", "normal-2", "bulk-1"}
	for _, name := range want {
		p, ok := q.pop()
		if !ok {
			t.Fatalf("pop: queue unexpectedly empty, wanted %q", name)
		}
		if p.typeName != name {
			t.Errorf("pop order: got %q, want %q", p.typeName, name)
		}
	}
}

func TestQueueHighWaterMark(t *testing.T) {
	q := newOutboundQueue(2)
	if err := q.push(outboundPacket{typeName: "a"}); err != nil {
		t.Fatalf("push 1: %v", err)
	}
	if err := q.push(outboundPacket{typeName: "b"}); err != nil {
		t.Fatalf("push 2: %v", err)
	}
	if err := q.push(outboundPacket{typeName: "c"}); err != ErrPeerTooSlow {
		t.Fatalf("push 3: got %v, want ErrPeerTooSlow", err)
	}
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := newOutboundQueue(0)
	done := make(chan outboundPacket, 1)
	go func() {
		p, ok := q.pop()
		if !ok {
			t.Error("pop: unexpected close")
			return
		}
		done <- p
	}()

	select {
	case <-done:
		t.Fatal("pop returned before any packet was pushed")
	case <-time.After(20 * time.Millisecond):
	}

	if err := q.push(outboundPacket{typeName: "late"}); err != nil {
		t.Fatalf("push: %v", err)
	}

	select {
	case p := <-done:
		if p.typeName != "late" {
			t.Errorf("got %q, want %q", p.typeName, "late")
		}
	case <-time.After(time.Second):
		t.Fatal("pop never woke after push")
	}
}

func TestQueueCloseUnblocksPop(t *testing.T) {
	q := newOutboundQueue(0)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, ok := q.pop(); ok {
			t.Error("pop: expected false after close")
		}
	}()
	time.Sleep(10 * time.Millisecond)
	q.close()
	wg.Wait()
}

func TestQueuePushAfterCloseFails(t *testing.T) {
	q := newOutboundQueue(0)
	q.close()
	if err := q.push(outboundPacket{typeName: "x"}); err != ErrClosed {
		t.Fatalf("got %v, want ErrClosed", err)
	}
}

func TestQueuePopUrgentOnly(t *testing.T) {
	q := newOutboundQueue(0)
	_ = q.push(outboundPacket{typeName: "normal", priority: PriorityNormal})
	if _, ok := q.popUrgentOnly(); ok {
		t.Fatal("popUrgentOnly returned a normal-priority packet")
	}
	_ = q.push(outboundPacket{typeName: "urgent", priority: PriorityUrgent})
	p, ok := q.popUrgentOnly()
	if !ok || p.typeName != "urgent" {
		t.Fatalf("popUrgentOnly: got (%v, %v), want urgent packet", p, ok)
	}
	if q.len() != 1 {
		t.Fatalf("len after popUrgentOnly: got %d, want 1 (normal still queued)", q.len())
	}
}
