package wire

import (
	"sync"

	"github.com/xpra-org/xpra-wire/rencode"
)

// Priority is the outbound queue class a packet is enqueued under.
// The writer drains urgent before normal before bulk, tie-broken by
// insertion order within a class (spec.md §4.F).
type Priority int

const (
	PriorityUrgent Priority = iota
	PriorityNormal
	PriorityBulk

	priorityClassCount = 3
)

// DefaultHighWaterQueueLen bounds the outbound queue's total length
// across all priority classes; exceeding it fails the connection with
// ErrPeerTooSlow (spec.md §4.F).
const DefaultHighWaterQueueLen = 65536

// outboundPacket is one queued send: either a main packet (typeName
// plus args) with optional chunk substitutions.
type outboundPacket struct {
	typeName string
	args     []rencode.Value
	chunks   map[int][]byte
	priority Priority
}

// outboundQueue is a three-bucket, condvar-backed priority queue
// shared by every goroutine that calls Connection.Send/SendNow and
// drained by the single writer goroutine. Grounded on the teacher's
// Hub event loop (register/unregister/broadcast channels drained in a
// select), generalised to a mutex+condvar ring because a priority
// ordering across three classes cannot be expressed fairly with a
// single buffered channel and select.
type outboundQueue struct {
	mu        sync.Mutex
	cond      *sync.Cond
	buckets   [priorityClassCount][]outboundPacket
	closed    bool
	highWater int
}

func newOutboundQueue(highWater int) *outboundQueue {
	if highWater <= 0 {
		highWater = DefaultHighWaterQueueLen
	}
	q := &outboundQueue{highWater: highWater}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push enqueues p. It fails with ErrClosed if the queue has been
// closed, or ErrPeerTooSlow if the total queue length is already at
// the high-water mark.
func (q *outboundQueue) push(p outboundPacket) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	if q.lenLocked() >= q.highWater {
		return ErrPeerTooSlow
	}
	q.buckets[p.priority] = append(q.buckets[p.priority], p)
	q.cond.Signal()
	return nil
}

// pop blocks until a packet is available or the queue is closed.
func (q *outboundQueue) pop() (outboundPacket, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if p, ok := q.popAnyLocked(); ok {
			return p, true
		}
		if q.closed {
			return outboundPacket{}, false
		}
		q.cond.Wait()
	}
}

// popUrgentOnly pops a single urgent-class packet without blocking, or
// reports false if none is queued. Used by the close sequence, which
// drains only urgent-class packets before shutting down the stream
// (spec.md §4.F's cancellation semantics).
func (q *outboundQueue) popUrgentOnly() (outboundPacket, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	bucket := q.buckets[PriorityUrgent]
	if len(bucket) == 0 {
		return outboundPacket{}, false
	}
	p := bucket[0]
	q.buckets[PriorityUrgent] = bucket[1:]
	return p, true
}

func (q *outboundQueue) popAnyLocked() (outboundPacket, bool) {
	for i := range q.buckets {
		bucket := q.buckets[i]
		if len(bucket) > 0 {
			p := bucket[0]
			q.buckets[i] = bucket[1:]
			return p, true
		}
	}
	return outboundPacket{}, false
}

// empty reports whether no packets of any class remain, used by the
// writer to decide whether the packet it just popped is the last one
// before an idle queue and should carry the flush flag.
func (q *outboundQueue) empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked() == 0
}

func (q *outboundQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

func (q *outboundQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

func (q *outboundQueue) lenLocked() int {
	n := 0
	for _, bucket := range q.buckets {
		n += len(bucket)
	}
	return n
}
