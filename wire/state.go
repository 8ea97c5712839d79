package wire

// ConnState is the connection state machine's current phase. Each side
// of a connection owns its own copy; the two sides' copies need not
// agree at every instant (e.g. one side may already be Established
// while its hello is still in flight to the peer).
type ConnState int

const (
	// Opening is the state from transport attach until this side's own
	// hello has been enqueued.
	Opening ConnState = iota
	// HelloSent: our hello is queued/written, the peer's has not
	// arrived yet.
	HelloSent
	// HelloReceived: the peer's hello arrived before ours was sent.
	// Connection never enters this state, since Start enqueues our
	// hello (entering HelloSent) before the reader runs.
	HelloReceived
	// Challenged: a challenge packet was received and a second hello
	// carrying challenge_response is expected from us, or was sent and
	// a reply is expected from the peer.
	Challenged
	// Established: both sides have exchanged a valid hello; steady
	// state dispatch is active.
	Established
	// Closing: shutdown has begun; only urgent writes still drain.
	Closing
	// Closed: the stream is shut down and no further progress is made.
	Closed
)

func (s ConnState) String() string {
	switch s {
	case Opening:
		return "opening"
	case HelloSent:
		return "hello-sent"
	case HelloReceived:
		return "hello-received"
	case Challenged:
		return "challenged"
	case Established:
		return "established"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}
