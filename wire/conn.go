// Package wire implements the Xpra application-layer wire protocol
// core: a Connection glues the transport bytestream, the rencodeplus
// framer, the compressor registry, and the optional AES envelope into
// a single reader/writer pair, and drives the hello/challenge
// handshake described in spec.md §4.
package wire

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/xpra-org/xpra-wire/compress"
	"github.com/xpra-org/xpra-wire/envelope"
	"github.com/xpra-org/xpra-wire/frame"
	"github.com/xpra-org/xpra-wire/rencode"
	"github.com/xpra-org/xpra-wire/transport"
)

// Handler processes one dispatched packet's arguments. A non-nil
// return is treated as ErrLocalError and closes the connection, per
// spec.md §4.G's "a registered handler returning an error is always
// fatal" note.
type Handler func(Args) error

// settings collects the handshake and crypto knobs a Connection is
// constructed with, distinct from config.ConnectionConfig's sizing
// knobs (which the caller applies when building the Writer/Reader/
// Registry passed to NewConnection).
type settings struct {
	protocolVersion     string
	isInitiator         bool
	requireAuth         bool
	password            string
	challengeDigest     string
	handshakeRetryLimit int
	offerCipher         bool
	cipherOffer         CipherParams
	compressionOptins   map[string]bool
}

// Option configures a Connection at construction time.
type Option func(*settings)

// WithProtocolVersion sets the version string advertised in this
// side's hello.
func WithProtocolVersion(v string) Option {
	return func(s *settings) { s.protocolVersion = v }
}

// WithInitiator marks this side as the handshake initiator (the side
// that will answer a challenge, rather than issue one), matching
// spec.md §4.G's asymmetric client/server roles.
func WithInitiator(isInitiator bool) Option {
	return func(s *settings) { s.isInitiator = isInitiator }
}

// WithPassword configures the pre-shared secret used both to answer a
// peer's challenge and, if RequireAuth is set, to verify the peer's
// response to a challenge this side issues.
func WithPassword(password string) Option {
	return func(s *settings) { s.password = password }
}

// WithRequireAuth makes this side issue a challenge upon receiving the
// peer's hello, instead of accepting it outright.
func WithRequireAuth(digest string) Option {
	return func(s *settings) {
		s.requireAuth = true
		if digest == "" {
			digest = "hmac+sha256"
		}
		s.challengeDigest = digest
	}
}

// WithHandshakeRetryLimit bounds the number of additional hello
// attempts accepted after a failed challenge response before
// ErrAuthFailed. Default 3.
func WithHandshakeRetryLimit(n int) Option {
	return func(s *settings) { s.handshakeRetryLimit = n }
}

// WithCipherOffer makes this side propose a cipher in its own hello
// when no cipher has already been negotiated.
func WithCipherOffer(p CipherParams) Option {
	return func(s *settings) {
		s.offerCipher = true
		s.cipherOffer = p
	}
}

// WithCompressionOptin advertises willingness to receive payloads
// compressed with the named codec.
func WithCompressionOptin(name string, enabled bool) Option {
	return func(s *settings) {
		if s.compressionOptins == nil {
			s.compressionOptins = map[string]bool{}
		}
		s.compressionOptins[name] = enabled
	}
}

// Connection is one peer-to-peer Xpra wire protocol session: a
// transport.Stream plus the framer, compressor registry, optional
// cipher, alias tables, and dispatcher needed to turn it into a typed
// packet conversation. Modelled on the teacher's websocket.Conn: one
// reader goroutine, one writer goroutine, a sync.Once-guarded close.
type Connection struct {
	stream      transport.Stream
	writeMu     sync.Mutex // serialises writes to stream between the writer goroutine and a failing goroutine's disconnect packet
	writer      *frame.Writer
	reader      *frame.Reader
	compressors *compress.Registry
	queue       *outboundQueue

	logger   *zap.Logger
	recorder Recorder

	cfg settings

	aliasesOut *AliasTable // installed from the peer's hello.aliases; governs our outgoing encode
	aliasesIn  *AliasTable // installed from our own hello.aliases; governs incoming alias decode

	localAliasSnapshot map[string]int64

	dispatcher *dispatcher

	cipher atomic.Pointer[cipherBox]

	stateMu sync.RWMutex
	state   ConnState

	challengeSalt     []byte
	challengeAttempts int

	startOnce sync.Once
	started   bool

	closeOnce sync.Once
	closeErr  error
	closed    chan struct{}

	wg sync.WaitGroup
}

// cipherBox wraps an envelope.Cipher so it can be stored in an
// atomic.Pointer; envelope.Cipher is an interface value and cannot be
// held directly by atomic.Pointer's generic parameter without one.
type cipherBox struct {
	c envelope.Cipher
}

// NewConnection builds a Connection ready to Start. stream carries the
// raw bytes; writer/reader/compressors are typically built from a
// shared config.ConnectionConfig via frame.NewWriter(cfg.MaxPayloadSize)
// etc. logger and recorder may be nil.
func NewConnection(
	stream transport.Stream,
	writer *frame.Writer,
	reader *frame.Reader,
	compressors *compress.Registry,
	highWaterQueueLen int,
	logger *zap.Logger,
	recorder Recorder,
	opts ...Option,
) *Connection {
	cfg := settings{
		protocolVersion:     "1.0",
		handshakeRetryLimit: 3,
		challengeDigest:     "hmac+sha256",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Connection{
		stream:      stream,
		writer:      writer,
		reader:      reader,
		compressors: compressors,
		queue:       newOutboundQueue(highWaterQueueLen),
		logger:      loggerOrNop(logger),
		recorder:    recorderOrNop(recorder),
		cfg:         cfg,
		aliasesOut:  NewAliasTable(),
		aliasesIn:   NewAliasTable(),
		dispatcher:  newDispatcher(),
		state:       Opening,
		closed:      make(chan struct{}),
	}
	return c
}

// RegisterHandler binds a handler to a packet-type name. Must be
// called before Start(); returns ErrAlreadyStarted afterward.
func (c *Connection) RegisterHandler(name string, h Handler) error {
	if c.isStarted() {
		return ErrAlreadyStarted
	}
	return c.dispatcher.register(name, h)
}

// SetAliasesIn installs the alias table this side uses to decode
// incoming integers, and folds the same mapping into this side's own
// outgoing hello so the peer knows to use it. Must be called before
// Start().
func (c *Connection) SetAliasesIn(m map[string]int64) error {
	if c.isStarted() {
		return ErrAlreadyStarted
	}
	if err := c.aliasesIn.Install(m); err != nil {
		return err
	}
	snapshot := make(map[string]int64, len(m))
	for k, v := range m {
		snapshot[k] = v
	}
	c.localAliasSnapshot = snapshot
	return nil
}

// SetAliasesOut manually installs the table used to encode this
// side's own outgoing packets, overriding the table that would
// otherwise be auto-installed from the peer's hello.aliases. Exposed
// for callers that negotiate aliases out of band.
func (c *Connection) SetAliasesOut(m map[string]int64) error {
	return c.aliasesOut.Install(m)
}

// State returns the connection's current phase.
func (c *Connection) State() ConnState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

func (c *Connection) setState(s ConnState) {
	c.stateMu.Lock()
	prev := c.state
	c.state = s
	c.stateMu.Unlock()
	if prev != s {
		c.recorder.StateTransition(prev, s)
		c.logger.Debug("state transition", zap.String("from", prev.String()), zap.String("to", s.String()))
	}
}

// QueueLen returns the outbound queue's current length across all
// priority classes.
func (c *Connection) QueueLen() int { return c.queue.len() }

// CipherNegotiated reports whether an envelope cipher is active.
func (c *Connection) CipherNegotiated() bool { return c.cipherLoad() != nil }

func (c *Connection) cipherLoad() envelope.Cipher {
	b := c.cipher.Load()
	if b == nil {
		return nil
	}
	return b.c
}

func (c *Connection) cipherStore(ci envelope.Cipher) {
	c.cipher.Store(&cipherBox{c: ci})
}

func (c *Connection) isStarted() bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.started
}

// Start sends this side's hello and launches the reader and writer
// goroutines. Calling Start twice is a no-op after the first call.
func (c *Connection) Start(ctx context.Context) error {
	var startErr error
	c.startOnce.Do(func() {
		c.stateMu.Lock()
		c.started = true
		c.stateMu.Unlock()
		c.dispatcher.start()

		hello := c.buildHello()
		if err := c.queue.push(outboundPacket{
			typeName: "hello",
			args:     []rencode.Value{hello.Dict()},
			priority: PriorityUrgent,
		}); err != nil {
			startErr = err
			return
		}
		c.setState(HelloSent)

		c.wg.Add(2)
		go c.runWriter()
		go c.runReader()

		go func() {
			<-ctx.Done()
			_ = c.Close()
		}()
	})
	return startErr
}

// Send enqueues a normal-priority packet.
func (c *Connection) Send(packetType string, args []rencode.Value, chunks map[int][]byte) error {
	return c.enqueue(packetType, args, chunks, PriorityNormal)
}

// SendNow enqueues an urgent-priority packet, ahead of any
// normal/bulk traffic already queued.
func (c *Connection) SendNow(packetType string, args []rencode.Value, chunks map[int][]byte) error {
	return c.enqueue(packetType, args, chunks, PriorityUrgent)
}

// SendBulk enqueues a bulk-priority packet, drained only once urgent
// and normal classes are empty.
func (c *Connection) SendBulk(packetType string, args []rencode.Value, chunks map[int][]byte) error {
	return c.enqueue(packetType, args, chunks, PriorityBulk)
}

func (c *Connection) enqueue(packetType string, args []rencode.Value, chunks map[int][]byte, priority Priority) error {
	err := c.queue.push(outboundPacket{typeName: packetType, args: args, chunks: chunks, priority: priority})
	c.recorder.QueueDepth(c.queue.len())
	if errors.Is(err, ErrPeerTooSlow) {
		c.fail(err)
	}
	return err
}

func (c *Connection) runWriter() {
	defer c.wg.Done()
	for {
		pkt, ok := c.queue.pop()
		if !ok {
			return
		}
		flush := c.queue.empty()
		if err := c.writeOne(pkt, flush); err != nil {
			c.fail(err)
			return
		}
	}
}

func (c *Connection) writeOne(pkt outboundPacket, flush bool) error {
	list := make(rencode.List, 0, len(pkt.args)+1)
	if alias, ok := c.aliasesOut.Alias(pkt.typeName); ok {
		list = append(list, rencode.NewInt(alias))
	} else {
		list = append(list, rencode.Text(pkt.typeName))
	}
	list = append(list, pkt.args...)

	encoded, err := rencode.Encode(list)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	codec, level := c.compressors.Select(encoded, false)

	// hello packets carry the cipher parameters themselves, so they are
	// never enciphered: the peer cannot have a cipher installed yet.
	var ci envelope.Cipher
	if box := c.cipher.Load(); box != nil && pkt.typeName != "hello" {
		ci = box.c
	}

	c.writeMu.Lock()
	err = c.writer.Emit(c.stream, list, pkt.chunks, codec, level, cipherOrNil(ci), flush)
	c.writeMu.Unlock()
	if err != nil {
		return err
	}
	c.recorder.PacketSent(priorityName(pkt.priority))
	c.recorder.BytesSent(len(encoded))
	c.recorder.QueueDepth(c.queue.len())
	return nil
}

// cipherOrNil converts a possibly-nil envelope.Cipher into the nil
// frame.Cipher interface value frame.Writer/Reader expect when no
// cipher is active; a non-nil interface wrapping a nil pointer would
// otherwise compare non-nil to frame's internal checks.
func cipherOrNil(c envelope.Cipher) frame.Cipher {
	if c == nil {
		return nil
	}
	return c
}

func (c *Connection) runReader() {
	defer c.wg.Done()
	for {
		var ci envelope.Cipher
		if box := c.cipher.Load(); box != nil {
			ci = box.c
		}
		val, err := c.reader.Next(c.stream, c.compressors, cipherOrNil(ci))
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.beginClose(nil, true)
				return
			}
			if errors.Is(err, frame.ErrTimeout) {
				c.fail(fmt.Errorf("%w: %v", ErrTimeout, err))
				return
			}
			c.fail(err)
			return
		}
		c.recorder.PacketReceived()

		list, ok := val.(rencode.List)
		if !ok || len(list) == 0 {
			c.fail(fmt.Errorf("%w: packet is not a non-empty list", ErrMalformedPayload))
			return
		}

		name, err := c.resolvePacketType(list[0])
		if err != nil {
			c.logger.Debug("unresolvable packet type alias, discarding", zap.Error(err))
			continue
		}
		args := NewArgs(list[1:])

		if name == "disconnect" {
			// The peer already sent its own disconnect packet, so
			// spec.md §5's "unless the peer sent one first" applies:
			// suppress ours rather than echo one back.
			c.beginClose(nil, false)
			return
		}

		// hello and challenge are always routed through the handshake
		// state machine, even after this side has reached Established:
		// a peer's own hello and its follow-up challenge are two
		// separate packets on the wire, and the second may arrive after
		// this side has already processed the first.
		if name == "hello" || name == "challenge" {
			if err := c.handleHandshakePacket(name, args); err != nil {
				c.fail(err)
				return
			}
			continue
		}

		if c.State() != Established {
			c.logger.Debug("packet received before handshake completed, discarding",
				zap.String("type", name), zap.String("state", c.State().String()))
			continue
		}

		dispatched, err := c.dispatcher.dispatch(name, args)
		if err != nil {
			c.fail(fmt.Errorf("%w: %v", ErrLocalError, err))
			return
		}
		if !dispatched {
			c.logger.Debug("unknown packet type, discarding", zap.String("type", name))
		}
	}
}

func (c *Connection) resolvePacketType(v rencode.Value) (string, error) {
	switch t := v.(type) {
	case rencode.Text:
		return string(t), nil
	case rencode.Int:
		name, ok := c.aliasesIn.Name(t.Small)
		if !ok {
			return "", fmt.Errorf("unresolved alias %d", t.Small)
		}
		return name, nil
	default:
		return "", fmt.Errorf("%w: packet type must be text or integer", ErrMalformedPayload)
	}
}

func (c *Connection) installCipherFromPeer(p CipherParams) error {
	mode, err := parseCipherMode(p.Mode)
	if err != nil {
		return err
	}
	digest := envelope.DigestSHA256
	if p.Digest == "sha1" {
		digest = envelope.DigestSHA1
	}
	iterations := int(p.Iterations)
	if iterations <= 0 {
		iterations = 1000
	}
	key, err := envelope.DeriveKey(c.cfg.password, p.KeySalt, iterations, 32, digest)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	var ci envelope.Cipher
	if mode == envelope.ModeCTR && len(p.IV) > 0 {
		ci, err = envelope.NewWithIV(mode, key, p.IV, c.cfg.isInitiator)
	} else {
		ci, err = envelope.New(mode, key, c.cfg.isInitiator)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	c.cipherStore(ci)
	return nil
}

func parseCipherMode(name string) (envelope.Mode, error) {
	switch name {
	case "AES-CBC", "aes-cbc", "cbc":
		return envelope.ModeCBC, nil
	case "AES-GCM", "aes-gcm", "gcm":
		return envelope.ModeGCM, nil
	case "AES-CTR", "aes-ctr", "ctr":
		return envelope.ModeCTR, nil
	case "AES-CFB", "aes-cfb", "cfb":
		return envelope.ModeCFB, nil
	default:
		return "", fmt.Errorf("%w: unsupported cipher mode %q", ErrAuthFailed, name)
	}
}

// fail transitions the connection to Closing/Closed in response to a
// fatal protocol error, attempting to emit a disconnect packet first
// when the stream is still writable. Called from inside the reader or
// writer goroutine (and from a sender whose enqueue hit ErrPeerTooSlow),
// so it must not wait on c.wg — the reader or writer calling it is one
// of the two members of the wait group and has not yet returned.
func (c *Connection) fail(err error) {
	c.logger.Warn("connection failing", zap.Error(err), zap.String("state", c.State().String()))
	c.beginClose(err, true)
}

// Close begins the connection's shutdown sequence: it stops accepting
// new sends, sends a disconnect packet (unless the peer already sent
// one), drains only urgent-class packets, and closes the transport,
// then waits for the reader and writer goroutines to exit. Safe to
// call more than once and from any goroutine other than the
// reader/writer themselves (which must use fail/beginClose instead).
func (c *Connection) Close() error {
	c.beginClose(nil, true)
	c.wg.Wait()
	return c.closeErr
}

// disconnectWriteTimeout bounds how long beginClose waits for the
// urgent drain and the disconnect packet before closing the stream.
const disconnectWriteTimeout = time.Second

// beginClose runs the idempotent shutdown sequence exactly once and
// returns immediately, without waiting for the reader/writer
// goroutines to exit. notifyPeer controls whether a disconnect packet
// is sent: callers pass false only when the peer has already sent its
// own disconnect packet first, per spec.md §5's "unless the peer sent
// one first" — cause == nil alone (a voluntary, error-free close) must
// still notify the peer, matching the teacher's CloseWithCode, which
// always writes a close frame on voluntary close.
//
// The urgent drain and the disconnect write run in their own goroutine
// and are given at most disconnectWriteTimeout before the stream is
// closed regardless, so a peer that has stopped reading cannot hold the
// close sequence open.
func (c *Connection) beginClose(cause error, notifyPeer bool) {
	c.closeOnce.Do(func() {
		c.setState(Closing)
		c.queue.close()

		if notifyPeer {
			reason := disconnectReason(cause)
			sent := make(chan struct{})
			go func() {
				defer close(sent)
				for pkt, ok := c.queue.popUrgentOnly(); ok; pkt, ok = c.queue.popUrgentOnly() {
					if c.writeOne(pkt, true) != nil {
						return
					}
				}
				c.writeMu.Lock()
				_ = c.writer.Emit(c.stream, rencode.List{rencode.Text("disconnect"), rencode.Text(reason)}, nil, nil, 0, nil, true)
				c.writeMu.Unlock()
			}()
			select {
			case <-sent:
			case <-time.After(disconnectWriteTimeout):
			}
		}

		c.closeErr = cause
		_ = c.stream.Close()
		c.setState(Closed)
		close(c.closed)
	})
}

// Done returns a channel closed once the connection has finished its
// close sequence.
func (c *Connection) Done() <-chan struct{} { return c.closed }

// LastError returns the error that triggered Close, if any.
func (c *Connection) LastError() error { return c.closeErr }

func priorityName(p Priority) string {
	switch p {
	case PriorityUrgent:
		return "urgent"
	case PriorityNormal:
		return "normal"
	case PriorityBulk:
		return "bulk"
	default:
		return "unknown"
	}
}

func randomSalt(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
