package peer

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/runziggurat/zcash-sub001/internal/wire"
)

const (
	defaultOutboundQueueLen = 256
	defaultInboundQueueLen  = 256
)

// Options configures a Connection. Filter and the queue sizes have usable
// zero values (DefaultFilter, defaultOutboundQueueLen/defaultInboundQueueLen).
type Options struct {
	Magic            [4]byte
	Filter           MessageFilter
	OutboundQueueLen int
	InboundQueueLen  int
	ReadIdleTimeout  time.Duration
	Log              *logrus.Entry
}

// Connection owns one peer socket: a reader goroutine, a writer
// goroutine, and the handshake/filter state that sits between them.
// Connection-local failures (a bad frame, a classifier decision) never
// propagate to the caller as a dropped process; they close the
// connection, and the error that closed it is what Recv returns from
// then on.
type Connection struct {
	remote net.Addr
	conn   net.Conn
	framer *wire.Framer
	filter MessageFilter
	log    *logrus.Entry

	state atomic.Int32 // HandshakeState

	outbound chan wire.Message
	inbound  chan wire.Message

	droppedInbound  atomic.Uint64
	readIdleTimeout time.Duration

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  atomic.Value // error

	peerVersion   wire.Version
	peerVersionMu sync.RWMutex
}

// Connect dials addr and returns a Connection in StateIdle; the
// handshake still needs to be driven via Handshake.
func Connect(ctx context.Context, addr string, opts Options) (*Connection, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, newError(KindIOError, err)
	}
	return newConnection(conn, opts), nil
}

// Accept wraps an already-established inbound socket.
func Accept(conn net.Conn, opts Options) *Connection {
	return newConnection(conn, opts)
}

func newConnection(conn net.Conn, opts Options) *Connection {
	if opts.Filter == nil {
		opts.Filter = DefaultFilter()
	}
	if opts.OutboundQueueLen <= 0 {
		opts.OutboundQueueLen = defaultOutboundQueueLen
	}
	if opts.InboundQueueLen <= 0 {
		opts.InboundQueueLen = defaultInboundQueueLen
	}
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}

	c := &Connection{
		remote:          conn.RemoteAddr(),
		conn:            conn,
		framer:          wire.NewFramer(conn, conn, opts.Magic),
		filter:          opts.Filter,
		log:             opts.Log.WithField("remote", conn.RemoteAddr()),
		outbound:        make(chan wire.Message, opts.OutboundQueueLen),
		inbound:         make(chan wire.Message, opts.InboundQueueLen),
		readIdleTimeout: opts.ReadIdleTimeout,
		closed:          make(chan struct{}),
	}
	c.state.Store(int32(StateIdle))
	return c
}

// Handshake performs the version/verack exchange and, on success, starts
// the reader/writer goroutines that carry traffic for the rest of the
// connection's life.
func (c *Connection) Handshake(ourVersion wire.Message, timeout time.Duration) error {
	c.state.Store(int32(StateAwaitingVersion))

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
		_ = c.conn.SetDeadline(deadline)
	}

	peerVersion, err := runHandshake(c.framer, ourVersion, deadline)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			err = newError(KindHandshakeFailed, err)
		}
		c.state.Store(int32(StateClosed))
		c.fail(err)
		return err
	}
	_ = c.conn.SetDeadline(time.Time{})

	c.peerVersionMu.Lock()
	c.peerVersion = peerVersion
	c.peerVersionMu.Unlock()

	c.state.Store(int32(StateHandshaken))
	c.log.WithFields(logrus.Fields{
		"user_agent": string(peerVersion.UserAgent),
		"token":      ConnectionToken(peerVersion.Nonce),
	}).Debug("handshake complete")

	go c.readLoop()
	go c.writeLoop()
	return nil
}

// BypassHandshake skips the version/verack exchange and starts the
// reader/writer goroutines immediately, moving straight to
// StateHandshaken. For scenarios that need to probe a peer's reaction
// to traffic sent before any handshake completes.
func (c *Connection) BypassHandshake() {
	c.state.Store(int32(StateHandshaken))
	go c.readLoop()
	go c.writeLoop()
}

// PeerVersion returns the Version payload the peer sent during the
// handshake. Only meaningful once State returns StateHandshaken or later.
func (c *Connection) PeerVersion() wire.Version {
	c.peerVersionMu.RLock()
	defer c.peerVersionMu.RUnlock()
	return c.peerVersion
}

func (c *Connection) State() HandshakeState { return HandshakeState(c.state.Load()) }

func (c *Connection) RemoteAddr() net.Addr { return c.remote }

func (c *Connection) LocalAddr() net.Addr { return c.conn.LocalAddr() }

// Send enqueues a message for the writer goroutine. It returns
// ErrQueueFull immediately rather than blocking if the outbound queue is
// saturated. This is the non-blocking send used by unicast-style calls.
func (c *Connection) Send(msg wire.Message) error {
	select {
	case <-c.closed:
		return newError(KindPeerDisconnected, ErrPeerDisconnected)
	default:
	}
	select {
	case c.outbound <- msg:
		return nil
	default:
		return newError(KindQueueFull, ErrQueueFull)
	}
}

// SendBlocking enqueues a message for the writer goroutine, waiting for
// room in the outbound queue rather than failing immediately when it is
// saturated. It returns once the message is enqueued, or if the
// connection closes or ctx is done first.
func (c *Connection) SendBlocking(ctx context.Context, msg wire.Message) error {
	select {
	case <-c.closed:
		return newError(KindPeerDisconnected, ErrPeerDisconnected)
	default:
	}
	select {
	case c.outbound <- msg:
		return nil
	case <-c.closed:
		return newError(KindPeerDisconnected, ErrPeerDisconnected)
	case <-ctx.Done():
		return newError(KindTimeout, ctx.Err())
	}
}

// Recv blocks until a delivered message arrives or the connection closes.
func (c *Connection) Recv(ctx context.Context) (wire.Message, error) {
	select {
	case msg, ok := <-c.inbound:
		if !ok {
			return wire.Message{}, c.err()
		}
		return msg, nil
	case <-ctx.Done():
		return wire.Message{}, newError(KindTimeout, ctx.Err())
	case <-c.closed:
		return wire.Message{}, c.err()
	}
}

// DroppedInbound reports how many delivered messages were discarded
// because the inbound queue was full when they arrived (drop-oldest).
func (c *Connection) DroppedInbound() uint64 { return c.droppedInbound.Load() }

// Close shuts down the socket and unblocks any pending Send/Recv calls.
func (c *Connection) Close() error {
	c.fail(newError(KindPeerDisconnected, io.EOF))
	return nil
}

// CloseGraceful waits for the outbound queue to drain (up to timeout)
// before closing, so a caller's last queued sends (e.g. a final Verack
// or Reject) have a chance to reach the wire instead of being dropped.
func (c *Connection) CloseGraceful(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for len(c.outbound) > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	return c.Close()
}

func (c *Connection) err() error {
	if v := c.closeErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

func (c *Connection) fail(err error) {
	c.closeOnce.Do(func() {
		c.closeErr.Store(err)
		c.state.Store(int32(StateClosed))
		_ = c.conn.Close()
		close(c.closed)
	})
}

func (c *Connection) readLoop() {
	for {
		if c.readIdleTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.readIdleTimeout))
		}
		msg, err := c.framer.ReadMessage()
		if err != nil {
			c.log.WithError(err).Debug("read loop exiting")
			c.fail(classifyReadError(err))
			return
		}

		action := c.filter.Classify(msg)
		switch action.Kind {
		case ActionIgnore:
			continue
		case ActionAutoReply:
			if action.Reply != nil {
				if err := c.Send(*action.Reply); err != nil {
					c.log.WithError(err).Debug("auto-reply dropped")
				}
			}
			continue
		case ActionDeliver:
			c.deliver(msg)
		}
	}
}

// deliver pushes msg to the inbound queue, dropping the oldest queued
// message (and counting it) rather than blocking the reader goroutine
// when the queue is saturated.
func (c *Connection) deliver(msg wire.Message) {
	select {
	case c.inbound <- msg:
		return
	default:
	}

	select {
	case <-c.inbound:
		c.droppedInbound.Add(1)
	default:
	}
	select {
	case c.inbound <- msg:
	default:
		c.droppedInbound.Add(1)
	}
}

func (c *Connection) writeLoop() {
	for {
		select {
		case msg := <-c.outbound:
			if err := c.framer.WriteMessage(msg); err != nil {
				c.log.WithError(err).Debug("write loop exiting")
				c.fail(newError(KindIOError, err))
				return
			}
		case <-c.closed:
			return
		}
	}
}
