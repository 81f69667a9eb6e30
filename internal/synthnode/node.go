package synthnode

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/runziggurat/zcash-sub001/internal/config"
	"github.com/runziggurat/zcash-sub001/internal/peer"
	"github.com/runziggurat/zcash-sub001/internal/wire"
)

// InboundMessage pairs a delivered message with the address of the
// connection it arrived on.
type InboundMessage struct {
	Addr    string
	Message wire.Message
}

// Node is a synthetic peer: it manages a set of outbound/inbound
// connections, runs each through the handshake and the configured
// message filter, and fans every delivered message into a single
// channel for the caller.
type Node struct {
	cfg                 config.NetworkConfig
	filter              peer.MessageFilter
	handshakeTimeout    time.Duration
	fullHandshake       bool
	allowProperShutdown bool
	log                 *logrus.Entry
	metrics             *metrics

	mu    sync.RWMutex
	conns map[string]*peer.Connection

	seenInventory *lru.ARCCache

	inbound chan InboundMessage

	listener net.Listener

	closeOnce sync.Once
	closed    chan struct{}
}

// Listen binds the node's configured listening address and accepts
// inbound connections in the background, running each through the same
// handshake/filter pipeline as Connect. Call ShutDown to stop accepting
// and close the listener.
func (n *Node) Listen() (net.Addr, error) {
	ln, err := net.Listen("tcp", n.cfg.ListeningAddress)
	if err != nil {
		return nil, err
	}
	n.listener = ln

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				if err := n.Accept(conn); err != nil {
					n.log.WithError(err).Debug("inbound handshake failed")
				}
			}()
		}
	}()

	return ln.Addr(), nil
}

// Connect dials addr, performs the handshake, and — on success — starts
// forwarding its delivered messages into RecvMessage. Connecting to an
// already-connected peer is a no-op that returns success.
func (n *Node) Connect(ctx context.Context, addr string) error {
	if n.IsConnected(addr) {
		return nil
	}

	conn, err := peer.Connect(ctx, addr, peer.Options{
		Magic:           n.cfg.Network.Magic(),
		Filter:          n.filter,
		ReadIdleTimeout: n.cfg.ReadIdleTimeout,
		Log:             n.log,
	})
	if err != nil {
		if n.metrics != nil {
			n.metrics.connectFailures.Inc()
		}
		return err
	}
	return n.adopt(addr, conn)
}

// Accept wraps an already-established inbound socket and runs it through
// the same handshake/filter pipeline as Connect.
func (n *Node) Accept(conn net.Conn) error {
	addr := conn.RemoteAddr().String()
	c := peer.Accept(conn, peer.Options{
		Magic:           n.cfg.Network.Magic(),
		Filter:          n.filter,
		ReadIdleTimeout: n.cfg.ReadIdleTimeout,
		Log:             n.log,
	})
	return n.adopt(addr, c)
}

func (n *Node) adopt(addr string, conn *peer.Connection) error {
	if n.cfg.MaxPeers > 0 && n.NumConnected() >= n.cfg.MaxPeers {
		_ = conn.Close()
		return fmt.Errorf("max peers (%d) reached", n.cfg.MaxPeers)
	}

	if n.fullHandshake {
		ourVersion := n.versionMessage(conn)
		if err := conn.Handshake(ourVersion, n.handshakeTimeout); err != nil {
			if n.metrics != nil {
				n.metrics.handshakeFailures.Inc()
			}
			return err
		}
	} else {
		conn.BypassHandshake()
	}

	n.mu.Lock()
	n.conns[addr] = conn
	n.mu.Unlock()

	if n.metrics != nil {
		n.metrics.connectedPeers.Inc()
	}

	go n.forward(addr, conn)
	return nil
}

// versionMessage builds the Version payload advertised during the
// handshake, matching the original implementation's Version::new:
// services=1 on both the node itself and the two NetworkAddr entries,
// an empty user-agent, and addr_recv/addr_from populated from the
// connection's actual remote/local addresses.
func (n *Node) versionMessage(conn *peer.Connection) wire.Message {
	return wire.Message{
		Command: wire.CommandVersion,
		Version: wire.Version{
			ProtocolVersion: 170_013,
			Services:        1,
			Timestamp:       time.Now().Unix(),
			AddrRecv:        networkAddrFromNetAddr(conn.RemoteAddr()),
			AddrFrom:        networkAddrFromNetAddr(conn.LocalAddr()),
			Nonce:           wire.NewNonce(),
			UserAgent:       wire.VarStr(""),
			StartHeight:     0,
			Relay:           false,
		},
	}
}

// networkAddrFromNetAddr converts a dialed/accepted socket's net.Addr
// into the wire NetworkAddr form, with services=1 matching the rest of
// the handshake's advertised service bits. Falls back to the zero
// address if addr isn't a parseable host:port (e.g. a net.Pipe end in
// tests).
func networkAddrFromNetAddr(addr net.Addr) wire.NetworkAddr {
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return wire.NetworkAddr{Services: 1, IP: net.IPv6zero}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 0
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ip = net.IPv6zero
	}
	return wire.NetworkAddr{Services: 1, IP: ip, Port: uint16(port)}
}

func (n *Node) forward(addr string, conn *peer.Connection) {
	defer n.drop(addr)
	for {
		msg, err := conn.Recv(context.Background())
		if err != nil {
			n.log.WithField("addr", addr).WithError(err).Debug("connection forwarding stopped")
			return
		}
		select {
		case n.inbound <- InboundMessage{Addr: addr, Message: msg}:
		case <-n.closed:
			return
		default:
			// Drop-oldest to keep the forwarder from blocking on a slow
			// caller; the per-connection queue already absorbed one
			// layer of bursts.
			select {
			case <-n.inbound:
				if n.metrics != nil {
					n.metrics.droppedMessages.Inc()
				}
			default:
			}
			select {
			case n.inbound <- InboundMessage{Addr: addr, Message: msg}:
			default:
			}
		}
	}
}

func (n *Node) drop(addr string) {
	n.mu.Lock()
	delete(n.conns, addr)
	n.mu.Unlock()
	if n.metrics != nil {
		n.metrics.connectedPeers.Dec()
	}
}

// PeerVersion returns the Version payload the peer at addr sent during
// its handshake, if addr is currently connected.
func (n *Node) PeerVersion(addr string) wire.Version {
	n.mu.RLock()
	defer n.mu.RUnlock()
	c, ok := n.conns[addr]
	if !ok {
		return wire.Version{}
	}
	return c.PeerVersion()
}

// IsConnected reports whether addr currently has a live, handshaken
// connection.
func (n *Node) IsConnected(addr string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	c, ok := n.conns[addr]
	return ok && c.State() == peer.StateHandshaken
}

// NumConnected returns the number of live connections.
func (n *Node) NumConnected() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.conns)
}

// SendDirect enqueues msg for exactly one connected peer, waiting for
// room in that peer's outbound queue if it is currently full rather
// than failing immediately (the backpressure policy of §5).
func (n *Node) SendDirect(addr string, msg wire.Message) error {
	n.mu.RLock()
	c, ok := n.conns[addr]
	n.mu.RUnlock()
	if !ok {
		return fmt.Errorf("not connected: %s", addr)
	}
	return c.SendBlocking(context.Background(), msg)
}

// Unicast is a non-blocking send to exactly one connected peer: it
// returns ErrQueueFull immediately if that peer's outbound queue is
// saturated, rather than waiting as SendDirect does.
func (n *Node) Unicast(addr string, msg wire.Message) error {
	n.mu.RLock()
	c, ok := n.conns[addr]
	n.mu.RUnlock()
	if !ok {
		return fmt.Errorf("not connected: %s", addr)
	}
	return c.Send(msg)
}

// Broadcast enqueues msg on every connected peer, waiting per peer
// independently for room in a full outbound queue, and returns any
// per-peer errors (e.g. a peer that disconnected mid-broadcast) keyed
// by address.
func (n *Node) Broadcast(msg wire.Message) map[string]error {
	n.mu.RLock()
	targets := make(map[string]*peer.Connection, len(n.conns))
	for addr, c := range n.conns {
		targets[addr] = c
	}
	n.mu.RUnlock()

	errs := make(map[string]error)
	for addr, c := range targets {
		if err := c.SendBlocking(context.Background(), msg); err != nil {
			errs[addr] = err
		}
	}
	return errs
}

// RecvMessage blocks until a delivered message is available or ctx is done.
func (n *Node) RecvMessage(ctx context.Context) (InboundMessage, error) {
	select {
	case msg := <-n.inbound:
		return msg, nil
	case <-ctx.Done():
		return InboundMessage{}, ctx.Err()
	case <-n.closed:
		return InboundMessage{}, fmt.Errorf("node shut down")
	}
}

// RecvMessageTimeout is RecvMessage with a relative deadline.
func (n *Node) RecvMessageTimeout(d time.Duration) (InboundMessage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return n.RecvMessage(ctx)
}

// SeenInventory reports whether hash has already been passed to
// SeenInventory, and records it as seen if not. The Node does not record
// hashes from inbound Inv messages on its own. Backed by an LRU so the
// memory cost of deduplication is bounded regardless of crawl duration.
func (n *Node) SeenInventory(hash wire.Hash) bool {
	if _, seen := n.seenInventory.Get(hash); seen {
		return true
	}
	n.seenInventory.Add(hash, struct{}{})
	return false
}

// ShutDown closes every connection and unblocks any pending RecvMessage.
// Whether connections are drained gracefully or dropped abruptly is set
// by Builder.WithAllowProperShutdown.
func (n *Node) ShutDown() error {
	n.closeOnce.Do(func() {
		close(n.closed)
		if n.listener != nil {
			_ = n.listener.Close()
		}
		n.mu.Lock()
		for _, c := range n.conns {
			if n.allowProperShutdown {
				_ = c.CloseGraceful(time.Second)
			} else {
				_ = c.Close()
			}
		}
		n.conns = make(map[string]*peer.Connection)
		n.mu.Unlock()
	})
	return nil
}
