// Package synthnode implements the synthetic-peer runtime: a Node
// dials or accepts connections, drives the handshake on each, applies a
// message filter, and exposes a single inbound stream plus
// unicast/broadcast sends to the caller.
package synthnode

import (
	"time"

	"github.com/hashicorp/golang-lru"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/runziggurat/zcash-sub001/internal/config"
	"github.com/runziggurat/zcash-sub001/internal/peer"
)

const defaultSeenInventoryCacheSize = 4096

// Builder assembles a Node's configuration before any connection is
// made. The zero value is not usable; start from NewBuilder.
type Builder struct {
	networkCfg          config.NetworkConfig
	filter              peer.MessageFilter
	handshakeTimeout    time.Duration
	fullHandshake       bool
	allowProperShutdown bool
	metrics             *prometheus.Registry
	log                 *logrus.Logger
	seenCacheSize       int
}

// NewBuilder starts a Builder from the given network configuration, with
// a full handshake, a graceful shutdown, and no auto-reply behavior
// (every message is delivered to the caller) until overridden.
func NewBuilder(cfg config.NetworkConfig) *Builder {
	return &Builder{
		networkCfg:          cfg,
		filter:              peer.DefaultFilter(),
		handshakeTimeout:    10 * time.Second,
		fullHandshake:       true,
		allowProperShutdown: true,
		log:                 logrus.StandardLogger(),
		seenCacheSize:       defaultSeenInventoryCacheSize,
	}
}

// WithNetworkConfig overrides the network configuration (magic, listen
// address, limits) set at construction time.
func (b *Builder) WithNetworkConfig(cfg config.NetworkConfig) *Builder {
	b.networkCfg = cfg
	return b
}

// WithMessageFilter installs a custom classifier for inbound messages.
func (b *Builder) WithMessageFilter(f peer.MessageFilter) *Builder {
	b.filter = f
	return b
}

// WithAllAutoReply installs the standard liveness auto-reply table
// (ping/getaddr/getheaders/getdata), delivering everything else.
func (b *Builder) WithAllAutoReply() *Builder {
	b.filter = peer.AutoReplyFilter()
	return b
}

// WithHandshakeTimeout overrides the default 10s handshake deadline.
func (b *Builder) WithHandshakeTimeout(d time.Duration) *Builder {
	b.handshakeTimeout = d
	return b
}

// WithFullHandshake controls whether Connect/Accept drive the version/
// verack exchange before a connection is usable. Disabling it is for
// scenarios that need to send or inspect traffic against a peer that
// hasn't completed (or never will complete) a handshake; the connection
// is still tracked and counted like any other.
func (b *Builder) WithFullHandshake(enabled bool) *Builder {
	b.fullHandshake = enabled
	return b
}

// WithAllowProperShutdown controls whether ShutDown closes connections
// gracefully (true, the default) or drops them abruptly without
// flushing queued outbound messages (false).
func (b *Builder) WithAllowProperShutdown(allowed bool) *Builder {
	b.allowProperShutdown = allowed
	return b
}

// WithMetrics registers the node's connected-peers gauge and its
// connect-failure, handshake-failure and dropped-message counters against
// registry. Optional; a nil registry disables metrics.
func (b *Builder) WithMetrics(registry *prometheus.Registry) *Builder {
	b.metrics = registry
	return b
}

// WithLogger overrides the default standard logrus logger.
func (b *Builder) WithLogger(log *logrus.Logger) *Builder {
	b.log = log
	return b
}

// WithSeenInventoryCacheSize overrides the default LRU capacity used by
// Node.SeenInventory to deduplicate inventory hashes.
func (b *Builder) WithSeenInventoryCacheSize(n int) *Builder {
	b.seenCacheSize = n
	return b
}

// Build constructs the Node. It does not dial or listen; call Connect or
// Accept to bring up connections.
func (b *Builder) Build() (*Node, error) {
	cache, err := lru.NewARC(b.seenCacheSize)
	if err != nil {
		return nil, err
	}

	n := &Node{
		cfg:                 b.networkCfg,
		filter:              b.filter,
		handshakeTimeout:    b.handshakeTimeout,
		fullHandshake:       b.fullHandshake,
		allowProperShutdown: b.allowProperShutdown,
		log:                 logrus.NewEntry(b.log),
		seenInventory:       cache,
		conns:               make(map[string]*peer.Connection),
		inbound:             make(chan InboundMessage, 256),
		closed:              make(chan struct{}),
	}

	if b.metrics != nil {
		n.metrics = newMetrics(b.metrics)
	}

	return n, nil
}
