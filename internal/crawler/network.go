// Package crawler maintains the known-network graph discovered by
// repeatedly connecting to peers with the synthetic-peer runtime, and
// derives summary metrics from it.
package crawler

import (
	"sync"
	"time"
)

// LastSeenCutoff is the age past which a connection is considered
// inactive and dropped by Prune.
const LastSeenCutoff = 10 * time.Minute

// KnownNode is everything recorded about one address the crawler has
// encountered, either as a dial target or as an address reported by
// another peer.
type KnownNode struct {
	LastConnected      time.Time
	HandshakeTime      time.Duration
	ProtocolVersion    uint32
	HasProtocolVersion bool
	UserAgent          string
	Services           uint64
	HasServices        bool
	ConnectionFailures uint8
}

// Connected reports whether this node has ever completed a handshake,
// the "good node" criterion used by NetworkSummary.
func (n KnownNode) Connected() bool {
	return !n.LastConnected.IsZero()
}

// KnownConnection is an undirected edge between two addresses: {A, B}
// equals {B, A}. LastSeen tracks when either endpoint most recently
// reported this edge.
type KnownConnection struct {
	A, B     string
	LastSeen time.Time
}

// NewKnownConnection builds the canonical (sorted) representation of an
// edge so that {a, b} and {b, a} compare equal and hash identically when
// used as a map key.
func NewKnownConnection(a, b string) KnownConnection {
	if a > b {
		a, b = b, a
	}
	return KnownConnection{A: a, B: b, LastSeen: time.Now()}
}

type edgeKey struct{ a, b string }

func (c KnownConnection) key() edgeKey { return edgeKey{c.A, c.B} }

// KnownNetwork is the crawler's shared view of the network: every node
// address seen so far and the edges reported between them. All access
// goes through an RWMutex since connect workers and summary requests run
// concurrently.
type KnownNetwork struct {
	mu          sync.RWMutex
	nodes       map[string]KnownNode
	connections map[edgeKey]KnownConnection
}

// NewKnownNetwork returns an empty store.
func NewKnownNetwork() *KnownNetwork {
	return &KnownNetwork{
		nodes:       make(map[string]KnownNode),
		connections: make(map[edgeKey]KnownConnection),
	}
}

// AddAddrs records that source reported listeningAddrs as reachable
// peers, adding an edge from source to each and ensuring every address
// involved has a (possibly empty) KnownNode entry.
func (kn *KnownNetwork) AddAddrs(source string, listeningAddrs []string) {
	kn.mu.Lock()
	for _, addr := range listeningAddrs {
		conn := NewKnownConnection(source, addr)
		kn.connections[conn.key()] = conn
	}
	kn.mu.Unlock()

	kn.updateNodes()
}

// updateNodes ensures every address that appears in an edge has a node
// entry, even if it has never itself been dialed.
func (kn *KnownNetwork) updateNodes() {
	kn.mu.Lock()
	defer kn.mu.Unlock()
	for _, conn := range kn.connections {
		if _, ok := kn.nodes[conn.A]; !ok {
			kn.nodes[conn.A] = KnownNode{}
		}
		if _, ok := kn.nodes[conn.B]; !ok {
			kn.nodes[conn.B] = KnownNode{}
		}
	}
}

// RecordHandshake updates addr's node entry after a successful
// connection, resetting its failure count.
func (kn *KnownNetwork) RecordHandshake(addr string, handshakeTime time.Duration, protocolVersion uint32, userAgent string, services uint64) {
	kn.mu.Lock()
	defer kn.mu.Unlock()
	n := kn.nodes[addr]
	n.LastConnected = time.Now()
	n.HandshakeTime = handshakeTime
	n.ProtocolVersion = protocolVersion
	n.HasProtocolVersion = true
	n.UserAgent = userAgent
	n.Services = services
	n.HasServices = true
	n.ConnectionFailures = 0
	kn.nodes[addr] = n
}

// RecordFailure increments addr's connection-failure counter.
func (kn *KnownNetwork) RecordFailure(addr string) {
	kn.mu.Lock()
	defer kn.mu.Unlock()
	n := kn.nodes[addr]
	n.ConnectionFailures++
	kn.nodes[addr] = n
}

// Prune removes connections whose LastSeen is older than LastSeenCutoff.
func (kn *KnownNetwork) Prune() {
	cutoff := time.Now().Add(-LastSeenCutoff)
	kn.mu.Lock()
	defer kn.mu.Unlock()
	for key, conn := range kn.connections {
		if conn.LastSeen.Before(cutoff) {
			delete(kn.connections, key)
		}
	}
}

// Nodes returns a snapshot copy of every known node, keyed by address.
func (kn *KnownNetwork) Nodes() map[string]KnownNode {
	kn.mu.RLock()
	defer kn.mu.RUnlock()
	out := make(map[string]KnownNode, len(kn.nodes))
	for k, v := range kn.nodes {
		out[k] = v
	}
	return out
}

// Connections returns a snapshot copy of every known connection.
func (kn *KnownNetwork) Connections() []KnownConnection {
	kn.mu.RLock()
	defer kn.mu.RUnlock()
	out := make([]KnownConnection, 0, len(kn.connections))
	for _, c := range kn.connections {
		out = append(out, c)
	}
	return out
}

// NumNodes returns the number of known nodes.
func (kn *KnownNetwork) NumNodes() int {
	kn.mu.RLock()
	defer kn.mu.RUnlock()
	return len(kn.nodes)
}

// NumConnections returns the number of known connections.
func (kn *KnownNetwork) NumConnections() int {
	kn.mu.RLock()
	defer kn.mu.RUnlock()
	return len(kn.connections)
}
