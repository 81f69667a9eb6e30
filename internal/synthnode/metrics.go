package synthnode

import "github.com/prometheus/client_golang/prometheus"

// metrics holds the runtime gauges/counters a Node exposes when built
// with Builder.WithMetrics. All are optional; a Node built without a
// registry carries a nil *metrics and every call site guards on it.
type metrics struct {
	connectedPeers    prometheus.Gauge
	connectFailures   prometheus.Counter
	handshakeFailures prometheus.Counter
	droppedMessages   prometheus.Counter
}

func newMetrics(registry *prometheus.Registry) *metrics {
	m := &metrics{
		connectedPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "synthnode",
			Name:      "connected_peers",
			Help:      "Number of peers currently connected and handshaken.",
		}),
		connectFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "synthnode",
			Name:      "connect_failures_total",
			Help:      "Number of outbound connection attempts that failed before the handshake.",
		}),
		handshakeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "synthnode",
			Name:      "handshake_failures_total",
			Help:      "Number of connections that failed during the version/verack exchange.",
		}),
		droppedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "synthnode",
			Name:      "dropped_inbound_messages_total",
			Help:      "Number of delivered messages discarded because the node's inbound queue was full.",
		}),
	}

	registry.MustRegister(m.connectedPeers, m.connectFailures, m.handshakeFailures, m.droppedMessages)
	return m
}
