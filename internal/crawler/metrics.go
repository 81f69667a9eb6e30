package crawler

import (
	"sort"
	"time"
)

// AdjacencyGraph is an adjacency-list restriction of the known-network
// graph to "good" nodes — those with at least one completed handshake.
// It is rebuilt for every summary request rather than maintained
// incrementally, since a crawl's known-network size stays small enough
// that doing so is simpler and cheap.
type AdjacencyGraph map[string][]string

// NetworkSummary is the externally reported snapshot of the crawl, the
// payload behind the getmetrics RPC method.
type NetworkSummary struct {
	NumKnownNodes       int            `json:"num_known_nodes"`
	NumGoodNodes        int            `json:"num_good_nodes"`
	NumKnownConnections int            `json:"num_known_connections"`
	NumVersions         int            `json:"num_versions"`
	ProtocolVersions    map[uint32]int `json:"protocol_versions"`
	UserAgents          map[string]int `json:"user_agents"`
	CrawlerRuntime      time.Duration  `json:"crawler_runtime"`
	NodeIPs             []string       `json:"node_ips"`
	AdjacencyGraph       AdjacencyGraph `json:"agraph"`
}

// Summarize derives a NetworkSummary from the current contents of
// network, measuring crawlerRuntime from startedAt.
func Summarize(network *KnownNetwork, startedAt time.Time) NetworkSummary {
	nodes := network.Nodes()
	connections := network.Connections()

	goodAddrs := make(map[string]struct{})
	nodeIPs := make([]string, 0)
	for addr, n := range nodes {
		if n.Connected() {
			goodAddrs[addr] = struct{}{}
			nodeIPs = append(nodeIPs, hostOf(addr))
		}
	}
	sort.Strings(nodeIPs)

	protocolVersions := make(map[uint32]int)
	userAgents := make(map[string]int)
	numVersions := 0
	for _, n := range nodes {
		if !n.HasProtocolVersion {
			continue
		}
		protocolVersions[n.ProtocolVersion]++
		userAgents[n.UserAgent]++
		numVersions++
	}

	graph := make(AdjacencyGraph)
	for _, conn := range connections {
		if conn.LastSeen.Before(time.Now().Add(-LastSeenCutoff)) {
			continue
		}
		_, aGood := goodAddrs[conn.A]
		_, bGood := goodAddrs[conn.B]
		if !aGood || !bGood {
			continue
		}
		graph[conn.A] = append(graph[conn.A], conn.B)
		graph[conn.B] = append(graph[conn.B], conn.A)
	}
	for addr := range goodAddrs {
		if _, ok := graph[addr]; !ok {
			graph[addr] = []string{}
		}
	}

	return NetworkSummary{
		NumKnownNodes:       len(nodes),
		NumGoodNodes:        len(goodAddrs),
		NumKnownConnections: len(connections),
		NumVersions:         numVersions,
		ProtocolVersions:    protocolVersions,
		UserAgents:          userAgents,
		CrawlerRuntime:      time.Since(startedAt),
		NodeIPs:             nodeIPs,
		AdjacencyGraph:      graph,
	}
}

func hostOf(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i]
		}
	}
	return addr
}
