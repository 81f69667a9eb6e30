package crawler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSummarizeCountsGoodNodesAndVersions(t *testing.T) {
	kn := NewKnownNetwork()
	kn.AddAddrs("10.0.0.1:8233", []string{"10.0.0.2:8233", "10.0.0.3:8233"})
	kn.RecordHandshake("10.0.0.2:8233", 10*time.Millisecond, 170_013, "/a/", 1)

	summary := Summarize(kn, time.Now().Add(-time.Second))

	assert.Equal(t, 3, summary.NumKnownNodes)
	assert.Equal(t, 1, summary.NumGoodNodes)
	assert.Equal(t, 2, summary.NumKnownConnections)
	assert.Equal(t, 1, summary.NumVersions)
	assert.Equal(t, 1, summary.ProtocolVersions[170_013])
	assert.Contains(t, summary.NodeIPs, "10.0.0.2")
	assert.GreaterOrEqual(t, summary.CrawlerRuntime, time.Second)
}

func TestSummarizeAdjacencyGraphIncludesEdgeBetweenGoodNodes(t *testing.T) {
	kn := NewKnownNetwork()
	kn.AddAddrs("10.0.0.1:8233", []string{"10.0.0.2:8233"})
	kn.RecordHandshake("10.0.0.1:8233", time.Millisecond, 170_013, "/a/", 1)
	kn.RecordHandshake("10.0.0.2:8233", time.Millisecond, 170_013, "/a/", 1)

	summary := Summarize(kn, time.Now())

	assert.ElementsMatch(t, []string{"10.0.0.2:8233"}, summary.AdjacencyGraph["10.0.0.1:8233"])
	assert.ElementsMatch(t, []string{"10.0.0.1:8233"}, summary.AdjacencyGraph["10.0.0.2:8233"])
}

func TestSummarizeAdjacencyGraphOmitsEdgeWithOnlyOneGoodEndpoint(t *testing.T) {
	kn := NewKnownNetwork()
	kn.AddAddrs("10.0.0.1:8233", []string{"10.0.0.2:8233"})
	kn.RecordHandshake("10.0.0.1:8233", time.Millisecond, 170_013, "/a/", 1)
	// 10.0.0.2 never handshakes: not a good node.

	summary := Summarize(kn, time.Now())

	assert.Empty(t, summary.AdjacencyGraph["10.0.0.1:8233"])
	_, present := summary.AdjacencyGraph["10.0.0.2:8233"]
	assert.False(t, present)
}
