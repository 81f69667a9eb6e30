package crawler

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKnownConnectionUndirectedEquality(t *testing.T) {
	a := NewKnownConnection("10.0.0.1:8233", "10.0.0.2:8233")
	b := NewKnownConnection("10.0.0.2:8233", "10.0.0.1:8233")
	assert.Equal(t, a.key(), b.key())
}

func TestAddAddrsCreatesNodesForBothEndpoints(t *testing.T) {
	kn := NewKnownNetwork()
	kn.AddAddrs("10.0.0.1:8233", []string{"10.0.0.2:8233", "10.0.0.3:8233"})

	assert.Equal(t, 3, kn.NumNodes())
	assert.Equal(t, 2, kn.NumConnections())
}

func TestRecordHandshakeMarksNodeGood(t *testing.T) {
	kn := NewKnownNetwork()
	kn.AddAddrs("10.0.0.1:8233", []string{"10.0.0.2:8233"})
	kn.RecordHandshake("10.0.0.2:8233", 50*time.Millisecond, 170_013, "/test/", 1)

	nodes := kn.Nodes()
	n, ok := nodes["10.0.0.2:8233"]
	assert.True(t, ok)
	assert.True(t, n.Connected())
	assert.Equal(t, uint32(170_013), n.ProtocolVersion)
}

func TestRecordFailureIncrementsCounter(t *testing.T) {
	kn := NewKnownNetwork()
	kn.AddAddrs("10.0.0.1:8233", []string{"10.0.0.2:8233"})
	kn.RecordFailure("10.0.0.2:8233")
	kn.RecordFailure("10.0.0.2:8233")

	assert.Equal(t, uint8(2), kn.Nodes()["10.0.0.2:8233"].ConnectionFailures)
}

func TestPruneRemovesStaleConnections(t *testing.T) {
	kn := NewKnownNetwork()
	kn.AddAddrs("10.0.0.1:8233", []string{"10.0.0.2:8233"})

	kn.mu.Lock()
	for k, c := range kn.connections {
		c.LastSeen = time.Now().Add(-2 * LastSeenCutoff)
		kn.connections[k] = c
	}
	kn.mu.Unlock()

	kn.Prune()
	assert.Equal(t, 0, kn.NumConnections())
}

func TestConcurrentAddAddrsConvergeToOneEdgePerPair(t *testing.T) {
	kn := NewKnownNetwork()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			kn.AddAddrs("10.0.0.1:8233", []string{"10.0.0.2:8233"})
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, kn.NumNodes())
	assert.Equal(t, 1, kn.NumConnections())
}

func TestEveryConnectionEndpointHasNodeEntry(t *testing.T) {
	kn := NewKnownNetwork()
	for i := 0; i < 5; i++ {
		kn.AddAddrs(fmt.Sprintf("10.0.1.%d:8233", i), []string{fmt.Sprintf("10.0.2.%d:8233", i)})
	}

	nodes := kn.Nodes()
	for _, c := range kn.Connections() {
		_, okA := nodes[c.A]
		_, okB := nodes[c.B]
		assert.True(t, okA, "missing node entry for %s", c.A)
		assert.True(t, okB, "missing node entry for %s", c.B)
	}
}
