package crawler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/runziggurat/zcash-sub001/internal/synthnode"
)

// Pool drives a bounded number of concurrent connect attempts against
// candidate addresses, recording the outcome of each into a
// KnownNetwork. The semaphore is a plain buffered channel: the crawl's
// concurrency is a small, fixed number fixed at Pool construction, and a
// channel-based gate is the same shape the runtime already uses for its
// per-connection queues.
type Pool struct {
	network     *KnownNetwork
	node        *synthnode.Node
	limiter     *rate.Limiter
	sem         chan struct{}
	log         *logrus.Entry
	dialTimeout time.Duration
}

// NewPool builds a worker pool of the given concurrency, rate-limiting
// dials to ratePerSecond with a burst of the same size.
func NewPool(network *KnownNetwork, node *synthnode.Node, concurrency int, ratePerSecond float64, log *logrus.Entry) *Pool {
	if concurrency <= 0 {
		concurrency = 1
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Pool{
		network:     network,
		node:        node,
		limiter:     rate.NewLimiter(rate.Limit(ratePerSecond), concurrency),
		sem:         make(chan struct{}, concurrency),
		log:         log,
		dialTimeout: 10 * time.Second,
	}
}

// Run dials every address in addrs, at most Pool's concurrency at a
// time, and blocks until all attempts have completed or ctx is done.
func (p *Pool) Run(ctx context.Context, addrs []string) {
	var wg sync.WaitGroup
	for _, addr := range addrs {
		addr := addr
		select {
		case p.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-p.sem }()
			p.attempt(ctx, addr)
		}()
	}
	wg.Wait()
}

func (p *Pool) attempt(ctx context.Context, addr string) {
	if err := p.limiter.Wait(ctx); err != nil {
		return
	}

	runID := uuid.New()
	log := p.log.WithField("run_id", runID).WithField("addr", addr)

	dialCtx, cancel := context.WithTimeout(ctx, p.dialTimeout)
	defer cancel()

	start := time.Now()
	if err := p.node.Connect(dialCtx, addr); err != nil {
		log.WithError(err).Debug("connect attempt failed")
		p.network.RecordFailure(addr)
		return
	}
	handshakeTime := time.Since(start)

	peerVersion := p.node.PeerVersion(addr)
	p.network.RecordHandshake(addr, handshakeTime, peerVersion.ProtocolVersion, string(peerVersion.UserAgent), peerVersion.Services)
	log.Debug("connect attempt succeeded")
}
