// Command crawler connects once to each address in a seed list (for at
// most 60 seconds), records the outcomes in the known-network graph, and
// then serves its summary over JSON-RPC; it does not re-dial peers or
// follow addresses learned from them. The RPC bind address defaults to
// 127.0.0.1:8234 and is overridden by ZG_RPC_ADDR. Launching
// a node under test, running scenario scripts, and tabular latency
// reporting are all out of scope here; this binary only exercises the
// crawler core and its RPC surface.
package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/runziggurat/zcash-sub001/internal/config"
	"github.com/runziggurat/zcash-sub001/internal/crawler"
	"github.com/runziggurat/zcash-sub001/internal/rpc"
	"github.com/runziggurat/zcash-sub001/internal/synthnode"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string
	var concurrency int
	var dialRate float64

	cmd := &cobra.Command{
		Use:  "crawler [seed-address...]",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args, config.Load(envFile), concurrency, dialRate)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", "", "optional .env file to load network configuration from")
	cmd.Flags().IntVar(&concurrency, "concurrency", 16, "maximum concurrent connect attempts")
	cmd.Flags().Float64Var(&dialRate, "dial-rate", 8, "maximum new dials per second")
	return cmd
}

func run(seeds []string, netCfg config.NetworkConfig, concurrency int, dialRate float64) error {
	log := logrus.NewEntry(logrus.StandardLogger())
	startedAt := time.Now()

	network := crawler.NewKnownNetwork()
	node, err := synthnode.NewBuilder(netCfg).WithAllAutoReply().Build()
	if err != nil {
		return err
	}
	defer node.ShutDown()

	network.AddAddrs(seeds[0], seeds)
	pool := crawler.NewPool(network, node, concurrency, dialRate, log)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	pool.Run(ctx, seeds)
	network.Prune()

	rpcCfg := config.DefaultRPCConfig()
	if v := os.Getenv("ZG_RPC_ADDR"); v != "" {
		rpcCfg.BindAddress = v
	}
	server := rpc.NewServer(func() crawler.NetworkSummary {
		return crawler.Summarize(network, startedAt)
	}, log)

	log.WithField("addr", rpcCfg.BindAddress).Info("serving getmetrics")
	return http.ListenAndServe(rpcCfg.BindAddress, server.Handler())
}
