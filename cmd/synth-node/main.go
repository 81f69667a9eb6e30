// Command synth-node runs a standalone synthetic peer: it dials a single
// target, completes the handshake, answers liveness messages, and logs
// whatever else it receives. It exists to exercise internal/synthnode in
// isolation; driving conformance scenarios against it is out of scope
// here.
package main

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/runziggurat/zcash-sub001/internal/config"
	"github.com/runziggurat/zcash-sub001/internal/synthnode"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{Use: "synth-node"}
	connect := &cobra.Command{
		Use:   "connect [address]",
		Short: "connect to a peer and run the handshake",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnect(args[0], config.Load(envFile))
		},
	}
	connect.Flags().StringVar(&envFile, "env-file", "", "optional .env file to load network configuration from")
	cmd.AddCommand(connect)
	return cmd
}

func runConnect(addr string, cfg config.NetworkConfig) error {
	log := logrus.NewEntry(logrus.StandardLogger())

	node, err := synthnode.NewBuilder(cfg).
		WithAllAutoReply().
		WithLogger(logrus.StandardLogger()).
		Build()
	if err != nil {
		return err
	}
	defer node.ShutDown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := node.Connect(ctx, addr); err != nil {
		return err
	}
	log.WithField("addr", addr).Info("handshake complete")

	for {
		msg, err := node.RecvMessage(context.Background())
		if err != nil {
			return err
		}
		log.WithField("command", msg.Message.Command.String()).Info("delivered message")
	}
}
