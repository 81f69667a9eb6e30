// Package config loads run-time configuration shared by the synthetic-peer
// and crawler binaries: which network to speak, where to listen, and how
// many peers to carry.
package config

import (
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/runziggurat/zcash-sub001/internal/wire"
)

// Network selects the magic value a Connection validates frames against.
type Network int

const (
	Mainnet Network = iota
	Testnet
)

// Magic returns the 4-byte network identifier for n.
func (n Network) Magic() [4]byte {
	if n == Testnet {
		return wire.MagicTestnet
	}
	return wire.MagicMainnet
}

func (n Network) String() string {
	if n == Testnet {
		return "testnet"
	}
	return "mainnet"
}

// NetworkConfig configures a synthetic-peer runtime instance.
type NetworkConfig struct {
	Network          Network
	ListeningAddress string
	MaxPeers         int
	ReadIdleTimeout  time.Duration
}

// DefaultNetworkConfig matches spec.md §6's defaults.
func DefaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		Network:          Mainnet,
		ListeningAddress: "0.0.0.0:8233",
		MaxPeers:         50,
		ReadIdleTimeout:  10 * time.Second,
	}
}

// Load reads an optional .env file (ignored if absent) and layers
// environment variables over the defaults, in the teacher's
// getEnvOrDefault/getEnvIntOrDefault style.
func Load(envFile string) NetworkConfig {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	}

	cfg := DefaultNetworkConfig()
	if v := os.Getenv("ZG_NETWORK"); v == "testnet" {
		cfg.Network = Testnet
	}
	cfg.ListeningAddress = getEnvOrDefault("ZG_LISTEN_ADDR", cfg.ListeningAddress)
	cfg.MaxPeers = getEnvIntOrDefault("ZG_MAX_PEERS", cfg.MaxPeers)
	if v := getEnvIntOrDefault("ZG_READ_TIMEOUT_SECS", int(cfg.ReadIdleTimeout/time.Second)); v > 0 {
		cfg.ReadIdleTimeout = time.Duration(v) * time.Second
	}
	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// RPCConfig configures the crawler's getmetrics JSON-RPC endpoint.
type RPCConfig struct {
	BindAddress     string
	MaxResponseSize int
}

func DefaultRPCConfig() RPCConfig {
	return RPCConfig{
		BindAddress:     "127.0.0.1:8234",
		MaxResponseSize: 200_000_000,
	}
}

// SplitHostPort is a small helper for validating a configured address
// before binding it; it wraps net.SplitHostPort.
func SplitHostPort(addr string) (string, string, error) {
	return net.SplitHostPort(addr)
}
