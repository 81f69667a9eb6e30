package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/runziggurat/zcash-sub001/internal/wire"
)

func TestDefaultNetworkConfig(t *testing.T) {
	cfg := DefaultNetworkConfig()
	assert.Equal(t, Mainnet, cfg.Network)
	assert.Equal(t, 50, cfg.MaxPeers)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("ZG_NETWORK", "testnet")
	t.Setenv("ZG_MAX_PEERS", "5")

	cfg := Load("")
	assert.Equal(t, Testnet, cfg.Network)
	assert.Equal(t, 5, cfg.MaxPeers)
}

func TestNetworkMagicMatchesWireConstants(t *testing.T) {
	assert.Equal(t, wire.MagicMainnet, Mainnet.Magic())
	assert.Equal(t, wire.MagicTestnet, Testnet.Magic())
	assert.NotEqual(t, Mainnet.Magic(), Testnet.Magic())
}
