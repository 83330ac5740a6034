package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/tx-event-processor/pkg/cache"
)

func TestLoadServerConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, os.WriteFile(path, []byte(`
logging: debug
redis:
  address: localhost:6379
  prefix: api
gateway:
  url: https://gateway.multiversx.com
processor:
  interval: 2s
  maxLookBehind: 50
  processNfts: true
  leaderElection:
    enabled: false
api:
  url: https://api.multiversx.com
`), 0o600))

	config, err := loadServerConfigFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", config.LoggingLevel)
	assert.Equal(t, ":9090", config.MetricsAddr)
	assert.Equal(t, 10*time.Second, config.ShutdownTimeout)
	assert.Equal(t, "api", config.Redis.Prefix)
	assert.Equal(t, 2*time.Second, config.Processor.Interval)
	assert.Equal(t, uint64(50), config.Processor.MaxLookBehind)
	assert.True(t, config.Processor.ProcessNfts)
	assert.False(t, config.Processor.LeaderElection.IsEnabled())

	require.NoError(t, config.Validate())
}

// Struct tags only default the top-level scalars; package configs are
// defaulted by Validate.
func TestLoadServerConfigPackageDefaultsFromValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, os.WriteFile(path, []byte(`
redis:
  address: localhost:6379
gateway:
  url: https://gateway.multiversx.com
cache:
  localSize: 500
`), 0o600))

	config, err := loadServerConfigFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "info", config.LoggingLevel)
	assert.Empty(t, config.Cache.Channel)
	assert.Zero(t, config.Cache.NftTTL)

	require.NoError(t, config.Validate())

	assert.Equal(t, cache.DefaultChannel, config.Cache.Channel)
	assert.Equal(t, cache.DefaultLocalTTL, config.Cache.LocalTTL)
	assert.Equal(t, cache.DefaultNftTTL, config.Cache.NftTTL)
	assert.Equal(t, 500, config.Cache.LocalSize)
}

func TestLoadServerConfigMissingFile(t *testing.T) {
	_, err := loadServerConfigFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
