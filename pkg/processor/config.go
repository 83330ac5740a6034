package processor

import (
	"fmt"
	"time"

	"github.com/ethpandaops/tx-event-processor/pkg/leaderelection"
)

// Config holds the transaction processor configuration.
type Config struct {
	// Interval between ingestion passes
	Interval time.Duration `yaml:"interval"`

	// MaxLookBehind is the number of block nonces a shard may lag behind the
	// latest nonce before older blocks are skipped
	MaxLookBehind uint64 `yaml:"maxLookBehind"`

	// ProcessNfts enables process-NFT job submission for created and updated NFTs
	ProcessNfts bool `yaml:"processNfts"`

	// SettlingDelay before NFT create handling queries the read API
	SettlingDelay time.Duration `yaml:"settlingDelay"`

	// QueueMonitorInterval for process-NFT queue depth metrics. 0 uses the default.
	QueueMonitorInterval time.Duration `yaml:"queueMonitorInterval"`

	// ShutdownTimeout bounds the wait for in-flight NFT handlers on stop
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// Leader election configuration
	LeaderElection leaderelection.Config `yaml:"leaderElection"`
}

func (c *Config) Validate() error {
	if c.Interval < 0 {
		return fmt.Errorf("interval must not be negative")
	}

	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}

	if c.MaxLookBehind == 0 {
		c.MaxLookBehind = DefaultMaxLookBehind
	}

	if c.SettlingDelay == 0 {
		c.SettlingDelay = DefaultSettlingDelay
	}

	if c.QueueMonitorInterval == 0 {
		c.QueueMonitorInterval = DefaultQueueMonitorInterval
	}

	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}

	if err := c.LeaderElection.Validate(); err != nil {
		return fmt.Errorf("leader election config validation failed: %w", err)
	}

	return nil
}
