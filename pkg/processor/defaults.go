package processor

import "time"

// Default configuration values for the transaction processor.
const (
	// DefaultInterval is the cadence of the ingestion trigger.
	DefaultInterval = 1 * time.Second

	// DefaultMaxLookBehind bounds how far behind the chain tip a shard may restart.
	DefaultMaxLookBehind = 100

	// DefaultSettlingDelay is how long NFT create handling waits for the
	// indexed read API to catch up before looking up the transaction.
	DefaultSettlingDelay = 5 * time.Second

	// DefaultQueueMonitorInterval is how often the process-NFT queue depth is sampled.
	DefaultQueueMonitorInterval = 30 * time.Second

	// DefaultShutdownTimeout bounds how long Stop waits for spawned NFT handlers.
	DefaultShutdownTimeout = 30 * time.Second
)
