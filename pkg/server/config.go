package server

import (
	"fmt"
	"time"

	"github.com/ethpandaops/tx-event-processor/pkg/cache"
	"github.com/ethpandaops/tx-event-processor/pkg/journal"
	"github.com/ethpandaops/tx-event-processor/pkg/multiversx/api"
	"github.com/ethpandaops/tx-event-processor/pkg/multiversx/gateway"
	"github.com/ethpandaops/tx-event-processor/pkg/nftqueue"
	"github.com/ethpandaops/tx-event-processor/pkg/processor"
	"github.com/ethpandaops/tx-event-processor/pkg/redis"
	"github.com/ethpandaops/tx-event-processor/pkg/state"
)

type Config struct {
	// MetricsAddr is the address to listen on for metrics.
	MetricsAddr string `yaml:"metricsAddr" default:":9090"`
	// HealthCheckAddr is the address to listen on for healthcheck.
	HealthCheckAddr *string `yaml:"healthCheckAddr"`
	// PProfAddr is the address to listen on for pprof.
	PProfAddr *string `yaml:"pprofAddr"`
	// APIAddr is the address to serve the operator API on.
	APIAddr *string `yaml:"apiAddr"`
	// LoggingLevel is the logging level to use.
	LoggingLevel string `yaml:"logging" default:"info"`
	// Gateway is the MultiversX gateway (proxy) used for ingestion.
	Gateway gateway.Config `yaml:"gateway"`
	// API is the indexed MultiversX API used by NFT handling.
	API api.Config `yaml:"api"`
	// Redis is the redis configuration.
	Redis *redis.Config `yaml:"redis"`
	// StateManager is the cursor store configuration.
	StateManager state.Config `yaml:"stateManager"`
	// Cache is the invalidation cache configuration.
	Cache cache.Config `yaml:"cache"`
	// NftQueue is the process-NFT job queue configuration.
	NftQueue nftqueue.Config `yaml:"nftQueue"`
	// Journal optionally records detected events in ClickHouse.
	Journal journal.Config `yaml:"journal"`
	// Processor is the transaction processor configuration.
	Processor processor.Config `yaml:"processor"`
	// MemoryMonitor reports runtime memory usage.
	MemoryMonitor MemoryMonitorConfig `yaml:"memoryMonitor"`
	// ShutdownTimeout is the timeout for shutting down the server.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"10s"`
}

func (c *Config) Validate() error {
	if c.Redis == nil {
		return fmt.Errorf("redis configuration is required")
	}

	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("invalid redis configuration: %w", err)
	}

	if err := c.Gateway.Validate(); err != nil {
		return fmt.Errorf("invalid gateway configuration: %w", err)
	}

	if err := c.Processor.Validate(); err != nil {
		return fmt.Errorf("invalid processor configuration: %w", err)
	}

	if c.Processor.ProcessNfts || c.API.URL != "" {
		if err := c.API.Validate(); err != nil {
			return fmt.Errorf("invalid api configuration: %w", err)
		}
	}

	if err := c.StateManager.Validate(); err != nil {
		return fmt.Errorf("invalid state manager configuration: %w", err)
	}

	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("invalid cache configuration: %w", err)
	}

	if err := c.NftQueue.Validate(); err != nil {
		return fmt.Errorf("invalid nft queue configuration: %w", err)
	}

	if err := c.Journal.Validate(); err != nil {
		return fmt.Errorf("invalid journal configuration: %w", err)
	}

	return nil
}
