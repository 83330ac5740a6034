package journal

import (
	"fmt"
	"time"

	"github.com/ethpandaops/tx-event-processor/pkg/clickhouse"
)

const DefaultTable = "transaction_events"

// Config controls the ClickHouse event journal.
type Config struct {
	Enabled       bool              `yaml:"enabled"`
	Table         string            `yaml:"table"`
	MaxRows       int               `yaml:"maxRows"`
	MaxPending    int               `yaml:"maxPending"`
	FlushInterval time.Duration     `yaml:"flushInterval"`
	ClickHouse    clickhouse.Config `yaml:"clickhouse"`
}

func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Table == "" {
		c.Table = DefaultTable
	}

	if err := c.ClickHouse.Validate(); err != nil {
		return fmt.Errorf("invalid clickhouse config: %w", err)
	}

	return nil
}
