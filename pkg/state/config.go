package state

import (
	"fmt"
	"time"
)

const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"

	// DefaultTTL keeps cursors for a year without activity.
	DefaultTTL = 365 * 24 * time.Hour

	DefaultPostgresTable = "transaction_processor_cursors"
)

type PostgresConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

type Config struct {
	// Backend selects where cursors are persisted: redis (default) or postgres.
	Backend string `yaml:"backend"`
	// TTL is the lifetime of a Redis cursor after its last update. 0 disables expiry.
	TTL *time.Duration `yaml:"ttl"`
	// Postgres is required when backend is postgres.
	Postgres PostgresConfig `yaml:"postgres"`
}

func (c *Config) Validate() error {
	if c.Backend == "" {
		c.Backend = BackendRedis
	}

	if c.TTL == nil {
		ttl := DefaultTTL
		c.TTL = &ttl
	}

	switch c.Backend {
	case BackendRedis:
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required when backend is %s", BackendPostgres)
		}

		if c.Postgres.Table == "" {
			c.Postgres.Table = DefaultPostgresTable
		}
	default:
		return fmt.Errorf("invalid backend %s, must be '%s' or '%s'", c.Backend, BackendRedis, BackendPostgres)
	}

	return nil
}
