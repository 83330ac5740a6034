package clickhouse

import (
	"fmt"
	"time"
)

// Config holds configuration for the ch-go native client.
type Config struct {
	// Native protocol address, e.g. "localhost:9000"
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	MaxConns    int32         `yaml:"maxConns"`
	MinConns    int32         `yaml:"minConns"`
	DialTimeout time.Duration `yaml:"dialTimeout"`

	// lz4, zstd or none
	Compression string `yaml:"compression"`

	MaxRetries     int           `yaml:"maxRetries"`
	RetryBaseDelay time.Duration `yaml:"retryBaseDelay"`
	RetryMaxDelay  time.Duration `yaml:"retryMaxDelay"`

	// QueryTimeout applies per attempt
	QueryTimeout time.Duration `yaml:"queryTimeout"`
}

func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("maxRetries must not be negative")
	}

	switch c.Compression {
	case "", "lz4", "zstd", "none":
	default:
		return fmt.Errorf("unknown compression %q", c.Compression)
	}

	return nil
}

// SetDefaults sets default values for unset fields.
func (c *Config) SetDefaults() {
	if c.Database == "" {
		c.Database = "default"
	}

	if c.MaxConns == 0 {
		c.MaxConns = 4
	}

	if c.MinConns == 0 {
		c.MinConns = 1
	}

	if c.DialTimeout == 0 {
		c.DialTimeout = 10 * time.Second
	}

	if c.Compression == "" {
		c.Compression = "lz4"
	}

	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}

	if c.RetryBaseDelay == 0 {
		c.RetryBaseDelay = 100 * time.Millisecond
	}

	if c.RetryMaxDelay == 0 {
		c.RetryMaxDelay = 10 * time.Second
	}

	if c.QueryTimeout == 0 {
		c.QueryTimeout = 30 * time.Second
	}
}
