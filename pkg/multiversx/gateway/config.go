package gateway

import (
	"fmt"
	"time"
)

const (
	DefaultTimeout           = 30 * time.Second
	DefaultRequestsPerSecond = 20
	DefaultBurst             = 10
	DefaultRefreshInterval   = "5m"
)

// Config holds the gateway (proxy) connection settings.
type Config struct {
	// URL is the base URL of the MultiversX gateway, e.g. https://gateway.multiversx.com
	URL string `yaml:"url"`
	// Timeout bounds every HTTP request.
	Timeout time.Duration `yaml:"timeout"`
	// RequestsPerSecond limits the outgoing request rate. Burst is the bucket size.
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
	// RefreshInterval is how often the shard topology is refreshed (gocron syntax).
	RefreshInterval string `yaml:"refreshInterval"`
}

func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("gateway url is required")
	}

	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}

	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = DefaultRequestsPerSecond
	}

	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("gateway requestsPerSecond must be positive")
	}

	if c.Burst == 0 {
		c.Burst = DefaultBurst
	}

	if c.RefreshInterval == "" {
		c.RefreshInterval = DefaultRefreshInterval
	}

	return nil
}
