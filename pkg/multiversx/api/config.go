package api

import (
	"fmt"
	"time"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultMaxRetryElapsed = 10 * time.Second
)

// Config holds the indexed read API connection settings.
type Config struct {
	// URL is the base URL of the MultiversX API, e.g. https://api.multiversx.com
	URL string `yaml:"url"`
	// Timeout bounds a single HTTP request.
	Timeout time.Duration `yaml:"timeout"`
	// MaxRetryElapsed bounds the total time spent retrying transient failures.
	MaxRetryElapsed time.Duration `yaml:"maxRetryElapsed"`
}

func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("api url is required")
	}

	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}

	if c.MaxRetryElapsed == 0 {
		c.MaxRetryElapsed = DefaultMaxRetryElapsed
	}

	return nil
}
