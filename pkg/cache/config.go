package cache

import (
	"fmt"
	"time"
)

const (
	DefaultChannel   = "deleteCacheKeys"
	DefaultLocalSize = 10000
	DefaultLocalTTL  = 30 * time.Second
	DefaultNftTTL    = 10 * time.Minute
)

type Config struct {
	// Channel is the pub/sub channel invalidations are broadcast on.
	Channel string `yaml:"channel"`
	// LocalSize is the maximum number of entries in the in-process cache.
	LocalSize int `yaml:"localSize"`
	// LocalTTL is the lifetime of in-process cache entries.
	LocalTTL time.Duration `yaml:"localTtl"`
	// KeyPrefix namespaces shared cache keys. Empty matches the API fleet.
	KeyPrefix string `yaml:"keyPrefix"`
	// NftTTL is the lifetime of NFTs the processor caches in the shared cache.
	NftTTL time.Duration `yaml:"nftTtl"`
	// Subscribe enables eviction of local entries on fleet broadcasts.
	Subscribe *bool `yaml:"subscribe"`
}

func (c *Config) Validate() error {
	if c.Channel == "" {
		c.Channel = DefaultChannel
	}

	if c.LocalSize == 0 {
		c.LocalSize = DefaultLocalSize
	}

	if c.LocalSize < 0 {
		return fmt.Errorf("cache localSize must be positive")
	}

	if c.LocalTTL == 0 {
		c.LocalTTL = DefaultLocalTTL
	}

	if c.NftTTL == 0 {
		c.NftTTL = DefaultNftTTL
	}

	if c.Subscribe == nil {
		enabled := true
		c.Subscribe = &enabled
	}

	return nil
}
