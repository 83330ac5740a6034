package redis

import (
	"fmt"
)

const DefaultPrefix = "tx-event-processor"

type Config struct {
	// Address is host:port or a redis:// URL.
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// Prefix namespaces every key this process writes.
	Prefix string `yaml:"prefix"`
}

func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("redis address is required")
	}

	if c.DB < 0 {
		return fmt.Errorf("redis db must not be negative")
	}

	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}

	return nil
}
