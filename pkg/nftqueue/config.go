package nftqueue

import "fmt"

type Config struct {
	// Queue overrides the default "<prefix>:nft:process" queue name.
	Queue    string `yaml:"queue"`
	MaxRetry int    `yaml:"maxRetry"`
}

func (c *Config) Validate() error {
	if c.MaxRetry < 0 {
		return fmt.Errorf("maxRetry must not be negative")
	}

	if c.MaxRetry == 0 {
		c.MaxRetry = DefaultMaxRetry
	}

	return nil
}

// QueueName resolves the queue under the redis prefix.
func (c *Config) QueueName(prefix string) string {
	if c.Queue != "" {
		return c.Queue
	}

	return ProcessQueue(prefix)
}
