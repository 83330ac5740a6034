package leaderelection

import (
	"context"
	"fmt"
	"time"
)

// LeadershipCallback is invoked synchronously when leadership status changes.
// Implementations should return quickly to avoid delaying renewal.
type LeadershipCallback func(ctx context.Context, isLeader bool)

// Elector decides which fleet member drives transaction processing.
type Elector interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsLeader() bool
	NodeID() string
	// OnLeadershipChange registers a callback. Callbacks run in registration order.
	OnLeadershipChange(callback LeadershipCallback)
	// LeaderID returns the node currently holding the lock.
	LeaderID(ctx context.Context) (string, error)
}

const (
	DefaultTTL             = 10 * time.Second
	DefaultRenewalInterval = 3 * time.Second
)

// Config holds configuration for leader election.
type Config struct {
	// Enabled turns election on. When off the process always acts as leader.
	Enabled *bool `yaml:"enabled"`
	// TTL is the lifetime of the leader lock.
	TTL time.Duration `yaml:"ttl"`
	// RenewalInterval is how often the lock is renewed. Must be below TTL.
	RenewalInterval time.Duration `yaml:"renewalInterval"`
	// NodeID identifies this process. Generated when empty.
	NodeID string `yaml:"nodeId"`
}

func (c *Config) Validate() error {
	if c.Enabled == nil {
		enabled := true
		c.Enabled = &enabled
	}

	if c.TTL == 0 {
		c.TTL = DefaultTTL
	}

	if c.RenewalInterval == 0 {
		c.RenewalInterval = DefaultRenewalInterval
	}

	if c.RenewalInterval >= c.TTL {
		return fmt.Errorf("leader election renewal interval must be less than TTL")
	}

	return nil
}

func (c *Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}
