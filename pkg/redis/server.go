package redis

import (
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Options resolves the connection options from configuration.
func Options(config *Config) (*redis.Options, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid redis config: %w", err)
	}

	if strings.HasPrefix(config.Address, "redis://") || strings.HasPrefix(config.Address, "rediss://") {
		opts, err := redis.ParseURL(config.Address)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}

		if config.Password != "" {
			opts.Password = config.Password
		}

		return opts, nil
	}

	return &redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
	}, nil
}

// New creates a new Redis client from configuration
func New(config *Config) (*redis.Client, error) {
	opts, err := Options(config)
	if err != nil {
		return nil, err
	}

	return redis.NewClient(opts), nil
}

// AsynqOpt returns the queue connection for the same Redis instance.
func AsynqOpt(config *Config) (asynq.RedisClientOpt, error) {
	opts, err := Options(config)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	return asynq.RedisClientOpt{
		Network:   opts.Network,
		Addr:      opts.Addr,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}, nil
}
