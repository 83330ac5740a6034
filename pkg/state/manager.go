package state

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/tx-event-processor/pkg/common"
)

// Manager reads and commits per-shard cursors.
type Manager struct {
	log   logrus.FieldLogger
	store Store

	mu      sync.RWMutex
	cursors map[uint32]uint64
}

// NewManager builds a manager on the configured backend. redisClient and
// prefix are only used by the redis backend.
func NewManager(log logrus.FieldLogger, config *Config, redisClient *redis.Client, prefix string) (*Manager, error) {
	var store Store

	switch config.Backend {
	case BackendPostgres:
		pg, err := OpenPostgresStore(&config.Postgres)
		if err != nil {
			return nil, err
		}

		store = pg
	default:
		if redisClient == nil {
			return nil, fmt.Errorf("redis client is required for the %s backend", BackendRedis)
		}

		store = NewRedisStore(redisClient, prefix, *config.TTL)
	}

	return NewManagerWithStore(log, store), nil
}

func NewManagerWithStore(log logrus.FieldLogger, store Store) *Manager {
	return &Manager{
		log:     log.WithField("component", "state"),
		store:   store,
		cursors: make(map[uint32]uint64),
	}
}

// Start waits for the store to become reachable.
func (s *Manager) Start(ctx context.Context) error {
	if err := s.startStoreWithRetry(ctx); err != nil {
		return fmt.Errorf("failed to start cursor store: %w", err)
	}

	return nil
}

// startStoreWithRetry pings the store until it answers, with capped
// exponential backoff and no overall limit.
func (s *Manager) startStoreWithRetry(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0

	attempt := 0

	err := backoff.RetryNotify(func() error {
		attempt++

		return s.store.Ping(ctx)
	}, backoff.WithContext(b, ctx), func(err error, delay time.Duration) {
		s.log.WithFields(logrus.Fields{
			"attempt": attempt,
			"delay":   delay,
			"error":   err,
		}).Warn("Failed to reach cursor store, retrying...")
	})
	if err != nil {
		return err
	}

	if attempt > 1 {
		s.log.Info("Successfully connected to cursor store after retries")
	}

	return nil
}

func (s *Manager) Stop(_ context.Context) error {
	return s.store.Close()
}

// Get returns the persisted cursor of a shard.
func (s *Manager) Get(ctx context.Context, shard uint32) (uint64, bool, error) {
	nonce, found, err := s.store.Get(ctx, shard)
	if err != nil {
		return 0, false, err
	}

	if found {
		s.remember(shard, nonce)
	}

	return nonce, found, nil
}

// Set commits a shard's cursor. A nonce lower than the committed one is
// rejected with ErrCursorBackwards and leaves the cursor untouched.
func (s *Manager) Set(ctx context.Context, shard uint32, nonce uint64) error {
	s.mu.RLock()
	current, known := s.cursors[shard]
	s.mu.RUnlock()

	if known && nonce < current {
		return fmt.Errorf("shard %d at %d, refusing %d: %w", shard, current, nonce, ErrCursorBackwards)
	}

	if err := s.store.Set(ctx, shard, nonce); err != nil {
		if errors.Is(err, ErrCursorBackwards) {
			return fmt.Errorf("shard %d refusing %d: %w", shard, nonce, err)
		}

		return err
	}

	s.remember(shard, nonce)

	common.LastProcessedNonce.WithLabelValues(strconv.FormatUint(uint64(shard), 10)).Set(float64(nonce))

	return nil
}

func (s *Manager) remember(shard uint32, nonce uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.cursors[shard]; !ok || nonce > current {
		s.cursors[shard] = nonce
	}
}

// Cursors returns the cursors seen by this process, ordered by shard.
func (s *Manager) Cursors() []Cursor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Cursor, 0, len(s.cursors))
	for shard, nonce := range s.cursors {
		out = append(out, Cursor{ShardID: shard, Nonce: nonce})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ShardID < out[j].ShardID
	})

	return out
}
