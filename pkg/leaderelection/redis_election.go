package leaderelection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethpandaops/tx-event-processor/pkg/common"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrNoLeader is returned by LeaderID when the lock is not held.
var ErrNoLeader = errors.New("no leader elected")

var (
	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)
)

// RedisElector holds a single Redis lock key. The holder renews it every
// RenewalInterval; followers retry acquisition on the same cadence.
type RedisElector struct {
	client *redis.Client
	log    logrus.FieldLogger
	config *Config
	nodeID string
	key    string

	mu          sync.RWMutex
	leader      bool
	leaderSince time.Time
	stopped     bool

	callbacksMu sync.RWMutex
	callbacks   []LeadershipCallback

	done chan struct{}
	wg   sync.WaitGroup
}

var _ Elector = (*RedisElector)(nil)

// NewRedisElector creates an elector contending for key.
func NewRedisElector(client *redis.Client, log logrus.FieldLogger, key string, config *Config) (*RedisElector, error) {
	if config == nil {
		config = &Config{}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	nodeID := config.NodeID
	if nodeID == "" {
		nodeID = uuid.NewString()
	}

	return &RedisElector{
		client: client,
		log: log.WithFields(logrus.Fields{
			"component": "leader-election",
			"node_id":   nodeID,
		}),
		config: config,
		nodeID: nodeID,
		key:    key,
		done:   make(chan struct{}),
	}, nil
}

func (e *RedisElector) Start(ctx context.Context) error {
	e.log.WithField("key", e.key).Info("Starting leader election")

	common.LeaderElectionStatus.WithLabelValues(e.nodeID).Set(0)

	e.wg.Add(1)

	go e.run(ctx)

	return nil
}

// Stop ends the election loop and releases the lock when held.
func (e *RedisElector) Stop(ctx context.Context) error {
	e.mu.Lock()

	if e.stopped {
		e.mu.Unlock()

		return nil
	}

	e.stopped = true
	e.mu.Unlock()

	e.log.Info("Stopping leader election")

	close(e.done)
	e.wg.Wait()

	if !e.IsLeader() {
		return nil
	}

	e.markFollower()

	if err := e.release(ctx); err != nil {
		common.LeaderElectionErrors.WithLabelValues(e.nodeID, "release").Inc()

		return err
	}

	e.notify(ctx, false)

	return nil
}

func (e *RedisElector) IsLeader() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.leader
}

func (e *RedisElector) NodeID() string {
	return e.nodeID
}

func (e *RedisElector) LeaderID(ctx context.Context) (string, error) {
	val, err := e.client.Get(ctx, e.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoLeader
	}

	if err != nil {
		return "", fmt.Errorf("failed to get leader id: %w", err)
	}

	return val, nil
}

func (e *RedisElector) OnLeadershipChange(callback LeadershipCallback) {
	e.callbacksMu.Lock()
	defer e.callbacksMu.Unlock()

	e.callbacks = append(e.callbacks, callback)
}

func (e *RedisElector) notify(ctx context.Context, isLeader bool) {
	e.callbacksMu.RLock()
	callbacks := make([]LeadershipCallback, len(e.callbacks))
	copy(callbacks, e.callbacks)
	e.callbacksMu.RUnlock()

	for _, cb := range callbacks {
		cb(ctx, isLeader)
	}
}

func (e *RedisElector) run(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.RenewalInterval)
	defer ticker.Stop()

	e.step(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.done:
			return
		case <-ticker.C:
			e.step(ctx)
		}
	}
}

func (e *RedisElector) step(ctx context.Context) {
	if e.IsLeader() {
		if !e.renew(ctx) {
			e.markFollower()
			e.log.Warn("Lost leadership")
			e.notify(ctx, false)
		}

		return
	}

	if e.acquire(ctx) {
		e.log.Info("Gained leadership")
		e.notify(ctx, true)
	}
}

func (e *RedisElector) acquire(ctx context.Context) bool {
	ok, err := e.client.SetNX(ctx, e.key, e.nodeID, e.config.TTL).Result()
	if err != nil {
		e.log.WithError(err).Error("Failed to acquire leadership")
		common.LeaderElectionErrors.WithLabelValues(e.nodeID, "acquire").Inc()

		return false
	}

	if !ok {
		e.log.Debug("Leadership held by another node")

		return false
	}

	e.mu.Lock()
	e.leader = true
	e.leaderSince = time.Now()
	e.mu.Unlock()

	common.LeaderElectionStatus.WithLabelValues(e.nodeID).Set(1)
	common.LeaderElectionTransitions.WithLabelValues(e.nodeID, "gained").Inc()

	return true
}

func (e *RedisElector) renew(ctx context.Context) bool {
	val, err := renewScript.Run(ctx, e.client, []string{e.key}, e.nodeID, e.config.TTL.Milliseconds()).Int64()
	if err != nil {
		e.log.WithError(err).Error("Failed to renew leadership")
		common.LeaderElectionErrors.WithLabelValues(e.nodeID, "renew").Inc()

		return false
	}

	if val != 1 {
		common.LeaderElectionErrors.WithLabelValues(e.nodeID, "renew").Inc()

		return false
	}

	return true
}

func (e *RedisElector) release(ctx context.Context) error {
	val, err := releaseScript.Run(ctx, e.client, []string{e.key}, e.nodeID).Int64()
	if err != nil {
		return fmt.Errorf("failed to release leadership: %w", err)
	}

	if val == 0 {
		e.log.Warn("Leadership lock no longer owned by this node")
	} else {
		e.log.Info("Released leadership")
	}

	return nil
}

// markFollower clears leadership and records the finished term.
func (e *RedisElector) markFollower() {
	e.mu.Lock()
	wasLeader := e.leader
	e.leader = false
	term := time.Since(e.leaderSince)
	e.mu.Unlock()

	if !wasLeader {
		return
	}

	common.LeaderElectionStatus.WithLabelValues(e.nodeID).Set(0)
	common.LeaderElectionTransitions.WithLabelValues(e.nodeID, "lost").Inc()
	common.LeaderElectionDuration.WithLabelValues(e.nodeID).Observe(term.Seconds())
}
