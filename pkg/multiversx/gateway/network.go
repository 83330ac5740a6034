package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/tx-event-processor/pkg/multiversx"
)

// ErrShardsUnavailable is returned while the shard topology has not been resolved.
var ErrShardsUnavailable = errors.New("shard topology not resolved yet")

type shardCounter interface {
	NumShards(ctx context.Context) (uint32, error)
}

// NetworkService keeps the list of shards to poll, metachain included.
type NetworkService struct {
	log    logrus.FieldLogger
	client shardCounter
	every  string

	scheduler *gocron.Scheduler

	mu     sync.RWMutex
	shards []uint32
}

func NewNetworkService(log logrus.FieldLogger, client shardCounter, refreshInterval string) *NetworkService {
	return &NetworkService{
		log:    log.WithField("component", "gateway/network"),
		client: client,
		every:  refreshInterval,
	}
}

// Start resolves the shard topology, retrying with backoff, then refreshes it periodically.
func (n *NetworkService) Start(ctx context.Context) error {
	n.log.Info("Starting network service")

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 2 * time.Minute

	operation := func() error {
		if err := n.Refresh(ctx); err != nil {
			n.log.WithError(err).Warn("Failed to resolve shard topology, will retry")

			return err
		}

		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("failed to resolve shard topology: %w", err)
	}

	n.scheduler = gocron.NewScheduler(time.Local)

	if _, err := n.scheduler.Every(n.every).Do(func() {
		refreshCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := n.Refresh(refreshCtx); err != nil {
			n.log.WithError(err).Warn("Failed to refresh shard topology")
		}
	}); err != nil {
		return err
	}

	n.scheduler.StartAsync()

	n.log.WithField("shards", n.snapshot()).Info("Network service started")

	return nil
}

func (n *NetworkService) Stop() {
	if n.scheduler != nil {
		n.scheduler.Stop()
	}
}

// Refresh reloads the shard count from the gateway.
func (n *NetworkService) Refresh(ctx context.Context) error {
	count, err := n.client.NumShards(ctx)
	if err != nil {
		return err
	}

	shards := make([]uint32, 0, count+1)
	for i := uint32(0); i < count; i++ {
		shards = append(shards, i)
	}

	shards = append(shards, multiversx.MetachainShardID)

	n.mu.Lock()
	n.shards = shards
	n.mu.Unlock()

	return nil
}

// Shards returns the shards to poll.
func (n *NetworkService) Shards(_ context.Context) ([]uint32, error) {
	shards := n.snapshot()
	if len(shards) == 0 {
		return nil, ErrShardsUnavailable
	}

	return shards, nil
}

func (n *NetworkService) snapshot() []uint32 {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]uint32, len(n.shards))
	copy(out, n.shards)

	return out
}
