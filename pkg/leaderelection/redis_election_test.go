package leaderelection_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethpandaops/tx-event-processor/internal/testutil"
	"github.com/ethpandaops/tx-event-processor/pkg/leaderelection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "tx-event-processor:leader"

func fastConfig(nodeID string) *leaderelection.Config {
	return &leaderelection.Config{
		TTL:             time.Second,
		RenewalInterval: 50 * time.Millisecond,
		NodeID:          nodeID,
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := &leaderelection.Config{}
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.IsEnabled())
	assert.Equal(t, leaderelection.DefaultTTL, cfg.TTL)
	assert.Equal(t, leaderelection.DefaultRenewalInterval, cfg.RenewalInterval)

	bad := &leaderelection.Config{TTL: time.Second, RenewalInterval: 2 * time.Second}
	assert.Error(t, bad.Validate())
}

func TestNewRedisElectorGeneratesNodeID(t *testing.T) {
	client, _ := testutil.NewMiniredisClient(t)

	a, err := leaderelection.NewRedisElector(client, testutil.NewLogger(t), testKey, nil)
	require.NoError(t, err)

	b, err := leaderelection.NewRedisElector(client, testutil.NewLogger(t), testKey, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, a.NodeID())
	assert.NotEqual(t, a.NodeID(), b.NodeID())
}

func TestSingleNodeBecomesLeader(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, _ := testutil.NewMiniredisClient(t)

	e, err := leaderelection.NewRedisElector(client, testutil.NewLogger(t), testKey, fastConfig("node-1"))
	require.NoError(t, err)

	var gained atomic.Bool

	e.OnLeadershipChange(func(_ context.Context, isLeader bool) {
		gained.Store(isLeader)
	})

	require.NoError(t, e.Start(ctx))

	assert.Eventually(t, gained.Load, 2*time.Second, 10*time.Millisecond)
	assert.True(t, e.IsLeader())

	id, err := e.LeaderID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "node-1", id)

	require.NoError(t, e.Stop(ctx))
	assert.False(t, e.IsLeader())
	assert.False(t, gained.Load())

	_, err = e.LeaderID(ctx)
	assert.ErrorIs(t, err, leaderelection.ErrNoLeader)
}

func TestOnlyOneLeader(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, _ := testutil.NewMiniredisClient(t)

	first, err := leaderelection.NewRedisElector(client, testutil.NewLogger(t), testKey, fastConfig("node-1"))
	require.NoError(t, err)

	second, err := leaderelection.NewRedisElector(client, testutil.NewLogger(t), testKey, fastConfig("node-2"))
	require.NoError(t, err)

	require.NoError(t, first.Start(ctx))
	assert.Eventually(t, first.IsLeader, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, second.Start(ctx))
	time.Sleep(200 * time.Millisecond)
	assert.False(t, second.IsLeader())

	// Releasing the lock hands leadership over.
	require.NoError(t, first.Stop(ctx))
	assert.Eventually(t, second.IsLeader, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, second.Stop(ctx))
}

func TestLeadershipLostWhenLockTaken(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, _ := testutil.NewMiniredisClient(t)

	e, err := leaderelection.NewRedisElector(client, testutil.NewLogger(t), testKey, fastConfig("node-1"))
	require.NoError(t, err)

	var transitions atomic.Int32

	e.OnLeadershipChange(func(context.Context, bool) {
		transitions.Add(1)
	})

	require.NoError(t, e.Start(ctx))
	assert.Eventually(t, e.IsLeader, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, client.Set(ctx, testKey, "intruder", time.Minute).Err())

	assert.Eventually(t, func() bool { return !e.IsLeader() }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(2), transitions.Load())

	require.NoError(t, e.Stop(ctx))

	id, err := e.LeaderID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "intruder", id)
}

func TestStopIsIdempotent(t *testing.T) {
	ctx := context.Background()
	client, _ := testutil.NewMiniredisClient(t)

	e, err := leaderelection.NewRedisElector(client, testutil.NewLogger(t), testKey, fastConfig(""))
	require.NoError(t, err)

	require.NoError(t, e.Start(ctx))
	require.NoError(t, e.Stop(ctx))
	require.NoError(t, e.Stop(ctx))
}
