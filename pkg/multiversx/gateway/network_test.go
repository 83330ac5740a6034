package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/tx-event-processor/internal/testutil"
	"github.com/ethpandaops/tx-event-processor/pkg/multiversx"
)

type staticShardCounter struct {
	count uint32
	err   error
}

func (s *staticShardCounter) NumShards(_ context.Context) (uint32, error) {
	return s.count, s.err
}

func TestNetworkService_ShardsIncludeMetachain(t *testing.T) {
	svc := NewNetworkService(testutil.NewLogger(t), &staticShardCounter{count: 3}, DefaultRefreshInterval)

	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(svc.Stop)

	shards, err := svc.Shards(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2, multiversx.MetachainShardID}, shards)
}

func TestNetworkService_ShardsBeforeResolve(t *testing.T) {
	svc := NewNetworkService(testutil.NewLogger(t), &staticShardCounter{err: errors.New("down")}, DefaultRefreshInterval)

	_, err := svc.Shards(context.Background())
	assert.ErrorIs(t, err, ErrShardsUnavailable)
}

func TestNetworkService_StartGivesUpWhenContextDone(t *testing.T) {
	svc := NewNetworkService(testutil.NewLogger(t), &staticShardCounter{err: errors.New("down")}, DefaultRefreshInterval)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, svc.Start(ctx))
}

func TestNetworkService_RefreshKeepsPreviousOnError(t *testing.T) {
	counter := &staticShardCounter{count: 2}
	svc := NewNetworkService(testutil.NewLogger(t), counter, DefaultRefreshInterval)

	require.NoError(t, svc.Refresh(context.Background()))

	counter.err = errors.New("down")
	require.Error(t, svc.Refresh(context.Background()))

	shards, err := svc.Shards(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, multiversx.MetachainShardID}, shards)
}
