package nftqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/tx-event-processor/internal/testutil"
	"github.com/ethpandaops/tx-event-processor/pkg/multiversx/api"
)

type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task, opts)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	info, _ := args.Get(0).(*asynq.TaskInfo)

	return info, args.Error(1)
}

func TestDispatcher_Submit(t *testing.T) {
	enqueuer := &MockEnqueuer{}
	dispatcher := NewDispatcher(testutil.NewLogger(t), enqueuer, ProcessQueue("api"), 0)

	nft := &api.Nft{Identifier: "COL-abcdef-01", Collection: "COL-abcdef"}

	enqueuer.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		if task.Type() != ProcessNftTaskType {
			return false
		}

		var payload ProcessNftPayload
		if err := payload.UnmarshalBinary(task.Payload()); err != nil {
			return false
		}

		return payload.Identifier == "COL-abcdef-01" && payload.Settings.ForceRefreshMetadata
	}), mock.Anything).Return(&asynq.TaskInfo{ID: "t1"}, nil).Once()

	require.NoError(t, dispatcher.Submit(context.Background(), nft, Settings{ForceRefreshMetadata: true}))
	enqueuer.AssertExpectations(t)
}

func TestDispatcher_RejectsMissingIdentifier(t *testing.T) {
	dispatcher := NewDispatcher(testutil.NewLogger(t), &MockEnqueuer{}, ProcessQueue("api"), 0)

	assert.ErrorIs(t, dispatcher.Submit(context.Background(), nil, Settings{}), ErrInvalidNft)
	assert.ErrorIs(t, dispatcher.Submit(context.Background(), &api.Nft{}, Settings{}), ErrInvalidNft)
}

func TestDispatcher_EnqueueError(t *testing.T) {
	enqueuer := &MockEnqueuer{}
	enqueuer.On("EnqueueContext", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("redis down"))

	dispatcher := NewDispatcher(testutil.NewLogger(t), enqueuer, ProcessQueue("api"), 0)

	err := dispatcher.Submit(context.Background(), &api.Nft{Identifier: "COL-abcdef-01"}, Settings{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COL-abcdef-01")
}

// Submitting the same NFT twice leaves two independent tasks in the queue
// and does not fail, since reprocessing a nonce replays its submissions.
func TestDispatcher_DuplicateSubmissionsAgainstRedis(t *testing.T) {
	mr := testutil.NewMiniredis(t)

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})

	queue := ProcessQueue("api")
	dispatcher := NewDispatcher(testutil.NewLogger(t), client, queue, 0)
	nft := &api.Nft{Identifier: "COL-abcdef-01"}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, dispatcher.Submit(ctx, nft, Settings{}))
	require.NoError(t, dispatcher.Submit(ctx, nft, Settings{}))

	pending, err := mr.List("asynq:{" + queue + "}:pending")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.NotEqual(t, pending[0], pending[1])
}

type staticInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s *staticInspector) GetQueueInfo(_ string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestCollectQueueStats(t *testing.T) {
	stats, err := CollectQueueStats(&staticInspector{info: &asynq.QueueInfo{
		Size:     7,
		Pending:  4,
		Active:   2,
		Retry:    1,
		Archived: 3,
	}}, "api:nft:process")
	require.NoError(t, err)

	assert.Equal(t, &QueueStats{
		Queue:    "api:nft:process",
		Size:     7,
		Pending:  4,
		Active:   2,
		Retry:    1,
		Archived: 3,
	}, stats)

	_, err = CollectQueueStats(&staticInspector{err: errors.New("boom")}, "api:nft:process")
	assert.Error(t, err)
}

func TestProcessQueue(t *testing.T) {
	assert.Equal(t, "api:nft:process", ProcessQueue("api"))
	assert.Equal(t, "nft:process", ProcessQueue(""))
}

func TestConfig(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultMaxRetry, cfg.MaxRetry)
	assert.Equal(t, "api:nft:process", cfg.QueueName("api"))

	cfg.Queue = "custom"
	assert.Equal(t, "custom", cfg.QueueName("api"))

	assert.Error(t, (&Config{MaxRetry: -1}).Validate())
}
