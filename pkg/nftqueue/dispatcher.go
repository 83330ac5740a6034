package nftqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/tx-event-processor/pkg/common"
	"github.com/ethpandaops/tx-event-processor/pkg/multiversx/api"
)

const DefaultMaxRetry = 3

var ErrInvalidNft = errors.New("nft identifier is required")

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher submits process-NFT jobs. It does not deduplicate: the same
// NFT may be submitted several times and workers are expected to cope.
type Dispatcher struct {
	log      logrus.FieldLogger
	enqueuer Enqueuer
	queue    string
	maxRetry int
}

func NewDispatcher(log logrus.FieldLogger, enqueuer Enqueuer, queue string, maxRetry int) *Dispatcher {
	if maxRetry == 0 {
		maxRetry = DefaultMaxRetry
	}

	return &Dispatcher{
		log:      log.WithField("component", "nftqueue"),
		enqueuer: enqueuer,
		queue:    queue,
		maxRetry: maxRetry,
	}
}

func (d *Dispatcher) Queue() string {
	return d.queue
}

// Submit hands the job to the queue and returns once it is accepted.
func (d *Dispatcher) Submit(ctx context.Context, nft *api.Nft, settings Settings) error {
	if nft == nil || nft.Identifier == "" {
		return ErrInvalidNft
	}

	reason := "default"
	if settings.ForceRefreshMetadata {
		reason = "refresh_metadata"
	}

	task, err := NewProcessNftTask(&ProcessNftPayload{
		Identifier: nft.Identifier,
		Nft:        nft,
		Settings:   settings,
	})
	if err != nil {
		return fmt.Errorf("failed to create process nft task: %w", err)
	}

	info, err := d.enqueuer.EnqueueContext(ctx, task, asynq.Queue(d.queue), asynq.MaxRetry(d.maxRetry))
	if err != nil {
		common.NftJobsEnqueued.WithLabelValues(reason, "error").Inc()

		return fmt.Errorf("failed to enqueue process nft task for %s: %w", nft.Identifier, err)
	}

	common.NftJobsEnqueued.WithLabelValues(reason, "success").Inc()

	d.log.WithFields(logrus.Fields{
		"identifier": nft.Identifier,
		"task_id":    info.ID,
		"reason":     reason,
	}).Debug("Enqueued process nft task")

	return nil
}
