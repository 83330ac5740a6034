package nftqueue

import (
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/ethpandaops/tx-event-processor/pkg/common"
)

// QueueInspector is satisfied by *asynq.Inspector.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// QueueStats is a snapshot of the process-NFT queue.
type QueueStats struct {
	Queue    string `json:"queue"`
	Size     int    `json:"size"`
	Pending  int    `json:"pending"`
	Active   int    `json:"active"`
	Retry    int    `json:"retry"`
	Archived int    `json:"archived"`
}

// CollectQueueStats reads the queue state and records the depth metrics.
func CollectQueueStats(inspector QueueInspector, queue string) (*QueueStats, error) {
	info, err := inspector.GetQueueInfo(queue)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue info for %s: %w", queue, err)
	}

	common.QueueDepth.WithLabelValues(queue).Set(float64(info.Size))
	common.QueueArchivedItems.WithLabelValues(queue).Set(float64(info.Archived))

	return &QueueStats{
		Queue:    queue,
		Size:     info.Size,
		Pending:  info.Pending,
		Active:   info.Active,
		Retry:    info.Retry,
		Archived: info.Archived,
	}, nil
}
