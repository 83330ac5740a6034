package nftqueue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/ethpandaops/tx-event-processor/pkg/multiversx/api"
)

// ProcessNftTaskType is consumed by the thumbnail and metadata workers.
const ProcessNftTaskType = "process_nft"

// Settings control what the worker refreshes for an NFT.
type Settings struct {
	ForceRefreshMedia     bool `json:"forceRefreshMedia"`
	ForceRefreshMetadata  bool `json:"forceRefreshMetadata"`
	ForceRefreshThumbnail bool `json:"forceRefreshThumbnail"`
	SkipRefreshThumbnail  bool `json:"skipRefreshThumbnail"`
}

// ProcessNftPayload is the job handed to the worker queue.
type ProcessNftPayload struct {
	Identifier string   `json:"identifier"`
	Nft        *api.Nft `json:"nft"`
	Settings   Settings `json:"settings"`
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (p *ProcessNftPayload) MarshalBinary() ([]byte, error) {
	return json.Marshal(p)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (p *ProcessNftPayload) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, p)
}

// NewProcessNftTask creates a new process-NFT task.
func NewProcessNftTask(payload *ProcessNftPayload) (*asynq.Task, error) {
	data, err := payload.MarshalBinary()
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(ProcessNftTaskType, data), nil
}

// ProcessQueue returns the process-NFT queue name under the given prefix.
func ProcessQueue(prefix string) string {
	if prefix == "" {
		return "nft:process"
	}

	return fmt.Sprintf("%s:nft:process", prefix)
}
