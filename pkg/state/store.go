package state

import (
	"context"
	"errors"
)

// ErrCursorBackwards is returned when a write would move a cursor back.
var ErrCursorBackwards = errors.New("cursor cannot move backwards")

// Cursor is the last processed block nonce of a shard.
type Cursor struct {
	ShardID uint32 `json:"shard_id"`
	Nonce   uint64 `json:"nonce"`
}

// Store persists per-shard cursors.
type Store interface {
	Ping(ctx context.Context) error
	// Get returns the persisted nonce, or found=false if the shard was never processed.
	Get(ctx context.Context, shard uint32) (nonce uint64, found bool, err error)
	// Set persists the nonce unless the stored nonce is already higher.
	Set(ctx context.Context, shard uint32, nonce uint64) error
	Close() error
}
