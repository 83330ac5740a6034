// Package ingest polls every shard for transactions newer than its cursor.
package ingest

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ethpandaops/tx-event-processor/pkg/common"
	"github.com/ethpandaops/tx-event-processor/pkg/multiversx"
)

// Gateway yields shard transactions.
type Gateway interface {
	LatestNonce(ctx context.Context, shard uint32) (uint64, error)
	// FetchTransactions also returns the highest block nonce it scanned.
	FetchTransactions(ctx context.Context, shard uint32, afterNonce uint64) ([]*multiversx.ShardTransaction, uint64, error)
}

// ShardSource lists the shards to poll.
type ShardSource interface {
	Shards(ctx context.Context) ([]uint32, error)
}

// CursorStore persists the last processed nonce of each shard.
type CursorStore interface {
	Get(ctx context.Context, shard uint32) (uint64, bool, error)
	Set(ctx context.Context, shard uint32, nonce uint64) error
}

// BatchFunc handles the transactions of one shard. The cursor is only
// committed after it returns nil.
type BatchFunc func(ctx context.Context, shard uint32, highestNonce uint64, txs []*multiversx.ShardTransaction) error

// watermark is the highest block scanned on a shard while its persisted
// cursor was cursor. Blocks up to nonce held no transactions past the cursor.
type watermark struct {
	cursor uint64
	found  bool
	nonce  uint64
}

// Loop runs ingestion passes.
type Loop struct {
	log           logrus.FieldLogger
	gateway       Gateway
	shards        ShardSource
	cursors       CursorStore
	maxLookBehind uint64

	mu         sync.Mutex
	watermarks map[uint32]watermark
}

func NewLoop(log logrus.FieldLogger, gateway Gateway, shards ShardSource, cursors CursorStore, maxLookBehind uint64) *Loop {
	return &Loop{
		log:           log.WithField("component", "ingest"),
		gateway:       gateway,
		shards:        shards,
		cursors:       cursors,
		maxLookBehind: maxLookBehind,
		watermarks:    make(map[uint32]watermark),
	}
}

// PassResult summarises one pass.
type PassResult struct {
	Shards    int
	Committed int
	Failed    int
}

// Run performs one pass over all shards concurrently. A failing shard is
// logged and skipped without affecting the others; the returned error is
// only set when the shard list itself is unavailable.
func (l *Loop) Run(ctx context.Context, onBatch BatchFunc) (*PassResult, error) {
	shards, err := l.shards.Shards(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list shards: %w", err)
	}

	committed := make([]bool, len(shards))
	failed := make([]bool, len(shards))

	g, gctx := errgroup.WithContext(ctx)

	for i, shard := range shards {
		g.Go(func() error {
			ok, err := l.runShard(gctx, shard, onBatch)
			if err != nil {
				failed[i] = true

				l.log.WithError(err).WithField("shard", shard).Warn("Skipping shard for this pass")

				return nil
			}

			committed[i] = ok

			return nil
		})
	}

	_ = g.Wait()

	result := &PassResult{Shards: len(shards)}

	for i := range shards {
		if committed[i] {
			result.Committed++
		}

		if failed[i] {
			result.Failed++
		}
	}

	return result, nil
}

// StartNonce returns the nonce after which transactions are requested.
func StartNonce(persisted uint64, found bool, latest, maxLookBehind uint64) uint64 {
	var floor uint64
	if latest > maxLookBehind {
		floor = latest - maxLookBehind
	}

	if found && persisted > floor {
		return persisted
	}

	return floor
}

func (l *Loop) runShard(ctx context.Context, shard uint32, onBatch BatchFunc) (committed bool, err error) {
	label := strconv.FormatUint(uint64(shard), 10)

	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic while processing shard: %v", recovered)
		}

		if err != nil {
			common.ShardErrors.WithLabelValues(label, "pass").Inc()
		}
	}()

	persisted, found, err := l.cursors.Get(ctx, shard)
	if err != nil {
		return false, fmt.Errorf("failed to read cursor: %w", err)
	}

	latest, err := l.gateway.LatestNonce(ctx, shard)
	if err != nil {
		return false, fmt.Errorf("failed to get latest nonce: %w", err)
	}

	start := StartNonce(persisted, found, latest, l.maxLookBehind)

	if mark, ok := l.scanned(shard, persisted, found); ok && mark > start {
		start = mark
	}

	txs, scanned, err := l.gateway.FetchTransactions(ctx, shard, start)
	if err != nil {
		return false, fmt.Errorf("failed to fetch transactions after %d: %w", start, err)
	}

	if len(txs) == 0 {
		l.markScanned(shard, persisted, found, scanned)

		return false, nil
	}

	var highest uint64

	for _, tx := range txs {
		if tx.Nonce > highest {
			highest = tx.Nonce
		}
	}

	startTime := time.Now()

	if err := onBatch(ctx, shard, highest, txs); err != nil {
		return false, fmt.Errorf("failed to handle batch up to %d: %w", highest, err)
	}

	common.BatchProcessingDuration.WithLabelValues(label).Observe(time.Since(startTime).Seconds())
	common.TransactionsProcessed.WithLabelValues(label).Add(float64(len(txs)))

	if err := l.cursors.Set(ctx, shard, highest); err != nil {
		return false, fmt.Errorf("failed to commit cursor %d: %w", highest, err)
	}

	l.markScanned(shard, highest, true, scanned)

	l.log.WithFields(logrus.Fields{
		"shard":        shard,
		"from":         start + 1,
		"to":           highest,
		"transactions": len(txs),
	}).Debug("Committed shard cursor")

	return true, nil
}

// scanned returns the shard's watermark when it was recorded against the
// cursor that is persisted now. A cursor moved by anything else voids it.
func (l *Loop) scanned(shard uint32, cursor uint64, found bool) (uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.watermarks[shard]
	if !ok || w.cursor != cursor || w.found != found {
		return 0, false
	}

	return w.nonce, true
}

func (l *Loop) markScanned(shard uint32, cursor uint64, found bool, nonce uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.watermarks[shard] = watermark{cursor: cursor, found: found, nonce: nonce}
}
