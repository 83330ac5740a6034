// Package rowbuffer batches rows in memory and flushes them in the background
// when a row limit or timer interval is hit. Adding rows never blocks: once
// MaxPending rows are waiting, further rows are dropped and counted.
package rowbuffer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/tx-event-processor/pkg/common"
)

const (
	DefaultMaxRows       = 1000
	DefaultMaxPending    = 100000
	DefaultFlushInterval = time.Second
)

// FlushFunc writes a batch of rows.
type FlushFunc[R any] func(ctx context.Context, rows []R) error

type Config struct {
	MaxRows       int           // flush threshold
	MaxPending    int           // rows held before new rows are dropped
	FlushInterval time.Duration // max wait before flush
	Table         string        // metrics label
}

// Buffer is safe for concurrent use.
type Buffer[R any] struct {
	mu   sync.Mutex
	rows []R

	flushMu sync.Mutex

	config  Config
	flushFn FlushFunc[R]
	log     logrus.FieldLogger

	flushCh  chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
	started  bool
}

func New[R any](cfg Config, flushFn FlushFunc[R], log logrus.FieldLogger) *Buffer[R] {
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = DefaultMaxRows
	}

	if cfg.MaxPending < cfg.MaxRows {
		cfg.MaxPending = max(DefaultMaxPending, cfg.MaxRows)
	}

	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}

	return &Buffer[R]{
		rows:     make([]R, 0, cfg.MaxRows),
		config:   cfg,
		flushFn:  flushFn,
		log:      log.WithFields(logrus.Fields{"component": "rowbuffer", "table": cfg.Table}),
		flushCh:  make(chan struct{}, 1),
		stopChan: make(chan struct{}),
	}
}

// Start runs the background flusher until Stop is called or ctx is done.
func (b *Buffer[R]) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return nil
	}

	b.started = true

	b.wg.Add(1)

	go b.run(ctx)

	b.log.WithFields(logrus.Fields{
		"max_rows":       b.config.MaxRows,
		"max_pending":    b.config.MaxPending,
		"flush_interval": b.config.FlushInterval,
	}).Debug("Row buffer started")

	return nil
}

// Stop ends the flusher and writes whatever is still buffered.
func (b *Buffer[R]) Stop(ctx context.Context) error {
	b.mu.Lock()

	if !b.started {
		b.mu.Unlock()

		return nil
	}

	b.started = false
	b.mu.Unlock()

	close(b.stopChan)
	b.wg.Wait()

	if err := b.Flush(ctx, "shutdown"); err != nil {
		return fmt.Errorf("failed to flush remaining rows: %w", err)
	}

	b.log.Debug("Row buffer stopped")

	return nil
}

// Add queues rows and returns how many were accepted.
func (b *Buffer[R]) Add(rows ...R) int {
	if len(rows) == 0 {
		return 0
	}

	b.mu.Lock()

	room := b.config.MaxPending - len(b.rows)
	accepted := min(max(room, 0), len(rows))

	b.rows = append(b.rows, rows[:accepted]...)
	pending := len(b.rows)

	b.mu.Unlock()

	common.RowBufferPendingRows.WithLabelValues(b.config.Table).Set(float64(pending))

	if dropped := len(rows) - accepted; dropped > 0 {
		common.RowBufferDroppedRows.WithLabelValues(b.config.Table).Add(float64(dropped))
		b.log.WithField("dropped", dropped).Warn("Row buffer full, dropping rows")
	}

	if pending >= b.config.MaxRows {
		select {
		case b.flushCh <- struct{}{}:
		default:
		}
	}

	return accepted
}

// Flush writes all buffered rows now. Rows of a failed flush are discarded.
func (b *Buffer[R]) Flush(ctx context.Context, trigger string) error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()

	if len(b.rows) == 0 {
		b.mu.Unlock()

		return nil
	}

	rows := b.rows
	b.rows = make([]R, 0, b.config.MaxRows)
	b.mu.Unlock()

	common.RowBufferPendingRows.WithLabelValues(b.config.Table).Set(0)

	start := time.Now()
	err := b.flushFn(ctx, rows)

	status := "success"
	if err != nil {
		status = "failed"
	}

	common.RowBufferFlushTotal.WithLabelValues(b.config.Table, trigger, status).Inc()
	common.RowBufferFlushSize.WithLabelValues(b.config.Table).Observe(float64(len(rows)))

	log := b.log.WithFields(logrus.Fields{
		"rows":     len(rows),
		"trigger":  trigger,
		"duration": time.Since(start),
	})

	if err != nil {
		log.WithError(err).Error("Row buffer flush failed")

		return err
	}

	log.Debug("Row buffer flush completed")

	return nil
}

func (b *Buffer[R]) run(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = b.Flush(ctx, "timer")
		case <-b.flushCh:
			_ = b.Flush(ctx, "size")
		}
	}
}

// Len returns the number of buffered rows.
func (b *Buffer[R]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.rows)
}
