package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
	r "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/tx-event-processor/pkg/common"
	"github.com/ethpandaops/tx-event-processor/pkg/leaderelection"
	"github.com/ethpandaops/tx-event-processor/pkg/nftqueue"
	"github.com/ethpandaops/tx-event-processor/pkg/processor/ingest"
)

// Runner runs one ingestion pass over every shard.
type Runner interface {
	Run(ctx context.Context, onBatch ingest.BatchFunc) (*ingest.PassResult, error)
}

// Dependencies are the collaborators of the Manager.
type Dependencies struct {
	Runner  Runner
	Handler *BatchHandler
	// Nfts is joined on stop when NFT processing is enabled.
	Nfts *NftHandler

	// Redis backs leader election. Required when election is enabled and
	// Elector is nil.
	Redis       *r.Client
	RedisPrefix string
	Elector     leaderelection.Elector

	// Inspector and Queue enable process-NFT queue depth monitoring.
	Inspector nftqueue.QueueInspector
	Queue     string
}

// Status is a snapshot of the Manager for operators.
type Status struct {
	NodeID        string        `json:"nodeId"`
	Leader        bool          `json:"leader"`
	Processing    bool          `json:"processing"`
	Passes        uint64        `json:"passes"`
	LastPassAt    time.Time     `json:"lastPassAt,omitempty"`
	LastDuration  time.Duration `json:"lastPassDurationNs"`
	LastShards    int           `json:"lastPassShards"`
	LastCommitted int           `json:"lastPassCommitted"`
	LastFailed    int           `json:"lastPassFailed"`
}

// Manager triggers ingestion passes on a fixed cadence. At most one pass runs
// at a time, and only on the elected leader.
type Manager struct {
	log    logrus.FieldLogger
	config *Config
	deps   *Dependencies

	elector   leaderelection.Elector
	scheduler *gocron.Scheduler

	isLeader   atomic.Bool
	processing atomic.Bool

	statusMu sync.RWMutex
	passes   uint64
	last     *ingest.PassResult
	lastAt   time.Time
	lastTook time.Duration

	stopChan chan struct{}
	stopOnce sync.Once
}

func NewManager(log logrus.FieldLogger, config *Config, deps *Dependencies) (*Manager, error) {
	if deps == nil || deps.Runner == nil || deps.Handler == nil {
		return nil, errors.New("runner and handler are required")
	}

	m := &Manager{
		log:       log.WithField("component", "processor"),
		config:    config,
		deps:      deps,
		elector:   deps.Elector,
		scheduler: gocron.NewScheduler(time.Local),
		stopChan:  make(chan struct{}),
	}

	if m.elector == nil && config.LeaderElection.IsEnabled() {
		if deps.Redis == nil {
			return nil, errors.New("redis client is required for leader election")
		}

		key := "leader:transactionProcessor"
		if deps.RedisPrefix != "" {
			key = fmt.Sprintf("%s:%s", deps.RedisPrefix, key)
		}

		elector, err := leaderelection.NewRedisElector(deps.Redis, log, key, &config.LeaderElection)
		if err != nil {
			return nil, fmt.Errorf("failed to create leader elector: %w", err)
		}

		m.elector = elector
	}

	if m.elector == nil {
		m.isLeader.Store(true)

		return m, nil
	}

	m.elector.OnLeadershipChange(func(_ context.Context, isLeader bool) {
		m.isLeader.Store(isLeader)

		if isLeader {
			m.log.Info("Gained leadership - starting transaction processing")
		} else {
			m.log.Info("Lost leadership - pausing transaction processing")
		}
	})

	return m, nil
}

// Start schedules passes and blocks until ctx is done or Stop is called.
func (m *Manager) Start(ctx context.Context) error {
	m.log.WithFields(logrus.Fields{
		"interval":        m.config.Interval,
		"max_look_behind": m.config.MaxLookBehind,
		"process_nfts":    m.config.ProcessNfts,
	}).Info("Starting processor manager")

	if m.elector != nil {
		if err := m.elector.Start(ctx); err != nil {
			return fmt.Errorf("failed to start leader election: %w", err)
		}
	} else {
		m.log.Info("Leader election disabled - running as standalone processor")
	}

	if _, err := m.scheduler.Every(m.config.Interval).Do(m.Tick, ctx); err != nil {
		return fmt.Errorf("failed to schedule transaction processing: %w", err)
	}

	if m.deps.Inspector != nil && m.deps.Queue != "" {
		if _, err := m.scheduler.Every(m.config.QueueMonitorInterval).Do(m.monitorQueue); err != nil {
			return fmt.Errorf("failed to schedule queue monitoring: %w", err)
		}
	}

	m.scheduler.StartAsync()

	select {
	case <-ctx.Done():
	case <-m.stopChan:
		m.log.Info("Stop signal received")
	}

	return nil
}

func (m *Manager) Stop(ctx context.Context) error {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})

	m.log.Info("Stopping processor manager")

	m.scheduler.Stop()

	if m.elector != nil {
		stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := m.elector.Stop(stopCtx); err != nil {
			m.log.WithError(err).Error("Failed to stop leader election")
		}
	}

	if m.deps.Nfts != nil {
		waitCtx, cancel := context.WithTimeout(ctx, m.config.ShutdownTimeout)
		defer cancel()

		if err := m.deps.Nfts.Stop(waitCtx); err != nil {
			m.log.WithError(err).Warn("NFT handlers did not finish before shutdown")
		}
	}

	return nil
}

// Tick runs one ingestion pass unless this node is not the leader or the
// previous pass is still running.
func (m *Manager) Tick(ctx context.Context) {
	if !m.isLeader.Load() {
		common.Passes.WithLabelValues("not_leader").Inc()

		return
	}

	if !m.processing.CompareAndSwap(false, true) {
		common.Passes.WithLabelValues("skipped_in_flight").Inc()
		m.log.Debug("Previous pass still running, skipping tick")

		return
	}

	defer m.processing.Store(false)

	defer func() {
		if rec := recover(); rec != nil {
			common.Passes.WithLabelValues("panic").Inc()
			m.log.WithField("panic", rec).Error("Transaction processing panic recovered")
		}
	}()

	start := time.Now()

	result, err := m.deps.Runner.Run(ctx, m.deps.Handler.HandleBatch)

	took := time.Since(start)
	common.PassDuration.Observe(took.Seconds())

	if err != nil {
		common.Passes.WithLabelValues("error").Inc()
		m.log.WithError(err).Error("Transaction processing pass failed")

		return
	}

	outcome := "success"
	if result.Failed > 0 {
		outcome = "partial"
	}

	common.Passes.WithLabelValues(outcome).Inc()

	m.statusMu.Lock()
	m.passes++
	m.last = result
	m.lastAt = start
	m.lastTook = took
	m.statusMu.Unlock()

	m.log.WithFields(logrus.Fields{
		"shards":    result.Shards,
		"committed": result.Committed,
		"failed":    result.Failed,
		"duration":  took,
	}).Debug("Completed transaction processing pass")
}

// IsProcessing reports whether a pass is in flight.
func (m *Manager) IsProcessing() bool {
	return m.processing.Load()
}

func (m *Manager) IsLeader() bool {
	return m.isLeader.Load()
}

func (m *Manager) Status() Status {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()

	status := Status{
		Leader:       m.isLeader.Load(),
		Processing:   m.processing.Load(),
		Passes:       m.passes,
		LastPassAt:   m.lastAt,
		LastDuration: m.lastTook,
	}

	if m.elector != nil {
		status.NodeID = m.elector.NodeID()
	}

	if m.last != nil {
		status.LastShards = m.last.Shards
		status.LastCommitted = m.last.Committed
		status.LastFailed = m.last.Failed
	}

	return status
}

func (m *Manager) monitorQueue() {
	if !m.isLeader.Load() {
		return
	}

	stats, err := nftqueue.CollectQueueStats(m.deps.Inspector, m.deps.Queue)
	if err != nil {
		m.log.WithError(err).WithField("queue", m.deps.Queue).Debug("Failed to collect queue stats")

		return
	}

	m.log.WithFields(logrus.Fields{
		"queue":    m.deps.Queue,
		"pending":  stats.Pending,
		"active":   stats.Active,
		"archived": stats.Archived,
	}).Debug("Process nft queue stats")
}
