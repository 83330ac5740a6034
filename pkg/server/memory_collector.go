package server

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/tx-event-processor/pkg/common"
)

const (
	defaultMemoryInterval  = time.Minute
	defaultWarningMB       = 1024
	defaultCriticalMB      = 2048
	memoryPressureWarning  = "warning"
	memoryPressureCritical = "critical"
	bytesPerMB             = 1024 * 1024
)

// MemoryMonitorConfig controls periodic runtime memory reporting.
type MemoryMonitorConfig struct {
	Enabled             bool          `yaml:"enabled"`
	Interval            time.Duration `yaml:"interval"`
	WarningThresholdMB  uint64        `yaml:"warningThresholdMb"`
	CriticalThresholdMB uint64        `yaml:"criticalThresholdMb"`
}

func (c *MemoryMonitorConfig) setDefaults() {
	if c.Interval <= 0 {
		c.Interval = defaultMemoryInterval
	}

	if c.WarningThresholdMB == 0 {
		c.WarningThresholdMB = defaultWarningMB
	}

	if c.CriticalThresholdMB < c.WarningThresholdMB {
		c.CriticalThresholdMB = max(defaultCriticalMB, c.WarningThresholdMB)
	}
}

// MemoryStatsCollector publishes heap and goroutine gauges and warns when
// allocation crosses the configured thresholds.
type MemoryStatsCollector struct {
	log    logrus.FieldLogger
	config MemoryMonitorConfig

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup

	maxAllocBytes uint64
	readStats     func(*runtime.MemStats)
}

func NewMemoryStatsCollector(log logrus.FieldLogger, config MemoryMonitorConfig) *MemoryStatsCollector {
	config.setDefaults()

	return &MemoryStatsCollector{
		log:       log.WithField("component", "memory_stats_collector"),
		config:    config,
		stopCh:    make(chan struct{}),
		readStats: runtime.ReadMemStats,
	}
}

func (m *MemoryStatsCollector) Start(ctx context.Context) error {
	if !m.config.Enabled {
		return nil
	}

	m.log.WithFields(logrus.Fields{
		"interval":              m.config.Interval,
		"warning_threshold_mb":  m.config.WarningThresholdMB,
		"critical_threshold_mb": m.config.CriticalThresholdMB,
	}).Info("Starting memory stats collector")

	m.wg.Add(1)

	go m.run(ctx)

	return nil
}

func (m *MemoryStatsCollector) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

func (m *MemoryStatsCollector) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	m.collect()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.collect()
		}
	}
}

// collect samples the runtime and returns the pressure level, if any.
func (m *MemoryStatsCollector) collect() string {
	var stats runtime.MemStats

	m.readStats(&stats)

	common.MemoryUsage.WithLabelValues("alloc").Set(float64(stats.Alloc))
	common.MemoryUsage.WithLabelValues("sys").Set(float64(stats.Sys))
	common.MemoryUsage.WithLabelValues("heap_alloc").Set(float64(stats.HeapAlloc))
	common.MemoryUsage.WithLabelValues("heap_sys").Set(float64(stats.HeapSys))
	common.GoroutineCount.Set(float64(runtime.NumGoroutine()))

	m.maxAllocBytes = max(m.maxAllocBytes, stats.Alloc)

	allocMB := stats.Alloc / bytesPerMB
	fields := logrus.Fields{
		"alloc_mb":      allocMB,
		"heap_alloc_mb": stats.HeapAlloc / bytesPerMB,
		"max_alloc_mb":  m.maxAllocBytes / bytesPerMB,
		"num_gc":        stats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	switch {
	case allocMB > m.config.CriticalThresholdMB:
		common.MemoryPressureEvents.WithLabelValues(memoryPressureCritical).Inc()
		m.log.WithFields(fields).Error("Critical memory usage detected")

		return memoryPressureCritical
	case allocMB > m.config.WarningThresholdMB:
		common.MemoryPressureEvents.WithLabelValues(memoryPressureWarning).Inc()
		m.log.WithFields(fields).Warn("High memory usage detected")

		return memoryPressureWarning
	}

	m.log.WithFields(fields).Debug("Memory usage summary")

	return ""
}
