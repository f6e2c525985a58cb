package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/substills/internal/database"
	"github.com/therealutkarshpriyadarshi/substills/internal/logging"
	"github.com/therealutkarshpriyadarshi/substills/internal/metrics"
)

// DefaultInterval is how often the monitor samples its sources
const DefaultInterval = 10 * time.Second

// Status is a point-in-time view of the agent
type Status struct {
	OpenTabs         int              `json:"open_tabs"`
	QueueDepth       int              `json:"queue_depth"`
	DLQDepth         int              `json:"dlq_depth"`
	Captures         int64            `json:"captures"`
	CapturesBySource map[string]int64 `json:"captures_by_source,omitempty"`
	StoredBytes      int64            `json:"stored_bytes"`
	Errors           []string         `json:"errors,omitempty"`
	LastUpdated      time.Time        `json:"last_updated"`
}

// StatsProvider reports capture history totals
type StatsProvider interface {
	Stats(ctx context.Context) (*database.CaptureStats, error)
}

// QueueProvider reports command queue depths
type QueueProvider interface {
	GetQueueDepth() (int, error)
	GetDLQDepth() (int, error)
}

// TabProvider lists the loaded tabs
type TabProvider interface {
	Tabs() []string
}

// Monitor samples the optional sources it was given and mirrors them into
// Prometheus gauges
type Monitor struct {
	mu       sync.RWMutex
	status   Status
	stats    StatsProvider
	queue    QueueProvider
	tabs     TabProvider
	interval time.Duration
	logger   *logging.Logger
}

// NewMonitor creates a monitor with no sources
func NewMonitor() *Monitor {
	return &Monitor{
		interval: DefaultInterval,
		logger:   logging.Nop(),
	}
}

// WithStats adds capture history as a source
func (m *Monitor) WithStats(stats StatsProvider) *Monitor {
	m.stats = stats
	return m
}

// WithQueue adds the command queue as a source
func (m *Monitor) WithQueue(queue QueueProvider) *Monitor {
	m.queue = queue
	return m
}

// WithTabs adds the tab registry as a source
func (m *Monitor) WithTabs(tabs TabProvider) *Monitor {
	m.tabs = tabs
	return m
}

// WithInterval sets the sampling period
func (m *Monitor) WithInterval(interval time.Duration) *Monitor {
	if interval > 0 {
		m.interval = interval
	}
	return m
}

// WithLogger sets the logger used for sampling failures
func (m *Monitor) WithLogger(logger *logging.Logger) *Monitor {
	if logger != nil {
		m.logger = logger.WithComponent("monitor")
	}
	return m
}

// Start samples immediately and then every interval until ctx is done
func (m *Monitor) Start(ctx context.Context) {
	go m.collect(ctx)
}

func (m *Monitor) collect(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if err := m.Update(ctx); err != nil {
			m.logger.WithError(err).Warn("Failed to update status")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Update samples every source once. A failing source keeps its previous
// values and is reported in Status.Errors.
func (m *Monitor) Update(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.status
	next.Errors = nil

	if m.tabs != nil {
		next.OpenTabs = len(m.tabs.Tabs())
		metrics.SetOpenTabs(next.OpenTabs)
	}

	if m.queue != nil {
		depth, err := m.queue.GetQueueDepth()
		if err != nil {
			next.Errors = append(next.Errors, fmt.Sprintf("queue depth: %v", err))
		} else {
			next.QueueDepth = depth
		}
		dead, err := m.queue.GetDLQDepth()
		if err != nil {
			next.Errors = append(next.Errors, fmt.Sprintf("dead-letter depth: %v", err))
		} else {
			next.DLQDepth = dead
		}
		metrics.SetQueueDepth(next.QueueDepth, next.DLQDepth)
	}

	if m.stats != nil {
		stats, err := m.stats.Stats(ctx)
		if err != nil {
			next.Errors = append(next.Errors, fmt.Sprintf("capture stats: %v", err))
		} else {
			next.Captures = stats.Total
			next.CapturesBySource = stats.BySource
			next.StoredBytes = stats.TotalBytes
			metrics.SetStoredCaptures(stats.BySource)
		}
	}

	next.LastUpdated = time.Now()
	m.status = next

	if len(next.Errors) > 0 {
		return fmt.Errorf("%d of the status sources failed", len(next.Errors))
	}
	return nil
}

// Status returns the latest sample
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := m.status
	if m.status.CapturesBySource != nil {
		status.CapturesBySource = make(map[string]int64, len(m.status.CapturesBySource))
		for k, v := range m.status.CapturesBySource {
			status.CapturesBySource[k] = v
		}
	}
	status.Errors = append([]string(nil), m.status.Errors...)
	return status
}
