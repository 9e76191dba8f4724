package mi

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nvme-mi/nvme-mi-go/pkg/nvme"
)

// Health monitor defaults.
const (
	DefaultPollInterval = 10 * time.Second
	DefaultPollTimeout  = 2 * time.Second
	DefaultMaxFailures  = 3
)

// HealthPoller issues Subsystem Health Status Poll. Implemented by Endpoint.
type HealthPoller interface {
	SubsystemHealthStatusPoll(ctx context.Context, clearChanged bool) (*nvme.SubsystemHealthStatus, error)
}

// HealthMonitorConfig configures a HealthMonitor.
type HealthMonitorConfig struct {
	// Interval between polls.
	Interval time.Duration

	// Timeout bounds a single poll.
	Timeout time.Duration

	// MaxFailures is the number of consecutive failed polls that trigger
	// the failure callback.
	MaxFailures int

	// ClearOnRead asks the endpoint to clear its change flags on each poll.
	ClearOnRead bool

	// Logger for operational logging. If nil, logging is disabled.
	Logger *slog.Logger
}

// DefaultHealthMonitorConfig returns the default monitor configuration.
func DefaultHealthMonitorConfig() HealthMonitorConfig {
	return HealthMonitorConfig{
		Interval:    DefaultPollInterval,
		Timeout:     DefaultPollTimeout,
		MaxFailures: DefaultMaxFailures,
	}
}

// HealthMonitor polls subsystem health periodically. It must be the only user
// of the poller's endpoint while running.
type HealthMonitor struct {
	config  HealthMonitorConfig
	poller  HealthPoller
	onPoll  func(*nvme.SubsystemHealthStatus)
	onFault func(error)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	stats   HealthStats
}

// HealthStats reports monitor progress.
type HealthStats struct {
	Polls               int
	ConsecutiveFailures int
	LastPoll            time.Time
	LastSuccess         time.Time
	LastError           error
	Last                *nvme.SubsystemHealthStatus
}

// NewHealthMonitor creates a monitor. onPoll receives every successful
// result; onFault is called once MaxFailures consecutive polls have failed,
// and again after each further MaxFailures failures. Either may be nil.
func NewHealthMonitor(config HealthMonitorConfig, poller HealthPoller, onPoll func(*nvme.SubsystemHealthStatus), onFault func(error)) *HealthMonitor {
	if config.Interval <= 0 {
		config.Interval = DefaultPollInterval
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultPollTimeout
	}
	if config.MaxFailures <= 0 {
		config.MaxFailures = DefaultMaxFailures
	}
	return &HealthMonitor{
		config:  config,
		poller:  poller,
		onPoll:  onPoll,
		onFault: onFault,
	}
}

// Start begins polling. The first poll is immediate.
func (m *HealthMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	go m.loop(ctx, m.stopCh, m.doneCh)
}

// Stop stops polling and waits for an in-flight poll to finish.
func (m *HealthMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	done := m.doneCh
	m.mu.Unlock()
	<-done
}

// IsRunning returns true while the monitor is polling.
func (m *HealthMonitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Stats returns a snapshot of the monitor statistics.
func (m *HealthMonitor) Stats() HealthStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *HealthMonitor) debugLog(msg string, args ...any) {
	if m.config.Logger != nil {
		m.config.Logger.Debug(msg, args...)
	}
}

func (m *HealthMonitor) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	m.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			m.running = false
			m.mu.Unlock()
			return
		case <-stop:
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *HealthMonitor) poll(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	status, err := m.poller.SubsystemHealthStatusPoll(pctx, m.config.ClearOnRead)
	cancel()

	now := time.Now()
	m.mu.Lock()
	m.stats.Polls++
	m.stats.LastPoll = now
	m.stats.LastError = err
	if err == nil {
		m.stats.ConsecutiveFailures = 0
		m.stats.LastSuccess = now
		m.stats.Last = status
		m.mu.Unlock()

		m.debugLog("health poll", "status", status.String())
		if m.onPoll != nil {
			m.onPoll(status)
		}
		return
	}
	m.stats.ConsecutiveFailures++
	fault := m.stats.ConsecutiveFailures%m.config.MaxFailures == 0
	m.mu.Unlock()

	m.debugLog("health poll failed", "error", err)
	if fault && m.onFault != nil {
		m.onFault(err)
	}
}

var _ HealthPoller = (*Endpoint)(nil)
