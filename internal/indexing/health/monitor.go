package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/ledgersync/internal/core/worker"
	"github.com/vietddude/ledgersync/internal/indexing/syncer"
)

// StatusSource lists the current chain workers.
type StatusSource interface {
	Statuses() []worker.Status
}

// Listener is told about every refreshed report.
type Listener func(report HealthReport)

// Monitor aggregates health status from the chain workers.
type Monitor struct {
	source    StatusSource
	interval  time.Duration
	listeners []Listener
	mu        sync.RWMutex
}

// NewMonitor creates a new health monitor.
func NewMonitor(source StatusSource, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Monitor{source: source, interval: interval}
}

// OnReport registers a listener for periodic reports.
func (m *Monitor) OnReport(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// CheckHealth performs a health check for all chains.
func (m *Monitor) CheckHealth(ctx context.Context) map[string]ChainHealth {
	report := make(map[string]ChainHealth)

	for _, st := range m.source.Statuses() {
		health := ChainHealth{
			ChainID:       st.ChainID.String(),
			Status:        StatusHealthy,
			State:         st.State,
			Role:          st.Role,
			Discovery:     st.Discovery,
			Notifications: st.Notifications,
			Cycles:        st.Cycles,
			LastOutcome:   st.LastOutcome,
			LastFailures:  st.LastFailures,
			LastCycleAt:   st.LastCycleAt,
		}

		switch {
		case st.State != worker.StateSubscribed.String() && st.State != worker.StateSyncing.String():
			// Not listening: notifications are not being received
			health.Status = StatusCritical
		case st.LastOutcome == syncer.OutcomePartial || st.LastOutcome == syncer.OutcomeFailed:
			health.Status = StatusDegraded
		}

		report[health.ChainID] = health
	}

	return report
}

// Report builds the aggregated report.
func (m *Monitor) Report(ctx context.Context) HealthReport {
	chains := m.CheckHealth(ctx)
	return HealthReport{SystemStatus: Aggregate(chains), Chains: chains}
}

// Start periodically refreshes the report and notifies listeners until ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.publish(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.publish(ctx)
		}
	}
}

func (m *Monitor) publish(ctx context.Context) {
	report := m.Report(ctx)
	if report.SystemStatus != StatusHealthy {
		slog.Warn("System health degraded", "status", report.SystemStatus, "chains", len(report.Chains))
	}

	m.mu.RLock()
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.RUnlock()
	for _, l := range listeners {
		l(report)
	}
}
