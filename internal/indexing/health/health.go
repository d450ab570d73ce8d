// Package health provides system health monitoring and status reporting.
package health

import "time"

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ChainHealth contains health details for one chain worker.
type ChainHealth struct {
	ChainID       string       `json:"chain_id"`
	Status        SystemStatus `json:"status"`
	State         string       `json:"state"`
	Role          string       `json:"role"`
	Discovery     bool         `json:"discovery"`
	Notifications uint64       `json:"notifications"`
	Cycles        uint64       `json:"cycles"`
	LastOutcome   string       `json:"last_outcome,omitempty"`
	LastFailures  int          `json:"last_failures"`
	LastCycleAt   time.Time    `json:"last_cycle_at"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus           `json:"system_status"`
	Chains       map[string]ChainHealth `json:"chains"`
}

// Aggregate returns the worst status across chains.
func Aggregate(chains map[string]ChainHealth) SystemStatus {
	status := StatusHealthy
	for _, chain := range chains {
		if chain.Status == StatusCritical {
			return StatusCritical
		}
		if chain.Status == StatusDegraded {
			status = StatusDegraded
		}
	}
	return status
}
