package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Names of the default registry's process and runtime metrics.
const (
	metricCPUSeconds = "process_cpu_seconds_total"
	metricRSSBytes   = "process_resident_memory_bytes"
	metricGoroutines = "go_goroutines"
)

// ResourceSample is one reading of process resource usage.
type ResourceSample struct {
	At         time.Time
	CPUSeconds float64
	RSSBytes   float64
	Goroutines float64
}

// ReadResources reads resource usage from a gatherer.
func ReadResources(g prometheus.Gatherer) (ResourceSample, error) {
	families, err := g.Gather()
	if err != nil {
		return ResourceSample{}, fmt.Errorf("gather metrics: %w", err)
	}

	s := ResourceSample{At: time.Now()}
	for _, mf := range families {
		switch mf.GetName() {
		case metricCPUSeconds:
			s.CPUSeconds = firstValue(mf)
		case metricRSSBytes:
			s.RSSBytes = firstValue(mf)
		case metricGoroutines:
			s.Goroutines = firstValue(mf)
		}
	}
	return s, nil
}

func firstValue(mf *dto.MetricFamily) float64 {
	metrics := mf.GetMetric()
	if len(metrics) == 0 {
		return 0
	}
	m := metrics[0]
	switch {
	case m.GetCounter() != nil:
		return m.GetCounter().GetValue()
	case m.GetGauge() != nil:
		return m.GetGauge().GetValue()
	default:
		return m.GetUntyped().GetValue()
	}
}

// CPUPercent returns the CPU usage between two samples as a percentage of one core.
func CPUPercent(prev, cur ResourceSample) float64 {
	elapsed := cur.At.Sub(prev.At).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return (cur.CPUSeconds - prev.CPUSeconds) / elapsed * 100
}

// StartResourceLogger logs CPU and memory usage of the process every interval
// until ctx is cancelled.
func StartResourceLogger(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		prev, err := ReadResources(prometheus.DefaultGatherer)
		if err != nil {
			slog.Warn("Resource logger disabled", "error", err)
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cur, err := ReadResources(prometheus.DefaultGatherer)
				if err != nil {
					slog.Warn("Failed to read resource usage", "error", err)
					continue
				}
				slog.Info("Resource usage",
					"cpu_percent", fmt.Sprintf("%.1f", CPUPercent(prev, cur)),
					"rss_mb", fmt.Sprintf("%.1f", cur.RSSBytes/1024/1024),
					"goroutines", int(cur.Goroutines),
				)
				prev = cur
			}
		}
	}()
}
