package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadResources(t *testing.T) {
	reg := prometheus.NewRegistry()
	cpu := prometheus.NewCounter(prometheus.CounterOpts{Name: metricCPUSeconds, Help: "cpu"})
	rss := prometheus.NewGauge(prometheus.GaugeOpts{Name: metricRSSBytes, Help: "rss"})
	reg.MustRegister(cpu, rss)

	cpu.Add(1.5)
	rss.Set(64 * 1024 * 1024)

	s, err := ReadResources(reg)
	require.NoError(t, err)
	assert.Equal(t, 1.5, s.CPUSeconds)
	assert.Equal(t, float64(64*1024*1024), s.RSSBytes)
	assert.Zero(t, s.Goroutines)
}

func TestCPUPercent(t *testing.T) {
	start := time.Now()
	prev := ResourceSample{At: start, CPUSeconds: 10}
	cur := ResourceSample{At: start.Add(2 * time.Second), CPUSeconds: 11}

	assert.InDelta(t, 50.0, CPUPercent(prev, cur), 0.001)
	assert.Zero(t, CPUPercent(cur, cur))
}
