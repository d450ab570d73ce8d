package storage

import (
	"context"
	"time"

	"github.com/vietddude/ledgersync/internal/indexing/metrics"
)

// InstrumentedSink records write counts and latency for a wrapped sink.
type InstrumentedSink struct {
	next Sink
}

// Instrument wraps a sink with prometheus instrumentation.
func Instrument(next Sink) *InstrumentedSink {
	return &InstrumentedSink{next: next}
}

func (s *InstrumentedSink) Insert(ctx context.Context, table Table, record any) error {
	return s.observe(table, "insert", func() error { return s.next.Insert(ctx, table, record) })
}

func (s *InstrumentedSink) InsertMany(ctx context.Context, table Table, records any) error {
	return s.observe(table, "insert_many", func() error { return s.next.InsertMany(ctx, table, records) })
}

func (s *InstrumentedSink) Upsert(ctx context.Context, table Table, record any) error {
	return s.observe(table, "upsert", func() error { return s.next.Upsert(ctx, table, record) })
}

func (s *InstrumentedSink) ReplaceAll(ctx context.Context, table Table, records any) error {
	return s.observe(table, "replace_all", func() error { return s.next.ReplaceAll(ctx, table, records) })
}

func (s *InstrumentedSink) Close() error {
	return s.next.Close()
}

func (s *InstrumentedSink) observe(table Table, op string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.SinkLatency.WithLabelValues(table.Name, op).Observe(time.Since(start).Seconds())

	status := metrics.StatusOK
	if err != nil {
		status = metrics.StatusError
	}
	metrics.SinkWritesTotal.WithLabelValues(table.Name, op, status).Inc()
	return err
}
