package emitter

import (
	"context"
	"log/slog"

	"github.com/vietddude/ledgersync/internal/core/domain"
	"github.com/vietddude/ledgersync/internal/indexing/metrics"
)

// LogEmitter writes events to the structured log.
type LogEmitter struct {
	log *slog.Logger
}

func NewLogEmitter(log *slog.Logger) *LogEmitter {
	if log == nil {
		log = slog.Default()
	}
	return &LogEmitter{log: log}
}

func (e *LogEmitter) Emit(ctx context.Context, event domain.SyncEvent) error {
	e.log.Info("Records synced",
		"chain", event.ChainID.Short(),
		"kind", event.Kind,
		"table", event.Table,
		"op", event.Op,
		"keys", len(event.Keys),
		"cycle", event.CycleID,
	)
	metrics.EventsEmittedTotal.WithLabelValues(event.Table, metrics.StatusOK).Inc()
	return nil
}

func (e *LogEmitter) Close() error { return nil }
