package emitter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vietddude/ledgersync/internal/core/domain"
	"github.com/vietddude/ledgersync/internal/indexing/metrics"
)

// Publisher is the subset of the redis client used to publish events.
type Publisher interface {
	Channel(table string) string
	Publish(ctx context.Context, channel string, payload []byte) (int64, error)
}

// RedisEmitter publishes events as JSON on one channel per table.
type RedisEmitter struct {
	pub Publisher
}

func NewRedisEmitter(pub Publisher) *RedisEmitter {
	return &RedisEmitter{pub: pub}
}

func (e *RedisEmitter) Emit(ctx context.Context, event domain.SyncEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := e.pub.Publish(ctx, e.pub.Channel(event.Table), payload); err != nil {
		metrics.EventsEmittedTotal.WithLabelValues(event.Table, metrics.StatusError).Inc()
		return err
	}
	metrics.EventsEmittedTotal.WithLabelValues(event.Table, metrics.StatusOK).Inc()
	return nil
}

// Close is a no-op; the redis client is owned by the service.
func (e *RedisEmitter) Close() error { return nil }
