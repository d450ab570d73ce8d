package emitter

import (
	"context"

	"github.com/vietddude/ledgersync/internal/core/domain"
)

// Emitter announces records that reached the sink
type Emitter interface {
	// Emit sends a single event
	Emit(ctx context.Context, event domain.SyncEvent) error

	// Close closes the emitter connection
	Close() error
}
