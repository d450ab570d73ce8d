package control

import (
	"context"
	"log/slog"

	"github.com/vietddude/ledgersync/internal/core/domain"
	"github.com/vietddude/ledgersync/internal/indexing/metrics"
)

// Spawner ensures a worker runs for a chain.
type Spawner interface {
	EnsureRunning(ctx context.Context, id domain.ChainID) error
}

// Discovery carries chain ids found by parent chains to the manager. Any
// number of workers may offer; a single consumer drains the queue.
type Discovery struct {
	queue   chan domain.ChainID
	spawner Spawner
	log     *slog.Logger
}

// NewDiscovery creates a discovery queue holding up to buffer pending ids.
func NewDiscovery(spawner Spawner, buffer int) *Discovery {
	if buffer <= 0 {
		buffer = 64
	}
	return &Discovery{
		queue:   make(chan domain.ChainID, buffer),
		spawner: spawner,
		log:     slog.Default().With("component", "discovery"),
	}
}

// Offer queues id, blocking while the queue is full. Ids are never dropped;
// the only way out of a full queue is ctx being done.
func (d *Discovery) Offer(ctx context.Context, id domain.ChainID) error {
	select {
	case d.queue <- id:
		metrics.DiscoveryOffersTotal.Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run consumes offered ids until ctx is done. Spawns run one at a time and a
// failed spawn does not stop the consumer.
func (d *Discovery) Run(ctx context.Context) error {
	d.log.Debug("Discovery consumer started")
	for {
		select {
		case <-ctx.Done():
			d.log.Debug("Discovery consumer stopped")
			return nil
		case id := <-d.queue:
			if err := d.spawner.EnsureRunning(ctx, id); err != nil {
				d.log.Debug("Offered chain not started", "chain", id.Short(), "error", err)
			}
		}
	}
}
