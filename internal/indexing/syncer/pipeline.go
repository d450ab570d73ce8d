// Package syncer runs the query, diff and write cycle that mirrors a chain's
// application state into the sink.
package syncer

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/ledgersync/internal/core/cache"
	"github.com/vietddude/ledgersync/internal/core/domain"
	"github.com/vietddude/ledgersync/internal/indexing/emitter"
	"github.com/vietddude/ledgersync/internal/indexing/metrics"
	"github.com/vietddude/ledgersync/internal/infra/ledger"
	"github.com/vietddude/ledgersync/internal/infra/storage"
)

// Offerer accepts chain ids discovered by a parent chain.
type Offerer interface {
	Offer(ctx context.Context, id domain.ChainID) error
}

// Pipeline is shared by all chain workers. It holds no per-chain state.
type Pipeline struct {
	sink    storage.Sink
	emitter emitter.Emitter
	offerer Offerer
	log     *slog.Logger
	now     func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEmitter sets the change-event emitter.
func WithEmitter(e emitter.Emitter) Option {
	return func(p *Pipeline) { p.emitter = e }
}

// WithOfferer sets where discovered chain ids are sent.
func WithOfferer(o Offerer) Option {
	return func(p *Pipeline) { p.offerer = o }
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// New creates a pipeline writing to sink.
func New(sink storage.Sink, opts ...Option) *Pipeline {
	p := &Pipeline{
		sink: sink,
		log:  slog.Default(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// cycle is the state of one Run call.
type cycle struct {
	id    string
	chain domain.ChainID
	app   ledger.Application
	store *cache.Store
	sink  storage.Sink
	offer Offerer
	log   *slog.Logger
	emit  func(ctx context.Context, kind string, table storage.Table, op domain.WriteOp, keys []string)

	// ids returned by this cycle's tournaments fetch, nil when it did not succeed
	tournamentIDs []string
}

// Run executes one cycle over kinds in order. A failing kind never stops
// the others; the cache only advances for records the sink accepted.
func (p *Pipeline) Run(
	ctx context.Context,
	chain domain.ChainID,
	app ledger.Application,
	store *cache.Store,
	kinds []Kind,
) Result {
	start := p.now()
	res := Result{
		CycleID: uuid.NewString(),
		ChainID: chain,
		Started: start,
	}
	log := p.log.With("chain", chain.Short(), "cycle", res.CycleID)

	c := &cycle{
		id:    res.CycleID,
		chain: chain,
		app:   app,
		store: store,
		sink:  p.sink,
		offer: p.offerer,
		log:   log,
	}
	c.emit = func(ctx context.Context, kind string, table storage.Table, op domain.WriteOp, keys []string) {
		p.emit(ctx, c, kind, table, op, keys)
	}

	for _, k := range kinds {
		if ctx.Err() != nil {
			log.Debug("Cycle cancelled", "remaining_from", k.Name())
			break
		}
		kr := k.sync(ctx, c)
		res.Kinds = append(res.Kinds, kr)
		metrics.RecordSyncTotal.WithLabelValues(chain.Short(), kr.Kind, string(kr.Status)).Inc()
	}

	res.Duration = time.Since(start)
	metrics.CycleDuration.WithLabelValues(chain.Short()).Observe(res.Duration.Seconds())
	metrics.CyclesTotal.WithLabelValues(chain.Short(), res.Outcome()).Inc()

	switch {
	case res.Failed():
		log.Warn("Sync cycle failed", "kinds", len(res.Kinds), "error", res.Err())
	case res.Partial():
		log.Warn("Sync cycle partially succeeded",
			"failures", res.Failures(), "writes", res.Writes(), "error", res.Err())
	default:
		log.Debug("Sync cycle complete", "writes", res.Writes(), "duration", res.Duration)
	}
	return res
}

func (p *Pipeline) emit(
	ctx context.Context,
	c *cycle,
	kind string,
	table storage.Table,
	op domain.WriteOp,
	keys []string,
) {
	c.log.Info("Synced records", "kind", kind, "table", table.Name, "op", op, "keys", len(keys))
	if p.emitter == nil {
		return
	}
	event := domain.SyncEvent{
		ChainID: c.chain,
		Kind:    kind,
		Table:   table.Name,
		Op:      op,
		Keys:    keys,
		CycleID: c.id,
		At:      p.now(),
	}
	if err := p.emitter.Emit(ctx, event); err != nil {
		c.log.Warn("Failed to emit sync event", "kind", kind, "error", err)
	}
}
