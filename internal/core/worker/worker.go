package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vietddude/ledgersync/internal/core/cache"
	"github.com/vietddude/ledgersync/internal/core/domain"
	"github.com/vietddude/ledgersync/internal/indexing/metrics"
	"github.com/vietddude/ledgersync/internal/indexing/syncer"
	"github.com/vietddude/ledgersync/internal/infra/ledger"
)

// State is the lifecycle state of a chain worker.
type State int32

const (
	StateIdle State = iota
	StateSubscribed
	StateSyncing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubscribed:
		return "subscribed"
	case StateSyncing:
		return "syncing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Runner executes one sync cycle.
type Runner interface {
	Run(
		ctx context.Context,
		chain domain.ChainID,
		app ledger.Application,
		store *cache.Store,
		kinds []syncer.Kind,
	) syncer.Result
}

// maxResubscribeDelay caps the wait between failed subscription attempts.
const maxResubscribeDelay = time.Minute

// Config describes what a worker synchronizes.
type Config struct {
	AppID            string
	Role             domain.ChainRole
	Discovery        bool
	ResubscribeDelay time.Duration
}

// Status is a snapshot of a worker for health reporting.
type Status struct {
	ChainID       domain.ChainID `json:"chain_id"`
	Role          string         `json:"role"`
	Discovery     bool           `json:"discovery"`
	State         string         `json:"state"`
	Notifications uint64         `json:"notifications"`
	Cycles        uint64         `json:"cycles"`
	LastCycleAt   time.Time      `json:"last_cycle_at"`
	LastOutcome   string         `json:"last_outcome,omitempty"`
	LastFailures  int            `json:"last_failures"`
	StartedAt     time.Time      `json:"started_at"`
}

// Worker couples one chain's notification stream, cache and sync pipeline.
// Cycles run strictly one at a time; notifications arriving mid-cycle wait
// in the subscription buffer.
type Worker struct {
	chain    ledger.Chain
	app      ledger.Application
	pipeline Runner
	store    *cache.Store
	kinds    []syncer.Kind
	cfg      Config
	log      *slog.Logger

	state         atomic.Int32
	notifications atomic.Uint64

	mu     sync.RWMutex
	cycles uint64
	last   syncer.Result
	start  time.Time
}

var _ ledger.Consumer = (*Worker)(nil)

// New creates a worker for a connected chain.
func New(chain ledger.Chain, pipeline Runner, cfg Config) *Worker {
	if cfg.ResubscribeDelay <= 0 {
		cfg.ResubscribeDelay = 2 * time.Second
	}
	if cfg.Role == "" {
		cfg.Role = domain.RoleGame
	}
	return &Worker{
		chain:    chain,
		app:      chain.Application(cfg.AppID),
		pipeline: pipeline,
		store:    cache.New(),
		kinds:    syncer.Battery(cfg.Role, cfg.Discovery),
		cfg:      cfg,
		log: slog.Default().With(
			"chain", chain.ID().Short(),
			"role", string(cfg.Role),
		),
	}
}

// ChainID returns the chain this worker follows.
func (w *Worker) ChainID() domain.ChainID { return w.chain.ID() }

// State returns the current lifecycle state.
func (w *Worker) State() State { return State(w.state.Load()) }

func (w *Worker) setState(s State) { w.state.Store(int32(s)) }

// Start sends the subscribe mutation and processes notifications until ctx
// is cancelled. A closed stream is re-established after the resubscribe
// delay, doubling while subscribing keeps failing.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	w.start = time.Now()
	w.mu.Unlock()
	w.setState(StateIdle)
	defer w.setState(StateStopped)

	if _, err := w.app.Query(ctx, syncer.SubscribeDocument()); err != nil {
		w.log.Warn("Subscribe mutation failed, listening anyway", "error", err)
	}

	backoff := Backoff{InitialDelay: w.cfg.ResubscribeDelay, MaxDelay: maxResubscribeDelay}
	attempt := 0
	for {
		stream, err := w.chain.Subscribe(ctx)
		if err != nil {
			w.log.Warn("Failed to subscribe to notifications", "error", err)
		} else {
			attempt = 0
			w.setState(StateSubscribed)
			w.log.Info("Listening for notifications")
			err = ledger.Deliver(ctx, stream, w, func(err error) {
				w.log.Debug("Cycle finished with failures", "error", err)
			})
		}

		if ctx.Err() != nil {
			w.log.Info("Worker stopped")
			return
		}
		w.setState(StateIdle)
		delay := backoff.Delay(attempt)
		attempt++
		w.log.Warn("Notification stream ended, resubscribing", "error", err, "delay", delay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// HandleNotification runs one sync cycle.
func (w *Worker) HandleNotification(ctx context.Context, n ledger.Notification) error {
	w.notifications.Add(1)
	metrics.NotificationsTotal.WithLabelValues(w.chain.ID().Short()).Inc()
	w.log.Debug("Notification received", "reason", n.Reason, "height", n.Height)

	w.setState(StateSyncing)
	res := w.pipeline.Run(ctx, w.chain.ID(), w.app, w.store, w.kinds)
	w.setState(StateSubscribed)

	w.mu.Lock()
	w.cycles++
	w.last = res
	w.mu.Unlock()

	return res.Err()
}

// Status returns a snapshot for health reporting.
func (w *Worker) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()

	st := Status{
		ChainID:       w.chain.ID(),
		Role:          string(w.cfg.Role),
		Discovery:     w.cfg.Discovery,
		State:         w.State().String(),
		Notifications: w.notifications.Load(),
		Cycles:        w.cycles,
		StartedAt:     w.start,
	}
	if w.cycles > 0 {
		st.LastCycleAt = w.last.Started
		st.LastOutcome = w.last.Outcome()
		st.LastFailures = w.last.Failures()
	}
	return st
}
