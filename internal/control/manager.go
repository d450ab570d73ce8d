package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/vietddude/ledgersync/internal/core/domain"
	"github.com/vietddude/ledgersync/internal/core/worker"
	"github.com/vietddude/ledgersync/internal/indexing/metrics"
	"github.com/vietddude/ledgersync/internal/infra/ledger"
)

// ErrManagerStopped is returned by spawns attempted after Shutdown.
var ErrManagerStopped = errors.New("chain manager stopped")

// ChainSpec configures the worker of one statically declared chain.
type ChainSpec struct {
	Role      domain.ChainRole
	Discovery bool
}

// ManagerConfig holds the settings shared by every spawned worker.
type ManagerConfig struct {
	AppID               string
	Credentials         domain.Credentials
	Chains              map[domain.ChainID]ChainSpec
	ChildRole           domain.ChainRole // role of chains not listed in Chains
	MaxConcurrentSpawns int
	ResubscribeDelay    time.Duration
}

// Manager owns the registry of running chain workers. At most one worker
// exists per chain id.
type Manager struct {
	cfg      ManagerConfig
	client   ledger.Client
	pipeline worker.Runner
	log      *slog.Logger

	// workers run under ctx, not under the context of the caller that spawned them
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	workers map[domain.ChainID]*worker.Worker
	stopped bool

	spawns singleflight.Group
	sem    *semaphore.Weighted
}

// NewManager creates a chain manager.
func NewManager(client ledger.Client, pipeline worker.Runner, cfg ManagerConfig) *Manager {
	if cfg.MaxConcurrentSpawns <= 0 {
		cfg.MaxConcurrentSpawns = 4
	}
	if cfg.ChildRole == "" {
		cfg.ChildRole = domain.RoleTournament
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:      cfg,
		client:   client,
		pipeline: pipeline,
		log:      slog.Default().With("component", "manager"),
		ctx:      ctx,
		cancel:   cancel,
		workers:  make(map[domain.ChainID]*worker.Worker),
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrentSpawns)),
	}
}

// EnsureRunning makes sure a worker exists for id. Failures are logged and
// returned; nothing is registered for a chain that failed to spawn, so a
// later call tries again.
func (m *Manager) EnsureRunning(ctx context.Context, id domain.ChainID) error {
	if _, err := m.TrySpawn(ctx, id); err != nil {
		m.log.Warn("Failed to ensure chain worker", "chain", id.Short(), "error", err)
		return err
	}
	return nil
}

// TrySpawn returns the worker for id, creating and starting it when absent.
// Concurrent calls for the same id share one connection attempt and all
// observe the same worker.
func (m *Manager) TrySpawn(ctx context.Context, raw domain.ChainID) (*worker.Worker, error) {
	id, err := domain.ParseChainID(raw.String())
	if err != nil {
		countSpawn(err)
		return nil, err
	}

	if w, ok := m.Get(id); ok {
		return w, nil
	}

	ch := m.spawns.DoChan(id.String(), func() (any, error) {
		return m.spawn(id)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*worker.Worker), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// spawn runs once per shared attempt and records its outcome.
func (m *Manager) spawn(id domain.ChainID) (*worker.Worker, error) {
	w, started, err := m.start(id)
	if err != nil || started {
		countSpawn(err)
	}
	return w, err
}

func countSpawn(err error) {
	status := metrics.StatusOK
	if err != nil {
		status = metrics.StatusError
	}
	metrics.SpawnsTotal.WithLabelValues(status).Inc()
}

// start reports started=false when a worker for id already existed.
func (m *Manager) start(id domain.ChainID) (*worker.Worker, bool, error) {
	if w, ok, err := m.lookup(id); ok || err != nil {
		return w, false, err
	}

	// Connecting is slow and happens outside the registry lock.
	if err := m.sem.Acquire(m.ctx, 1); err != nil {
		return nil, false, ErrManagerStopped
	}
	chain, err := m.client.EnsureChain(m.ctx, id, m.cfg.Credentials)
	m.sem.Release(1)
	if err != nil {
		return nil, false, fmt.Errorf("connect chain %s: %w", id.Short(), err)
	}

	spec := m.specFor(id)
	w := worker.New(chain, m.pipeline, worker.Config{
		AppID:            m.cfg.AppID,
		Role:             spec.Role,
		Discovery:        spec.Discovery,
		ResubscribeDelay: m.cfg.ResubscribeDelay,
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil, false, ErrManagerStopped
	}
	if existing, ok := m.workers[id]; ok {
		// Lost the race; the new worker was never started.
		return existing, false, nil
	}
	m.workers[id] = w

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer metrics.WorkersActive.Dec()
		w.Start(m.ctx)
	}()

	metrics.WorkersActive.Inc()
	m.log.Info("Chain worker started",
		"chain", id.Short(), "role", string(spec.Role), "discovery", spec.Discovery)
	return w, true, nil
}

func (m *Manager) lookup(id domain.ChainID) (*worker.Worker, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil, false, ErrManagerStopped
	}
	w, ok := m.workers[id]
	return w, ok, nil
}

func (m *Manager) specFor(id domain.ChainID) ChainSpec {
	if spec, ok := m.cfg.Chains[id]; ok {
		if spec.Role == "" {
			spec.Role = domain.RoleGame
		}
		return spec
	}
	return ChainSpec{Role: m.cfg.ChildRole}
}

// Get returns the worker for id.
func (m *Manager) Get(id domain.ChainID) (*worker.Worker, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workers[id]
	return w, ok
}

// Len returns the number of registered workers.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workers)
}

// Workers returns the registered workers ordered by chain id.
func (m *Manager) Workers() []*worker.Worker {
	m.mu.Lock()
	out := make([]*worker.Worker, 0, len(m.workers))
	for _, w := range m.workers {
		out = append(out, w)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ChainID() < out[j].ChainID() })
	return out
}

// Statuses returns a snapshot of every worker.
func (m *Manager) Statuses() []worker.Status {
	workers := m.Workers()
	out := make([]worker.Status, 0, len(workers))
	for _, w := range workers {
		out = append(out, w.Status())
	}
	return out
}

// Shutdown stops every worker and waits for them to exit, bounded by ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.log.Info("All chain workers stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for chain workers: %w", ctx.Err())
	}
}
