// Package control wires the chain manager, discovery and servers into one
// runnable service.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/ledgersync/internal/core/config"
	"github.com/vietddude/ledgersync/internal/core/domain"
	"github.com/vietddude/ledgersync/internal/indexing/emitter"
	"github.com/vietddude/ledgersync/internal/indexing/health"
	"github.com/vietddude/ledgersync/internal/indexing/syncer"
	"github.com/vietddude/ledgersync/internal/infra/ledger"
	redisclient "github.com/vietddude/ledgersync/internal/infra/redis"
	"github.com/vietddude/ledgersync/internal/infra/storage"
	"github.com/vietddude/ledgersync/internal/infra/storage/memory"
	"github.com/vietddude/ledgersync/internal/infra/storage/postgres"
	"github.com/vietddude/ledgersync/internal/infra/storage/postgrest"
)

// Service is the main application struct that manages the sync lifecycle.
type Service struct {
	cfg       *config.AppConfig
	chains    []domain.ChainID
	manager   *Manager
	discovery *Discovery
	sink      storage.Sink
	emitter   emitter.Emitter
	db        *postgres.DB
	redis     *redisclient.Client
	status    *redisclient.StatusStore

	healthMon    *health.Monitor
	healthServer *health.Server
	grpcServer   *health.GRPCServer

	cancel context.CancelFunc
	group  *errgroup.Group
	log    *slog.Logger
}

// Option overrides a dependency the service would otherwise build from config.
type Option func(*options)

type options struct {
	client ledger.Client
	sink   storage.Sink
}

// WithLedgerClient replaces the node service client.
func WithLedgerClient(c ledger.Client) Option {
	return func(o *options) { o.client = c }
}

// WithSink replaces the configured sink.
func WithSink(s storage.Sink) Option {
	return func(o *options) { o.sink = s }
}

// NewService creates a Service with all dependencies initialized.
func NewService(cfg *config.AppConfig, opts ...Option) (*Service, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	s := &Service{cfg: cfg, log: slog.Default()}

	// 1. Chains declared in config
	specs := make(map[domain.ChainID]ChainSpec, len(cfg.Chains))
	for _, c := range cfg.Chains {
		id, err := domain.ParseChainID(c.ID)
		if err != nil {
			return nil, fmt.Errorf("chain config: %w", err)
		}
		role, err := domain.ParseChainRole(c.Role)
		if err != nil {
			return nil, fmt.Errorf("chain %s: %w", id.Short(), err)
		}
		specs[id] = ChainSpec{Role: role, Discovery: c.Discovery}
		s.chains = append(s.chains, id)
	}
	childRole, err := domain.ParseChainRole(cfg.Discovery.ChildRole)
	if err != nil {
		return nil, fmt.Errorf("discovery config: %w", err)
	}

	// 2. Storage
	sink := o.sink
	if sink == nil {
		sink, err = s.buildSink()
		if err != nil {
			s.closeClients()
			return nil, err
		}
	}
	s.sink = storage.Instrument(sink)

	// 3. Redis events and status snapshots
	s.emitter = emitter.NewLogEmitter(slog.Default())
	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, events are logged only", "error", err)
		} else {
			s.redis = client
			s.status = redisclient.NewStatusStore(client, time.Minute)
			s.emitter = emitter.NewRedisEmitter(client)
		}
	}

	// 4. Ledger, pipeline, manager, discovery
	client := o.client
	if client == nil {
		client = ledger.NewNodeClient(ledger.Config{
			URL:     cfg.Ledger.URL,
			WSURL:   cfg.Ledger.WSURL,
			Timeout: cfg.Ledger.Timeout,
			Buffer:  cfg.Ledger.NotificationBuffer,
		})
	}

	offers := &deferredOfferer{}
	pipeline := syncer.New(s.sink,
		syncer.WithEmitter(s.emitter),
		syncer.WithOfferer(offers),
	)
	s.manager = NewManager(client, pipeline, ManagerConfig{
		AppID:               cfg.ApplicationID,
		Credentials:         domain.Credentials{Token: cfg.Ledger.Token},
		Chains:              specs,
		ChildRole:           childRole,
		MaxConcurrentSpawns: cfg.Discovery.MaxConcurrentSpawns,
		ResubscribeDelay:    cfg.Ledger.ResubscribeDelay,
	})
	s.discovery = NewDiscovery(s.manager, cfg.Discovery.Buffer)
	offers.target = s.discovery

	// 5. Health
	s.healthMon = health.NewMonitor(s.manager, 10*time.Second)
	s.healthServer = health.NewServer(s.healthMon, cfg.Server.Port)
	if cfg.Server.GRPCPort > 0 {
		s.grpcServer = health.NewGRPCServer(cfg.Server.GRPCPort)
		s.healthMon.OnReport(s.grpcServer.Update)
	}
	if s.status != nil {
		s.healthMon.OnReport(s.saveStatus)
	}

	return s, nil
}

func (s *Service) buildSink() (storage.Sink, error) {
	switch s.cfg.Sink.Type {
	case config.SinkMemory:
		slog.Info("Using memory sink")
		return memory.NewSink(), nil

	case config.SinkPostgres:
		db, err := postgres.NewDB(context.Background(), s.cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		s.db = db
		if s.cfg.Database.Migrate {
			if err := db.Migrate(context.Background()); err != nil {
				return nil, fmt.Errorf("failed to migrate db: %w", err)
			}
		}
		slog.Info("Using PostgreSQL sink")
		return postgres.NewSink(db), nil

	case config.SinkPostgREST:
		sink, err := postgrest.New(postgrest.Config{
			URL:     s.cfg.Sink.PostgREST.URL,
			Key:     s.cfg.Sink.PostgREST.Key,
			Timeout: s.cfg.Sink.PostgREST.Timeout,
			Retries: s.cfg.Sink.PostgREST.Retries,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("Using PostgREST sink", "url", s.cfg.Sink.PostgREST.URL)
		return sink, nil

	default:
		return nil, fmt.Errorf("unknown sink type %q", s.cfg.Sink.Type)
	}
}

// Manager returns the chain manager.
func (s *Service) Manager() *Manager { return s.manager }

// Health returns the health monitor.
func (s *Service) Health() *health.Monitor { return s.healthMon }

// Start launches the background tasks and the workers of the configured
// chains. A chain that fails to start is logged and does not fail Start;
// discovery or a restart will retry it.
func (s *Service) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	g, gctx := errgroup.WithContext(runCtx)
	s.group = g

	// Start Health Server
	g.Go(func() error {
		if err := s.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Health server failed", "error", err)
		}
		return nil
	})
	if s.grpcServer != nil {
		g.Go(func() error {
			if err := s.grpcServer.Start(); err != nil {
				s.log.Error("gRPC health server failed", "error", err)
			}
			return nil
		})
	}

	// Start Health Monitor Background Tasks
	g.Go(func() error {
		s.healthMon.Start(gctx)
		return nil
	})

	// Start DB Metrics Collector
	if s.db != nil {
		s.db.StartMetricsCollector(gctx)
	}

	// Start Discovery Consumer
	g.Go(func() error {
		return s.discovery.Run(gctx)
	})

	// Start Workers
	for _, id := range s.chains {
		_ = s.manager.EnsureRunning(ctx, id)
	}

	s.log.Info("Service started", "chains", len(s.chains), "running", s.manager.Len())
	return nil
}

// Stop stops all workers and background tasks, then releases clients.
func (s *Service) Stop(ctx context.Context) error {
	var errs []error

	if err := s.manager.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if s.cancel != nil {
		s.cancel()
	}
	if err := s.healthServer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("health server: %w", err))
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.group != nil {
		if err := s.group.Wait(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := s.sink.Close(); err != nil {
		errs = append(errs, fmt.Errorf("sink: %w", err))
	}
	// The postgres sink closed the database.
	s.db = nil
	if err := s.emitter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("emitter: %w", err))
	}
	s.closeClients()

	s.log.Info("Service stopped")
	return errors.Join(errs...)
}

func (s *Service) closeClients() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.log.Warn("Failed to close redis", "error", err)
		}
		s.redis = nil
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Warn("Failed to close database", "error", err)
		}
		s.db = nil
	}
}

func (s *Service) saveStatus(report health.HealthReport) {
	snapshots := make(map[string][]byte, len(report.Chains))
	for id, chain := range report.Chains {
		data, err := json.Marshal(chain)
		if err != nil {
			continue
		}
		snapshots[id] = data
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.status.Save(ctx, snapshots); err != nil {
		s.log.Warn("Failed to save chain status", "error", err)
	}
}

// deferredOfferer breaks the construction cycle between the pipeline, which
// offers discovered ids, and the discovery queue, which needs the manager.
type deferredOfferer struct {
	target syncer.Offerer
}

func (d *deferredOfferer) Offer(ctx context.Context, id domain.ChainID) error {
	return d.target.Offer(ctx, id)
}
