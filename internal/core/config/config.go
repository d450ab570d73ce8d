package config

import (
	"time"

	redisclient "github.com/vietddude/ledgersync/internal/infra/redis"
	"github.com/vietddude/ledgersync/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server        ServerConfig       `yaml:"server"`
	Logging       LoggingConfig      `yaml:"logging"`
	Ledger        LedgerConfig       `yaml:"ledger"`
	ApplicationID string             `yaml:"application_id"`
	Chains        []ChainConfig      `yaml:"chains"`
	Discovery     DiscoveryConfig    `yaml:"discovery"`
	Sink          SinkConfig         `yaml:"sink"`
	Database      postgres.Config    `yaml:"database"`
	Redis         redisclient.Config `yaml:"redis"`
}

// ServerConfig holds HTTP and gRPC health server settings.
type ServerConfig struct {
	Port     int `yaml:"port"`
	GRPCPort int `yaml:"grpc_port"` // 0 = disabled
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// LedgerConfig points at the node service exposing chain applications.
type LedgerConfig struct {
	URL                string        `yaml:"url"`
	WSURL              string        `yaml:"ws_url"`
	Token              string        `yaml:"token"`
	Timeout            time.Duration `yaml:"timeout"`
	NotificationBuffer int           `yaml:"notification_buffer"`
	ResubscribeDelay   time.Duration `yaml:"resubscribe_delay"`
}

// ChainConfig declares a chain watched from startup.
type ChainConfig struct {
	ID        string `yaml:"id"`
	Role      string `yaml:"role"`      // game, tournament
	Discovery bool   `yaml:"discovery"` // chain lists child chains to watch
}

// DiscoveryConfig controls fan-out of chains found by a parent chain.
type DiscoveryConfig struct {
	Buffer              int    `yaml:"buffer"`
	ChildRole           string `yaml:"child_role"`
	MaxConcurrentSpawns int    `yaml:"max_concurrent_spawns"`
}

// SinkConfig selects where synchronized records are written.
type SinkConfig struct {
	Type      string          `yaml:"type"` // postgrest, postgres, memory
	PostgREST PostgRESTConfig `yaml:"postgrest"`
}

// PostgRESTConfig holds REST sink credentials.
type PostgRESTConfig struct {
	URL     string        `yaml:"url"`
	Key     string        `yaml:"key"`
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
}

const (
	SinkPostgREST = "postgrest"
	SinkPostgres  = "postgres"
	SinkMemory    = "memory"
)
