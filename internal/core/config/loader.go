package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Ledger.URL == "" {
		cfg.Ledger.URL = "http://localhost:8080"
	}
	cfg.Ledger.URL = strings.TrimRight(cfg.Ledger.URL, "/")
	if cfg.Ledger.WSURL == "" {
		cfg.Ledger.WSURL = DeriveWSURL(cfg.Ledger.URL)
	}
	if cfg.Ledger.Timeout == 0 {
		cfg.Ledger.Timeout = 10 * time.Second
	}
	if cfg.Ledger.NotificationBuffer <= 0 {
		cfg.Ledger.NotificationBuffer = 64
	}
	if cfg.Ledger.ResubscribeDelay == 0 {
		cfg.Ledger.ResubscribeDelay = 2 * time.Second
	}

	if cfg.Discovery.Buffer <= 0 {
		cfg.Discovery.Buffer = 64
	}
	if cfg.Discovery.ChildRole == "" {
		cfg.Discovery.ChildRole = "tournament"
	}
	if cfg.Discovery.MaxConcurrentSpawns <= 0 {
		cfg.Discovery.MaxConcurrentSpawns = 4
	}

	if cfg.Sink.Type == "" {
		cfg.Sink.Type = SinkPostgREST
	}
	// Supabase deployments only export these two variables.
	if cfg.Sink.PostgREST.URL == "" {
		cfg.Sink.PostgREST.URL = os.Getenv("SUPABASE_URL")
	}
	if cfg.Sink.PostgREST.Key == "" {
		cfg.Sink.PostgREST.Key = os.Getenv("SUPABASE_KEY")
	}
	if cfg.Sink.PostgREST.Timeout == 0 {
		cfg.Sink.PostgREST.Timeout = 10 * time.Second
	}

	if cfg.Redis.ChannelPrefix == "" {
		cfg.Redis.ChannelPrefix = "ledgersync"
	}
}

// DeriveWSURL maps the node service HTTP base to its websocket endpoint.
func DeriveWSURL(httpURL string) string {
	u := strings.TrimRight(httpURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}
