package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/ledgersync/internal/control"
	"github.com/vietddude/ledgersync/internal/core/config"
	"github.com/vietddude/ledgersync/internal/indexing/metrics"
)

var (
	cfgPath     string
	isDebug     bool
	withMetrics bool
	appID       string
	extraChains []string
)

var rootCmd = &cobra.Command{
	Use:   "ledgersync",
	Short: "Ledger application sync service",
	Long: `ledgersync mirrors the state of ledger chain applications into a table store.
Each chain is followed by a worker that re-syncs on every notification.`,
	Run: runWatch,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the configured chains and sync their records",
	Run:   runWatch,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")

	for _, cmd := range []*cobra.Command{rootCmd, watchCmd} {
		cmd.Flags().StringVar(&appID, "app-id", "", "application id queried on every chain (overrides config)")
		cmd.Flags().StringSliceVar(&extraChains, "chain", nil, "additional chain id to follow (repeatable)")
		cmd.Flags().BoolVar(&withMetrics, "metrics", false, "log process CPU and memory usage")
	}
	rootCmd.AddCommand(watchCmd)
}

// loadConfig reads .env and the config file, then initializes logging.
func loadConfig() *config.AppConfig {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	initLogging(cfg.Logging.Level)
	return cfg
}

func initLogging(level string) {
	slogLevel := slog.LevelInfo
	if isDebug || level == "debug" {
		slogLevel = slog.LevelDebug
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
}

func runWatch(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	if appID != "" {
		cfg.ApplicationID = appID
	}
	for _, id := range extraChains {
		cfg.Chains = append(cfg.Chains, config.ChainConfig{ID: id})
	}
	if cfg.ApplicationID == "" {
		slog.Error("No application id configured, set application_id or --app-id")
		os.Exit(1)
	}

	app, err := control.NewService(cfg)
	if err != nil {
		slog.Error("Failed to initialize service", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if withMetrics {
		metrics.StartResourceLogger(ctx, 5*time.Second)
	}

	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start service", "error", err)
		os.Exit(1)
	}

	slog.Info("Service running", "config", cfgPath, "application", cfg.ApplicationID)

	sig := <-sigChan
	slog.Info("Received signal, shutting down...", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}
}
