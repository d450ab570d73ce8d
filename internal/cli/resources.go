package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/ledgersync/internal/indexing/metrics"
)

var resourcesInterval time.Duration

var resourcesCmd = &cobra.Command{
	Use:   "resources",
	Short: "Log process CPU and memory usage until interrupted",
	Run:   runResources,
}

func init() {
	resourcesCmd.Flags().DurationVar(&resourcesInterval, "interval", 5*time.Second, "sampling interval")
	rootCmd.AddCommand(resourcesCmd)
}

func runResources(cmd *cobra.Command, args []string) {
	initLogging("")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.StartResourceLogger(ctx, resourcesInterval)
	slog.Info("Logging resource usage", "interval", resourcesInterval)
	<-ctx.Done()
}
