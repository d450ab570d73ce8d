package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/ledgersync/internal/infra/storage"
	"github.com/vietddude/ledgersync/internal/infra/storage/postgres"
)

var resetCmd = &cobra.Command{
	Use:   "reset [table...]",
	Short: "Empty synced tables so the next run rewrites them (all tables when none given)",
	Run:   runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) {
	tables := storage.AllTables()
	if len(args) > 0 {
		tables = tables[:0:0]
		for _, name := range args {
			t, ok := storage.TableByName(name)
			if !ok {
				fmt.Printf("Unknown table: %s\n", name)
				os.Exit(1)
			}
			tables = append(tables, t)
		}
	}

	cfg := loadConfig()
	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := db.Truncate(ctx, tables); err != nil {
		slog.Error("Failed to reset tables", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Reset %d table(s)\n", len(tables))
}
