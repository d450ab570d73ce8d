package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/ledgersync/internal/indexing/health"
	redisclient "github.com/vietddude/ledgersync/internal/infra/redis"
	"github.com/vietddude/ledgersync/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show synced table sizes and the last reported worker states",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()

	if cfg.Database.URL == "" {
		slog.Warn("No database configured, skipping table counts")
	} else {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer func() {
			_ = db.Close()
		}()

		counts, err := db.TableCounts(ctx)
		if err != nil {
			slog.Error("Failed to count tables", "error", err)
			os.Exit(1)
		}
		gameCount, err := db.GameCount(ctx)
		if err != nil {
			slog.Error("Failed to read game count", "error", err)
			os.Exit(1)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
		_, _ = fmt.Fprintln(w, "TABLE\tROWS")
		for _, c := range counts {
			_, _ = fmt.Fprintf(w, "%s\t%d\n", c.Table, c.Rows)
		}
		_ = w.Flush()
		fmt.Printf("\ngame count: %s\n\n", orDash(gameCount))
	}

	if cfg.Redis.URL != "" {
		printChainStatus(ctx, cfg.Redis)
	}
}

func printChainStatus(ctx context.Context, cfg redisclient.Config) {
	client, err := redisclient.NewClient(cfg)
	if err != nil {
		slog.Error("Failed to connect to redis", "error", err)
		return
	}
	defer func() {
		_ = client.Close()
	}()

	snapshots, err := redisclient.NewStatusStore(client, 0).Load(ctx)
	if err != nil {
		slog.Error("Failed to load chain status", "error", err)
		return
	}

	chains := make([]health.ChainHealth, 0, len(snapshots))
	for _, data := range snapshots {
		var ch health.ChainHealth
		if err := json.Unmarshal(data, &ch); err != nil {
			continue
		}
		chains = append(chains, ch)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i].ChainID < chains[j].ChainID })

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "CHAIN\tROLE\tSTATE\tSTATUS\tCYCLES\tLAST CYCLE")
	for _, ch := range chains {
		last := "-"
		if !ch.LastCycleAt.IsZero() {
			last = ch.LastCycleAt.Format(time.RFC3339)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			ch.ChainID, ch.Role, ch.State, ch.Status, ch.Cycles, last)
	}
	_ = w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
