package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/vietddude/ledgersync/internal/core/domain"
	"github.com/vietddude/ledgersync/internal/infra/storage"
)

// TableCount is the number of rows held by a sync table.
type TableCount struct {
	Table string `db:"table_name"`
	Rows  int64  `db:"rows"`
}

// TableCounts returns row counts for every sync table.
func (db *DB) TableCounts(ctx context.Context) ([]TableCount, error) {
	counts := make([]TableCount, 0, len(storage.AllTables()))
	for _, t := range storage.AllTables() {
		var n int64
		query := "SELECT count(*) FROM " + pq.QuoteIdentifier(t.Name)
		if err := db.GetContext(ctx, &n, query); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", t.Name, err)
		}
		counts = append(counts, TableCount{Table: t.Name, Rows: n})
	}
	return counts, nil
}

// GameCount returns the stored game counter, or "" when no count was synced yet.
func (db *DB) GameCount(ctx context.Context) (string, error) {
	var count string
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
		pq.QuoteIdentifier("count"),
		pq.QuoteIdentifier(storage.TableGameCount.Name),
		pq.QuoteIdentifier(storage.TableGameCount.PrimaryKey))
	err := db.GetContext(ctx, &count, query, domain.GameCountSingletonID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read game count: %w", err)
	}
	return count, nil
}

// Truncate empties the given sync tables in one statement.
func (db *DB) Truncate(ctx context.Context, tables []storage.Table) error {
	if len(tables) == 0 {
		return nil
	}
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		names = append(names, pq.QuoteIdentifier(t.Name))
	}
	if _, err := db.ExecContext(ctx, "TRUNCATE "+strings.Join(names, ", ")); err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}
	return nil
}
