package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/vietddude/ledgersync/internal/infra/storage"
)

// Sink implements storage.Sink directly against PostgreSQL.
// Rows are passed as one JSON array and expanded server side.
type Sink struct {
	db *DB
}

var _ storage.Sink = (*Sink)(nil)

// NewSink creates a PostgreSQL sink.
func NewSink(db *DB) *Sink {
	return &Sink{db: db}
}

// Insert writes a single record.
func (s *Sink) Insert(ctx context.Context, table storage.Table, record any) error {
	row, err := storage.ToRow(record)
	if err != nil {
		return err
	}
	return s.write(ctx, s.db, table, []storage.Row{row}, false)
}

// InsertMany writes a batch of records in one statement.
func (s *Sink) InsertMany(ctx context.Context, table storage.Table, records any) error {
	rows, err := storage.ToRows(records)
	if err != nil {
		return err
	}
	return s.write(ctx, s.db, table, rows, false)
}

// Upsert inserts a record or updates the row with the same primary key.
func (s *Sink) Upsert(ctx context.Context, table storage.Table, record any) error {
	row, err := storage.ToRow(record)
	if err != nil {
		return err
	}
	return s.write(ctx, s.db, table, []storage.Row{row}, true)
}

// ReplaceAll deletes every row and inserts records in one transaction.
func (s *Sink) ReplaceAll(ctx context.Context, table storage.Table, records any) error {
	rows, err := storage.ToRows(records)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+pq.QuoteIdentifier(table.Name)); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table.Name, err)
	}
	if err := s.write(ctx, tx, table, rows, false); err != nil {
		return err
	}
	return tx.Commit()
}

// Close closes the underlying database.
func (s *Sink) Close() error {
	return s.db.Close()
}

func (s *Sink) write(
	ctx context.Context,
	ex sqlx.ExecerContext,
	table storage.Table,
	rows []storage.Row,
	upsert bool,
) error {
	if len(rows) == 0 {
		return nil
	}
	for _, r := range rows {
		if _, err := r.Key(table); err != nil {
			return err
		}
	}

	payload, err := encodeRows(rows)
	if err != nil {
		return err
	}
	query := buildInsert(table, columnsOf(rows), upsert)
	if _, err := ex.ExecContext(ctx, query, payload); err != nil {
		return fmt.Errorf("failed to write %s: %w", table.Name, err)
	}
	return nil
}

// columnsOf returns the sorted union of columns across rows.
func columnsOf(rows []storage.Row) []string {
	seen := make(map[string]struct{})
	for _, r := range rows {
		for c := range r {
			seen[c] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for c := range seen {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// buildInsert renders an INSERT that expands a JSON array parameter into
// table rows. With upsert set, conflicting rows have every non-key column
// overwritten.
func buildInsert(table storage.Table, cols []string, upsert bool) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pq.QuoteIdentifier(c)
	}
	list := strings.Join(quoted, ", ")
	name := pq.QuoteIdentifier(table.Name)

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) SELECT %s FROM json_populate_recordset(NULL::%s, $1::json)",
		name, list, list, name)

	if !upsert {
		return b.String()
	}

	pk := pq.QuoteIdentifier(table.PrimaryKey)
	var sets []string
	for i, c := range cols {
		if c == table.PrimaryKey {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", quoted[i], quoted[i]))
	}
	if len(sets) == 0 {
		fmt.Fprintf(&b, " ON CONFLICT (%s) DO NOTHING", pk)
	} else {
		fmt.Fprintf(&b, " ON CONFLICT (%s) DO UPDATE SET %s", pk, strings.Join(sets, ", "))
	}
	return b.String()
}

func encodeRows(rows []storage.Row) (string, error) {
	data, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("failed to encode rows: %w", err)
	}
	return string(data), nil
}
