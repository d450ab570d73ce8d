package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// ErrNotSlice is returned when a batch operation receives a non-slice value
var ErrNotSlice = errors.New("records must be a slice")

// Table names an external table and its primary key column.
type Table struct {
	Name       string
	PrimaryKey string
}

func (t Table) String() string { return t.Name }

// Tables written by the sync pipeline.
var (
	TableGameCount    = Table{Name: "gameCount", PrimaryKey: "id"}
	TableLeaderboard  = Table{Name: "leaderboard", PrimaryKey: "id"}
	TableMatchHistory = Table{Name: "matchHistory", PrimaryKey: "id"}
	TableTournaments  = Table{Name: "tournaments", PrimaryKey: "tournament_id"}
	TableParticipants = Table{Name: "tournament_participants", PrimaryKey: "id"}
)

// AllTables lists every table in creation order.
func AllTables() []Table {
	return []Table{
		TableGameCount,
		TableLeaderboard,
		TableMatchHistory,
		TableTournaments,
		TableParticipants,
	}
}

// TableByName looks up a sync table.
func TableByName(name string) (Table, bool) {
	for _, t := range AllTables() {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Sink persists records to an external table store.
// Records are any JSON-serializable value; batch operations take a slice.
type Sink interface {
	// Insert writes a single record
	Insert(ctx context.Context, table Table, record any) error

	// InsertMany writes a batch of records
	InsertMany(ctx context.Context, table Table, records any) error

	// Upsert inserts a record or merges it into the row with the same primary key
	Upsert(ctx context.Context, table Table, record any) error

	// ReplaceAll removes every row of the table and inserts records
	ReplaceAll(ctx context.Context, table Table, records any) error

	// Close releases the sink's resources
	Close() error
}

// Row is a record flattened to its JSON columns.
type Row map[string]any

// Key returns the row's primary key value as a string.
func (r Row) Key(table Table) (string, error) {
	v, ok := r[table.PrimaryKey]
	if !ok || v == nil {
		return "", fmt.Errorf("%s: record missing primary key %q", table.Name, table.PrimaryKey)
	}
	return fmt.Sprint(v), nil
}

// ToRow converts one record to its column map.
func ToRow(record any) (Row, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	var row Row
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&row); err != nil {
		return nil, fmt.Errorf("record is not an object: %w", err)
	}
	return row, nil
}

// ToRows converts a slice of records to column maps.
func ToRows(records any) ([]Row, error) {
	v := reflect.ValueOf(records)
	if v.Kind() != reflect.Slice {
		return nil, ErrNotSlice
	}
	rows := make([]Row, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		row, err := ToRow(v.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Len returns the number of records in a batch, or 1 for a single record.
func Len(records any) int {
	v := reflect.ValueOf(records)
	if v.Kind() == reflect.Slice {
		return v.Len()
	}
	return 1
}
