package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vietddude/ledgersync/internal/core/domain"
	"github.com/vietddude/ledgersync/internal/infra/storage"
)

// Write records one operation received by the sink.
type Write struct {
	Table string
	Op    domain.WriteOp
	Keys  []string
}

// Sink is an in-process storage.Sink. It keeps rows per table and a log of
// every write, and can be told to fail writes to a table.
type Sink struct {
	mu       sync.RWMutex
	tables   map[string]map[string]storage.Row
	writes   []Write
	failures map[string]error
}

var _ storage.Sink = (*Sink)(nil)

func NewSink() *Sink {
	return &Sink{
		tables:   make(map[string]map[string]storage.Row),
		failures: make(map[string]error),
	}
}

// FailTable makes every following write to table return err. A nil err clears it.
func (s *Sink) FailTable(table string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, table)
		return
	}
	s.failures[table] = err
}

func (s *Sink) Insert(ctx context.Context, table storage.Table, record any) error {
	row, err := storage.ToRow(record)
	if err != nil {
		return err
	}
	return s.apply(table, domain.WriteInsert, []storage.Row{row}, false)
}

func (s *Sink) InsertMany(ctx context.Context, table storage.Table, records any) error {
	rows, err := storage.ToRows(records)
	if err != nil {
		return err
	}
	return s.apply(table, domain.WriteInsert, rows, false)
}

func (s *Sink) Upsert(ctx context.Context, table storage.Table, record any) error {
	row, err := storage.ToRow(record)
	if err != nil {
		return err
	}
	return s.apply(table, domain.WriteUpsert, []storage.Row{row}, false)
}

func (s *Sink) ReplaceAll(ctx context.Context, table storage.Table, records any) error {
	rows, err := storage.ToRows(records)
	if err != nil {
		return err
	}
	return s.apply(table, domain.WriteReplaceAll, rows, true)
}

func (s *Sink) Close() error { return nil }

func (s *Sink) apply(table storage.Table, op domain.WriteOp, rows []storage.Row, clear bool) error {
	keys := make([]string, 0, len(rows))
	for _, r := range rows {
		k, err := r.Key(table)
		if err != nil {
			return err
		}
		keys = append(keys, k)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.writes = append(s.writes, Write{Table: table.Name, Op: op, Keys: keys})
	if err := s.failures[table.Name]; err != nil {
		return err
	}

	t := s.tables[table.Name]
	if t == nil || clear {
		t = make(map[string]storage.Row)
		s.tables[table.Name] = t
	}
	for i, r := range rows {
		t[keys[i]] = r
	}
	return nil
}

// Rows returns the rows of a table ordered by primary key.
func (s *Sink) Rows(table string) []storage.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := s.tables[table]
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]storage.Row, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, t[k])
	}
	return rows
}

// Get returns one row by primary key.
func (s *Sink) Get(table, key string) (storage.Row, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.tables[table][key]
	return r, ok
}

// Writes returns a copy of the write log.
func (s *Sink) Writes() []Write {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Write, len(s.writes))
	copy(out, s.writes)
	return out
}

// WritesTo returns the write log entries for one table.
func (s *Sink) WritesTo(table string) []Write {
	var out []Write
	for _, w := range s.Writes() {
		if w.Table == table {
			out = append(out, w)
		}
	}
	return out
}

// Reset clears rows and the write log, keeping configured failures.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = make(map[string]map[string]storage.Row)
	s.writes = nil
}
