// Package postgrest writes records to a PostgREST endpoint such as Supabase.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vietddude/ledgersync/internal/infra/httpclient"
	"github.com/vietddude/ledgersync/internal/infra/storage"
)

// ErrMissingCredentials is returned when the URL or key is empty.
var ErrMissingCredentials = errors.New("postgrest url and key are required")

const (
	preferReturn = "return=representation"
	preferMerge  = "resolution=merge-duplicates"
)

// StatusError carries a non-2xx response from the REST endpoint.
type StatusError struct {
	Method string
	Table  string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: http %d: %s", e.Method, e.Table, e.Status, e.Body)
}

// Config holds REST sink settings.
type Config struct {
	URL     string
	Key     string
	Timeout time.Duration
	Retries int
}

// Sink implements storage.Sink over the PostgREST HTTP interface.
type Sink struct {
	baseURL string
	key     string
	client  *httpclient.Client
}

var _ storage.Sink = (*Sink)(nil)

// New creates a REST sink.
func New(cfg Config) (*Sink, error) {
	if cfg.URL == "" || cfg.Key == "" {
		return nil, ErrMissingCredentials
	}
	return &Sink{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		key:     cfg.Key,
		client: httpclient.New(httpclient.Options{
			Timeout: cfg.Timeout,
			Retries: cfg.Retries,
		}),
	}, nil
}

// Insert posts a single record.
func (s *Sink) Insert(ctx context.Context, table storage.Table, record any) error {
	return s.post(ctx, table, record, preferReturn)
}

// InsertMany posts a batch of records in one request.
func (s *Sink) InsertMany(ctx context.Context, table storage.Table, records any) error {
	if storage.Len(records) == 0 {
		return nil
	}
	return s.post(ctx, table, records, preferReturn)
}

// Upsert posts a record merging on the primary key.
func (s *Sink) Upsert(ctx context.Context, table storage.Table, record any) error {
	return s.post(ctx, table, record, preferMerge)
}

// ReplaceAll deletes every row and inserts records. The two steps are not atomic.
func (s *Sink) ReplaceAll(ctx context.Context, table storage.Table, records any) error {
	if err := s.deleteAll(ctx, table); err != nil {
		return err
	}
	return s.InsertMany(ctx, table, records)
}

// Close is a no-op; the HTTP client holds no long-lived resources.
func (s *Sink) Close() error { return nil }

func (s *Sink) tableURL(table storage.Table) string {
	return fmt.Sprintf("%s/rest/v1/%s", s.baseURL, url.PathEscape(table.Name))
}

func (s *Sink) post(ctx context.Context, table storage.Table, body any, prefer string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", table.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tableURL(table), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", prefer)

	return s.do(req, table)
}

// deleteAll removes rows whose primary key is not the empty string, which
// PostgREST requires as a filter for bulk deletes.
func (s *Sink) deleteAll(ctx context.Context, table storage.Table) error {
	u := fmt.Sprintf("%s?%s=neq.", s.tableURL(table), url.QueryEscape(table.PrimaryKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return s.do(req, table)
}

func (s *Sink) do(req *http.Request, table storage.Table) error {
	req.Header.Set("apikey", s.key)
	req.Header.Set("Authorization", "Bearer "+s.key)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, table.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{
		Method: req.Method,
		Table:  table.Name,
		Status: resp.StatusCode,
		Body:   strings.TrimSpace(string(body)),
	}
}
