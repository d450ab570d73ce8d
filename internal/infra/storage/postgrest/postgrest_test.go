package postgrest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/ledgersync/internal/core/domain"
	"github.com/vietddude/ledgersync/internal/infra/storage"
)

type capturedRequest struct {
	Method string
	Path   string
	Query  string
	Prefer string
	APIKey string
	Auth   string
	Body   string
}

type recorder struct {
	mu       sync.Mutex
	requests []capturedRequest
	status   int
}

func (r *recorder) handler(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	r.requests = append(r.requests, capturedRequest{
		Method: req.Method,
		Path:   req.URL.Path,
		Query:  req.URL.RawQuery,
		Prefer: req.Header.Get("Prefer"),
		APIKey: req.Header.Get("apikey"),
		Auth:   req.Header.Get("Authorization"),
		Body:   string(body),
	})
	status := r.status
	r.mu.Unlock()

	if status == 0 {
		status = http.StatusCreated
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`[]`))
}

func newTestSink(t *testing.T, rec *recorder) *Sink {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(rec.handler))
	t.Cleanup(server.Close)

	sink, err := New(Config{URL: server.URL + "/", Key: "service-key"})
	require.NoError(t, err)
	return sink
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(Config{URL: "https://x.supabase.co"})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestSink_Insert(t *testing.T) {
	rec := &recorder{}
	sink := newTestSink(t, rec)

	err := sink.Insert(context.Background(), storage.TableGameCount, domain.NewGameCount(7))
	require.NoError(t, err)

	require.Len(t, rec.requests, 1)
	got := rec.requests[0]
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/rest/v1/gameCount", got.Path)
	assert.Equal(t, "return=representation", got.Prefer)
	assert.Equal(t, "service-key", got.APIKey)
	assert.Equal(t, "Bearer service-key", got.Auth)
	assert.JSONEq(t, `{"id":"singleton","count":"7"}`, got.Body)
}

func TestSink_Upsert(t *testing.T) {
	rec := &recorder{}
	sink := newTestSink(t, rec)

	err := sink.Upsert(context.Background(), storage.TableGameCount, domain.NewGameCount(8))
	require.NoError(t, err)

	require.Len(t, rec.requests, 1)
	assert.Equal(t, "resolution=merge-duplicates", rec.requests[0].Prefer)
}

func TestSink_ReplaceAll(t *testing.T) {
	rec := &recorder{}
	sink := newTestSink(t, rec)

	entries := []domain.LeaderboardEntry{
		{ID: "a", Elo: 1200},
		{ID: "b", Elo: 1100},
	}
	err := sink.ReplaceAll(context.Background(), storage.TableLeaderboard, entries)
	require.NoError(t, err)

	require.Len(t, rec.requests, 2)
	assert.Equal(t, http.MethodDelete, rec.requests[0].Method)
	assert.Equal(t, "/rest/v1/leaderboard", rec.requests[0].Path)
	assert.Equal(t, "id=neq.", rec.requests[0].Query)

	assert.Equal(t, http.MethodPost, rec.requests[1].Method)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(rec.requests[1].Body), &rows))
	assert.Len(t, rows, 2)
}

func TestSink_ReplaceAllEmptySkipsInsert(t *testing.T) {
	rec := &recorder{}
	sink := newTestSink(t, rec)

	err := sink.ReplaceAll(context.Background(), storage.TableLeaderboard, []domain.LeaderboardEntry{})
	require.NoError(t, err)

	require.Len(t, rec.requests, 1)
	assert.Equal(t, http.MethodDelete, rec.requests[0].Method)
}

func TestSink_StatusError(t *testing.T) {
	rec := &recorder{status: http.StatusConflict}
	sink := newTestSink(t, rec)

	err := sink.Insert(context.Background(), storage.TableMatchHistory, map[string]string{"id": "x"})
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusConflict, statusErr.Status)
	assert.Equal(t, "matchHistory", statusErr.Table)
}
