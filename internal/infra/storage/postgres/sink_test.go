package postgres

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/ledgersync/internal/infra/storage"
)

func TestBuildInsert_Plain(t *testing.T) {
	got := buildInsert(storage.TableLeaderboard, []string{"elo", "id"}, false)
	want := `INSERT INTO "leaderboard" ("elo", "id") SELECT "elo", "id" ` +
		`FROM json_populate_recordset(NULL::"leaderboard", $1::json)`
	assert.Equal(t, want, got)
}

func TestBuildInsert_Upsert(t *testing.T) {
	got := buildInsert(storage.TableGameCount, []string{"count", "id"}, true)
	want := `INSERT INTO "gameCount" ("count", "id") SELECT "count", "id" ` +
		`FROM json_populate_recordset(NULL::"gameCount", $1::json) ` +
		`ON CONFLICT ("id") DO UPDATE SET "count" = EXCLUDED."count"`
	assert.Equal(t, want, got)
}

func TestBuildInsert_UpsertKeyOnly(t *testing.T) {
	got := buildInsert(storage.TableTournaments, []string{"tournament_id"}, true)
	assert.Contains(t, got, `ON CONFLICT ("tournament_id") DO NOTHING`)
}

func TestColumnsOf_Union(t *testing.T) {
	rows := []storage.Row{
		{"id": "a", "elo": 1},
		{"id": "b", "name": "bob"},
	}
	assert.Equal(t, []string{"elo", "id", "name"}, columnsOf(rows))
}

func TestEncodeRows_PreservesNumbers(t *testing.T) {
	row, err := storage.ToRow(map[string]any{"id": "x", "startingTime": uint64(1 << 60)})
	require.NoError(t, err)

	payload, err := encodeRows([]storage.Row{row})
	require.NoError(t, err)

	var decoded []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(payload), &decoded))
	assert.Equal(t, "1152921504606846976", string(decoded[0]["startingTime"]))
}

func TestSink_WriteRejectsMissingKey(t *testing.T) {
	s := &Sink{}
	err := s.write(context.Background(), nil, storage.TableLeaderboard, []storage.Row{{"elo": 1}}, false)
	assert.Error(t, err)
}
