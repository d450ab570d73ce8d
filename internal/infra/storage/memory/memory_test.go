package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/ledgersync/internal/core/domain"
	"github.com/vietddude/ledgersync/internal/infra/storage"
)

func TestSink_UpsertOverwrites(t *testing.T) {
	s := NewSink()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, storage.TableGameCount, domain.NewGameCount(1)))
	require.NoError(t, s.Upsert(ctx, storage.TableGameCount, domain.NewGameCount(2)))

	rows := s.Rows("gameCount")
	require.Len(t, rows, 1)
	assert.Equal(t, "2", rows[0]["count"])
	assert.Len(t, s.WritesTo("gameCount"), 2)
}

func TestSink_ReplaceAllClearsTable(t *testing.T) {
	s := NewSink()
	ctx := context.Background()

	require.NoError(t, s.ReplaceAll(ctx, storage.TableLeaderboard, []domain.LeaderboardEntry{{ID: "a"}, {ID: "b"}}))
	require.NoError(t, s.ReplaceAll(ctx, storage.TableLeaderboard, []domain.LeaderboardEntry{{ID: "c"}}))

	rows := s.Rows("leaderboard")
	require.Len(t, rows, 1)
	assert.Equal(t, "c", rows[0]["id"])

	writes := s.WritesTo("leaderboard")
	require.Len(t, writes, 2)
	assert.Equal(t, domain.WriteReplaceAll, writes[1].Op)
	assert.Equal(t, []string{"c"}, writes[1].Keys)
}

func TestSink_FailTable(t *testing.T) {
	s := NewSink()
	ctx := context.Background()
	boom := errors.New("boom")

	s.FailTable("gameCount", boom)
	err := s.Upsert(ctx, storage.TableGameCount, domain.NewGameCount(1))
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, s.Rows("gameCount"))
	assert.Len(t, s.WritesTo("gameCount"), 1, "failed writes are still logged")

	s.FailTable("gameCount", nil)
	require.NoError(t, s.Upsert(ctx, storage.TableGameCount, domain.NewGameCount(1)))
	assert.Len(t, s.Rows("gameCount"), 1)
}

func TestSink_MissingPrimaryKey(t *testing.T) {
	s := NewSink()
	err := s.Insert(context.Background(), storage.TableTournaments, map[string]string{"name": "x"})
	assert.Error(t, err)
}

func TestSink_InsertManyRequiresSlice(t *testing.T) {
	s := NewSink()
	err := s.InsertMany(context.Background(), storage.TableLeaderboard, domain.LeaderboardEntry{ID: "a"})
	assert.ErrorIs(t, err, storage.ErrNotSlice)
}
