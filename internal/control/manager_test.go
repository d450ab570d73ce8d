package control

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/ledgersync/internal/core/domain"
	"github.com/vietddude/ledgersync/internal/core/worker"
	"github.com/vietddude/ledgersync/internal/indexing/metrics"
	"github.com/vietddude/ledgersync/internal/indexing/syncer"
	"github.com/vietddude/ledgersync/internal/infra/storage/memory"
)

func newTestManager(t *testing.T, client *fakeClient, cfg ManagerConfig) *Manager {
	t.Helper()
	m := NewManager(client, syncer.New(memory.NewSink()), cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	return m
}

func TestManager_ConcurrentSpawnIsIdempotent(t *testing.T) {
	client := newFakeClient()
	client.delay = 20 * time.Millisecond
	m := newTestManager(t, client, ManagerConfig{AppID: "app"})
	id := chainID("a")

	const callers = 32
	var wg sync.WaitGroup
	got := make([]*worker.Worker, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w, err := m.TrySpawn(context.Background(), id)
			assert.NoError(t, err)
			got[i] = w
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, m.Len())
	assert.Equal(t, 1, client.connectCount(id), "one connection attempt for concurrent callers")
	for _, w := range got {
		assert.Same(t, got[0], w)
	}

	again, err := m.TrySpawn(context.Background(), id)
	require.NoError(t, err)
	assert.Same(t, got[0], again)
	assert.Equal(t, 1, client.connectCount(id))
}

func TestManager_NormalizesChainID(t *testing.T) {
	client := newFakeClient()
	m := newTestManager(t, client, ManagerConfig{})

	upper := domain.ChainID("  " + string(chainID("A")) + " ")
	w1, err := m.TrySpawn(context.Background(), upper)
	require.NoError(t, err)
	w2, err := m.TrySpawn(context.Background(), chainID("a"))
	require.NoError(t, err)

	assert.Same(t, w1, w2)
	assert.Equal(t, chainID("a"), w1.ChainID())
}

func TestManager_InvalidIDMakesNoEntry(t *testing.T) {
	client := newFakeClient()
	m := newTestManager(t, client, ManagerConfig{})

	err := m.EnsureRunning(context.Background(), "not-a-chain")
	require.ErrorIs(t, err, domain.ErrInvalidChainID)
	assert.Zero(t, m.Len())
	assert.Zero(t, client.connectCount("not-a-chain"))
}

func TestManager_FailedSpawnIsRetried(t *testing.T) {
	client := newFakeClient()
	m := newTestManager(t, client, ManagerConfig{})
	id := chainID("b")
	boom := errors.New("node unreachable")
	client.setFailure(id, boom)

	err := m.EnsureRunning(context.Background(), id)
	require.ErrorIs(t, err, boom)
	_, ok := m.Get(id)
	assert.False(t, ok, "failed spawn leaves no entry")

	client.setFailure(id, nil)
	require.NoError(t, m.EnsureRunning(context.Background(), id))
	_, ok = m.Get(id)
	assert.True(t, ok)
	assert.Equal(t, 2, client.connectCount(id))
}

func spawnCount(t *testing.T, status string) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, metrics.SpawnsTotal.WithLabelValues(status).Write(&m))
	return m.GetCounter().GetValue()
}

func TestManager_SpawnMetricsCountAttempts(t *testing.T) {
	client := newFakeClient()
	client.delay = 20 * time.Millisecond
	m := newTestManager(t, client, ManagerConfig{})
	id := chainID("d")
	client.setFailure(id, errors.New("node unreachable"))

	okBefore := spawnCount(t, metrics.StatusOK)
	errBefore := spawnCount(t, metrics.StatusError)

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.TrySpawn(context.Background(), id)
			assert.Error(t, err)
		}()
	}
	wg.Wait()
	require.Equal(t, 1, client.connectCount(id))
	assert.Equal(t, errBefore+1, spawnCount(t, metrics.StatusError), "shared attempt counts once")

	_, err := m.TrySpawn(context.Background(), "not-a-chain")
	require.ErrorIs(t, err, domain.ErrInvalidChainID)
	assert.Equal(t, errBefore+2, spawnCount(t, metrics.StatusError))

	client.setFailure(id, nil)
	_, err = m.TrySpawn(context.Background(), id)
	require.NoError(t, err)
	_, err = m.TrySpawn(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, okBefore+1, spawnCount(t, metrics.StatusOK), "existing worker is not a new spawn")
	assert.Equal(t, errBefore+2, spawnCount(t, metrics.StatusError))
}

func TestManager_CallerCancelDoesNotAbortSpawn(t *testing.T) {
	client := newFakeClient()
	client.delay = 50 * time.Millisecond
	m := newTestManager(t, client, ManagerConfig{})
	id := chainID("c")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := m.TrySpawn(ctx, id)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.Eventually(t, func() bool { return m.Len() == 1 }, time.Second, 5*time.Millisecond)
}

func TestManager_ChainSpecs(t *testing.T) {
	client := newFakeClient()
	parent := chainID("d")
	m := newTestManager(t, client, ManagerConfig{
		Chains:    map[domain.ChainID]ChainSpec{parent: {Discovery: true}},
		ChildRole: domain.RoleTournament,
	})

	require.NoError(t, m.EnsureRunning(context.Background(), parent))
	require.NoError(t, m.EnsureRunning(context.Background(), chainID("e")))

	statuses := m.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, parent, statuses[0].ChainID)
	assert.Equal(t, "game", statuses[0].Role)
	assert.True(t, statuses[0].Discovery)
	assert.Equal(t, "tournament", statuses[1].Role)
	assert.False(t, statuses[1].Discovery)
}

func TestManager_Shutdown(t *testing.T) {
	client := newFakeClient()
	m := NewManager(client, syncer.New(memory.NewSink()), ManagerConfig{})

	for _, c := range []string{"1", "2", "3"} {
		require.NoError(t, m.EnsureRunning(context.Background(), chainID(c)))
	}
	for _, w := range m.Workers() {
		w := w
		require.Eventually(t, func() bool { return w.State() == worker.StateSubscribed },
			time.Second, 5*time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	for _, w := range m.Workers() {
		assert.Equal(t, worker.StateStopped, w.State())
	}

	_, err := m.TrySpawn(context.Background(), chainID("4"))
	assert.ErrorIs(t, err, ErrManagerStopped)
}
