package worker

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/ledgersync/internal/core/domain"
	"github.com/vietddude/ledgersync/internal/indexing/syncer"
	"github.com/vietddude/ledgersync/internal/infra/ledger"
	"github.com/vietddude/ledgersync/internal/infra/storage/memory"
)

const testChain = domain.ChainID("e476187f6ddfeb9d588c7b45d3df334d5501d6499b3f9ad5595cae86cce16a65")

type fakeApp struct {
	mu        sync.Mutex
	count     uint64
	documents []string
}

func (a *fakeApp) Query(ctx context.Context, document string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.documents = append(a.documents, document)

	switch {
	case strings.Contains(document, "subscribe"):
		return []byte(`{"data":{"subscribe":null}}`), nil
	case strings.Contains(document, "{ count }"):
		return json.Marshal(map[string]any{"data": map[string]any{"count": a.count}})
	case strings.Contains(document, "leaderboard"):
		return []byte(`{"data":{"leaderboard":[]}}`), nil
	default:
		return []byte(`{"data":{"matchHistoryLast":null}}`), nil
	}
}

func (a *fakeApp) setCount(n uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.count = n
}

func (a *fakeApp) subscribeCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, d := range a.documents {
		if strings.Contains(d, "mutation { subscribe }") {
			n++
		}
	}
	return n
}

type fakeChain struct {
	app     *fakeApp
	streams chan chan ledger.Notification

	mu         sync.Mutex
	subscribes int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		app:     &fakeApp{},
		streams: make(chan chan ledger.Notification, 4),
	}
}

func (c *fakeChain) ID() domain.ChainID { return testChain }

func (c *fakeChain) Application(appID string) ledger.Application { return c.app }

func (c *fakeChain) Subscribe(ctx context.Context) (<-chan ledger.Notification, error) {
	c.mu.Lock()
	c.subscribes++
	c.mu.Unlock()

	select {
	case s := <-c.streams:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeChain) subscribeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribes
}

func startWorker(t *testing.T, chain *fakeChain, sink *memory.Sink) (*Worker, context.CancelFunc, chan struct{}) {
	t.Helper()
	w := New(chain, syncer.New(sink), Config{AppID: "app", ResubscribeDelay: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w, cancel, done
}

func TestWorker_SyncsOnNotification(t *testing.T) {
	chain := newFakeChain()
	chain.app.setCount(3)
	stream := make(chan ledger.Notification, 4)
	chain.streams <- stream
	sink := memory.NewSink()

	w, _, _ := startWorker(t, chain, sink)

	require.Eventually(t, func() bool { return w.State() == StateSubscribed }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, chain.app.subscribeCalls(), "subscribe mutation is sent once at start")
	assert.Empty(t, sink.Writes(), "no sync before the first notification")

	stream <- ledger.Notification{ChainID: testChain, Reason: "NewBlock", Height: 1}
	require.Eventually(t, func() bool { return len(sink.WritesTo("gameCount")) == 1 }, time.Second, 5*time.Millisecond)

	chain.app.setCount(4)
	stream <- ledger.Notification{ChainID: testChain, Reason: "NewBlock", Height: 2}
	stream <- ledger.Notification{ChainID: testChain, Reason: "NewBlock", Height: 3}
	require.Eventually(t, func() bool { return w.Status().Cycles == 3 }, time.Second, 5*time.Millisecond)

	assert.Len(t, sink.WritesTo("gameCount"), 2, "third cycle sees an unchanged count")
	st := w.Status()
	assert.Equal(t, uint64(3), st.Notifications)
	assert.Equal(t, syncer.OutcomeOK, st.LastOutcome)
	assert.Equal(t, "game", st.Role)
}

func TestWorker_ResubscribesAfterStreamCloses(t *testing.T) {
	chain := newFakeChain()
	first := make(chan ledger.Notification)
	close(first)
	second := make(chan ledger.Notification, 1)
	chain.streams <- first
	chain.streams <- second
	sink := memory.NewSink()

	w, _, _ := startWorker(t, chain, sink)

	require.Eventually(t, func() bool { return chain.subscribeCount() >= 2 }, time.Second, 5*time.Millisecond)

	second <- ledger.Notification{ChainID: testChain}
	require.Eventually(t, func() bool { return w.Status().Cycles == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, chain.app.subscribeCalls(), "mutation is not repeated on resubscribe")
}

func TestWorker_StopsOnCancel(t *testing.T) {
	chain := newFakeChain()
	chain.streams <- make(chan ledger.Notification)
	w, cancel, done := startWorker(t, chain, memory.NewSink())

	require.Eventually(t, func() bool { return w.State() == StateSubscribed }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
	assert.Equal(t, StateStopped, w.State())
	assert.Equal(t, "stopped", w.Status().State)
}

func TestNew_TournamentBattery(t *testing.T) {
	chain := newFakeChain()
	w := New(chain, syncer.New(memory.NewSink()), Config{Role: domain.RoleTournament, Discovery: true})

	var names []string
	for _, k := range w.kinds {
		names = append(names, k.Name())
	}
	assert.Equal(t, []string{"count", "leaderboard", "matches", "tournaments", "participants", "chains"}, names)
	assert.Equal(t, StateIdle, w.State())
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{InitialDelay: 2 * time.Second, MaxDelay: 10 * time.Second}

	assert.Equal(t, 2*time.Second, b.Delay(0))
	assert.Equal(t, 4*time.Second, b.Delay(1))
	assert.Equal(t, 8*time.Second, b.Delay(2))
	assert.Equal(t, 10*time.Second, b.Delay(3), "capped at max delay")
	assert.Equal(t, 2*time.Second, b.Delay(-1))
}
