package control

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/ledgersync/internal/core/domain"
	"github.com/vietddude/ledgersync/internal/infra/ledger"
)

func chainID(c string) domain.ChainID {
	return domain.ChainID(strings.Repeat(c, 64))
}

// fakeApp serves the battery of a chain with an empty state except for the
// game count and the discovered chains.
type fakeApp struct {
	mu       sync.Mutex
	count    uint64
	children []string
}

func (a *fakeApp) Query(ctx context.Context, document string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	data := map[string]any{}
	switch {
	case strings.Contains(document, "mutation { subscribe }"):
		data["subscribe"] = nil
	case strings.Contains(document, "{ count }"):
		data["count"] = a.count
	case strings.Contains(document, "leaderboard"):
		data["leaderboard"] = []any{}
	case strings.Contains(document, "matchHistoryLast"):
		data["matchHistoryLast"] = nil
	case strings.Contains(document, "allTournaments"):
		data["allTournaments"] = []any{}
	case strings.Contains(document, "tournamentChains"):
		children := a.children
		if children == nil {
			children = []string{}
		}
		data["tournamentChains"] = children
	}
	return json.Marshal(map[string]any{"data": data})
}

func (a *fakeApp) setCount(n uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.count = n
}

func (a *fakeApp) setChildren(ids ...domain.ChainID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.children = a.children[:0]
	for _, id := range ids {
		a.children = append(a.children, id.String())
	}
}

type fakeChain struct {
	id     domain.ChainID
	app    *fakeApp
	notify chan ledger.Notification
}

func (c *fakeChain) ID() domain.ChainID { return c.id }

func (c *fakeChain) Application(appID string) ledger.Application { return c.app }

func (c *fakeChain) Subscribe(ctx context.Context) (<-chan ledger.Notification, error) {
	return c.notify, nil
}

func (c *fakeChain) ping(height uint64) {
	c.notify <- ledger.Notification{ChainID: c.id, Reason: "NewBlock", Height: height}
}

// fakeClient counts connection attempts per chain and can be told to fail.
type fakeClient struct {
	mu       sync.Mutex
	delay    time.Duration
	connects map[domain.ChainID]int
	fail     map[domain.ChainID]error
	chains   map[domain.ChainID]*fakeChain
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		connects: make(map[domain.ChainID]int),
		fail:     make(map[domain.ChainID]error),
		chains:   make(map[domain.ChainID]*fakeChain),
	}
}

func (c *fakeClient) EnsureChain(
	ctx context.Context,
	id domain.ChainID,
	creds domain.Credentials,
) (ledger.Chain, error) {
	c.mu.Lock()
	c.connects[id]++
	delay := c.delay
	err := c.fail[id]
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return c.chain(id), nil
}

// chain returns the handle for id, creating it on first use.
func (c *fakeClient) chain(id domain.ChainID) *fakeChain {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.chains[id]
	if !ok {
		ch = &fakeChain{id: id, app: &fakeApp{}, notify: make(chan ledger.Notification, 8)}
		c.chains[id] = ch
	}
	return ch
}

func (c *fakeClient) connectCount(id domain.ChainID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects[id]
}

func (c *fakeClient) setFailure(id domain.ChainID, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.fail, id)
		return
	}
	c.fail[id] = err
}
