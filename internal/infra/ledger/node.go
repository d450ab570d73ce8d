package ledger

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vietddude/ledgersync/internal/core/domain"
	"github.com/vietddude/ledgersync/internal/indexing/metrics"
	"github.com/vietddude/ledgersync/internal/infra/httpclient"
)

// Config holds node service connection settings.
type Config struct {
	URL     string
	WSURL   string
	Timeout time.Duration
	Retries int
	Buffer  int // notifications buffered per subscription
}

// NodeClient talks to a node service exposing chains over HTTP and websocket.
type NodeClient struct {
	cfg    Config
	http   *httpclient.Client
	dialer *websocket.Dialer
}

var _ Client = (*NodeClient)(nil)

// NewNodeClient creates a node service client.
func NewNodeClient(cfg Config) *NodeClient {
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if cfg.Buffer <= 0 {
		cfg.Buffer = 64
	}
	return &NodeClient{
		cfg: cfg,
		http: httpclient.New(httpclient.Options{
			Timeout: cfg.Timeout,
			Retries: cfg.Retries,
		}),
		dialer: &websocket.Dialer{
			Subprotocols:     []string{subprotocol},
			HandshakeTimeout: cfg.Timeout,
		},
	}
}

// EnsureChain checks that the node service knows the chain and returns a handle.
func (c *NodeClient) EnsureChain(
	ctx context.Context,
	id domain.ChainID,
	creds domain.Credentials,
) (Chain, error) {
	parsed, err := domain.ParseChainID(id.String())
	if err != nil {
		return nil, err
	}

	chain := &nodeChain{client: c, id: parsed, token: creds.Token}
	doc := Document(fmt.Sprintf(`query { chain(chainId: "%s") { chainId } }`, parsed))
	body, err := chain.post(ctx, c.cfg.URL, doc)
	if err != nil {
		return nil, fmt.Errorf("chain %s unreachable: %w", parsed.Short(), err)
	}

	var info struct {
		ChainID string `json:"chainId"`
	}
	found, err := Decode(body, "chain", &info)
	if err != nil {
		return nil, fmt.Errorf("chain %s: %w", parsed.Short(), err)
	}
	if !found {
		return nil, fmt.Errorf("chain %s not known to node service", parsed.Short())
	}
	return chain, nil
}

type nodeChain struct {
	client *NodeClient
	id     domain.ChainID
	token  string
}

func (ch *nodeChain) ID() domain.ChainID { return ch.id }

func (ch *nodeChain) Application(appID string) Application {
	return &nodeApplication{
		chain: ch,
		url:   fmt.Sprintf("%s/chains/%s/applications/%s", ch.client.cfg.URL, ch.id, appID),
	}
}

func (ch *nodeChain) Subscribe(ctx context.Context) (<-chan Notification, error) {
	return ch.client.subscribe(ctx, ch.id, ch.token)
}

func (ch *nodeChain) post(ctx context.Context, url, document string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if ch.token != "" {
		req.Header.Set("Authorization", "Bearer "+ch.token)
	}

	resp, err := ch.client.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

type nodeApplication struct {
	chain *nodeChain
	url   string
}

func (a *nodeApplication) Query(ctx context.Context, document string) ([]byte, error) {
	start := time.Now()
	body, err := a.chain.post(ctx, a.url, document)

	status := metrics.StatusOK
	if err != nil {
		status = metrics.StatusError
	}
	metrics.QueryLatency.WithLabelValues(a.chain.id.Short(), status).Observe(time.Since(start).Seconds())
	return body, err
}
