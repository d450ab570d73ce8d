// Package httpclient builds the retrying HTTP client shared by the ledger
// facade and the REST sink.
package httpclient

import (
	"time"

	"github.com/gojektech/heimdall"
	"github.com/gojektech/heimdall/httpclient"
)

// Options configures a retrying client.
type Options struct {
	Timeout time.Duration
	Retries int
	Backoff time.Duration // linear step between retries
}

// Client is the heimdall client with the backoff configured.
type Client struct {
	*httpclient.Client
}

// New returns a client that retries transport errors and 5xx responses.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 100 * time.Millisecond
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}

	step := opts.Backoff
	retrier := func(retry int) time.Duration {
		if retry <= 0 {
			return 0
		}
		return time.Duration(retry) * step
	}

	return &Client{
		Client: httpclient.NewClient(
			httpclient.WithHTTPTimeout(opts.Timeout),
			httpclient.WithRetryCount(opts.Retries),
			httpclient.WithRetrier(heimdall.NewRetrierFunc(retrier)),
		),
	}
}
