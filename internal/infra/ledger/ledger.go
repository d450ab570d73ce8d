// Package ledger is the query and notification facade over a chain's
// application, backed by a node service speaking GraphQL.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vietddude/ledgersync/internal/core/domain"
)

var (
	// ErrGraphQL is returned when a response carries GraphQL errors
	ErrGraphQL = errors.New("graphql error")

	// ErrSubscriptionClosed is returned when the notification stream ends
	ErrSubscriptionClosed = errors.New("subscription closed")

	// ErrMissingField is returned when a response lacks the requested data field
	ErrMissingField = errors.New("missing field in response")
)

// Notification signals that a chain's state may have changed.
type Notification struct {
	ChainID domain.ChainID
	Reason  string // e.g. NewBlock, NewIncomingBundle
	Height  uint64
	Raw     json.RawMessage
}

// Application is a query-capable handle on one application of one chain.
type Application interface {
	// Query sends a query document and returns the raw response body.
	Query(ctx context.Context, document string) ([]byte, error)
}

// Chain is a connection-level handle on one chain.
type Chain interface {
	ID() domain.ChainID

	// Subscribe opens a notification stream. The channel is closed when the
	// stream ends or ctx is cancelled.
	Subscribe(ctx context.Context) (<-chan Notification, error)

	// Application returns a handle on an application of this chain.
	Application(appID string) Application
}

// Client establishes chain handles.
type Client interface {
	EnsureChain(ctx context.Context, id domain.ChainID, creds domain.Credentials) (Chain, error)
}

// Consumer receives notifications one at a time.
type Consumer interface {
	HandleNotification(ctx context.Context, n Notification) error
}

// Deliver feeds notifications to the consumer in order until the stream
// closes or ctx is cancelled. Consumer errors are returned to the caller
// through onError and do not stop delivery.
func Deliver(ctx context.Context, stream <-chan Notification, c Consumer, onError func(error)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-stream:
			if !ok {
				return ErrSubscriptionClosed
			}
			if err := c.HandleNotification(ctx, n); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}

// Document wraps GraphQL text in the JSON request body sent to applications.
func Document(query string) string {
	data, _ := json.Marshal(struct {
		Query string `json:"query"`
	}{Query: query})
	return string(data)
}

// GraphQLError is one entry of a response's errors array.
type GraphQLError struct {
	Message string `json:"message"`
}

type envelope struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []GraphQLError             `json:"errors"`
}

// Decode extracts data.<field> from a response body into v.
// A JSON null field leaves v untouched and reports found=false.
func Decode(body []byte, field string, v any) (found bool, err error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return false, fmt.Errorf("invalid response: %w", err)
	}
	if len(env.Errors) > 0 {
		msgs := make([]string, len(env.Errors))
		for i, e := range env.Errors {
			msgs[i] = e.Message
		}
		return false, fmt.Errorf("%w: %s", ErrGraphQL, strings.Join(msgs, "; "))
	}

	raw, ok := env.Data[field]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrMissingField, field)
	}
	if string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", field, err)
	}
	return true, nil
}
