package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vietddude/ledgersync/internal/core/domain"
)

const subprotocol = "graphql-transport-ws"

// graphql-transport-ws message types
const (
	msgConnectionInit = "connection_init"
	msgConnectionAck  = "connection_ack"
	msgSubscribe      = "subscribe"
	msgNext           = "next"
	msgError          = "error"
	msgComplete       = "complete"
	msgPing           = "ping"
	msgPong           = "pong"
)

type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wireNotification is the node service's notification shape:
// {"chain_id": "...", "reason": {"NewBlock": {"height": 5, "hash": "..."}}}
type wireNotification struct {
	ChainID string                     `json:"chain_id"`
	Reason  map[string]json.RawMessage `json:"reason"`
}

func (c *NodeClient) subscribe(
	ctx context.Context,
	id domain.ChainID,
	token string,
) (<-chan Notification, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := c.dialer.DialContext(ctx, c.cfg.WSURL, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.cfg.WSURL, err)
	}

	done := make(chan struct{})

	// Unblock reads on cancellation, including the handshake.
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if err := handshake(conn, id, token, c.cfg.Timeout); err != nil {
		close(done)
		conn.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	out := make(chan Notification, c.cfg.Buffer)

	go func() {
		defer close(out)
		defer close(done)
		defer conn.Close()

		for {
			var msg wsMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if ctx.Err() == nil {
					slog.Warn("Notification stream read failed", "chain", id.Short(), "error", err)
				}
				return
			}

			switch msg.Type {
			case msgPing:
				if err := conn.WriteJSON(wsMessage{Type: msgPong}); err != nil {
					return
				}
			case msgNext:
				n, err := parseNotification(id, msg.Payload)
				if err != nil {
					slog.Warn("Dropping malformed notification", "chain", id.Short(), "error", err)
					continue
				}
				// Blocks when the consumer is behind; notifications are never dropped.
				select {
				case out <- n:
				case <-ctx.Done():
					return
				}
			case msgError:
				slog.Warn("Subscription error", "chain", id.Short(), "payload", string(msg.Payload))
				return
			case msgComplete:
				return
			}
		}
	}()

	return out, nil
}

func handshake(conn *websocket.Conn, id domain.ChainID, token string, timeout time.Duration) error {
	init := wsMessage{Type: msgConnectionInit, Payload: json.RawMessage(`{}`)}
	if token != "" {
		payload, _ := json.Marshal(map[string]string{"Authorization": "Bearer " + token})
		init.Payload = payload
	}
	if err := conn.WriteJSON(init); err != nil {
		return fmt.Errorf("connection_init: %w", err)
	}

	if timeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
	}
	var ack wsMessage
	if err := conn.ReadJSON(&ack); err != nil {
		return fmt.Errorf("await connection_ack: %w", err)
	}
	// Notifications may be far apart once subscribed.
	_ = conn.SetReadDeadline(time.Time{})
	if ack.Type != msgConnectionAck {
		return fmt.Errorf("expected %s, got %s", msgConnectionAck, ack.Type)
	}

	query := Document(fmt.Sprintf(`subscription { notifications(chainId: "%s") }`, id))
	sub := wsMessage{ID: "1", Type: msgSubscribe, Payload: json.RawMessage(query)}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

func parseNotification(id domain.ChainID, payload json.RawMessage) (Notification, error) {
	var wire wireNotification
	if _, err := Decode(payload, "notifications", &wire); err != nil {
		return Notification{}, err
	}

	n := Notification{ChainID: id, Raw: payload}
	if wire.ChainID != "" {
		if parsed, err := domain.ParseChainID(wire.ChainID); err == nil {
			n.ChainID = parsed
		}
	}
	for reason, body := range wire.Reason {
		n.Reason = reason
		var detail struct {
			Height uint64 `json:"height"`
		}
		if json.Unmarshal(body, &detail) == nil {
			n.Height = detail.Height
		}
		break
	}
	return n, nil
}
