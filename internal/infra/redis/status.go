package redis

import (
	"context"
	"fmt"
	"time"
)

// StatusStore keeps the latest health snapshot of every chain worker so that
// other processes can read it without calling the service.
type StatusStore struct {
	client *Client
	ttl    time.Duration
}

// NewStatusStore creates a Redis-backed status store. Snapshots expire after
// ttl unless refreshed.
func NewStatusStore(client *Client, ttl time.Duration) *StatusStore {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &StatusStore{client: client, ttl: ttl}
}

// Key helpers
func (s *StatusStore) key() string {
	return StatusKey(s.client.prefix)
}

// StatusKey returns the hash holding chain snapshots for a prefix.
func StatusKey(prefix string) string {
	return ChannelName(prefix, "chain_status")
}

// Save stores the snapshots keyed by chain id and refreshes the expiry.
func (s *StatusStore) Save(ctx context.Context, snapshots map[string][]byte) error {
	if len(snapshots) == 0 {
		return nil
	}

	values := make([]any, 0, len(snapshots)*2)
	for id, data := range snapshots {
		values = append(values, id, data)
	}

	pipe := s.client.rdb.TxPipeline()
	pipe.Del(ctx, s.key())
	pipe.HSet(ctx, s.key(), values...)
	pipe.Expire(ctx, s.key(), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save chain status: %w", err)
	}
	return nil
}

// Load returns the stored snapshots keyed by chain id.
func (s *StatusStore) Load(ctx context.Context) (map[string][]byte, error) {
	res, err := s.client.rdb.HGetAll(ctx, s.key()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load chain status: %w", err)
	}

	out := make(map[string][]byte, len(res))
	for id, data := range res {
		out[id] = []byte(data)
	}
	return out, nil
}
