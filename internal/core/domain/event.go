package domain

import "time"

// WriteOp is the kind of sink write performed for a record.
type WriteOp string

const (
	WriteInsert     WriteOp = "insert"
	WriteUpsert     WriteOp = "upsert"
	WriteReplaceAll WriteOp = "replace_all"
)

// SyncEvent announces that records reached the sink.
type SyncEvent struct {
	ChainID ChainID   `json:"chain_id"`
	Kind    string    `json:"kind"`
	Table   string    `json:"table"`
	Op      WriteOp   `json:"op"`
	Keys    []string  `json:"keys,omitempty"`
	CycleID string    `json:"cycle_id"`
	At      time.Time `json:"at"`
}
