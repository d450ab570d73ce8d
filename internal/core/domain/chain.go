package domain

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidChainID is returned when a chain identity cannot be parsed.
var ErrInvalidChainID = errors.New("invalid chain id")

// chainIDLength is the hex length of a 32-byte chain hash.
const chainIDLength = 64

// ChainID identifies one remote chain.
type ChainID string

// ParseChainID validates and normalizes a chain identity string.
func ParseChainID(s string) (ChainID, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != chainIDLength {
		return "", fmt.Errorf("%w: %q has length %d, want %d", ErrInvalidChainID, s, len(s), chainIDLength)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("%w: %q is not hex", ErrInvalidChainID, s)
	}
	return ChainID(s), nil
}

func (id ChainID) String() string { return string(id) }

// Short returns an abbreviated id for log lines.
func (id ChainID) Short() string {
	if len(id) <= 12 {
		return string(id)
	}
	return string(id[:8]) + ".." + string(id[len(id)-4:])
}

// Credentials authenticate requests against a chain's node service.
type Credentials struct {
	Token string
}

// ChainRole selects the battery of record kinds synchronized for a chain.
type ChainRole string

const (
	// RoleGame tracks count, leaderboard and the last match.
	RoleGame ChainRole = "game"
	// RoleTournament additionally tracks tournaments and their participants.
	RoleTournament ChainRole = "tournament"
)

// ParseChainRole maps a config string to a role, defaulting to RoleGame.
func ParseChainRole(s string) (ChainRole, error) {
	switch ChainRole(strings.ToLower(strings.TrimSpace(s))) {
	case "", RoleGame:
		return RoleGame, nil
	case RoleTournament:
		return RoleTournament, nil
	default:
		return "", fmt.Errorf("unknown chain role %q", s)
	}
}
