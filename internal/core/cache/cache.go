// Package cache holds the last values a chain worker wrote to the sink.
//
// A Store belongs to exactly one chain worker. Cycles of a worker run one at a
// time, so the store is not safe for concurrent use and takes no locks.
package cache

import (
	"sort"

	"github.com/vietddude/ledgersync/internal/core/domain"
)

// Store is the per-chain cache of externally durable record values.
type Store struct {
	count *uint64

	// nil until the first successful replace-all.
	leaderboard map[string]domain.LeaderboardEntry

	lastMatch *domain.MatchHistory

	tournaments  map[string]domain.Tournament
	participants map[string]map[string]domain.TournamentParticipant
}

// New returns an empty store.
func New() *Store {
	return &Store{
		tournaments:  make(map[string]domain.Tournament),
		participants: make(map[string]map[string]domain.TournamentParticipant),
	}
}

// Count returns the cached game count.
func (s *Store) Count() (uint64, bool) {
	if s.count == nil {
		return 0, false
	}
	return *s.count, true
}

// SetCount records a count the sink accepted.
func (s *Store) SetCount(v uint64) {
	s.count = &v
}

// Leaderboard returns the cached leaderboard keyed by player id.
func (s *Store) Leaderboard() (map[string]domain.LeaderboardEntry, bool) {
	return s.leaderboard, s.leaderboard != nil
}

// SetLeaderboard replaces the cached leaderboard.
func (s *Store) SetLeaderboard(entries []domain.LeaderboardEntry) {
	s.leaderboard = LeaderboardByID(entries)
}

// LastMatch returns the cached last match.
func (s *Store) LastMatch() (domain.MatchHistory, bool) {
	if s.lastMatch == nil {
		return domain.MatchHistory{}, false
	}
	return *s.lastMatch, true
}

// SetLastMatch records the last match the sink accepted.
func (s *Store) SetLastMatch(m domain.MatchHistory) {
	s.lastMatch = &m
}

// Tournament returns the cached tournament with the given id.
func (s *Store) Tournament(id string) (domain.Tournament, bool) {
	t, ok := s.tournaments[id]
	return t, ok
}

// SetTournament records one tournament the sink accepted.
func (s *Store) SetTournament(t domain.Tournament) {
	s.tournaments[t.TournamentID] = t
}

// TournamentIDs returns the cached tournament ids in sorted order.
func (s *Store) TournamentIDs() []string {
	ids := make([]string, 0, len(s.tournaments))
	for id := range s.tournaments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Participant returns a cached participant of a tournament.
func (s *Store) Participant(tournamentID, participantID string) (domain.TournamentParticipant, bool) {
	p, ok := s.participants[tournamentID][participantID]
	return p, ok
}

// SetParticipant records one participant the sink accepted.
func (s *Store) SetParticipant(tournamentID string, p domain.TournamentParticipant) {
	m, ok := s.participants[tournamentID]
	if !ok {
		m = make(map[string]domain.TournamentParticipant)
		s.participants[tournamentID] = m
	}
	m[p.ID] = p
}

// ParticipantCount returns how many participants are cached for a tournament.
func (s *Store) ParticipantCount(tournamentID string) int {
	return len(s.participants[tournamentID])
}

// LeaderboardByID indexes entries by player id. Later duplicates win.
func LeaderboardByID(entries []domain.LeaderboardEntry) map[string]domain.LeaderboardEntry {
	m := make(map[string]domain.LeaderboardEntry, len(entries))
	for _, e := range entries {
		m[e.ID] = e
	}
	return m
}
