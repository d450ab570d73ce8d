package syncer

import (
	"github.com/vietddude/ledgersync/internal/core/cache"
	"github.com/vietddude/ledgersync/internal/core/domain"
	"github.com/vietddude/ledgersync/internal/infra/ledger"
	"github.com/vietddude/ledgersync/internal/infra/storage"
)

// Record kind names.
const (
	KindCount        = "count"
	KindLeaderboard  = "leaderboard"
	KindMatches      = "matches"
	KindTournaments  = "tournaments"
	KindParticipants = "participants"
	KindChains       = "chains"
)

// Battery returns the kinds synchronized for a chain, in cycle order.
// Discovery parents run the chains kind last.
func Battery(role domain.ChainRole, discovery bool) []Kind {
	kinds := []Kind{countKind(), leaderboardKind(), matchesKind()}
	if role == domain.RoleTournament {
		kinds = append(kinds, tournamentsKind(), participantsKind())
	}
	if discovery {
		kinds = append(kinds, chainsKind())
	}
	return kinds
}

func countKind() Kind {
	return &scalarKind[uint64]{
		name:     KindCount,
		field:    "count",
		document: ledger.Document(queryCount),
		table:    storage.TableGameCount,
		load:     (*cache.Store).Count,
		save:     (*cache.Store).SetCount,
		row:      func(v uint64) any { return domain.NewGameCount(v) },
		key:      func(uint64) string { return domain.GameCountSingletonID },
	}
}

func leaderboardKind() Kind {
	return &collectionKind[domain.LeaderboardEntry]{
		name:     KindLeaderboard,
		field:    "leaderboard",
		document: ledger.Document(queryLeaderboard),
		table:    storage.TableLeaderboard,
		key:      func(e domain.LeaderboardEntry) string { return e.ID },
		load:     (*cache.Store).Leaderboard,
		save:     (*cache.Store).SetLeaderboard,
		rows:     func(entries []domain.LeaderboardEntry) any { return entries },
	}
}

func matchesKind() Kind {
	return &scalarKind[domain.MatchHistory]{
		name:     KindMatches,
		field:    "matchHistoryLast",
		document: ledger.Document(queryLastMatch),
		table:    storage.TableMatchHistory,
		load:     (*cache.Store).LastMatch,
		save:     (*cache.Store).SetLastMatch,
		row:      func(m domain.MatchHistory) any { return m.Row() },
		key:      func(m domain.MatchHistory) string { return m.Row().ID },
	}
}

func tournamentsKind() Kind {
	return &keyedKind[domain.Tournament]{
		name:     KindTournaments,
		field:    "allTournaments",
		table:    storage.TableTournaments,
		document: func(string) string { return ledger.Document(queryTournaments) },
		fetched: func(c *cycle, items []domain.Tournament) {
			ids := make([]string, 0, len(items))
			for _, t := range items {
				ids = append(ids, t.TournamentID)
			}
			c.tournamentIDs = ids
		},
		key: func(t domain.Tournament) string { return t.TournamentID },
		load: func(s *cache.Store, _, key string) (domain.Tournament, bool) {
			return s.Tournament(key)
		},
		save:   func(s *cache.Store, _ string, t domain.Tournament) { s.SetTournament(t) },
		row:    func(_ string, t domain.Tournament) any { return t.Row() },
		rowKey: func(_ string, t domain.Tournament) string { return t.TournamentID },
	}
}

func participantsKind() Kind {
	return &keyedKind[domain.TournamentParticipant]{
		name:     KindParticipants,
		field:    "participants",
		table:    storage.TableParticipants,
		document: participantsDocument,
		scopes: func(c *cycle) []string {
			// Fall back to cached ids when this cycle's tournaments fetch failed.
			if c.tournamentIDs != nil {
				return c.tournamentIDs
			}
			return c.store.TournamentIDs()
		},
		key:  func(p domain.TournamentParticipant) string { return p.ID },
		load: (*cache.Store).Participant,
		save: (*cache.Store).SetParticipant,
		row: func(tid string, p domain.TournamentParticipant) any {
			return p.Row(tid)
		},
		rowKey: func(tid string, p domain.TournamentParticipant) string {
			return p.Row(tid).ID
		},
	}
}

func chainsKind() Kind {
	return &discoveryKind{
		field:    "tournamentChains",
		document: ledger.Document(queryChains),
	}
}
