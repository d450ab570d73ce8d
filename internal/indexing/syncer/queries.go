package syncer

import (
	"fmt"

	"github.com/vietddude/ledgersync/internal/infra/ledger"
)

// GraphQL selections sent to the application of each chain.
const (
	querySubscribe   = `mutation { subscribe }`
	queryCount       = `query { count }`
	queryLeaderboard = `query { leaderboard { elo id name matches won lost } }`
	queryLastMatch   = `query { matchHistoryLast { you { id name } opponent { id name } blobHash } }`
	queryTournaments = `query { allTournaments { ` +
		`organiserChain organiserId organiserName tournamentId tournamentName tournamentDescription ` +
		`tournamentFormat matchType gameMode timeControl { baseMinutes incrementSeconds modeLabel } ` +
		`bannerImageUrl sponsorLogoUrl maxPlayers minPlayers startingTime endTime ` +
		`prizeType prizePoolDescription prizePool visibility customTags ` +
		`version createdAt updatedAt status } }`
	queryParticipants = `query { participants(tournamentId: %q) { id player { name elo matches ath } } }`
	queryChains       = `query { tournamentChains }`
)

// SubscribeDocument asks the application to start emitting notifications.
func SubscribeDocument() string {
	return ledger.Document(querySubscribe)
}

func participantsDocument(tournamentID string) string {
	return ledger.Document(fmt.Sprintf(queryParticipants, tournamentID))
}
