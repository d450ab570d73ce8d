package domain

import (
	"strconv"

	"github.com/google/uuid"
)

// rowNamespace seeds deterministic row ids so repeated writes of one record hit the same primary key.
var rowNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/vietddude/ledgersync"))

// GameCountSingletonID is the only row of the game count table.
const GameCountSingletonID = "singleton"

// GameCount is the sink row holding the application's game counter.
type GameCount struct {
	ID    string `json:"id"`
	Count string `json:"count"`
}

// NewGameCount builds the singleton row for a counter value.
func NewGameCount(count uint64) GameCount {
	return GameCount{ID: GameCountSingletonID, Count: strconv.FormatUint(count, 10)}
}

// LeaderboardEntry is one player's standing.
type LeaderboardEntry struct {
	ID      string  `json:"id"`
	Name    *string `json:"name"`
	Elo     uint32  `json:"elo"`
	Matches uint32  `json:"matches"`
	Won     uint32  `json:"won"`
	Lost    uint32  `json:"lost"`
}

// Player identifies one side of a match.
type Player struct {
	ID   string  `json:"id"`
	Name *string `json:"name"`
}

// MatchHistory is the last finished match as reported by the application.
type MatchHistory struct {
	You      Player `json:"you"`
	Opponent Player `json:"opponent"`
	BlobHash string `json:"blobHash"`
}

// MatchHistoryRow is the flattened sink row of a match.
type MatchHistoryRow struct {
	ID          string  `json:"id"`
	Player1ID   string  `json:"player1Id"`
	Player1Name *string `json:"player1Name"`
	Player2ID   string  `json:"player2Id"`
	Player2Name *string `json:"player2Name"`
	BlobHash    string  `json:"blobHash"`
}

// Row flattens the match. The id is derived from the blob hash.
func (m MatchHistory) Row() MatchHistoryRow {
	return MatchHistoryRow{
		ID:          uuid.NewSHA1(rowNamespace, []byte("match/"+m.BlobHash)).String(),
		Player1ID:   m.You.ID,
		Player1Name: m.You.Name,
		Player2ID:   m.Opponent.ID,
		Player2Name: m.Opponent.Name,
		BlobHash:    m.BlobHash,
	}
}

// TimeControl describes the clock of tournament games.
type TimeControl struct {
	BaseMinutes      uint32  `json:"baseMinutes"`
	IncrementSeconds uint32  `json:"incrementSeconds"`
	ModeLabel        *string `json:"modeLabel"`
}

// Tournament is a tournament as reported by a tournament-aggregating chain.
type Tournament struct {
	OrganiserChain        string  `json:"organiserChain"`
	OrganiserID           string  `json:"organiserId"`
	OrganiserName         string  `json:"organiserName"`
	TournamentID          string  `json:"tournamentId"`
	TournamentName        string  `json:"tournamentName"`
	TournamentDescription *string `json:"tournamentDescription"`

	TournamentFormat string       `json:"tournamentFormat"`
	MatchType        string       `json:"matchType"`
	GameMode         string       `json:"gameMode"`
	TimeControl      *TimeControl `json:"timeControl"`
	MaxPlayers       *uint32      `json:"maxPlayers"`
	MinPlayers       *uint32      `json:"minPlayers"`

	StartingTime uint64 `json:"startingTime"`
	EndTime      uint64 `json:"endTime"`

	PrizeType            *string `json:"prizeType"`
	PrizePoolDescription *string `json:"prizePoolDescription"`
	PrizePool            uint32  `json:"prizePool"`

	Visibility string `json:"visibility"`

	BannerImageURL *string  `json:"bannerImageUrl"`
	SponsorLogoURL *string  `json:"sponsorLogoUrl"`
	CustomTags     []string `json:"customTags"`

	Version   string `json:"version"`
	CreatedAt uint64 `json:"createdAt"`
	UpdatedAt uint64 `json:"updatedAt"`
	Status    string `json:"status"`
}

// TournamentRow is the sink row of a tournament with the time control flattened.
type TournamentRow struct {
	TournamentID          string  `json:"tournament_id"`
	OrganiserChain        string  `json:"organiserChain"`
	OrganiserID           string  `json:"organiserId"`
	OrganiserName         string  `json:"organiserName"`
	TournamentName        string  `json:"tournamentName"`
	TournamentDescription *string `json:"tournamentDescription"`

	TournamentFormat string `json:"tournamentFormat"`
	MatchType        string `json:"matchType"`
	GameMode         string `json:"gameMode"`

	TimeControlBaseMinutes      uint32  `json:"timeControlBaseMinutes"`
	TimeControlIncrementSeconds uint32  `json:"timeControlIncrementSeconds"`
	TimeControlModeLabel        *string `json:"timeControlModeLabel"`

	MaxPlayers *uint32 `json:"maxPlayers"`
	MinPlayers *uint32 `json:"minPlayers"`

	StartingTime uint64 `json:"startingTime"`
	EndTime      uint64 `json:"endTime"`

	PrizePoolDescription *string `json:"prizePoolDescription"`
	Visibility           string  `json:"visibility"`

	BannerImageURL *string `json:"bannerImageUrl"`
	SponsorLogoURL *string `json:"sponsorLogoUrl"`

	PrizeType  *string  `json:"prizeType"`
	PrizePool  uint32   `json:"prizePool"`
	CustomTags []string `json:"customTags"`

	Version   string `json:"version"`
	CreatedAt uint64 `json:"createdAt"`
	UpdatedAt uint64 `json:"updatedAt"`
	Status    string `json:"status"`
}

// Row flattens the tournament for the sink.
func (t Tournament) Row() TournamentRow {
	row := TournamentRow{
		TournamentID:          t.TournamentID,
		OrganiserChain:        t.OrganiserChain,
		OrganiserID:           t.OrganiserID,
		OrganiserName:         t.OrganiserName,
		TournamentName:        t.TournamentName,
		TournamentDescription: t.TournamentDescription,
		TournamentFormat:      t.TournamentFormat,
		MatchType:             t.MatchType,
		GameMode:              t.GameMode,
		MaxPlayers:            t.MaxPlayers,
		MinPlayers:            t.MinPlayers,
		StartingTime:          t.StartingTime,
		EndTime:               t.EndTime,
		PrizePoolDescription:  t.PrizePoolDescription,
		Visibility:            t.Visibility,
		BannerImageURL:        t.BannerImageURL,
		SponsorLogoURL:        t.SponsorLogoURL,
		PrizeType:             t.PrizeType,
		PrizePool:             t.PrizePool,
		CustomTags:            t.CustomTags,
		Version:               t.Version,
		CreatedAt:             t.CreatedAt,
		UpdatedAt:             t.UpdatedAt,
		Status:                t.Status,
	}
	if row.CustomTags == nil {
		row.CustomTags = []string{}
	}
	if tc := t.TimeControl; tc != nil {
		row.TimeControlBaseMinutes = tc.BaseMinutes
		row.TimeControlIncrementSeconds = tc.IncrementSeconds
		row.TimeControlModeLabel = tc.ModeLabel
	}
	return row
}

// PlayerInfo is a participant's rating snapshot.
type PlayerInfo struct {
	Name    *string `json:"name"`
	Elo     uint32  `json:"elo"`
	Matches uint32  `json:"matches"`
	Ath     uint32  `json:"ath"`
}

// TournamentParticipant is one registered player of a tournament.
type TournamentParticipant struct {
	ID     string     `json:"id"`
	Player PlayerInfo `json:"player"`
}

// TournamentParticipantRow is the sink row of a participant.
type TournamentParticipantRow struct {
	ID            string  `json:"id"`
	TournamentID  string  `json:"tournament_id"`
	PlayerID      string  `json:"player_id"`
	PlayerName    *string `json:"player_name"`
	PlayerElo     uint32  `json:"player_elo"`
	PlayerMatches uint32  `json:"player_matches"`
	PlayerAth     uint32  `json:"player_ath"`
}

// Row flattens the participant. The same player in two tournaments yields two rows.
func (p TournamentParticipant) Row(tournamentID string) TournamentParticipantRow {
	return TournamentParticipantRow{
		ID:            uuid.NewSHA1(rowNamespace, []byte("participant/"+tournamentID+"/"+p.ID)).String(),
		TournamentID:  tournamentID,
		PlayerID:      p.ID,
		PlayerName:    p.Player.Name,
		PlayerElo:     p.Player.Elo,
		PlayerMatches: p.Player.Matches,
		PlayerAth:     p.Player.Ath,
	}
}
