package battle

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("battle not found")
	ErrRoundNotFound   = errors.New("round not found")
	ErrNotParticipant  = errors.New("player not in battle")
	ErrRoundNotStarted = errors.New("round not started")
)

// QueueEntry is one waiting player in the matchmaking queue.
type QueueEntry struct {
	ConnID   string    `json:"connId"`
	PlayerID string    `json:"playerId"`
	Tier     string    `json:"tier"`
	Mode     string    `json:"mode"`
	JoinedAt time.Time `json:"joinedAt"`
}

// PlayerRef identifies one participant of a battle.
type PlayerRef struct {
	ConnID   string `json:"connId"`
	PlayerID string `json:"playerId"`
}

// Submission is one player's roast for one round.
type Submission struct {
	Text        string    `json:"text"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// ScoringState tracks the one-shot scoring claim per round.
type ScoringState string

const (
	ScoringPending ScoringState = "pending"
	ScoringClaimed ScoringState = "scoring"
	ScoringDone    ScoringState = "scored"
)

// Scores is the judged outcome of one round. Player1/Player2 are never equal.
type Scores struct {
	Player1    int    `json:"player1"`
	Player2    int    `json:"player2"`
	Breakdown1 string `json:"breakdown1,omitempty"`
	Breakdown2 string `json:"breakdown2,omitempty"`
	Commentary string `json:"commentary"`
	Fallback   bool   `json:"fallback,omitempty"`
}

// Round is the per-round state: prompt, submissions keyed by player slot (1 or 2),
// scoring claim and final scores.
type Round struct {
	Prompt      string             `json:"prompt"`
	Submissions map[int]Submission `json:"submissions"`
	State       ScoringState       `json:"state"`
	Scores      *Scores            `json:"scores,omitempty"`
}

// Battle is the in-memory state of one active battle.
type Battle struct {
	ID           string         `json:"id"`
	Tier         string         `json:"tier"`
	Mode         string         `json:"mode"`
	Players      [2]PlayerRef   `json:"players"`
	Rounds       map[int]*Round `json:"rounds"`
	CurrentRound int            `json:"currentRound"`
	StartedAt    time.Time      `json:"startedAt"`
}

// SlotOf returns the 1-based player slot for a connection, or 0.
func (b *Battle) SlotOf(connID string) int {
	for i, p := range b.Players {
		if p.ConnID == connID {
			return i + 1
		}
	}
	return 0
}

// Opponent returns the other participant for a connection.
func (b *Battle) Opponent(connID string) (PlayerRef, bool) {
	switch b.SlotOf(connID) {
	case 1:
		return b.Players[1], true
	case 2:
		return b.Players[0], true
	}
	return PlayerRef{}, false
}

// RoundScore is one persisted round score row.
type RoundScore struct {
	Round   int
	Player1 int
	Player2 int
}

// ResultSummary is a completed battle record for the recent-results feed.
type ResultSummary struct {
	BattleID  string    `json:"battleId"`
	Tier      string    `json:"tier"`
	Mode      string    `json:"mode"`
	Player1ID string    `json:"player1Id"`
	Player2ID string    `json:"player2Id"`
	WinnerID  string    `json:"winnerId"`
	Score1    int       `json:"score1"`
	Score2    int       `json:"score2"`
	EndedAt   time.Time `json:"endedAt"`
}
