package engine

// Outbound event names.
const (
	EventMatched              = "matched"
	EventRoundStart           = "round_start"
	EventOpponentRoast        = "opponent_roast"
	EventRoundScored          = "round_scored"
	EventOpponentDisconnected = "opponent_disconnected"
	EventEmojiReceived        = "emoji_received"
	EventEnded                = "ended"
)

type OpponentInfo struct {
	PlayerID string `json:"playerId"`
}

type MatchedPayload struct {
	BattleID string       `json:"battleId"`
	Opponent OpponentInfo `json:"opponent"`
	Mode     string       `json:"mode"`
}

type RoundStartPayload struct {
	BattleID string `json:"battleId"`
	Round    int    `json:"round"`
	Prompt   string `json:"prompt"`
	Duration int64  `json:"duration"` // milliseconds
}

type OpponentRoastPayload struct {
	Round int    `json:"round"`
	Roast string `json:"roast"`
	Mode  string `json:"mode"`
}

type RoundScoredPayload struct {
	Round             int    `json:"round"`
	YourScore         int    `json:"yourScore"`
	YourBreakdown     string `json:"yourBreakdown,omitempty"`
	OpponentScore     int    `json:"opponentScore"`
	OpponentBreakdown string `json:"opponentBreakdown,omitempty"`
	Commentary        string `json:"commentary"`
	Winner            string `json:"winner"` // "you" or "opponent"
}

type EmojiReceivedPayload struct {
	Emoji string `json:"emoji"`
	From  string `json:"from"`
}

type EndedPayload struct {
	YourScore     int    `json:"yourScore"`
	OpponentScore int    `json:"opponentScore"`
	Result        string `json:"result"` // "win" or "lose"
	Earnings      int    `json:"earnings"`
	PrizePool     int    `json:"prizePool"`
}
