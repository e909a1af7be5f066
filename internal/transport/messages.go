package transport

import "encoding/json"

// Frame is the wire envelope in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Inbound event names.
const (
	eventJoinQueue     = "join_queue"
	eventLeaveQueue    = "leave_queue"
	eventRequestState  = "request_state"
	eventSubmitRoast   = "submit_roast"
	eventEmojiReaction = "emoji_reaction"
)

type joinQueueData struct {
	PlayerID string `json:"playerId"`
	Tier     string `json:"tier"`
	Mode     string `json:"mode"`
}

type requestStateData struct {
	BattleID string `json:"battleId"`
}

type submitRoastData struct {
	BattleID string `json:"battleId"`
	Round    int    `json:"round"`
	Roast    string `json:"roast"`
	Mode     string `json:"mode"`
}

type emojiReactionData struct {
	BattleID string `json:"battleId"`
	Emoji    string `json:"emoji"`
}
