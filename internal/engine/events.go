package engine

import (
	"github.com/roastpush/roastpush-server/internal/battle"
	"github.com/roastpush/roastpush-server/internal/judge"
)

// Inbound commands from the transport.
type joinQueueEvent struct {
	connID   string
	playerID string
	tier     string
	mode     string
}

type leaveQueueEvent struct {
	connID string
}

type disconnectEvent struct {
	connID string
}

type submitEvent struct {
	connID   string
	battleID string
	round    int
	roast    string
	mode     string
}

type reactionEvent struct {
	connID   string
	battleID string
	emoji    string
}

type stateRequestEvent struct {
	connID   string
	battleID string
}

// timerEvent is a scheduled task firing back into the loop. The handler
// re-fetches the battle; a missing battle makes the task a no-op.
type timerPurpose int

const (
	timerRoundStart timerPurpose = iota
	timerAutoScore
	timerSettle
	timerEndBattle
)

type timerEvent struct {
	battleID string
	round    int
	purpose  timerPurpose
}

// verdictEvent is the continuation of a judge call made in a side goroutine.
type verdictEvent struct {
	battleID string
	round    int
	verdict  *judge.Verdict
	err      error
}

// settlementEvent is the continuation of the end-of-battle score read.
type settlementEvent struct {
	battleID string
	rows     []battle.RoundScore
	err      error
}
