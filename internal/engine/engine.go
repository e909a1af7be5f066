package engine

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/roastpush/roastpush-server/internal/battle"
	"github.com/roastpush/roastpush-server/internal/judge"
	"github.com/roastpush/roastpush-server/internal/metrics"
	"github.com/roastpush/roastpush-server/internal/obslog"
	"github.com/roastpush/roastpush-server/internal/tiers"
)

const fallbackCommentary = "AI judging temporarily unavailable"
const noRoastText = "No roast submitted"

// Store is the persistence port. All writes are best effort; a failing store
// never blocks or aborts battle flow, except RoundScores at settlement.
type Store interface {
	SaveBattle(ctx context.Context, battleID, player1ID, player2ID, tier, mode string) error
	SaveRound(ctx context.Context, battleID string, round int, prompt string) error
	SaveSubmission(ctx context.Context, battleID string, round, slot int, text string) error
	SaveRoundScores(ctx context.Context, battleID string, round, score1, score2 int, commentary string) error
	RoundScores(ctx context.Context, battleID string) ([]battle.RoundScore, error)
	CompleteBattle(ctx context.Context, battleID, winnerID string) error
	UpsertUserStats(ctx context.Context, playerID string, won bool) error
}

// Notifier delivers an outbound event to one connection.
type Notifier interface {
	Send(connID, event string, payload any)
}

// Judge scores a round. Implemented by judge.Client.
type Judge interface {
	Judge(ctx context.Context, prompt, roast1, roast2 string) (*judge.Verdict, error)
}

// Mirror is the optional Redis copy of live state. Never authoritative.
type Mirror interface {
	Save(ctx context.Context, b battle.Battle) error
	Delete(ctx context.Context, id string) error
	PushResult(ctx context.Context, r battle.ResultSummary) error
}

// Timings are the delays of the battle state machine.
type Timings struct {
	MatchStartDelay time.Duration
	RoundDuration   time.Duration
	// AutoScoreGrace is added to RoundDuration for the scoring deadline.
	AutoScoreGrace          time.Duration
	SettleDelay             time.Duration
	InterRoundDelay         time.Duration
	FallbackInterRoundDelay time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		MatchStartDelay:         3 * time.Second,
		RoundDuration:           30 * time.Second,
		AutoScoreGrace:          5 * time.Second,
		SettleDelay:             time.Second,
		InterRoundDelay:         8 * time.Second,
		FallbackInterRoundDelay: 5 * time.Second,
	}
}

// Engine runs all battle state on one goroutine. The transport and scheduler
// post events into the loop; external calls (judge, store) run in side
// goroutines whose results come back as continuation events, so there is no
// check-then-mutate gap on in-memory state.
type Engine struct {
	queue   *battle.Queue
	reg     *battle.Registry
	store   Store
	judge   Judge
	notify  Notifier
	sched   Scheduler
	mirror  Mirror
	catalog *tiers.Catalog
	timings Timings
	randN   func(n int) int

	events chan any
	done   chan struct{}
	ctx    context.Context
}

type Deps struct {
	Store     Store
	Judge     Judge
	Notifier  Notifier
	Scheduler Scheduler
	Mirror    Mirror // optional
	Catalog   *tiers.Catalog
}

type Option func(*Engine)

func WithTimings(t Timings) Option {
	return func(e *Engine) { e.timings = t }
}

// WithRand overrides the fallback score source for tests.
func WithRand(fn func(n int) int) Option {
	return func(e *Engine) { e.randN = fn }
}

func New(deps Deps, opts ...Option) *Engine {
	e := &Engine{
		queue:   battle.NewQueue(),
		reg:     battle.NewRegistry(),
		store:   deps.Store,
		judge:   deps.Judge,
		notify:  deps.Notifier,
		sched:   deps.Scheduler,
		mirror:  deps.Mirror,
		catalog: deps.Catalog,
		timings: DefaultTimings(),
		randN:   rand.Intn,
		events:  make(chan any, 256),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run owns the event loop until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.ctx = ctx
	defer close(e.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-e.events:
			e.dispatch(ev)
		}
	}
}

func (e *Engine) post(ev any) {
	select {
	case e.events <- ev:
	case <-e.done:
	}
}

// JoinQueue enqueues a player and attempts a match.
func (e *Engine) JoinQueue(connID, playerID, tier, mode string) {
	e.post(joinQueueEvent{connID: connID, playerID: playerID, tier: tier, mode: mode})
}

// LeaveQueue removes a waiting player.
func (e *Engine) LeaveQueue(connID string) {
	e.post(leaveQueueEvent{connID: connID})
}

// Disconnect tears down queue slots and battles for a dropped connection.
func (e *Engine) Disconnect(connID string) {
	e.post(disconnectEvent{connID: connID})
}

// SubmitRoast records a submission and forwards it to the opponent.
func (e *Engine) SubmitRoast(connID, battleID string, round int, roast, mode string) {
	e.post(submitEvent{connID: connID, battleID: battleID, round: round, roast: roast, mode: mode})
}

// EmojiReaction broadcasts an emoji to both players of a battle.
func (e *Engine) EmojiReaction(connID, battleID, emoji string) {
	e.post(reactionEvent{connID: connID, battleID: battleID, emoji: emoji})
}

// RequestState resends the current round to a reconnecting client.
func (e *Engine) RequestState(connID, battleID string) {
	e.post(stateRequestEvent{connID: connID, battleID: battleID})
}

func (e *Engine) dispatch(ev any) {
	switch ev := ev.(type) {
	case joinQueueEvent:
		e.handleJoinQueue(ev)
	case leaveQueueEvent:
		e.queue.Remove(ev.connID)
		metrics.QueueDepth.Set(float64(e.queue.Len()))
	case disconnectEvent:
		e.handleDisconnect(ev)
	case submitEvent:
		e.handleSubmit(ev)
	case reactionEvent:
		e.handleReaction(ev)
	case stateRequestEvent:
		e.handleStateRequest(ev)
	case timerEvent:
		e.handleTimer(ev)
	case verdictEvent:
		e.handleVerdict(ev)
	case settlementEvent:
		e.handleSettlement(ev)
	}
}

func (e *Engine) handleJoinQueue(ev joinQueueEvent) {
	if !e.catalog.Has(ev.tier) {
		obslog.L().Warn("join for unknown tier", zap.String("tier", ev.tier), zap.String("player", ev.playerID))
		return
	}
	e.queue.Enqueue(battle.QueueEntry{
		ConnID:   ev.connID,
		PlayerID: ev.playerID,
		Tier:     ev.tier,
		Mode:     ev.mode,
		JoinedAt: time.Now(),
	})
	metrics.QueueDepth.Set(float64(e.queue.Len()))

	p1, p2, ok := e.queue.DequeuePair(ev.tier, ev.mode)
	if !ok {
		return
	}
	metrics.QueueDepth.Set(float64(e.queue.Len()))

	b := e.reg.Create(ev.tier, ev.mode,
		battle.PlayerRef{ConnID: p1.ConnID, PlayerID: p1.PlayerID},
		battle.PlayerRef{ConnID: p2.ConnID, PlayerID: p2.PlayerID})
	metrics.BattlesStarted.Inc()
	metrics.ActiveBattles.Set(float64(e.reg.Count()))

	obslog.L().Info("match found",
		zap.String("battle_id", b.ID),
		zap.String("tier", b.Tier),
		zap.String("mode", b.Mode),
		zap.String("player1", p1.PlayerID),
		zap.String("player2", p2.PlayerID))

	go func() {
		ctx, cancel := e.sideContext()
		defer cancel()
		if err := e.store.SaveBattle(ctx, b.ID, p1.PlayerID, p2.PlayerID, b.Tier, b.Mode); err != nil {
			obslog.L().Warn("save battle failed", zap.String("battle_id", b.ID), zap.Error(err))
		}
	}()
	e.mirrorSave(b)

	e.notify.Send(p1.ConnID, EventMatched, MatchedPayload{BattleID: b.ID, Opponent: OpponentInfo{PlayerID: p2.PlayerID}, Mode: b.Mode})
	e.notify.Send(p2.ConnID, EventMatched, MatchedPayload{BattleID: b.ID, Opponent: OpponentInfo{PlayerID: p1.PlayerID}, Mode: b.Mode})

	e.schedule(e.timings.MatchStartDelay, timerEvent{battleID: b.ID, round: 1, purpose: timerRoundStart})
}

func (e *Engine) handleTimer(ev timerEvent) {
	switch ev.purpose {
	case timerRoundStart:
		e.startRound(ev.battleID, ev.round)
	case timerAutoScore:
		// Deadline hit. Whoever claims first scores; a lost claim means the
		// settle path already took it.
		won, err := e.reg.TryClaimScoring(ev.battleID, ev.round)
		if err != nil || !won {
			return
		}
		e.scoreRound(ev.battleID, ev.round)
	case timerSettle:
		e.scoreRound(ev.battleID, ev.round)
	case timerEndBattle:
		e.beginSettlement(ev.battleID)
	}
}

func (e *Engine) startRound(battleID string, round int) {
	snap, ok := e.reg.Snapshot(battleID)
	if !ok {
		return
	}
	prompt, err := e.catalog.Prompt(snap.Tier, round)
	if err != nil {
		obslog.L().Error("no prompt for round", zap.String("battle_id", battleID), zap.Int("round", round), zap.Error(err))
		return
	}
	if err := e.reg.BeginRound(battleID, round, prompt); err != nil {
		return
	}

	obslog.L().Info("round start", zap.String("battle_id", battleID), zap.Int("round", round))

	go func() {
		ctx, cancel := e.sideContext()
		defer cancel()
		if err := e.store.SaveRound(ctx, battleID, round, prompt); err != nil {
			obslog.L().Warn("save round failed", zap.String("battle_id", battleID), zap.Int("round", round), zap.Error(err))
		}
	}()

	payload := RoundStartPayload{
		BattleID: battleID,
		Round:    round,
		Prompt:   prompt,
		Duration: e.timings.RoundDuration.Milliseconds(),
	}
	for _, p := range snap.Players {
		e.notify.Send(p.ConnID, EventRoundStart, payload)
	}
	if b, ok := e.reg.Snapshot(battleID); ok {
		e.mirrorSave(b)
	}

	e.schedule(e.timings.RoundDuration+e.timings.AutoScoreGrace,
		timerEvent{battleID: battleID, round: round, purpose: timerAutoScore})
}

func (e *Engine) handleSubmit(ev submitEvent) {
	slot, complete, err := e.reg.RecordSubmission(ev.battleID, ev.round, ev.connID, ev.roast)
	if err != nil {
		// Battle already gone or bogus round; late submissions are dropped.
		return
	}

	if opp, err := e.reg.OpponentOf(ev.battleID, ev.connID); err == nil {
		e.notify.Send(opp.ConnID, EventOpponentRoast, OpponentRoastPayload{Round: ev.round, Roast: ev.roast, Mode: ev.mode})
	}

	go func() {
		ctx, cancel := e.sideContext()
		defer cancel()
		if err := e.store.SaveSubmission(ctx, ev.battleID, ev.round, slot, ev.roast); err != nil {
			obslog.L().Warn("save submission failed", zap.String("battle_id", ev.battleID), zap.Int("round", ev.round), zap.Error(err))
		}
	}()

	if !complete {
		return
	}
	won, err := e.reg.TryClaimScoring(ev.battleID, ev.round)
	if err != nil || !won {
		return
	}
	e.schedule(e.timings.SettleDelay, timerEvent{battleID: ev.battleID, round: ev.round, purpose: timerSettle})
}

// scoreRound runs with the scoring claim already held.
func (e *Engine) scoreRound(battleID string, round int) {
	snap, ok := e.reg.Snapshot(battleID)
	if !ok {
		return
	}
	rd, ok := snap.Rounds[round]
	if !ok {
		return
	}

	roast1, roast2 := noRoastText, noRoastText
	if s, ok := rd.Submissions[1]; ok {
		roast1 = s.Text
	}
	if s, ok := rd.Submissions[2]; ok {
		roast2 = s.Text
	}
	prompt := rd.Prompt

	obslog.L().Info("scoring round", zap.String("battle_id", battleID), zap.Int("round", round))

	go func() {
		v, err := e.judge.Judge(e.ctx, prompt, roast1, roast2)
		e.post(verdictEvent{battleID: battleID, round: round, verdict: v, err: err})
	}()
}

func (e *Engine) handleVerdict(ev verdictEvent) {
	snap, ok := e.reg.Snapshot(ev.battleID)
	if !ok {
		return
	}

	var sc battle.Scores
	delay := e.timings.InterRoundDelay
	if ev.err != nil {
		obslog.L().Warn("judge failed, using fallback scores",
			zap.String("battle_id", ev.battleID), zap.Int("round", ev.round), zap.Error(ev.err))
		metrics.JudgeFailures.Inc()

		sc = battle.Scores{
			Player1:    e.randN(50) + 50,
			Player2:    e.randN(50) + 50,
			Commentary: fallbackCommentary,
			Fallback:   true,
		}
		if sc.Player1 == sc.Player2 {
			sc.Player1 += e.randN(5) + 1
		}
		delay = e.timings.FallbackInterRoundDelay
	} else {
		v := ev.verdict
		sc = battle.Scores{
			Player1:    v.Score1,
			Player2:    v.Score2,
			Breakdown1: v.Breakdown1,
			Breakdown2: v.Breakdown2,
			Commentary: v.Commentary,
		}
		go func() {
			ctx, cancel := e.sideContext()
			defer cancel()
			if err := e.store.SaveRoundScores(ctx, ev.battleID, ev.round, sc.Player1, sc.Player2, sc.Commentary); err != nil {
				obslog.L().Warn("save round scores failed", zap.String("battle_id", ev.battleID), zap.Int("round", ev.round), zap.Error(err))
			}
		}()
	}

	if err := e.reg.SetScores(ev.battleID, ev.round, sc); err != nil {
		return
	}
	metrics.RoundsScored.Inc()

	for i, p := range snap.Players {
		yours, theirs := sc.Player1, sc.Player2
		yourBd, theirBd := sc.Breakdown1, sc.Breakdown2
		if i == 1 {
			yours, theirs = theirs, yours
			yourBd, theirBd = theirBd, yourBd
		}
		winner := "opponent"
		if yours > theirs {
			winner = "you"
		}
		e.notify.Send(p.ConnID, EventRoundScored, RoundScoredPayload{
			Round:             ev.round,
			YourScore:         yours,
			YourBreakdown:     yourBd,
			OpponentScore:     theirs,
			OpponentBreakdown: theirBd,
			Commentary:        sc.Commentary,
			Winner:            winner,
		})
	}

	if b, ok := e.reg.Snapshot(ev.battleID); ok {
		e.mirrorSave(b)
	}

	if ev.round < e.catalog.RoundsPerBattle {
		e.schedule(delay, timerEvent{battleID: ev.battleID, round: ev.round + 1, purpose: timerRoundStart})
	} else {
		e.schedule(delay, timerEvent{battleID: ev.battleID, purpose: timerEndBattle})
	}
}

func (e *Engine) beginSettlement(battleID string) {
	if _, ok := e.reg.Snapshot(battleID); !ok {
		return
	}
	go func() {
		ctx, cancel := e.sideContext()
		defer cancel()
		rows, err := e.store.RoundScores(ctx, battleID)
		e.post(settlementEvent{battleID: battleID, rows: rows, err: err})
	}()
}

func (e *Engine) handleSettlement(ev settlementEvent) {
	snap, ok := e.reg.Snapshot(ev.battleID)
	if !ok {
		return
	}
	if ev.err != nil {
		obslog.L().Error("settlement score read failed, tearing down",
			zap.String("battle_id", ev.battleID), zap.Error(ev.err))
		e.teardown(ev.battleID)
		return
	}

	var total1, total2 int
	for _, r := range ev.rows {
		total1 += r.Player1
		total2 += r.Player2
	}

	winnerSlot := 2
	if total1 > total2 {
		winnerSlot = 1
	}
	winner := snap.Players[winnerSlot-1]

	obslog.L().Info("battle ended",
		zap.String("battle_id", ev.battleID),
		zap.String("winner", winner.PlayerID),
		zap.Int("total1", total1),
		zap.Int("total2", total2))

	go func() {
		ctx, cancel := e.sideContext()
		defer cancel()
		if err := e.store.CompleteBattle(ctx, ev.battleID, winner.PlayerID); err != nil {
			obslog.L().Warn("complete battle failed", zap.String("battle_id", ev.battleID), zap.Error(err))
		}
		for _, p := range snap.Players {
			if err := e.store.UpsertUserStats(ctx, p.PlayerID, p.PlayerID == winner.PlayerID); err != nil {
				obslog.L().Warn("user stats upsert failed", zap.String("player", p.PlayerID), zap.Error(err))
			}
		}
	}()

	entryFee, err := e.catalog.EntryFee(snap.Tier)
	if err != nil {
		entryFee = 0
	}
	pool := entryFee * 2
	cut := int(math.Round(float64(pool) * e.catalog.PlatformFee))
	winnerPrize := pool - cut

	for i, p := range snap.Players {
		yours, theirs := total1, total2
		if i == 1 {
			yours, theirs = theirs, yours
		}
		result, earnings := "lose", -entryFee
		if p.PlayerID == winner.PlayerID {
			result, earnings = "win", winnerPrize
		}
		e.notify.Send(p.ConnID, EventEnded, EndedPayload{
			YourScore:     yours,
			OpponentScore: theirs,
			Result:        result,
			Earnings:      earnings,
			PrizePool:     pool,
		})
	}

	if e.mirror != nil {
		summary := battle.ResultSummary{
			BattleID:  snap.ID,
			Tier:      snap.Tier,
			Mode:      snap.Mode,
			Player1ID: snap.Players[0].PlayerID,
			Player2ID: snap.Players[1].PlayerID,
			WinnerID:  winner.PlayerID,
			Score1:    total1,
			Score2:    total2,
			EndedAt:   time.Now().UTC(),
		}
		go func() {
			ctx, cancel := e.sideContext()
			defer cancel()
			if err := e.mirror.PushResult(ctx, summary); err != nil {
				obslog.L().Warn("push result failed", zap.String("battle_id", summary.BattleID), zap.Error(err))
			}
		}()
	}

	e.teardown(ev.battleID)
	metrics.BattlesCompleted.Inc()
}

func (e *Engine) handleDisconnect(ev disconnectEvent) {
	e.queue.Remove(ev.connID)
	metrics.QueueDepth.Set(float64(e.queue.Len()))

	for _, b := range e.reg.BattlesWith(ev.connID) {
		if opp, ok := b.Opponent(ev.connID); ok {
			e.notify.Send(opp.ConnID, EventOpponentDisconnected, struct{}{})
		}
		obslog.L().Info("battle forfeited on disconnect",
			zap.String("battle_id", b.ID), zap.String("conn", ev.connID))
		e.teardown(b.ID)
		metrics.BattlesForfeited.Inc()
	}
}

func (e *Engine) handleReaction(ev reactionEvent) {
	snap, ok := e.reg.Snapshot(ev.battleID)
	if !ok {
		return
	}
	payload := EmojiReceivedPayload{Emoji: ev.emoji, From: ev.connID}
	for _, p := range snap.Players {
		e.notify.Send(p.ConnID, EventEmojiReceived, payload)
	}
}

func (e *Engine) handleStateRequest(ev stateRequestEvent) {
	snap, ok := e.reg.Snapshot(ev.battleID)
	if !ok {
		return
	}
	if snap.SlotOf(ev.connID) == 0 {
		return
	}
	prompt := ""
	if rd, ok := snap.Rounds[snap.CurrentRound]; ok {
		prompt = rd.Prompt
	} else if p, err := e.catalog.Prompt(snap.Tier, snap.CurrentRound); err == nil {
		prompt = p
	}
	e.notify.Send(ev.connID, EventRoundStart, RoundStartPayload{
		BattleID: snap.ID,
		Round:    snap.CurrentRound,
		Prompt:   prompt,
		Duration: e.timings.RoundDuration.Milliseconds(),
	})
}

// teardown removes a battle from the registry and the mirror.
func (e *Engine) teardown(battleID string) {
	e.reg.Remove(battleID)
	metrics.ActiveBattles.Set(float64(e.reg.Count()))
	if e.mirror != nil {
		go func() {
			ctx, cancel := e.sideContext()
			defer cancel()
			if err := e.mirror.Delete(ctx, battleID); err != nil {
				obslog.L().Warn("mirror delete failed", zap.String("battle_id", battleID), zap.Error(err))
			}
		}()
	}
}

func (e *Engine) mirrorSave(b battle.Battle) {
	if e.mirror == nil {
		return
	}
	go func() {
		ctx, cancel := e.sideContext()
		defer cancel()
		if err := e.mirror.Save(ctx, b); err != nil {
			obslog.L().Warn("mirror save failed", zap.String("battle_id", b.ID), zap.Error(err))
		}
	}()
}

func (e *Engine) schedule(d time.Duration, ev timerEvent) {
	e.sched.AfterFunc(d, func() { e.post(ev) })
}

func (e *Engine) sideContext() (context.Context, context.CancelFunc) {
	base := e.ctx
	if base == nil {
		base = context.Background()
	}
	return context.WithTimeout(base, 10*time.Second)
}
