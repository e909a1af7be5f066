package battle

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry owns every active battle. All mutation goes through its methods so
// check-and-mutate sequences (scoring claims, submission counts) are atomic.
type Registry struct {
	mu      sync.Mutex
	battles map[string]*Battle
}

func NewRegistry() *Registry {
	return &Registry{battles: make(map[string]*Battle)}
}

// Create registers a new battle between two players and returns a snapshot.
func (r *Registry) Create(tier, mode string, p1, p2 PlayerRef) Battle {
	b := &Battle{
		ID:           uuid.NewString(),
		Tier:         tier,
		Mode:         mode,
		Players:      [2]PlayerRef{p1, p2},
		Rounds:       make(map[int]*Round),
		CurrentRound: 1,
		StartedAt:    time.Now(),
	}
	r.mu.Lock()
	r.battles[b.ID] = b
	r.mu.Unlock()
	return snapshot(b)
}

// Snapshot returns a deep copy of a battle, or false if it is gone.
func (r *Registry) Snapshot(id string) (Battle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.battles[id]
	if !ok {
		return Battle{}, false
	}
	return snapshot(b), true
}

// Remove drops a battle from the registry.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.battles[id]; !ok {
		return false
	}
	delete(r.battles, id)
	return true
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.battles)
}

// BeginRound creates the round entry with its prompt and sets CurrentRound.
// Idempotent: an existing round keeps its submissions and state.
func (r *Registry) BeginRound(id string, round int, prompt string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.battles[id]
	if !ok {
		return ErrNotFound
	}
	if _, ok := b.Rounds[round]; !ok {
		b.Rounds[round] = &Round{
			Prompt:      prompt,
			Submissions: make(map[int]Submission),
			State:       ScoringPending,
		}
	}
	if round > b.CurrentRound {
		b.CurrentRound = round
	}
	return nil
}

// RecordSubmission stores a player's roast for a round. Resubmission replaces
// the earlier text without changing the count. Returns the player's slot and
// whether both slots are now filled.
func (r *Registry) RecordSubmission(id string, round int, connID, text string) (slot int, complete bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.battles[id]
	if !ok {
		return 0, false, ErrNotFound
	}
	slot = b.SlotOf(connID)
	if slot == 0 {
		return 0, false, ErrNotParticipant
	}
	rd, ok := b.Rounds[round]
	if !ok {
		return 0, false, ErrRoundNotFound
	}
	rd.Submissions[slot] = Submission{Text: text, SubmittedAt: time.Now()}
	return slot, len(rd.Submissions) == 2, nil
}

// TryClaimScoring flips the round from pending to claimed. Exactly one caller
// wins; later callers get false. This is what keeps the settle-delay path and
// the auto-score deadline from scoring the same round twice.
func (r *Registry) TryClaimScoring(id string, round int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.battles[id]
	if !ok {
		return false, ErrNotFound
	}
	rd, ok := b.Rounds[round]
	if !ok {
		return false, ErrRoundNotFound
	}
	if rd.State != ScoringPending {
		return false, nil
	}
	rd.State = ScoringClaimed
	return true, nil
}

// SetScores records the judged outcome and marks the round scored.
func (r *Registry) SetScores(id string, round int, sc Scores) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.battles[id]
	if !ok {
		return ErrNotFound
	}
	rd, ok := b.Rounds[round]
	if !ok {
		return ErrRoundNotFound
	}
	rd.Scores = &sc
	rd.State = ScoringDone
	return nil
}

// OpponentOf returns the other player of a battle for a connection.
func (r *Registry) OpponentOf(id, connID string) (PlayerRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.battles[id]
	if !ok {
		return PlayerRef{}, ErrNotFound
	}
	opp, ok := b.Opponent(connID)
	if !ok {
		return PlayerRef{}, ErrNotParticipant
	}
	return opp, nil
}

// BattlesWith returns snapshots of every battle a connection participates in.
func (r *Registry) BattlesWith(connID string) []Battle {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Battle
	for _, b := range r.battles {
		if b.SlotOf(connID) != 0 {
			out = append(out, snapshot(b))
		}
	}
	return out
}

func snapshot(b *Battle) Battle {
	cp := *b
	cp.Rounds = make(map[int]*Round, len(b.Rounds))
	for n, rd := range b.Rounds {
		rc := *rd
		rc.Submissions = make(map[int]Submission, len(rd.Submissions))
		for s, sub := range rd.Submissions {
			rc.Submissions[s] = sub
		}
		if rd.Scores != nil {
			sc := *rd.Scores
			rc.Scores = &sc
		}
		cp.Rounds[n] = &rc
	}
	return cp
}
