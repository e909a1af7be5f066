package battle

import (
	"context"
	"sync"
)

// MemStore is an in-memory store used when no database is configured.
// It mirrors the Repository surface so settlement works the same way.
type MemStore struct {
	mu sync.RWMutex

	battles map[string]*memBattle
	rounds  map[string]map[int]*memRound
	stats   map[string]*UserStats
}

type memBattle struct {
	player1ID, player2ID string
	tier, mode           string
	winnerID             string
	completed            bool
}

type memRound struct {
	prompt           string
	roasts           map[int]string
	score1, score2   int
	commentary       string
	scored           bool
}

// UserStats is a player's cumulative record.
type UserStats struct {
	TotalBattles int
	TotalWins    int
}

func NewMemStore() *MemStore {
	return &MemStore{
		battles: make(map[string]*memBattle),
		rounds:  make(map[string]map[int]*memRound),
		stats:   make(map[string]*UserStats),
	}
}

func (m *MemStore) SaveBattle(ctx context.Context, battleID, player1ID, player2ID, tier, mode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.battles[battleID]; ok {
		return nil
	}
	m.battles[battleID] = &memBattle{player1ID: player1ID, player2ID: player2ID, tier: tier, mode: mode}
	return nil
}

func (m *MemStore) SaveRound(ctx context.Context, battleID string, round int, prompt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rounds := m.rounds[battleID]
	if rounds == nil {
		rounds = make(map[int]*memRound)
		m.rounds[battleID] = rounds
	}
	if _, ok := rounds[round]; !ok {
		rounds[round] = &memRound{prompt: prompt, roasts: make(map[int]string)}
	}
	return nil
}

func (m *MemStore) SaveSubmission(ctx context.Context, battleID string, round, slot int, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rd, ok := m.rounds[battleID][round]; ok {
		rd.roasts[slot] = text
	}
	return nil
}

func (m *MemStore) SaveRoundScores(ctx context.Context, battleID string, round, score1, score2 int, commentary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rd, ok := m.rounds[battleID][round]; ok {
		rd.score1, rd.score2, rd.commentary, rd.scored = score1, score2, commentary, true
	}
	return nil
}

func (m *MemStore) RoundScores(ctx context.Context, battleID string) ([]RoundScore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rounds := m.rounds[battleID]
	out := make([]RoundScore, 0, len(rounds))
	for n := 1; n <= len(rounds); n++ {
		rd, ok := rounds[n]
		if !ok {
			continue
		}
		out = append(out, RoundScore{Round: n, Player1: rd.score1, Player2: rd.score2})
	}
	return out, nil
}

func (m *MemStore) CompleteBattle(ctx context.Context, battleID, winnerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.battles[battleID]; ok {
		b.winnerID = winnerID
		b.completed = true
	}
	return nil
}

func (m *MemStore) UpsertUserStats(ctx context.Context, playerID string, won bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats[playerID]
	if s == nil {
		s = &UserStats{}
		m.stats[playerID] = s
	}
	s.TotalBattles++
	if won {
		s.TotalWins++
	}
	return nil
}

// Stats returns a copy of a player's cumulative record.
func (m *MemStore) Stats(playerID string) (UserStats, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stats[playerID]
	if !ok {
		return UserStats{}, false
	}
	return *s, true
}
