package battle

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

// Repository persists battles, rounds and user stats to Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error { return r.db.Close() }

// Migrate applies the embedded schema. Statements are idempotent.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (r *Repository) SaveBattle(ctx context.Context, battleID, player1ID, player2ID, tier, mode string) error {
	const q = `
INSERT INTO battles (id, player1_id, player2_id, tier, mode, status)
VALUES ($1, $2, $3, $4, $5, 'active')
ON CONFLICT (id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, q, battleID, player1ID, player2ID, tier, mode)
	if err != nil {
		return fmt.Errorf("save battle: %w", err)
	}
	return nil
}

func (r *Repository) SaveRound(ctx context.Context, battleID string, round int, prompt string) error {
	const q = `
INSERT INTO rounds (battle_id, round_number, prompt)
VALUES ($1, $2, $3)
ON CONFLICT (battle_id, round_number) DO NOTHING`
	_, err := r.db.ExecContext(ctx, q, battleID, round, prompt)
	if err != nil {
		return fmt.Errorf("save round: %w", err)
	}
	return nil
}

func (r *Repository) SaveSubmission(ctx context.Context, battleID string, round, slot int, text string) error {
	col := "player1_roast"
	if slot == 2 {
		col = "player2_roast"
	}
	q := fmt.Sprintf(`UPDATE rounds SET %s = $3 WHERE battle_id = $1 AND round_number = $2`, col)
	_, err := r.db.ExecContext(ctx, q, battleID, round, text)
	if err != nil {
		return fmt.Errorf("save submission: %w", err)
	}
	return nil
}

func (r *Repository) SaveRoundScores(ctx context.Context, battleID string, round, score1, score2 int, commentary string) error {
	const q = `
UPDATE rounds
SET player1_score = $3, player2_score = $4, ai_commentary = $5
WHERE battle_id = $1 AND round_number = $2`
	_, err := r.db.ExecContext(ctx, q, battleID, round, score1, score2, commentary)
	if err != nil {
		return fmt.Errorf("save round scores: %w", err)
	}
	return nil
}

func (r *Repository) RoundScores(ctx context.Context, battleID string) ([]RoundScore, error) {
	const q = `
SELECT round_number, COALESCE(player1_score, 0), COALESCE(player2_score, 0)
FROM rounds
WHERE battle_id = $1
ORDER BY round_number`
	rows, err := r.db.QueryContext(ctx, q, battleID)
	if err != nil {
		return nil, fmt.Errorf("round scores: %w", err)
	}
	defer rows.Close()

	var out []RoundScore
	for rows.Next() {
		var rs RoundScore
		if err := rows.Scan(&rs.Round, &rs.Player1, &rs.Player2); err != nil {
			return nil, fmt.Errorf("scan round score: %w", err)
		}
		out = append(out, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("round scores: %w", err)
	}
	return out, nil
}

func (r *Repository) CompleteBattle(ctx context.Context, battleID, winnerID string) error {
	const q = `
UPDATE battles
SET winner_id = $2, status = 'completed', ended_at = now()
WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, battleID, winnerID)
	if err != nil {
		return fmt.Errorf("complete battle: %w", err)
	}
	return nil
}

func (r *Repository) UpsertUserStats(ctx context.Context, playerID string, won bool) error {
	win := 0
	if won {
		win = 1
	}
	const q = `
INSERT INTO users (wallet_address, total_battles, total_wins)
VALUES ($1, 1, $2)
ON CONFLICT (wallet_address) DO UPDATE
SET total_battles = users.total_battles + 1,
    total_wins    = users.total_wins + EXCLUDED.total_wins`
	_, err := r.db.ExecContext(ctx, q, playerID, win)
	if err != nil {
		return fmt.Errorf("upsert user stats: %w", err)
	}
	return nil
}
