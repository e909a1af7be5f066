package battle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	liveKeyPrefix = "roastpush:battle:"
	recentKey     = "roastpush:recent"

	liveTTL     = time.Hour
	recentLimit = 50
)

var ErrMirrorMiss = errors.New("battle not in mirror")

// Mirror keeps a best-effort Redis copy of live battles plus a capped list of
// recent results. It is observability only; the Registry stays authoritative.
type Mirror struct {
	rdb *redis.Client
}

func NewMirror(redisURL string) (*Mirror, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Mirror{rdb: rdb}, nil
}

func (m *Mirror) Close() error { return m.rdb.Close() }

// Save writes a battle snapshot under a TTL key.
func (m *Mirror) Save(ctx context.Context, b Battle) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal battle: %w", err)
	}
	if err := m.rdb.Set(ctx, liveKeyPrefix+b.ID, raw, liveTTL).Err(); err != nil {
		return fmt.Errorf("set battle: %w", err)
	}
	return nil
}

// Load reads a mirrored battle snapshot.
func (m *Mirror) Load(ctx context.Context, id string) (Battle, error) {
	raw, err := m.rdb.Get(ctx, liveKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Battle{}, ErrMirrorMiss
	}
	if err != nil {
		return Battle{}, fmt.Errorf("get battle: %w", err)
	}
	var b Battle
	if err := json.Unmarshal(raw, &b); err != nil {
		return Battle{}, fmt.Errorf("unmarshal battle: %w", err)
	}
	return b, nil
}

// Delete removes a mirrored battle.
func (m *Mirror) Delete(ctx context.Context, id string) error {
	if err := m.rdb.Del(ctx, liveKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("del battle: %w", err)
	}
	return nil
}

// PushResult prepends a completed battle summary and trims the list.
func (m *Mirror) PushResult(ctx context.Context, r ResultSummary) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	pipe := m.rdb.TxPipeline()
	pipe.LPush(ctx, recentKey, raw)
	pipe.LTrim(ctx, recentKey, 0, recentLimit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push result: %w", err)
	}
	return nil
}

// Recent returns up to limit of the latest results, newest first.
func (m *Mirror) Recent(ctx context.Context, limit int) ([]ResultSummary, error) {
	if limit <= 0 || limit > recentLimit {
		limit = recentLimit
	}
	raws, err := m.rdb.LRange(ctx, recentKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("recent results: %w", err)
	}
	out := make([]ResultSummary, 0, len(raws))
	for _, raw := range raws {
		var r ResultSummary
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
