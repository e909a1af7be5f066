package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	ListenAddr string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	RedisURL    string
	DatabaseURL string
	AutoMigrate bool

	TierOverrideDir string

	RoundDuration time.Duration
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:    ":4000",
		OpenAIBaseURL: "https://api.openai.com/v1",
		OpenAIModel:   "gpt-4o-mini",
		RoundDuration: 30 * time.Second,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	} else if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		cfg.ListenAddr = ":" + v
	}

	cfg.OpenAIAPIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if v := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")); v != "" {
		cfg.OpenAIBaseURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_MODEL")); v != "" {
		cfg.OpenAIModel = v
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if v := strings.TrimSpace(os.Getenv("AUTO_MIGRATE")); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			cfg.AutoMigrate = b
		}
	}

	cfg.TierOverrideDir = strings.TrimSpace(os.Getenv("TIER_OVERRIDE_DIR"))

	if v := strings.TrimSpace(os.Getenv("ROUND_DURATION_SEC")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, errors.New("ROUND_DURATION_SEC must be a positive integer")
		}
		cfg.RoundDuration = time.Duration(n) * time.Second
	}

	if !strings.Contains(cfg.ListenAddr, ":") {
		return nil, errors.New("LISTEN_ADDR must contain a port")
	}

	return cfg, nil
}
