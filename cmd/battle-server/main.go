package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	appcfg "github.com/roastpush/roastpush-server/internal/config"
	"github.com/roastpush/roastpush-server/internal/battle"
	"github.com/roastpush/roastpush-server/internal/engine"
	"github.com/roastpush/roastpush-server/internal/judge"
	"github.com/roastpush/roastpush-server/internal/metrics"
	"github.com/roastpush/roastpush-server/internal/obslog"
	"github.com/roastpush/roastpush-server/internal/tiers"
	"github.com/roastpush/roastpush-server/internal/transport"
)

func main() {
	_ = godotenv.Load()

	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()

	cfg, err := appcfg.Load()
	if err != nil {
		logger.Fatal("config error", zap.Error(err))
	}

	catalog, err := tiers.New(cfg.TierOverrideDir)
	if err != nil {
		logger.Fatal("tier catalog error", zap.Error(err))
	}

	var store engine.Store
	if cfg.DatabaseURL != "" {
		repo, err := battle.NewRepository(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("postgres init error", zap.Error(err))
		}
		defer repo.Close()
		if cfg.AutoMigrate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := repo.Migrate(ctx)
			cancel()
			if err != nil {
				logger.Fatal("migrate error", zap.Error(err))
			}
		}
		store = repo
		logger.Info("postgres store ready")
	} else {
		logger.Warn("DATABASE_URL not set, results are kept in memory only")
		store = battle.NewMemStore()
	}

	var mirror *battle.Mirror
	if cfg.RedisURL != "" {
		mirror, err = battle.NewMirror(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis init error", zap.Error(err))
		}
		defer mirror.Close()
		logger.Info("redis mirror ready")
	}

	if cfg.OpenAIAPIKey == "" {
		logger.Warn("OPENAI_API_KEY not set, rounds will use fallback scores")
	}
	judgeClient := judge.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, judge.WithModel(cfg.OpenAIModel))

	ws := transport.NewServer()

	timings := engine.DefaultTimings()
	timings.RoundDuration = cfg.RoundDuration

	deps := engine.Deps{
		Store:     store,
		Judge:     judgeClient,
		Notifier:  ws,
		Scheduler: engine.WallClock{},
		Catalog:   catalog,
	}
	if mirror != nil {
		deps.Mirror = mirror
	}
	eng := engine.New(deps, engine.WithTimings(timings))
	ws.SetEngine(eng)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go eng.Run(ctx)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/ws", ws)
	r.Handle("/metrics", metrics.Handler())
	storeKind := "memory"
	if cfg.DatabaseURL != "" {
		storeKind = "postgres"
	}
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"connections": ws.ConnCount(),
			"tiers":       catalog.Names(),
			"store":       storeKind,
			"judge":       cfg.OpenAIAPIKey != "",
			"mirror":      mirror != nil,
		})
	})
	if mirror != nil {
		r.Get("/api/recent", func(w http.ResponseWriter, req *http.Request) {
			limit := 20
			if v := req.URL.Query().Get("limit"); v != "" {
				if n, err := strconv.Atoi(v); err == nil && n > 0 {
					limit = n
				}
			}
			results, err := mirror.Recent(req.Context(), limit)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "recent results unavailable"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"results": results})
		})
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		ws.CloseAll()
	}()

	logger.Info("battle server listening", zap.String("addr", cfg.ListenAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
