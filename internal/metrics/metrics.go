package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

var (
	BattlesStarted = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: "roastpush",
		Name:      "battles_started_total",
		Help:      "Battles created by the matchmaker.",
	})
	BattlesCompleted = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: "roastpush",
		Name:      "battles_completed_total",
		Help:      "Battles that reached settlement.",
	})
	BattlesForfeited = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: "roastpush",
		Name:      "battles_forfeited_total",
		Help:      "Battles torn down because a player disconnected.",
	})
	RoundsScored = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: "roastpush",
		Name:      "rounds_scored_total",
		Help:      "Rounds that received scores, including fallback rounds.",
	})
	JudgeFailures = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: "roastpush",
		Name:      "judge_failures_total",
		Help:      "Judge calls that ended in the fallback path.",
	})
	QueueDepth = promauto.With(registry).NewGauge(prometheus.GaugeOpts{
		Namespace: "roastpush",
		Name:      "queue_depth",
		Help:      "Players currently waiting in the matchmaking queue.",
	})
	ActiveBattles = promauto.With(registry).NewGauge(prometheus.GaugeOpts{
		Namespace: "roastpush",
		Name:      "active_battles",
		Help:      "Battles currently in the registry.",
	})
	Connections = promauto.With(registry).NewGauge(prometheus.GaugeOpts{
		Namespace: "roastpush",
		Name:      "websocket_connections",
		Help:      "Open websocket connections.",
	})
)

// Handler serves the registry for /metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
