package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the multiplayer room server.
//
// Naming convention: namespace_subsystem_name
//   - namespace: arcade (application-level grouping)
//   - subsystem: websocket, room, tick, reconnect, effect, circuit_breaker,
//     rate_limit, persistence (feature-level grouping)
//
// Metric Types:
//   - Gauge: Current state (connections, rooms, players)
//   - Counter: Cumulative events (ticks run, reconnects, errors)
//   - Histogram: Latency/duration distributions (tick time)
var (
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "arcade",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	ActiveRooms = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "arcade",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms, by game mode",
	}, []string{"mode"})

	RoomPlayers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "arcade",
		Subsystem: "room",
		Name:      "players_count",
		Help:      "Number of players in each room",
	}, []string{"mode", "room_code"})

	WebsocketEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arcade",
		Subsystem: "websocket",
		Name:      "events_total",
		Help:      "Total WebSocket frames processed",
	}, []string{"message_type", "status"})

	MessageProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "arcade",
		Subsystem: "websocket",
		Name:      "message_processing_seconds",
		Help:      "Time spent routing and handling a client frame",
		Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"message_type"})

	TicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arcade",
		Subsystem: "tick",
		Name:      "ticks_total",
		Help:      "Total simulation ticks executed, by mode",
	}, []string{"mode"})

	TickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "arcade",
		Subsystem: "tick",
		Name:      "duration_seconds",
		Help:      "Wall time spent executing one room tick",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	}, []string{"mode"})

	ReconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arcade",
		Subsystem: "reconnect",
		Name:      "attempts_total",
		Help:      "Reconnect attempts by outcome",
	}, []string{"outcome"})

	EffectsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arcade",
		Subsystem: "effect",
		Name:      "applied_total",
		Help:      "Cross-mode effects applied, by kind",
	}, []string{"kind"})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "arcade",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"service"})

	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arcade",
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Total requests rejected by the circuit breaker",
	}, []string{"service"})

	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arcade",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total requests that exceeded a rate limit",
	}, []string{"endpoint", "reason"})

	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arcade",
		Subsystem: "rate_limit",
		Name:      "requests_total",
		Help:      "Total requests checked against a rate limiter",
	}, []string{"endpoint"})

	PersistenceOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arcade",
		Subsystem: "persistence",
		Name:      "operations_total",
		Help:      "Total persistence adapter operations",
	}, []string{"operation", "status"})
)

// IncConnection records a new live WebSocket connection.
func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

// DecConnection records a closed WebSocket connection.
func DecConnection() {
	ActiveWebSocketConnections.Dec()
}
