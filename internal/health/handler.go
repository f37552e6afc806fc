// Package health exposes the server's liveness/stats surface.
package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ridgelinegames/corehost/internal/logging"
	"github.com/ridgelinegames/corehost/internal/persistence"
)

// Stats reports the live counters a caller needs for /health and /stats;
// the hub implements this directly.
type Stats interface {
	ActiveConnections() int
	ActiveRooms() int
}

// Handler serves the operational HTTP endpoints.
type Handler struct {
	store     *persistence.Service
	stats     Stats
	startedAt time.Time
}

// NewHandler builds a Handler. store may be nil when persistence is disabled.
func NewHandler(store *persistence.Service, stats Stats) *Handler {
	return &Handler{store: store, stats: stats, startedAt: time.Now()}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	Connections int    `json:"connections"`
	Rooms       int    `json:"rooms"`
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Connections   int     `json:"connections"`
	Rooms         int     `json:"rooms"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
	MemoryBytes   uint64  `json:"memoryBytes"`
}

// Health handles GET /health. It always reports 200; the status reads
// "degraded" instead of "ok" when the persistence store is configured
// and unreachable, since a degraded optional dependency does not take
// the process out of rotation.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := "ok"
	statusCode := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		logging.Error(ctx, "persistence health check failed", zap.Error(err))
		status = "degraded"
		statusCode = http.StatusOK
	}

	c.JSON(statusCode, HealthResponse{
		Status:      status,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Connections: h.stats.ActiveConnections(),
		Rooms:       h.stats.ActiveRooms(),
	})
}

// StatsEndpoint handles GET /stats, a lightweight operational snapshot for
// dashboards and debugging.
func (h *Handler) StatsEndpoint(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	c.JSON(http.StatusOK, StatsResponse{
		Connections:   h.stats.ActiveConnections(),
		Rooms:         h.stats.ActiveRooms(),
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
		MemoryBytes:   mem.Alloc,
	})
}
