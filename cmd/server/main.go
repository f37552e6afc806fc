// Command server is the multiplayer room host: one HTTP listener
// serving /health, /stats, /metrics, and the WebSocket endpoint every
// game mode shares. Frames flow transport -> connection registry ->
// codec -> dispatcher -> per-mode room managers, with the reconnect
// broker and lobby orchestrator alongside.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/ridgelinegames/corehost/internal/boardgame"
	"github.com/ridgelinegames/corehost/internal/broadcast"
	"github.com/ridgelinegames/corehost/internal/config"
	"github.com/ridgelinegames/corehost/internal/connreg"
	"github.com/ridgelinegames/corehost/internal/dispatch"
	"github.com/ridgelinegames/corehost/internal/health"
	"github.com/ridgelinegames/corehost/internal/lightmode"
	"github.com/ridgelinegames/corehost/internal/lobby"
	"github.com/ridgelinegames/corehost/internal/logging"
	"github.com/ridgelinegames/corehost/internal/metrics"
	"github.com/ridgelinegames/corehost/internal/middleware"
	"github.com/ridgelinegames/corehost/internal/persistence"
	"github.com/ridgelinegames/corehost/internal/ratelimit"
	"github.com/ridgelinegames/corehost/internal/reconnect"
	"github.com/ridgelinegames/corehost/internal/tracing"
	"github.com/ridgelinegames/corehost/internal/transport"
	"github.com/ridgelinegames/corehost/internal/warfront"
	"github.com/ridgelinegames/corehost/internal/wire"
)

const (
	heartbeatInterval = 30 * time.Second
	clientTimeout     = 45 * time.Second
	reconnectGrace    = 60 * time.Second
	staleRoomAge      = 24 * time.Hour
	gcInterval        = 10 * time.Minute
	shutdownTimeout   = 10 * time.Second
)

// modeHooks is the uniform surface the session lifecycle glue needs
// from each room manager, closed over the concrete manager since their
// Result types differ per package.
type modeHooks struct {
	mode             string
	hasRoom          func(code string) bool
	roomCount        func() int
	markDisconnected func(code, sessionID string)
	markReconnected  func(code, sessionID string)
	removePlayer     func(code, sessionID, reason string)
	transferPlayer   func(code, oldSID, newSID string) bool
	snapshotFor      func(code, sessionID string) (any, bool)
	shutdown         func()
}

// hub ties the connection registry, the mode managers, the reconnect
// broker, and the grace timers together; it implements health.Stats.
type hub struct {
	registry *connreg.Registry
	broker   *reconnect.Broker
	modes    []modeHooks

	mu          sync.Mutex
	graceTimers map[string]*time.Timer
}

func (h *hub) ActiveConnections() int { return h.registry.ActiveConnections() }

func (h *hub) ActiveRooms() int {
	total := 0
	for _, m := range h.modes {
		total += m.roomCount()
	}
	return total
}

func (h *hub) ownerOf(code string) *modeHooks {
	for i := range h.modes {
		if h.modes[i].hasRoom(code) {
			return &h.modes[i]
		}
	}
	return nil
}

// handleDisconnect marks the player disconnected in its room and arms
// the reconnect grace timer: if it fires with no reconnect, the player
// is removed for good and player_left {reason: timeout} goes out.
func (h *hub) handleDisconnect(sessionID, reason string) {
	code, ok := h.registry.RoomOf(sessionID)
	if !ok {
		return
	}
	owner := h.ownerOf(code)
	if owner == nil {
		h.registry.ClearRoom(sessionID)
		return
	}
	owner.markDisconnected(code, sessionID)
	lctx := logging.WithRoom(logging.WithSession(context.Background(), sessionID), code)
	logging.Info(lctx, "player disconnected, grace window armed", zap.String("reason", reason))

	h.mu.Lock()
	if prev, exists := h.graceTimers[sessionID]; exists {
		prev.Stop()
	}
	h.graceTimers[sessionID] = time.AfterFunc(reconnectGrace, func() {
		h.mu.Lock()
		delete(h.graceTimers, sessionID)
		h.mu.Unlock()
		h.registry.ClearRoom(sessionID)
		owner.removePlayer(code, sessionID, "timeout")
	})
	h.mu.Unlock()
}

func (h *hub) cancelGraceTimer(sessionID string) {
	h.mu.Lock()
	if t, exists := h.graceTimers[sessionID]; exists {
		t.Stop()
		delete(h.graceTimers, sessionID)
	}
	h.mu.Unlock()
}

// handleReconnect adopts an old session onto a fresh socket: consume
// the token, verify the bound session is still a room member, transfer
// the player state, rotate the token, and resend the snapshot.
func (h *hub) handleReconnect(newSessionID, token string) {
	fail := func(code, msg, outcome string) {
		metrics.ReconnectsTotal.WithLabelValues(outcome).Inc()
		h.registry.Send(newSessionID, wire.NewError(code, msg))
	}

	oldSessionID, ok := h.broker.Consume(token)
	if !ok {
		fail(wire.CodeReconnectFailed, "invalid or expired token", "invalid_token")
		return
	}
	roomCode, ok := h.registry.RoomOf(oldSessionID)
	if !ok {
		fail(wire.CodeRoomGone, "session no longer in a room", "room_gone")
		return
	}
	owner := h.ownerOf(roomCode)
	if owner == nil {
		fail(wire.CodeRoomGone, "room no longer exists", "room_gone")
		return
	}
	h.cancelGraceTimer(oldSessionID)
	if !owner.transferPlayer(roomCode, oldSessionID, newSessionID) {
		fail(wire.CodeReconnectFailed, "player state gone", "transfer_failed")
		return
	}
	owner.markReconnected(roomCode, newSessionID)
	h.registry.ClearRoom(oldSessionID)
	h.registry.SetRoom(newSessionID, roomCode)

	fresh := h.broker.Issue(newSessionID)
	if s, ok := h.registry.Get(newSessionID); ok {
		s.SetReconnectToken(fresh.Value)
	}
	h.registry.Send(newSessionID, wire.Reconnected{
		Type: "reconnected", ReconnectToken: fresh.Value, RoomCode: roomCode, SessionID: newSessionID,
	})
	if snap, ok := owner.snapshotFor(roomCode, newSessionID); ok {
		h.registry.Send(newSessionID, snap)
	}
	metrics.ReconnectsTotal.WithLabelValues("success").Inc()
	lctx := logging.WithRoom(logging.WithSession(context.Background(), newSessionID), roomCode)
	logging.Info(lctx, "session reconnected", zap.String("old_session", oldSessionID))
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.ValidateEnv()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	if err := logging.Initialize(cfg.GoEnv != "production", cfg.LogLevel); err != nil {
		os.Stderr.WriteString("failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTELCollectorAddr != "" {
		tp, err := tracing.InitTracer(ctx, "corehost", cfg.OTELCollectorAddr)
		if err != nil {
			logging.Warn(ctx, "tracing disabled", zap.Error(err))
		} else {
			defer func() { _ = tp.Shutdown(context.Background()) }()
		}
	}

	// persistence is optional: without FIREBASE_SERVICE_ACCOUNT_JSON or a
	// reachable store every adapter call is a no-op and rooms are purely
	// in-memory
	var store *persistence.Service
	if cfg.RedisAddr != "" {
		store, err = persistence.NewService(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logging.Warn(ctx, "persistence disabled, store unreachable", zap.Error(err))
			store = nil
		}
	}
	var adapter persistence.Adapter
	if store != nil && cfg.FirebaseServiceAccountJSON != "" {
		adapter = store
	}

	limiter, err := ratelimit.NewRateLimiter(cfg, store.Client())
	if err != nil {
		logging.Fatal(ctx, "rate limiter configuration invalid", zap.Error(err))
	}

	registry := connreg.NewRegistry(heartbeatInterval, clientTimeout)
	bcast := broadcast.New(registry)
	broker := reconnect.NewBroker(reconnectGrace)
	orchestrator := lobby.NewOrchestrator(bcast)

	boardMgr := boardgame.NewManager(bcast, adapter)
	warMgr := warfront.NewManager(bcast, adapter)
	rhythmMgr := lightmode.NewManager("rhythm", bcast, adapter)
	arenaMgr := lightmode.NewManager("arena", bcast, adapter)
	switchMgr := lightmode.NewManager("switch", bcast, adapter)

	h := &hub{
		registry:    registry,
		broker:      broker,
		graceTimers: make(map[string]*time.Timer),
	}
	h.modes = []modeHooks{
		boardHooks(boardMgr),
		warHooks(warMgr),
		lightHooks(rhythmMgr),
		lightHooks(arenaMgr),
		lightHooks(switchMgr),
	}

	dispatcher := dispatch.New(registry)
	boardGateway := boardgame.NewGateway(boardMgr, registry, broker, orchestrator)
	warGateway := warfront.NewGateway(warMgr, registry, broker, orchestrator)

	// the queue's match callback re-enters the gateway, so bind through
	// a variable the closure captures
	var rhythmGateway *lightmode.Gateway
	rankedQueue := lobby.NewRankedQueue(lobby.DefaultPointRange, lobby.DefaultQueueTimeout,
		func(m lobby.Match) { rhythmGateway.OnMatch(m) })
	rhythmGateway = lightmode.NewGateway(rhythmMgr, registry, broker, orchestrator, rankedQueue)

	var arenaGateway *lightmode.Gateway
	arenaQueue := lobby.NewArenaQueue(func(m lobby.Match) { arenaGateway.OnMatch(m) })
	arenaGateway = lightmode.NewGateway(arenaMgr, registry, broker, orchestrator, arenaQueue)

	switchGateway := lightmode.NewGateway(switchMgr, registry, broker, orchestrator, nil)

	dispatcher.Register("mc_", boardGateway)
	dispatcher.Register("mw_", boardGateway) // open-world shares the board manager's voxel core
	dispatcher.Register("wf_", warGateway)
	dispatcher.Register("fps_", arenaGateway)
	dispatcher.Register("ms_", switchGateway)
	dispatcher.RegisterDefault(rhythmGateway)

	ws := transport.NewServer(registry, dispatcher, limiter,
		transport.ParseAllowedOrigins(cfg.AllowedOrigins), h.handleReconnect, h.handleDisconnect)

	go registry.RunHeartbeat(ctx, func(sessionID string) { h.handleDisconnect(sessionID, "timeout") })
	go runGC(ctx, adapter, broker)

	if cfg.GoEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("corehost"))
	router.Use(middleware.CorrelationID())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type"},
	}))
	router.Use(limiter.GlobalMiddleware())

	healthHandler := health.NewHandler(store, h)
	router.GET("/health", healthHandler.Health)
	router.GET("/stats", healthHandler.StatsEndpoint)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", ws.ServeWS)

	srv := &http.Server{
		Addr:              cfg.Host + ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logging.Info(ctx, "server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal(context.Background(), "listener failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logging.Info(context.Background(), "shutdown requested")

	// stop accepting, stop timers and tick drivers, tell every client,
	// then close sockets
	orchestrator.Shutdown()
	rankedQueue.Close()
	arenaQueue.Close()
	boardMgr.Shutdown()
	warMgr.Shutdown()
	registry.Stop()
	registry.Broadcast(wire.ServerShutdown{Type: "server_shutdown"})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(context.Background(), "forced shutdown", zap.Error(err))
		os.Exit(1)
	}
	logging.Info(context.Background(), "shutdown complete")
}

// runGC periodically sweeps stale persisted rooms and expired
// reconnect tokens.
func runGC(ctx context.Context, adapter persistence.Adapter, broker *reconnect.Broker) {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if expired := broker.CleanupExpired(); expired > 0 {
				logging.Info(ctx, "expired reconnect tokens swept", zap.Int("count", expired))
			}
			if adapter != nil {
				if n, err := adapter.CleanupStale(ctx, staleRoomAge); err == nil && n > 0 {
					logging.Info(ctx, "stale persisted rooms removed", zap.Int("count", n))
				}
			}
		}
	}
}

func boardHooks(m *boardgame.Manager) modeHooks {
	return modeHooks{
		mode:             m.Mode(),
		hasRoom:          m.HasRoom,
		roomCount:        m.RoomCount,
		markDisconnected: func(code, sid string) { m.MarkDisconnected(code, sid) },
		markReconnected:  func(code, sid string) { m.MarkReconnected(code, sid) },
		removePlayer:     func(code, sid, reason string) { m.RemovePlayer(code, sid, reason) },
		transferPlayer:   func(code, oldSID, newSID string) bool { return m.TransferPlayer(code, oldSID, newSID).Success },
		snapshotFor: func(code, sid string) (any, bool) {
			snap, ok := m.SnapshotFor(code, sid)
			return snap, ok
		},
		shutdown: m.Shutdown,
	}
}

func warHooks(m *warfront.Manager) modeHooks {
	return modeHooks{
		mode:             m.Mode(),
		hasRoom:          m.HasRoom,
		roomCount:        m.RoomCount,
		markDisconnected: func(code, sid string) { m.MarkDisconnected(code, sid) },
		markReconnected:  func(code, sid string) { m.MarkReconnected(code, sid) },
		removePlayer:     func(code, sid, reason string) { m.RemovePlayer(code, sid, reason) },
		transferPlayer:   func(code, oldSID, newSID string) bool { return m.TransferPlayer(code, oldSID, newSID).Success },
		snapshotFor: func(code, sid string) (any, bool) {
			snap, ok := m.SnapshotFor(code, sid)
			return snap, ok
		},
		shutdown: m.Shutdown,
	}
}

func lightHooks(m *lightmode.Manager) modeHooks {
	return modeHooks{
		mode:             m.Mode(),
		hasRoom:          m.HasRoom,
		roomCount:        m.RoomCount,
		markDisconnected: func(code, sid string) { m.MarkDisconnected(code, sid) },
		markReconnected:  func(code, sid string) { m.MarkReconnected(code, sid) },
		removePlayer:     func(code, sid, reason string) { m.RemovePlayer(code, sid, reason) },
		transferPlayer:   func(code, oldSID, newSID string) bool { return m.TransferPlayer(code, oldSID, newSID).Success },
		snapshotFor: func(code, sid string) (any, bool) {
			snap, ok := m.SnapshotFor(code, sid)
			return snap, ok
		},
		shutdown: func() {},
	}
}
