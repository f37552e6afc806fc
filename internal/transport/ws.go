// Package transport accepts HTTP traffic, performs the WebSocket
// upgrade with origin and rate-limit checks, and runs the per-
// connection read loop feeding the dispatcher.
package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ridgelinegames/corehost/internal/connreg"
	"github.com/ridgelinegames/corehost/internal/dispatch"
	"github.com/ridgelinegames/corehost/internal/logging"
	"github.com/ridgelinegames/corehost/internal/ratelimit"
	"github.com/ridgelinegames/corehost/internal/wire"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
)

// wsConn wraps a gorilla connection with a write mutex so the
// heartbeat sweep, broadcasts, and handler replies never interleave
// frames; satisfies connreg.Handle.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) WriteControlPong() error {
	return c.conn.WriteControl(websocket.PongMessage, nil, time.Now().Add(writeWait))
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	return c.conn.Close()
}

// ReconnectFunc adopts an existing session's room membership onto a
// new socket; the wiring layer implements the token-consume/transfer/
// rotate sequence.
type ReconnectFunc func(newSessionID, token string)

// DisconnectFunc is invoked once when a connection drops, with the
// reason ("connection_closed" here; "timeout" from the heartbeat).
type DisconnectFunc func(sessionID, reason string)

// Server owns the WS upgrade path and per-connection read loops.
type Server struct {
	registry    *connreg.Registry
	dispatcher  *dispatch.Dispatcher
	limiter     *ratelimit.RateLimiter
	allowed     []string
	onReconnect ReconnectFunc
	onDrop      DisconnectFunc
}

// NewServer builds the transport Server. limiter may be nil in tests.
func NewServer(registry *connreg.Registry, dispatcher *dispatch.Dispatcher, limiter *ratelimit.RateLimiter,
	allowedOrigins []string, onReconnect ReconnectFunc, onDrop DisconnectFunc) *Server {
	return &Server{
		registry:    registry,
		dispatcher:  dispatcher,
		limiter:     limiter,
		allowed:     allowedOrigins,
		onReconnect: onReconnect,
		onDrop:      onDrop,
	}
}

// ServeWS handles GET /ws: rate-limit check, origin check, upgrade,
// session registration, then the blocking read loop.
func (s *Server) ServeWS(c *gin.Context) {
	if s.limiter != nil && !s.limiter.CheckWebSocketConnect(c) {
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return OriginAllowed(r.Header.Get("Origin"), s.allowed)
		},
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}

	session := s.registry.Register(&wsConn{conn: conn})
	session.Send(wire.Connected{Type: "connected", SessionID: session.ID, ServerTime: time.Now().UnixMilli()})

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		s.registry.MarkPong(session.ID)
		return nil
	})

	s.readLoop(session.ID, conn)
}

func (s *Server) readLoop(sessionID string, conn *websocket.Conn) {
	ctx := context.Background()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if _, stillThere := s.registry.Get(sessionID); stillThere {
				s.registry.Remove(sessionID)
				if s.onDrop != nil {
					s.onDrop(sessionID, "connection_closed")
				}
			}
			return
		}
		if s.limiter != nil {
			if err := s.limiter.CheckWebSocketMessage(ctx, sessionID); err != nil {
				continue // drop the frame, keep the connection
			}
		}

		env, werr := wire.Decode(raw)
		if werr != nil {
			// malformed frames answer with an error and keep the
			// connection open
			s.registry.Send(sessionID, wire.NewError(werr.Code, werr.Message))
			continue
		}

		switch env.Type {
		case "pong":
			s.registry.MarkPong(sessionID)
		case "ping":
			s.registry.Send(sessionID, wire.Pong{Type: "pong"})
		case "reconnect":
			var req wire.Reconnect
			if env.Unmarshal(&req) != nil || req.Token == "" {
				s.registry.Send(sessionID, wire.NewError(wire.CodeReconnectFailed, "missing token"))
				continue
			}
			if s.onReconnect != nil {
				s.onReconnect(sessionID, req.Token)
			}
		default:
			s.dispatcher.Route(sessionID, env)
		}
	}
}
