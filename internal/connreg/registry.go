// Package connreg implements the connection registry: session
// creation on WS upgrade, liveness heartbeat, and the process-wide
// session-id -> room-code index guaranteeing a session belongs to at
// most one room across all managers.
package connreg

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ridgelinegames/corehost/internal/logging"
	"github.com/ridgelinegames/corehost/internal/metrics"
)

// Handle is the minimal surface the registry needs from a transport
// connection. *websocket.Conn satisfies it directly in internal/transport;
// tests use an in-memory fake.
type Handle interface {
	WriteJSON(v any) error
	WriteControlPong() error
	Close() error
}

// Profile is a player's optional public profile, attached after room join.
type Profile struct {
	DisplayName string
	Icon        string
	Private     bool
}

// Session is one connected client.
type Session struct {
	ID             string
	Handle         Handle
	mu             sync.Mutex
	alive          bool
	lastActivity   time.Time
	reconnectToken string
	profile        *Profile
}

func (s *Session) setAlive(v bool) {
	s.mu.Lock()
	s.alive = v
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// Alive reports the session's current liveness flag.
func (s *Session) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

// SetReconnectToken records the session's current reconnect token;
// the broker rotates this on every successful reconnect.
func (s *Session) SetReconnectToken(token string) {
	s.mu.Lock()
	s.reconnectToken = token
	s.mu.Unlock()
}

// ReconnectToken returns the session's current reconnect token.
func (s *Session) ReconnectToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnectToken
}

// SetProfile attaches the player's public profile.
func (s *Session) SetProfile(p *Profile) {
	s.mu.Lock()
	s.profile = p
	s.mu.Unlock()
}

// Profile returns the session's public profile, or nil.
func (s *Session) Profile() *Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// Send best-effort writes a JSON message to the session's socket.
// Errors are swallowed at this layer: a slow or closed consumer never
// blocks or panics the caller.
func (s *Session) Send(v any) {
	if s == nil || s.Handle == nil {
		return
	}
	_ = s.Handle.WriteJSON(v)
}

// Registry owns the process-wide session map and the session->room
// index. A single mutex guards both; neither is ever held across
// network I/O.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	roomOf   map[string]string // session id -> room code, one entry per session

	heartbeatInterval time.Duration
	clientTimeout     time.Duration

	stopHeartbeat chan struct{}
	heartbeatOnce sync.Once
}

// NewRegistry builds a Registry with the given heartbeat cadence
// (default 30s) and client timeout (default 45s). The sweep does not
// read clientTimeout: a session is terminated by the first sweep that
// finds it still not-alive, one to two heartbeat intervals after its
// last pong.
func NewRegistry(heartbeatInterval, clientTimeout time.Duration) *Registry {
	return &Registry{
		sessions:          make(map[string]*Session),
		roomOf:            make(map[string]string),
		heartbeatInterval: heartbeatInterval,
		clientTimeout:     clientTimeout,
		stopHeartbeat:     make(chan struct{}),
	}
}

// NewSessionID generates an id of the form player_<millis>_<base36>.
func NewSessionID() string {
	return fmt.Sprintf("player_%d_%s", time.Now().UnixMilli(), randomBase36(8))
}

func randomBase36(n int) string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	out := make([]byte, n)
	for i := range out {
		out[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(out)
}

// Register creates and stores a new Session for a freshly upgraded
// connection.
func (r *Registry) Register(handle Handle) *Session {
	s := &Session{
		ID:           NewSessionID(),
		Handle:       handle,
		alive:        true,
		lastActivity: time.Now(),
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	metrics.IncConnection()
	return s
}

// Get looks up a session by id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove deletes a session. The room-index entry is deliberately kept:
// a dropped session stays a room member through the reconnect grace
// window, so the index is cleared separately via ClearRoom on explicit
// leave, grace expiry, or reconnect transfer.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	if _, ok := r.sessions[id]; ok {
		delete(r.sessions, id)
		metrics.DecConnection()
	}
	r.mu.Unlock()
}

// SetRoom records which room a session currently belongs to; the map
// shape means a session can only ever have one entry.
func (r *Registry) SetRoom(sessionID, roomCode string) {
	r.mu.Lock()
	r.roomOf[sessionID] = roomCode
	r.mu.Unlock()
}

// ClearRoom removes a session's room-index entry (on leave/teardown).
func (r *Registry) ClearRoom(sessionID string) {
	r.mu.Lock()
	delete(r.roomOf, sessionID)
	r.mu.Unlock()
}

// RoomOf returns the room code a session currently belongs to, if any.
func (r *Registry) RoomOf(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	code, ok := r.roomOf[sessionID]
	return code, ok
}

// ActiveConnections returns the current session count (health/stats).
func (r *Registry) ActiveConnections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// MarkPong flips a session's alive flag back to true on receipt of a
// client pong, application-level or native WS.
func (r *Registry) MarkPong(sessionID string) {
	r.mu.RLock()
	s, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if ok {
		s.setAlive(true)
	}
}

// DisconnectFunc is invoked once per session the heartbeat sweep
// terminates for inactivity, so the caller (the dispatcher/room layer)
// can run handleDisconnect(sid, "timeout") without this package needing
// to know about rooms.
type DisconnectFunc func(sessionID string)

// RunHeartbeat walks all sessions every heartbeatInterval: a session
// that was already marked not-alive is terminated and reported via
// onTimeout; a still-alive session is flipped to not-alive and sent an
// application ping, awaiting the next pong. Runs until ctx is canceled
// or Stop is called.
func (r *Registry) RunHeartbeat(ctx context.Context, onTimeout DisconnectFunc) {
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopHeartbeat:
			return
		case <-ticker.C:
			r.sweep(onTimeout)
		}
	}
}

func (r *Registry) sweep(onTimeout DisconnectFunc) {
	r.mu.RLock()
	snapshot := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		snapshot = append(snapshot, s)
	}
	r.mu.RUnlock()

	for _, s := range snapshot {
		if !s.Alive() {
			_ = s.Handle.Close()
			r.Remove(s.ID)
			logging.Info(logging.WithSession(context.Background(), s.ID), "session timed out")
			if onTimeout != nil {
				onTimeout(s.ID)
			}
			continue
		}
		s.setAlive(false)
		s.Send(pingFrame())
	}
}

// Stop halts the heartbeat loop started by RunHeartbeat.
func (r *Registry) Stop() {
	r.heartbeatOnce.Do(func() { close(r.stopHeartbeat) })
}

// Send delivers v to one session by id; satisfies broadcast.Sender.
// Unknown session ids are silently dropped.
func (r *Registry) Send(sessionID string, v any) {
	if s, ok := r.Get(sessionID); ok {
		s.Send(v)
	}
}

// Broadcast sends v to every registered session (used for server_shutdown).
func (r *Registry) Broadcast(v any) {
	r.mu.RLock()
	targets := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		targets = append(targets, s)
	}
	r.mu.RUnlock()
	for _, s := range targets {
		s.Send(v)
	}
}
