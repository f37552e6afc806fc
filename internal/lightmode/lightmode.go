// Package lightmode implements the room managers for the modes whose
// authoritative simulation lives client-side (rhythm, arena FPS,
// switch-style): full lobby lifecycle — create/join/ready/host-start/
// countdown/reconnect — but no server tick, since the shared lifecycle is
// all the server owns for them. Position and combat frames are relayed
// verbatim to the rest of the room. Matchmaking-formed rooms (ranked
// and arena queues) land here too.
package lightmode

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/ridgelinegames/corehost/internal/broadcast"
	"github.com/ridgelinegames/corehost/internal/persistence"
	"github.com/ridgelinegames/corehost/internal/roomcore"
	"github.com/ridgelinegames/corehost/internal/wire"
)

const (
	MinPlayers        = 2
	MaxPlayersDefault = 8
	CountdownSeconds  = 3
)

// ErrCode values returned in Result.Error.
const (
	ErrRoomNotFound   = "ROOM_NOT_FOUND"
	ErrGameInProgress = "GAME_IN_PROGRESS"
	ErrRoomFull       = "ROOM_FULL"
	ErrNotHost        = "NOT_HOST"
	ErrWrongState     = "WRONG_STATE"
	ErrNotEnoughReady = "NOT_ENOUGH_READY"
)

// Result is the uniform {success, error?, ...} operation reply.
type Result struct {
	Success bool
	Error   string
	Player  *Player
	Code    string
	Seed    int64
}

// Player is the lobby-level per-player state.
type Player struct {
	SessionID   string
	DisplayName string
	Ready       bool
	Connected   bool
	ColorSlot   int
	JoinedAt    time.Time
	Points      int
	IsAI        bool
}

// Room is one light-mode match.
type Room struct {
	mu sync.Mutex

	Code       string
	Name       string
	HostID     string
	Status     roomcore.Status
	CreatedAt  time.Time
	MaxPlayers int
	Seed       int64
	Ranked     bool

	Players map[string]*Player
	order   []string
}

// Lock acquires the room's mutex.
func (r *Room) Lock()   { r.mu.Lock() }
func (r *Room) Unlock() { r.mu.Unlock() }

func (r *Room) roster() []string {
	ids := make([]string, 0, len(r.Players))
	for sid := range r.Players {
		ids = append(ids, sid)
	}
	return ids
}

// Manager owns every room of one light mode.
type Manager struct {
	mode  string
	mu    sync.RWMutex
	rooms map[string]*Room
	bcast *broadcast.Engine
	store persistence.Adapter
}

// NewManager builds an empty Manager for the named mode ("rhythm",
// "arena", "switch").
func NewManager(mode string, bcast *broadcast.Engine, store persistence.Adapter) *Manager {
	return &Manager{mode: mode, rooms: make(map[string]*Room), bcast: bcast, store: store}
}

// Mode is this manager's dispatcher identity.
func (m *Manager) Mode() string { return m.mode }

func (m *Manager) roomExists(code string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rooms[code]
	return ok
}

// HasRoom reports whether this manager owns the given room code.
func (m *Manager) HasRoom(code string) bool { return m.roomExists(code) }

// RoomCount reports the number of active rooms.
func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

func (m *Manager) getRoom(code string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[code]
	return r, ok
}

// CreateRoom makes a new room with the creator as host.
func (m *Manager) CreateRoom(sessionID, name, displayName string) Result {
	code := roomcore.GenerateRoomCode(m.roomExists)
	now := time.Now()
	r := &Room{
		Code:       code,
		Name:       wire.Truncate(name, 32),
		HostID:     sessionID,
		Status:     roomcore.StatusWaiting,
		CreatedAt:  now,
		MaxPlayers: MaxPlayersDefault,
		Players:    make(map[string]*Player),
	}
	p := newPlayer(sessionID, displayName, now, 0)
	r.Players[sessionID] = p
	r.order = append(r.order, sessionID)

	m.mu.Lock()
	m.rooms[code] = r
	m.mu.Unlock()
	m.persist(r)
	return Result{Success: true, Player: p, Code: code}
}

func newPlayer(sessionID, displayName string, joinedAt time.Time, colorSlot int) *Player {
	return &Player{
		SessionID:   sessionID,
		DisplayName: wire.Truncate(displayName, 16),
		Connected:   true,
		ColorSlot:   colorSlot,
		JoinedAt:    joinedAt,
	}
}

// JoinRoom adds a player to an existing waiting room.
func (m *Manager) JoinRoom(code, sessionID, displayName string) Result {
	r, ok := m.getRoom(code)
	if !ok {
		return Result{Error: ErrRoomNotFound}
	}
	r.Lock()
	defer r.Unlock()
	if r.Status != roomcore.StatusWaiting {
		return Result{Error: ErrGameInProgress}
	}
	if len(r.Players) >= r.MaxPlayers {
		return Result{Error: ErrRoomFull}
	}
	p := newPlayer(sessionID, displayName, time.Now(), len(r.order)%8)
	r.Players[sessionID] = p
	r.order = append(r.order, sessionID)
	m.persist(r)
	return Result{Success: true, Player: p}
}

// CreateMatch builds a ready-made room from a matchmaking result: all
// named players inserted, first one host, optionally an AI filler for
// a ranked queue timeout. The room starts in countdown; the caller
// runs it.
func (m *Manager) CreateMatch(players []MatchSeat, seed int64, withAI bool) string {
	code := roomcore.GenerateRoomCode(m.roomExists)
	now := time.Now()
	r := &Room{
		Code:       code,
		Name:       "ranked",
		Status:     roomcore.StatusCountdown,
		CreatedAt:  now,
		MaxPlayers: MaxPlayersDefault,
		Seed:       seed,
		Ranked:     true,
		Players:    make(map[string]*Player),
	}
	for i, seat := range players {
		p := newPlayer(seat.SessionID, seat.Name, now, i)
		p.Ready = true
		p.Points = seat.Points
		r.Players[seat.SessionID] = p
		r.order = append(r.order, seat.SessionID)
		if i == 0 {
			r.HostID = seat.SessionID
		}
	}
	if withAI {
		ai := newPlayer("ai_opponent", "AI", now, len(r.order))
		ai.Ready = true
		ai.IsAI = true
		r.Players[ai.SessionID] = ai
		r.order = append(r.order, ai.SessionID)
	}
	m.mu.Lock()
	m.rooms[code] = r
	m.mu.Unlock()
	m.persist(r)
	return code
}

// MatchSeat is one human player going into a matchmade room.
type MatchSeat struct {
	SessionID string
	Name      string
	Points    int
}

// SetReady toggles a player's ready flag.
func (m *Manager) SetReady(code, sessionID string, ready bool) Result {
	r, ok := m.getRoom(code)
	if !ok {
		return Result{Error: ErrRoomNotFound}
	}
	r.Lock()
	defer r.Unlock()
	if r.Status != roomcore.StatusWaiting {
		return Result{Error: ErrWrongState}
	}
	p, ok := r.Players[sessionID]
	if !ok {
		return Result{Error: ErrRoomNotFound}
	}
	p.Ready = ready
	return Result{Success: true, Player: p}
}

// StartGame is host-only, draws the game seed, moves to countdown.
func (m *Manager) StartGame(code, sessionID string) Result {
	r, ok := m.getRoom(code)
	if !ok {
		return Result{Error: ErrRoomNotFound}
	}
	r.Lock()
	defer r.Unlock()
	if r.HostID != sessionID {
		return Result{Error: ErrNotHost}
	}
	if r.Status != roomcore.StatusWaiting {
		return Result{Error: ErrWrongState}
	}
	if len(r.Players) < MinPlayers {
		return Result{Error: ErrNotEnoughReady}
	}
	for sid, p := range r.Players {
		if sid == r.HostID || !p.Connected {
			continue
		}
		if !p.Ready {
			return Result{Error: ErrNotEnoughReady}
		}
	}
	r.Seed = int64(rand.Int31())
	r.Status = roomcore.StatusCountdown
	m.persist(r)
	return Result{Success: true, Seed: r.Seed}
}

// BeginPlaying flips the room to playing; there is no server tick for
// light modes, the clients simulate and relay.
func (m *Manager) BeginPlaying(ctx context.Context, code string) Result {
	r, ok := m.getRoom(code)
	if !ok {
		return Result{Error: ErrRoomNotFound}
	}
	r.Lock()
	r.Status = roomcore.StatusPlaying
	r.Unlock()
	m.persist(r)
	return Result{Success: true}
}

// Roster returns the session ids currently in a room.
func (m *Manager) Roster(code string) []string {
	r, ok := m.getRoom(code)
	if !ok {
		return nil
	}
	r.Lock()
	defer r.Unlock()
	return r.roster()
}

// Seed returns a room's drawn game seed.
func (m *Manager) Seed(code string) int64 {
	r, ok := m.getRoom(code)
	if !ok {
		return 0
	}
	r.Lock()
	defer r.Unlock()
	return r.Seed
}

// RemovePlayer deletes a player, rotating host and tearing down an
// emptied room. AI fillers left alone in a room tear it down too.
func (m *Manager) RemovePlayer(code, sessionID, reason string) Result {
	r, ok := m.getRoom(code)
	if !ok {
		return Result{Error: ErrRoomNotFound}
	}
	r.Lock()
	delete(r.Players, sessionID)
	kept := r.order[:0]
	for _, sid := range r.order {
		if sid != sessionID {
			kept = append(kept, sid)
		}
	}
	r.order = kept
	if _, hostHere := r.Players[r.HostID]; !hostHere {
		var remaining []roomcore.RosterEntry
		for _, sid := range r.order {
			if p, ok := r.Players[sid]; ok && !p.IsAI {
				remaining = append(remaining, roomcore.RosterEntry{SessionID: sid, JoinedAt: p.JoinedAt})
			}
		}
		r.HostID = roomcore.HostRotation(remaining)
	}
	humans := 0
	for _, p := range r.Players {
		if !p.IsAI {
			humans++
		}
	}
	roster := r.roster()
	r.Unlock()

	if reason != "" {
		m.bcast.BroadcastToRoom(roster, wire.PlayerLeft{Type: "player_left", SessionID: sessionID, Reason: reason})
	}
	if humans == 0 {
		m.mu.Lock()
		delete(m.rooms, code)
		m.mu.Unlock()
		if m.store != nil {
			_ = m.store.DeleteRoom(context.Background(), code)
		}
	} else {
		m.persist(r)
	}
	return Result{Success: true}
}

// MarkDisconnected flags a player not-connected for the grace window.
func (m *Manager) MarkDisconnected(code, sessionID string) Result {
	r, ok := m.getRoom(code)
	if !ok {
		return Result{Error: ErrRoomNotFound}
	}
	r.Lock()
	defer r.Unlock()
	p, ok := r.Players[sessionID]
	if !ok {
		return Result{Error: ErrRoomNotFound}
	}
	p.Connected = false
	return Result{Success: true}
}

// MarkReconnected flips a player's connected flag back on.
func (m *Manager) MarkReconnected(code, sessionID string) Result {
	r, ok := m.getRoom(code)
	if !ok {
		return Result{Error: ErrRoomNotFound}
	}
	r.Lock()
	defer r.Unlock()
	p, ok := r.Players[sessionID]
	if !ok {
		return Result{Error: ErrRoomNotFound}
	}
	p.Connected = true
	return Result{Success: true, Player: p}
}

// TransferPlayer adopts a player's state under a new session id on
// reconnect.
func (m *Manager) TransferPlayer(code, oldSessionID, newSessionID string) Result {
	r, ok := m.getRoom(code)
	if !ok {
		return Result{Error: ErrRoomNotFound}
	}
	r.Lock()
	defer r.Unlock()
	p, ok := r.Players[oldSessionID]
	if !ok {
		return Result{Error: ErrRoomNotFound}
	}
	delete(r.Players, oldSessionID)
	p.SessionID = newSessionID
	p.Connected = true
	r.Players[newSessionID] = p
	for i, sid := range r.order {
		if sid == oldSessionID {
			r.order[i] = newSessionID
		}
	}
	if r.HostID == oldSessionID {
		r.HostID = newSessionID
	}
	return Result{Success: true, Player: p}
}

// RoomState is the reconnect/lobby snapshot for a light-mode room.
type RoomState struct {
	Type    string      `json:"type"`
	Code    string      `json:"code"`
	Status  string      `json:"status"`
	HostID  string      `json:"hostId"`
	Seed    int64       `json:"seed"`
	Players []StateSeat `json:"players"`
}

// StateSeat is one roster entry in a RoomState.
type StateSeat struct {
	SessionID   string `json:"sessionId"`
	DisplayName string `json:"displayName"`
	Ready       bool   `json:"ready"`
	Connected   bool   `json:"connected"`
	IsAI        bool   `json:"isAI"`
	IsHost      bool   `json:"isHost"`
}

// SnapshotFor renders the room snapshot sent to a reconnecting client.
func (m *Manager) SnapshotFor(code, sessionID string) (RoomState, bool) {
	r, ok := m.getRoom(code)
	if !ok {
		return RoomState{}, false
	}
	r.Lock()
	defer r.Unlock()
	seats := make([]StateSeat, 0, len(r.order))
	for _, sid := range r.order {
		if p, ok := r.Players[sid]; ok {
			seats = append(seats, StateSeat{
				SessionID: p.SessionID, DisplayName: p.DisplayName, Ready: p.Ready,
				Connected: p.Connected, IsAI: p.IsAI, IsHost: p.SessionID == r.HostID,
			})
		}
	}
	return RoomState{
		Type: m.mode + "_room_state", Code: r.Code, Status: string(r.Status),
		HostID: r.HostID, Seed: r.Seed, Players: seats,
	}, true
}

func (m *Manager) persist(r *Room) {
	if m.store == nil {
		return
	}
	players := make([]persistence.RoomSummaryPlayer, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, persistence.RoomSummaryPlayer{
			ID: p.SessionID, Name: p.DisplayName, IsHost: p.SessionID == r.HostID, JoinedAt: p.JoinedAt,
		})
	}
	summary := persistence.RoomSummary{
		Code: r.Code, Name: r.Name, Mode: m.mode, Status: string(r.Status),
		MaxPlayers: r.MaxPlayers, Players: players,
		CreatedAt: r.CreatedAt, UpdatedAt: time.Now(),
	}
	_ = m.store.SaveRoom(context.Background(), summary)
}
