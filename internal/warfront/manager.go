package warfront

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

// ErrCode values returned in Result.Error.
const (
	ErrRoomNotFound   = "ROOM_NOT_FOUND"
	ErrGameInProgress = "GAME_IN_PROGRESS"
	ErrRoomFull       = "ROOM_FULL"
	ErrNotHost        = "NOT_HOST"
	ErrWrongState     = "WRONG_STATE"
	ErrNotEnoughReady = "NOT_ENOUGH_READY"
	ErrInvalidRole    = "INVALID_ROLE"
	ErrInvalidTeam    = "INVALID_TEAM"
	ErrInsufficient   = "INSUFFICIENT_RESOURCES"
	ErrInternal       = "INTERNAL_ERROR"
)

// Result is the uniform {success, error?, ...} shape every public
// operation returns.
type Result struct {
	Success bool
	Error   string
	Player  *Player
	Code    string
	Seed    int64
}

// Manager owns every warfront room; all room state is mutated through
// it.
type Manager struct {
	mu        sync.RWMutex
	rooms     map[string]*Room
	scheduler *roomcore.Scheduler
	bcast     *broadcast.Engine
	store     persistence.Adapter
}

// NewManager builds an empty Manager.
func NewManager(bcast *broadcast.Engine, store persistence.Adapter) *Manager {
	return &Manager{
		rooms:     make(map[string]*Room),
		scheduler: roomcore.NewScheduler(),
		bcast:     bcast,
		store:     store,
	}
}

// Mode is this manager's dispatcher prefix identity.
func (m *Manager) Mode() string { return "warfront" }

func (m *Manager) roomExists(code string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rooms[code]
	return ok
}

// HasRoom reports whether this manager owns the given room code.
func (m *Manager) HasRoom(code string) bool { return m.roomExists(code) }

// SnapshotFor renders the territory snapshot sent to a reconnecting
// client.
func (m *Manager) SnapshotFor(code, sessionID string) (TerritoryUpdate, bool) {
	r, ok := m.getRoom(code)
	if !ok {
		return TerritoryUpdate{}, false
	}
	r.Lock()
	defer r.Unlock()
	if r.Cells == nil {
		return TerritoryUpdate{}, false
	}
	return buildTerritoryUpdate(r), true
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

// Shutdown stops every room's tick driver during process shutdown.
func (m *Manager) Shutdown() { m.scheduler.StopAll() }

// RoomCount reports the number of active rooms (health/metrics).
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

// CreateRoom makes a new room, inserts the creator as host on team
// alpha as a soldier, and returns the assigned code.
func (m *Manager) CreateRoom(sessionID, name, displayName string, public, ffa bool) Result {
	code := roomcore.GenerateRoomCode(m.roomExists)
	now := time.Now()
	r := &Room{
		Code:       code,
		Name:       wire.Truncate(name, 32),
		Public:     public,
		HostID:     sessionID,
		Status:     roomcore.StatusWaiting,
		CreatedAt:  now,
		MaxPlayers: MaxPlayersDefault,
		FFA:        ffa,
		Duration:   DefaultGameDuration,
		Players:    make(map[string]*Player),
		Teams:      make(map[string]*Team),
	}
	for _, id := range DefaultTeams {
		r.Teams[id] = newTeam(id)
	}
	player := newPlayer(sessionID, displayName, now, 0)
	player.Team = DefaultTeams[0]
	r.Players[sessionID] = player
	r.order = append(r.order, sessionID)

	m.mu.Lock()
	m.rooms[code] = r
	m.mu.Unlock()

	m.persist(r)
	return Result{Success: true, Player: player, Code: code}
}

func newTeam(id string) *Team {
	pool := make(ResourcePool, len(ResourceKinds))
	for _, kind := range ResourceKinds {
		pool[kind] = 0
	}
	return &Team{ID: id, Resources: pool}
}

func newPlayer(sessionID, displayName string, joinedAt time.Time, colorSlot int) *Player {
	return &Player{
		SessionID:   sessionID,
		DisplayName: wire.Truncate(displayName, 20),
		Connected:   true,
		ColorSlot:   colorSlot,
		JoinedAt:    joinedAt,
		Role:        RoleSoldier,
		Cell:        -1,
	}
}

// JoinRoom adds a player to an existing room, balancing them onto the
// smaller team.
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

	colorSlot := len(r.order) % len(colorPalette())
	player := newPlayer(sessionID, displayName, time.Now(), colorSlot)
	player.Team = r.smallerTeam()
	r.Players[sessionID] = player
	r.order = append(r.order, sessionID)

	m.persist(r)
	return Result{Success: true, Player: player}
}

func (r *Room) smallerTeam() string {
	counts := make(map[string]int, len(r.Teams))
	for _, p := range r.Players {
		counts[p.Team]++
	}
	best := DefaultTeams[0]
	for _, id := range DefaultTeams {
		if counts[id] < counts[best] {
			best = id
		}
	}
	return best
}

// SetReady toggles a player's ready flag; only permitted in waiting.
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

// SelectRole switches a player's role; only in waiting, and the switch
// zeroes role-specific stats.
func (m *Manager) SelectRole(code, sessionID string, role Role) Result {
	r, ok := m.getRoom(code)
	if !ok {
		return Result{Error: ErrRoomNotFound}
	}
	r.Lock()
	defer r.Unlock()
	if r.Status != roomcore.StatusWaiting {
		return Result{Error: ErrWrongState}
	}
	if !ValidRole(role) {
		return Result{Error: ErrInvalidRole}
	}
	p, ok := r.Players[sessionID]
	if !ok {
		return Result{Error: ErrRoomNotFound}
	}
	p.Role = role
	p.Kills, p.Deaths, p.DamageDealt, p.LinesCleared = 0, 0, 0, 0
	return Result{Success: true, Player: p}
}

// SelectTeam moves a player to another team; only in waiting.
func (m *Manager) SelectTeam(code, sessionID, teamID string) Result {
	r, ok := m.getRoom(code)
	if !ok {
		return Result{Error: ErrRoomNotFound}
	}
	r.Lock()
	defer r.Unlock()
	if r.Status != roomcore.StatusWaiting {
		return Result{Error: ErrWrongState}
	}
	if _, ok := r.Teams[teamID]; !ok {
		return Result{Error: ErrInvalidTeam}
	}
	p, ok := r.Players[sessionID]
	if !ok {
		return Result{Error: ErrRoomNotFound}
	}
	p.Team = teamID
	return Result{Success: true, Player: p}
}

// StartGame is host-only: requires waiting status, >= MinPlayers, and
// every non-host connected player ready. Draws a 31-bit non-negative
// game seed and transitions to countdown.
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

	seed := int64(rand.Int31())
	r.Seed = seed
	r.Status = roomcore.StatusCountdown
	m.persist(r)
	return Result{Success: true, Seed: seed}
}

// BeginPlaying is invoked by the lobby orchestrator after the countdown:
// it lays out the neutral territory grid, resets player state, and
// starts the match clock and the tick driver.
func (m *Manager) BeginPlaying(ctx context.Context, code string) Result {
	r, ok := m.getRoom(code)
	if !ok {
		return Result{Error: ErrRoomNotFound}
	}
	r.Lock()
	r.Cells = newTerritoryGrid()
	r.Tick = 0
	r.StartedAt = time.Now()
	r.WinnerTeam = ""
	r.effectQueue = nil
	for _, t := range r.Teams {
		t.Score = 0
		t.dominationSince = time.Time{}
		for _, kind := range ResourceKinds {
			t.Resources[kind] = 0
		}
	}
	for _, p := range r.Players {
		p.Cell = -1
		p.Kills, p.Deaths, p.DamageDealt, p.LinesCleared = 0, 0, 0, 0
		p.ActiveEffects = nil
	}
	r.Status = roomcore.StatusPlaying
	snapshot := buildTerritoryUpdate(r)
	roster := r.roster()
	r.Unlock()

	m.bcast.BroadcastToRoom(roster, snapshot)

	m.scheduler.Start(code, TickInterval, func() {
		r.Lock()
		runTick(r, m.bcast)
		finished := r.Status == roomcore.StatusFinished
		r.Unlock()
		if finished {
			m.persist(r)
		}
	}, func() bool {
		r.Lock()
		playing := r.Status == roomcore.StatusPlaying
		r.Unlock()
		return playing
	})

	m.persist(r)
	return Result{Success: true}
}

func newTerritoryGrid() []*TerritoryCell {
	cells := make([]*TerritoryCell, CellCount)
	for i := range cells {
		cells[i] = &TerritoryCell{
			Index:           i,
			Health:          0,
			CaptureProgress: make(map[string]float64),
		}
	}
	return cells
}

// RemovePlayer deletes a player outright (explicit leave or grace
// expiry), rotating the host to the oldest remaining player and
// tearing down an emptied room.
func (m *Manager) RemovePlayer(code, sessionID, reason string) Result {
	r, ok := m.getRoom(code)
	if !ok {
		return Result{Error: ErrRoomNotFound}
	}
	r.Lock()
	delete(r.Players, sessionID)
	r.order = removeFromOrder(r.order, sessionID)
	m.rotateHostIfNeeded(r)
	empty := len(r.Players) == 0
	roster := r.roster()
	r.Unlock()

	if reason != "" {
		m.bcast.BroadcastToRoom(roster, wire.PlayerLeft{Type: "player_left", SessionID: sessionID, Reason: reason})
	}

	if empty {
		m.teardown(code)
	} else {
		m.persist(r)
	}
	return Result{Success: true}
}

func removeFromOrder(order []string, sessionID string) []string {
	out := order[:0]
	for _, sid := range order {
		if sid != sessionID {
			out = append(out, sid)
		}
	}
	return out
}

func (m *Manager) rotateHostIfNeeded(r *Room) {
	if _, stillHere := r.Players[r.HostID]; stillHere {
		return
	}
	var remaining []roomcore.RosterEntry
	for _, sid := range r.order {
		if p, ok := r.Players[sid]; ok {
			remaining = append(remaining, roomcore.RosterEntry{SessionID: sid, JoinedAt: p.JoinedAt})
		}
	}
	r.HostID = roomcore.HostRotation(remaining)
}

func (m *Manager) teardown(code string) {
	m.scheduler.Stop(code)
	m.mu.Lock()
	delete(m.rooms, code)
	m.mu.Unlock()
	if m.store != nil {
		_ = m.store.DeleteRoom(context.Background(), code)
	}
}

// MarkDisconnected flags a player not-connected but retains it for the
// reconnect grace window.
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

// TransferPlayer moves a player's state from oldSessionID to
// newSessionID, rewriting the host pointer if needed; the reconnect
// path calls this after consuming the token.
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

// Rematch returns a finished room to waiting, preserving the roster.
func (m *Manager) Rematch(code, sessionID string) Result {
	r, ok := m.getRoom(code)
	if !ok {
		return Result{Error: ErrRoomNotFound}
	}
	r.Lock()
	defer r.Unlock()
	if r.HostID != sessionID {
		return Result{Error: ErrNotHost}
	}
	if r.Status != roomcore.StatusFinished {
		return Result{Error: ErrWrongState}
	}
	r.Status = roomcore.StatusWaiting
	for _, p := range r.Players {
		p.Ready = false
	}
	return Result{Success: true}
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
		Code: r.Code, Name: r.Name, Mode: m.Mode(), Status: string(r.Status),
		Public: r.Public, MaxPlayers: r.MaxPlayers, Players: players,
		CreatedAt: r.CreatedAt, UpdatedAt: time.Now(),
	}
	_ = m.store.SaveRoom(context.Background(), summary)
}
