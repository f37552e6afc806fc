package boardgame

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ridgelinegames/corehost/internal/broadcast"
	"github.com/ridgelinegames/corehost/internal/persistence"
	"github.com/ridgelinegames/corehost/internal/prng"
	"github.com/ridgelinegames/corehost/internal/registry"
	"github.com/ridgelinegames/corehost/internal/roomcore"
	"github.com/ridgelinegames/corehost/internal/wire"
	"github.com/ridgelinegames/corehost/internal/worldgrid"
)

// spawnInitialMobs seeds the fresh world with a few passive mobs so the
// food loop works from the first day. Caller holds r's lock.
func spawnInitialMobs(r *Room) {
	ids := registry.PassiveMobIDs()
	if len(ids) == 0 {
		return
	}
	stream := prng.RoomSeed(r.Seed, 0, 0xa5a5)
	for i := 0; i < InitialPassiveMobs; i++ {
		mobType := ids[stream.NextInt(0, len(ids)-1)]
		stats, _ := registry.MobByID(mobType)
		pos := Position{X: stream.NextInt(0, GridWidth-1), Y: stream.NextInt(0, GridHeight-1)}
		if !registry.BlockByID(r.Grid.Get(pos.X, pos.Y).BlockID).Walkable {
			continue
		}
		r.nextEntityID++
		id := fmt.Sprintf("mob_%d", r.nextEntityID)
		r.Mobs[id] = &Mob{ID: id, Type: mobType, Pos: pos, Health: stats.Health}
	}
}

// ErrCode values returned in Result.Error.
const (
	ErrRoomNotFound   = "ROOM_NOT_FOUND"
	ErrGameInProgress = "GAME_IN_PROGRESS"
	ErrRoomFull       = "ROOM_FULL"
	ErrNotHost        = "NOT_HOST"
	ErrWrongState     = "WRONG_STATE"
	ErrNotEnoughReady = "NOT_ENOUGH_READY"
	ErrInternal       = "INTERNAL_ERROR"
)

// Result is the uniform {success, error?, ...} shape every public
// operation returns; errors are categorized codes, never panics across
// the package boundary.
type Result struct {
	Success bool
	Error   string
	Player  *Player
	Code    string
	Seed    int64
}

// Manager owns every board-game room and the broadcast/persistence
// collaborators injected at construction. Rooms, mobs, and timers are
// mutated only through the owning Manager.
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
func (m *Manager) Mode() string { return "board" }

func (m *Manager) roomExists(code string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rooms[code]
	return ok
}

// HasRoom reports whether this manager owns the given room code.
func (m *Manager) HasRoom(code string) bool { return m.roomExists(code) }

// SnapshotFor renders the full room snapshot sent to a reconnecting
// client.
func (m *Manager) SnapshotFor(code, sessionID string) (StateSnapshot, bool) {
	r, ok := m.getRoom(code)
	if !ok {
		return StateSnapshot{}, false
	}
	r.Lock()
	defer r.Unlock()
	if r.Grid == nil {
		return StateSnapshot{}, false
	}
	return buildSnapshot(r, sessionID), true
}

// MarkReconnected flips a player's connected flag back on; the next
// periodic snapshot carries the change to the rest of the room.
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

// CreateRoom makes a new room, inserts the creator as host, and returns
// the assigned code and player state.
func (m *Manager) CreateRoom(sessionID, name, displayName string, public bool) Result {
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
		Players:    make(map[string]*Player),
		Mobs:       make(map[string]*Mob),
		RaidMobs:   make(map[string]*RaidMob),
	}
	player := newPlayer(sessionID, displayName, now, 0)
	r.Players[sessionID] = player
	r.order = append(r.order, sessionID)

	m.mu.Lock()
	m.rooms[code] = r
	m.mu.Unlock()

	m.persist(r)
	return Result{Success: true, Player: player, Code: code}
}

func newPlayer(sessionID, displayName string, joinedAt time.Time, colorSlot int) *Player {
	return &Player{
		SessionID:   sessionID,
		DisplayName: wire.Truncate(displayName, 20),
		Connected:   true,
		ColorSlot:   colorSlot,
		JoinedAt:    joinedAt,
		Inventory:   map[string]int{},
		Equipped:    "fist",
		Health:      MaxHealth,
		Hunger:      MaxHunger,
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

	colorSlot := len(r.order) % len(colorPalette())
	player := newPlayer(sessionID, displayName, time.Now(), colorSlot)
	r.Players[sessionID] = player
	r.order = append(r.order, sessionID)

	m.persist(r)
	return Result{Success: true, Player: player}
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

	seed := int64(rand.Int31()) // 31-bit, non-negative
	r.Seed = seed
	r.Status = roomcore.StatusCountdown
	m.persist(r)
	return Result{Success: true, Seed: seed}
}

// BeginPlaying is invoked by the lobby orchestrator after the countdown
// expires: it generates the world, resets per-player defaults,
// transitions to playing, and starts the tick scheduler.
func (m *Manager) BeginPlaying(ctx context.Context, code string) Result {
	r, ok := m.getRoom(code)
	if !ok {
		return Result{Error: ErrRoomNotFound}
	}
	r.Lock()
	r.Grid = generateGrid(r.Seed)
	r.Tick = 0
	r.TimeOfDay = 0
	r.DayPhase = PhaseDay
	r.Mobs = make(map[string]*Mob)
	r.RaidMobs = make(map[string]*RaidMob)
	r.CorruptionLeft = nil
	r.CorruptionRight = nil
	r.Anomalies = nil
	r.pendingAnomalies = nil
	spawnInitialMobs(r)
	spawnIdx := 0
	for _, sid := range r.order {
		p, ok := r.Players[sid]
		if !ok {
			continue
		}
		p.Pos = spawnPosition(spawnIdx)
		p.Health = MaxHealth
		p.Hunger = MaxHunger
		p.Dead = false
		p.Mining = nil
		spawnIdx++
	}
	r.Status = roomcore.StatusPlaying
	snapshot := m.buildAllSnapshots(r)
	r.Unlock()

	for sid, snap := range snapshot {
		m.bcast.SendToPlayer(sid, snap)
	}

	m.scheduler.Start(code, TickInterval, func() {
		r.Lock()
		runTick(r, m.bcast)
		r.Unlock()
	}, func() bool {
		r.Lock()
		playing := r.Status == roomcore.StatusPlaying
		r.Unlock()
		return playing
	})

	m.persist(r)
	return Result{Success: true}
}

func generateGrid(seed int64) *worldgrid.Grid {
	g := worldgrid.NewGrid(GridWidth, GridHeight, "grass", "plains")
	noise := prng.NewPerlin(seed)
	oreNoise := prng.NewPerlin(seed ^ 0x517cc1b7)
	for y := 0; y < GridHeight; y++ {
		for x := 0; x < GridWidth; x++ {
			n := noise.FBM2D(float64(x)/16, float64(y)/16, 3, 2.0, 0.5)
			biome := biomeFor(n)
			blockID := "grass"
			switch {
			case n > 0.4:
				blockID = "stone"
				o := oreNoise.Noise2D(float64(x)/4, float64(y)/4)
				if o > 0.55 {
					blockID = "ore_diamond"
				} else if o > 0.35 {
					blockID = "ore_iron"
				}
			case biome == "desert":
				blockID = "sand"
			case biome == "snowy":
				blockID = "snow_block"
			}
			g.Set(x, y, worldgrid.Tile{BlockID: blockID, Biome: biome})
		}
	}
	// clear the central spawn area so every spawn slot is walkable
	for y := GridHeight/2 - 6; y <= GridHeight/2+6; y++ {
		for x := GridWidth/2 - 6; x <= GridWidth/2+6; x++ {
			tile := g.Get(x, y)
			if !registry.BlockByID(tile.BlockID).Walkable {
				tile.BlockID = "grass"
				g.Set(x, y, tile)
			}
		}
	}
	return g
}

func biomeFor(n float64) string {
	switch {
	case n < -0.3:
		return "snowy"
	case n > 0.3:
		return "desert"
	default:
		return "plains"
	}
}

// spawnPosition maps a roster slot to a deterministic offset inside
// the cleared spawn area at world center.
func spawnPosition(index int) Position {
	offsets := [][2]int{
		{0, 0}, {2, 0}, {0, 2}, {-2, 0}, {0, -2},
		{2, 2}, {-2, 2}, {2, -2}, {-2, -2}, {4, 0}, {0, 4}, {-4, 0},
	}
	off := offsets[index%len(offsets)]
	x := GridWidth/2 + off[0]
	y := GridHeight/2 + off[1]
	return Position{X: clampInt(x, 0, GridWidth-1), Y: clampInt(y, 0, GridHeight-1)}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RemovePlayer deletes a player outright (explicit leave or grace
// expiry). Rewrites the host pointer to the oldest remaining player if
// the host left, and tears the room down once it empties.
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
	r.Unlock()

	if reason != "" {
		m.bcast.BroadcastToRoom(r.roster(), wire.PlayerLeft{Type: "player_left", SessionID: sessionID, Reason: reason})
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

// EndGame is host-only: finishes the match and stops the tick driver.
// Teardown of an emptied room handles the "empty" arm of the
// playing->finished transition; this is the explicit one.
func (m *Manager) EndGame(code, sessionID string) Result {
	r, ok := m.getRoom(code)
	if !ok {
		return Result{Error: ErrRoomNotFound}
	}
	r.Lock()
	if r.HostID != sessionID {
		r.Unlock()
		return Result{Error: ErrNotHost}
	}
	if r.Status != roomcore.StatusPlaying {
		r.Unlock()
		return Result{Error: ErrWrongState}
	}
	r.Status = roomcore.StatusFinished
	stats := make(map[string]PlayerView, len(r.Players))
	for sid, p := range r.Players {
		stats[sid] = playerView(p)
	}
	roster := r.roster()
	r.Unlock()

	m.scheduler.Stop(code)
	m.bcast.BroadcastToRoom(roster, GameOver{Type: "mc_game_over", Players: stats})
	m.persist(r)
	return Result{Success: true}
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
		p.Dead = false
	}
	return Result{Success: true}
}

func (r *Room) roster() []string {
	ids := make([]string, 0, len(r.Players))
	for sid := range r.Players {
		ids = append(ids, sid)
	}
	return ids
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
