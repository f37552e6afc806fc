package boardgame

import (
	"math"

	"github.com/ridgelinegames/corehost/internal/registry"
	"github.com/ridgelinegames/corehost/internal/roomcore"
	"github.com/ridgelinegames/corehost/internal/wire"
	"github.com/ridgelinegames/corehost/internal/worldgrid"
)

// Handle routes one decoded action frame to the matching room handler.
// Invoked by the dispatcher with the room already resolved; acquires
// the room lock itself so callers never have to.
func (m *Manager) Handle(code, sessionID string, env wire.Envelope) Result {
	if !isGameplayAction(env.Type) {
		return Result{Error: "UNKNOWN_ACTION"}
	}
	r, ok := m.getRoom(code)
	if !ok {
		return Result{Error: ErrRoomNotFound}
	}
	r.Lock()
	defer r.Unlock()

	if r.Status != roomcore.StatusPlaying {
		return Result{Error: ErrWrongState}
	}
	p, ok := r.Players[sessionID]
	if !ok || p.Dead {
		return Result{Error: ErrRoomNotFound}
	}

	switch env.Type {
	case "move":
		var req MoveRequest
		if err := env.Unmarshal(&req); err != nil {
			return Result{Error: ErrInternal}
		}
		return m.move(r, p, req)
	case "mine":
		var req MineRequest
		if err := env.Unmarshal(&req); err != nil {
			return Result{Error: ErrInternal}
		}
		return m.startMining(r, p, req)
	case "attack":
		var req AttackRequest
		if err := env.Unmarshal(&req); err != nil {
			return Result{Error: ErrInternal}
		}
		return m.attack(r, p, req)
	case "place_block":
		var req PlaceBlockRequest
		if err := env.Unmarshal(&req); err != nil {
			return Result{Error: ErrInternal}
		}
		return m.placeBlock(r, p, req)
	case "eat":
		return m.eat(r, p)
	case "select_slot":
		var req SelectSlotRequest
		if err := env.Unmarshal(&req); err != nil {
			return Result{Error: ErrInternal}
		}
		return m.selectSlot(r, p, req)
	case "chat":
		var req ChatRequest
		if err := env.Unmarshal(&req); err != nil {
			return Result{Error: ErrInternal}
		}
		return m.chat(r, p, req)
	default:
		return Result{Error: "UNKNOWN_ACTION"}
	}
}

func isGameplayAction(typeName string) bool {
	switch typeName {
	case "move", "mine", "attack", "place_block", "eat", "select_slot", "chat":
		return true
	}
	return false
}

// MoveRequest is the client's requested step, clamped to one square.
type MoveRequest struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

func (m *Manager) move(r *Room, p *Player, req MoveRequest) Result {
	if r.Tick-p.LastMoveTick < MoveCooldownTicks {
		return Result{Error: "COOLDOWN"}
	}
	nx, ny := p.Pos.X+clampStep(req.DX), p.Pos.Y+clampStep(req.DY)
	if !r.Grid.InBounds(nx, ny) {
		return Result{Error: "OUT_OF_BOUNDS"}
	}
	if !registry.BlockByID(r.Grid.Get(nx, ny).BlockID).Walkable {
		return Result{Error: "BLOCKED"}
	}
	for _, other := range r.Players {
		if other != p && !other.Dead && other.Pos.X == nx && other.Pos.Y == ny {
			return Result{Error: "BLOCKED"}
		}
	}
	if p.Mining != nil {
		p.Mining = nil
		m.bcast.BroadcastToRoom(r.roster(), MiningCancelled{Type: "mc_mining_cancelled", SessionID: p.SessionID})
	}
	p.Pos.X, p.Pos.Y = nx, ny
	p.LastMoveTick = r.Tick
	m.bcast.BroadcastToRoom(r.roster(), PlayerMoved{Type: "mc_player_moved", SessionID: p.SessionID, X: nx, Y: ny})
	return Result{Success: true, Player: p}
}

func clampStep(v int) int {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// MineRequest names the block a player begins or continues breaking.
type MineRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// startMining begins a mining job; progress accrues across ticks in
// runTick. Time to break scales with the equipped tool's MiningSpeed
// against the block's Hardness, gated on RequiredTier.
func (m *Manager) startMining(r *Room, p *Player, req MineRequest) Result {
	if worldgrid.L1(p.Pos.X, p.Pos.Y, req.X, req.Y) > 1 {
		return Result{Error: "TOO_FAR"}
	}
	if !r.Grid.InBounds(req.X, req.Y) {
		return Result{Error: "OUT_OF_BOUNDS"}
	}
	blk := registry.BlockByID(r.Grid.Get(req.X, req.Y).BlockID)
	if blk.ID == "" || blk.ID == "air" || blk.Hardness == 0 && !blk.Solid {
		return Result{Error: "NOTHING_TO_MINE"}
	}
	equipped, _ := registry.ItemByID(p.Equipped)
	if registry.TierOf(equipped.ToolType) < blk.RequiredTier {
		return Result{Error: "BETTER_TOOL_REQUIRED"}
	}

	p.Mining = &MiningJob{X: req.X, Y: req.Y, Duration: miningDuration(blk, equipped)}
	if p.Mining.Duration <= 0 {
		// hardness 0 completes within the same tick as the request
		finishMining(r, p, m.bcast)
		return Result{Success: true}
	}
	m.bcast.BroadcastToRoom(r.roster(), MiningStarted{
		Type: "mc_mining_started", SessionID: p.SessionID, X: req.X, Y: req.Y, Duration: p.Mining.Duration,
	})
	return Result{Success: true}
}

// miningDuration computes time-to-break in seconds: full tool speed
// when the tool type matches the block's preferred tool or the block
// has no preferred tool, the halved
// speed ceil(hardness / (speed * 0.5)) when it doesn't but the tool is
// faster than a bare hand, and raw hardness otherwise. The wrong-tool
// branch is deliberate, counter-intuitive rounding included; see
// DESIGN.md.
func miningDuration(blk registry.Block, tool registry.Item) float64 {
	if blk.Hardness == 0 {
		return 0
	}
	speed := tool.MiningSpeed
	if speed <= 0 {
		speed = 1
	}
	switch {
	case blk.PreferredTool == registry.ToolNone || tool.ToolType == blk.PreferredTool:
		return blk.Hardness / speed
	case speed > 1:
		return math.Ceil(blk.Hardness / (speed * 0.5))
	default:
		return blk.Hardness
	}
}

// AttackRequest names a target mob or player.
type AttackRequest struct {
	TargetMobID string `json:"targetMobId"`
	TargetID    string `json:"targetId"`
}

func (m *Manager) attack(r *Room, p *Player, req AttackRequest) Result {
	if r.Tick-p.LastAttackTick < AttackCooldownTicks {
		return Result{Error: "COOLDOWN"}
	}
	equipped, _ := registry.ItemByID(p.Equipped)
	dmg := equipped.Damage
	if dmg <= 0 {
		dmg = 1 // fist
	}

	if req.TargetMobID != "" {
		if mob, ok := r.Mobs[req.TargetMobID]; ok {
			return m.attackMob(r, p, mob, dmg, func() { delete(r.Mobs, req.TargetMobID) })
		}
		if rm, ok := r.RaidMobs[req.TargetMobID]; ok && rm.CurrentSide == SideMain {
			return m.attackMob(r, p, &rm.Mob, dmg, func() { delete(r.RaidMobs, req.TargetMobID) })
		}
		return Result{Error: "OUT_OF_RANGE"}
	}

	if req.TargetID != "" {
		target, ok := r.Players[req.TargetID]
		if !ok || target.Dead || worldgrid.L1(p.Pos.X, p.Pos.Y, target.Pos.X, target.Pos.Y) > 2 {
			return Result{Error: "OUT_OF_RANGE"}
		}
		reduced := dmg - target.Armor/2
		if reduced < 1 {
			reduced = 1
		}
		target.Health -= reduced
		p.LastAttackTick = r.Tick
		m.bcast.BroadcastToRoom(r.roster(), DamageEvent{
			Type: "mc_damage", TargetID: target.SessionID, SourceID: p.SessionID,
			Amount: reduced, Health: target.Health,
		})
		if target.Health <= 0 {
			playerDeath(r, target, p.SessionID, m.bcast)
			p.Kills++
		}
		return Result{Success: true}
	}
	return Result{Error: "NO_TARGET"}
}

func (m *Manager) attackMob(r *Room, p *Player, mob *Mob, dmg int, remove func()) Result {
	if worldgrid.L1(p.Pos.X, p.Pos.Y, mob.Pos.X, mob.Pos.Y) > 2 {
		return Result{Error: "OUT_OF_RANGE"}
	}
	mob.Health -= dmg
	p.LastAttackTick = r.Tick
	m.bcast.BroadcastToRoom(r.roster(), DamageEvent{
		Type: "mc_damage", TargetID: mob.ID, SourceID: p.SessionID, Amount: dmg, Health: mob.Health,
	})
	if mob.Health <= 0 {
		if stats, ok := registry.MobByID(mob.Type); ok {
			stream := tickStream(r, posHash(mob.Pos.X, mob.Pos.Y)^hashID(mob.ID))
			dropLoot(p, stats.Drops, &stream)
		}
		p.Kills++
		remove()
		m.bcast.BroadcastToRoom(r.roster(), MobDied{Type: "mc_mob_died", MobID: mob.ID, KillerID: p.SessionID})
	}
	return Result{Success: true}
}

// PlaceBlockRequest names the target cell and the item slot supplying it.
type PlaceBlockRequest struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Item string `json:"item"`
}

func (m *Manager) placeBlock(r *Room, p *Player, req PlaceBlockRequest) Result {
	if worldgrid.L1(p.Pos.X, p.Pos.Y, req.X, req.Y) != 1 {
		return Result{Error: "TOO_FAR"}
	}
	if !r.Grid.InBounds(req.X, req.Y) {
		return Result{Error: "OUT_OF_BOUNDS"}
	}
	if existing := registry.BlockByID(r.Grid.Get(req.X, req.Y).BlockID); existing.Solid {
		return Result{Error: "OCCUPIED"}
	}
	item, ok := registry.ItemByID(req.Item)
	if !ok || !item.Placeable {
		return Result{Error: "NOT_PLACEABLE"}
	}
	if p.Inventory[req.Item] < 1 {
		return Result{Error: "INSUFFICIENT_ITEMS"}
	}
	p.Inventory[req.Item]--
	tile := r.Grid.Get(req.X, req.Y)
	tile.BlockID = item.PlacesBlock
	r.Grid.Set(req.X, req.Y, tile)
	m.bcast.BroadcastToRoom(r.roster(), BlockPlaced{
		Type: "mc_block_placed", SessionID: p.SessionID, X: req.X, Y: req.Y, BlockID: item.PlacesBlock,
	})
	return Result{Success: true}
}

func (m *Manager) eat(r *Room, p *Player) Result {
	for itemID, count := range p.Inventory {
		if count <= 0 {
			continue
		}
		item, ok := registry.ItemByID(itemID)
		if !ok || item.EdibleBits <= 0 {
			continue
		}
		p.Inventory[itemID]--
		p.Hunger += item.EdibleBits
		if p.Hunger > MaxHunger {
			p.Hunger = MaxHunger
		}
		return Result{Success: true}
	}
	return Result{Error: "NO_FOOD"}
}

// SelectSlotRequest names the item to equip.
type SelectSlotRequest struct {
	Item string `json:"item"`
}

func (m *Manager) selectSlot(r *Room, p *Player, req SelectSlotRequest) Result {
	if req.Item != "fist" && p.Inventory[req.Item] < 1 {
		return Result{Error: "NOT_OWNED"}
	}
	p.Equipped = req.Item
	return Result{Success: true}
}

// ChatRequest is a relayed room chat message (supplemented feature).
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatMessage is the broadcast shape for a relayed chat line.
type ChatMessage struct {
	Type        string `json:"type"`
	SessionID   string `json:"sessionId"`
	DisplayName string `json:"displayName"`
	Message     string `json:"message"`
}

func (m *Manager) chat(r *Room, p *Player, req ChatRequest) Result {
	msg := wire.Truncate(req.Message, 200)
	if msg == "" {
		return Result{Error: "EMPTY_MESSAGE"}
	}
	m.bcast.BroadcastToRoom(r.roster(), ChatMessage{
		Type: "mc_chat_message", SessionID: p.SessionID, DisplayName: p.DisplayName, Message: msg,
	})
	return Result{Success: true}
}
