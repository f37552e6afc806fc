package warfront

import (
	"time"

	"github.com/ridgelinegames/corehost/internal/prng"
	"github.com/ridgelinegames/corehost/internal/roomcore"
	"github.com/ridgelinegames/corehost/internal/wire"
)

// Durations and magnitudes for role-sourced effects.
const (
	lineClearHeal      = 10.0
	shieldBoostDur     = 15 * time.Second
	energyPulsePerLine = 5.0
	buildSpeedDur      = 20 * time.Second
	tetrisDamage       = 25.0
	killScoreBonus     = 10.0
	killTerritoryDmg   = 5.0
	attackBoostDur     = 12 * time.Second
	slowEnemiesDur     = 10 * time.Second
)

// engineerYield maps a mined block type to the resources it grants the
// engineer's team.
var engineerYield = map[string]map[string]int{
	"stone":       {"stone": 1},
	"wood":        {"wood": 1},
	"iron_ore":    {"iron": 2},
	"diamond_ore": {"diamond": 1},
	"coal_ore":    {"energy": 1},
}

// commanderAbility pairs a resource cost with the effect it produces.
type commanderAbility struct {
	cost   map[string]int
	effect func(r *Room, p *Player, targetCell int) (Effect, bool)
}

// commanderAbilities debit the team pool atomically before enqueueing
// their effect; an unaffordable ability leaves the pool untouched and
// emits nothing.
var commanderAbilities = map[string]commanderAbility{
	"shield_generator": {
		cost: map[string]int{"iron": 50},
		effect: func(r *Room, p *Player, _ int) (Effect, bool) {
			return Effect{
				SourceID: p.SessionID, SourceRole: RoleCommander,
				Kind: EffectShieldBoost, Scope: ScopeTeam, TargetTeam: p.Team,
				Magnitude: 1, Duration: shieldBoostDur,
			}, true
		},
	},
	"artillery_strike": {
		cost: map[string]int{"iron": 30, "stone": 20},
		effect: func(r *Room, p *Player, targetCell int) (Effect, bool) {
			if targetCell < 0 || targetCell >= len(r.Cells) {
				return Effect{}, false
			}
			return Effect{
				SourceID: p.SessionID, SourceRole: RoleCommander,
				Kind: EffectTerritoryDamage, Scope: ScopeTerritory,
				TargetCell: targetCell, Magnitude: 30,
			}, true
		},
	},
	"combat_stims": {
		cost: map[string]int{"energy": 25},
		effect: func(r *Room, p *Player, _ int) (Effect, bool) {
			return Effect{
				SourceID: p.SessionID, SourceRole: RoleCommander,
				Kind: EffectAttackBoost, Scope: ScopeTeam, TargetTeam: p.Team,
				Magnitude: 2, Duration: attackBoostDur,
			}, true
		},
	},
	"emp_burst": {
		cost: map[string]int{"diamond": 3},
		effect: func(r *Room, p *Player, _ int) (Effect, bool) {
			return Effect{
				SourceID: p.SessionID, SourceRole: RoleCommander,
				Kind: EffectSlowEnemies, Scope: ScopeEnemyTeam, TargetTeam: p.Team,
				Magnitude: 0.5, Duration: slowEnemiesDur,
			}, true
		},
	},
}

// Handle routes one decoded gameplay frame to the matching room
// handler. Acquires the room lock itself; lobby lifecycle tags are
// handled by the session gateway before reaching here.
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
	if !ok {
		return Result{Error: ErrRoomNotFound}
	}

	switch env.Type {
	case "line_clear":
		var req LineClearRequest
		if err := env.Unmarshal(&req); err != nil {
			return Result{Error: ErrInternal}
		}
		return m.lineClear(r, p, req.Lines)
	case "combo":
		var req ComboRequest
		if err := env.Unmarshal(&req); err != nil {
			return Result{Error: ErrInternal}
		}
		return m.combo(r, p, req.Count)
	case "t_spin":
		return m.tSpin(r, p)
	case "tetris":
		return m.tetris(r, p)
	case "enter_cell":
		var req EnterCellRequest
		if err := env.Unmarshal(&req); err != nil {
			return Result{Error: ErrInternal}
		}
		return m.enterCell(r, p, req.Cell)
	case "hit":
		var req HitRequest
		if err := env.Unmarshal(&req); err != nil {
			return Result{Error: ErrInternal}
		}
		return m.hit(r, p, req)
	case "died":
		var req DiedRequest
		if err := env.Unmarshal(&req); err != nil {
			return Result{Error: ErrInternal}
		}
		return m.died(r, p, req.KillerID)
	case "mine":
		var req MineRequest
		if err := env.Unmarshal(&req); err != nil {
			return Result{Error: ErrInternal}
		}
		return m.engineerMine(r, p, req.BlockType)
	case "place":
		var req PlaceRequest
		if err := env.Unmarshal(&req); err != nil {
			return Result{Error: ErrInternal}
		}
		return m.engineerPlace(r, p, req.Cell)
	case "craft":
		return m.engineerCraft(r, p)
	case "ability":
		var req AbilityRequest
		if err := env.Unmarshal(&req); err != nil {
			return Result{Error: ErrInternal}
		}
		return m.commanderAbility(r, p, req.Ability, req.Cell)
	case "position":
		var req PositionRequest
		if err := env.Unmarshal(&req); err != nil {
			return Result{Error: ErrInternal}
		}
		return m.relayPosition(r, p, req)
	case "chat":
		var req ChatRequest
		if err := env.Unmarshal(&req); err != nil {
			return Result{Error: ErrInternal}
		}
		return m.chat(r, p, req.Message)
	default:
		return Result{Error: "UNKNOWN_ACTION"}
	}
}

func isGameplayAction(typeName string) bool {
	switch typeName {
	case "line_clear", "combo", "t_spin", "tetris", "enter_cell", "hit",
		"died", "mine", "place", "craft", "ability", "position", "chat":
		return true
	}
	return false
}

// LineClearRequest reports a defender clearing n lines at once.
type LineClearRequest struct {
	Lines int `json:"lines"`
}

// lineClear heals the defender's assigned territory; clearing two or
// more lines also shields the whole team.
func (m *Manager) lineClear(r *Room, p *Player, lines int) Result {
	if p.Role != RoleDefender {
		return Result{Error: ErrInvalidRole}
	}
	if lines < 1 {
		return Result{Error: ErrInternal}
	}
	p.LinesCleared += lines
	if cell := assignedCell(r, p); cell >= 0 {
		r.enqueueEffect(Effect{
			SourceID: p.SessionID, SourceRole: RoleDefender,
			Kind: EffectTerritoryHeal, Scope: ScopeTerritory,
			TargetCell: cell, Magnitude: lineClearHeal,
		})
	}
	if lines >= 2 {
		r.enqueueEffect(Effect{
			SourceID: p.SessionID, SourceRole: RoleDefender,
			Kind: EffectShieldBoost, Scope: ScopeTeam, TargetTeam: p.Team,
			Magnitude: 1, Duration: shieldBoostDur,
		})
	}
	return Result{Success: true}
}

// assignedCell is the defender's occupied cell if their team owns it,
// else the team's first owned cell.
func assignedCell(r *Room, p *Player) int {
	if p.Cell >= 0 && p.Cell < len(r.Cells) && r.Cells[p.Cell].OwnerTeam == p.Team {
		return p.Cell
	}
	for _, c := range r.Cells {
		if c.OwnerTeam == p.Team {
			return c.Index
		}
	}
	return -1
}

// ComboRequest reports a defender chain of k consecutive clears.
type ComboRequest struct {
	Count int `json:"count"`
}

// combo sends an energy pulse to the team once the chain reaches
// three; magnitude grows with the chain length.
func (m *Manager) combo(r *Room, p *Player, count int) Result {
	if p.Role != RoleDefender {
		return Result{Error: ErrInvalidRole}
	}
	if count < 3 {
		return Result{Success: true}
	}
	r.enqueueEffect(Effect{
		SourceID: p.SessionID, SourceRole: RoleDefender,
		Kind: EffectResourceGrant, Scope: ScopeTeam, TargetTeam: p.Team,
		Magnitude: energyPulsePerLine * float64(count),
	})
	return Result{Success: true}
}

func (m *Manager) tSpin(r *Room, p *Player) Result {
	if p.Role != RoleDefender {
		return Result{Error: ErrInvalidRole}
	}
	r.enqueueEffect(Effect{
		SourceID: p.SessionID, SourceRole: RoleDefender,
		Kind: EffectBuildSpeed, Scope: ScopeTeam, TargetTeam: p.Team,
		Magnitude: 1.5, Duration: buildSpeedDur,
	})
	return Result{Success: true}
}

// tetris damages a random enemy-owned territory.
func (m *Manager) tetris(r *Room, p *Player) Result {
	if p.Role != RoleDefender {
		return Result{Error: ErrInvalidRole}
	}
	var enemyCells []int
	for _, c := range r.Cells {
		if c.OwnerTeam != "" && c.OwnerTeam != p.Team {
			enemyCells = append(enemyCells, c.Index)
		}
	}
	if len(enemyCells) == 0 {
		return Result{Success: true}
	}
	stream := prng.RoomSeed(r.Seed, r.Tick, uint64(r.nextEffectID))
	r.enqueueEffect(Effect{
		SourceID: p.SessionID, SourceRole: RoleDefender,
		Kind: EffectTerritoryDamage, Scope: ScopeTerritory,
		TargetCell: enemyCells[stream.NextInt(0, len(enemyCells)-1)], Magnitude: tetrisDamage,
	})
	return Result{Success: true}
}

// EnterCellRequest moves a player onto a territory cell (-1 leaves the
// grid); capture accrual reads this on the next tick.
type EnterCellRequest struct {
	Cell int `json:"cell"`
}

func (m *Manager) enterCell(r *Room, p *Player, cell int) Result {
	if cell < -1 || cell >= len(r.Cells) {
		return Result{Error: ErrInternal}
	}
	p.Cell = cell
	return Result{Success: true}
}

// HitRequest reports soldier damage landed on an enemy.
type HitRequest struct {
	TargetID string `json:"targetId"`
	Damage   int    `json:"damage"`
}

func (m *Manager) hit(r *Room, p *Player, req HitRequest) Result {
	if p.Role != RoleSoldier {
		return Result{Error: ErrInvalidRole}
	}
	if req.Damage < 0 {
		return Result{Error: ErrInternal}
	}
	p.DamageDealt += req.Damage
	return Result{Success: true}
}

// DiedRequest reports the reporting player's death; the killer gets
// credit and their team a score bonus plus damage to the victim's
// current territory.
type DiedRequest struct {
	KillerID string `json:"killerId"`
}

func (m *Manager) died(r *Room, p *Player, killerID string) Result {
	p.Deaths++
	killer, ok := r.Players[killerID]
	if !ok || killer.Team == p.Team {
		return Result{Success: true}
	}
	killer.Kills++
	r.enqueueEffect(Effect{
		SourceID: killer.SessionID, SourceRole: killer.Role,
		Kind: EffectScoreBonus, Scope: ScopeTeam, TargetTeam: killer.Team,
		Magnitude: killScoreBonus,
	})
	if p.Cell >= 0 && p.Cell < len(r.Cells) && r.Cells[p.Cell].OwnerTeam == p.Team {
		r.enqueueEffect(Effect{
			SourceID: killer.SessionID, SourceRole: killer.Role,
			Kind: EffectTerritoryDamage, Scope: ScopeTerritory,
			TargetCell: p.Cell, Magnitude: killTerritoryDmg,
		})
	}
	return Result{Success: true}
}

// MineRequest reports an engineer finishing a block break.
type MineRequest struct {
	BlockType string `json:"blockType"`
}

func (m *Manager) engineerMine(r *Room, p *Player, blockType string) Result {
	if p.Role != RoleEngineer {
		return Result{Error: ErrInvalidRole}
	}
	team, ok := r.Teams[p.Team]
	if !ok {
		return Result{Error: ErrInvalidTeam}
	}
	for kind, amount := range engineerYield[blockType] {
		team.Resources.Grant(kind, amount)
	}
	return Result{Success: true}
}

// PlaceRequest reports an engineer placing a block in a territory cell.
type PlaceRequest struct {
	Cell int `json:"cell"`
}

// engineerPlace fortifies the cell when the engineer's own team holds
// it; placing anywhere else is a no-op rather than an error.
func (m *Manager) engineerPlace(r *Room, p *Player, cell int) Result {
	if p.Role != RoleEngineer {
		return Result{Error: ErrInvalidRole}
	}
	if cell < 0 || cell >= len(r.Cells) {
		return Result{Error: ErrInternal}
	}
	if r.Cells[cell].OwnerTeam != p.Team {
		return Result{Success: true}
	}
	r.enqueueEffect(Effect{
		SourceID: p.SessionID, SourceRole: RoleEngineer,
		Kind: EffectFortify, Scope: ScopeTerritory, TargetCell: cell, Magnitude: 1,
	})
	return Result{Success: true}
}

func (m *Manager) engineerCraft(r *Room, p *Player) Result {
	if p.Role != RoleEngineer {
		return Result{Error: ErrInvalidRole}
	}
	r.enqueueEffect(Effect{
		SourceID: p.SessionID, SourceRole: RoleEngineer,
		Kind: EffectAmmoResupply, Scope: ScopeTeam, TargetTeam: p.Team,
		Magnitude: 1, Duration: 5 * time.Second,
	})
	return Result{Success: true}
}

// AbilityRequest invokes a commander ability against an optional cell.
type AbilityRequest struct {
	Ability string `json:"ability"`
	Cell    int    `json:"cell"`
}

// commanderAbility debits the team pool atomically, then either
// enqueues the ability's effect or, for scan, answers the team
// directly with the enemies in the target cell.
func (m *Manager) commanderAbility(r *Room, p *Player, ability string, cell int) Result {
	if p.Role != RoleCommander {
		return Result{Error: ErrInvalidRole}
	}
	team, ok := r.Teams[p.Team]
	if !ok {
		return Result{Error: ErrInvalidTeam}
	}

	if ability == "scan" {
		if cell < 0 || cell >= len(r.Cells) {
			return Result{Error: ErrInternal}
		}
		if !team.Resources.Spend(map[string]int{"energy": 20}) {
			return Result{Error: ErrInsufficient}
		}
		var enemies []string
		for sid, other := range r.Players {
			if other.Team != p.Team && other.Cell == cell {
				enemies = append(enemies, sid)
			}
		}
		m.bcast.BroadcastToTeam(r.teamRoster(p.Team), ScanResult{
			Type: "wf_scan_result", Cell: cell, Enemies: enemies,
		})
		return Result{Success: true}
	}

	def, ok := commanderAbilities[ability]
	if !ok {
		return Result{Error: "UNKNOWN_ABILITY"}
	}
	effect, valid := def.effect(r, p, cell)
	if !valid {
		return Result{Error: ErrInternal}
	}
	if !team.Resources.Spend(def.cost) {
		return Result{Error: ErrInsufficient}
	}
	r.enqueueEffect(effect)
	return Result{Success: true}
}

// PositionRequest is a 3D-view position sample from a non-defender.
type PositionRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// PositionUpdate relays a player's 3D position to the other occupants
// of the 3D sub-view; defenders live in their own board view and never
// receive these.
type PositionUpdate struct {
	Type      string  `json:"type"`
	SessionID string  `json:"sessionId"`
	Team      string  `json:"team"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
}

// relayPosition fans a position sample out to every 3D-view occupant
// (soldiers, engineers, commanders) except the sender.
func (m *Manager) relayPosition(r *Room, p *Player, req PositionRequest) Result {
	if p.Role == RoleDefender {
		return Result{Error: ErrInvalidRole}
	}
	var viewers []string
	for sid, other := range r.Players {
		if other.Role != RoleDefender {
			viewers = append(viewers, sid)
		}
	}
	m.bcast.SendTo3DViewers(viewers, PositionUpdate{
		Type: "wf_player_position", SessionID: p.SessionID, Team: p.Team,
		X: req.X, Y: req.Y, Z: req.Z,
	}, p.SessionID)
	return Result{Success: true}
}

// ChatRequest is a relayed room chat message.
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

func (m *Manager) chat(r *Room, p *Player, message string) Result {
	msg := wire.Truncate(message, 200)
	if msg == "" {
		return Result{Error: "EMPTY_MESSAGE"}
	}
	m.bcast.BroadcastToRoom(r.roster(), ChatMessage{
		Type: "chat", SessionID: p.SessionID, DisplayName: p.DisplayName, Message: msg,
	})
	return Result{Success: true}
}
