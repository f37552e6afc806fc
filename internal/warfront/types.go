// Package warfront implements the territory-control room manager:
// four player roles (defender, soldier, engineer, commander) feed a
// shared deferred effect queue that mutates territory, resource, and
// player state on the next tick. Soldiers capture cells by standing in
// them, fortification slows capture, and matches end on the clock, a
// sustained dominant hold, or a territory-count rush in FFA.
package warfront

import (
	"sync"
	"time"

	"github.com/ridgelinegames/corehost/internal/roomcore"
)

const (
	TickRate     = 10 // Hz
	TickInterval = time.Second / TickRate

	MinPlayers        = 2
	MaxPlayersDefault = 16
	CountdownSeconds  = 5

	TerritoryCols = 4
	TerritoryRows = 4
	CellCount     = TerritoryCols * TerritoryRows

	CaptureRate      = 0.5  // progress per soldier per tick
	SlowPerLevel     = 0.15 // fortification capture slowdown
	CaptureThreshold = 100.0
	ProgressDecay    = 0.5 // per tick, for non-capturing teams
	MaxFortification = 5
	MaxCellHealth    = 100

	TerritoryBroadcastInterval = 10
	ResourceBroadcastInterval  = 20

	// Win conditions.
	DefaultGameDuration = 10 * time.Minute
	DominationHoldTime  = 30 * time.Second
	DominationShare     = 0.75
	FFAWinTerritories   = 6
)

// Role names the four playable roles feeding the effect queue.
type Role string

const (
	RoleDefender  Role = "defender"
	RoleSoldier   Role = "soldier"
	RoleEngineer  Role = "engineer"
	RoleCommander Role = "commander"
)

// ValidRole reports whether r is one of the playable roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleDefender, RoleSoldier, RoleEngineer, RoleCommander:
		return true
	}
	return false
}

// EffectKind discriminates cross-mode effects.
type EffectKind string

const (
	EffectTerritoryHeal   EffectKind = "territory_heal"
	EffectTerritoryDamage EffectKind = "territory_damage"
	EffectFortify         EffectKind = "fortify"
	EffectResourceGrant   EffectKind = "resource_grant"
	EffectShieldBoost     EffectKind = "shield_boost"
	EffectEnergyPulse     EffectKind = "energy_pulse"
	EffectBuildSpeed      EffectKind = "build_speed"
	EffectAmmoResupply    EffectKind = "ammo_resupply"
	EffectScoreBonus      EffectKind = "score_bonus"
	EffectScan            EffectKind = "scan"
	EffectAttackBoost     EffectKind = "attack_boost"
	EffectSlowEnemies     EffectKind = "slow_enemies"
)

// Scope names which players/cells an effect targets.
type Scope string

const (
	ScopeSelf      Scope = "self"
	ScopeTeam      Scope = "team"
	ScopeEnemyTeam Scope = "enemy_team"
	ScopeTerritory Scope = "territory"
	ScopeAll       Scope = "all"
)

// Effect is one queued cross-mode mutation. Territory heal/damage,
// fortify, resource-grant and score-bonus kinds apply instantly; every
// other kind attaches an ActiveEffect lasting Duration to every
// scope-matched player instead.
type Effect struct {
	ID         string
	SourceID   string
	SourceRole Role
	Kind       EffectKind
	Scope      Scope
	TargetTeam string
	TargetCell int // -1 when not cell-addressed
	Magnitude  float64
	Duration   time.Duration
	IssuedAt   time.Time
}

// ActiveEffect is a timed modifier attached to a player, swept each
// tick once expired.
type ActiveEffect struct {
	ID        string
	Kind      EffectKind
	Magnitude float64
	ExpiresAt time.Time
}

// TerritoryCell is one zone of the control grid.
type TerritoryCell struct {
	Index         int
	OwnerTeam     string // "" = neutral
	Health        float64
	Fortification int
	// CaptureProgress maps team id -> accumulated capture progress;
	// cleared entirely whenever the cell changes hands.
	CaptureProgress map[string]float64
}

// ResourceKinds enumerates the warfront economy counters.
var ResourceKinds = []string{"iron", "stone", "wood", "diamond", "energy"}

// ResourcePool is a team's non-negative resource counters. Spend is
// all-or-nothing; mutation only happens under the room lock.
type ResourcePool map[string]int

// CanAfford reports whether every counter covers its cost entry.
func (p ResourcePool) CanAfford(cost map[string]int) bool {
	for kind, amount := range cost {
		if p[kind] < amount {
			return false
		}
	}
	return true
}

// Spend atomically debits cost from the pool: either every counter
// decreases or none do and false is returned.
func (p ResourcePool) Spend(cost map[string]int) bool {
	if !p.CanAfford(cost) {
		return false
	}
	for kind, amount := range cost {
		p[kind] -= amount
	}
	return true
}

// Grant credits amount of one resource kind.
func (p ResourcePool) Grant(kind string, amount int) {
	if amount > 0 {
		p[kind] += amount
	}
}

// Player is the warfront per-player state.
type Player struct {
	SessionID   string
	DisplayName string
	Ready       bool
	Connected   bool
	ColorSlot   int
	JoinedAt    time.Time

	Role Role
	Team string
	Cell int // territory cell currently occupied; -1 = outside the grid

	Kills       int
	Deaths      int
	DamageDealt int
	LinesCleared int

	ActiveEffects []ActiveEffect
}

// HasEffect reports whether an unexpired effect of the given kind is
// attached to the player.
func (p *Player) HasEffect(kind EffectKind, now time.Time) bool {
	for _, e := range p.ActiveEffects {
		if e.Kind == kind && now.Before(e.ExpiresAt) {
			return true
		}
	}
	return false
}

// Team tracks one side's score and economy.
type Team struct {
	ID        string
	Score     int
	Resources ResourcePool
	// dominationSince is when the team first crossed the domination
	// share; zero while below it.
	dominationSince time.Time
}

// Room is one warfront match. All mutation happens under mu, held by
// the tick driver or a synchronous handler, never both at once.
type Room struct {
	mu sync.Mutex

	Code       string
	Name       string
	Public     bool
	HostID     string
	Status     roomcore.Status
	CreatedAt  time.Time
	MaxPlayers int
	Seed       int64
	FFA        bool

	Players map[string]*Player
	order   []string

	Teams map[string]*Team
	Cells []*TerritoryCell

	Tick      int64
	StartedAt time.Time
	Duration  time.Duration
	WinnerTeam string

	effectQueue  []Effect
	nextEffectID int
}

// Lock acquires the room's mutex; same critical-section discipline as
// the board mode.
func (r *Room) Lock()   { r.mu.Lock() }
func (r *Room) Unlock() { r.mu.Unlock() }

func colorPalette() []string {
	return []string{"red", "blue", "green", "yellow", "purple", "orange", "cyan", "pink"}
}

// DefaultTeams is the two-team split used outside FFA mode.
var DefaultTeams = []string{"alpha", "bravo"}

// teamRoster returns the session ids on one team. Caller holds r's lock.
func (r *Room) teamRoster(teamID string) []string {
	var ids []string
	for sid, p := range r.Players {
		if p.Team == teamID {
			ids = append(ids, sid)
		}
	}
	return ids
}

func (r *Room) roster() []string {
	ids := make([]string, 0, len(r.Players))
	for sid := range r.Players {
		ids = append(ids, sid)
	}
	return ids
}

// territoryCount returns how many cells a team currently owns. Caller
// holds r's lock.
func (r *Room) territoryCount(teamID string) int {
	n := 0
	for _, c := range r.Cells {
		if c.OwnerTeam == teamID {
			n++
		}
	}
	return n
}
