// Package boardgame implements the voxel board game room manager:
// block mining with tool tiers, melee combat, hostile and passive mob
// AI, hunger and respawns, a day/night clock, and the corruption/raid
// pressure system on the two side boards — all driven by a fixed-rate
// authoritative tick per room.
package boardgame

import (
	"sync"
	"time"

	"github.com/ridgelinegames/corehost/internal/roomcore"
	"github.com/ridgelinegames/corehost/internal/worldgrid"
)

// Simulation tunables. Intervals are in ticks unless named otherwise.
const (
	TickRate             = 10 // Hz
	TickInterval         = time.Second / TickRate
	MinPlayers           = 1
	MaxPlayersDefault    = 8
	VisionRadius         = 8
	StateUpdateInterval  = 5
	MoveCooldownTicks    = 3
	AttackCooldownTicks  = 5
	MobMoveInterval      = 10
	MobSpawnInterval     = 50
	HungerTickInterval   = 100
	HungerDamageInterval = 200
	RespawnTicks         = 50
	CorruptionSeedInterval    = 300
	CorruptionGrowthInterval  = 60
	SpreadChance              = 0.15
	MaxCorruptionLevel        = 5
	RaidWaveSize               = 3
	RaidWaveInterval            = 40
	MaxWavesPerAnomaly          = 3
	CorruptionCapPerSide       = 6
	SideBoardWidth             = 16
	RaidMarchInterval          = 5
	RaidAggroRange             = 20
	DayLength   = 1200
	DuskLength  = 200
	NightLength = 600
	DawnLength  = 200
	DayCycleLength = DayLength + DuskLength + NightLength + DawnLength
	DefaultCountdownSeconds = 5
	InitialPassiveMobs = 6
	MaxHunger = 10
	MaxHealth = 20
	GridWidth  = 64
	GridHeight = 64
)

// Position is a board-grid coordinate.
type Position struct {
	X, Y int
}

// MiningJob tracks a player's in-progress block break.
type MiningJob struct {
	X, Y     int
	Progress float64
	Duration float64
}

// Player is the board-game per-player state.
type Player struct {
	SessionID   string
	DisplayName string
	Ready       bool
	Connected   bool
	ColorSlot   int
	JoinedAt    time.Time

	Pos         Position
	Health      int
	Hunger      int
	Armor       int
	Inventory   map[string]int
	Equipped    string
	Dead        bool
	RespawnTick int64
	Mining      *MiningJob
	LastMoveTick   int64
	LastAttackTick int64
	BlocksMined int
	Kills       int
	Deaths      int
}

// Mob is a server-controlled entity.
type Mob struct {
	ID           string
	Type         string
	Pos          Position
	Health       int
	TargetID     string
	LastMoveTick int64
	Hostile      bool
}


// BoardSide names which sub-board a raid mob currently occupies.
type BoardSide string

const (
	SideMain  BoardSide = "main"
	SideLeft  BoardSide = "left"
	SideRight BoardSide = "right"
)

// RaidMob is a Mob additionally tracking its origin side and current
// sub-board.
type RaidMob struct {
	Mob
	OriginSide  BoardSide
	CurrentSide BoardSide
}

// CorruptionNode is one growing corruption seed on a side board.
type CorruptionNode struct {
	Pos   Position
	Level int
	Side  BoardSide
}

// Anomaly is a scripted wave-spawning event triggered by a matured
// corruption node.
type Anomaly struct {
	Side         BoardSide
	WavesSpawned int
	MaxWaves     int
	RaidMobIDs   map[string]bool
}

// DayPhase is the current segment of the day/night cycle.
type DayPhase string

const (
	PhaseDay   DayPhase = "day"
	PhaseDusk  DayPhase = "dusk"
	PhaseNight DayPhase = "night"
	PhaseDawn  DayPhase = "dawn"
)

// Room is one board-game match: roster, world, and simulation timers.
// All mutation happens under mu, held by the tick driver or a
// synchronous handler, never both at once.
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

	Players map[string]*Player
	order   []string // join order, for host rotation and round-robin color slots

	Grid *worldgrid.Grid

	Tick       int64
	TimeOfDay  float64 // wraps [0, DayCycleLength)
	DayPhase   DayPhase

	Mobs     map[string]*Mob
	RaidMobs map[string]*RaidMob
	nextEntityID int

	CorruptionLeft  []*CorruptionNode
	CorruptionRight []*CorruptionNode
	Anomalies       []*Anomaly
	// pendingAnomalies carries sides whose corruption matured this tick
	// into the anomaly step.
	pendingAnomalies []BoardSide

	lastSnapshotTick int64
}

// Lock acquires the room's mutex. Exposed so the scheduler and
// dispatcher-invoked handlers share the same critical section.
func (r *Room) Lock()   { r.mu.Lock() }
func (r *Room) Unlock() { r.mu.Unlock() }

func colorPalette() []string {
	return []string{"red", "blue", "green", "yellow", "purple", "orange", "cyan", "pink"}
}
