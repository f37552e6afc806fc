package boardgame

// Wire payload shapes for the mc_-prefixed simulation event family.
// Mid-tick events let clients animate between snapshots; the snapshot
// stays the source of truth on conflict.

// DayPhaseEvent announces a day/dusk/night/dawn boundary.
type DayPhaseEvent struct {
	Type      string   `json:"type"`
	Phase     DayPhase `json:"phase"`
	TimeOfDay float64  `json:"timeOfDay"`
}

// TileMined announces a finished block break.
type TileMined struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Exposed   string `json:"exposed"`
}

// PlayerMoved relays an accepted move.
type PlayerMoved struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
}

// MiningStarted announces a mining job beginning.
type MiningStarted struct {
	Type      string  `json:"type"`
	SessionID string  `json:"sessionId"`
	X         int     `json:"x"`
	Y         int     `json:"y"`
	Duration  float64 `json:"duration"`
}

// MiningCancelled announces a mining job abandoned mid-break.
type MiningCancelled struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

// DamageEvent relays damage applied to a player or mob.
type DamageEvent struct {
	Type     string `json:"type"`
	TargetID string `json:"targetId"`
	SourceID string `json:"sourceId"`
	Amount   int    `json:"amount"`
	Health   int    `json:"health"`
}

// MobSpawned announces a new mob entering the board.
type MobSpawned struct {
	Type    string `json:"type"`
	MobID   string `json:"mobId"`
	MobType string `json:"mobType"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
}

// MobDied announces a mob kill.
type MobDied struct {
	Type     string `json:"type"`
	MobID    string `json:"mobId"`
	KillerID string `json:"killerId"`
}

// PlayerDied announces a player death; KillerID may be another
// session, a mob id, or the synthetic "starvation".
type PlayerDied struct {
	Type        string `json:"type"`
	SessionID   string `json:"sessionId"`
	KillerID    string `json:"killerId"`
	RespawnTick int64  `json:"respawnTick"`
}

// PlayerRespawned announces a respawn at a fresh spawn slot.
type PlayerRespawned struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
}

// BlockPlaced announces a block placement.
type BlockPlaced struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	BlockID   string `json:"blockId"`
}

// AnomalyEvent announces an anomaly starting or ending on a side board.
type AnomalyEvent struct {
	Type string    `json:"type"`
	Side BoardSide `json:"side"`
}

// GameOver ends the match with every player's final state.
type GameOver struct {
	Type    string                `json:"type"`
	Players map[string]PlayerView `json:"players"`
}
