package warfront

// Wire payload shapes for the warfront broadcast families.

// CellView is one territory cell's public state.
type CellView struct {
	Index           int                `json:"index"`
	Owner           string             `json:"owner,omitempty"`
	Health          float64            `json:"health"`
	Fortification   int                `json:"fortification"`
	CaptureProgress map[string]float64 `json:"captureProgress,omitempty"`
}

// TerritoryUpdate is the periodic full territory state broadcast.
type TerritoryUpdate struct {
	Type       string         `json:"type"`
	Tick       int64          `json:"tick"`
	Cells      []CellView     `json:"cells"`
	TeamCounts map[string]int `json:"teamCounts"`
}

// buildTerritoryUpdate renders the full territory broadcast. Caller
// holds r's lock.
func buildTerritoryUpdate(r *Room) TerritoryUpdate {
	cells := make([]CellView, len(r.Cells))
	for i, c := range r.Cells {
		var progress map[string]float64
		if len(c.CaptureProgress) > 0 {
			progress = make(map[string]float64, len(c.CaptureProgress))
			for team, v := range c.CaptureProgress {
				progress[team] = v
			}
		}
		cells[i] = CellView{
			Index: c.Index, Owner: c.OwnerTeam, Health: c.Health,
			Fortification: c.Fortification, CaptureProgress: progress,
		}
	}
	counts := make(map[string]int, len(r.Teams))
	for teamID := range r.Teams {
		counts[teamID] = r.territoryCount(teamID)
	}
	return TerritoryUpdate{Type: "wf_territory_update", Tick: r.Tick, Cells: cells, TeamCounts: counts}
}

// ResourcesUpdate is the periodic per-team resource pool broadcast.
type ResourcesUpdate struct {
	Type      string       `json:"type"`
	Team      string       `json:"team"`
	Resources ResourcePool `json:"resources"`
}

// EffectApplied announces a successfully applied cross-mode effect.
type EffectApplied struct {
	Type       string  `json:"type"`
	EffectID   string  `json:"effectId"`
	Kind       string  `json:"kind"`
	Scope      string  `json:"scope"`
	SourceID   string  `json:"sourceId"`
	Magnitude  float64 `json:"magnitude"`
	DurationMS int64   `json:"durationMs"`
}

// EffectExpired tells a player one of their timed modifiers lapsed.
type EffectExpired struct {
	Type     string `json:"type"`
	EffectID string `json:"effectId"`
	Kind     string `json:"kind"`
}

// TerritoryCaptured announces an ownership flip mid-tick so clients
// can animate without waiting for the next territory broadcast.
type TerritoryCaptured struct {
	Type         string `json:"type"`
	Cell         int    `json:"cell"`
	Team         string `json:"team"`
	PreviousTeam string `json:"previousTeam,omitempty"`
}

// TeamScores is the per-team score relay.
type TeamScores struct {
	Type   string         `json:"type"`
	Scores map[string]int `json:"scores"`
}

// GameOver ends the match.
type GameOver struct {
	Type        string         `json:"type"`
	Winner      string         `json:"winner"`
	Scores      map[string]int `json:"scores"`
	Territories map[string]int `json:"territories"`
}

// ScanResult reveals the enemies inside a scanned cell to the
// commander's team (commander "scan" ability).
type ScanResult struct {
	Type    string   `json:"type"`
	Cell    int      `json:"cell"`
	Enemies []string `json:"enemies"`
}
