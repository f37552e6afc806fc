package boardgame

import (
	"github.com/ridgelinegames/corehost/internal/registry"
	"github.com/ridgelinegames/corehost/internal/visibility"
)

// PlayerView is one other player's visible state, as seen by the
// recipient; only players within the recipient's vision radius appear.
type PlayerView struct {
	SessionID   string `json:"sessionId"`
	DisplayName string `json:"displayName"`
	ColorSlot   int    `json:"colorSlot"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	Health      int    `json:"health"`
	Dead        bool   `json:"dead"`
	Equipped    string `json:"equipped"`
}

// MobView is one visible mob's state.
type MobView struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Health int    `json:"health"`
}

// TileView is one visible tile, block id resolved from the registry so
// the client never has to. X/Y are absolute grid coordinates.
type TileView struct {
	X       int    `json:"x"`
	Y       int    `json:"y"`
	BlockID string `json:"blockId"`
}

// CorruptionView is one corruption node on a side board. The full
// side-board arrays ride in every snapshot since they stay small.
type CorruptionView struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Level int `json:"level"`
}

// AnomalyView is an active anomaly alert.
type AnomalyView struct {
	Side         BoardSide `json:"side"`
	WavesSpawned int       `json:"wavesSpawned"`
	MaxWaves     int       `json:"maxWaves"`
}

// StateSnapshot is the per-player payload sent when play begins, on
// reconnect, and every StateUpdateInterval ticks. It is the source of truth whenever
// it disagrees with the mid-tick event stream.
type StateSnapshot struct {
	Type      string       `json:"type"`
	Tick      int64        `json:"tick"`
	TimeOfDay float64      `json:"timeOfDay"`
	DayPhase  DayPhase     `json:"dayPhase"`
	Self      PlayerView   `json:"self"`
	Inventory map[string]int `json:"inventory"`
	Hunger    int          `json:"hunger"`
	Players   []PlayerView `json:"players"`
	Mobs      []MobView    `json:"mobs"`
	RaidMobs  []MobView    `json:"raidMobs"`
	Tiles     []TileView   `json:"tiles"`
	CorruptionLeft  []CorruptionView `json:"corruptionLeft"`
	CorruptionRight []CorruptionView `json:"corruptionRight"`
	Anomalies       []AnomalyView    `json:"anomalies"`
}

// playerView projects a Player into wire shape, omitting fields only the
// owning client needs (inventory/hunger ride in Self/top-level instead).
func playerView(p *Player) PlayerView {
	return PlayerView{
		SessionID:   p.SessionID,
		DisplayName: p.DisplayName,
		ColorSlot:   p.ColorSlot,
		X:           p.Pos.X,
		Y:           p.Pos.Y,
		Health:      p.Health,
		Dead:        p.Dead,
		Equipped:    p.Equipped,
	}
}

func mobView(m *Mob) MobView {
	return MobView{ID: m.ID, Type: m.Type, X: m.Pos.X, Y: m.Pos.Y, Health: m.Health}
}

// buildSnapshot renders one player's visibility-filtered view of the
// room. Caller must hold r's lock.
func buildSnapshot(r *Room, sessionID string) StateSnapshot {
	self, ok := r.Players[sessionID]
	if !ok {
		return StateSnapshot{Type: "mc_state_update", Tick: r.Tick}
	}

	var otherPlayers []mobLikePlayer
	for sid, p := range r.Players {
		if sid == sessionID {
			continue
		}
		otherPlayers = append(otherPlayers, mobLikePlayer{p})
	}
	visiblePlayers := visibility.Filter(self.Pos.X, self.Pos.Y, VisionRadius, otherPlayers)
	playerViews := make([]PlayerView, 0, len(visiblePlayers))
	for _, v := range visiblePlayers {
		playerViews = append(playerViews, playerView(v.p))
	}

	var mobs []mobView_
	for _, m := range r.Mobs {
		mobs = append(mobs, mobView_{m})
	}
	visibleMobs := visibility.Filter(self.Pos.X, self.Pos.Y, VisionRadius, mobs)
	mobViews := make([]MobView, 0, len(visibleMobs))
	for _, v := range visibleMobs {
		mobViews = append(mobViews, mobView(v.m))
	}

	// raid mobs only appear once they cross onto the main board
	var raidMobs []mobView_
	for _, rm := range r.RaidMobs {
		if rm.CurrentSide == SideMain {
			raidMobs = append(raidMobs, mobView_{&rm.Mob})
		}
	}
	visibleRaid := visibility.Filter(self.Pos.X, self.Pos.Y, VisionRadius, raidMobs)
	raidViews := make([]MobView, 0, len(visibleRaid))
	for _, v := range visibleRaid {
		raidViews = append(raidViews, mobView(v.m))
	}

	var tiles []TileView
	if r.Grid != nil {
		for _, tv := range visibility.VisibleTiles(r.Grid, self.Pos.X, self.Pos.Y, VisionRadius) {
			blockID := tv.Tile.BlockID
			if blk := registry.BlockByID(blockID); blk.ExposedForm != nil {
				if exposed, ok := blk.ExposedForm[tv.Tile.Biome]; ok {
					blockID = exposed
				}
			}
			tiles = append(tiles, TileView{X: tv.X, Y: tv.Y, BlockID: blockID})
		}
	}

	return StateSnapshot{
		Type:      "mc_state_update",
		Tick:      r.Tick,
		TimeOfDay: normalizedTimeOfDay(r.TimeOfDay),
		DayPhase:  r.DayPhase,
		Self:      playerView(self),
		Inventory: self.Inventory,
		Hunger:    self.Hunger,
		Players:   playerViews,
		Mobs:      mobViews,
		RaidMobs:  raidViews,
		Tiles:     tiles,
		CorruptionLeft:  corruptionViews(r.CorruptionLeft),
		CorruptionRight: corruptionViews(r.CorruptionRight),
		Anomalies:       anomalyViews(r.Anomalies),
	}
}

func corruptionViews(nodes []*CorruptionNode) []CorruptionView {
	out := make([]CorruptionView, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, CorruptionView{X: n.Pos.X, Y: n.Pos.Y, Level: n.Level})
	}
	return out
}

func anomalyViews(anomalies []*Anomaly) []AnomalyView {
	out := make([]AnomalyView, 0, len(anomalies))
	for _, a := range anomalies {
		out = append(out, AnomalyView{Side: a.Side, WavesSpawned: a.WavesSpawned, MaxWaves: a.MaxWaves})
	}
	return out
}

// normalizedTimeOfDay maps the raw tick-based clock into [0, 1), the
// wire format decided in the open-question ledger.
func normalizedTimeOfDay(t float64) float64 {
	return t / DayCycleLength
}

// mobLikePlayer and mobView_ adapt Player/Mob to visibility.Positioned
// without colliding with their own Pos fields.
type mobLikePlayer struct{ p *Player }

func (v mobLikePlayer) Pos() (int, int) { return v.p.Pos.X, v.p.Pos.Y }

type mobView_ struct{ m *Mob }

func (v mobView_) Pos() (int, int) { return v.m.Pos.X, v.m.Pos.Y }

// buildAllSnapshots renders every current player's snapshot. Caller must
// hold r's lock.
func (m *Manager) buildAllSnapshots(r *Room) map[string]StateSnapshot {
	out := make(map[string]StateSnapshot, len(r.Players))
	for sid := range r.Players {
		out[sid] = buildSnapshot(r, sid)
	}
	return out
}
