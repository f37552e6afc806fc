package boardgame

import (
	"fmt"
	"sort"

	"github.com/ridgelinegames/corehost/internal/broadcast"
	"github.com/ridgelinegames/corehost/internal/prng"
	"github.com/ridgelinegames/corehost/internal/registry"
	"github.com/ridgelinegames/corehost/internal/worldgrid"
)

// runTick advances a room by one simulation step, in a fixed order:
// clock, mining, mob AI, spawning, hunger, respawns, corruption,
// anomalies, raid movement, then the periodic snapshot. Caller must
// hold r's lock; the scheduler's TickFunc wraps this with Lock/Unlock
// so no handler can observe a half-applied tick.
func runTick(r *Room, bcast *broadcast.Engine) {
	r.Tick++

	advanceClock(r, bcast)
	progressMining(r, bcast)
	moveMobs(r, bcast)
	maybeSpawnHostiles(r, bcast)
	applyHunger(r, bcast)
	processRespawns(r, bcast)
	growCorruption(r)
	advanceAnomalies(r, bcast)
	moveRaidMobs(r, bcast)

	if r.Tick%StateUpdateInterval == 0 {
		for sid, p := range r.Players {
			if p.Connected {
				bcast.SendToPlayer(sid, buildSnapshot(r, sid))
			}
		}
	}
}

// posHash folds a grid coordinate into the PRNG salt so per-cell
// decisions stay reproducible without shared state.
func posHash(x, y int) uint64 {
	return uint64(uint32(x))<<32 | uint64(uint32(y))
}

// tickStream derives this tick's seeded stream for a given salt.
func tickStream(r *Room, salt uint64) prng.Stream {
	return prng.RoomSeed(r.Seed, r.Tick, salt)
}

// advanceClock wraps the tick-driven clock, derives the day phase,
// broadcasts phase boundaries, and despawns all hostiles at dawn.
func advanceClock(r *Room, bcast *broadcast.Engine) {
	r.TimeOfDay = float64(r.Tick % DayCycleLength)
	previous := r.DayPhase
	switch {
	case r.TimeOfDay < DayLength:
		r.DayPhase = PhaseDay
	case r.TimeOfDay < DayLength+DuskLength:
		r.DayPhase = PhaseDusk
	case r.TimeOfDay < DayLength+DuskLength+NightLength:
		r.DayPhase = PhaseNight
	default:
		r.DayPhase = PhaseDawn
	}
	if r.DayPhase == previous {
		return
	}
	bcast.BroadcastToRoom(r.roster(), DayPhaseEvent{
		Type: "mc_day_phase", Phase: r.DayPhase, TimeOfDay: normalizedTimeOfDay(r.TimeOfDay),
	})
	if r.DayPhase == PhaseDawn {
		for id, mob := range r.Mobs {
			if mob.Hostile {
				delete(r.Mobs, id)
			}
		}
	}
}

// progressMining accrues mining progress and resolves a break once
// Duration elapses, rolling the drop table with a position-seeded
// stream and leaving the biome-appropriate exposed block behind.
func progressMining(r *Room, bcast *broadcast.Engine) {
	for _, sid := range r.order {
		p, ok := r.Players[sid]
		if ok && p.Mining != nil {
			p.Mining.Progress += float64(1) / float64(TickRate)
			if p.Mining.Progress >= p.Mining.Duration {
				finishMining(r, p, bcast)
			}
		}
	}
}

// finishMining resolves a completed mining job. Caller holds r's lock.
func finishMining(r *Room, p *Player, bcast *broadcast.Engine) {
	x, y := p.Mining.X, p.Mining.Y
	p.Mining = nil
	tile := r.Grid.Get(x, y)
	blk := registry.BlockByID(tile.BlockID)

	stream := tickStream(r, posHash(x, y))
	dropLoot(p, blk.Drops, &stream)
	p.BlocksMined++

	exposed := "air"
	if blk.ExposedForm != nil {
		if e, ok := blk.ExposedForm[tile.Biome]; ok {
			exposed = e
		}
	}
	tile.BlockID = exposed
	r.Grid.Set(x, y, tile)
	bcast.BroadcastToRoom(r.roster(), TileMined{
		Type: "mc_tile_mined", SessionID: p.SessionID, X: x, Y: y, Exposed: exposed,
	})
}

// dropLoot rolls a drop table into the player's inventory using the
// provided deterministic stream.
func dropLoot(p *Player, drops []registry.Drop, stream *prng.Stream) {
	for _, d := range drops {
		if !stream.Chance(d.Chance) {
			continue
		}
		count := d.Min
		if d.Max > d.Min {
			count = stream.NextInt(d.Min, d.Max)
		}
		if count > 0 {
			p.Inventory[d.Item] += count
		}
	}
}

// sortedMobIDs walks a mob map in id order so the PRNG consumption
// order is stable across runs; Go map iteration order must not leak
// into the simulation or replays diverge.
func sortedMobIDs[M any](m map[string]M) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// moveMobs runs mob AI: every MobMoveInterval ticks, hostile mobs aggro
// the nearest live connected player (idle beyond range, attack when
// adjacent, step toward otherwise) and passive mobs wander with 30%
// probability.
func moveMobs(r *Room, bcast *broadcast.Engine) {
	if r.Tick%MobMoveInterval != 0 {
		return
	}
	for _, id := range sortedMobIDs(r.Mobs) {
		mob := r.Mobs[id]
		stats, _ := registry.MobByID(mob.Type)
		if stats.Hostile {
			hostileMobAct(r, mob, stats, stats.AggroRng, bcast)
			continue
		}
		stream := tickStream(r, posHash(mob.Pos.X, mob.Pos.Y)^hashID(id))
		if stream.Chance(0.3) {
			wander(&mob.Pos, &stream, r.Grid)
		}
	}
}

// hashID folds an entity id into a stream salt.
func hashID(id string) uint64 {
	var h uint64 = 1469598103934665603
	for i := 0; i < len(id); i++ {
		h = (h ^ uint64(id[i])) * 1099511628211
	}
	return h
}

// hostileMobAct runs one hostile-AI decision: nearest live connected
// player by L1; idle beyond aggroRange; attack when adjacent (damage
// minus armor/2, floor 1); else step one square toward the target
// preferring the axis with greater delta and skipping non-walkable
// tiles.
func hostileMobAct(r *Room, mob *Mob, stats registry.MobStats, aggroRange int, bcast *broadcast.Engine) {
	target := nearestPlayerWithin(r, mob.Pos, aggroRange)
	if target == nil {
		mob.TargetID = ""
		return
	}
	mob.TargetID = target.SessionID
	dist := worldgrid.L1(mob.Pos.X, mob.Pos.Y, target.Pos.X, target.Pos.Y)
	if dist <= 1 {
		dmg := stats.Damage - target.Armor/2
		if dmg < 1 {
			dmg = 1
		}
		target.Health -= dmg
		bcast.BroadcastToRoom(r.roster(), DamageEvent{
			Type: "mc_damage", TargetID: target.SessionID, SourceID: mob.ID,
			Amount: dmg, Health: target.Health,
		})
		if target.Health <= 0 {
			playerDeath(r, target, mob.ID, bcast)
		}
		return
	}
	stepToward(r, &mob.Pos, target.Pos)
}

// playerDeath marks a player dead, schedules the respawn, and emits
// mc_player_died exactly once. The killer id is preserved verbatim,
// including the synthetic "starvation", rather than translated into a
// structured cause; see DESIGN.md.
func playerDeath(r *Room, p *Player, killerID string, bcast *broadcast.Engine) {
	p.Dead = true
	p.Deaths++
	p.Health = 0
	p.Mining = nil
	p.RespawnTick = r.Tick + RespawnTicks
	bcast.BroadcastToRoom(r.roster(), PlayerDied{
		Type: "mc_player_died", SessionID: p.SessionID, KillerID: killerID, RespawnTick: p.RespawnTick,
	})
}

func nearestPlayerWithin(r *Room, from Position, radius int) *Player {
	var best *Player
	bestDist := radius + 1
	for _, sid := range r.order {
		p, ok := r.Players[sid]
		if !ok || p.Dead || !p.Connected {
			continue
		}
		d := worldgrid.L1(from.X, from.Y, p.Pos.X, p.Pos.Y)
		if d <= radius && d < bestDist {
			best, bestDist = p, d
		}
	}
	return best
}

// stepToward advances one square toward target, preferring the axis
// with greater delta and falling back to the other axis when the
// preferred tile is non-walkable.
func stepToward(r *Room, pos *Position, target Position) {
	dx, dy := target.X-pos.X, target.Y-pos.Y
	xStep := Position{X: pos.X + sign(dx), Y: pos.Y}
	yStep := Position{X: pos.X, Y: pos.Y + sign(dy)}

	first, second := xStep, yStep
	if abs(dy) > abs(dx) {
		first, second = yStep, xStep
	}
	for _, next := range []Position{first, second} {
		if next == *pos {
			continue
		}
		if r.Grid.InBounds(next.X, next.Y) && registry.BlockByID(r.Grid.Get(next.X, next.Y).BlockID).Walkable {
			*pos = next
			return
		}
	}
}

func sign(v int) int {
	if v > 0 {
		return 1
	}
	if v < 0 {
		return -1
	}
	return 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func wander(pos *Position, stream *prng.Stream, grid *worldgrid.Grid) {
	dx := stream.NextInt(-1, 1)
	dy := stream.NextInt(-1, 1)
	nx, ny := pos.X+dx, pos.Y+dy
	if grid != nil && grid.InBounds(nx, ny) && registry.BlockByID(grid.Get(nx, ny).BlockID).Walkable {
		pos.X, pos.Y = nx, ny
	}
}

// maybeSpawnHostiles runs only in the night phase and every
// MobSpawnInterval ticks, pick a random live player and drop a random
// hostile at a random angle and distance in [6,10] if the destination
// is walkable and in bounds.
func maybeSpawnHostiles(r *Room, bcast *broadcast.Engine) {
	if r.DayPhase != PhaseNight || r.Tick%MobSpawnInterval != 0 || r.Grid == nil {
		return
	}
	stream := tickStream(r, 0x5bd1e995)
	var live []*Player
	for _, sid := range r.order {
		if p, ok := r.Players[sid]; ok && !p.Dead && p.Connected {
			live = append(live, p)
		}
	}
	if len(live) == 0 {
		return
	}
	anchor := live[stream.NextInt(0, len(live)-1)]

	dist := stream.NextInt(6, 10)
	// eight compass directions stand in for a continuous angle on the
	// L1 grid
	dirs := [8][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	d := dirs[stream.NextInt(0, 7)]
	pos := Position{X: anchor.Pos.X + d[0]*dist, Y: anchor.Pos.Y + d[1]*dist}
	if !r.Grid.InBounds(pos.X, pos.Y) || !registry.BlockByID(r.Grid.Get(pos.X, pos.Y).BlockID).Walkable {
		return
	}

	ids := registry.HostileMobIDs()
	if len(ids) == 0 {
		return
	}
	mobType := ids[stream.NextInt(0, len(ids)-1)]
	stats, _ := registry.MobByID(mobType)
	r.nextEntityID++
	id := fmt.Sprintf("mob_%d", r.nextEntityID)
	r.Mobs[id] = &Mob{ID: id, Type: mobType, Pos: pos, Health: stats.Health, Hostile: true}
	bcast.BroadcastToRoom(r.roster(), MobSpawned{
		Type: "mc_mob_spawned", MobID: id, MobType: mobType, X: pos.X, Y: pos.Y,
	})
}

// applyHunger drains hunger periodically and applies starvation
// damage once it bottoms out.
func applyHunger(r *Room, bcast *broadcast.Engine) {
	if r.Tick%HungerTickInterval == 0 {
		for _, p := range r.Players {
			if p.Dead || !p.Connected || p.Hunger <= 0 {
				continue
			}
			p.Hunger--
		}
	}
	if r.Tick%HungerDamageInterval == 0 {
		for _, sid := range r.order {
			p, ok := r.Players[sid]
			if !ok || p.Dead || p.Hunger > 0 {
				continue
			}
			p.Health--
			bcast.BroadcastToRoom(r.roster(), DamageEvent{
				Type: "mc_damage", TargetID: p.SessionID, SourceID: "starvation",
				Amount: 1, Health: p.Health,
			})
			if p.Health <= 0 {
				playerDeath(r, p, "starvation", bcast)
			}
		}
	}
}

// processRespawns restores players whose respawn tick has
// arrived at a deterministic spawn slot with full HP and hunger
// max(10, current).
func processRespawns(r *Room, bcast *broadcast.Engine) {
	for slot, sid := range r.order {
		p, ok := r.Players[sid]
		if !ok || !p.Dead || r.Tick < p.RespawnTick {
			continue
		}
		p.Dead = false
		p.Health = MaxHealth
		if p.Hunger < 10 {
			p.Hunger = 10
		}
		p.RespawnTick = 0
		p.Pos = spawnPosition(slot)
		bcast.BroadcastToRoom(r.roster(), PlayerRespawned{
			Type: "mc_player_respawned", SessionID: p.SessionID, X: p.Pos.X, Y: p.Pos.Y,
		})
	}
}

// growCorruption runs the corruption clock: every CorruptionSeedInterval each side
// board may add a node up to its cap; every CorruptionGrowthInterval
// each node's level increments and may seed an adjacent cell; a node
// reaching MaxCorruptionLevel is consumed into an anomaly on its side.
func growCorruption(r *Room) {
	if r.Tick%CorruptionSeedInterval == 0 {
		seedCorruption(r, &r.CorruptionLeft, SideLeft)
		seedCorruption(r, &r.CorruptionRight, SideRight)
	}
	if r.Tick%CorruptionGrowthInterval == 0 {
		growNodes(r, &r.CorruptionLeft, SideLeft)
		growNodes(r, &r.CorruptionRight, SideRight)
	}
}

func seedCorruption(r *Room, nodes *[]*CorruptionNode, side BoardSide) {
	if len(*nodes) >= CorruptionCapPerSide {
		return
	}
	stream := tickStream(r, hashID(string(side)))
	pos := Position{X: stream.NextInt(0, SideBoardWidth-1), Y: stream.NextInt(0, GridHeight-1)}
	for _, n := range *nodes {
		if n.Pos == pos {
			return
		}
	}
	*nodes = append(*nodes, &CorruptionNode{Pos: pos, Level: 1, Side: side})
}

func growNodes(r *Room, nodes *[]*CorruptionNode, side BoardSide) {
	var matured []*CorruptionNode
	for _, n := range *nodes {
		n.Level++
		stream := tickStream(r, posHash(n.Pos.X, n.Pos.Y)^hashID(string(side)))
		if stream.Chance(SpreadChance) && len(*nodes) < CorruptionCapPerSide {
			adj := Position{
				X: clampInt(n.Pos.X+stream.NextInt(-1, 1), 0, SideBoardWidth-1),
				Y: clampInt(n.Pos.Y+stream.NextInt(-1, 1), 0, GridHeight-1),
			}
			occupied := false
			for _, other := range *nodes {
				if other.Pos == adj {
					occupied = true
					break
				}
			}
			if !occupied {
				*nodes = append(*nodes, &CorruptionNode{Pos: adj, Level: 1, Side: side})
			}
		}
		if n.Level >= MaxCorruptionLevel {
			matured = append(matured, n)
		}
	}
	if len(matured) == 0 {
		return
	}
	kept := (*nodes)[:0]
	for _, n := range *nodes {
		isMatured := false
		for _, m := range matured {
			if n == m {
				isMatured = true
				break
			}
		}
		if !isMatured {
			kept = append(kept, n)
		}
	}
	*nodes = kept
	r.pendingAnomalies = append(r.pendingAnomalies, side)
}

// advanceAnomalies starts anomalies for matured corruption, spawns
// raid waves on cadence, and ends an anomaly once all its waves are
// spawned and all its raid mobs are dead.
func advanceAnomalies(r *Room, bcast *broadcast.Engine) {
	for _, side := range r.pendingAnomalies {
		if anomalyActiveFor(r, side) {
			continue
		}
		r.Anomalies = append(r.Anomalies, &Anomaly{Side: side, MaxWaves: MaxWavesPerAnomaly, RaidMobIDs: map[string]bool{}})
		bcast.BroadcastToRoom(r.roster(), AnomalyEvent{Type: "mc_anomaly_start", Side: side})
	}
	r.pendingAnomalies = nil

	if r.Tick%RaidWaveInterval == 0 {
		for _, a := range r.Anomalies {
			if a.WavesSpawned < a.MaxWaves {
				spawnRaidWave(r, a, bcast)
				a.WavesSpawned++
			}
		}
	}

	kept := r.Anomalies[:0]
	for _, a := range r.Anomalies {
		if a.WavesSpawned >= a.MaxWaves && !anyRaidMobAlive(r, a) {
			bcast.BroadcastToRoom(r.roster(), AnomalyEvent{Type: "mc_anomaly_end", Side: a.Side})
			continue
		}
		kept = append(kept, a)
	}
	r.Anomalies = kept
}

func anomalyActiveFor(r *Room, side BoardSide) bool {
	for _, a := range r.Anomalies {
		if a.Side == side {
			return true
		}
	}
	return false
}

func anyRaidMobAlive(r *Room, a *Anomaly) bool {
	for id := range a.RaidMobIDs {
		if _, alive := r.RaidMobs[id]; alive {
			return true
		}
	}
	return false
}

// spawnRaidWave drops RaidWaveSize raid mobs at the outer edge of the
// anomaly's side board.
func spawnRaidWave(r *Room, a *Anomaly, bcast *broadcast.Engine) {
	ids := registry.HostileMobIDs()
	if len(ids) == 0 {
		return
	}
	stream := tickStream(r, hashID(string(a.Side))^0x9e3779b9)
	for i := 0; i < RaidWaveSize; i++ {
		mobType := ids[stream.NextInt(0, len(ids)-1)]
		stats, _ := registry.MobByID(mobType)
		r.nextEntityID++
		id := fmt.Sprintf("raid_%d", r.nextEntityID)
		pos := Position{X: 0, Y: stream.NextInt(0, GridHeight-1)}
		r.RaidMobs[id] = &RaidMob{
			Mob:         Mob{ID: id, Type: mobType, Pos: pos, Health: stats.Health, Hostile: true},
			OriginSide:  a.Side,
			CurrentSide: a.Side,
		}
		a.RaidMobIDs[id] = true
		bcast.BroadcastToRoom(r.roster(), MobSpawned{
			Type: "mc_mob_spawned", MobID: id, MobType: mobType, X: pos.X, Y: pos.Y,
		})
	}
}

// moveRaidMobs runs every RaidMarchInterval ticks: a side-board
// raid mob marches toward the connection edge and crosses onto the
// main board at a walkable entry tile near its row (searching outward
// up to 3 rows) or despawns; on the main board it behaves as a hostile
// mob with extended aggro range.
func moveRaidMobs(r *Room, bcast *broadcast.Engine) {
	if r.Tick%RaidMarchInterval != 0 {
		return
	}
	for _, id := range sortedMobIDs(r.RaidMobs) {
		rm := r.RaidMobs[id]
		if rm.CurrentSide != SideMain {
			rm.Pos.X++
			if rm.Pos.X >= SideBoardWidth {
				entry, ok := mainBoardEntry(r, rm)
				if !ok {
					delete(r.RaidMobs, id)
					continue
				}
				rm.CurrentSide = SideMain
				rm.Pos = entry
			}
			continue
		}
		stats, _ := registry.MobByID(rm.Type)
		hostileMobAct(r, &rm.Mob, stats, RaidAggroRange, bcast)
	}
}

// mainBoardEntry finds a walkable main-board tile at the connection
// edge near the raid mob's row, scanning outward by up to 3 rows.
func mainBoardEntry(r *Room, rm *RaidMob) (Position, bool) {
	edgeX := 0
	if rm.OriginSide == SideRight {
		edgeX = GridWidth - 1
	}
	for _, dy := range []int{0, 1, -1, 2, -2, 3, -3} {
		y := rm.Pos.Y + dy
		if !r.Grid.InBounds(edgeX, y) {
			continue
		}
		if registry.BlockByID(r.Grid.Get(edgeX, y).BlockID).Walkable {
			return Position{X: edgeX, Y: y}, true
		}
	}
	return Position{}, false
}
