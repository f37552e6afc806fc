package warfront

import (
	"fmt"
	"time"

	"github.com/ridgelinegames/corehost/internal/broadcast"
	"github.com/ridgelinegames/corehost/internal/metrics"
)

// enqueueEffect appends an effect to the room's FIFO queue. Caller
// holds r's lock; the queue drains at the start of the next tick, and
// concurrent effects of the same kind apply in enqueue order.
func (r *Room) enqueueEffect(e Effect) {
	r.nextEffectID++
	e.ID = fmt.Sprintf("fx_%d", r.nextEffectID)
	e.IssuedAt = time.Now()
	r.effectQueue = append(r.effectQueue, e)
}

// drainEffects pops every queued effect at the top of the tick and
// applies it. An effect whose referenced team/cell no longer exists is
// silently dropped; an instant effect's mutation completes within this
// tick.
func drainEffects(r *Room, bcast *broadcast.Engine) {
	queue := r.effectQueue
	r.effectQueue = nil
	for _, e := range queue {
		if applyEffect(r, e) {
			metrics.EffectsApplied.WithLabelValues(string(e.Kind)).Inc()
			bcast.BroadcastToRoom(r.roster(), EffectApplied{
				Type: "wf_effect_applied", EffectID: e.ID, Kind: string(e.Kind),
				Scope: string(e.Scope), SourceID: e.SourceID, Magnitude: e.Magnitude,
				DurationMS: e.Duration.Milliseconds(),
			})
		}
	}
}

func applyEffect(r *Room, e Effect) bool {
	switch e.Kind {
	case EffectTerritoryHeal, EffectTerritoryDamage, EffectFortify:
		return applyCellEffect(r, e)
	case EffectResourceGrant:
		team, ok := r.Teams[e.TargetTeam]
		if !ok {
			return false
		}
		team.Resources.Grant("energy", int(e.Magnitude))
		return true
	case EffectScoreBonus:
		team, ok := r.Teams[e.TargetTeam]
		if !ok {
			return false
		}
		team.Score += int(e.Magnitude)
		return true
	default:
		// every remaining kind is a timed modifier attached to each
		// scope-matched player
		return attachToScope(r, e)
	}
}

func applyCellEffect(r *Room, e Effect) bool {
	if e.TargetCell < 0 || e.TargetCell >= len(r.Cells) {
		return false
	}
	cell := r.Cells[e.TargetCell]
	switch e.Kind {
	case EffectTerritoryHeal:
		if cell.OwnerTeam == "" {
			return false
		}
		cell.Health += e.Magnitude
		if cell.Health > MaxCellHealth {
			cell.Health = MaxCellHealth
		}
	case EffectTerritoryDamage:
		if cell.OwnerTeam == "" {
			return false
		}
		cell.Health -= e.Magnitude
		if cell.Health <= 0 {
			// the cell drops to neutral and is up for grabs again;
			// stale capture progress must not survive the transition
			cell.Health = 0
			cell.OwnerTeam = ""
			cell.Fortification = 0
			cell.CaptureProgress = make(map[string]float64)
		}
	case EffectFortify:
		if cell.OwnerTeam == "" {
			return false
		}
		if cell.Fortification < MaxFortification {
			cell.Fortification++
		}
	}
	return true
}

// attachToScope attaches a timed ActiveEffect to every player matching
// the effect's scope. Returns false when the scope resolves to nobody.
func attachToScope(r *Room, e Effect) bool {
	targets := resolveScope(r, e)
	if len(targets) == 0 {
		return false
	}
	active := ActiveEffect{
		ID:        e.ID,
		Kind:      e.Kind,
		Magnitude: e.Magnitude,
		ExpiresAt: e.IssuedAt.Add(e.Duration),
	}
	for _, p := range targets {
		p.ActiveEffects = append(p.ActiveEffects, active)
	}
	return true
}

func resolveScope(r *Room, e Effect) []*Player {
	var out []*Player
	switch e.Scope {
	case ScopeSelf:
		if p, ok := r.Players[e.SourceID]; ok {
			out = append(out, p)
		}
	case ScopeTeam:
		for _, p := range r.Players {
			if p.Team == e.TargetTeam {
				out = append(out, p)
			}
		}
	case ScopeEnemyTeam:
		for _, p := range r.Players {
			if p.Team != e.TargetTeam && p.Team != "" {
				out = append(out, p)
			}
		}
	case ScopeAll:
		for _, p := range r.Players {
			out = append(out, p)
		}
	}
	return out
}

// sweepActiveEffects drops every expired modifier from every player
// and tells each owner which ones lapsed.
func sweepActiveEffects(r *Room, bcast *broadcast.Engine, now time.Time) {
	for _, p := range r.Players {
		kept := p.ActiveEffects[:0]
		for _, e := range p.ActiveEffects {
			if now.After(e.ExpiresAt) {
				bcast.SendToPlayer(p.SessionID, EffectExpired{
					Type: "wf_effect_expired", EffectID: e.ID, Kind: string(e.Kind),
				})
				continue
			}
			kept = append(kept, e)
		}
		p.ActiveEffects = kept
	}
}
