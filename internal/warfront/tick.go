package warfront

import (
	"math"
	"time"

	"github.com/ridgelinegames/corehost/internal/broadcast"
	"github.com/ridgelinegames/corehost/internal/roomcore"
)

// runTick advances a warfront room by one step: drain effects, advance
// capture, sweep expired modifiers, periodic broadcasts, then
// win-condition evaluation. Caller holds r's lock.
func runTick(r *Room, bcast *broadcast.Engine) {
	r.Tick++
	now := time.Now()

	drainEffects(r, bcast)
	advanceCapture(r, bcast)
	sweepActiveEffects(r, bcast, now)

	if r.Tick%TerritoryBroadcastInterval == 0 {
		bcast.BroadcastToRoom(r.roster(), buildTerritoryUpdate(r))
	}
	if r.Tick%ResourceBroadcastInterval == 0 {
		for teamID, team := range r.Teams {
			bcast.BroadcastToTeam(r.teamRoster(teamID), ResourcesUpdate{
				Type: "wf_resources_update", Team: teamID, Resources: team.Resources,
			})
		}
	}

	evaluateWin(r, bcast, now)
}

// advanceCapture groups soldiers by cell and team, adds capture
// progress scaled down by fortification, decays everyone else's
// progress in the same cell, and flips ownership past the threshold.
func advanceCapture(r *Room, bcast *broadcast.Engine) {
	// soldier head-count per (cell, team)
	counts := make(map[int]map[string]int)
	for _, p := range r.Players {
		if p.Role != RoleSoldier || !p.Connected || p.Cell < 0 || p.Cell >= len(r.Cells) {
			continue
		}
		if counts[p.Cell] == nil {
			counts[p.Cell] = make(map[string]int)
		}
		counts[p.Cell][p.Team]++
	}

	for idx, cell := range r.Cells {
		byTeam := counts[idx]
		for teamID := range cell.CaptureProgress {
			if byTeam[teamID] > 0 {
				continue
			}
			cell.CaptureProgress[teamID] -= ProgressDecay
			if cell.CaptureProgress[teamID] <= 0 {
				delete(cell.CaptureProgress, teamID)
			}
		}
		for teamID, soldiers := range byTeam {
			if teamID == cell.OwnerTeam {
				continue
			}
			slow := math.Max(0.1, 1-float64(cell.Fortification)*SlowPerLevel)
			cell.CaptureProgress[teamID] += CaptureRate * float64(soldiers) * slow
			if cell.CaptureProgress[teamID] >= CaptureThreshold {
				captureCell(r, cell, teamID, bcast)
			}
		}
	}
}

// captureCell hands a cell to the capturing team: full health, reset
// fortification, cleared progress map.
func captureCell(r *Room, cell *TerritoryCell, teamID string, bcast *broadcast.Engine) {
	previous := cell.OwnerTeam
	cell.OwnerTeam = teamID
	cell.Health = MaxCellHealth
	cell.Fortification = 0
	cell.CaptureProgress = make(map[string]float64)
	bcast.BroadcastToRoom(r.roster(), TerritoryCaptured{
		Type: "wf_territory_captured", Cell: cell.Index, Team: teamID, PreviousTeam: previous,
	})
}

// evaluateWin closes out the tick: elapsed duration always ends the
// game; in team mode a 75% hold sustained for 30 wall-seconds wins
// early; in FFA the first team to six territories wins.
func evaluateWin(r *Room, bcast *broadcast.Engine, now time.Time) {
	elapsed := now.Sub(r.StartedAt)
	if elapsed >= r.Duration {
		endGame(r, bcast, leadingTeam(r))
		return
	}

	if r.FFA {
		for teamID := range r.Teams {
			if r.territoryCount(teamID) >= FFAWinTerritories {
				endGame(r, bcast, teamID)
				return
			}
		}
		return
	}

	needed := int(math.Ceil(DominationShare * float64(len(r.Cells))))
	for teamID, team := range r.Teams {
		if r.territoryCount(teamID) >= needed {
			if team.dominationSince.IsZero() {
				team.dominationSince = now
			} else if now.Sub(team.dominationSince) >= DominationHoldTime {
				endGame(r, bcast, teamID)
				return
			}
		} else {
			team.dominationSince = time.Time{}
		}
	}
}

// leadingTeam breaks a timeout by territory count, then score.
func leadingTeam(r *Room) string {
	best := ""
	bestCells, bestScore := -1, -1
	for teamID, team := range r.Teams {
		cells := r.territoryCount(teamID)
		if cells > bestCells || (cells == bestCells && team.Score > bestScore) {
			best, bestCells, bestScore = teamID, cells, team.Score
		}
	}
	return best
}

func endGame(r *Room, bcast *broadcast.Engine, winner string) {
	r.Status = roomcore.StatusFinished
	r.WinnerTeam = winner
	scores := make(map[string]int, len(r.Teams))
	territories := make(map[string]int, len(r.Teams))
	for teamID, team := range r.Teams {
		scores[teamID] = team.Score
		territories[teamID] = r.territoryCount(teamID)
	}
	bcast.BroadcastToRoom(r.roster(), GameOver{
		Type: "wf_game_over", Winner: winner, Scores: scores, Territories: territories,
	})
}
