package warfront

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridgelinegames/corehost/internal/broadcast"
	"github.com/ridgelinegames/corehost/internal/roomcore"
	"github.com/ridgelinegames/corehost/internal/wire"
)

type fakeSender struct {
	sent []any
}

func (f *fakeSender) Send(sessionID string, msg any) {
	f.sent = append(f.sent, msg)
}

func (f *fakeSender) ofType(typeName string) []any {
	var out []any
	for _, m := range f.sent {
		switch v := m.(type) {
		case EffectApplied:
			if v.Type == typeName {
				out = append(out, v)
			}
		case TerritoryCaptured:
			if v.Type == typeName {
				out = append(out, v)
			}
		case GameOver:
			if v.Type == typeName {
				out = append(out, v)
			}
		}
	}
	return out
}

func newTestManager() (*Manager, *fakeSender) {
	sender := &fakeSender{}
	return NewManager(broadcast.New(sender), nil), sender
}

// newPlayingRoom builds a two-player room already in playing status,
// without the scheduler, so tests drive runTick by hand.
func newPlayingRoom(m *Manager) (*Room, *Player, *Player) {
	res := m.CreateRoom("host", "War Room", "Host", true, false)
	code := res.Code
	m.JoinRoom(code, "guest", "Guest")
	m.SetReady(code, "guest", true)
	m.StartGame(code, "host")

	r, _ := m.getRoom(code)
	r.Lock()
	r.Cells = newTerritoryGrid()
	r.Tick = 0
	r.StartedAt = time.Now()
	r.Status = roomcore.StatusPlaying
	r.Unlock()
	return r, r.Players["host"], r.Players["guest"]
}

func envelope(t *testing.T, typeName, payload string) wire.Envelope {
	t.Helper()
	raw := []byte(`{"type":"` + typeName + `"` + payload + `}`)
	env, werr := wire.Decode(raw)
	require.Nil(t, werr)
	return env
}

func TestSoldiersCaptureNeutralCell(t *testing.T) {
	m, sender := newTestManager()
	r, host, guest := newPlayingRoom(m)

	// Both alpha players stand on the same neutral cell.
	guest.Team = host.Team
	m.Handle(r.Code, "host", envelope(t, "enter_cell", `,"cell":7`))
	m.Handle(r.Code, "guest", envelope(t, "enter_cell", `,"cell":7`))

	// progress per tick = CaptureRate * 2 soldiers * 1.0 (no fort)
	needed := int(CaptureThreshold / (2 * CaptureRate))
	r.Lock()
	for i := 0; i < needed; i++ {
		runTick(r, m.bcast)
	}
	cell := r.Cells[7]
	assert.Equal(t, host.Team, cell.OwnerTeam)
	assert.Equal(t, float64(MaxCellHealth), cell.Health)
	assert.Empty(t, cell.CaptureProgress)
	assert.Equal(t, 1, r.territoryCount(host.Team))
	r.Unlock()

	require.NotEmpty(t, sender.ofType("wf_territory_captured"))
}

func TestFortificationSlowsCapture(t *testing.T) {
	m, _ := newTestManager()
	r, host, guest := newPlayingRoom(m)

	guest.Team = "bravo"
	r.Lock()
	r.Cells[3].OwnerTeam = "bravo"
	r.Cells[3].Health = MaxCellHealth
	r.Cells[3].Fortification = 2
	r.Unlock()
	m.Handle(r.Code, "host", envelope(t, "enter_cell", `,"cell":3`))

	r.Lock()
	runTick(r, m.bcast)
	slowed := r.Cells[3].CaptureProgress[host.Team]
	r.Unlock()

	expected := CaptureRate * 1 * (1 - 2*SlowPerLevel)
	assert.InDelta(t, expected, slowed, 1e-9)
}

func TestCaptureProgressDecaysWhenAbsent(t *testing.T) {
	m, _ := newTestManager()
	r, host, _ := newPlayingRoom(m)

	m.Handle(r.Code, "host", envelope(t, "enter_cell", `,"cell":2`))
	r.Lock()
	runTick(r, m.bcast)
	require.Greater(t, r.Cells[2].CaptureProgress[host.Team], 0.0)
	r.Unlock()

	m.Handle(r.Code, "host", envelope(t, "enter_cell", `,"cell":-1`))
	r.Lock()
	for i := 0; i < 3; i++ {
		runTick(r, m.bcast)
	}
	_, present := r.Cells[2].CaptureProgress[host.Team]
	r.Unlock()
	assert.False(t, present)
}

func TestSpendResourcesIsAtomic(t *testing.T) {
	pool := ResourcePool{"iron": 10, "stone": 40, "energy": 30}

	ok := pool.Spend(map[string]int{"iron": 50})
	assert.False(t, ok)
	assert.Equal(t, 10, pool["iron"])
	assert.Equal(t, 30, pool["energy"])

	ok = pool.Spend(map[string]int{"iron": 10, "stone": 20})
	assert.True(t, ok)
	assert.Equal(t, 0, pool["iron"])
	assert.Equal(t, 20, pool["stone"])
}

func TestCommanderAbilityInsufficientResources(t *testing.T) {
	m, sender := newTestManager()
	r, host, _ := newPlayingRoom(m)
	host.Role = RoleCommander
	r.Teams[host.Team].Resources["energy"] = 30 // iron stays 0

	res := m.Handle(r.Code, "host", envelope(t, "ability", `,"ability":"shield_generator"`))
	assert.Equal(t, ErrInsufficient, res.Error)
	assert.Equal(t, 30, r.Teams[host.Team].Resources["energy"])

	r.Lock()
	runTick(r, m.bcast)
	r.Unlock()
	assert.Empty(t, sender.ofType("wf_effect_applied"))
}

func TestCommanderAbilityDebitsAndQueuesEffect(t *testing.T) {
	m, sender := newTestManager()
	r, host, _ := newPlayingRoom(m)
	host.Role = RoleCommander
	r.Teams[host.Team].Resources["iron"] = 60

	res := m.Handle(r.Code, "host", envelope(t, "ability", `,"ability":"shield_generator"`))
	require.True(t, res.Success)
	assert.Equal(t, 10, r.Teams[host.Team].Resources["iron"])

	r.Lock()
	runTick(r, m.bcast)
	r.Unlock()
	require.NotEmpty(t, sender.ofType("wf_effect_applied"))
	assert.True(t, host.HasEffect(EffectShieldBoost, time.Now()))
}

func TestActiveEffectSweptAfterExpiry(t *testing.T) {
	m, _ := newTestManager()
	r, host, _ := newPlayingRoom(m)

	host.ActiveEffects = append(host.ActiveEffects, ActiveEffect{
		ID: "fx_test", Kind: EffectBuildSpeed, ExpiresAt: time.Now().Add(-time.Millisecond),
	})
	r.Lock()
	runTick(r, m.bcast)
	r.Unlock()
	assert.Empty(t, host.ActiveEffects)
}

func TestTerritoryDamageToZeroClearsOwnershipAndProgress(t *testing.T) {
	m, _ := newTestManager()
	r, _, guest := newPlayingRoom(m)

	r.Lock()
	cell := r.Cells[5]
	cell.OwnerTeam = "bravo"
	cell.Health = 4
	cell.Fortification = 3
	cell.CaptureProgress["alpha"] = 50
	r.enqueueEffect(Effect{
		SourceID: guest.SessionID, Kind: EffectTerritoryDamage,
		Scope: ScopeTerritory, TargetCell: 5, Magnitude: 10,
	})
	runTick(r, m.bcast)
	r.Unlock()

	assert.Equal(t, "", cell.OwnerTeam)
	assert.Equal(t, 0.0, cell.Health)
	assert.Equal(t, 0, cell.Fortification)
	assert.Empty(t, cell.CaptureProgress)
}

func TestEffectQueueAppliesInFIFOOrder(t *testing.T) {
	m, _ := newTestManager()
	r, host, _ := newPlayingRoom(m)

	r.Lock()
	r.Cells[1].OwnerTeam = host.Team
	r.Cells[1].Health = 50
	r.enqueueEffect(Effect{Kind: EffectTerritoryHeal, Scope: ScopeTerritory, TargetCell: 1, Magnitude: 60})
	r.enqueueEffect(Effect{Kind: EffectTerritoryDamage, Scope: ScopeTerritory, TargetCell: 1, Magnitude: 30})
	runTick(r, m.bcast)
	r.Unlock()

	// heal first (clamped to 100), then damage: 70. Reversed order
	// would give 80.
	assert.Equal(t, 70.0, r.Cells[1].Health)
}

func TestEffectForMissingTargetIsDropped(t *testing.T) {
	m, sender := newTestManager()
	r, _, _ := newPlayingRoom(m)

	r.Lock()
	r.enqueueEffect(Effect{Kind: EffectResourceGrant, Scope: ScopeTeam, TargetTeam: "charlie", Magnitude: 10})
	runTick(r, m.bcast)
	r.Unlock()

	assert.Empty(t, sender.ofType("wf_effect_applied"))
}

func TestFFAWinByTerritoryCount(t *testing.T) {
	m, sender := newTestManager()
	r, host, _ := newPlayingRoom(m)
	r.FFA = true

	r.Lock()
	for i := 0; i < FFAWinTerritories; i++ {
		r.Cells[i].OwnerTeam = host.Team
		r.Cells[i].Health = MaxCellHealth
	}
	runTick(r, m.bcast)
	status := r.Status
	winner := r.WinnerTeam
	r.Unlock()

	assert.Equal(t, roomcore.StatusFinished, status)
	assert.Equal(t, host.Team, winner)
	require.NotEmpty(t, sender.ofType("wf_game_over"))
}

func TestDominationRequiresSustainedHold(t *testing.T) {
	m, _ := newTestManager()
	r, host, _ := newPlayingRoom(m)

	r.Lock()
	for i := 0; i < 12; i++ { // >= ceil(0.75*16)
		r.Cells[i].OwnerTeam = host.Team
	}
	runTick(r, m.bcast)
	// one tick is far short of the 30s hold
	assert.Equal(t, roomcore.StatusPlaying, r.Status)
	require.False(t, r.Teams[host.Team].dominationSince.IsZero())

	r.Teams[host.Team].dominationSince = time.Now().Add(-DominationHoldTime - time.Second)
	runTick(r, m.bcast)
	assert.Equal(t, roomcore.StatusFinished, r.Status)
	assert.Equal(t, host.Team, r.WinnerTeam)
	r.Unlock()
}

func TestSelectRoleResetsStats(t *testing.T) {
	m, _ := newTestManager()
	res := m.CreateRoom("host", "War Room", "Host", true, false)
	code := res.Code

	r, _ := m.getRoom(code)
	p := r.Players["host"]
	p.Kills, p.DamageDealt = 3, 120

	out := m.SelectRole(code, "host", RoleEngineer)
	require.True(t, out.Success)
	assert.Equal(t, RoleEngineer, p.Role)
	assert.Zero(t, p.Kills)
	assert.Zero(t, p.DamageDealt)

	assert.Equal(t, ErrInvalidRole, m.SelectRole(code, "host", Role("wizard")).Error)
}

func TestEngineerMineGrantsMappedResources(t *testing.T) {
	m, _ := newTestManager()
	r, host, _ := newPlayingRoom(m)
	host.Role = RoleEngineer

	res := m.Handle(r.Code, "host", envelope(t, "mine", `,"blockType":"iron_ore"`))
	require.True(t, res.Success)
	assert.Equal(t, 2, r.Teams[host.Team].Resources["iron"])

	// unmapped block types grant nothing but still succeed
	res = m.Handle(r.Code, "host", envelope(t, "mine", `,"blockType":"bedrock"`))
	require.True(t, res.Success)
	assert.Equal(t, 2, r.Teams[host.Team].Resources["iron"])
}

func TestSoldierKillCreditsAndTerritoryDamage(t *testing.T) {
	m, _ := newTestManager()
	r, host, guest := newPlayingRoom(m)
	guest.Team = "bravo"
	guest.Cell = 9

	r.Lock()
	r.Cells[9].OwnerTeam = "bravo"
	r.Cells[9].Health = MaxCellHealth
	r.Unlock()

	res := m.Handle(r.Code, "guest", envelope(t, "died", `,"killerId":"host"`))
	require.True(t, res.Success)
	assert.Equal(t, 1, guest.Deaths)
	assert.Equal(t, 1, host.Kills)

	r.Lock()
	runTick(r, m.bcast)
	r.Unlock()
	assert.Equal(t, int(killScoreBonus), r.Teams[host.Team].Score)
	assert.Equal(t, MaxCellHealth-killTerritoryDmg, r.Cells[9].Health)
}

func TestHostLeaveRotatesHostAndEmptyRoomTearsDown(t *testing.T) {
	m, _ := newTestManager()
	res := m.CreateRoom("host", "War Room", "Host", true, false)
	code := res.Code
	m.JoinRoom(code, "guest", "Guest")

	m.RemovePlayer(code, "host", "left")
	r, ok := m.getRoom(code)
	require.True(t, ok)
	assert.Equal(t, "guest", r.HostID)

	m.RemovePlayer(code, "guest", "left")
	_, ok = m.getRoom(code)
	assert.False(t, ok)
	assert.Zero(t, m.RoomCount())
}
