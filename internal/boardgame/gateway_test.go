package boardgame

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridgelinegames/corehost/internal/broadcast"
	"github.com/ridgelinegames/corehost/internal/lobby"
	"github.com/ridgelinegames/corehost/internal/reconnect"
	"github.com/ridgelinegames/corehost/internal/wire"
)

type fakeIndex struct {
	rooms map[string]string
}

func newFakeIndex() *fakeIndex { return &fakeIndex{rooms: map[string]string{}} }

func (f *fakeIndex) SetRoom(sid, code string) { f.rooms[sid] = code }
func (f *fakeIndex) ClearRoom(sid string)     { delete(f.rooms, sid) }
func (f *fakeIndex) RoomOf(sid string) (string, bool) {
	code, ok := f.rooms[sid]
	return code, ok
}

func newTestGateway() (*Gateway, *Manager, *fakeIndex, *fakeSender, *lobby.Orchestrator) {
	sender := &fakeSender{}
	bcast := broadcast.New(sender)
	mgr := NewManager(bcast, nil)
	index := newFakeIndex()
	orch := lobby.NewOrchestrator(bcast)
	return NewGateway(mgr, index, reconnect.NewBroker(time.Minute), orch), mgr, index, sender, orch
}

func TestGatewayCreateRoomIssuesToken(t *testing.T) {
	g, mgr, index, sender, orch := newTestGateway()
	defer orch.Shutdown()

	require.True(t, g.Handle("host", envelope(t, "create_room", `,"name":"My Room","displayName":"Host","public":true`)))

	var created *RoomCreated
	for _, msg := range sender.sent {
		if rc, ok := msg.(RoomCreated); ok {
			created = &rc
		}
	}
	require.NotNil(t, created)
	assert.Equal(t, "mc_room_created", created.Type)
	assert.NotEmpty(t, created.ReconnectToken)
	assert.True(t, mgr.HasRoom(created.Code))

	code, ok := index.RoomOf("host")
	require.True(t, ok)
	assert.Equal(t, created.Code, code)
}

func TestGatewayJoinUnknownRoomFails(t *testing.T) {
	g, _, _, sender, orch := newTestGateway()
	defer orch.Shutdown()

	require.True(t, g.Handle("p1", envelope(t, "join_room", `,"code":"ZZZZZ","displayName":"P1"`)))
	var errFrame *wire.Error
	for _, msg := range sender.sent {
		if e, ok := msg.(*wire.Error); ok {
			errFrame = e
		}
	}
	require.NotNil(t, errFrame)
	assert.Equal(t, wire.CodeRoomNotFound, errFrame.Code)
}

func TestGatewayListRoomsShowsOnlyPublicWaiting(t *testing.T) {
	g, mgr, index, sender, orch := newTestGateway()
	defer orch.Shutdown()

	pub := mgr.CreateRoom("h1", "Open Game", "H1", true)
	mgr.CreateRoom("h2", "Secret Game", "H2", false)
	index.SetRoom("h1", pub.Code)

	require.True(t, g.Handle("viewer", envelope(t, "list_rooms", "")))
	var list *RoomList
	for _, msg := range sender.sent {
		if l, ok := msg.(RoomList); ok {
			list = &l
		}
	}
	require.NotNil(t, list)
	require.Len(t, list.Rooms, 1)
	assert.Equal(t, pub.Code, list.Rooms[0].Code)
	assert.Equal(t, "H1", list.Rooms[0].HostName)
}

func TestGatewayUnknownTagFallsThrough(t *testing.T) {
	g, _, index, _, orch := newTestGateway()
	defer orch.Shutdown()

	index.SetRoom("p1", "ABCDE")
	assert.False(t, g.Handle("p1", envelope(t, "warp_drive", "")))
}
