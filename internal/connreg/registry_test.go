package connreg

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeHandle struct {
	mu     sync.Mutex
	writes []any
	closed bool
}

func (f *fakeHandle) WriteJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, v)
	return nil
}

func (f *fakeHandle) WriteControlPong() error { return nil }

func (f *fakeHandle) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeHandle) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeHandle) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func TestSessionIDFormat(t *testing.T) {
	id := NewSessionID()
	assert.True(t, strings.HasPrefix(id, "player_"))
	parts := strings.SplitN(id, "_", 3)
	require.Len(t, parts, 3)
	assert.Len(t, parts[2], 8)
}

func TestRegisterAndRoomIndex(t *testing.T) {
	r := NewRegistry(time.Minute, 2*time.Minute)
	s := r.Register(&fakeHandle{})
	require.NotEmpty(t, s.ID)
	assert.Equal(t, 1, r.ActiveConnections())

	r.SetRoom(s.ID, "ABCDE")
	code, ok := r.RoomOf(s.ID)
	require.True(t, ok)
	assert.Equal(t, "ABCDE", code)

	// Remove keeps the room index entry: membership survives the
	// reconnect grace window and is cleared explicitly
	r.Remove(s.ID)
	assert.Zero(t, r.ActiveConnections())
	_, ok = r.RoomOf(s.ID)
	assert.True(t, ok)

	r.ClearRoom(s.ID)
	_, ok = r.RoomOf(s.ID)
	assert.False(t, ok)
}

func TestHeartbeatTwoStrikeTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewRegistry(20*time.Millisecond, 40*time.Millisecond)
	handle := &fakeHandle{}
	s := r.Register(handle)

	var mu sync.Mutex
	var timedOut []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.RunHeartbeat(context.Background(), func(sid string) {
			mu.Lock()
			timedOut = append(timedOut, sid)
			mu.Unlock()
		})
	}()

	// first sweep flips alive=false and sends a ping; second sweep
	// sees no pong arrived and terminates
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(timedOut) == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, s.ID, timedOut[0])
	assert.True(t, handle.isClosed())
	assert.Zero(t, r.ActiveConnections())
	assert.GreaterOrEqual(t, handle.writeCount(), 1) // at least the ping

	r.Stop()
	<-done
}

func TestPongKeepsSessionAlive(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewRegistry(15*time.Millisecond, 30*time.Millisecond)
	handle := &fakeHandle{}
	s := r.Register(handle)

	stopPonger := make(chan struct{})
	ponger := make(chan struct{})
	go func() {
		defer close(ponger)
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stopPonger:
				return
			case <-ticker.C:
				r.MarkPong(s.ID)
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.RunHeartbeat(context.Background(), func(string) {
			t.Error("live session timed out")
		})
	}()

	time.Sleep(100 * time.Millisecond) // several sweep cycles
	assert.Equal(t, 1, r.ActiveConnections())
	assert.False(t, handle.isClosed())

	close(stopPonger)
	<-ponger
	r.Stop()
	<-done
}

func TestBroadcastReachesEverySession(t *testing.T) {
	r := NewRegistry(time.Minute, 2*time.Minute)
	h1, h2 := &fakeHandle{}, &fakeHandle{}
	r.Register(h1)
	r.Register(h2)

	r.Broadcast(map[string]string{"type": "server_shutdown"})
	assert.Equal(t, 1, h1.writeCount())
	assert.Equal(t, 1, h2.writeCount())
}
