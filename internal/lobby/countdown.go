// Package lobby implements the lobby orchestrator: the host-started
// countdown that moves a room from countdown to playing, and the
// per-mode matchmaking queues.
package lobby

import (
	"sync"
	"time"

	"github.com/ridgelinegames/corehost/internal/broadcast"
	"github.com/ridgelinegames/corehost/internal/wire"
)

// RosterFunc returns the session ids to receive countdown frames; it
// is re-evaluated each second so late disconnects stop receiving.
type RosterFunc func() []string

// Orchestrator owns every in-flight countdown timer. Countdowns cannot
// be cancelled by clients once started; Shutdown exists only for
// process exit.
type Orchestrator struct {
	bcast *broadcast.Engine

	mu      sync.Mutex
	pending map[string]chan struct{}
}

// NewOrchestrator builds an Orchestrator over the broadcast engine.
func NewOrchestrator(bcast *broadcast.Engine) *Orchestrator {
	return &Orchestrator{bcast: bcast, pending: make(map[string]chan struct{})}
}

// StartCountdown sends countdown {count} at 1 Hz from seconds down to
// 1, then calls begin and emits game_started {seed, timestamp}. A
// second StartCountdown for the same code while one is in-flight is
// ignored.
func (o *Orchestrator) StartCountdown(code string, seconds int, seed int64, roster RosterFunc, begin func()) {
	o.mu.Lock()
	if _, running := o.pending[code]; running {
		o.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	o.pending[code] = stop
	o.mu.Unlock()

	go func() {
		defer func() {
			o.mu.Lock()
			delete(o.pending, code)
			o.mu.Unlock()
		}()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for count := seconds; count >= 1; count-- {
			o.bcast.BroadcastToRoom(roster(), wire.Countdown{Type: "countdown", Count: count})
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
		}
		begin()
		o.bcast.BroadcastToRoom(roster(), wire.GameStarted{
			Type: "game_started", Seed: seed, Timestamp: time.Now().UnixMilli(),
		})
	}()
}

// CountdownRunning reports whether a countdown is in flight for code.
func (o *Orchestrator) CountdownRunning(code string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, running := o.pending[code]
	return running
}

// Shutdown aborts every in-flight countdown during process shutdown.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	for code, stop := range o.pending {
		close(stop)
		delete(o.pending, code)
	}
	o.mu.Unlock()
}
