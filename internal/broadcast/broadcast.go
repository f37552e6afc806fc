// Package broadcast implements the fan-out primitives every room
// manager calls to reach its players: to-one, to-room, to-team, and
// to-3D-view-only sends. The Sender seam exists so a future
// multi-process deployment could swap in a Redis-backed implementation
// without touching callers; single-process delivery is all that ships.
package broadcast

import "k8s.io/utils/set"

// Sender is the minimal capability the engine needs from whatever owns
// live connections; internal/connreg.Registry satisfies it directly.
type Sender interface {
	Send(sessionID string, msg any)
}

// Engine fans messages out to session ids resolved by the caller (the
// Room Manager knows its own roster/team/3D-viewer membership; this
// package only knows how to reach a session once told to).
type Engine struct {
	sender Sender
}

// New builds an Engine over the given Sender.
func New(sender Sender) *Engine {
	return &Engine{sender: sender}
}

// SendToPlayer delivers msg to exactly one session. Drops silently if
// the session is unknown or its socket is not open.
func (e *Engine) SendToPlayer(sessionID string, msg any) {
	e.sender.Send(sessionID, msg)
}

// BroadcastToRoom delivers msg to every session in ids, skipping any
// session id present in exclude.
func (e *Engine) BroadcastToRoom(ids []string, msg any, exclude ...string) {
	skip := set.New(exclude...)
	for _, id := range ids {
		if skip.Has(id) {
			continue
		}
		e.sender.Send(id, msg)
	}
}

// BroadcastToTeam delivers msg to every session id in a pre-filtered
// team roster (the caller resolves team membership).
func (e *Engine) BroadcastToTeam(teamIDs []string, msg any) {
	for _, id := range teamIDs {
		e.sender.Send(id, msg)
	}
}

// SendTo3DViewers delivers msg to the union of session ids occupying a
// mode's 3D sub-view (the caller resolves which roles/teams that is).
func (e *Engine) SendTo3DViewers(viewerIDs []string, msg any, exclude ...string) {
	e.BroadcastToRoom(viewerIDs, msg, exclude...)
}
