package lightmode

import (
	"context"
	"encoding/json"

	"github.com/ridgelinegames/corehost/internal/lobby"
	"github.com/ridgelinegames/corehost/internal/reconnect"
	"github.com/ridgelinegames/corehost/internal/wire"
)

// SessionIndex is the process-wide session->room mapping.
type SessionIndex interface {
	SetRoom(sessionID, roomCode string)
	ClearRoom(sessionID string)
	RoomOf(sessionID string) (string, bool)
}

// TokenIssuer mints reconnect tokens on room entry.
type TokenIssuer interface {
	Issue(sessionID string) reconnect.Token
}

// Gateway adapts a light-mode Manager to the dispatcher. Lobby tags
// are handled here; any other frame from a player inside a playing
// room is relayed verbatim to the rest of the room, since light modes
// simulate client-side and the server only forwards.
type Gateway struct {
	mgr       *Manager
	index     SessionIndex
	tokens    TokenIssuer
	countdown *lobby.Orchestrator
	queue     *lobby.Queue // nil when the mode has no matchmaking
}

// NewGateway wires a Gateway. queue may be nil.
func NewGateway(mgr *Manager, index SessionIndex, tokens TokenIssuer, countdown *lobby.Orchestrator, queue *lobby.Queue) *Gateway {
	return &Gateway{mgr: mgr, index: index, tokens: tokens, countdown: countdown, queue: queue}
}

// RoomCreated replies to a successful create_room.
type RoomCreated struct {
	Type           string `json:"type"`
	Code           string `json:"code"`
	SessionID      string `json:"sessionId"`
	ReconnectToken string `json:"reconnectToken"`
}

// MatchFound tells a queued player their match formed.
type MatchFound struct {
	Type           string `json:"type"`
	Code           string `json:"code"`
	IsAI           bool   `json:"isAI"`
	GameSeed       int64  `json:"gameSeed"`
	ReconnectToken string `json:"reconnectToken"`
}

type createRoomRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

type joinRoomRequest struct {
	Code        string `json:"code"`
	DisplayName string `json:"displayName"`
}

type readyRequest struct {
	Ready bool `json:"ready"`
}

type queueRequest struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// Handle implements dispatch.Handler.
func (g *Gateway) Handle(sessionID string, env wire.Envelope) bool {
	switch env.Type {
	case g.mgr.mode + "_create_room", "create_room":
		var req createRoomRequest
		if err := env.Unmarshal(&req); err != nil {
			g.sendError(sessionID, wire.CodeInvalidFormat, "malformed create_room")
			return true
		}
		res := g.mgr.CreateRoom(sessionID, req.Name, req.DisplayName)
		if !res.Success {
			g.sendError(sessionID, wire.CodeJoinFailed, res.Error)
			return true
		}
		g.index.SetRoom(sessionID, res.Code)
		token := g.tokens.Issue(sessionID)
		g.mgr.bcast.SendToPlayer(sessionID, RoomCreated{
			Type: g.mgr.mode + "_room_created", Code: res.Code, SessionID: sessionID, ReconnectToken: token.Value,
		})
		return true

	case g.mgr.mode + "_join_room", "join_room":
		var req joinRoomRequest
		if err := env.Unmarshal(&req); err != nil {
			g.sendError(sessionID, wire.CodeInvalidFormat, "malformed join_room")
			return true
		}
		res := g.mgr.JoinRoom(req.Code, sessionID, req.DisplayName)
		if !res.Success {
			code := wire.CodeJoinFailed
			if res.Error == ErrRoomNotFound {
				code = wire.CodeRoomNotFound
			}
			g.sendError(sessionID, code, res.Error)
			return true
		}
		g.index.SetRoom(sessionID, req.Code)
		token := g.tokens.Issue(sessionID)
		if state, ok := g.mgr.SnapshotFor(req.Code, sessionID); ok {
			reply := struct {
				RoomState
				ReconnectToken string `json:"reconnectToken"`
			}{state, token.Value}
			reply.Type = g.mgr.mode + "_joined_room"
			g.mgr.bcast.SendToPlayer(sessionID, reply)
		}
		return true

	case "ready", "set_ready":
		var req readyRequest
		if err := env.Unmarshal(&req); err != nil {
			g.sendError(sessionID, wire.CodeInvalidFormat, "malformed ready")
			return true
		}
		code, ok := g.index.RoomOf(sessionID)
		if !ok {
			g.sendError(sessionID, wire.CodeRoomNotFound, "not in a room")
			return true
		}
		res := g.mgr.SetReady(code, sessionID, req.Ready)
		if !res.Success {
			g.sendError(sessionID, wire.CodeRoomNotFound, res.Error)
			return true
		}
		g.mgr.bcast.BroadcastToRoom(g.mgr.Roster(code), map[string]any{
			"type": "player_ready", "sessionId": sessionID, "ready": req.Ready,
		})
		return true

	case "start_game":
		code, ok := g.index.RoomOf(sessionID)
		if !ok {
			g.sendError(sessionID, wire.CodeRoomNotFound, "not in a room")
			return true
		}
		res := g.mgr.StartGame(code, sessionID)
		if !res.Success {
			g.sendError(sessionID, wire.CodeStartFailed, res.Error)
			return true
		}
		g.startCountdown(code, res.Seed)
		return true

	case "leave_room":
		code, ok := g.index.RoomOf(sessionID)
		if !ok {
			g.sendError(sessionID, wire.CodeRoomNotFound, "not in a room")
			return true
		}
		g.index.ClearRoom(sessionID)
		g.mgr.RemovePlayer(code, sessionID, "left")
		return true

	case "queue_ranked", "queue":
		if g.queue == nil {
			return false
		}
		var req queueRequest
		if err := env.Unmarshal(&req); err != nil {
			g.sendError(sessionID, wire.CodeInvalidFormat, "malformed queue request")
			return true
		}
		g.queue.Enqueue(lobby.QueuedPlayer{
			SessionID: sessionID, Name: wire.Truncate(req.Name, 16), Points: req.Points,
		})
		return true

	case "cancel_queue":
		if g.queue == nil {
			return false
		}
		g.queue.Remove(sessionID)
		return true

	default:
		// gameplay relay: forward the raw frame to the rest of the room
		code, ok := g.index.RoomOf(sessionID)
		if !ok {
			return false
		}
		if !g.mgr.HasRoom(code) {
			return false
		}
		g.mgr.bcast.BroadcastToRoom(g.mgr.Roster(code), json.RawMessage(env.Raw), sessionID)
		return true
	}
}

// startCountdown runs the shared countdown then flips the room to
// playing.
func (g *Gateway) startCountdown(code string, seed int64) {
	g.countdown.StartCountdown(code, CountdownSeconds, seed,
		func() []string { return g.mgr.Roster(code) },
		func() { g.mgr.BeginPlaying(context.Background(), code) },
	)
}

// OnMatch is the lobby.MatchFunc for this mode's queue: it creates the
// room, seats every player, issues their tokens, notifies them, and
// starts the countdown.
func (g *Gateway) OnMatch(match lobby.Match) {
	seats := make([]MatchSeat, 0, len(match.Players))
	for _, qp := range match.Players {
		seats = append(seats, MatchSeat{SessionID: qp.SessionID, Name: qp.Name, Points: qp.Points})
	}
	code := g.mgr.CreateMatch(seats, match.Seed, match.IsAI)
	tag := g.mgr.mode + "_match_found"
	if g.mgr.mode == "rhythm" {
		tag = "ranked_match_found"
	}
	for _, qp := range match.Players {
		g.index.SetRoom(qp.SessionID, code)
		token := g.tokens.Issue(qp.SessionID)
		g.mgr.bcast.SendToPlayer(qp.SessionID, MatchFound{
			Type: tag, Code: code, IsAI: match.IsAI, GameSeed: match.Seed, ReconnectToken: token.Value,
		})
	}
	g.startCountdown(code, match.Seed)
}

func (g *Gateway) sendError(sessionID, code, message string) {
	g.mgr.bcast.SendToPlayer(sessionID, wire.NewError(code, message))
}
