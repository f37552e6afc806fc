package warfront

import (
	"context"

	"github.com/ridgelinegames/corehost/internal/lobby"
	"github.com/ridgelinegames/corehost/internal/reconnect"
	"github.com/ridgelinegames/corehost/internal/wire"
)

// SessionIndex is the process-wide session->room mapping;
// connreg.Registry satisfies it.
type SessionIndex interface {
	SetRoom(sessionID, roomCode string)
	ClearRoom(sessionID string)
	RoomOf(sessionID string) (string, bool)
}

// TokenIssuer mints reconnect tokens on room entry.
type TokenIssuer interface {
	Issue(sessionID string) reconnect.Token
}

// Gateway adapts the Manager to the dispatcher's Handler contract,
// mirroring the board-mode gateway with the warfront-specific lobby
// operations (role and team selection) added.
type Gateway struct {
	mgr       *Manager
	index     SessionIndex
	tokens    TokenIssuer
	countdown *lobby.Orchestrator
}

// NewGateway wires a Gateway over the manager and its collaborators.
func NewGateway(mgr *Manager, index SessionIndex, tokens TokenIssuer, countdown *lobby.Orchestrator) *Gateway {
	return &Gateway{mgr: mgr, index: index, tokens: tokens, countdown: countdown}
}

// RoomCreated replies to a successful create_room; it carries the
// reconnect token.
type RoomCreated struct {
	Type           string `json:"type"`
	Code           string `json:"code"`
	SessionID      string `json:"sessionId"`
	ReconnectToken string `json:"reconnectToken"`
	Team           string `json:"team"`
}

// JoinedRoom replies to a successful join_room.
type JoinedRoom struct {
	Type           string      `json:"type"`
	Code           string      `json:"code"`
	SessionID      string      `json:"sessionId"`
	ReconnectToken string      `json:"reconnectToken"`
	Players        []LobbyView `json:"players"`
	HostID         string      `json:"hostId"`
}

// LobbyView is one roster entry as shown in the lobby.
type LobbyView struct {
	SessionID   string `json:"sessionId"`
	DisplayName string `json:"displayName"`
	Ready       bool   `json:"ready"`
	Connected   bool   `json:"connected"`
	Role        Role   `json:"role"`
	Team        string `json:"team"`
	IsHost      bool   `json:"isHost"`
}

// PlayerJoined announces a new roster entry to the rest of the room.
type PlayerJoined struct {
	Type   string    `json:"type"`
	Player LobbyView `json:"player"`
}

// PlayerReady relays a ready-flag change.
type PlayerReady struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Ready     bool   `json:"ready"`
}

// RoleSelected relays a role change.
type RoleSelected struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Role      Role   `json:"role"`
	Team      string `json:"team"`
}

type createRoomRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Public      bool   `json:"public"`
	FFA         bool   `json:"ffa"`
}

type joinRoomRequest struct {
	Code        string `json:"code"`
	DisplayName string `json:"displayName"`
}

type readyRequest struct {
	Ready bool `json:"ready"`
}

type selectRoleRequest struct {
	Role Role `json:"role"`
}

type selectTeamRequest struct {
	Team string `json:"team"`
}

// Handle implements dispatch.Handler.
func (g *Gateway) Handle(sessionID string, env wire.Envelope) bool {
	switch env.Type {
	case "create_room":
		var req createRoomRequest
		if err := env.Unmarshal(&req); err != nil {
			g.sendError(sessionID, wire.CodeInvalidFormat, "malformed create_room")
			return true
		}
		res := g.mgr.CreateRoom(sessionID, req.Name, req.DisplayName, req.Public, req.FFA)
		if !res.Success {
			g.sendError(sessionID, wire.CodeJoinFailed, res.Error)
			return true
		}
		g.index.SetRoom(sessionID, res.Code)
		token := g.tokens.Issue(sessionID)
		g.mgr.bcast.SendToPlayer(sessionID, RoomCreated{
			Type: "wf_room_created", Code: res.Code, SessionID: sessionID,
			ReconnectToken: token.Value, Team: res.Player.Team,
		})
		return true

	case "join_room":
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
		roster, hostID := g.mgr.LobbyRoster(req.Code)
		g.mgr.bcast.SendToPlayer(sessionID, JoinedRoom{
			Type: "wf_joined_room", Code: req.Code, SessionID: sessionID,
			ReconnectToken: token.Value, Players: roster, HostID: hostID,
		})
		g.mgr.bcast.BroadcastToRoom(g.mgr.Roster(req.Code), PlayerJoined{
			Type: "wf_player_joined", Player: lobbyView(res.Player, hostID),
		}, sessionID)
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
		g.mgr.bcast.BroadcastToRoom(g.mgr.Roster(code), PlayerReady{
			Type: "wf_player_ready", SessionID: sessionID, Ready: req.Ready,
		})
		return true

	case "select_role":
		var req selectRoleRequest
		if err := env.Unmarshal(&req); err != nil {
			g.sendError(sessionID, wire.CodeInvalidFormat, "malformed select_role")
			return true
		}
		code, ok := g.index.RoomOf(sessionID)
		if !ok {
			g.sendError(sessionID, wire.CodeRoomNotFound, "not in a room")
			return true
		}
		res := g.mgr.SelectRole(code, sessionID, req.Role)
		if !res.Success {
			g.sendError(sessionID, res.Error, res.Error)
			return true
		}
		g.mgr.bcast.BroadcastToRoom(g.mgr.Roster(code), RoleSelected{
			Type: "wf_role_selected", SessionID: sessionID, Role: res.Player.Role, Team: res.Player.Team,
		})
		return true

	case "select_team":
		var req selectTeamRequest
		if err := env.Unmarshal(&req); err != nil {
			g.sendError(sessionID, wire.CodeInvalidFormat, "malformed select_team")
			return true
		}
		code, ok := g.index.RoomOf(sessionID)
		if !ok {
			g.sendError(sessionID, wire.CodeRoomNotFound, "not in a room")
			return true
		}
		res := g.mgr.SelectTeam(code, sessionID, req.Team)
		if !res.Success {
			g.sendError(sessionID, res.Error, res.Error)
			return true
		}
		g.mgr.bcast.BroadcastToRoom(g.mgr.Roster(code), RoleSelected{
			Type: "wf_role_selected", SessionID: sessionID, Role: res.Player.Role, Team: res.Player.Team,
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
		g.countdown.StartCountdown(code, CountdownSeconds, res.Seed,
			func() []string { return g.mgr.Roster(code) },
			func() { g.mgr.BeginPlaying(context.Background(), code) },
		)
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

	case "rematch":
		code, ok := g.index.RoomOf(sessionID)
		if !ok {
			g.sendError(sessionID, wire.CodeRoomNotFound, "not in a room")
			return true
		}
		res := g.mgr.Rematch(code, sessionID)
		if !res.Success {
			g.sendError(sessionID, wire.CodeStartFailed, res.Error)
			return true
		}
		roster, hostID := g.mgr.LobbyRoster(code)
		g.mgr.bcast.BroadcastToRoom(g.mgr.Roster(code), JoinedRoom{
			Type: "wf_room_state", Code: code, Players: roster, HostID: hostID,
		})
		return true

	default:
		code, ok := g.index.RoomOf(sessionID)
		if !ok {
			g.sendError(sessionID, wire.CodeRoomNotFound, "not in a room")
			return true
		}
		res := g.mgr.Handle(code, sessionID, env)
		if res.Error == "UNKNOWN_ACTION" {
			return false
		}
		if !res.Success {
			g.sendError(sessionID, res.Error, res.Error)
		}
		return true
	}
}

func (g *Gateway) sendError(sessionID, code, message string) {
	g.mgr.bcast.SendToPlayer(sessionID, wire.NewError(code, message))
}

func lobbyView(p *Player, hostID string) LobbyView {
	return LobbyView{
		SessionID:   p.SessionID,
		DisplayName: p.DisplayName,
		Ready:       p.Ready,
		Connected:   p.Connected,
		Role:        p.Role,
		Team:        p.Team,
		IsHost:      p.SessionID == hostID,
	}
}

// Roster returns the session ids currently in a room.
func (m *Manager) Roster(code string) []string {
	r, ok := m.getRoom(code)
	if !ok {
		return nil
	}
	r.Lock()
	defer r.Unlock()
	return r.roster()
}

// LobbyRoster returns the lobby projection of a room's players in join
// order, plus the current host id.
func (m *Manager) LobbyRoster(code string) ([]LobbyView, string) {
	r, ok := m.getRoom(code)
	if !ok {
		return nil, ""
	}
	r.Lock()
	defer r.Unlock()
	out := make([]LobbyView, 0, len(r.order))
	for _, sid := range r.order {
		if p, ok := r.Players[sid]; ok {
			out = append(out, lobbyView(p, r.HostID))
		}
	}
	return out, r.HostID
}
