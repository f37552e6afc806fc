package boardgame

import (
	"context"

	"github.com/ridgelinegames/corehost/internal/lobby"
	"github.com/ridgelinegames/corehost/internal/reconnect"
	"github.com/ridgelinegames/corehost/internal/roomcore"
	"github.com/ridgelinegames/corehost/internal/wire"
)

// SessionIndex is the process-wide session->room mapping the gateway
// keeps current (a session belongs to at most one room across all
// managers); connreg.Registry satisfies it.
type SessionIndex interface {
	SetRoom(sessionID, roomCode string)
	ClearRoom(sessionID string)
	RoomOf(sessionID string) (string, bool)
}

// TokenIssuer mints reconnect tokens on room entry;
// reconnect.Broker satisfies it.
type TokenIssuer interface {
	Issue(sessionID string) reconnect.Token
}

// Gateway adapts the Manager to the dispatcher's Handler contract:
// lobby lifecycle tags are resolved here (create/join/ready/start/
// leave/rematch) and everything else is forwarded to the gameplay
// handler with the room resolved from the session index.
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

// RoomCreated replies to a successful create_room; it begins a session
// lifecycle, so it carries the reconnect token.
type RoomCreated struct {
	Type           string `json:"type"`
	Code           string `json:"code"`
	SessionID      string `json:"sessionId"`
	ReconnectToken string `json:"reconnectToken"`
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
	ColorSlot   int    `json:"colorSlot"`
	IsHost      bool   `json:"isHost"`
}

// RoomList replies to list_rooms with the joinable public rooms.
type RoomList struct {
	Type  string         `json:"type"`
	Rooms []RoomListItem `json:"rooms"`
}

// RoomListItem is one joinable room in a RoomList.
type RoomListItem struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	HostName    string `json:"hostName"`
	PlayerCount int    `json:"playerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
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

type createRoomRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Public      bool   `json:"public"`
}

type joinRoomRequest struct {
	Code        string `json:"code"`
	DisplayName string `json:"displayName"`
}

type readyRequest struct {
	Ready bool `json:"ready"`
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
		res := g.mgr.CreateRoom(sessionID, req.Name, req.DisplayName, req.Public)
		if !res.Success {
			g.sendError(sessionID, wire.CodeJoinFailed, res.Error)
			return true
		}
		g.index.SetRoom(sessionID, res.Code)
		token := g.tokens.Issue(sessionID)
		g.mgr.bcast.SendToPlayer(sessionID, RoomCreated{
			Type: "mc_room_created", Code: res.Code, SessionID: sessionID, ReconnectToken: token.Value,
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
			g.sendError(sessionID, mapJoinError(res.Error), res.Error)
			return true
		}
		g.index.SetRoom(sessionID, req.Code)
		token := g.tokens.Issue(sessionID)
		roster, hostID := g.mgr.LobbyRoster(req.Code)
		g.mgr.bcast.SendToPlayer(sessionID, JoinedRoom{
			Type: "mc_joined_room", Code: req.Code, SessionID: sessionID,
			ReconnectToken: token.Value, Players: roster, HostID: hostID,
		})
		g.mgr.bcast.BroadcastToRoom(g.mgr.Roster(req.Code), PlayerJoined{
			Type: "mc_player_joined", Player: lobbyView(res.Player, hostID),
		}, sessionID)
		return true

	case "list_rooms":
		g.mgr.bcast.SendToPlayer(sessionID, RoomList{
			Type: "mc_room_list", Rooms: g.mgr.PublicRooms(),
		})
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
			Type: "mc_player_ready", SessionID: sessionID, Ready: req.Ready,
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
		g.countdown.StartCountdown(code, DefaultCountdownSeconds, res.Seed,
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

	case "end_game":
		code, ok := g.index.RoomOf(sessionID)
		if !ok {
			g.sendError(sessionID, wire.CodeRoomNotFound, "not in a room")
			return true
		}
		res := g.mgr.EndGame(code, sessionID)
		if !res.Success {
			g.sendError(sessionID, wire.CodeStartFailed, res.Error)
		}
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
			Type: "mc_room_state", Code: code, Players: roster, HostID: hostID,
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

func mapJoinError(err string) string {
	switch err {
	case ErrRoomNotFound:
		return wire.CodeRoomNotFound
	default:
		return wire.CodeJoinFailed
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
		ColorSlot:   p.ColorSlot,
		IsHost:      p.SessionID == hostID,
	}
}

// PublicRooms lists the joinable public rooms from the in-memory room
// map; the persistence adapter is a non-authoritative mirror of the
// same data, so the live map is always the source.
func (m *Manager) PublicRooms() []RoomListItem {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	var out []RoomListItem
	for _, r := range rooms {
		r.Lock()
		if r.Public && r.Status == roomcore.StatusWaiting {
			hostName := ""
			if host, ok := r.Players[r.HostID]; ok {
				hostName = host.DisplayName
			}
			out = append(out, RoomListItem{
				Code: r.Code, Name: r.Name, HostName: hostName,
				PlayerCount: len(r.Players), MaxPlayers: r.MaxPlayers,
			})
		}
		r.Unlock()
	}
	return out
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

// statusOf is a test hook used by the package's board-game tests.
func (m *Manager) statusOf(code string) roomcore.Status {
	r, ok := m.getRoom(code)
	if !ok {
		return ""
	}
	r.Lock()
	defer r.Unlock()
	return r.Status
}
