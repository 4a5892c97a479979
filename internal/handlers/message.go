package handlers

import (
	"context"
	"encoding/json"
	"time"

	"taskforge-chat/internal/models"
	"taskforge-chat/internal/services"
	"taskforge-chat/internal/utils"

	"github.com/rs/zerolog"
)

// Session is the relay-side state of one websocket connection.
type Session struct {
	ConnID   string
	Username string // authenticated name from the token; the only author a session can use
	Room     string

	typing bool
	peer   *peer
}

// NewSession wraps conn for an authenticated user.
func NewSession(connID, username string, conn utils.JSONWriter) *Session {
	return &Session{ConnID: connID, Username: username, peer: &peer{conn: conn}}
}

// Dispatcher routes inbound envelopes for all sessions.
type Dispatcher struct {
	Manager *RoomManager
	Chat    *services.ChatService
	Logger  zerolog.Logger
	Timeout time.Duration
}

func (d *Dispatcher) HandleMessage(s *Session, raw []byte) {
	var env models.Envelope
	if err := utils.SafeJSONParse(raw, &env); err != nil {
		d.Logger.Warn().Err(err).Str("conn", s.ConnID).Msg("dropping malformed frame")
		return
	}

	switch env.Event {
	case models.EventJoin:
		var p models.JoinPayload
		if d.decode(s, env, &p) {
			d.handleJoin(s, p)
		}
	case models.EventLeave:
		var p models.LeavePayload
		if d.decode(s, env, &p) {
			d.handleLeave(s, p)
		}
	case models.EventMessage:
		var p models.MessagePayload
		if d.decode(s, env, &p) {
			d.handleChat(s, p)
		}
	case models.EventTyping:
		var p models.TypingPayload
		if d.decode(s, env, &p) {
			d.handleTyping(s, p)
		}
	default:
		d.Logger.Debug().Str("event", env.Event).Msg("unknown event")
	}
}

// Disconnect removes the session from its room and refreshes the roster.
func (d *Dispatcher) Disconnect(s *Session) {
	if s.Room == "" {
		return
	}
	room := s.Room
	if s.typing {
		s.typing = false
		d.Manager.Broadcast(room, models.EventTyping, models.TypingPayload{
			RoomID: room,
			Author: s.Username,
			Typing: false,
		}, s.ConnID)
	}
	s.Room = ""
	if d.Manager.Leave(room, s.ConnID) {
		d.Manager.BroadcastRoster(room)
	}
}

func (d *Dispatcher) decode(s *Session, env models.Envelope, v interface{}) bool {
	if err := json.Unmarshal(env.Data, v); err != nil {
		d.Logger.Warn().Err(err).Str("event", env.Event).Str("conn", s.ConnID).Msg("bad payload")
		return false
	}
	return true
}

func (d *Dispatcher) handleJoin(s *Session, p models.JoinPayload) {
	if p.RoomID == "" {
		return
	}

	// Leave previous room if any
	if s.Room != "" && s.Room != p.RoomID {
		d.Disconnect(s)
	}

	if p.User != "" && p.User != s.Username {
		d.Logger.Warn().Str("conn", s.ConnID).Str("user", s.Username).Str("claimed", p.User).
			Msg("ignoring announced name that does not match the token")
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.Timeout)
	defer cancel()
	if err := d.Chat.JoinRoom(ctx, p.RoomID); err != nil {
		utils.LogError(err, "JoinRoom")
	}

	s.Room = p.RoomID
	d.Manager.Join(s.Room, s.ConnID, s.peer, s.Username)
	d.Logger.Info().Str("room", s.Room).Str("user", s.Username).Msg("joined")

	d.Manager.BroadcastRoster(s.Room)
}

func (d *Dispatcher) handleLeave(s *Session, p models.LeavePayload) {
	if s.Room == "" || (p.RoomID != "" && p.RoomID != s.Room) {
		return
	}
	d.Logger.Info().Str("room", s.Room).Str("user", s.Username).Msg("left")
	d.Disconnect(s)
}

func (d *Dispatcher) handleChat(s *Session, p models.MessagePayload) {
	if s.Room == "" || p.RoomID != s.Room {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.Timeout)
	defer cancel()

	// The author is always the authenticated name, whatever the payload says
	msg, err := d.Chat.PostMessage(ctx, models.ChatMessage{
		RoomID:    s.Room,
		Author:    s.Username,
		Text:      p.Text,
		Timestamp: p.Timestamp,
	})
	if err != nil {
		utils.LogError(err, "PostMessage")
		return
	}

	// Send to everyone including sender so they know it's confirmed
	d.Manager.Broadcast(s.Room, models.EventMessage, models.MessagePayload{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		Author:    msg.Author,
		Text:      msg.Text,
		Timestamp: msg.Timestamp,
	}, "")
}

func (d *Dispatcher) handleTyping(s *Session, p models.TypingPayload) {
	if s.Room == "" || p.RoomID != s.Room {
		return
	}
	s.typing = p.Typing
	d.Manager.Broadcast(s.Room, models.EventTyping, models.TypingPayload{
		RoomID: s.Room,
		Author: s.Username,
		Typing: p.Typing,
	}, s.ConnID)
}
