package chatsync

import (
	"encoding/json"

	"taskforge-chat/internal/models"
)

// event is anything the loop consumes.
type event interface{}

type command struct {
	fn    func() error
	reply chan error
}

type incomingMessage struct{ msg models.ChatMessage }

type incomingTyping struct{ payload models.TypingPayload }

type incomingRoster struct {
	roomID string
	users  []string
}

type reconnected struct{}

type joinReady struct {
	seq       uint64
	roomID    string
	connected bool
	attempts  int
}

type historyLoaded struct {
	roomID  string
	attempt int
	msgs    []models.ChatMessage
	err     error
}

type historyRetry struct{ roomID string }

type typingIdle struct{ gen uint64 }

type typingExpired struct {
	roomID string
	author string
	seq    uint64
}

// The handlers below run on the transport's goroutine. They only decode and
// post; a bad payload is logged and dropped.

func (c *Client) onMessage(data json.RawMessage) {
	var p models.MessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.logger.Warn().Err(err).Msg("dropping malformed room:message")
		return
	}
	c.post(incomingMessage{msg: p.Message()})
}

func (c *Client) onTyping(data json.RawMessage) {
	var p models.TypingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.logger.Debug().Err(err).Msg("dropping malformed room:typing")
		return
	}
	c.post(incomingTyping{payload: p})
}

func (c *Client) onPresence(data json.RawMessage) {
	roomID, users := DecodeRoster(data)
	c.post(incomingRoster{roomID: roomID, users: users})
}

func (c *Client) handle(ev event) {
	switch ev := ev.(type) {
	case command:
		ev.reply <- ev.fn()
	case incomingMessage:
		if ev.msg.RoomID != c.roomID || c.roomID == "" {
			return
		}
		if c.log.ApplyIncoming(ev.msg) {
			c.changed()
		}
	case incomingTyping:
		if ev.payload.RoomID != c.roomID || c.roomID == "" {
			return
		}
		changed := c.typing.Apply(ev.payload.Author, ev.payload.Typing)
		switch {
		case !ev.payload.Typing:
			c.disarmTypist(ev.payload.Author)
		case c.typing.indexOf(ev.payload.Author) >= 0:
			// every typing:true pushes the expiry out
			c.armTypist(ev.payload.Author)
		}
		if changed {
			c.changed()
		}
	case incomingRoster:
		if c.roomID == "" || (ev.roomID != "" && ev.roomID != c.roomID) {
			return
		}
		c.roster = ev.users
		for _, gone := range c.typing.Retain(ev.users) {
			c.disarmTypist(gone)
		}
		c.changed()
	case reconnected:
		if c.roomID != "" {
			c.logger.Info().Str("room", c.roomID).Msg("transport reconnected, rejoining")
			c.startJoin()
		}
	case joinReady:
		c.completeJoin(ev)
	case historyLoaded:
		c.applyHistory(ev)
	case historyRetry:
		if ev.roomID == c.roomID && c.log.Len() == 0 {
			c.fetchHistory(ev.roomID, 1)
		}
	case typingIdle:
		if ev.gen == c.typingGen {
			c.stopTyping()
		}
	case typingExpired:
		if ev.roomID != c.roomID || c.typists[ev.author].seq != ev.seq {
			return
		}
		delete(c.typists, ev.author)
		if c.typing.Apply(ev.author, false) {
			c.changed()
		}
	default:
		c.logger.Error().Interface("event", ev).Msg("unknown loop event")
	}
}
