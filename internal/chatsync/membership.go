package chatsync

import (
	"context"
	"errors"
	"strings"
	"time"

	"taskforge-chat/internal/models"
)

// activate leaves the current room (if different), resets per-room state
// and starts the join sequence for roomID. Re-activating the same room
// simply rejoins it.
func (c *Client) activate(roomID string) {
	if c.roomID == roomID {
		c.startJoin()
		return
	}
	if c.roomID != "" {
		c.stopTyping()
		_ = c.emit(models.EventLeave, models.LeavePayload{RoomID: c.roomID})
	}

	c.resetRoom()
	c.roomID = roomID
	if c.recorder != nil {
		if err := c.recorder.Save(roomID); err != nil {
			c.logger.Warn().Err(err).Str("room", roomID).Msg("could not record last room")
		}
	}
	c.logger.Info().Str("room", roomID).Msg("room activated")
	c.changed()
	c.startJoin()
}

// deactivate leaves the active room when the transport can still carry the
// leave; otherwise the relay notices the dropped connection on its own.
func (c *Client) deactivate() {
	if c.roomID == "" {
		return
	}
	c.stopTyping()
	if c.transport.IsConnected() {
		_ = c.emit(models.EventLeave, models.LeavePayload{RoomID: c.roomID})
	}
	c.logger.Info().Str("room", c.roomID).Msg("room deactivated")
	c.resetRoom()
	c.roomID = ""
	c.changed()
}

func (c *Client) resetRoom() {
	c.joinSeq++ // any pending join belongs to the old room
	c.log.Reset()
	c.typing.Reset()
	c.clearTypists()
	c.roster = []string{}
	c.historyErr = nil
	c.notice = ""
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

// startJoin waits for the transport off the loop and reports back with
// joinReady. Only the newest sequence is honoured.
func (c *Client) startJoin() {
	c.joinSeq++
	seq, roomID := c.joinSeq, c.roomID
	ctx := c.ctx

	go func() {
		if err := c.transport.Connect(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("transport connect failed")
		}
		connected, attempts := waitConnected(ctx, c.transport.IsConnected, c.cfg.MaxAttempts, c.cfg.PollInterval)
		c.post(joinReady{seq: seq, roomID: roomID, connected: connected, attempts: attempts})
	}()
}

// waitConnected polls isConnected up to attempts times, interval apart.
// It returns whether a connection was seen and how many polls were made.
func waitConnected(ctx context.Context, isConnected func() bool, attempts int, interval time.Duration) (bool, int) {
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for attempt := 1; attempt <= attempts; attempt++ {
		if isConnected() {
			return true, attempt
		}
		if attempt == attempts {
			break
		}
		timer.Reset(interval)
		select {
		case <-ctx.Done():
			return false, attempt
		case <-timer.C:
		}
	}
	return false, attempts
}

func (c *Client) completeJoin(ev joinReady) {
	if ev.seq != c.joinSeq || ev.roomID != c.roomID {
		return
	}
	if !ev.connected {
		// Join anyway; a dropped join is recovered by the next connect event.
		c.logger.Warn().Str("room", ev.roomID).Int("attempts", ev.attempts).
			Msg("transport not connected, joining best-effort")
	}
	_ = c.emit(models.EventJoin, models.JoinPayload{RoomID: ev.roomID, User: c.self})
	c.fetchHistory(ev.roomID, 0)
}

// fetchHistory loads history for roomID as captured now; the result is
// matched against the room that is current when it arrives.
func (c *Client) fetchHistory(roomID string, attempt int) {
	ctx := c.ctx
	go func() {
		fctx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
		defer cancel()
		msgs, err := c.history.FetchMessages(fctx, roomID, c.cfg.HistoryLimit)
		c.post(historyLoaded{roomID: roomID, attempt: attempt, msgs: msgs, err: err})
	}()
}

func (c *Client) applyHistory(ev historyLoaded) {
	if ev.roomID != c.roomID {
		c.logger.Debug().Str("room", ev.roomID).Msg("discarding history for stale room")
		return
	}

	switch {
	case ev.err == nil, errors.Is(ev.err, models.ErrRoomNotFound):
		live := c.log.Messages()
		c.log.ApplyHistorical(ev.msgs)
		for _, m := range live {
			c.log.ApplyIncoming(m)
		}
		c.historyErr = nil
		c.notice = ""
	case errors.Is(ev.err, models.ErrUnauthorized):
		c.logger.Warn().Err(ev.err).Str("room", ev.roomID).Msg("history fetch unauthorized")
		c.historyErr = ev.err
	default:
		c.logger.Warn().Err(ev.err).Str("room", ev.roomID).Int("attempt", ev.attempt).Msg("history fetch failed")
		if ev.attempt == 0 && c.log.Len() == 0 {
			roomID := ev.roomID
			if c.retryTimer != nil {
				c.retryTimer.Stop()
			}
			c.retryTimer = time.AfterFunc(c.cfg.RetryDelay, func() {
				c.post(historyRetry{roomID: roomID})
			})
			return
		}
		c.notice = "chat history is temporarily unavailable"
	}
	c.changed()
}

func (c *Client) send(text string) error {
	if c.roomID == "" {
		return ErrNoActiveRoom
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	c.stopTyping()

	return c.emit(models.EventMessage, models.MessagePayload{
		RoomID:    c.roomID,
		Author:    c.self,
		Text:      text,
		Timestamp: c.now().UnixMilli(),
	})
}

// keystroke emits typing:true on the idle to typing edge, and again every
// half TypingExpiry while input continues. Every call pushes the idle
// deadline out.
func (c *Client) keystroke() {
	if c.roomID == "" {
		return
	}
	now := c.now()
	if !c.localTyping || now.Sub(c.typingSentAt) >= c.cfg.TypingExpiry/2 {
		c.localTyping = true
		c.typingSentAt = now
		_ = c.emit(models.EventTyping, models.TypingPayload{RoomID: c.roomID, Author: c.self, Typing: true})
	}

	c.typingGen++
	gen := c.typingGen
	if c.typingTimer != nil {
		c.typingTimer.Stop()
	}
	c.typingTimer = time.AfterFunc(c.cfg.TypingIdle, func() {
		c.post(typingIdle{gen: gen})
	})
}

func (c *Client) stopTyping() {
	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
	c.typingGen++
	if !c.localTyping {
		return
	}
	c.localTyping = false
	if c.roomID != "" {
		_ = c.emit(models.EventTyping, models.TypingPayload{RoomID: c.roomID, Author: c.self, Typing: false})
	}
}

// armTypist (re)starts the local expiry of a remote typing entry.
func (c *Client) armTypist(author string) {
	c.disarmTypist(author)
	c.typistSeq++
	seq, roomID := c.typistSeq, c.roomID
	c.typists[author] = typist{
		seq:   seq,
		timer: time.AfterFunc(c.cfg.TypingExpiry, func() {
			c.post(typingExpired{roomID: roomID, author: author, seq: seq})
		}),
	}
}

func (c *Client) disarmTypist(author string) {
	if tp, ok := c.typists[author]; ok {
		tp.timer.Stop()
		delete(c.typists, author)
	}
}

func (c *Client) clearTypists() {
	for author := range c.typists {
		c.disarmTypist(author)
	}
}
