// Package chatsync keeps a local view of one board's chat room in step with
// the realtime transport: the message log, who is typing, and who is
// present. All state is owned by a single event loop; transport handlers,
// timers and history fetches only post events to it.
package chatsync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"taskforge-chat/internal/config"
	"taskforge-chat/internal/models"
	"taskforge-chat/internal/transport"

	"github.com/rs/zerolog"
)

var (
	ErrNotStarted   = errors.New("chatsync: client not started")
	ErrClosed       = errors.New("chatsync: client closed")
	ErrNoActiveRoom = errors.New("chatsync: no active room")
	ErrEmptyMessage = errors.New("chatsync: empty message")
	ErrNoIdentity   = errors.New("chatsync: local identity required")
)

// Transport is the realtime channel the client rides on. It is shared with
// other features, so the client only ever removes its own handlers.
type Transport interface {
	Connect(ctx context.Context) error
	IsConnected() bool
	Emit(event string, payload any) error
	On(event string, h transport.Handler) transport.HandlerID
	Off(event string, id transport.HandlerID)
}

// HistoryFetcher loads the recent messages of a room.
type HistoryFetcher interface {
	FetchMessages(ctx context.Context, roomID string, limit int) ([]models.ChatMessage, error)
}

// RoomRecorder remembers the last active room for a later session.
type RoomRecorder interface {
	Save(roomID string) error
}

// Snapshot is a read-only copy of the client state.
type Snapshot struct {
	RoomID     string
	Messages   []models.ChatMessage
	Typing     []string
	Roster     []string
	HistoryErr error
	Notice     string
}

// VisibleTyping returns at most n typing authors, oldest first.
func (s Snapshot) VisibleTyping(n int) []string {
	return firstN(s.Typing, n)
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger overrides the default no-op logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRecorder persists the last active room on every Activate.
func WithRecorder(r RoomRecorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithOnChange registers a callback that receives a snapshot after every
// state change. It runs on the event loop and must not call back into the
// Client synchronously.
func WithOnChange(fn func(Snapshot)) Option {
	return func(c *Client) { c.onChange = fn }
}

// WithClock allows tests to control message timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

type registration struct {
	event string
	id    transport.HandlerID
}

// Client is the chat sync client for one local user.
type Client struct {
	transport Transport
	history   HistoryFetcher
	recorder  RoomRecorder
	self      string
	cfg       config.SyncConfig
	logger    zerolog.Logger
	onChange  func(Snapshot)
	now       func() time.Time

	events    chan event
	quit      chan struct{}
	done      chan struct{}
	started   atomic.Bool
	closeOnce sync.Once
	regs      []registration
	ctx       context.Context
	cancel    context.CancelFunc

	// Owned by the event loop.
	roomID      string
	log         MessageLog
	typing      *TypingTracker
	roster      []string
	historyErr  error
	notice      string
	joinSeq     uint64
	localTyping  bool
	typingSentAt time.Time
	typingGen    uint64
	typingTimer  *time.Timer
	retryTimer   *time.Timer
	typists      map[string]typist
	typistSeq    uint64
}

// typist is the pending expiry of a remote typing entry.
type typist struct {
	seq   uint64
	timer *time.Timer
}

// NewClient wires a client for the local identity self.
func NewClient(tr Transport, history HistoryFetcher, self string, cfg config.SyncConfig, opts ...Option) (*Client, error) {
	if self == "" {
		return nil, ErrNoIdentity
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		transport: tr,
		history:   history,
		self:      self,
		cfg:       cfg,
		logger:    zerolog.Nop(),
		now:       time.Now,
		events:    make(chan event, 64),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		typing:    NewTypingTracker(self),
		roster:    []string{},
		typists:   make(map[string]typist),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start registers the transport handlers and runs the event loop until ctx
// is cancelled or Close is called. A Client is started at most once.
func (c *Client) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return errors.New("chatsync: already started")
	}
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.register(models.EventMessage, c.onMessage)
	c.register(models.EventTyping, c.onTyping)
	c.register(models.EventPresence, c.onPresence)
	c.register(models.EventConnect, func(json.RawMessage) { c.post(reconnected{}) })

	go c.run()
	return nil
}

// Close leaves the active room if connected, removes every handler
// registered by Start and stops the loop. It is safe to call repeatedly.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.started.CompareAndSwap(false, true) {
			// Never started: make a later Start fail instead of running.
			close(c.done)
			return
		}
		close(c.quit)
		<-c.done
		for _, r := range c.regs {
			c.transport.Off(r.event, r.id)
		}
		c.regs = nil
	})
	return nil
}

// Activate switches the client to roomID, leaving the previous room first.
func (c *Client) Activate(roomID string) error {
	if roomID == "" {
		return errors.New("chatsync: room id required")
	}
	return c.do(func() error {
		c.activate(roomID)
		return nil
	})
}

// Deactivate leaves the active room, if any.
func (c *Client) Deactivate() error {
	return c.do(func() error {
		c.deactivate()
		return nil
	})
}

// Rejoin re-runs the join sequence for the active room, typically after the
// transport reconnected.
func (c *Client) Rejoin() error {
	return c.do(func() error {
		if c.roomID == "" {
			return ErrNoActiveRoom
		}
		c.startJoin()
		return nil
	})
}

// Send publishes text to the active room. The message shows up in the log
// once the relay echoes it back.
func (c *Client) Send(text string) error {
	return c.do(func() error { return c.send(text) })
}

// Keystroke signals local input activity in the compose field.
func (c *Client) Keystroke() {
	_ = c.do(func() error {
		c.keystroke()
		return nil
	})
}

// Snapshot returns a copy of the current state.
func (c *Client) Snapshot() Snapshot {
	var s Snapshot
	_ = c.do(func() error {
		s = c.snapshot()
		return nil
	})
	return s
}

func (c *Client) register(event string, h transport.Handler) {
	id := c.transport.On(event, h)
	c.regs = append(c.regs, registration{event: event, id: id})
}

func (c *Client) do(fn func() error) error {
	if !c.started.Load() {
		return ErrNotStarted
	}
	reply := make(chan error, 1)
	select {
	case c.events <- command{fn: fn, reply: reply}:
	case <-c.done:
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		return ErrClosed
	}
}

// post hands an event to the loop; events posted after shutdown are dropped.
func (c *Client) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Client) run() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			c.shutdown()
			return
		case <-c.quit:
			c.shutdown()
			return
		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

func (c *Client) shutdown() {
	c.deactivate()
	if c.retryTimer != nil {
		c.retryTimer.Stop()
	}
	c.clearTypists()
	c.cancel()
}

func (c *Client) snapshot() Snapshot {
	return Snapshot{
		RoomID:     c.roomID,
		Messages:   c.log.Messages(),
		Typing:     c.typing.Authors(),
		Roster:     append([]string(nil), c.roster...),
		HistoryErr: c.historyErr,
		Notice:     c.notice,
	}
}

func (c *Client) changed() {
	if c.onChange != nil {
		c.onChange(c.snapshot())
	}
}

func (c *Client) emit(event string, payload any) error {
	err := c.transport.Emit(event, payload)
	if err != nil {
		c.logger.Warn().Err(err).Str("event", event).Msg("emit failed")
	}
	return err
}
