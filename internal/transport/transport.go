// Package transport is the client side of the realtime event channel. A
// single WSTransport is shared by every feature of a process; each consumer
// registers and removes its own handlers.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"taskforge-chat/internal/models"
	"taskforge-chat/internal/utils"

	"github.com/fasthttp/websocket"
	"github.com/rs/zerolog"
)

const defaultWriteTimeout = 10 * time.Second

// Handler receives the raw data of one inbound event.
type Handler func(data json.RawMessage)

// HandlerID identifies a registration for Off.
type HandlerID uint64

// WSTransport speaks the JSON envelope protocol over a websocket.
type WSTransport struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
	logger zerolog.Logger

	writeTimeout time.Duration

	hmu      sync.RWMutex
	handlers map[string]map[HandlerID]Handler
	nextID   atomic.Uint64

	dialMu    sync.Mutex
	writeMu   sync.Mutex
	conn      *websocket.Conn
	connected atomic.Bool
	closed    atomic.Bool
}

// Option customizes a WSTransport.
type Option func(*WSTransport)

// WithToken sends token as a bearer Authorization header on dial.
func WithToken(token string) Option {
	return func(t *WSTransport) {
		if token != "" {
			t.header.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(l zerolog.Logger) Option {
	return func(t *WSTransport) { t.logger = l }
}

// WithDialer swaps the websocket dialer, mainly for handshake timeouts.
func WithDialer(d *websocket.Dialer) Option {
	return func(t *WSTransport) {
		if d != nil {
			t.dialer = d
		}
	}
}

// WithWriteTimeout bounds each Emit; a write that cannot finish in time
// fails and drops the connection.
func WithWriteTimeout(d time.Duration) Option {
	return func(t *WSTransport) {
		if d > 0 {
			t.writeTimeout = d
		}
	}
}

// New prepares a transport for url. Nothing is dialed until Connect.
func New(url string, opts ...Option) *WSTransport {
	t := &WSTransport{
		url:          url,
		header:       http.Header{},
		dialer:       &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		writeTimeout: defaultWriteTimeout,
		logger:       zerolog.Nop(),
		handlers:     make(map[string]map[HandlerID]Handler),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Connect dials the relay. Calling it while connected is a no-op.
func (t *WSTransport) Connect(ctx context.Context) error {
	if t.closed.Load() {
		return errors.New("transport: closed")
	}
	t.dialMu.Lock()
	defer t.dialMu.Unlock()

	if t.connected.Load() {
		return nil
	}
	conn, _, err := t.dialer.DialContext(ctx, t.url, t.header)
	if err != nil {
		return fmt.Errorf("transport: dial %s: %w", t.url, err)
	}

	t.writeMu.Lock()
	t.conn = conn
	t.writeMu.Unlock()
	t.connected.Store(true)

	t.logger.Info().Str("url", t.url).Msg("transport connected")
	go t.readLoop(conn)
	t.dispatch(models.EventConnect, nil)
	return nil
}

// IsConnected reports whether a live connection exists.
func (t *WSTransport) IsConnected() bool {
	return t.connected.Load()
}

// Emit writes one event. It fails with models.ErrNotConnected when there is
// no connection; nothing is buffered. A failed or timed out write closes
// the connection so the read loop reports the disconnect.
func (t *WSTransport) Emit(event string, payload any) error {
	env, err := utils.Encode(event, payload)
	if err != nil {
		return fmt.Errorf("transport: emit %s: %w", event, err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.conn == nil {
		return models.ErrNotConnected
	}
	_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	if err := t.conn.WriteJSON(env); err != nil {
		_ = t.conn.Close()
		return fmt.Errorf("transport: emit %s: %w", event, err)
	}
	return nil
}

// On registers h for event and returns the id needed to remove it.
func (t *WSTransport) On(event string, h Handler) HandlerID {
	id := HandlerID(t.nextID.Add(1))

	t.hmu.Lock()
	defer t.hmu.Unlock()
	if t.handlers[event] == nil {
		t.handlers[event] = make(map[HandlerID]Handler)
	}
	t.handlers[event][id] = h
	return id
}

// Off removes a registration. Unknown ids are ignored.
func (t *WSTransport) Off(event string, id HandlerID) {
	t.hmu.Lock()
	defer t.hmu.Unlock()
	if hs, ok := t.handlers[event]; ok {
		delete(hs, id)
		if len(hs) == 0 {
			delete(t.handlers, event)
		}
	}
}

// HandlerCount returns the number of live registrations across all events.
func (t *WSTransport) HandlerCount() int {
	t.hmu.RLock()
	defer t.hmu.RUnlock()
	n := 0
	for _, hs := range t.handlers {
		n += len(hs)
	}
	return n
}

// Run keeps the connection up, redialing every interval after a drop.
func (t *WSTransport) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if !t.IsConnected() && !t.closed.Load() {
			if err := t.Connect(ctx); err != nil {
				t.logger.Warn().Err(err).Msg("reconnect failed")
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Close shuts the connection down for good.
func (t *WSTransport) Close() error {
	t.closed.Store(true)

	t.writeMu.Lock()
	conn := t.conn
	t.conn = nil
	t.writeMu.Unlock()
	t.connected.Store(false)

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return conn.Close()
}

func (t *WSTransport) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				t.logger.Warn().Err(err).Msg("transport read failed")
			}
			break
		}

		var env models.Envelope
		if err := utils.SafeJSONParse(data, &env); err != nil {
			t.logger.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}
		t.dispatch(env.Event, env.Data)
	}
	t.dropConn(conn)
}

// dropConn clears conn if it is still the current one.
func (t *WSTransport) dropConn(conn *websocket.Conn) {
	t.writeMu.Lock()
	current := t.conn == conn
	if current {
		t.conn = nil
		t.connected.Store(false)
	}
	t.writeMu.Unlock()

	_ = conn.Close()
	if current {
		t.logger.Info().Msg("transport disconnected")
		t.dispatch(models.EventDisconnect, nil)
	}
}

func (t *WSTransport) dispatch(event string, data json.RawMessage) {
	t.hmu.RLock()
	hs := make([]Handler, 0, len(t.handlers[event]))
	for _, h := range t.handlers[event] {
		hs = append(hs, h)
	}
	t.hmu.RUnlock()

	for _, h := range hs {
		t.invoke(event, h, data)
	}
}

// invoke isolates handlers from each other: a panic in one must not stop
// the read loop or the remaining handlers.
func (t *WSTransport) invoke(event string, h Handler, data json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error().Interface("panic", r).Str("event", event).Msg("handler panicked")
		}
	}()
	h(data)
}
