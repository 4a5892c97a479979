package app

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taskforge-chat/internal/chatsync"
	"taskforge-chat/internal/config"
	"taskforge-chat/internal/handlers"
	"taskforge-chat/internal/history"
	"taskforge-chat/internal/identity"
	"taskforge-chat/internal/services"
	"taskforge-chat/internal/transport"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "relay-test-secret"

func newTestApp() *Deps {
	return &Deps{
		Auth:   services.NewAuthService(testSecret),
		Chat:   services.NewChatService(services.NewMemoryStore()),
		Rooms:  handlers.NewRoomManager(),
		Logger: zerolog.Nop(),
	}
}

func startRelay(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	app := New(*newTestApp())
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.ShutdownWithTimeout(2 * time.Second) })
	return "http://" + ln.Addr().String()
}

func startChatClient(t *testing.T, baseURL, user string) *chatsync.Client {
	t.Helper()
	token, err := identity.GenerateToken(testSecret, user, "", time.Hour)
	require.NoError(t, err)
	self, err := identity.Resolve("", token)
	require.NoError(t, err)

	cfg := &config.Config{ServerURL: baseURL}
	syncCfg := config.DefaultSyncConfig()
	syncCfg.PollInterval = 10 * time.Millisecond

	tr := transport.New(cfg.WebsocketURL(), transport.WithToken(token))
	c, err := chatsync.NewClient(tr, history.NewClient(baseURL, token, time.Second), self, syncCfg)
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() {
		_ = c.Close()
		_ = tr.Close()
	})
	return c
}

func TestHealth(t *testing.T) {
	app := New(*newTestApp())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","rooms":0}`, string(body))
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	app := New(*newTestApp())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestChatRoundTrip(t *testing.T) {
	baseURL := startRelay(t)

	alice := startChatClient(t, baseURL, "alice")
	bob := startChatClient(t, baseURL, "bob")
	require.NoError(t, alice.Activate("42"))
	require.NoError(t, bob.Activate("42"))

	require.Eventually(t, func() bool {
		return len(alice.Snapshot().Roster) == 2 && len(bob.Snapshot().Roster) == 2
	}, 3*time.Second, 10*time.Millisecond, "both present")
	assert.Equal(t, []string{"alice", "bob"}, bob.Snapshot().Roster)

	bob.Keystroke()
	require.Eventually(t, func() bool {
		return strings.Join(alice.Snapshot().Typing, ",") == "bob"
	}, 3*time.Second, 10*time.Millisecond, "alice sees bob typing")

	require.NoError(t, bob.Send("hello from bob"))
	require.NoError(t, alice.Send("hi bob"))

	for _, c := range []*chatsync.Client{alice, bob} {
		require.Eventually(t, func() bool { return len(c.Snapshot().Messages) == 2 },
			3*time.Second, 10*time.Millisecond, "both messages delivered once")
	}
	assert.Empty(t, alice.Snapshot().Typing, "send clears typing")
	assert.Empty(t, bob.Snapshot().Typing, "own typing is never shown")

	// A late joiner gets the same log from history.
	carol := startChatClient(t, baseURL, "carol")
	require.NoError(t, carol.Activate("42"))
	require.Eventually(t, func() bool { return len(carol.Snapshot().Messages) == 2 },
		3*time.Second, 10*time.Millisecond, "history loaded")

	got, _ := json.Marshal(carol.Snapshot().Messages)
	want, _ := json.Marshal(alice.Snapshot().Messages)
	assert.JSONEq(t, string(want), string(got))

	// Leaving shrinks everyone else's roster.
	require.NoError(t, bob.Deactivate())
	require.Eventually(t, func() bool {
		return strings.Join(alice.Snapshot().Roster, ",") == "alice,carol"
	}, 3*time.Second, 10*time.Millisecond, "bob gone")
}
