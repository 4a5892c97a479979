package tui

import (
	"errors"
	"strings"
	"testing"

	"taskforge-chat/internal/chatsync"
	"taskforge-chat/internal/models"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	activated  []string
	sent       []string
	keystrokes int
	left       int
	sendErr    error
	snap       chatsync.Snapshot
}

func (f *fakeClient) Activate(roomID string) error {
	f.activated = append(f.activated, roomID)
	f.snap.RoomID = roomID
	return nil
}

func (f *fakeClient) Deactivate() error {
	f.left++
	f.snap = chatsync.Snapshot{}
	return nil
}

func (f *fakeClient) Send(text string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeClient) Keystroke()                  { f.keystrokes++ }
func (f *fakeClient) Snapshot() chatsync.Snapshot { return f.snap }

func typeText(t *testing.T, m tea.Model, text string) tea.Model {
	t.Helper()
	for _, r := range text {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func enter(m tea.Model) (tea.Model, tea.Cmd) {
	return m.Update(tea.KeyMsg{Type: tea.KeyEnter})
}

func TestTypingAndSend(t *testing.T) {
	fc := &fakeClient{}
	var m tea.Model = New(fc, "alice", nil, 3)

	m = typeText(t, m, "hi")
	assert.Equal(t, 2, fc.keystrokes)

	m, _ = enter(m)
	assert.Equal(t, []string{"hi"}, fc.sent)
	assert.Empty(t, m.(Model).input.Value())
}

func TestCommands(t *testing.T) {
	fc := &fakeClient{}
	var m tea.Model = New(fc, "alice", nil, 3)

	m = typeText(t, m, "/join 42")
	assert.Zero(t, fc.keystrokes, "commands are not typing")
	m, _ = enter(m)
	assert.Equal(t, []string{"42"}, fc.activated)
	assert.Contains(t, m.View(), "#42")

	m = typeText(t, m, "/leave")
	m, _ = enter(m)
	assert.Equal(t, 1, fc.left)
	assert.Contains(t, m.View(), "no room")

	m = typeText(t, m, "/join")
	m, _ = enter(m)
	assert.Contains(t, m.View(), "usage: /join <room>")

	m = typeText(t, m, "/quit")
	_, cmd := enter(m)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, fc.sent)
}

func TestSendErrorShown(t *testing.T) {
	fc := &fakeClient{sendErr: errors.New("chatsync: no active room")}
	var m tea.Model = New(fc, "alice", nil, 3)

	m = typeText(t, m, "hello")
	m, _ = enter(m)
	assert.Contains(t, m.View(), "no active room")
}

func TestSnapshotRendering(t *testing.T) {
	fc := &fakeClient{}
	updates := NewUpdates()
	var m tea.Model = New(fc, "alice", updates, 2)

	updates.Push(chatsync.Snapshot{RoomID: "stale"})
	updates.Push(chatsync.Snapshot{
		RoomID: "42",
		Messages: []models.ChatMessage{
			{ID: "1", RoomID: "42", Author: "bob", Text: "morning all", Timestamp: 1000},
		},
		Typing: []string{"bob", "carol", "dave"},
		Roster: []string{"alice", "bob"},
		Notice: "chat history is temporarily unavailable",
	})

	msg := m.(Model).waitForUpdate()()
	m, _ = m.Update(msg)
	view := m.View()

	assert.Contains(t, view, "#42")
	assert.Contains(t, view, "2 online: alice, bob")
	assert.Contains(t, view, "morning all")
	assert.Contains(t, view, "bob, carol are typing…")
	assert.NotContains(t, view, "dave")
	assert.Contains(t, view, "temporarily unavailable")
}

func TestTypingLine(t *testing.T) {
	assert.Equal(t, "", TypingLine(nil))
	assert.Equal(t, "bob is typing…", TypingLine([]string{"bob"}))
	assert.Equal(t, "bob, carol are typing…", TypingLine([]string{"bob", "carol"}))
}

func TestMessageListKeepsNewest(t *testing.T) {
	fc := &fakeClient{}
	var m tea.Model = New(fc, "alice", nil, 3)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 60, Height: 6})

	var msgs []models.ChatMessage
	for i := 0; i < 10; i++ {
		msgs = append(msgs, models.ChatMessage{Author: "bob", Text: "line-" + string(rune('a'+i)), Timestamp: int64(i)})
	}
	m, _ = m.Update(snapshotMsg(chatsync.Snapshot{RoomID: "42", Messages: msgs}))

	view := m.View()
	assert.True(t, strings.Contains(view, "line-j"), "newest line visible")
	assert.False(t, strings.Contains(view, "line-a"), "oldest line scrolled off")
}
