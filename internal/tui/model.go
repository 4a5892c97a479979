// Package tui is a small terminal front end for chatsync: a scrolling
// message list, a compose line, and status lines for typing and presence.
package tui

import (
	"fmt"
	"strings"
	"time"

	"taskforge-chat/internal/chatsync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ChatClient is the part of chatsync.Client the view drives.
type ChatClient interface {
	Activate(roomID string) error
	Deactivate() error
	Send(text string) error
	Keystroke()
	Snapshot() chatsync.Snapshot
}

type snapshotMsg chatsync.Snapshot

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	authorStyle = lipgloss.NewStyle().Bold(true)
	selfStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7FD962"))
	timeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).Italic(true)
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
)

// Model is the bubbletea model for one chat session.
type Model struct {
	client        ChatClient
	self          string
	updates       *Updates
	input         textinput.Model
	snap          chatsync.Snapshot
	typingDisplay int
	status        string
	width         int
	height        int
}

// New builds the model. updates may be nil, in which case the view only
// refreshes after local input.
func New(client ChatClient, self string, updates *Updates, typingDisplay int) Model {
	ti := textinput.New()
	ti.Placeholder = "message, /join <room>, /leave, /quit"
	ti.CharLimit = 2000
	ti.Prompt = "> "
	ti.Focus()

	return Model{
		client:        client,
		self:          self,
		updates:       updates,
		input:         ti,
		typingDisplay: typingDisplay,
		width:         80,
		height:        24,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForUpdate())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(10, msg.Width-4)
		return m, nil

	case snapshotMsg:
		m.snap = chatsync.Snapshot(msg)
		return m, m.waitForUpdate()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		}
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before && m.input.Value() != "" && !strings.HasPrefix(m.input.Value(), "/") {
		m.client.Keystroke()
	}
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	if line == "" {
		return m, nil
	}

	var err error
	switch {
	case line == "/quit":
		return m, tea.Quit
	case line == "/leave":
		err = m.client.Deactivate()
	case strings.HasPrefix(line, "/join"):
		room := strings.TrimSpace(strings.TrimPrefix(line, "/join"))
		if room == "" {
			m.status = "usage: /join <room>"
			return m, nil
		}
		err = m.client.Activate(room)
	case strings.HasPrefix(line, "/"):
		m.status = fmt.Sprintf("unknown command %q", line)
		return m, nil
	default:
		err = m.client.Send(line)
	}

	m.status = ""
	if err != nil {
		m.status = err.Error()
	}
	m.snap = m.client.Snapshot()
	return m, nil
}

func (m Model) waitForUpdate() tea.Cmd {
	if m.updates == nil {
		return nil
	}
	ch := m.updates.ch
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg(s)
	}
}

func (m Model) View() string {
	header := headerStyle.Render("no room") + dimStyle.Render("  /join <room> to start")
	if m.snap.RoomID != "" {
		header = headerStyle.Render("#"+m.snap.RoomID) + "  " +
			dimStyle.Render(fmt.Sprintf("%d online: %s", len(m.snap.Roster), strings.Join(m.snap.Roster, ", ")))
	}

	var footer []string
	if line := TypingLine(m.snap.VisibleTyping(m.typingDisplay)); line != "" {
		footer = append(footer, dimStyle.Render(line))
	}
	if m.snap.HistoryErr != nil {
		footer = append(footer, noticeStyle.Render("history unavailable: "+m.snap.HistoryErr.Error()))
	}
	if m.snap.Notice != "" {
		footer = append(footer, noticeStyle.Render(m.snap.Notice))
	}
	if m.status != "" {
		footer = append(footer, noticeStyle.Render(m.status))
	}
	footer = append(footer, m.input.View())

	// header + blank line + footer
	room := m.height - 2 - len(footer)
	lines := m.messageLines()
	if room < 1 {
		room = 1
	}
	if len(lines) > room {
		lines = lines[len(lines)-room:]
	}

	body := lipgloss.NewStyle().Width(max(20, m.width)).Render(strings.Join(lines, "\n"))
	return lipgloss.JoinVertical(lipgloss.Left, header, "", body, strings.Join(footer, "\n"))
}

func (m Model) messageLines() []string {
	lines := make([]string, 0, len(m.snap.Messages))
	for _, msg := range m.snap.Messages {
		style := authorStyle
		if msg.Author == m.self {
			style = selfStyle
		}
		stamp := time.UnixMilli(msg.Timestamp).Format("15:04")
		lines = append(lines, timeStyle.Render(stamp)+" "+style.Render(msg.Author)+": "+msg.Text)
	}
	return lines
}

// TypingLine renders the "is typing" status for names; empty when nobody is.
func TypingLine(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0] + " is typing…"
	default:
		return strings.Join(names, ", ") + " are typing…"
	}
}
