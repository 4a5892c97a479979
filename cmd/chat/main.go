// Command chat is a terminal client for TaskForge board chat rooms.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"taskforge-chat/internal/chatsync"
	"taskforge-chat/internal/config"
	"taskforge-chat/internal/history"
	"taskforge-chat/internal/identity"
	"taskforge-chat/internal/laststore"
	"taskforge-chat/internal/transport"
	"taskforge-chat/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
)

const redialInterval = 2 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	room := flag.String("room", "", "room to open (defaults to the last one used)")
	logPath := flag.String("log", "", "log file (defaults to chat.log next to the state file)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	self, err := identity.Resolve(cfg.DisplayName, cfg.Token)
	if err != nil {
		return fmt.Errorf("identity: %w", err)
	}

	// The terminal belongs to the UI, so logs go to a file.
	if *logPath == "" {
		*logPath = filepath.Join(filepath.Dir(cfg.StateFile), "chat.log")
	}
	if err := os.MkdirAll(filepath.Dir(*logPath), 0o755); err != nil {
		return fmt.Errorf("log dir: %w", err)
	}
	logFile, err := os.OpenFile(*logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logFile.Close()

	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log := zerolog.New(logFile).Level(lvl).With().Timestamp().Str("user", self).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := transport.New(cfg.WebsocketURL(), transport.WithToken(cfg.Token), transport.WithLogger(log))
	defer tr.Close()
	go tr.Run(ctx, redialInterval)

	store := laststore.New(cfg.StateFile)
	updates := tui.NewUpdates()

	client, err := chatsync.NewClient(
		tr,
		history.NewClient(cfg.ServerURL, cfg.Token, cfg.Sync.FetchTimeout),
		self,
		cfg.Sync,
		chatsync.WithLogger(log),
		chatsync.WithRecorder(store),
		chatsync.WithOnChange(updates.Push),
	)
	if err != nil {
		return err
	}
	if err := client.Start(ctx); err != nil {
		return err
	}
	defer client.Close()

	if *room == "" {
		st, err := store.Load()
		if err != nil {
			log.Warn().Err(err).Msg("could not read last room")
		}
		*room = st.LastRoom
	}
	if *room != "" {
		if err := client.Activate(*room); err != nil {
			return err
		}
	}

	log.Info().Str("server", cfg.ServerURL).Str("room", *room).Msg("chat started")
	_, err = tea.NewProgram(tui.New(client, self, updates, cfg.Sync.TypingDisplay), tea.WithAltScreen()).Run()
	return err
}
