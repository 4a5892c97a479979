// Package config builds the single Config value shared by the relay and the
// chat client. It is constructed once at startup and passed down explicitly.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"taskforge-chat/internal/utils"
)

// Config holds every setting read from the environment.
type Config struct {
	// Client side.
	ServerURL   string // base http(s) URL of the relay, e.g. http://localhost:3001
	Token       string // bearer token sent as the identity header
	DisplayName string // author name when no Token is set
	StateFile   string // where the last active room is recorded

	Sync SyncConfig

	// Relay side.
	Port        string
	DatabaseURL string
	JWTSecret   string
	LogLevel    string
	Env         string // APP_ENV; anything but "development" requires JWT_SECRET
}

// DevJWTSecret signs tokens when JWT_SECRET is unset. It is public, so only
// development relays may run with it.
const DevJWTSecret = "secret"

var ErrInsecureSecret = errors.New("config: JWT_SECRET must be set outside development")

// SyncConfig tunes the chat sync client timings.
type SyncConfig struct {
	PollInterval  time.Duration
	MaxAttempts   int
	RetryDelay    time.Duration
	TypingIdle    time.Duration
	TypingExpiry  time.Duration // drop a remote typist not refreshed within this
	HistoryLimit  int
	TypingDisplay int
	FetchTimeout  time.Duration
}

// DefaultSyncConfig returns the stock timings.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		PollInterval:  100 * time.Millisecond,
		MaxAttempts:   10,
		RetryDelay:    time.Second,
		TypingIdle:    1200 * time.Millisecond,
		TypingExpiry:  5 * time.Second,
		HistoryLimit:  50,
		TypingDisplay: 3,
		FetchTimeout:  10 * time.Second,
	}
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = utils.LoadEnv()

	def := DefaultSyncConfig()
	cfg := &Config{
		ServerURL:   strings.TrimRight(utils.GetEnv("TASKFORGE_SERVER_URL", "http://localhost:3001"), "/"),
		Token:       utils.GetEnv("TASKFORGE_TOKEN", ""),
		DisplayName: utils.GetEnv("TASKFORGE_DISPLAY_NAME", ""),
		StateFile:   utils.GetEnv("TASKFORGE_STATE_FILE", ".taskforge/state.yaml"),
		Sync: SyncConfig{
			PollInterval:  utils.GetEnvDuration("CHAT_POLL_INTERVAL", def.PollInterval),
			MaxAttempts:   utils.GetEnvInt("CHAT_POLL_ATTEMPTS", def.MaxAttempts),
			RetryDelay:    utils.GetEnvDuration("CHAT_HISTORY_RETRY_DELAY", def.RetryDelay),
			TypingIdle:    utils.GetEnvDuration("CHAT_TYPING_IDLE", def.TypingIdle),
			TypingExpiry:  utils.GetEnvDuration("CHAT_TYPING_EXPIRY", def.TypingExpiry),
			HistoryLimit:  utils.GetEnvInt("CHAT_HISTORY_LIMIT", def.HistoryLimit),
			TypingDisplay: utils.GetEnvInt("CHAT_TYPING_DISPLAY", def.TypingDisplay),
			FetchTimeout:  utils.GetEnvDuration("CHAT_FETCH_TIMEOUT", def.FetchTimeout),
		},
		Port:        utils.GetEnv("PORT", "3001"),
		DatabaseURL: databaseURL(),
		JWTSecret:   utils.GetEnv("JWT_SECRET", DevJWTSecret),
		Env:         utils.GetEnv("APP_ENV", "development"),
		LogLevel:    utils.GetEnv("LOG_LEVEL", "info"),
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = DevJWTSecret
	}
	if err := cfg.Sync.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects timings that would stall or spin the join sequence.
func (s SyncConfig) Validate() error {
	if s.MaxAttempts < 1 {
		return fmt.Errorf("config: CHAT_POLL_ATTEMPTS must be >= 1, got %d", s.MaxAttempts)
	}
	if s.PollInterval <= 0 {
		return fmt.Errorf("config: CHAT_POLL_INTERVAL must be positive")
	}
	if s.TypingExpiry <= 0 {
		return fmt.Errorf("config: CHAT_TYPING_EXPIRY must be positive")
	}
	if s.HistoryLimit < 1 {
		return fmt.Errorf("config: CHAT_HISTORY_LIMIT must be >= 1, got %d", s.HistoryLimit)
	}
	return nil
}

// InsecureSecret reports whether tokens are signed with DevJWTSecret.
func (c *Config) InsecureSecret() bool {
	return c.JWTSecret == "" || c.JWTSecret == DevJWTSecret
}

// CheckSecret refuses the development secret outside development.
func (c *Config) CheckSecret() error {
	if c.InsecureSecret() && c.Env != "development" {
		return ErrInsecureSecret
	}
	return nil
}

// WebsocketURL derives the ws(s):// endpoint from ServerURL.
func (c *Config) WebsocketURL() string {
	u := c.ServerURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

func databaseURL() string {
	if url := utils.GetEnv("DATABASE_URL", ""); url != "" {
		return url
	}
	// Only assemble a DSN when the host is set explicitly; otherwise the
	// relay falls back to its in-memory store.
	host := utils.GetEnv("POSTGRES_HOST", "")
	if host == "" {
		return ""
	}
	return "postgres://" + utils.GetEnv("POSTGRES_USER", "postgres") + ":" +
		utils.GetEnv("POSTGRES_PASSWORD", "postgres") + "@" +
		host + ":" +
		utils.GetEnv("POSTGRES_PORT", "5432") + "/" +
		utils.GetEnv("POSTGRES_DB", "chatdb") + "?sslmode=disable"
}
