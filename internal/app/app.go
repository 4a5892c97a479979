package app

import (
	"context"
	"os"
	"time"

	"taskforge-chat/internal/config"
	"taskforge-chat/internal/db"
	"taskforge-chat/internal/handlers"
	"taskforge-chat/internal/services"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 15 * time.Second

// Deps are the collaborators the relay routes need.
type Deps struct {
	Auth   *services.AuthService
	Chat   *services.ChatService
	Rooms  *handlers.RoomManager
	Logger zerolog.Logger
}

// New builds the relay's Fiber app.
func New(deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	// Middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	// Health Check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "rooms": deps.Rooms.RoomCount()})
	})

	auth := handlers.AuthMiddleware(deps.Auth)

	// History
	app.Get("/rooms/:roomId/messages", auth, handlers.GetMessagesHandler(deps.Chat))

	// WebSocket Route
	// Note: Middleware order matters. WSUpgradeMiddleware checks if it's a WS
	// request, AuthMiddleware checks the token.
	dispatcher := &handlers.Dispatcher{
		Manager: deps.Rooms,
		Chat:    deps.Chat,
		Logger:  deps.Logger,
		Timeout: 5 * time.Second,
	}
	app.Use("/ws", handlers.WSUpgradeMiddleware)
	app.Use("/ws", auth)
	app.Get("/ws", handlers.WebSocketHandler(dispatcher))

	return app
}

// Run starts the relay and blocks until a shutdown signal has been handled.
// It returns the process exit code.
func Run(cfg *config.Config) int {
	log := NewLogger(cfg.LogLevel)

	if err := cfg.CheckSecret(); err != nil {
		log.Error().Err(err).Str("env", cfg.Env).Msg("refusing to start")
		return 1
	}
	if cfg.InsecureSecret() {
		log.Warn().Msg("JWT_SECRET is unset, tokens are signed with the public development secret")
	}

	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to open message store")
		return 1
	}

	app := New(Deps{
		Auth:   services.NewAuthService(cfg.JWTSecret),
		Chat:   services.NewChatService(store),
		Rooms:  handlers.NewRoomManager(),
		Logger: log,
	})

	go func() {
		log.Info().Str("port", cfg.Port).Msg("relay listening")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("listener stopped")
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"relay": func(ctx context.Context) error {
				log.Info().Msg("gracefully shutting down")
				// Drain requests before the store goes away
				defer closeStore()
				return app.ShutdownWithContext(ctx)
			},
		},
	)
	code := <-wait
	log.Info().Int("code", code).Msg("server shutdown complete")
	return code
}

// NewLogger returns a console zerolog logger at level (default info).
func NewLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Logger()
}

func openStore(cfg *config.Config, log zerolog.Logger) (services.MessageStore, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("no database configured, history is kept in memory")
		return services.NewMemoryStore(), func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return services.NewPGStore(pool), pool.Close, nil
}
