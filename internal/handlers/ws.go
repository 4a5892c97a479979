package handlers

import (
	"strings"

	"taskforge-chat/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// WebSocketHandler handles the websocket connection
func WebSocketHandler(d *Dispatcher) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		// Retrieve user info from locals (set by middleware)
		username, _ := c.Locals("username").(string)

		// Generate a unique ID for this connection
		s := NewSession(uuid.New().String(), username, c)
		log := d.Logger.With().Str("conn", s.ConnID).Str("user", username).Logger()
		log.Info().Msg("connected")

		defer func() {
			d.Disconnect(s)
			c.Close()
			log.Info().Msg("disconnected")
		}()

		for {
			msgType, msg, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Msg("read failed")
				}
				break
			}
			if msgType != websocket.TextMessage {
				continue
			}

			d.HandleMessage(s, msg)
		}
	})
}

// WSUpgradeMiddleware upgrades the connection to WebSocket
func WSUpgradeMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// AuthMiddleware verifies the bearer token and stores the caller's name.
func AuthMiddleware(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Get token from query param `access_token` or Authorization header
		token := c.Query("access_token")
		if token == "" {
			if authHeader := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(authHeader, "Bearer ") {
				token = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Missing token")
		}

		username, err := auth.Authenticate(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
		}

		c.Locals("username", username)
		return c.Next()
	}
}
