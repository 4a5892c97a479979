package handlers

import (
	"errors"
	"net/http"

	"taskforge-chat/internal/models"
	"taskforge-chat/internal/services"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// GetMessagesHandler serves GET /rooms/:roomId/messages?limit=N.
func GetMessagesHandler(chat *services.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := parseHistoryQuery(c)
		if err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		msgs, err := chat.GetRecentMessages(c.Context(), q.RoomID, q.Limit)
		if errors.Is(err, models.ErrRoomNotFound) {
			return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "room not found"})
		}
		if err != nil {
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch messages"})
		}

		out := make([]models.MessagePayload, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, models.MessagePayload{
				ID:        m.ID,
				RoomID:    m.RoomID,
				Author:    m.Author,
				Text:      m.Text,
				Timestamp: m.Timestamp,
			})
		}
		return c.JSON(out)
	}
}

func parseHistoryQuery(c *fiber.Ctx) (models.HistoryQuery, error) {
	q := models.HistoryQuery{
		RoomID: c.Params("roomId"),
		Limit:  c.QueryInt("limit", defaultHistoryLimit),
	}
	if q.RoomID == "" {
		return q, errors.New("room id required")
	}
	if q.Limit <= 0 {
		return q, errors.New("invalid limit")
	}
	if q.Limit > maxHistoryLimit {
		q.Limit = maxHistoryLimit
	}
	return q, nil
}
