package services

import (
	"context"

	"taskforge-chat/internal/models"
)

// MessageStore keeps rooms and their messages for the relay.
type MessageStore interface {
	EnsureRoom(ctx context.Context, roomID string) error
	RoomExists(ctx context.Context, roomID string) (bool, error)
	SaveMessage(ctx context.Context, msg models.ChatMessage) error
	// RecentMessages returns the newest limit messages, oldest first.
	RecentMessages(ctx context.Context, roomID string, limit int) ([]models.ChatMessage, error)
}
