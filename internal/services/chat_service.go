package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskforge-chat/internal/models"

	"github.com/google/uuid"
)

var ErrInvalidMessage = errors.New("message needs a room, an author and text")

type ChatService struct {
	store MessageStore
	now   func() time.Time
}

func NewChatService(store MessageStore) *ChatService {
	return &ChatService{store: store, now: time.Now}
}

// JoinRoom makes sure the room exists so its history endpoint answers 200.
func (s *ChatService) JoinRoom(ctx context.Context, roomID string) error {
	return s.store.EnsureRoom(ctx, roomID)
}

// PostMessage stamps msg with a server id (and a timestamp when the client
// sent none) and stores it.
func (s *ChatService) PostMessage(ctx context.Context, msg models.ChatMessage) (models.ChatMessage, error) {
	msg.Text = strings.TrimSpace(msg.Text)
	if msg.RoomID == "" || msg.Author == "" || msg.Text == "" {
		return msg, ErrInvalidMessage
	}
	msg.ID = uuid.New().String()
	if msg.Timestamp <= 0 {
		msg.Timestamp = s.now().UnixMilli()
	}
	if err := s.store.EnsureRoom(ctx, msg.RoomID); err != nil {
		return msg, fmt.Errorf("ensure room: %w", err)
	}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return msg, fmt.Errorf("save message: %w", err)
	}
	return msg, nil
}

// GetRecentMessages returns up to limit messages, oldest first, or
// models.ErrRoomNotFound for a room nobody has joined.
func (s *ChatService) GetRecentMessages(ctx context.Context, roomID string, limit int) ([]models.ChatMessage, error) {
	exists, err := s.store.RoomExists(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.ErrRoomNotFound
	}
	return s.store.RecentMessages(ctx, roomID, limit)
}
