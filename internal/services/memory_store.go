package services

import (
	"context"
	"sort"
	"sync"

	"taskforge-chat/internal/models"
)

// maxHistorySize is the maximum number of messages to keep per room.
const maxHistorySize = 500

// MemoryStore is the MessageStore used when no database is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[string][]models.ChatMessage // roomID -> messages
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{messages: make(map[string][]models.ChatMessage)}
}

func (s *MemoryStore) EnsureRoom(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[roomID]; !ok {
		s.messages[roomID] = make([]models.ChatMessage, 0)
	}
	return nil
}

func (s *MemoryStore) RoomExists(_ context.Context, roomID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.messages[roomID]
	return ok, nil
}

func (s *MemoryStore) SaveMessage(_ context.Context, msg models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := append(s.messages[msg.RoomID], msg)
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Timestamp < msgs[j].Timestamp })
	if len(msgs) > maxHistorySize {
		msgs = msgs[len(msgs)-maxHistorySize:]
	}
	s.messages[msg.RoomID] = msgs
	return nil
}

func (s *MemoryStore) RecentMessages(_ context.Context, roomID string, limit int) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[roomID]
	if limit <= 0 || limit > len(msgs) {
		limit = len(msgs)
	}
	out := make([]models.ChatMessage, limit)
	copy(out, msgs[len(msgs)-limit:])
	return out, nil
}
