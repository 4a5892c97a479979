package services

import (
	"context"

	"taskforge-chat/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore keeps rooms and messages in PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) EnsureRoom(ctx context.Context, roomID string) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO chat_rooms (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, roomID)
	return err
}

func (s *PGStore) RoomExists(ctx context.Context, roomID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM chat_rooms WHERE id = $1)`, roomID).Scan(&exists)
	return exists, err
}

func (s *PGStore) SaveMessage(ctx context.Context, msg models.ChatMessage) error {
	query := `INSERT INTO chat_messages (id, room_id, author, body, sent_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := s.pool.Exec(ctx, query, msg.ID, msg.RoomID, msg.Author, msg.Text, msg.Timestamp)
	return err
}

func (s *PGStore) RecentMessages(ctx context.Context, roomID string, limit int) ([]models.ChatMessage, error) {
	query := `SELECT id, room_id, author, body, sent_at FROM chat_messages WHERE room_id = $1 ORDER BY sent_at DESC LIMIT $2`
	rows, err := s.pool.Query(ctx, query, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.ChatMessage, 0, limit)
	for rows.Next() {
		var msg models.ChatMessage
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.Author, &msg.Text, &msg.Timestamp); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to show oldest first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
