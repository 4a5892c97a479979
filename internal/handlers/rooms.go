package handlers

import (
	"sort"
	"sync"

	"taskforge-chat/internal/models"
	"taskforge-chat/internal/utils"
)

// peer wraps one connection; fiber's websocket conn is not safe for
// concurrent writes, so every write goes through mu.
type peer struct {
	mu   sync.Mutex
	conn utils.JSONWriter
	user string
}

func (p *peer) send(event string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return utils.SendEvent(p.conn, event, payload)
}

type RoomManager struct {
	// roomName -> connectionID -> peer
	rooms map[string]map[string]*peer
	mu    sync.RWMutex
}

func NewRoomManager() *RoomManager {
	return &RoomManager{rooms: make(map[string]map[string]*peer)}
}

// Join adds the connection to room under the given display name.
func (m *RoomManager) Join(room, connID string, p *peer, user string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[room]; !ok {
		m.rooms[room] = make(map[string]*peer)
	}
	p.user = user
	m.rooms[room][connID] = p
}

// Leave removes the connection from room and reports whether it was there.
func (m *RoomManager) Leave(room, connID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	conns, ok := m.rooms[room]
	if !ok {
		return false
	}
	if _, ok := conns[connID]; !ok {
		return false
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(m.rooms, room)
	}
	return true
}

// Roster lists the distinct display names present in room, sorted.
func (m *RoomManager) Roster(room string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	users := make([]string, 0, len(m.rooms[room]))
	for _, p := range m.rooms[room] {
		if _, dup := seen[p.user]; dup {
			continue
		}
		seen[p.user] = struct{}{}
		users = append(users, p.user)
	}
	sort.Strings(users)
	return users
}

// Broadcast sends event to every connection in room except excludeConnID.
func (m *RoomManager) Broadcast(room, event string, payload interface{}, excludeConnID string) {
	m.mu.RLock()
	peers := make([]*peer, 0, len(m.rooms[room]))
	for id, p := range m.rooms[room] {
		if id == excludeConnID {
			continue
		}
		peers = append(peers, p)
	}
	m.mu.RUnlock()

	for _, p := range peers {
		// A failed write is left to the reader loop, which sees the
		// broken connection and cleans up.
		if err := p.send(event, payload); err != nil {
			utils.LogError(err, "Broadcast")
		}
	}
}

// BroadcastRoster pushes the current roster of room to all its members.
func (m *RoomManager) BroadcastRoster(room string) {
	m.Broadcast(room, models.EventPresence, models.PresencePayload{
		RoomID: room,
		Users:  m.Roster(room),
	}, "")
}

// IsUserInRoom checks if a display name is currently present in room.
func (m *RoomManager) IsUserInRoom(user, room string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.rooms[room] {
		if p.user == user {
			return true
		}
	}
	return false
}

// RoomCount returns the number of rooms with at least one connection.
func (m *RoomManager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}
