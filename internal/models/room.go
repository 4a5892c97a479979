package models

// HistoryQuery is the parsed form of GET /rooms/:roomId/messages.
type HistoryQuery struct {
	RoomID string
	Limit  int
}
