package tui

import "taskforge-chat/internal/chatsync"

// Updates carries snapshots from the chatsync loop to the view. Only the
// newest pending snapshot is kept, so Push never blocks the loop.
type Updates struct {
	ch chan chatsync.Snapshot
}

func NewUpdates() *Updates {
	return &Updates{ch: make(chan chatsync.Snapshot, 1)}
}

// Push is meant for chatsync.WithOnChange; it must only be called from one
// goroutine.
func (u *Updates) Push(s chatsync.Snapshot) {
	select {
	case <-u.ch:
	default:
	}
	select {
	case u.ch <- s:
	default:
	}
}
