package chatsync

import (
	"sort"

	"taskforge-chat/internal/models"
)

// MessageLog is the ordered, deduplicated view of one room's messages.
// It is not safe for concurrent use; the Client's event loop owns it.
type MessageLog struct {
	msgs []models.ChatMessage
}

// ApplyHistorical replaces the log with msgs, sorted ascending by timestamp.
// Duplicates inside the batch are collapsed to their first occurrence.
func (l *MessageLog) ApplyHistorical(msgs []models.ChatMessage) {
	sorted := make([]models.ChatMessage, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	l.msgs = l.msgs[:0]
	for _, m := range sorted {
		if !l.Contains(m) {
			l.msgs = append(l.msgs, m)
		}
	}
}

// ApplyIncoming inserts m unless an identical message is already present.
// Equal timestamps keep arrival order. It reports whether the log changed.
func (l *MessageLog) ApplyIncoming(m models.ChatMessage) bool {
	if l.Contains(m) {
		return false
	}
	i := sort.Search(len(l.msgs), func(i int) bool {
		return l.msgs[i].Timestamp > m.Timestamp
	})
	l.msgs = append(l.msgs, models.ChatMessage{})
	copy(l.msgs[i+1:], l.msgs[i:])
	l.msgs[i] = m
	return true
}

// Contains reports whether a message with the same identity is logged.
func (l *MessageLog) Contains(m models.ChatMessage) bool {
	for _, existing := range l.msgs {
		if existing.SameAs(m) {
			return true
		}
	}
	return false
}

// Messages returns a copy of the log.
func (l *MessageLog) Messages() []models.ChatMessage {
	out := make([]models.ChatMessage, len(l.msgs))
	copy(out, l.msgs)
	return out
}

func (l *MessageLog) Len() int { return len(l.msgs) }

func (l *MessageLog) Reset() { l.msgs = nil }
