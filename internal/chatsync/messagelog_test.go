package chatsync

import (
	"testing"

	"taskforge-chat/internal/models"

	"github.com/stretchr/testify/assert"
)

func msg(author, text string, ts int64) models.ChatMessage {
	return models.ChatMessage{Author: author, Text: text, Timestamp: ts}
}

func timestamps(msgs []models.ChatMessage) []int64 {
	out := make([]int64, len(msgs))
	for i, m := range msgs {
		out[i] = m.Timestamp
	}
	return out
}

func TestMessageLog_IdempotentMerge(t *testing.T) {
	var log MessageLog

	assert.True(t, log.ApplyIncoming(msg("A", "hi", 1000)))
	assert.False(t, log.ApplyIncoming(msg("A", "hi", 1000)))
	assert.Equal(t, 1, log.Len())
}

func TestMessageLog_AscendingOrder(t *testing.T) {
	tests := []struct {
		name string
		ops  func(l *MessageLog)
		want []int64
	}{
		{
			name: "incoming out of order",
			ops: func(l *MessageLog) {
				l.ApplyIncoming(msg("A", "a", 500))
				l.ApplyIncoming(msg("B", "b", 100))
				l.ApplyIncoming(msg("C", "c", 300))
			},
			want: []int64{100, 300, 500},
		},
		{
			name: "historical unsorted",
			ops: func(l *MessageLog) {
				l.ApplyHistorical([]models.ChatMessage{msg("A", "x", 30), msg("A", "y", 10), msg("B", "z", 20)})
			},
			want: []int64{10, 20, 30},
		},
		{
			name: "live then historical then live",
			ops: func(l *MessageLog) {
				l.ApplyIncoming(msg("A", "late", 900))
				l.ApplyHistorical([]models.ChatMessage{msg("B", "old", 200), msg("C", "older", 100)})
				l.ApplyIncoming(msg("D", "mid", 500))
			},
			want: []int64{100, 200, 500},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var log MessageLog
			tt.ops(&log)
			assert.Equal(t, tt.want, timestamps(log.Messages()))
		})
	}
}

func TestMessageLog_TiesKeepInsertionOrder(t *testing.T) {
	var log MessageLog
	log.ApplyIncoming(msg("A", "first", 100))
	log.ApplyIncoming(msg("B", "second", 100))
	log.ApplyIncoming(msg("C", "early", 50))
	log.ApplyIncoming(msg("D", "third", 100))

	got := log.Messages()
	assert.Equal(t, []string{"early", "first", "second", "third"},
		[]string{got[0].Text, got[1].Text, got[2].Text, got[3].Text})
}

func TestMessageLog_HistoricalCollapsesDuplicates(t *testing.T) {
	var log MessageLog
	log.ApplyIncoming(msg("X", "gone", 1))
	log.ApplyHistorical([]models.ChatMessage{msg("A", "hi", 10), msg("A", "hi", 10), msg("B", "yo", 5)})

	assert.Equal(t, []int64{5, 10}, timestamps(log.Messages()))
	assert.False(t, log.Contains(msg("X", "gone", 1)), "historical replaces the log")
}

func TestMessageLog_ServerIDs(t *testing.T) {
	var log MessageLog

	a := models.ChatMessage{ID: "m1", Author: "A", Text: "ok", Timestamp: 10}
	b := models.ChatMessage{ID: "m2", Author: "A", Text: "ok", Timestamp: 10}
	assert.True(t, log.ApplyIncoming(a))
	assert.True(t, log.ApplyIncoming(b), "distinct ids are distinct messages")
	assert.False(t, log.ApplyIncoming(models.ChatMessage{Author: "A", Text: "ok", Timestamp: 10}),
		"id-less copy falls back to the triple")
	assert.Equal(t, 2, log.Len())
}
