package history

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"taskforge-chat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rooms/board-7/messages", r.URL.Path)
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"m1","author":"bob","text":"hi","timestamp":100},{"author":"amy","text":"yo","timestamp":200}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", time.Second)
	msgs, err := c.FetchMessages(context.Background(), "board-7", 25)
	require.NoError(t, err)

	assert.Equal(t, []models.ChatMessage{
		{ID: "m1", RoomID: "board-7", Author: "bob", Text: "hi", Timestamp: 100},
		{RoomID: "board-7", Author: "amy", Text: "yo", Timestamp: 200},
	}, msgs)
}

func TestFetchMessagesStatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		anyErr  bool
	}{
		{name: "not found", status: http.StatusNotFound, wantErr: models.ErrRoomNotFound},
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: models.ErrUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, wantErr: models.ErrUnauthorized},
		{name: "server error", status: http.StatusBadGateway, anyErr: true},
		{name: "bad body", status: http.StatusOK, body: `{"not":"a list"}`, anyErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "", time.Second).FetchMessages(context.Background(), "42", 10)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NotErrorIs(t, err, models.ErrRoomNotFound)
				assert.NotErrorIs(t, err, models.ErrUnauthorized)
			}
		})
	}
}

func TestFetchMessagesCoalescesConcurrentCalls(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 2*time.Second)
	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := c.FetchMessages(context.Background(), "42", 10)
			done <- err
		}()
	}

	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	require.NoError(t, <-done)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchMessagesUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "", 200*time.Millisecond)
	_, err := c.FetchMessages(context.Background(), "42", 10)
	assert.Error(t, err)
}
