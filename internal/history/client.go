// Package history fetches a room's recent messages from the REST API.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"taskforge-chat/internal/models"

	"github.com/valyala/fasthttp"
	"golang.org/x/sync/singleflight"
)

// Client calls GET {base}/rooms/{roomId}/messages?limit=N.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	http    *fasthttp.Client
	group   singleflight.Group
}

// NewClient builds a client for baseURL authenticated with token. timeout
// applies when the caller's context has no deadline.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		timeout: timeout,
		http: &fasthttp.Client{
			Name:         "taskforge-chat",
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
	}
}

// FetchMessages returns up to limit messages for roomID. Identical calls
// in flight at the same time share one request.
//
// A 404 yields models.ErrRoomNotFound, 401/403 models.ErrUnauthorized; any
// other failure is returned wrapped and is worth retrying.
func (c *Client) FetchMessages(ctx context.Context, roomID string, limit int) ([]models.ChatMessage, error) {
	key := roomID + "?" + strconv.Itoa(limit)
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		return c.fetch(ctx, roomID, limit)
	})
	if err != nil {
		return nil, err
	}
	shared := v.([]models.ChatMessage)
	out := make([]models.ChatMessage, len(shared))
	copy(out, shared)
	return out, nil
}

func (c *Client) fetch(ctx context.Context, roomID string, limit int) ([]models.ChatMessage, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.endpoint(roomID, limit))
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if c.token != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+c.token)
	}

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.http.DoDeadline(req, resp, deadline)
	} else {
		err = c.http.DoTimeout(req, resp, c.timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("history: fetch room %s: %w", roomID, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("history: fetch room %s: %w", roomID, err)
	}

	switch status := resp.StatusCode(); {
	case status == fasthttp.StatusNotFound:
		return nil, models.ErrRoomNotFound
	case status == fasthttp.StatusUnauthorized, status == fasthttp.StatusForbidden:
		return nil, fmt.Errorf("history: room %s: %w", roomID, models.ErrUnauthorized)
	case status < 200 || status > 299:
		return nil, fmt.Errorf("history: room %s: unexpected status %d", roomID, status)
	}

	var payload []models.MessagePayload
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("history: decode room %s: %w", roomID, err)
	}
	msgs := make([]models.ChatMessage, 0, len(payload))
	for _, p := range payload {
		m := p.Message()
		if m.RoomID == "" {
			m.RoomID = roomID
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (c *Client) endpoint(roomID string, limit int) string {
	return fmt.Sprintf("%s/rooms/%s/messages?limit=%d", c.baseURL, url.PathEscape(roomID), limit)
}
