package httpserver

import (
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/ratelimit"
)

func TestHealthAndStats(t *testing.T) {
	ts := newTestServer(t, nil)

	var health map[string]string
	status, _ := ts.doJSON(t, http.MethodGet, "/api/v1/health", nil, &health)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", health["status"])

	roomID, _ := ts.createRoom(t, "general")
	ts.sendMessage(t, roomID, "alice", "hello")

	var stats struct {
		Rooms         int64 `json:"rooms"`
		Messages      int64 `json:"messages"`
		ActiveStreams int   `json:"active_streams"`
	}
	status, _ = ts.doJSON(t, http.MethodGet, "/api/v1/stats", nil, &stats)
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, stats.Rooms)
	assert.EqualValues(t, 1, stats.Messages)
}

func TestRoomAdminAuth(t *testing.T) {
	ts := newTestServer(t, nil)
	roomID, key := ts.createRoom(t, "general")

	update := map[string]any{"description": "the commons"}

	// No key.
	status, _ := ts.doJSON(t, http.MethodPut, "/api/v1/rooms/"+roomID+"/", update, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	// Wrong key.
	status, _ = ts.doAdmin(t, http.MethodPut, "/api/v1/rooms/"+roomID+"/", "nope", update, nil)
	assert.Equal(t, http.StatusForbidden, status)

	// Right key.
	var room map[string]any
	status, _ = ts.doAdmin(t, http.MethodPut, "/api/v1/rooms/"+roomID+"/", key, update, &room)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "the commons", room["description"])

	// The key and its hash never appear in responses.
	var fetched map[string]any
	status, _ = ts.doJSON(t, http.MethodGet, "/api/v1/rooms/"+roomID+"/", nil, &fetched)
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, fetched, "admin_key")
	assert.NotContains(t, fetched, "admin_key_hash")
}

func TestUnknownRoomIs404(t *testing.T) {
	ts := newTestServer(t, nil)
	status, _ := ts.doJSON(t, http.MethodGet, "/api/v1/rooms/no-such-room/", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestMessageCursorPagination(t *testing.T) {
	ts := newTestServer(t, nil)
	roomID, _ := ts.createRoom(t, "general")

	for i := 0; i < 5; i++ {
		ts.sendMessage(t, roomID, "alice", fmt.Sprintf("msg %d", i))
	}

	var page []map[string]any
	status, _ := ts.doJSON(t, http.MethodGet,
		"/api/v1/rooms/"+roomID+"/messages/?limit=2", nil, &page)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, page, 2)
	// Without a cursor the latest messages come back, ascending.
	assert.Equal(t, "msg 3", page[0]["content"])
	assert.Equal(t, "msg 4", page[1]["content"])

	afterSeq := int64(page[0]["seq"].(float64))
	status, _ = ts.doJSON(t, http.MethodGet,
		"/api/v1/rooms/"+roomID+"/messages/?after="+strconv.FormatInt(afterSeq, 10), nil, &page)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, page, 1)
	assert.Equal(t, "msg 4", page[0]["content"])
}

func TestReplyToUnknownMessageIs400(t *testing.T) {
	ts := newTestServer(t, nil)
	roomID, _ := ts.createRoom(t, "general")

	status, _ := ts.doJSON(t, http.MethodPost, "/api/v1/rooms/"+roomID+"/messages/",
		map[string]any{"sender": "alice", "content": "hi", "reply_to": "ghost"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestDeleteMessageSenderAndAdmin(t *testing.T) {
	ts := newTestServer(t, nil)
	roomID, key := ts.createRoom(t, "general")

	msg := ts.sendMessage(t, roomID, "alice", "mine")
	other := ts.sendMessage(t, roomID, "bob", "his")

	msgPath := func(m map[string]any) string {
		return "/api/v1/rooms/" + roomID + "/messages/" + m["id"].(string) + "/"
	}

	// A stranger cannot delete someone else's message.
	status, _ := ts.doJSON(t, http.MethodDelete, msgPath(other)+"?sender=alice", nil, nil)
	assert.Equal(t, http.StatusForbidden, status)

	// The sender can.
	status, _ = ts.doJSON(t, http.MethodDelete, msgPath(msg)+"?sender=alice", nil, nil)
	assert.Equal(t, http.StatusNoContent, status)

	// So can an admin.
	status, _ = ts.doAdmin(t, http.MethodDelete, msgPath(other), key, nil, nil)
	assert.Equal(t, http.StatusNoContent, status)
}

func TestRateLimitHeadersAndPayload(t *testing.T) {
	ts := newTestServer(t, map[ratelimit.Bucket]ratelimit.Limit{
		ratelimit.BucketMessages: {Max: 2, Window: time.Minute},
	})
	roomID, _ := ts.createRoom(t, "general")

	body := map[string]any{"sender": "alice", "content": "hi"}
	path := "/api/v1/rooms/" + roomID + "/messages/"

	status, headers := ts.doJSON(t, http.MethodPost, path, body, nil)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "2", headers.Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", headers.Get("X-RateLimit-Remaining"))

	status, _ = ts.doJSON(t, http.MethodPost, path, body, nil)
	require.Equal(t, http.StatusCreated, status)

	var denied struct {
		Error          string `json:"error"`
		Limit          int    `json:"limit"`
		Remaining      int    `json:"remaining"`
		RetryAfterSecs int64  `json:"retry_after_secs"`
	}
	status, headers = ts.doJSON(t, http.MethodPost, path, body, &denied)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, 2, denied.Limit)
	assert.Equal(t, 0, denied.Remaining)
	assert.Positive(t, denied.RetryAfterSecs)
	assert.NotEmpty(t, headers.Get("Retry-After"))
}

func TestActivityExcludesCommaSeparatedSenders(t *testing.T) {
	ts := newTestServer(t, nil)
	roomID, _ := ts.createRoom(t, "general")

	ts.sendMessage(t, roomID, "alice", "from alice")
	ts.sendMessage(t, roomID, "bob", "from bob")
	ts.sendMessage(t, roomID, "carol", "from carol")

	var msgs []map[string]any
	status, _ := ts.doJSON(t, http.MethodGet,
		"/api/v1/activity?exclude_sender=alice,bob", nil, &msgs)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, msgs, 1)
	assert.Equal(t, "carol", msgs[0]["sender"])
}

func TestUnreadAcrossRooms(t *testing.T) {
	ts := newTestServer(t, nil)
	roomA, _ := ts.createRoom(t, "alpha")
	roomB, _ := ts.createRoom(t, "beta")

	ts.sendMessage(t, roomA, "alice", "one")
	ts.sendMessage(t, roomA, "alice", "two")
	last := ts.sendMessage(t, roomB, "alice", "three")

	// Bob catches up in beta only.
	status, _ := ts.doJSON(t, http.MethodPut, "/api/v1/rooms/"+roomB+"/read",
		map[string]any{"sender": "bob", "last_read_seq": int64(last["seq"].(float64))}, nil)
	require.Equal(t, http.StatusOK, status)

	var summary struct {
		TotalUnread int64 `json:"total_unread"`
		Rooms       []struct {
			RoomID      string `json:"room_id"`
			UnreadCount int64  `json:"unread_count"`
		} `json:"rooms"`
	}
	status, _ = ts.doJSON(t, http.MethodGet, "/api/v1/unread?sender=bob", nil, &summary)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, summary.TotalUnread)
	require.Len(t, summary.Rooms, 1)
	assert.Equal(t, roomA, summary.Rooms[0].RoomID)
}

func TestFileUploadDownloadRoundTrip(t *testing.T) {
	ts := newTestServer(t, nil)
	roomID, _ := ts.createRoom(t, "general")

	var uploaded map[string]any
	status, _ := ts.doJSON(t, http.MethodPost, "/api/v1/rooms/"+roomID+"/files/",
		map[string]any{
			"sender":       "alice",
			"filename":     "notes.txt",
			"content_type": "text/plain",
			"data":         "aGVsbG8gd29ybGQ=", // "hello world"
		}, &uploaded)
	require.Equal(t, http.StatusCreated, status)

	resp, err := ts.Client().Get(ts.URL + "/api/v1/files/" + uploaded["id"].(string) + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))

	buf := make([]byte, 64)
	n, _ := resp.Body.Read(buf)
	assert.Equal(t, "hello world", string(buf[:n]))
}

func TestHookPostCreatesMessage(t *testing.T) {
	ts := newTestServer(t, nil)
	roomID, key := ts.createRoom(t, "general")

	var hook struct {
		Token string `json:"token"`
	}
	status, _ := ts.doAdmin(t, http.MethodPost, "/api/v1/rooms/"+roomID+"/incoming-webhooks/", key,
		map[string]any{"name": "ci-bot"}, &hook)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, hook.Token)

	var msg map[string]any
	status, _ = ts.doJSON(t, http.MethodPost, "/api/v1/hook/"+hook.Token,
		map[string]any{"content": "build passed"}, &msg)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "ci-bot", msg["sender"])
	assert.Equal(t, "build passed", msg["content"])
}
