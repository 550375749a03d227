package httpserver

import (
	"bufio"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openStream connects to the room SSE feed and forwards its lines on a
// channel until the context is cancelled.
func openStream(t *testing.T, ts *testServer, ctx context.Context, path string) <-chan string {
	t.Helper()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+path, nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 64)
	go func() {
		defer resp.Body.Close()
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

// waitForLine reads stream lines until one matches the predicate.
func waitForLine(t *testing.T, lines <-chan string, match func(string) bool) string {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case line, open := <-lines:
			if !open {
				t.Fatal("stream closed before expected line")
			}
			if match(line) {
				return line
			}
		case <-deadline:
			t.Fatal("timed out waiting for stream line")
		}
	}
}

func TestStreamDeliversRoomEvents(t *testing.T) {
	ts := newTestServer(t, nil)
	roomID, _ := ts.createRoom(t, "general")
	otherID, _ := ts.createRoom(t, "other")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	lines := openStream(t, ts, ctx, "/api/v1/rooms/"+roomID+"/stream")

	// Traffic in another room must not leak into this stream.
	ts.sendMessage(t, otherID, "carol", "elsewhere")
	ts.sendMessage(t, roomID, "alice", "hello stream")

	event := waitForLine(t, lines, func(l string) bool {
		return strings.HasPrefix(l, "event: message_created")
	})
	assert.Equal(t, "event: message_created", event)

	data := waitForLine(t, lines, func(l string) bool {
		return strings.HasPrefix(l, "data: ")
	})
	assert.Contains(t, data, "hello stream")
	assert.NotContains(t, data, "elsewhere")
}

func TestStreamPresenceLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)
	roomID, _ := ts.createRoom(t, "general")

	ctx, cancel := context.WithCancel(context.Background())
	lines := openStream(t, ts, ctx, "/api/v1/rooms/"+roomID+"/stream?sender=bob&sender_type=agent")

	// The joining client sees its own presence event.
	waitForLine(t, lines, func(l string) bool {
		return strings.HasPrefix(l, "event: presence_joined")
	})

	var snap struct {
		Count  int `json:"count"`
		Online []struct {
			Sender     string  `json:"sender"`
			SenderType *string `json:"sender_type"`
		} `json:"online"`
	}
	status, _ := ts.doJSON(t, http.MethodGet, "/api/v1/rooms/"+roomID+"/presence", nil, &snap)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 1, snap.Count)
	assert.Equal(t, "bob", snap.Online[0].Sender)
	require.NotNil(t, snap.Online[0].SenderType)
	assert.Equal(t, "agent", *snap.Online[0].SenderType)

	// Disconnecting empties the room's presence.
	cancel()
	assert.Eventually(t, func() bool {
		var after struct {
			Count int `json:"count"`
		}
		status, _ := ts.doJSON(t, http.MethodGet, "/api/v1/rooms/"+roomID+"/presence", nil, &after)
		return status == http.StatusOK && after.Count == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStreamAnonymousClientHasNoPresence(t *testing.T) {
	ts := newTestServer(t, nil)
	roomID, _ := ts.createRoom(t, "general")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	openStream(t, ts, ctx, "/api/v1/rooms/"+roomID+"/stream")

	time.Sleep(50 * time.Millisecond)
	var snap struct {
		Count int `json:"count"`
	}
	status, _ := ts.doJSON(t, http.MethodGet, "/api/v1/rooms/"+roomID+"/presence", nil, &snap)
	require.Equal(t, http.StatusOK, status)
	assert.Zero(t, snap.Count)
}
