package httpserver

import (
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
)

func TestWebSocketDeliversRoomEvents(t *testing.T) {
	ts := newTestServer(t, nil)
	roomID, _ := ts.createRoom(t, "general")

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/rooms/" + roomID + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	ts.sendMessage(t, roomID, "alice", "over the socket")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev domain.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, domain.EventMessageCreated, ev.Kind)
	assert.Equal(t, roomID, ev.RoomID)
}
