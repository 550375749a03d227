package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/bus"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/config"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/presence"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/ratelimit"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/service"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/store/sqlite"
)

type testServer struct {
	*httptest.Server
	store *sqlite.Store
}

// newTestServer stands up the full router over a throwaway database. Pass
// limits to exercise rate limiting; nil leaves every bucket unlimited.
func newTestServer(t *testing.T, limits map[ratelimit.Bucket]ratelimit.Limit) *testServer {
	t.Helper()

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	if limits == nil {
		limits = map[ratelimit.Bucket]ratelimit.Limit{}
	}

	eventBus := bus.New(64)
	typing := presence.NewTypingTracker(2 * time.Second)
	messages := service.NewMessageService(st, st, st, eventBus, typing)

	router := NewRouter(Deps{
		Config:   &config.Config{Env: "test", Port: 8000, CORSOrigins: []string{"*"}},
		Log:      zerolog.Nop(),
		Rooms:    service.NewRoomService(st),
		Messages: messages,
		DMs:      service.NewDMService(st, messages),
		Files:    service.NewFileService(st, st, eventBus),
		Profiles: service.NewProfileService(st),
		Queries:  service.NewQueryService(st, st, st, st),
		Reads:    service.NewReadService(st, st, st, eventBus),
		Webhooks: service.NewWebhookService(st, st, messages),
		Exports:  service.NewExportService(st, st),
		Stats:    st,
		Bus:      eventBus,
		Presence: presence.NewTracker(),
		Limiter:  ratelimit.New(limits),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, store: st}
}

// doJSON performs one request with a JSON body and decodes the JSON
// response into out when it is non-nil.
func (ts *testServer) doJSON(t *testing.T, method, path string, body, out any) (int, http.Header) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode, resp.Header
}

// doAdmin is doJSON with a bearer admin key attached.
func (ts *testServer) doAdmin(t *testing.T, method, path, key string, body, out any) (int, http.Header) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode, resp.Header
}

// createRoom makes a room over the API and returns its ID and admin key.
func (ts *testServer) createRoom(t *testing.T, name string) (id, adminKey string) {
	t.Helper()
	var room struct {
		ID       string `json:"id"`
		AdminKey string `json:"admin_key"`
	}
	status, _ := ts.doJSON(t, http.MethodPost, "/api/v1/rooms/",
		map[string]any{"name": name}, &room)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, room.ID)
	require.NotEmpty(t, room.AdminKey)
	return room.ID, room.AdminKey
}

// sendMessage posts a message and returns its decoded body.
func (ts *testServer) sendMessage(t *testing.T, roomID, sender, content string) map[string]any {
	t.Helper()
	var msg map[string]any
	status, _ := ts.doJSON(t, http.MethodPost, "/api/v1/rooms/"+roomID+"/messages/",
		map[string]any{"sender": sender, "content": content}, &msg)
	require.Equal(t, http.StatusCreated, status)
	return msg
}
