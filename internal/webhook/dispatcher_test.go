package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/bus"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/store/sqlite"
)

func newDispatcherEnv(t *testing.T) (*sqlite.Store, *Dispatcher) {
	t.Helper()
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	d := NewDispatcher(st, bus.New(16), zerolog.Nop())
	d.backoff = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	return st, d
}

func mkHookRoom(t *testing.T, st *sqlite.Store) *domain.Room {
	t.Helper()
	r := &domain.Room{Name: "general", AdminKeyHash: "h"}
	require.NoError(t, st.CreateRoom(context.Background(), r))
	return r
}

func TestDispatchDeliversWithSignature(t *testing.T) {
	st, d := newDispatcherEnv(t)
	ctx := context.Background()
	room := mkHookRoom(t, st)

	type received struct {
		body      []byte
		signature string
	}
	got := make(chan received, 1)
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- received{body: body, signature: r.Header.Get(SignatureHeader)}
	}))
	defer sink.Close()

	secret := "s3cret"
	require.NoError(t, st.CreateOutgoingWebhook(ctx, &domain.OutgoingWebhook{
		RoomID: &room.ID, URL: sink.URL, Secret: &secret, Active: true,
	}))

	m := &domain.Message{RoomID: room.ID, Sender: "alice", Content: "hi"}
	require.NoError(t, st.InsertMessage(ctx, m))
	d.Dispatch(ctx, domain.NewMessageCreated(m))

	select {
	case r := <-got:
		assert.Equal(t, Sign(secret, r.body), r.signature)
		assert.Contains(t, string(r.body), `"message_created"`)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not delivered")
	}
}

func TestDispatchFiltersRoomAndKind(t *testing.T) {
	st, d := newDispatcherEnv(t)
	ctx := context.Background()
	room := mkHookRoom(t, st)

	var hits atomic.Int32
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer sink.Close()

	require.NoError(t, st.CreateOutgoingWebhook(ctx, &domain.OutgoingWebhook{
		RoomID: &room.ID, URL: sink.URL, Events: []string{"message_deleted"}, Active: true,
	}))

	m := &domain.Message{RoomID: room.ID, Sender: "alice", Content: "hi"}
	require.NoError(t, st.InsertMessage(ctx, m))

	// Wrong kind and wrong room: no delivery.
	d.Dispatch(ctx, domain.NewMessageCreated(m))
	d.Dispatch(ctx, domain.NewMessageDeleted("other-room", "x", 1))
	// Matching: one delivery.
	d.Dispatch(ctx, domain.NewMessageDeleted(room.ID, m.ID, m.Seq))

	assert.Eventually(t, func() bool { return hits.Load() == 1 },
		2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 1, hits.Load())
}

func TestDeliveryRetriesThenSucceeds(t *testing.T) {
	st, d := newDispatcherEnv(t)
	ctx := context.Background()
	room := mkHookRoom(t, st)

	var attempts atomic.Int32
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer sink.Close()

	require.NoError(t, st.CreateOutgoingWebhook(ctx, &domain.OutgoingWebhook{
		URL: sink.URL, Active: true,
	}))

	d.Dispatch(ctx, domain.NewMessageDeleted(room.ID, "m", 1))

	assert.Eventually(t, func() bool { return attempts.Load() == 3 },
		2*time.Second, 10*time.Millisecond)
}

func TestMatchesGlobalScope(t *testing.T) {
	ev := domain.NewMessageDeleted("room-1", "m", 1)

	global := &domain.OutgoingWebhook{Active: true}
	assert.True(t, Matches(global, ev))

	other := "room-2"
	scoped := &domain.OutgoingWebhook{RoomID: &other, Active: true}
	assert.False(t, Matches(scoped, ev))
}
