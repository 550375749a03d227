package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/bus"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/presence"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/store/sqlite"
)

// testEnv wires the services against a real store and bus, the way main does.
type testEnv struct {
	store    *sqlite.Store
	bus      *bus.Bus
	rooms    *RoomService
	messages *MessageService
	dms      *DMService
	files    *FileService
	profiles *ProfileService
	queries  *QueryService
	reads    *ReadService
	webhooks *WebhookService
	exports  *ExportService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	b := bus.New(16)
	typing := presence.NewTypingTracker(2 * time.Second)

	msgs := NewMessageService(st, st, st, b, typing)
	return &testEnv{
		store:    st,
		bus:      b,
		rooms:    NewRoomService(st),
		messages: msgs,
		dms:      NewDMService(st, msgs),
		files:    NewFileService(st, st, b),
		profiles: NewProfileService(st),
		queries:  NewQueryService(st, st, st, st),
		reads:    NewReadService(st, st, st, b),
		webhooks: NewWebhookService(st, st, msgs),
		exports:  NewExportService(st, st),
	}
}

func (e *testEnv) mkRoom(t *testing.T, name string) *domain.Room {
	t.Helper()
	room, _, err := e.rooms.Create(context.Background(), RoomCreateInput{Name: name})
	require.NoError(t, err)
	return room
}

func (e *testEnv) send(t *testing.T, roomID, sender, content string) *domain.Message {
	t.Helper()
	m, err := e.messages.Send(context.Background(), roomID, MessageSendInput{Sender: sender, Content: content})
	require.NoError(t, err)
	return m
}

// drainKinds collects the kinds currently buffered on a subscription.
func drainKinds(sub *bus.Subscription) []domain.EventKind {
	var kinds []domain.EventKind
	for {
		select {
		case ev := <-sub.Events():
			kinds = append(kinds, ev.Kind)
		default:
			return kinds
		}
	}
}
