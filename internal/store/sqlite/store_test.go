package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func mkRoom(t *testing.T, s *Store, name string) *domain.Room {
	t.Helper()
	r := &domain.Room{Name: name, AdminKeyHash: "hash"}
	require.NoError(t, s.CreateRoom(context.Background(), r))
	return r
}

func mkMessage(t *testing.T, s *Store, roomID, sender, content string) *domain.Message {
	t.Helper()
	m := &domain.Message{RoomID: roomID, Sender: sender, Content: content}
	require.NoError(t, s.InsertMessage(context.Background(), m))
	return m
}
