package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestJoinLeaveEdges(t *testing.T) {
	tr := NewTracker()

	assert.True(t, tr.Join("room-1", "alice", strPtr("agent")))
	assert.False(t, tr.Join("room-1", "alice", nil), "second connection is not a new join")

	left, _ := tr.Leave("room-1", "alice")
	assert.False(t, left, "one of two connections remains")

	left, senderType := tr.Leave("room-1", "alice")
	assert.True(t, left)
	require.NotNil(t, senderType)
	assert.Equal(t, "agent", *senderType)

	// Full departure removes the sender and the now-empty room.
	assert.Empty(t, tr.SnapshotRoom("room-1"))
	assert.Empty(t, tr.SnapshotAll())
}

func TestLeaveUnknownIsSaturating(t *testing.T) {
	tr := NewTracker()
	left, senderType := tr.Leave("room-1", "ghost")
	assert.False(t, left)
	assert.Nil(t, senderType)
}

func TestSenderTypeLatch(t *testing.T) {
	tr := NewTracker()
	tr.Join("room-1", "alice", nil)
	tr.Join("room-1", "alice", strPtr("human"))
	// A later conflicting type does not overwrite the latched one.
	tr.Join("room-1", "alice", strPtr("agent"))

	entries := tr.SnapshotRoom("room-1")
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].SenderType)
	assert.Equal(t, "human", *entries[0].SenderType)
	assert.Equal(t, 3, entries[0].Connections)
}

func TestSnapshotSortedBySender(t *testing.T) {
	tr := NewTracker()
	tr.Join("room-1", "zoe", nil)
	tr.Join("room-1", "alice", nil)
	tr.Join("room-2", "bob", nil)

	entries := tr.SnapshotRoom("room-1")
	require.Len(t, entries, 2)
	assert.Equal(t, "alice", entries[0].Sender)
	assert.Equal(t, "zoe", entries[1].Sender)

	all := tr.SnapshotAll()
	assert.Len(t, all, 2)
	assert.Len(t, all["room-2"], 1)
}

func TestTypingDedup(t *testing.T) {
	tr := NewTypingTracker(2 * time.Second)
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return current }

	assert.True(t, tr.ShouldNotify("room-1", "alice"))
	assert.False(t, tr.ShouldNotify("room-1", "alice"))
	assert.True(t, tr.ShouldNotify("room-1", "bob"), "dedup is per sender")
	assert.True(t, tr.ShouldNotify("room-2", "alice"), "dedup is per room")

	current = current.Add(1 * time.Second)
	assert.False(t, tr.ShouldNotify("room-1", "alice"))

	current = current.Add(1 * time.Second)
	assert.True(t, tr.ShouldNotify("room-1", "alice"), "window elapsed")
}
