package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
)

func TestDMCreatesCanonicalRoomOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Direction does not matter; both sends land in one canonical room.
	roomA, _, err := env.dms.Send(ctx, DMSendInput{Sender: "bob", Recipient: "alice", Content: "hey"})
	require.NoError(t, err)
	roomB, _, err := env.dms.Send(ctx, DMSendInput{Sender: "alice", Recipient: "bob", Content: "hi back"})
	require.NoError(t, err)

	assert.Equal(t, roomA.ID, roomB.ID)
	assert.Equal(t, "dm:alice|bob", roomA.Name)
	assert.Equal(t, domain.RoomTypeDM, roomA.RoomType)

	msgs, err := env.queries.Messages(ctx, roomA.ID, domain.MessageFilter{})
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestDMToSelfRejected(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.dms.Send(context.Background(),
		DMSendInput{Sender: "alice", Recipient: "alice", Content: "hi"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDMRoomsHiddenFromDefaultListing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.mkRoom(t, "general")
	_, _, err := env.dms.Send(ctx, DMSendInput{Sender: "alice", Recipient: "bob", Content: "psst"})
	require.NoError(t, err)

	rooms, err := env.rooms.List(ctx, true, nil)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "general", rooms[0].Name)

	dms, err := env.dms.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, dms, 1)

	// Get rejects standard rooms.
	_, err = env.dms.Get(ctx, rooms[0].ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	got, err := env.dms.Get(ctx, dms[0].ID)
	require.NoError(t, err)
	assert.Equal(t, dms[0].ID, got.ID)
}
