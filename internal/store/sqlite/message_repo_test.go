package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
)

func TestSeqIsGloballyMonotonic(t *testing.T) {
	s := newTestStore(t)

	a := mkRoom(t, s, "room-a")
	b := mkRoom(t, s, "room-b")

	var last int64
	for i := 0; i < 6; i++ {
		room := a.ID
		if i%2 == 1 {
			room = b.ID
		}
		m := mkMessage(t, s, room, "alice", fmt.Sprintf("msg %d", i))
		assert.Greater(t, m.Seq, last)
		last = m.Seq
	}
}

func TestSeqSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/chat.db"

	s, err := Open(path)
	require.NoError(t, err)
	r := mkRoom(t, s, "general")
	m1 := mkMessage(t, s, r.ID, "alice", "first")
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	m2 := mkMessage(t, s2, r.ID, "alice", "second")
	assert.Greater(t, m2.Seq, m1.Seq)
}

func TestReplyToIntegrity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mkRoom(t, s, "room-a")
	b := mkRoom(t, s, "room-b")
	parent := mkMessage(t, s, a.ID, "alice", "parent")

	missing := "no-such-id"
	err := s.InsertMessage(ctx, &domain.Message{RoomID: a.ID, Sender: "bob", Content: "x", ReplyTo: &missing})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = s.InsertMessage(ctx, &domain.Message{RoomID: b.ID, Sender: "bob", Content: "x", ReplyTo: &parent.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	require.NoError(t, s.InsertMessage(ctx,
		&domain.Message{RoomID: a.ID, Sender: "bob", Content: "reply", ReplyTo: &parent.ID}))
}

func TestEditMessagePreservesSeqAndRecordsHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := mkRoom(t, s, "general")
	m := mkMessage(t, s, r.ID, "alice", "v1")

	_, err := s.EditMessage(ctx, r.ID, m.ID, "mallory", "hacked")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	got, err := s.EditMessage(ctx, r.ID, m.ID, "alice", "v2")
	require.NoError(t, err)
	assert.Equal(t, m.Seq, got.Seq)
	assert.Equal(t, "v2", got.Content)
	assert.EqualValues(t, 1, got.EditCount)
	require.NotNil(t, got.EditedAt)

	_, err = s.EditMessage(ctx, r.ID, m.ID, "alice", "v3")
	require.NoError(t, err)

	edits, err := s.ListEdits(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, edits, 2)
	assert.Equal(t, "v1", edits[0].PreviousContent)
	assert.Equal(t, "v2", edits[1].PreviousContent)
}

func TestEditHistoryOrderIsInsertionStable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := mkRoom(t, s, "general")
	m := mkMessage(t, s, r.ID, "alice", "v0")

	// A burst of edits lands within the same truncated millisecond;
	// history order must still follow edit order.
	const revisions = 10
	for i := 1; i <= revisions; i++ {
		_, err := s.EditMessage(ctx, r.ID, m.ID, "alice", fmt.Sprintf("v%d", i))
		require.NoError(t, err)
	}

	edits, err := s.ListEdits(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, edits, revisions)
	for i, e := range edits {
		assert.Equal(t, fmt.Sprintf("v%d", i), e.PreviousContent)
	}
}

func TestListMessagesCursorPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := mkRoom(t, s, "general")
	var seqs []int64
	for i := 0; i < 10; i++ {
		m := mkMessage(t, s, r.ID, "alice", fmt.Sprintf("msg %d", i))
		seqs = append(seqs, m.Seq)
	}

	// No cursor: latest 3, ascending.
	page, err := s.ListMessages(ctx, r.ID, domain.MessageFilter{Limit: 3})
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, seqs[7], page[0].Seq)
	assert.Equal(t, seqs[9], page[2].Seq)

	// after_seq is exclusive.
	page, err = s.ListMessages(ctx, r.ID, domain.MessageFilter{AfterSeq: &seqs[7], Limit: 10})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, seqs[8], page[0].Seq)

	// before_seq: the window just below the cursor, still ascending.
	page, err = s.ListMessages(ctx, r.ID, domain.MessageFilter{BeforeSeq: &seqs[5], Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, seqs[3], page[0].Seq)
	assert.Equal(t, seqs[4], page[1].Seq)
}

func TestListThreadReturnsParentAndReplies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := mkRoom(t, s, "general")
	parent := mkMessage(t, s, r.ID, "alice", "root")
	mkMessage(t, s, r.ID, "bob", "unrelated")
	require.NoError(t, s.InsertMessage(ctx,
		&domain.Message{RoomID: r.ID, Sender: "carol", Content: "re 1", ReplyTo: &parent.ID}))
	require.NoError(t, s.InsertMessage(ctx,
		&domain.Message{RoomID: r.ID, Sender: "dave", Content: "re 2", ReplyTo: &parent.ID}))

	thread, err := s.ListThread(ctx, r.ID, parent.ID)
	require.NoError(t, err)
	require.Len(t, thread, 3)
	assert.Equal(t, parent.ID, thread[0].ID)
	assert.Equal(t, "re 1", thread[1].Content)
	assert.Equal(t, "re 2", thread[2].Content)
}

func TestSetPinnedStateConflicts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := mkRoom(t, s, "general")
	m := mkMessage(t, s, r.ID, "alice", "pin me")
	by := "admin"

	pinned, err := s.SetPinned(ctx, r.ID, m.ID, &by, true)
	require.NoError(t, err)
	assert.True(t, pinned.Pinned())

	_, err = s.SetPinned(ctx, r.ID, m.ID, &by, true)
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = s.SetPinned(ctx, r.ID, m.ID, nil, false)
	require.NoError(t, err)
	_, err = s.SetPinned(ctx, r.ID, m.ID, nil, false)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestSearchTracksEditsAndDeletes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := mkRoom(t, s, "general")
	m := mkMessage(t, s, r.ID, "alice", "deploy the zeppelin")

	hits, err := s.Search(ctx, "zeppelin", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	_, err = s.EditMessage(ctx, r.ID, m.ID, "alice", "deploy the blimp")
	require.NoError(t, err)

	hits, err = s.Search(ctx, "zeppelin", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
	hits, err = s.Search(ctx, "blimp", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	require.NoError(t, s.DeleteMessage(ctx, r.ID, m.ID))
	hits, err = s.Search(ctx, "blimp", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchQuotesUserInput(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := mkRoom(t, s, "general")
	mkMessage(t, s, r.ID, "alice", "looking for AND answers")

	// Bare FTS operators in the query must not be treated as syntax.
	hits, err := s.Search(ctx, `AND "answers`, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestPruneCandidatesExemptPinned(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := mkRoom(t, s, "general")
	var ids []string
	for i := 0; i < 5; i++ {
		m := mkMessage(t, s, r.ID, "alice", fmt.Sprintf("old %d", i))
		ids = append(ids, m.ID)
	}
	by := "admin"
	_, err := s.SetPinned(ctx, r.ID, ids[0], &by, true)
	require.NoError(t, err)

	// Candidate selection excludes the pinned message.
	oldest, err := s.NonPinnedOldest(ctx, r.ID, 10)
	require.NoError(t, err)
	assert.Len(t, oldest, 4)
	assert.NotContains(t, oldest, ids[0])

	n, err := s.PruneByIDs(ctx, oldest)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	remaining, err := s.ListMessages(ctx, r.ID, domain.MessageFilter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, ids[0], remaining[0].ID)

	hits, err := s.Search(ctx, "old", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestNonPinnedOlderThan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := mkRoom(t, s, "general")
	m := mkMessage(t, s, r.ID, "alice", "ancient")

	ids, err := s.NonPinnedOlderThan(ctx, r.ID, m.CreatedAt.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, []string{m.ID}, ids)

	ids, err = s.NonPinnedOlderThan(ctx, r.ID, m.CreatedAt.Add(-time.Second))
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMentionCandidates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := mkRoom(t, s, "general")
	mkMessage(t, s, r.ID, "bob", "hey @alice look at this")
	mkMessage(t, s, r.ID, "bob", "hey @ALICE caps too")
	mkMessage(t, s, r.ID, "alice", "talking about @alice myself")
	mkMessage(t, s, r.ID, "bob", "no mention here")

	got, err := s.MentionCandidates(ctx, "alice", domain.MentionFilter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, m := range got {
		assert.NotEqual(t, "alice", m.Sender)
	}
}

func TestUnreadMentionCandidatesRespectReadPosition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := mkRoom(t, s, "general")
	m1 := mkMessage(t, s, r.ID, "bob", "@alice first ping")
	m2 := mkMessage(t, s, r.ID, "bob", "@alice second ping")

	_, _, err := s.SetReadPosition(ctx, r.ID, "alice", m1.Seq)
	require.NoError(t, err)

	got, err := s.UnreadMentionCandidates(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, m2.ID, got[0].ID)
}
