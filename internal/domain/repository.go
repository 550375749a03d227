package domain

import (
	"context"
	"time"
)

// MessageFilter narrows room-scoped message listings. AfterSeq/BeforeSeq are
// exclusive cursors; BeforeSeq selects the latest Limit rows below the bound,
// returned in ascending seq order like every other listing.
type MessageFilter struct {
	Since      *time.Time
	Before     *time.Time
	AfterSeq   *int64
	BeforeSeq  *int64
	Sender     *string
	SenderType *string
	// Limit caps the row count; 0 means the default, negative means no cap.
	Limit int
}

// ActivityFilter narrows the cross-room activity feed (newest first).
type ActivityFilter struct {
	RoomID         *string
	Sender         *string
	ExcludeSenders []string
	SenderType     *string
	Since          *time.Time
	AfterSeq       *int64
	Limit          int
}

// MentionFilter narrows mention scans for a target.
type MentionFilter struct {
	RoomID   *string
	AfterSeq *int64
	Limit    int
}

// RoomRepository defines persistence operations for rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, r *Room) error
	GetRoom(ctx context.Context, id string) (*Room, error)
	GetRoomByName(ctx context.Context, name string) (*Room, error)
	ListRooms(ctx context.Context, includeArchived bool, bookmarkSender *string) ([]*Room, error)
	ListDMRooms(ctx context.Context, sender string) ([]*Room, error)
	UpdateRoom(ctx context.Context, r *Room) error
	DeleteRoom(ctx context.Context, id string) error
	SetArchived(ctx context.Context, id string, archived bool) (*Room, error)
	ListRetentionRooms(ctx context.Context) ([]*Room, error)
}

// MessageRepository defines persistence operations for messages and the
// full-text index kept in lockstep with them.
type MessageRepository interface {
	InsertMessage(ctx context.Context, m *Message) error
	GetMessage(ctx context.Context, roomID, id string) (*Message, error)
	EditMessage(ctx context.Context, roomID, id, editor, newContent string) (*Message, error)
	DeleteMessage(ctx context.Context, roomID, id string) error
	ListMessages(ctx context.Context, roomID string, f MessageFilter) ([]*Message, error)
	ListActivity(ctx context.Context, f ActivityFilter) ([]*Message, error)
	ListThread(ctx context.Context, roomID, parentID string) ([]*Message, error)
	ListEdits(ctx context.Context, messageID string) ([]*EditEntry, error)
	SetPinned(ctx context.Context, roomID, id string, pinnedBy *string, pinned bool) (*Message, error)
	ListPinned(ctx context.Context, roomID string) ([]*Message, error)
	Search(ctx context.Context, query string, limit int) ([]*Message, error)
	LatestSeqPerRoom(ctx context.Context) (map[string]int64, error)
	CountMessages(ctx context.Context) (int64, error)
	NonPinnedOldest(ctx context.Context, roomID string, excess int64) ([]string, error)
	NonPinnedOlderThan(ctx context.Context, roomID string, cutoff time.Time) ([]string, error)
	NonPinnedCount(ctx context.Context, roomID string) (int64, error)
	PruneByIDs(ctx context.Context, ids []string) (int64, error)
	MentionCandidates(ctx context.Context, target string, f MentionFilter) ([]*Message, error)
	UnreadMentionCandidates(ctx context.Context, target string) ([]*Message, error)
}

// ReactionRepository defines persistence operations for reactions.
type ReactionRepository interface {
	AddReaction(ctx context.Context, r *Reaction) error
	RemoveReaction(ctx context.Context, messageID, emoji, sender string) error
	ListRoomReactions(ctx context.Context, roomID string) ([]*Reaction, error)
	ListMessageReactions(ctx context.Context, messageID string) ([]*Reaction, error)
}

// FileRepository defines persistence operations for uploaded files.
type FileRepository interface {
	InsertFile(ctx context.Context, f *File) error
	GetFileInfo(ctx context.Context, id string) (*File, error)
	GetFileData(ctx context.Context, id string) (*File, error)
	ListFiles(ctx context.Context, roomID string) ([]*File, error)
	DeleteFile(ctx context.Context, id string) error
}

// ProfileRepository defines persistence operations for profiles.
type ProfileRepository interface {
	UpsertProfile(ctx context.Context, p *Profile) (*Profile, error)
	GetProfile(ctx context.Context, sender string) (*Profile, error)
	DeleteProfile(ctx context.Context, sender string) error
	ListProfiles(ctx context.Context, senderType *string) ([]*Profile, error)
}

// ReadPositionRepository defines persistence operations for read positions.
type ReadPositionRepository interface {
	SetReadPosition(ctx context.Context, roomID, sender string, seq int64) (*ReadPosition, bool, error)
	ListRoomReadPositions(ctx context.Context, roomID string) ([]*ReadPosition, error)
	ListSenderReadPositions(ctx context.Context, sender string) ([]*ReadPosition, error)
}

// BookmarkRepository defines persistence operations for bookmarks.
type BookmarkRepository interface {
	SetBookmark(ctx context.Context, roomID, sender string) (*Bookmark, error)
	DeleteBookmark(ctx context.Context, roomID, sender string) error
	ListBookmarks(ctx context.Context, sender string) ([]*Bookmark, error)
}

// WebhookRepository defines persistence operations for incoming and outgoing
// webhooks.
type WebhookRepository interface {
	CreateOutgoingWebhook(ctx context.Context, w *OutgoingWebhook) error
	ListOutgoingWebhooks(ctx context.Context, roomID *string) ([]*OutgoingWebhook, error)
	ListActiveOutgoingWebhooks(ctx context.Context) ([]*OutgoingWebhook, error)
	UpdateOutgoingWebhook(ctx context.Context, w *OutgoingWebhook) error
	DeleteOutgoingWebhook(ctx context.Context, roomID *string, id string) error
	CreateIncomingWebhook(ctx context.Context, w *IncomingWebhook) error
	ListIncomingWebhooks(ctx context.Context, roomID string) ([]*IncomingWebhook, error)
	GetIncomingWebhookByToken(ctx context.Context, token string) (*IncomingWebhook, error)
	UpdateIncomingWebhook(ctx context.Context, w *IncomingWebhook) error
	DeleteIncomingWebhook(ctx context.Context, roomID, id string) error
}

// Stats summarises store contents for the /stats endpoint.
type Stats struct {
	Rooms    int64 `json:"rooms"`
	Messages int64 `json:"messages"`
	Files    int64 `json:"files"`
	Profiles int64 `json:"profiles"`
}

// StatsRepository exposes aggregate counts.
type StatsRepository interface {
	GetStats(ctx context.Context) (*Stats, error)
}
