package domain

import (
	"encoding/json"
	"time"
)

// Room types.
const (
	RoomTypeStandard = "standard"
	RoomTypeDM       = "dm"
)

// Sender types.
const (
	SenderTypeAgent = "agent"
	SenderTypeHuman = "human"
)

// Room represents a chat room. AdminKeyHash is never serialized; the
// plaintext admin key is returned exactly once at creation time.
type Room struct {
	ID           string     `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Description  *string    `db:"description" json:"description,omitempty"`
	CreatedBy    *string    `db:"created_by" json:"created_by,omitempty"`
	AdminKeyHash string     `db:"admin_key_hash" json:"-"`
	MaxMessages  *int64     `db:"max_messages" json:"max_messages,omitempty"`
	MaxAgeHours  *int64     `db:"max_age_hours" json:"max_age_hours,omitempty"`
	RoomType     string     `db:"room_type" json:"room_type"`
	ArchivedAt   *time.Time `db:"archived_at" json:"archived_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`

	// Bookmarked is populated by room listings when a sender is supplied.
	Bookmarked bool `db:"-" json:"bookmarked,omitempty"`
}

// Archived reports whether the room is archived.
func (r *Room) Archived() bool { return r.ArchivedAt != nil }

// Message represents a single chat message. Seq is the global monotonic
// ordering used as the cursor anchor for all paginated reads.
type Message struct {
	ID         string          `db:"id" json:"id"`
	RoomID     string          `db:"room_id" json:"room_id"`
	Seq        int64           `db:"seq" json:"seq"`
	Sender     string          `db:"sender" json:"sender"`
	SenderType *string         `db:"sender_type" json:"sender_type,omitempty"`
	Content    string          `db:"content" json:"content"`
	Metadata   json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	ReplyTo    *string         `db:"reply_to" json:"reply_to,omitempty"`
	EditedAt   *time.Time      `db:"edited_at" json:"edited_at,omitempty"`
	PinnedAt   *time.Time      `db:"pinned_at" json:"pinned_at,omitempty"`
	PinnedBy   *string         `db:"pinned_by" json:"pinned_by,omitempty"`
	EditCount  int64           `db:"edit_count" json:"edit_count"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// Pinned reports whether the message is currently pinned.
func (m *Message) Pinned() bool { return m.PinnedAt != nil }

// EditEntry captures the content a message had before an edit.
type EditEntry struct {
	ID              string    `db:"id" json:"id"`
	MessageID       string    `db:"message_id" json:"message_id"`
	PreviousContent string    `db:"previous_content" json:"previous_content"`
	Editor          string    `db:"editor" json:"editor"`
	EditedAt        time.Time `db:"edited_at" json:"edited_at"`
}

// Reaction is an emoji reaction on a message, unique per (message, emoji, sender).
type Reaction struct {
	MessageID string    `db:"message_id" json:"message_id"`
	Emoji     string    `db:"emoji" json:"emoji"`
	Sender    string    `db:"sender" json:"sender"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// File is an uploaded attachment. Data is only populated when the raw bytes
// are explicitly requested.
type File struct {
	ID          string    `db:"id" json:"id"`
	RoomID      string    `db:"room_id" json:"room_id"`
	Sender      string    `db:"sender" json:"sender"`
	Filename    string    `db:"filename" json:"filename"`
	ContentType *string   `db:"content_type" json:"content_type,omitempty"`
	Size        int64     `db:"size" json:"size"`
	Data        []byte    `db:"data" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Profile is a sender's self-maintained profile. CreatedAt survives upserts.
type Profile struct {
	Sender      string          `db:"sender" json:"sender"`
	DisplayName *string         `db:"display_name" json:"display_name,omitempty"`
	SenderType  *string         `db:"sender_type" json:"sender_type,omitempty"`
	AvatarURL   *string         `db:"avatar_url" json:"avatar_url,omitempty"`
	Bio         *string         `db:"bio" json:"bio,omitempty"`
	StatusText  *string         `db:"status_text" json:"status_text,omitempty"`
	Metadata    json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// ReadPosition tracks how far a sender has read in a room. Updates are
// monotonic: attempts to move the position backwards are ignored.
type ReadPosition struct {
	RoomID      string    `db:"room_id" json:"room_id"`
	Sender      string    `db:"sender" json:"sender"`
	LastReadSeq int64     `db:"last_read_seq" json:"last_read_seq"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Bookmark marks a room as bookmarked by a sender.
type Bookmark struct {
	RoomID       string    `db:"room_id" json:"room_id"`
	Sender       string    `db:"sender" json:"sender"`
	BookmarkedAt time.Time `db:"bookmarked_at" json:"bookmarked_at"`
}

// OutgoingWebhook forwards selected chat events to an external URL.
// A nil RoomID subscribes to events from all rooms.
type OutgoingWebhook struct {
	ID        string    `db:"id" json:"id"`
	RoomID    *string   `db:"room_id" json:"room_id,omitempty"`
	URL       string    `db:"url" json:"url"`
	Events    []string  `db:"events" json:"events"`
	Secret    *string   `db:"secret" json:"-"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// WantsEvent reports whether the webhook subscribes to the given event kind.
// An empty events list subscribes to everything.
func (w *OutgoingWebhook) WantsEvent(kind EventKind) bool {
	if len(w.Events) == 0 {
		return true
	}
	for _, e := range w.Events {
		if e == string(kind) {
			return true
		}
	}
	return false
}

// IncomingWebhook lets external producers post into a room with a token
// instead of admin credentials. Tokens carry the "whk_" prefix.
type IncomingWebhook struct {
	ID        string    `db:"id" json:"id"`
	RoomID    string    `db:"room_id" json:"room_id"`
	Name      string    `db:"name" json:"name"`
	Token     string    `db:"token" json:"token"`
	Active    bool      `db:"active" json:"active"`
	CreatedBy *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// RoomUnread is the per-room unread summary for a sender.
type RoomUnread struct {
	RoomID      string `json:"room_id"`
	RoomName    string `json:"room_name"`
	LastReadSeq int64  `json:"last_read_seq"`
	LatestSeq   int64  `json:"latest_seq"`
	UnreadCount int64  `json:"unread_count"`
}

// RoomMentions is the per-room unread mention summary for a target.
type RoomMentions struct {
	RoomID       string `json:"room_id"`
	RoomName     string `json:"room_name"`
	MentionCount int64  `json:"mention_count"`
}

// BroadcastResult reports the per-room outcome of a broadcast send.
type BroadcastResult struct {
	RoomID  string   `json:"room_id"`
	Message *Message `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Ok reports whether the broadcast to this room succeeded.
func (b *BroadcastResult) Ok() bool { return b.Error == "" }
