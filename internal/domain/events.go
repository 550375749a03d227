package domain

import "time"

// EventKind tags the variants of a chat event.
type EventKind string

const (
	EventMessageCreated      EventKind = "message_created"
	EventMessageEdited       EventKind = "message_edited"
	EventMessageDeleted      EventKind = "message_deleted"
	EventReactionAdded       EventKind = "reaction_added"
	EventReactionRemoved     EventKind = "reaction_removed"
	EventMessagePinned       EventKind = "message_pinned"
	EventMessageUnpinned     EventKind = "message_unpinned"
	EventTyping              EventKind = "typing"
	EventPresenceJoined      EventKind = "presence_joined"
	EventPresenceLeft        EventKind = "presence_left"
	EventFileUploaded        EventKind = "file_uploaded"
	EventReadPositionUpdated EventKind = "read_position_updated"

	// EventLagged is synthesized by the bus for subscribers that fell
	// behind; it never originates from a command.
	EventLagged EventKind = "lagged"
)

// EventKinds lists every kind an outgoing webhook may subscribe to.
var EventKinds = []EventKind{
	EventMessageCreated, EventMessageEdited, EventMessageDeleted,
	EventReactionAdded, EventReactionRemoved,
	EventMessagePinned, EventMessageUnpinned,
	EventTyping, EventPresenceJoined, EventPresenceLeft,
	EventFileUploaded, EventReadPositionUpdated,
}

// ValidEventKind reports whether s names a subscribable event kind.
func ValidEventKind(s string) bool {
	for _, k := range EventKinds {
		if string(k) == s {
			return true
		}
	}
	return false
}

// Event is the tagged union carried by the event bus. Payload holds the
// kind-specific body; Seq is set for message-derived events so consumers can
// order and resume by cursor.
type Event struct {
	Kind    EventKind `json:"event"`
	RoomID  string    `json:"room_id,omitempty"`
	Seq     int64     `json:"seq,omitempty"`
	Payload any       `json:"payload"`
}

// MessageRef identifies a deleted message.
type MessageRef struct {
	RoomID    string `json:"room_id"`
	MessageID string `json:"id"`
	Seq       int64  `json:"seq"`
}

// ReactionChange describes a reaction being added or removed.
type ReactionChange struct {
	RoomID    string `json:"room_id"`
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
	Sender    string `json:"sender"`
}

// PinChange describes a message being pinned or unpinned.
type PinChange struct {
	RoomID    string  `json:"room_id"`
	MessageID string  `json:"message_id"`
	PinnedBy  *string `json:"pinned_by,omitempty"`
}

// TypingNotice describes a sender typing in a room.
type TypingNotice struct {
	RoomID string    `json:"room_id"`
	Sender string    `json:"sender"`
	At     time.Time `json:"at"`
}

// PresenceChange describes a sender joining or leaving a room stream.
type PresenceChange struct {
	RoomID     string  `json:"room_id"`
	Sender     string  `json:"sender"`
	SenderType *string `json:"sender_type,omitempty"`
}

// ReadUpdate describes a read-position advance.
type ReadUpdate struct {
	RoomID      string `json:"room_id"`
	Sender      string `json:"sender"`
	LastReadSeq int64  `json:"last_read_seq"`
}

// Lag reports how many events a slow subscriber missed.
type Lag struct {
	Missed int64 `json:"missed"`
}

func NewMessageCreated(m *Message) Event {
	return Event{Kind: EventMessageCreated, RoomID: m.RoomID, Seq: m.Seq, Payload: m}
}

func NewMessageEdited(m *Message) Event {
	return Event{Kind: EventMessageEdited, RoomID: m.RoomID, Seq: m.Seq, Payload: m}
}

func NewMessageDeleted(roomID, messageID string, seq int64) Event {
	return Event{
		Kind: EventMessageDeleted, RoomID: roomID, Seq: seq,
		Payload: MessageRef{RoomID: roomID, MessageID: messageID, Seq: seq},
	}
}

func NewReactionAdded(roomID string, r *Reaction) Event {
	return Event{
		Kind: EventReactionAdded, RoomID: roomID,
		Payload: ReactionChange{RoomID: roomID, MessageID: r.MessageID, Emoji: r.Emoji, Sender: r.Sender},
	}
}

func NewReactionRemoved(roomID, messageID, emoji, sender string) Event {
	return Event{
		Kind: EventReactionRemoved, RoomID: roomID,
		Payload: ReactionChange{RoomID: roomID, MessageID: messageID, Emoji: emoji, Sender: sender},
	}
}

func NewMessagePinned(roomID, messageID string, pinnedBy *string) Event {
	return Event{
		Kind: EventMessagePinned, RoomID: roomID,
		Payload: PinChange{RoomID: roomID, MessageID: messageID, PinnedBy: pinnedBy},
	}
}

func NewMessageUnpinned(roomID, messageID string) Event {
	return Event{
		Kind: EventMessageUnpinned, RoomID: roomID,
		Payload: PinChange{RoomID: roomID, MessageID: messageID},
	}
}

func NewTyping(roomID, sender string, at time.Time) Event {
	return Event{
		Kind: EventTyping, RoomID: roomID,
		Payload: TypingNotice{RoomID: roomID, Sender: sender, At: at},
	}
}

func NewPresenceJoined(roomID, sender string, senderType *string) Event {
	return Event{
		Kind: EventPresenceJoined, RoomID: roomID,
		Payload: PresenceChange{RoomID: roomID, Sender: sender, SenderType: senderType},
	}
}

func NewPresenceLeft(roomID, sender string, senderType *string) Event {
	return Event{
		Kind: EventPresenceLeft, RoomID: roomID,
		Payload: PresenceChange{RoomID: roomID, Sender: sender, SenderType: senderType},
	}
}

func NewFileUploaded(f *File) Event {
	return Event{Kind: EventFileUploaded, RoomID: f.RoomID, Payload: f}
}

func NewReadPositionUpdated(roomID, sender string, lastReadSeq int64) Event {
	return Event{
		Kind: EventReadPositionUpdated, RoomID: roomID,
		Payload: ReadUpdate{RoomID: roomID, Sender: sender, LastReadSeq: lastReadSeq},
	}
}

func NewLagged(missed int64) Event {
	return Event{Kind: EventLagged, Payload: Lag{Missed: missed}}
}
