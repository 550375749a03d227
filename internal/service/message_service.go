package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/bus"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/metrics"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/presence"
)

// maxBroadcastRooms caps the number of rooms a single broadcast may target.
const maxBroadcastRooms = 20

// MessageService is the write pipeline for messages and their projections:
// reactions, pins, typing notices, and multi-room broadcasts. Every mutation
// commits first and publishes its event after, best-effort.
type MessageService struct {
	rooms     domain.RoomRepository
	messages  domain.MessageRepository
	reactions domain.ReactionRepository
	bus       *bus.Bus
	typing    *presence.TypingTracker
}

func NewMessageService(
	rooms domain.RoomRepository,
	messages domain.MessageRepository,
	reactions domain.ReactionRepository,
	b *bus.Bus,
	typing *presence.TypingTracker,
) *MessageService {
	return &MessageService{
		rooms:     rooms,
		messages:  messages,
		reactions: reactions,
		bus:       b,
		typing:    typing,
	}
}

type MessageSendInput struct {
	Sender     string          `json:"sender"`
	SenderType *string         `json:"sender_type,omitempty"`
	Content    string          `json:"content"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	ReplyTo    *string         `json:"reply_to,omitempty"`
}

// Send posts a message to a room. Archived rooms still accept messages; they
// are only hidden from listings.
func (s *MessageService) Send(ctx context.Context, roomID string, in MessageSendInput) (*domain.Message, error) {
	if err := validateSender(in.Sender); err != nil {
		return nil, err
	}
	if err := validateContent(in.Content); err != nil {
		return nil, err
	}
	if err := validateSenderType(in.SenderType); err != nil {
		return nil, err
	}

	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	m := &domain.Message{
		RoomID:     roomID,
		Sender:     in.Sender,
		SenderType: normalizeOpt(in.SenderType),
		Content:    in.Content,
		Metadata:   in.Metadata,
		ReplyTo:    normalizeOpt(in.ReplyTo),
	}
	if err := s.messages.InsertMessage(ctx, m); err != nil {
		return nil, err
	}

	metrics.MessagesPosted.WithLabelValues(room.RoomType).Inc()
	publish(s.bus, domain.NewMessageCreated(m))
	return m, nil
}

// Get fetches one message scoped to its room.
func (s *MessageService) Get(ctx context.Context, roomID, messageID string) (*domain.Message, error) {
	return s.messages.GetMessage(ctx, roomID, messageID)
}

// Edit replaces a message's content. Only the original sender may edit; seq,
// reply_to, and pin state are preserved and the old content lands in history.
func (s *MessageService) Edit(ctx context.Context, roomID, messageID, sender, content string) (*domain.Message, error) {
	if err := validateSender(sender); err != nil {
		return nil, err
	}
	if err := validateContent(content); err != nil {
		return nil, err
	}

	m, err := s.messages.EditMessage(ctx, roomID, messageID, sender, content)
	if err != nil {
		return nil, err
	}
	publish(s.bus, domain.NewMessageEdited(m))
	return m, nil
}

// Delete removes a message. The caller must be the sender, unless the request
// was authorized with the room admin key.
func (s *MessageService) Delete(ctx context.Context, roomID, messageID, caller string, isAdmin bool) error {
	m, err := s.messages.GetMessage(ctx, roomID, messageID)
	if err != nil {
		return err
	}
	if !isAdmin {
		if caller == "" {
			return fmt.Errorf("sender required: %w", domain.ErrInvalidInput)
		}
		if m.Sender != caller {
			return fmt.Errorf("only the sender or an admin may delete: %w", domain.ErrForbidden)
		}
	}
	if err := s.messages.DeleteMessage(ctx, roomID, messageID); err != nil {
		return err
	}
	publish(s.bus, domain.NewMessageDeleted(roomID, messageID, m.Seq))
	return nil
}

// React adds an emoji reaction. Duplicate reactions conflict.
func (s *MessageService) React(ctx context.Context, roomID, messageID, sender, emoji string) (*domain.Reaction, error) {
	if err := validateSender(sender); err != nil {
		return nil, err
	}
	if emoji == "" {
		return nil, fmt.Errorf("emoji must not be empty: %w", domain.ErrInvalidInput)
	}
	if _, err := s.messages.GetMessage(ctx, roomID, messageID); err != nil {
		return nil, err
	}

	r := &domain.Reaction{MessageID: messageID, Emoji: emoji, Sender: sender}
	if err := s.reactions.AddReaction(ctx, r); err != nil {
		return nil, err
	}
	publish(s.bus, domain.NewReactionAdded(roomID, r))
	return r, nil
}

// Unreact removes an emoji reaction.
func (s *MessageService) Unreact(ctx context.Context, roomID, messageID, sender, emoji string) error {
	if _, err := s.messages.GetMessage(ctx, roomID, messageID); err != nil {
		return err
	}
	if err := s.reactions.RemoveReaction(ctx, messageID, emoji, sender); err != nil {
		return err
	}
	publish(s.bus, domain.NewReactionRemoved(roomID, messageID, emoji, sender))
	return nil
}

// SetPinned pins or unpins a message. Callers authorize as room admin first.
func (s *MessageService) SetPinned(ctx context.Context, roomID, messageID string, pinnedBy *string, pinned bool) (*domain.Message, error) {
	m, err := s.messages.SetPinned(ctx, roomID, messageID, normalizeOpt(pinnedBy), pinned)
	if err != nil {
		return nil, err
	}
	if pinned {
		publish(s.bus, domain.NewMessagePinned(roomID, messageID, m.PinnedBy))
	} else {
		publish(s.bus, domain.NewMessageUnpinned(roomID, messageID))
	}
	return m, nil
}

// Typing records a typing notice. Repeated notices from the same
// (room, sender) inside the dedup window are dropped.
func (s *MessageService) Typing(ctx context.Context, roomID, sender string) error {
	if err := validateSender(sender); err != nil {
		return err
	}
	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		return err
	}
	if !s.typing.ShouldNotify(roomID, sender) {
		return nil
	}
	publish(s.bus, domain.NewTyping(roomID, sender, time.Now().UTC()))
	return nil
}

type BroadcastInput struct {
	RoomIDs    []string        `json:"room_ids"`
	Sender     string          `json:"sender"`
	SenderType *string         `json:"sender_type,omitempty"`
	Content    string          `json:"content"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

// Broadcast posts the same message to several rooms, yielding one result per
// room ID in input order. A failing room does not abort the rest.
func (s *MessageService) Broadcast(ctx context.Context, in BroadcastInput) ([]domain.BroadcastResult, error) {
	if len(in.RoomIDs) == 0 {
		return nil, fmt.Errorf("room_ids must not be empty: %w", domain.ErrInvalidInput)
	}
	if len(in.RoomIDs) > maxBroadcastRooms {
		return nil, fmt.Errorf("room_ids exceeds %d rooms: %w", maxBroadcastRooms, domain.ErrInvalidInput)
	}
	if err := validateSender(in.Sender); err != nil {
		return nil, err
	}
	if err := validateContent(in.Content); err != nil {
		return nil, err
	}
	if err := validateSenderType(in.SenderType); err != nil {
		return nil, err
	}

	results := make([]domain.BroadcastResult, 0, len(in.RoomIDs))
	for _, roomID := range in.RoomIDs {
		m, err := s.Send(ctx, roomID, MessageSendInput{
			Sender:     in.Sender,
			SenderType: in.SenderType,
			Content:    in.Content,
			Metadata:   in.Metadata,
		})
		if err != nil {
			results = append(results, domain.BroadcastResult{RoomID: roomID, Error: err.Error()})
			continue
		}
		results = append(results, domain.BroadcastResult{RoomID: roomID, Message: m})
	}
	return results, nil
}
