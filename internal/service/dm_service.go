package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/metrics"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/security"
)

// DMService maps sender/recipient pairs onto canonical dm rooms and posts
// into them. Room creation is implicit and idempotent.
type DMService struct {
	rooms    domain.RoomRepository
	messages *MessageService
}

func NewDMService(rooms domain.RoomRepository, messages *MessageService) *DMService {
	return &DMService{rooms: rooms, messages: messages}
}

type DMSendInput struct {
	Sender     string          `json:"sender"`
	Recipient  string          `json:"recipient"`
	SenderType *string         `json:"sender_type,omitempty"`
	Content    string          `json:"content"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

// Send delivers a direct message, creating the pair's room on first use.
func (s *DMService) Send(ctx context.Context, in DMSendInput) (*domain.Room, *domain.Message, error) {
	if err := validateSender(in.Sender); err != nil {
		return nil, nil, err
	}
	if err := validateName("recipient", in.Recipient); err != nil {
		return nil, nil, err
	}
	if in.Sender == in.Recipient {
		return nil, nil, fmt.Errorf("cannot DM yourself: %w", domain.ErrInvalidInput)
	}
	if err := validateContent(in.Content); err != nil {
		return nil, nil, err
	}

	room, err := s.getOrCreateRoom(ctx, in.Sender, in.Recipient)
	if err != nil {
		return nil, nil, err
	}

	m, err := s.messages.Send(ctx, room.ID, MessageSendInput{
		Sender:     in.Sender,
		SenderType: in.SenderType,
		Content:    in.Content,
		Metadata:   in.Metadata,
	})
	if err != nil {
		return nil, nil, err
	}

	metrics.DMsSent.Inc()
	return room, m, nil
}

// List returns the DM rooms the sender participates in.
func (s *DMService) List(ctx context.Context, sender string) ([]*domain.Room, error) {
	if err := validateSender(sender); err != nil {
		return nil, err
	}
	return s.rooms.ListDMRooms(ctx, sender)
}

// Get fetches a DM room by ID; a standard room ID is not found here.
func (s *DMService) Get(ctx context.Context, roomID string) (*domain.Room, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.RoomType != domain.RoomTypeDM {
		return nil, fmt.Errorf("not a dm room: %w", domain.ErrNotFound)
	}
	return room, nil
}

func (s *DMService) getOrCreateRoom(ctx context.Context, sender, recipient string) (*domain.Room, error) {
	name := domain.DMRoomName(sender, recipient)

	room, err := s.rooms.GetRoomByName(ctx, name)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	// DM rooms are not admin-operated; the key is generated to satisfy the
	// schema and immediately discarded.
	key, err := security.GenerateAdminKey()
	if err != nil {
		return nil, err
	}
	hash, err := security.HashKey(key)
	if err != nil {
		return nil, err
	}
	room = &domain.Room{Name: name, RoomType: domain.RoomTypeDM, AdminKeyHash: hash}
	err = s.rooms.CreateRoom(ctx, room)
	if errors.Is(err, domain.ErrConflict) {
		// Lost the race to a concurrent first DM; use the winner's room.
		return s.rooms.GetRoomByName(ctx, name)
	}
	if err != nil {
		return nil, err
	}
	return room, nil
}
