package service

import (
	"context"
	"fmt"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/security"
)

// RoomService manages room lifecycle and admin-key authorization.
type RoomService struct {
	rooms domain.RoomRepository
}

func NewRoomService(rooms domain.RoomRepository) *RoomService {
	return &RoomService{rooms: rooms}
}

type RoomCreateInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	CreatedBy   *string `json:"created_by,omitempty"`
	MaxMessages *int64  `json:"max_messages,omitempty"`
	MaxAgeHours *int64  `json:"max_age_hours,omitempty"`
}

type RoomUpdateInput struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	MaxMessages *int64  `json:"max_messages,omitempty"`
	MaxAgeHours *int64  `json:"max_age_hours,omitempty"`
}

// Create makes a new standard room. The plaintext admin key is returned
// exactly once, here; only its hash is stored.
func (s *RoomService) Create(ctx context.Context, in RoomCreateInput) (*domain.Room, string, error) {
	if err := validateName("name", in.Name); err != nil {
		return nil, "", err
	}
	if in.MaxMessages != nil && *in.MaxMessages <= 0 {
		return nil, "", fmt.Errorf("max_messages must be positive: %w", domain.ErrInvalidInput)
	}
	if in.MaxAgeHours != nil && *in.MaxAgeHours <= 0 {
		return nil, "", fmt.Errorf("max_age_hours must be positive: %w", domain.ErrInvalidInput)
	}

	key, err := security.GenerateAdminKey()
	if err != nil {
		return nil, "", err
	}
	hash, err := security.HashKey(key)
	if err != nil {
		return nil, "", err
	}

	room := &domain.Room{
		Name:         in.Name,
		Description:  normalizeOpt(in.Description),
		CreatedBy:    normalizeOpt(in.CreatedBy),
		AdminKeyHash: hash,
		MaxMessages:  in.MaxMessages,
		MaxAgeHours:  in.MaxAgeHours,
		RoomType:     domain.RoomTypeStandard,
	}
	if err := s.rooms.CreateRoom(ctx, room); err != nil {
		return nil, "", err
	}
	return room, key, nil
}

// Get fetches a room by ID. Archived rooms remain readable.
func (s *RoomService) Get(ctx context.Context, id string) (*domain.Room, error) {
	return s.rooms.GetRoom(ctx, id)
}

// List returns standard rooms; archived ones only when asked. When sender is
// set each room carries its bookmarked flag for that sender.
func (s *RoomService) List(ctx context.Context, includeArchived bool, sender *string) ([]*domain.Room, error) {
	return s.rooms.ListRooms(ctx, includeArchived, normalizeOpt(sender))
}

// Authorize resolves the room and checks the admin key against its hash.
// An empty key is unauthorized; a wrong one is forbidden.
func (s *RoomService) Authorize(ctx context.Context, roomID, key string) (*domain.Room, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, fmt.Errorf("admin key required: %w", domain.ErrUnauthorized)
	}
	if !security.VerifyKey(room.AdminKeyHash, key) {
		return nil, fmt.Errorf("admin key mismatch: %w", domain.ErrForbidden)
	}
	return room, nil
}

// Update changes mutable room fields. Admin only; callers authorize first.
func (s *RoomService) Update(ctx context.Context, room *domain.Room, in RoomUpdateInput) (*domain.Room, error) {
	if in.Name != nil {
		if err := validateName("name", *in.Name); err != nil {
			return nil, err
		}
		room.Name = *in.Name
	}
	if in.Description != nil {
		room.Description = normalizeOpt(in.Description)
	}
	if in.MaxMessages != nil {
		if *in.MaxMessages <= 0 {
			room.MaxMessages = nil
		} else {
			room.MaxMessages = in.MaxMessages
		}
	}
	if in.MaxAgeHours != nil {
		if *in.MaxAgeHours <= 0 {
			room.MaxAgeHours = nil
		} else {
			room.MaxAgeHours = in.MaxAgeHours
		}
	}
	if err := s.rooms.UpdateRoom(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// Delete removes the room and everything scoped to it.
func (s *RoomService) Delete(ctx context.Context, roomID string) error {
	return s.rooms.DeleteRoom(ctx, roomID)
}

// SetArchived archives or unarchives the room. Archived rooms disappear from
// default listings and free their name, but keep accepting operations.
func (s *RoomService) SetArchived(ctx context.Context, roomID string, archived bool) (*domain.Room, error) {
	return s.rooms.SetArchived(ctx, roomID, archived)
}
