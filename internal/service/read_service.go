package service

import (
	"context"
	"fmt"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/bus"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
)

// ReadService manages read positions and room bookmarks.
type ReadService struct {
	rooms     domain.RoomRepository
	reads     domain.ReadPositionRepository
	bookmarks domain.BookmarkRepository
	bus       *bus.Bus
}

func NewReadService(
	rooms domain.RoomRepository,
	reads domain.ReadPositionRepository,
	bookmarks domain.BookmarkRepository,
	b *bus.Bus,
) *ReadService {
	return &ReadService{rooms: rooms, reads: reads, bookmarks: bookmarks, bus: b}
}

// SetReadPosition advances the sender's read position. Attempts to move it
// backwards are ignored and return the stored value.
func (s *ReadService) SetReadPosition(ctx context.Context, roomID, sender string, seq int64) (*domain.ReadPosition, error) {
	if err := validateSender(sender); err != nil {
		return nil, err
	}
	if seq < 0 {
		return nil, fmt.Errorf("last_read_seq must not be negative: %w", domain.ErrInvalidInput)
	}
	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}

	rp, advanced, err := s.reads.SetReadPosition(ctx, roomID, sender, seq)
	if err != nil {
		return nil, err
	}
	if advanced {
		publish(s.bus, domain.NewReadPositionUpdated(roomID, sender, rp.LastReadSeq))
	}
	return rp, nil
}

// ListRoomReadPositions returns every sender's position in a room.
func (s *ReadService) ListRoomReadPositions(ctx context.Context, roomID string) ([]*domain.ReadPosition, error) {
	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return s.reads.ListRoomReadPositions(ctx, roomID)
}

// Bookmark marks a room for the sender; idempotent.
func (s *ReadService) Bookmark(ctx context.Context, roomID, sender string) (*domain.Bookmark, error) {
	if err := validateSender(sender); err != nil {
		return nil, err
	}
	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return s.bookmarks.SetBookmark(ctx, roomID, sender)
}

// Unbookmark removes the sender's bookmark.
func (s *ReadService) Unbookmark(ctx context.Context, roomID, sender string) error {
	if err := validateSender(sender); err != nil {
		return err
	}
	return s.bookmarks.DeleteBookmark(ctx, roomID, sender)
}

// ListBookmarks returns the sender's bookmarks, newest first.
func (s *ReadService) ListBookmarks(ctx context.Context, sender string) ([]*domain.Bookmark, error) {
	if err := validateSender(sender); err != nil {
		return nil, err
	}
	return s.bookmarks.ListBookmarks(ctx, sender)
}
