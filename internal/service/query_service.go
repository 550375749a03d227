package service

import (
	"context"
	"fmt"
	"regexp"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/metrics"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// QueryService is the read pipeline: cursor pagination, activity, mentions,
// unread computation, and full-text search.
type QueryService struct {
	rooms     domain.RoomRepository
	messages  domain.MessageRepository
	reactions domain.ReactionRepository
	reads     domain.ReadPositionRepository
}

func NewQueryService(
	rooms domain.RoomRepository,
	messages domain.MessageRepository,
	reactions domain.ReactionRepository,
	reads domain.ReadPositionRepository,
) *QueryService {
	return &QueryService{rooms: rooms, messages: messages, reactions: reactions, reads: reads}
}

// Messages lists room messages in ascending seq order per the filter.
func (s *QueryService) Messages(ctx context.Context, roomID string, f domain.MessageFilter) ([]*domain.Message, error) {
	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return s.messages.ListMessages(ctx, roomID, f)
}

// Activity returns the cross-room feed, newest first.
func (s *QueryService) Activity(ctx context.Context, f domain.ActivityFilter) ([]*domain.Message, error) {
	return s.messages.ListActivity(ctx, f)
}

// Thread returns a message and its replies in seq order.
func (s *QueryService) Thread(ctx context.Context, roomID, parentID string) ([]*domain.Message, error) {
	if _, err := s.messages.GetMessage(ctx, roomID, parentID); err != nil {
		return nil, err
	}
	return s.messages.ListThread(ctx, roomID, parentID)
}

// Edits returns a message's edit history, oldest first.
func (s *QueryService) Edits(ctx context.Context, roomID, messageID string) ([]*domain.EditEntry, error) {
	if _, err := s.messages.GetMessage(ctx, roomID, messageID); err != nil {
		return nil, err
	}
	return s.messages.ListEdits(ctx, messageID)
}

// Pins returns a room's pinned messages in seq order.
func (s *QueryService) Pins(ctx context.Context, roomID string) ([]*domain.Message, error) {
	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return s.messages.ListPinned(ctx, roomID)
}

// RoomReactions returns every reaction in a room.
func (s *QueryService) RoomReactions(ctx context.Context, roomID string) ([]*domain.Reaction, error) {
	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return s.reactions.ListRoomReactions(ctx, roomID)
}

// Search runs a full-text query across all rooms, newest first.
func (s *QueryService) Search(ctx context.Context, query string, limit int) ([]*domain.Message, error) {
	if query == "" {
		return nil, fmt.Errorf("q must not be empty: %w", domain.ErrInvalidInput)
	}
	metrics.SearchQueries.Inc()
	return s.messages.Search(ctx, query, limit)
}

// Mentions returns messages mentioning @target, newest first. The store hands
// back substring candidates; the word-boundary match happens here.
func (s *QueryService) Mentions(ctx context.Context, target string, f domain.MentionFilter) ([]*domain.Message, error) {
	if err := validateName("target", target); err != nil {
		return nil, err
	}
	candidates, err := s.messages.MentionCandidates(ctx, target, f)
	if err != nil {
		return nil, err
	}

	limit := clampLimit(f.Limit)
	re := mentionPattern(target)
	var res []*domain.Message
	for _, m := range candidates {
		if re.MatchString(m.Content) {
			res = append(res, m)
			if len(res) >= limit {
				break
			}
		}
	}
	return res, nil
}

// UnreadMentions aggregates unread @target mentions per room. Rooms with no
// unread mentions are omitted.
func (s *QueryService) UnreadMentions(ctx context.Context, target string) ([]*domain.RoomMentions, error) {
	if err := validateName("target", target); err != nil {
		return nil, err
	}
	candidates, err := s.messages.UnreadMentionCandidates(ctx, target)
	if err != nil {
		return nil, err
	}

	re := mentionPattern(target)
	counts := make(map[string]int64)
	for _, m := range candidates {
		if re.MatchString(m.Content) {
			counts[m.RoomID]++
		}
	}

	var res []*domain.RoomMentions
	for roomID, n := range counts {
		room, err := s.rooms.GetRoom(ctx, roomID)
		if err != nil {
			return nil, err
		}
		res = append(res, &domain.RoomMentions{RoomID: roomID, RoomName: room.Name, MentionCount: n})
	}
	return res, nil
}

// UnreadSummary is the response shape for per-sender unread counts.
type UnreadSummary struct {
	Sender      string               `json:"sender"`
	TotalUnread int64                `json:"total_unread"`
	Rooms       []*domain.RoomUnread `json:"rooms"`
}

// Unread computes per-room unread counts for the sender: latest_seq minus
// last_read_seq, floored at zero. A missing read position counts from zero;
// rooms fully read are omitted.
func (s *QueryService) Unread(ctx context.Context, sender string) (*UnreadSummary, error) {
	if err := validateSender(sender); err != nil {
		return nil, err
	}

	latest, err := s.messages.LatestSeqPerRoom(ctx)
	if err != nil {
		return nil, err
	}
	positions, err := s.reads.ListSenderReadPositions(ctx, sender)
	if err != nil {
		return nil, err
	}
	lastRead := make(map[string]int64, len(positions))
	for _, rp := range positions {
		lastRead[rp.RoomID] = rp.LastReadSeq
	}

	summary := &UnreadSummary{Sender: sender, Rooms: []*domain.RoomUnread{}}
	for roomID, latestSeq := range latest {
		read := lastRead[roomID]
		unread := latestSeq - read
		if unread <= 0 {
			continue
		}
		room, err := s.rooms.GetRoom(ctx, roomID)
		if err != nil {
			return nil, err
		}
		summary.Rooms = append(summary.Rooms, &domain.RoomUnread{
			RoomID:      roomID,
			RoomName:    room.Name,
			LastReadSeq: read,
			LatestSeq:   latestSeq,
			UnreadCount: unread,
		})
		summary.TotalUnread += unread
	}
	return summary, nil
}

func mentionPattern(target string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(^|[^A-Za-z0-9_])@` + regexp.QuoteMeta(target) + `([^A-Za-z0-9_]|$)`)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
