// Package retention prunes room history according to per-room count and age
// policies. Pinned messages are always exempt.
package retention

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/metrics"
)

const (
	defaultWarmup   = 30 * time.Second
	defaultInterval = 60 * time.Second
)

// Sweeper periodically removes messages exceeding a room's retention policy.
type Sweeper struct {
	rooms    domain.RoomRepository
	messages domain.MessageRepository
	log      zerolog.Logger

	warmup   time.Duration
	interval time.Duration
	now      func() time.Time
}

func NewSweeper(rooms domain.RoomRepository, messages domain.MessageRepository, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		rooms:    rooms,
		messages: messages,
		log:      log.With().Str("component", "retention").Logger(),
		warmup:   defaultWarmup,
		interval: defaultInterval,
		now:      time.Now,
	}
}

// Run blocks until ctx is cancelled, sweeping after a warmup and then at a
// fixed interval. Sweep errors are logged and the loop continues.
func (s *Sweeper) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(s.warmup):
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.Sweep(ctx); err != nil {
			s.log.Error().Err(err).Msg("retention sweep failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep runs one pass over every room with a retention policy.
func (s *Sweeper) Sweep(ctx context.Context) error {
	rooms, err := s.rooms.ListRetentionRooms(ctx)
	if err != nil {
		return err
	}

	for _, room := range rooms {
		pruned, err := s.sweepRoom(ctx, room)
		if err != nil {
			s.log.Error().Err(err).Str("room_id", room.ID).Msg("room sweep failed")
			continue
		}
		if pruned > 0 {
			metrics.MessagesPruned.Add(float64(pruned))
			s.log.Info().
				Str("room_id", room.ID).
				Str("room", room.Name).
				Int64("pruned", pruned).
				Msg("retention pruned messages")
		}
	}
	return nil
}

func (s *Sweeper) sweepRoom(ctx context.Context, room *domain.Room) (int64, error) {
	var total int64

	if room.MaxMessages != nil {
		count, err := s.messages.NonPinnedCount(ctx, room.ID)
		if err != nil {
			return total, err
		}
		if excess := count - *room.MaxMessages; excess > 0 {
			ids, err := s.messages.NonPinnedOldest(ctx, room.ID, excess)
			if err != nil {
				return total, err
			}
			n, err := s.messages.PruneByIDs(ctx, ids)
			total += n
			if err != nil {
				return total, err
			}
		}
	}

	if room.MaxAgeHours != nil {
		cutoff := s.now().UTC().Add(-time.Duration(*room.MaxAgeHours) * time.Hour)
		ids, err := s.messages.NonPinnedOlderThan(ctx, room.ID, cutoff)
		if err != nil {
			return total, err
		}
		if len(ids) > 0 {
			n, err := s.messages.PruneByIDs(ctx, ids)
			total += n
			if err != nil {
				return total, err
			}
		}
	}

	return total, nil
}
