package presence

import (
	"sync"
	"time"
)

// TypingTracker deduplicates typing notifications so repeated keypresses from
// the same (room, sender) collapse into one event per window.
type TypingTracker struct {
	mu     sync.Mutex
	last   map[typingKey]time.Time
	window time.Duration
	now    func() time.Time
}

type typingKey struct {
	roomID string
	sender string
}

// NewTypingTracker constructs a tracker with the given dedup window.
func NewTypingTracker(window time.Duration) *TypingTracker {
	if window <= 0 {
		window = 2 * time.Second
	}
	return &TypingTracker{
		last:   make(map[typingKey]time.Time),
		window: window,
		now:    time.Now,
	}
}

// ShouldNotify reports whether a typing event for (room, sender) should be
// published, and records the notification time when it should.
func (t *TypingTracker) ShouldNotify(roomID, sender string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	key := typingKey{roomID: roomID, sender: sender}
	if last, ok := t.last[key]; ok && now.Sub(last) < t.window {
		return false
	}
	t.last[key] = now

	if len(t.last) > 1024 {
		t.sweepLocked(now)
	}
	return true
}

func (t *TypingTracker) sweepLocked(now time.Time) {
	for k, v := range t.last {
		if now.Sub(v) >= t.window {
			delete(t.last, k)
		}
	}
}
