// Package presence tracks which senders currently hold live stream
// connections to each room. State is purely in-memory and rebuilt from
// scratch on restart; it is authoritative only about open streams.
package presence

import (
	"sort"
	"sync"
	"time"
)

// Entry is a read-only view of one present sender.
type Entry struct {
	Sender      string    `json:"sender"`
	SenderType  *string   `json:"sender_type,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
	Connections int       `json:"connections"`
}

type record struct {
	senderType  *string
	connectedAt time.Time
	connections int
}

// Tracker maintains room -> sender -> connection-count state.
type Tracker struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*record
}

// NewTracker constructs an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{rooms: make(map[string]map[string]*record)}
}

// Join registers one more connection for (room, sender) and reports whether
// this was the 0->1 transition. A previously unset sender type is latched in
// when one is supplied.
func (t *Tracker) Join(roomID, sender string, senderType *string) (isNew bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	room := t.rooms[roomID]
	if room == nil {
		room = make(map[string]*record)
		t.rooms[roomID] = room
	}
	rec := room[sender]
	if rec == nil {
		room[sender] = &record{
			senderType:  senderType,
			connectedAt: time.Now().UTC(),
			connections: 1,
		}
		return true
	}
	rec.connections++
	if rec.senderType == nil && senderType != nil {
		rec.senderType = senderType
	}
	return false
}

// Leave drops one connection for (room, sender). It reports whether this was
// the 1->0 transition, along with the latched sender type for the departure
// event. The sender entry is removed on full departure, and the room map is
// removed once empty.
func (t *Tracker) Leave(roomID, sender string) (fullyLeft bool, senderType *string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	room := t.rooms[roomID]
	if room == nil {
		return false, nil
	}
	rec := room[sender]
	if rec == nil {
		return false, nil
	}
	rec.connections--
	if rec.connections > 0 {
		return false, rec.senderType
	}
	delete(room, sender)
	if len(room) == 0 {
		delete(t.rooms, roomID)
	}
	return true, rec.senderType
}

// SnapshotRoom returns the present senders of one room, sorted by sender.
func (t *Tracker) SnapshotRoom(roomID string) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return snapshot(t.rooms[roomID])
}

// SnapshotAll returns present senders for every room with at least one
// connection, sorted by sender within each room.
func (t *Tracker) SnapshotAll() map[string][]Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string][]Entry, len(t.rooms))
	for roomID, room := range t.rooms {
		out[roomID] = snapshot(room)
	}
	return out
}

func snapshot(room map[string]*record) []Entry {
	entries := make([]Entry, 0, len(room))
	for sender, rec := range room {
		entries = append(entries, Entry{
			Sender:      sender,
			SenderType:  rec.senderType,
			ConnectedAt: rec.connectedAt,
			Connections: rec.connections,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Sender < entries[j].Sender })
	return entries
}
