package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/bus"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/metrics"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/presence"
)

const keepaliveInterval = 15 * time.Second

// streamPresence joins the presence tracker for the duration of a stream
// connection when the client identified itself, publishing join/leave events
// on the edge transitions. The returned func must run on disconnect.
func streamPresence(b *bus.Bus, tracker *presence.Tracker, roomID string, r *http.Request) func() {
	sender := r.URL.Query().Get("sender")
	if sender == "" {
		return func() {}
	}
	var senderType *string
	if v := r.URL.Query().Get("sender_type"); v != "" {
		senderType = &v
	}

	if tracker.Join(roomID, sender, senderType) {
		b.Publish(domain.NewPresenceJoined(roomID, sender, senderType))
	}
	return func() {
		if fullyLeft, st := tracker.Leave(roomID, sender); fullyLeft {
			b.Publish(domain.NewPresenceLeft(roomID, sender, st))
		}
	}
}

// wantEvent reports whether a stream for roomID should carry ev. Lag markers
// always pass so clients know to resync.
func wantEvent(roomID string, ev domain.Event) bool {
	return ev.Kind == domain.EventLagged || ev.RoomID == roomID
}

// handleStream serves the room event feed over Server-Sent Events.
func handleStream(b *bus.Bus, tracker *presence.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, fmt.Errorf("streaming unsupported: %w", domain.ErrInvalidInput))
			return
		}
		roomID := chi.URLParam(r, "roomID")

		sub := b.Subscribe()
		defer sub.Close()

		leave := streamPresence(b, tracker, roomID, r)
		defer leave()

		metrics.StreamsOpen.Inc()
		defer metrics.StreamsOpen.Dec()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		keepalive := time.NewTicker(keepaliveInterval)
		defer keepalive.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-keepalive.C:
				fmt.Fprint(w, ": keepalive\n\n")
				flusher.Flush()
			case ev, open := <-sub.Events():
				if !open {
					return
				}
				if !wantEvent(roomID, ev) {
					continue
				}
				data, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
				flusher.Flush()
			}
		}
	}
}
