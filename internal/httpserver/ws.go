package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/bus"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/metrics"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/presence"
)

const wsWriteTimeout = 10 * time.Second

// CORS is already enforced at the middleware layer; the service only ever
// faces the local network.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWS serves the same room event feed as the SSE stream, one JSON
// event per text frame.
func handleWS(b *bus.Bus, tracker *presence.Tracker, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Debug().Err(err).Str("room_id", roomID).Msg("websocket upgrade failed")
			return
		}
		defer conn.Close()

		sub := b.Subscribe()
		defer sub.Close()

		leave := streamPresence(b, tracker, roomID, r)
		defer leave()

		metrics.StreamsOpen.Inc()
		defer metrics.StreamsOpen.Dec()

		// Drain the reader so close frames and pings are processed; its
		// error doubles as the disconnect signal.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		keepalive := time.NewTicker(keepaliveInterval)
		defer keepalive.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-done:
				return
			case <-keepalive.C:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case ev, open := <-sub.Events():
				if !open {
					return
				}
				if !wantEvent(roomID, ev) {
					continue
				}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteJSON(ev); err != nil {
					return
				}
			}
		}
	}
}
