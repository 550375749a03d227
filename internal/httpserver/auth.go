package httpserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/service"
)

type ctxKey int

const adminRoomKey ctxKey = iota

// adminKey extracts the room admin key from Authorization: Bearer or
// X-Admin-Key.
func adminKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if key, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(key)
		}
	}
	return r.Header.Get("X-Admin-Key")
}

// requireAdmin authorizes the {roomID} route against the room's admin key
// and stores the room in the request context.
func requireAdmin(rooms *service.RoomService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			roomID := chi.URLParam(r, "roomID")
			room, err := rooms.Authorize(r.Context(), roomID, adminKey(r))
			if err != nil {
				writeError(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), adminRoomKey, room)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// adminRoom returns the room stored by requireAdmin.
func adminRoom(r *http.Request) *domain.Room {
	room, _ := r.Context().Value(adminRoomKey).(*domain.Room)
	return room
}

// optionalAdmin reports whether the request carries a valid admin key for the
// room. A missing key is simply not admin; a wrong key is an error.
func optionalAdmin(r *http.Request, rooms *service.RoomService, roomID string) (bool, error) {
	key := adminKey(r)
	if key == "" {
		return false, nil
	}
	if _, err := rooms.Authorize(r.Context(), roomID, key); err != nil {
		return false, err
	}
	return true, nil
}
