package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/service"
)

// createdRoom is the create response: the room plus the plaintext admin key,
// returned exactly once.
type createdRoom struct {
	*domain.Room
	AdminKey string `json:"admin_key"`
}

func handleCreateRoom(rooms *service.RoomService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.RoomCreateInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, err)
			return
		}
		room, key, err := rooms.Create(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, createdRoom{Room: room, AdminKey: key})
	}
}

func handleGetRoom(rooms *service.RoomService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, err := rooms.Get(r.Context(), chi.URLParam(r, "roomID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, room)
	}
}

func handleListRooms(rooms *service.RoomService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		includeArchived := q.Get("include_archived") == "true"
		var sender *string
		if s := q.Get("sender"); s != "" {
			sender = &s
		}
		list, err := rooms.List(r.Context(), includeArchived, sender)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleUpdateRoom(rooms *service.RoomService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.RoomUpdateInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, err)
			return
		}
		room, err := rooms.Update(r.Context(), adminRoom(r), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, room)
	}
}

func handleDeleteRoom(rooms *service.RoomService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := rooms.Delete(r.Context(), chi.URLParam(r, "roomID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleSetArchived(rooms *service.RoomService, archived bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, err := rooms.SetArchived(r.Context(), chi.URLParam(r, "roomID"), archived)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, room)
	}
}
