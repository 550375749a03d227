package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/service"
)

// dmSent pairs the created message with the conversation room it landed in.
type dmSent struct {
	Room    *domain.Room    `json:"room"`
	Message *domain.Message `json:"message"`
}

func handleSendDM(dms *service.DMService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.DMSendInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, err)
			return
		}
		room, msg, err := dms.Send(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, dmSent{Room: room, Message: msg})
	}
}

func handleListDMs(dms *service.DMService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sender := r.URL.Query().Get("sender")
		rooms, err := dms.List(r.Context(), sender)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rooms)
	}
}

func handleGetDM(dms *service.DMService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, err := dms.Get(r.Context(), chi.URLParam(r, "roomID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, room)
	}
}
