package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/service"
)

func handleUpsertProfile(profiles *service.ProfileService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.ProfileUpsertInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, err)
			return
		}
		p, err := profiles.Upsert(r.Context(), chi.URLParam(r, "sender"), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleGetProfile(profiles *service.ProfileService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := profiles.Get(r.Context(), chi.URLParam(r, "sender"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleDeleteProfile(profiles *service.ProfileService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := profiles.Delete(r.Context(), chi.URLParam(r, "sender")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListProfiles(profiles *service.ProfileService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var senderType *string
		if v := r.URL.Query().Get("sender_type"); v != "" {
			senderType = &v
		}
		list, err := profiles.List(r.Context(), senderType)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}
