package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/service"
)

type readPositionRequest struct {
	Sender      string `json:"sender"`
	LastReadSeq int64  `json:"last_read_seq"`
}

func handleSetRead(reads *service.ReadService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in readPositionRequest
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, err)
			return
		}
		pos, err := reads.SetReadPosition(r.Context(), chi.URLParam(r, "roomID"), in.Sender, in.LastReadSeq)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pos)
	}
}

func handleListRead(reads *service.ReadService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		positions, err := reads.ListRoomReadPositions(r.Context(), chi.URLParam(r, "roomID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, positions)
	}
}

type bookmarkRequest struct {
	Sender string `json:"sender"`
}

func handleSetBookmark(reads *service.ReadService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in bookmarkRequest
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, err)
			return
		}
		b, err := reads.Bookmark(r.Context(), chi.URLParam(r, "roomID"), in.Sender)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

func handleDeleteBookmark(reads *service.ReadService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sender := r.URL.Query().Get("sender")
		if err := reads.Unbookmark(r.Context(), chi.URLParam(r, "roomID"), sender); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListBookmarks(reads *service.ReadService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sender := r.URL.Query().Get("sender")
		bookmarks, err := reads.ListBookmarks(r.Context(), sender)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, bookmarks)
	}
}
