package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/service"
)

func handleSendMessage(messages *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.MessageSendInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, err)
			return
		}
		msg, err := messages.Send(r.Context(), chi.URLParam(r, "roomID"), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	}
}

func handleGetMessage(messages *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msg, err := messages.Get(r.Context(), chi.URLParam(r, "roomID"), chi.URLParam(r, "messageID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, msg)
	}
}

// messageFilter parses the shared list-query parameters.
func messageFilter(r *http.Request) (domain.MessageFilter, error) {
	q := r.URL.Query()
	var f domain.MessageFilter

	since, err := parseTimeParam(q.Get("since"))
	if err != nil {
		return f, err
	}
	before, err := parseTimeParam(q.Get("before"))
	if err != nil {
		return f, err
	}
	f.Since = since
	f.Before = before

	if v := q.Get("after"); v != "" {
		seq, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, domain.ErrInvalidInput
		}
		f.AfterSeq = &seq
	}
	if v := q.Get("before_seq"); v != "" {
		seq, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, domain.ErrInvalidInput
		}
		f.BeforeSeq = &seq
	}
	if v := q.Get("sender"); v != "" {
		f.Sender = &v
	}
	if v := q.Get("sender_type"); v != "" {
		f.SenderType = &v
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, domain.ErrInvalidInput
		}
		f.Limit = n
	}
	return f, nil
}

func handleListMessages(queries *service.QueryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := messageFilter(r)
		if err != nil {
			writeError(w, err)
			return
		}
		msgs, err := queries.Messages(r.Context(), chi.URLParam(r, "roomID"), f)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

type editMessageRequest struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

func handleEditMessage(messages *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in editMessageRequest
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, err)
			return
		}
		msg, err := messages.Edit(r.Context(),
			chi.URLParam(r, "roomID"), chi.URLParam(r, "messageID"), in.Sender, in.Content)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, msg)
	}
}

// handleDeleteMessage lets the original sender delete, or any caller holding
// the room admin key.
func handleDeleteMessage(messages *service.MessageService, rooms *service.RoomService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")
		isAdmin, err := optionalAdmin(r, rooms, roomID)
		if err != nil {
			writeError(w, err)
			return
		}
		caller := r.URL.Query().Get("sender")
		err = messages.Delete(r.Context(), roomID, chi.URLParam(r, "messageID"), caller, isAdmin)
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListEdits(queries *service.QueryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		edits, err := queries.Edits(r.Context(), chi.URLParam(r, "roomID"), chi.URLParam(r, "messageID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, edits)
	}
}

func handleThread(queries *service.QueryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msgs, err := queries.Thread(r.Context(), chi.URLParam(r, "roomID"), chi.URLParam(r, "messageID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

type reactionRequest struct {
	Sender string `json:"sender"`
	Emoji  string `json:"emoji"`
}

func handleAddReaction(messages *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in reactionRequest
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, err)
			return
		}
		reaction, err := messages.React(r.Context(),
			chi.URLParam(r, "roomID"), chi.URLParam(r, "messageID"), in.Sender, in.Emoji)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, reaction)
	}
}

func handleRemoveReaction(messages *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in reactionRequest
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, err)
			return
		}
		err := messages.Unreact(r.Context(),
			chi.URLParam(r, "roomID"), chi.URLParam(r, "messageID"), in.Sender, in.Emoji)
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleRoomReactions(queries *service.QueryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reactions, err := queries.RoomReactions(r.Context(), chi.URLParam(r, "roomID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reactions)
	}
}

type pinRequest struct {
	PinnedBy *string `json:"pinned_by,omitempty"`
}

func handleSetPinned(messages *service.MessageService, pinned bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in pinRequest
		if pinned && r.ContentLength > 0 {
			if err := decodeJSON(r, &in); err != nil {
				writeError(w, err)
				return
			}
		}
		msg, err := messages.SetPinned(r.Context(),
			chi.URLParam(r, "roomID"), chi.URLParam(r, "messageID"), in.PinnedBy, pinned)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, msg)
	}
}

func handleListPins(queries *service.QueryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msgs, err := queries.Pins(r.Context(), chi.URLParam(r, "roomID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

type typingRequest struct {
	Sender string `json:"sender"`
}

func handleTyping(messages *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in typingRequest
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, err)
			return
		}
		if err := messages.Typing(r.Context(), chi.URLParam(r, "roomID"), in.Sender); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleBroadcast(messages *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.BroadcastInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, err)
			return
		}
		results, err := messages.Broadcast(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, results)
	}
}
