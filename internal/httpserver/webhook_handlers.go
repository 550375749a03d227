package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/service"
)

func handleCreateOutgoing(webhooks *service.WebhookService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.OutgoingWebhookInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, err)
			return
		}
		roomID := chi.URLParam(r, "roomID")
		hook, err := webhooks.CreateOutgoing(r.Context(), &roomID, in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, hook)
	}
}

func handleListOutgoing(webhooks *service.WebhookService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")
		hooks, err := webhooks.ListOutgoing(r.Context(), &roomID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, hooks)
	}
}

func handleUpdateOutgoing(webhooks *service.WebhookService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.OutgoingWebhookInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, err)
			return
		}
		roomID := chi.URLParam(r, "roomID")
		hook, err := webhooks.UpdateOutgoing(r.Context(), &roomID, chi.URLParam(r, "webhookID"), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, hook)
	}
}

func handleDeleteOutgoing(webhooks *service.WebhookService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")
		if err := webhooks.DeleteOutgoing(r.Context(), &roomID, chi.URLParam(r, "webhookID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleCreateIncoming(webhooks *service.WebhookService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.IncomingWebhookInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, err)
			return
		}
		hook, err := webhooks.CreateIncoming(r.Context(), chi.URLParam(r, "roomID"), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, hook)
	}
}

func handleListIncoming(webhooks *service.WebhookService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hooks, err := webhooks.ListIncoming(r.Context(), chi.URLParam(r, "roomID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, hooks)
	}
}

func handleUpdateIncoming(webhooks *service.WebhookService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.IncomingWebhookUpdate
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, err)
			return
		}
		hook, err := webhooks.UpdateIncoming(r.Context(),
			chi.URLParam(r, "roomID"), chi.URLParam(r, "webhookID"), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, hook)
	}
}

func handleDeleteIncoming(webhooks *service.WebhookService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := webhooks.DeleteIncoming(r.Context(),
			chi.URLParam(r, "roomID"), chi.URLParam(r, "webhookID"))
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleHookPost accepts messages from external systems via an incoming
// webhook token. No admin key involved; the token is the credential.
func handleHookPost(webhooks *service.WebhookService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.HookPostInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, err)
			return
		}
		msg, err := webhooks.HookPost(r.Context(), chi.URLParam(r, "token"), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	}
}
