package httpserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/bus"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/config"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/presence"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/service"
)

func handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// statsResponse extends the store counts with live connection state.
type statsResponse struct {
	*domain.Stats
	ActiveStreams int `json:"active_streams"`
}

func handleStats(stats domain.StatsRepository, b *bus.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := stats.GetStats(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, statsResponse{Stats: s, ActiveStreams: b.Subscribers()})
	}
}

// discoverResponse advertises the service for LAN clients; the same details
// go out over mDNS when enabled.
type discoverResponse struct {
	Service     string `json:"service"`
	Protocol    string `json:"protocol"`
	Port        int    `json:"port"`
	APIBase     string `json:"api_base"`
	MDNSEnabled bool   `json:"mdns_enabled"`
}

func handleDiscover(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, discoverResponse{
			Service:     "agentchat",
			Protocol:    "_agentchat._tcp.local.",
			Port:        cfg.Port,
			APIBase:     "/api/v1",
			MDNSEnabled: cfg.MDNSEnabled,
		})
	}
}

// roomPresence is the per-room presence snapshot.
type roomPresence struct {
	Count  int              `json:"count"`
	Online []presence.Entry `json:"online"`
}

func snapshotResponse(entries []presence.Entry) roomPresence {
	if entries == nil {
		entries = []presence.Entry{}
	}
	return roomPresence{Count: len(entries), Online: entries}
}

func handleRoomPresence(tracker *presence.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, snapshotResponse(tracker.SnapshotRoom(chi.URLParam(r, "roomID"))))
	}
}

func handleAllPresence(tracker *presence.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all := tracker.SnapshotAll()
		rooms := make(map[string]roomPresence, len(all))
		for roomID, entries := range all {
			rooms[roomID] = snapshotResponse(entries)
		}
		writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
	}
}

func handleUnread(queries *service.QueryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sender := r.URL.Query().Get("sender")
		summary, err := queries.Unread(r.Context(), sender)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func handleMentions(queries *service.QueryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		target := q.Get("target")
		if target == "" {
			target = q.Get("sender")
		}

		var f domain.MentionFilter
		if v := q.Get("room_id"); v != "" {
			f.RoomID = &v
		}
		if v := q.Get("after"); v != "" {
			seq, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				writeError(w, domain.ErrInvalidInput)
				return
			}
			f.AfterSeq = &seq
		}
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeError(w, domain.ErrInvalidInput)
				return
			}
			f.Limit = n
		}

		msgs, err := queries.Mentions(r.Context(), target, f)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

func handleUnreadMentions(queries *service.QueryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		target := q.Get("target")
		if target == "" {
			target = q.Get("sender")
		}
		rooms, err := queries.UnreadMentions(r.Context(), target)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rooms)
	}
}

func handleSearch(queries *service.QueryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit := 0
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeError(w, domain.ErrInvalidInput)
				return
			}
			limit = n
		}
		msgs, err := queries.Search(r.Context(), q.Get("q"), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

func handleActivity(queries *service.QueryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var f domain.ActivityFilter

		if v := q.Get("room_id"); v != "" {
			f.RoomID = &v
		}
		if v := q.Get("sender"); v != "" {
			f.Sender = &v
		}
		if v := q.Get("sender_type"); v != "" {
			f.SenderType = &v
		}
		// Repeated params and comma-separated lists both work.
		for _, ex := range q["exclude_sender"] {
			for _, name := range strings.Split(ex, ",") {
				if name = strings.TrimSpace(name); name != "" {
					f.ExcludeSenders = append(f.ExcludeSenders, name)
				}
			}
		}
		since, err := parseTimeParam(q.Get("since"))
		if err != nil {
			writeError(w, err)
			return
		}
		f.Since = since
		if v := q.Get("after"); v != "" {
			seq, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				writeError(w, domain.ErrInvalidInput)
				return
			}
			f.AfterSeq = &seq
		}
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeError(w, domain.ErrInvalidInput)
				return
			}
			f.Limit = n
		}

		msgs, err := queries.Activity(r.Context(), f)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

func handleExport(exports *service.ExportService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := messageFilter(r)
		if err != nil {
			writeError(w, err)
			return
		}
		q := r.URL.Query()
		body, contentType, err := exports.Export(r.Context(), chi.URLParam(r, "roomID"), service.ExportInput{
			Format:          q.Get("format"),
			Filter:          f,
			IncludeMetadata: q.Get("include_metadata") == "true",
		})
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}
