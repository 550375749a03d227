// Package httpserver wires the REST surface, the SSE and WebSocket streams,
// and the middleware stack around the service layer.
package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/bus"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/config"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/presence"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/ratelimit"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/service"
)

// Deps bundles everything the router needs.
type Deps struct {
	Config   *config.Config
	Log      zerolog.Logger
	Rooms    *service.RoomService
	Messages *service.MessageService
	DMs      *service.DMService
	Files    *service.FileService
	Profiles *service.ProfileService
	Queries  *service.QueryService
	Reads    *service.ReadService
	Webhooks *service.WebhookService
	Exports  *service.ExportService
	Stats    domain.StatsRepository
	Bus      *bus.Bus
	Presence *presence.Tracker
	Limiter  *ratelimit.Limiter
}

// NewRouter constructs the HTTP router and wires routes and middleware.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(d.Log))
	r.Use(requestMetrics)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.Config.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Admin-Key"},
		MaxAge:         300,
	}))

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handleHealth())
		r.Get("/stats", handleStats(d.Stats, d.Bus))
		r.Get("/discover", handleDiscover(d.Config))

		r.Route("/rooms", func(r chi.Router) {
			r.Get("/", handleListRooms(d.Rooms))
			r.With(rateLimit(d.Limiter, ratelimit.BucketRooms)).
				Post("/", handleCreateRoom(d.Rooms))

			r.Route("/{roomID}", func(r chi.Router) {
				r.Get("/", handleGetRoom(d.Rooms))

				// Admin-only room management.
				r.Group(func(r chi.Router) {
					r.Use(requireAdmin(d.Rooms))
					r.Put("/", handleUpdateRoom(d.Rooms))
					r.Delete("/", handleDeleteRoom(d.Rooms))
					r.Post("/archive", handleSetArchived(d.Rooms, true))
					r.Post("/unarchive", handleSetArchived(d.Rooms, false))
				})

				r.Route("/messages", func(r chi.Router) {
					r.Get("/", handleListMessages(d.Queries))
					r.With(rateLimit(d.Limiter, ratelimit.BucketMessages)).
						Post("/", handleSendMessage(d.Messages))

					r.Route("/{messageID}", func(r chi.Router) {
						r.Get("/", handleGetMessage(d.Messages))
						r.With(rateLimit(d.Limiter, ratelimit.BucketMessages)).
							Put("/", handleEditMessage(d.Messages))
						r.Delete("/", handleDeleteMessage(d.Messages, d.Rooms))
						r.Get("/edits", handleListEdits(d.Queries))
						r.Get("/thread", handleThread(d.Queries))

						r.Post("/reactions", handleAddReaction(d.Messages))
						r.Delete("/reactions", handleRemoveReaction(d.Messages))

						r.Group(func(r chi.Router) {
							r.Use(requireAdmin(d.Rooms))
							r.Post("/pin", handleSetPinned(d.Messages, true))
							r.Delete("/pin", handleSetPinned(d.Messages, false))
						})
					})
				})

				r.Get("/reactions", handleRoomReactions(d.Queries))
				r.Get("/pins", handleListPins(d.Queries))

				r.Put("/read", handleSetRead(d.Reads))
				r.Get("/read", handleListRead(d.Reads))

				r.With(rateLimit(d.Limiter, ratelimit.BucketMessages)).
					Post("/typing", handleTyping(d.Messages))

				r.Put("/bookmark", handleSetBookmark(d.Reads))
				r.Delete("/bookmark", handleDeleteBookmark(d.Reads))

				r.Route("/files", func(r chi.Router) {
					r.Get("/", handleListFiles(d.Files))
					r.With(rateLimit(d.Limiter, ratelimit.BucketFiles)).
						Post("/", handleUploadFile(d.Files))
					r.Delete("/{fileID}", handleDeleteFile(d.Files, d.Rooms))
				})

				r.Get("/presence", handleRoomPresence(d.Presence))
				r.Get("/export", handleExport(d.Exports))

				r.Get("/stream", handleStream(d.Bus, d.Presence))
				r.Get("/ws", handleWS(d.Bus, d.Presence, d.Log))

				// Webhook management is admin-only.
				r.Group(func(r chi.Router) {
					r.Use(requireAdmin(d.Rooms))

					r.Route("/webhooks", func(r chi.Router) {
						r.Get("/", handleListOutgoing(d.Webhooks))
						r.Post("/", handleCreateOutgoing(d.Webhooks))
						r.Put("/{webhookID}", handleUpdateOutgoing(d.Webhooks))
						r.Delete("/{webhookID}", handleDeleteOutgoing(d.Webhooks))
					})
					r.Route("/incoming-webhooks", func(r chi.Router) {
						r.Get("/", handleListIncoming(d.Webhooks))
						r.Post("/", handleCreateIncoming(d.Webhooks))
						r.Put("/{webhookID}", handleUpdateIncoming(d.Webhooks))
						r.Delete("/{webhookID}", handleDeleteIncoming(d.Webhooks))
					})
				})
			})
		})

		r.Route("/files/{fileID}", func(r chi.Router) {
			r.Get("/", handleDownloadFile(d.Files))
			r.Get("/info", handleFileInfo(d.Files))
		})

		r.Route("/dm", func(r chi.Router) {
			r.With(rateLimit(d.Limiter, ratelimit.BucketDMs)).
				Post("/", handleSendDM(d.DMs))
			r.Get("/", handleListDMs(d.DMs))
			r.Get("/{roomID}", handleGetDM(d.DMs))
		})

		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", handleListProfiles(d.Profiles))
			r.Put("/{sender}", handleUpsertProfile(d.Profiles))
			r.Get("/{sender}", handleGetProfile(d.Profiles))
			r.Delete("/{sender}", handleDeleteProfile(d.Profiles))
		})

		r.Get("/presence", handleAllPresence(d.Presence))
		r.Get("/unread", handleUnread(d.Queries))
		r.Get("/mentions", handleMentions(d.Queries))
		r.Get("/mentions/unread", handleUnreadMentions(d.Queries))
		r.Get("/bookmarks", handleListBookmarks(d.Reads))
		r.Get("/search", handleSearch(d.Queries))
		r.Get("/activity", handleActivity(d.Queries))

		r.With(rateLimit(d.Limiter, ratelimit.BucketMessages)).
			Post("/broadcast", handleBroadcast(d.Messages))

		r.With(rateLimit(d.Limiter, ratelimit.BucketWebhooks)).
			Post("/hook/{token}", handleHookPost(d.Webhooks))
	})

	return r
}

// parseTimeParam parses an RFC3339 query parameter, nil when absent.
func parseTimeParam(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, domain.ErrInvalidInput
	}
	return &t, nil
}
