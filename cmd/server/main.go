package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/bus"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/config"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/httpserver"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/presence"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/ratelimit"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/retention"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/service"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/store/sqlite"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/webhook"
)

const (
	eventBufferSize = 64
	typingWindow    = 2 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger := newLogger(cfg)
	log.Logger = logger

	st, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
	}
	defer st.Close()

	eventBus := bus.New(eventBufferSize)
	tracker := presence.NewTracker()
	typing := presence.NewTypingTracker(typingWindow)
	limiter := ratelimit.New(cfg.RateLimits)

	rooms := service.NewRoomService(st)
	messages := service.NewMessageService(st, st, st, eventBus, typing)
	dms := service.NewDMService(st, messages)
	files := service.NewFileService(st, st, eventBus)
	profiles := service.NewProfileService(st)
	queries := service.NewQueryService(st, st, st, st)
	reads := service.NewReadService(st, st, st, eventBus)
	webhooks := service.NewWebhookService(st, st, messages)
	exports := service.NewExportService(st, st)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := retention.NewSweeper(st, st, logger)
	go sweeper.Run(ctx)

	dispatcher := webhook.NewDispatcher(st, eventBus, logger)
	go dispatcher.Run(ctx)

	router := httpserver.NewRouter(httpserver.Deps{
		Config:   cfg,
		Log:      logger,
		Rooms:    rooms,
		Messages: messages,
		DMs:      dms,
		Files:    files,
		Profiles: profiles,
		Queries:  queries,
		Reads:    reads,
		Webhooks: webhooks,
		Exports:  exports,
		Stats:    st,
		Bus:      eventBus,
		Presence: tracker,
		Limiter:  limiter,
	})

	srv := &http.Server{
		Addr:        cfg.HTTPAddr(),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: SSE and WebSocket connections stay open.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", cfg.HTTPAddr()).
			Bool("mdns_enabled", cfg.MDNSEnabled).
			Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// newLogger builds the process logger: human-readable console output in
// development, JSON in production.
func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDevelopment() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
