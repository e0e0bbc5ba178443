// Command server runs the chatroom backend: a phone/OTP mock login, a
// chatroom dashboard, per-room message threads with a simulated responder,
// and whole-snapshot persistence into SQLite.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/avendal/go-chatroom-backend/internal/config"
	"github.com/avendal/go-chatroom-backend/internal/countries"
	"github.com/avendal/go-chatroom-backend/internal/domain"
	httpapi "github.com/avendal/go-chatroom-backend/internal/http"
	"github.com/avendal/go-chatroom-backend/internal/observability"
	"github.com/avendal/go-chatroom-backend/internal/responder"
	"github.com/avendal/go-chatroom-backend/internal/services"
	"github.com/avendal/go-chatroom-backend/internal/state"
	"github.com/avendal/go-chatroom-backend/internal/store"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()
	log := newLogger(cfg)

	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	// Persistence
	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := store.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}
	st := store.New(db)

	// State containers, rehydrated from the persisted blobs. A missing blob is
	// the normal first-run case; a malformed one is logged and replaced by the
	// documented empty default.
	chatState := domain.NewChatState()
	if err := st.Load(store.ChatStateKey, &chatState); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn().Err(err).Msg("chat state blob unreadable, starting empty")
		}
		chatState = domain.NewChatState()
	}
	authState := domain.NewAuthSession()
	if err := st.Load(store.AuthStateKey, &authState); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn().Err(err).Msg("auth state blob unreadable, starting fresh")
		}
		authState = domain.NewAuthSession()
	}

	chat := state.NewChat(chatState, st, log)
	auth := state.NewAuth(authState, st, log)

	// Services
	chatSvc := services.NewChatService(chat, &responder.Canned{}, log)
	authSvc := services.NewAuthService(auth, log)
	dir := countries.NewREST(log)

	// HTTP
	r := gin.New()
	httpapi.RegisterRoutes(r, st, chatSvc, authSvc, dir, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}

	// Cancel outstanding simulated replies and wait for their goroutines.
	chatSvc.Close()

	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown failed")
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Info().Msg("bye")
}

// newLogger builds the process-wide zerolog logger from config.
func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if cfg.LogPretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Str("service", cfg.OTEL.ServiceName).Logger()
}
