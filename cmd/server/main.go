package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/adapters/audit"
	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/adapters/auth"
	router "github.com/SulimanRohany/deen-bridge-sfu-backend/internal/adapters/http"
	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/adapters/mediagw"
	signaladapter "github.com/SulimanRohany/deen-bridge-sfu-backend/internal/adapters/signal"
	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/adapters/webhook"
	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/app"
	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/config"
	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	instance := cfg.Instance
	if instance == "" {
		instance = uuid.NewString()
	}

	var events core.EventLog
	if cfg.AuditDBPath != "" {
		auditLog, err := audit.Open(cfg.AuditDBPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open audit log")
		}
		defer auditLog.Close()
		events = auditLog
	}
	var hooks core.WebhookSender
	if cfg.WebhookURL != "" {
		hooks = webhook.NewSender(cfg.WebhookURL, cfg.WebhookSecret)
	}

	engine := mediagw.NewClient(cfg.MediaEngineURL)
	store := core.NewStore(instance, cfg.DefaultRoomCapacity, cfg.AutoCreateRooms, engine)
	registry := app.NewRegistry()
	coord := app.NewCoordinator(store, registry, events, hooks)

	verifier := auth.NewVerifier(cfg.JWTSecret)
	limiter := signaladapter.NewConnectRateLimiter(cfg.ConnectRateLimit, cfg.ConnectRateWindow)
	ctl := signaladapter.NewSignalController(coord, verifier, limiter,
		cfg.ReadLimit, cfg.HeartbeatPeriod, cfg.HeartbeatTimeout, cfg.AuthFailOpen)

	sweeper := &signaladapter.Sweeper{Coord: coord, Period: cfg.HeartbeatPeriod, Timeout: cfg.HeartbeatTimeout}
	go sweeper.Run(ctx)

	r := router.SetupRouter(ctx, cfg, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Str("instance", instance).Msg("signaling server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	for _, snap := range registry.All() {
		snap.Conn.Close()
		coord.Disconnect(snap.ID)
	}
	store.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
