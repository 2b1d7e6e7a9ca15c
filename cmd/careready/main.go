package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	slacklib "github.com/slack-go/slack"

	"github.com/careready/careready/internal/auth"
	"github.com/careready/careready/internal/config"
	"github.com/careready/careready/internal/enterprise"
	"github.com/careready/careready/internal/inspection"
	"github.com/careready/careready/internal/notify"
	"github.com/careready/careready/internal/server"
	"github.com/careready/careready/internal/store/postgres"
	redisstore "github.com/careready/careready/internal/store/redis"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Initialize structured logging from environment.
	logLevel := os.Getenv("CAREREADY_LOG_LEVEL")
	level, parseErr := zerolog.ParseLevel(logLevel)
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logFormat := os.Getenv("CAREREADY_LOG_FORMAT")
	if logFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	ctx := context.Background()

	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}

	// Connect to PostgreSQL.
	store, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
	if err != nil {
		return err
	}
	defer store.Close()

	// Connect to Redis.
	pubsub, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer pubsub.Close()

	// Create auth service.
	authSvc := auth.NewService(store.Users(), cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)

	// Completion notifications go out through linked messenger accounts.
	// Slack is the only platform registered today; the notifier degrades to
	// logging when Slack is not configured or a user has no links.
	registry := notify.NewRegistry()
	if cfg.Slack.BotToken != "" {
		registry.Register("slack", notify.NewSlackMessenger(slacklib.New(cfg.Slack.BotToken)))
		log.Info().Msg("Slack notifications enabled")
	}
	notifier := notify.New(registry, store.Users())

	// Create the session orchestrator.
	orchestrator := inspection.New(
		store.Sessions(),
		store.Catalogs(),
		store.Profiles(),
		store.Snapshots(),
		store.Audit(),
		pubsub,
		redisstore.SessionChannel,
		notifier,
	)

	// Optional per-tenant concurrent session quota for self-hosted installs.
	if cfg.Sessions.MaxActive > 0 {
		orchestrator.SetLicense(enterprise.NewValidator(&enterprise.License{
			MaxActiveSessions: cfg.Sessions.MaxActive,
			ExpiresAt:         time.Now().AddDate(100, 0, 0),
		}))
		log.Info().Int("max_active_sessions", cfg.Sessions.MaxActive).Msg("session quota enabled")
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Create HTTP server with all routes wired.
	srv := server.New(ctx, cfg, store, pubsub, authSvc, orchestrator)

	// Start server in background goroutine.
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}
