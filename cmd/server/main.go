package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/seatwatch/seatwatch-backend/internal/config"
	"github.com/seatwatch/seatwatch-backend/internal/database"
	"github.com/seatwatch/seatwatch-backend/internal/handler"
	"github.com/seatwatch/seatwatch-backend/internal/logger"
	"github.com/seatwatch/seatwatch-backend/internal/monitor"
	"github.com/seatwatch/seatwatch-backend/internal/repository"
	"github.com/seatwatch/seatwatch-backend/internal/router"
	"github.com/seatwatch/seatwatch-backend/internal/service"
	"github.com/seatwatch/seatwatch-backend/internal/validator"
	"github.com/seatwatch/seatwatch-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting SeatWatch Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	courseRepo := repository.NewCourseRepository(pool)
	watchRepo := repository.NewWatchRepository(pool)

	// ─── Initialize Monitoring Engine ──────────────────────────────────
	fetcher := monitor.NewPageFetcher(cfg.FetchTimeout, log)
	selector := monitor.NewRecipientSelector(watchRepo)
	notifier := monitor.NewMailNotifier(
		cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword,
		cfg.NotifierFrom, log,
	)
	hub := monitor.NewEventHub()

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb)
	subService := service.NewSubscriptionService(courseRepo, watchRepo, fetcher, cfg.MaxStandardSections, log)
	statsService := service.NewStatsService(courseRepo, userRepo, rdb, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:      handler.NewAuthHandler(authService, userRepo),
		Watch:     handler.NewWatchHandler(subService, userRepo),
		Stats:     handler.NewStatsHandler(statsService),
		MonitorWS: handler.NewMonitorWSHandler(hub, log, cfg.AllowedOrigins),
	}

	// ─── Start Monitor Worker ─────────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	monitorWorker := worker.NewMonitorWorker(
		courseRepo, watchRepo,
		fetcher, monitor.SeatExtractor{}, selector, notifier, hub,
		cfg.PollInterval, cfg.CooldownWindow,
		log,
	)
	go monitorWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the monitor worker; an in-flight fetch is abandoned.
	workerCancel()

	log.Info().Msg("Shutdown complete")
}
