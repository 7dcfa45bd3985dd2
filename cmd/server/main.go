package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paperdesk/paperdesk-backend/internal/clock"
	"github.com/paperdesk/paperdesk-backend/internal/config"
	"github.com/paperdesk/paperdesk-backend/internal/database"
	"github.com/paperdesk/paperdesk-backend/internal/handler"
	"github.com/paperdesk/paperdesk-backend/internal/logger"
	"github.com/paperdesk/paperdesk-backend/internal/repository"
	"github.com/paperdesk/paperdesk-backend/internal/router"
	"github.com/paperdesk/paperdesk-backend/internal/service"
	"github.com/paperdesk/paperdesk-backend/internal/session"
	"github.com/paperdesk/paperdesk-backend/internal/validator"
	"github.com/paperdesk/paperdesk-backend/internal/worker"
	"github.com/rs/zerolog"
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
		Msg("Starting PaperDesk Backend")

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
	candidateRepo := repository.NewCandidateRepository(pool)
	instructorRepo := repository.NewInstructorRepository(pool)
	paperRepo := repository.NewPaperRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	clk := clock.System{}
	registry := session.NewRegistry()

	authService := service.NewAuthService(cfg, rdb, candidateRepo, instructorRepo)
	accountService := service.NewAccountService(authService, candidateRepo, instructorRepo, log)
	catalogService := service.NewCatalogService(paperRepo, attemptRepo, clk, cfg)
	attemptService := service.NewAttemptService(cfg, paperRepo, attemptRepo, rdb, registry, clk, log)
	gradingService := service.NewGradingService(cfg, paperRepo, attemptRepo, rdb, clk, log)
	paperService := service.NewPaperService(paperRepo, rdb, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:    handler.NewAuthHandler(authService),
		Portal:  handler.NewCandidatePortalHandler(catalogService, attemptService),
		Paper:   handler.NewPaperHandler(paperService),
		Grading: handler.NewGradingHandler(gradingService),
		Admin:   handler.NewAdminHandler(accountService),
		WS:      handler.NewWSHandler(attemptService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	answerWorker := worker.NewAnswerWorker(attemptRepo, rdb, log)
	resultWorker := worker.NewResultWorker(pool, rdb, log)
	sweepWorker := worker.NewSweepWorker(attemptRepo, rdb, cfg.SweepInterval, log)

	go answerWorker.Start(workerCtx)
	go resultWorker.Start(workerCtx)
	go sweepWorker.Start(workerCtx)

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load every published paper into Redis BEFORE accepting traffic.
	// This avoids race conditions from lazy loading under thundering herd.
	if err := paperService.PrewarmAll(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

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

	// 2. Cancel live countdowns; durable records keep attempts resumable
	// and the sweeper catches any deadline that passes while we're down.
	registry.CloseAll()

	// 3. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
