package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eptportal/ept-backend/internal/cache"
	"github.com/eptportal/ept-backend/internal/clock"
	"github.com/eptportal/ept-backend/internal/config"
	"github.com/eptportal/ept-backend/internal/database"
	"github.com/eptportal/ept-backend/internal/handler"
	"github.com/eptportal/ept-backend/internal/logger"
	"github.com/eptportal/ept-backend/internal/middleware"
	"github.com/eptportal/ept-backend/internal/repository"
	"github.com/eptportal/ept-backend/internal/router"
	"github.com/eptportal/ept-backend/internal/runner"
	"github.com/eptportal/ept-backend/internal/service"
	"github.com/eptportal/ept-backend/internal/validator"
	"github.com/eptportal/ept-backend/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Refusing to start with this configuration")
	}

	policy, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.PolicyFile).Msg("Failed to load exam policy")
	}

	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Bool("test_mode", cfg.TestMode).
		Float64("timer_speed", cfg.TimerSpeed).
		Int("sections", len(policy.Sections)).
		Msg("Starting EPT Backend")

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

	clk := clock.NewReal(cfg.TimerSpeed)

	// ─── Initialize Repositories ───────────────────────────────────────
	studentRepo := repository.NewStudentRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	testRepo := repository.NewTestRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	submissionRepo := repository.NewSubmissionRepository(pool)
	eventRepo := repository.NewProctoringEventRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	contentCache := cache.NewRequestCache[*runner.Content](clk, cfg.RequestCacheTTL, 256)

	authService := service.NewAuthService(cfg, rdb, studentRepo)
	registrationService := service.NewRegistrationService(bookingRepo, studentRepo, policy, clk, cfg.TestMode, log)
	contentService := service.NewContentService(testRepo, questionRepo, submissionRepo, contentCache, log)
	submissionService := service.NewSubmissionService(testRepo, questionRepo, submissionRepo, log)
	resultService := service.NewResultService(submissionRepo)
	recorder := service.NewViolationRecorder(rdb, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	wsHandler := handler.NewWSHandler(handler.ExamDeps{
		Redis:        rdb,
		Registration: registrationService,
		Content:      contentService,
		Submissions:  submissionService,
		Audit:        recorder,
		Policy:       policy,
		Clock:        clk,
	}, log, cfg.AllowedOrigins)

	handlers := &router.Handlers{
		Auth:          handler.NewAuthHandler(authService, log),
		Registration:  handler.NewRegistrationHandler(registrationService, log),
		StudentPortal: handler.NewStudentPortalHandler(registrationService, contentService, submissionService, resultService, log),
		WS:            wsHandler,
		System:        handler.NewSystemHandler(pool, rdb, contentCache, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})

	violationWorker := worker.NewViolationWorker(eventRepo, rdb, log)
	go func() {
		defer close(workerDone)
		violationWorker.Start(workerCtx)
	}()
	go worker.NewContentInvalidator(contentService, rdb, log).Start(workerCtx)

	// 30 requests per minute per IP on the unauthenticated write routes.
	loginLimiter := middleware.NewRateLimiter(30, time.Minute)
	go loginLimiter.RunCleanup(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, loginLimiter, handlers, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout). Hijacked
	// WebSocket connections are not tracked by Shutdown.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. End open exam sessions so pending answers are flushed.
	wsHandler.CloseAll()

	// 3. Stop the worker and wait for its final flush.
	workerCancel()
	select {
	case <-workerDone:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("Violation worker did not drain in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
