package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizcoach/internal/config"
	"github.com/stemsi/quizcoach/internal/database"
	"github.com/stemsi/quizcoach/internal/feedback"
	"github.com/stemsi/quizcoach/internal/handler"
	"github.com/stemsi/quizcoach/internal/logger"
	"github.com/stemsi/quizcoach/internal/metrics"
	"github.com/stemsi/quizcoach/internal/middleware"
	"github.com/stemsi/quizcoach/internal/repository"
	"github.com/stemsi/quizcoach/internal/router"
	"github.com/stemsi/quizcoach/internal/service"
	"github.com/stemsi/quizcoach/internal/validator"
	"github.com/stemsi/quizcoach/internal/worker"
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
		Str("feedback", cfg.FeedbackProvider).
		Msg("Starting Quiz Coach backend")

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

	// ─── Metrics ───────────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// ─── Initialize Repositories ───────────────────────────────────────
	quizRepo := repository.NewQuizRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	cache := repository.NewCache(rdb)
	historyRepo := repository.NewHistoryRepository(rdb, cfg.HistoryTTL)
	attemptQueue := repository.NewAttemptQueue(rdb)

	// ─── Initialize Services ──────────────────────────────────────────
	generator, err := newGenerator(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize feedback generator")
	}

	quizService := service.NewQuizService(quizRepo, cache, cfg.QuizCacheTTL, log)
	sessionService := service.NewSessionService(cfg.SessionSecret, cfg.SessionExpiry)
	feedbackService := service.NewFeedbackService(quizService, sessionService, historyRepo, attemptQueue, generator, m, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	gradeLimiter := middleware.NewRateLimiter(cfg.GradeRatePerMinute, time.Minute)
	handlers := &router.Handlers{
		Quiz:   handler.NewQuizHandler(quizService, feedbackService, cfg.SessionExpiry, log),
		WS:     handler.NewWSHandler(feedbackService, m, gradeLimiter, log, cfg.AllowedOrigins),
		System: handler.NewSystemHandler(database.NewProbe(pool, rdb), attemptQueue, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	attemptWorker := worker.NewAttemptWorker(attemptQueue, attemptRepo, m, log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		attemptWorker.Start(workerCtx)
	}()

	go gradeLimiter.Run(workerCtx.Done())

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load the quiz into Redis before accepting traffic.
	if _, err := quizService.Payload(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, m, gradeLimiter, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
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

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for the attempt buffer to flush.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

func newGenerator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (feedback.Generator, error) {
	switch cfg.FeedbackProvider {
	case config.FeedbackGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, errors.New("GEMINI_API_KEY is required when FEEDBACK_PROVIDER=gemini")
		}
		gen, err := feedback.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log)
		if err != nil {
			return nil, err
		}
		return gen, nil
	case config.FeedbackTemplate, "":
		return feedback.NewTemplateGenerator(), nil
	default:
		log.Warn().Str("provider", cfg.FeedbackProvider).Msg("Unknown feedback provider, using template")
		return feedback.NewTemplateGenerator(), nil
	}
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
