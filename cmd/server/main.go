package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"suzy-backend/internal/config"
	"suzy-backend/internal/database"
	"suzy-backend/internal/handlers"
	"suzy-backend/internal/jobs"
	"suzy-backend/internal/middleware"
	"suzy-backend/internal/repository"
	"suzy-backend/internal/router"
	"suzy-backend/internal/services"
	"suzy-backend/internal/websocket"
	"suzy-backend/internal/worker"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// ──── Step 1: Load Environment Variables ────
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	if cfg.IsProduction() {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	setLogLevel(cfg.LogLevel)

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().Msg("database connected")

	if err := database.RunMigrations(pool, cfg.MigrationsDir); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClients.Close()
	log.Info().Msg("redis connected")

	// ──── Repositories ────
	sessionRepo := repository.NewSessionRepo(pool)
	todoRepo := repository.NewTodoRepo(pool)
	noteRepo := repository.NewNoteRepo(pool)
	analyticsRepo := repository.NewAnalyticsRepo(pool)
	chatRepo := repository.NewChatRepo(pool)
	flashcardRepo := repository.NewFlashcardRepo(pool)
	mockExamRepo := repository.NewMockExamRepo(pool)
	jobRepo := repository.NewJobRepo(pool)

	// ──── Step 4: Initialize Gemini Client ────
	geminiService, err := services.NewGeminiService(
		cfg.GeminiAPIKey,
		cfg.GeminiModel,
		cfg.GeminiConcurrentReqs,
		cfg.GeminiMaxAttempts,
		cfg.GeminiTimeout(),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("gemini client initialization failed")
	}
	defer geminiService.Close()

	// ──── Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	events := services.NewRedisEventPublisher(redisClients.Main)
	refreshQueue := services.NewRefreshQueue(jobRepo, redisClients.Main)

	sessionService := services.NewSessionService(sessionRepo, events)
	timerService := services.NewTimerService(sessionRepo, events)
	todoService := services.NewTodoService(todoRepo, sessionRepo, refreshQueue)
	noteService := services.NewNoteService(noteRepo)
	analyticsService := services.NewAnalyticsService(analyticsRepo, services.NewRedisCache(redisClients.Main), cfg.AnalyticsCacheTTL())
	flashcardService := services.NewFlashcardService(flashcardRepo, noteService, geminiService, refreshQueue)
	mockExamService := services.NewMockExamService(mockExamRepo, noteService, geminiService, refreshQueue)
	chatService := services.NewChatService(chatRepo, analyticsService, todoRepo, flashcardRepo, mockExamRepo, geminiService)

	// ──── Step 5: Background Work ────
	workerPool := worker.NewPool(redisClients.PubSub, jobRepo, analyticsService, cfg.WorkerCount)
	workerPool.Start()

	cleanupJob := jobs.NewCleanupJob(sessionRepo, analyticsRepo, cfg.CleanupInterval(), cfg.TimerMaxOpen())
	cleanupJob.Start()

	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth, sessionRepo)

	// ──── Step 6: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		middleware.NewRedisLimiter(redisClients.Main, time.Minute),
		cfg.AIRateLimitPerMin,
		handlers.NewSessionHandler(sessionService),
		handlers.NewTimerHandler(timerService),
		handlers.NewTodoHandler(todoService),
		handlers.NewNoteHandler(noteService),
		handlers.NewAnalyticsHandler(analyticsService),
		handlers.NewChatHandler(chatService),
		handlers.NewFlashcardHandler(flashcardService),
		handlers.NewMockExamHandler(mockExamService),
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("suzy backend listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cleanupJob.Stop()
	wsHub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	workerPool.Stop()

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
