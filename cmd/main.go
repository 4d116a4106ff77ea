// Command tournament-engine serves the tournament lifecycle API.
//
//	@title						Tournament Engine API
//	@version					1.0
//	@description				Enrollment ledger, bracket generation, result intake and standings for tournaments.
//	@BasePath					/
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/Dosada05/tournament-engine/config"
	"github.com/Dosada05/tournament-engine/db"
	_ "github.com/Dosada05/tournament-engine/docs"
	"github.com/Dosada05/tournament-engine/handlers"
	"github.com/Dosada05/tournament-engine/metrics"
	"github.com/Dosada05/tournament-engine/middleware"
	"github.com/Dosada05/tournament-engine/repositories"
	api "github.com/Dosada05/tournament-engine/routes"
	"github.com/Dosada05/tournament-engine/services"
	"github.com/Dosada05/tournament-engine/storage"
	"github.com/Dosada05/tournament-engine/workers"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const shutdownTimeout = 15 * time.Second

// generationQueue is what both queue backends offer.
type generationQueue interface {
	services.Queue
	workers.Source
}

func newLogger(cfg *config.Config) *slog.Logger {
	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		})
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: cfg.LogLevel}))
}

func main() {
	if err := run(); err != nil {
		slog.Error("application failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.String("log_level", cfg.LogLevel.String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbConn, err := db.Connect(cfg.DatabaseURL, 10*time.Second, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	if err := db.Migrate(ctx, dbConn); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	logger.Info("database ready")

	m := metrics.New(prometheus.DefaultRegisterer)
	store := repositories.NewPostgresStore(dbConn, logger)

	wsHub := brackets.NewHub(logger)
	go wsHub.Run()
	defer wsHub.Stop()

	var (
		queue      generationQueue
		closeQueue func()
	)
	if cfg.Redis.Addr != "" {
		rq, err := workers.NewRedisQueue(ctx, workers.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			QueueKey: cfg.Redis.QueueKey,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		queue = rq
		closeQueue = func() {
			if err := rq.Close(); err != nil {
				logger.Error("failed to close redis queue", slog.Any("error", err))
			}
		}
		logger.Info("using redis generation queue", slog.String("addr", cfg.Redis.Addr))
	} else {
		cq := workers.NewChannelQueue(cfg.QueueCapacity)
		queue = cq
		closeQueue = cq.Close
		logger.Info("using in-process generation queue", slog.Int("capacity", cfg.QueueCapacity))
	}

	var archiver services.StandingsArchiver
	if cfg.R2.Enabled() {
		uploader, err := storage.NewCloudflareR2Uploader(ctx, storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			SecretAccessKey: cfg.R2.SecretAccessKey,
			BucketName:      cfg.R2.BucketName,
			PublicBaseURL:   cfg.R2.PublicURL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize Cloudflare R2 uploader: %w", err)
		}
		archiver = storage.NewStandingsArchiver(uploader, "", logger)
		logger.Info("standings archive enabled", slog.String("bucket", cfg.R2.BucketName))
	}

	deps := services.Deps{
		Store:     store,
		Publisher: wsHub,
		Audit:     services.LogAuditSink{Logger: logger.With(slog.String("component", "audit"))},
		Metrics:   m,
		Logger:    logger,
	}

	var (
		generation services.GenerationService
		lifecycle  services.LifecycleService
	)
	startGeneration := func(ctx context.Context, id int) error {
		_, err := generation.StartGeneration(ctx, id)
		return err
	}
	completeTournament := func(ctx context.Context, id int) error {
		_, err := lifecycle.Complete(ctx, id)
		return err
	}

	ranking := services.NewRankingService(deps)
	results := services.NewResultService(deps, cfg.AutoComplete, completeTournament)
	generation = services.NewGenerationService(deps, services.GenerationConfig{
		SyncThreshold: cfg.SyncGenerationThreshold,
		MaxAttempts:   cfg.GenerationMaxAttempts,
	}, queue, results, ranking)
	lifecycle = services.NewLifecycleService(deps, ranking, archiver, startGeneration)
	ledger := services.NewLedgerService(deps, services.AllowAll, startGeneration)
	logger.Info("services initialized")

	pool := workers.NewPool(queue, generation, workers.PoolConfig{Workers: cfg.GenerationWorkers}, logger, m)
	poolDone := make(chan error, 1)
	poolCtx, stopPool := context.WithCancel(context.Background())
	defer stopPool()
	go func() { poolDone <- pool.Run(poolCtx) }()

	scheduler, err := workers.NewScheduler(lifecycle, generation, queue, workers.SchedulerConfig{
		SweepInterval:   cfg.SweepInterval,
		RequeueInterval: cfg.RequeueInterval,
		StaleAfter:      cfg.StaleJobAfter,
	}, logger, m)
	if err != nil {
		return err
	}
	scheduler.Start()

	enrollLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.EnrollRateLimit,
		BurstSize:         cfg.EnrollRateBurst,
	}, logger)
	defer enrollLimiter.Stop()

	router := chi.NewRouter()
	api.SetupRoutes(router, api.Handlers{
		Tournaments: handlers.NewTournamentHandler(lifecycle),
		Enrollments: handlers.NewEnrollmentHandler(ledger, lifecycle),
		Generation:  handlers.NewGenerationHandler(generation),
		Matches:     handlers.NewMatchHandler(results),
		Standings:   handlers.NewStandingsHandler(ranking),
		Wallets:     handlers.NewWalletHandler(ledger),
		WebSocket:   handlers.NewWebSocketHandler(wsHub, generation, nil, logger),
	}, api.Options{
		JWTSecret:     cfg.JWTSecretKey,
		EnrollLimiter: enrollLimiter,
		Metrics:       m,
		Logger:        logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("failed to force close server", slog.Any("error", closeErr))
		}
	}
	if err := scheduler.Stop(); err != nil {
		logger.Error("failed to stop scheduler", slog.Any("error", err))
	}
	stopPool()
	closeQueue()
	select {
	case err := <-poolDone:
		if err != nil {
			logger.Error("generation workers stopped with error", slog.Any("error", err))
		}
	case <-shutdownCtx.Done():
		logger.Warn("generation workers did not stop in time")
	}
	logger.Info("application exited")
	return nil
}
