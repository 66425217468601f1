package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/uml-studio/engine/internal/api"
	"github.com/uml-studio/engine/internal/api/handlers"
	"github.com/uml-studio/engine/internal/api/middleware"
	"github.com/uml-studio/engine/internal/cache"
	"github.com/uml-studio/engine/internal/queue/tasks"
	"github.com/uml-studio/engine/internal/repository"
	"github.com/uml-studio/engine/internal/services"
	"github.com/uml-studio/engine/pkg/config"
	"github.com/uml-studio/engine/pkg/database"
	"github.com/uml-studio/engine/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.MustLoad()

	// Initialize logger
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("Starting UML Studio Engine",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.HTTPAddr),
	)
	if cfg.JWTSecret == config.DevJWTSecret {
		log.Warn("JWT_SECRET not set, using development secret (INSECURE for production)")
	}

	// Connect to database
	ctx := context.Background()
	db, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	sessionRepo := repository.NewSessionLogRepository(db)
	diagramStore := repository.NewDiagramStore(db)

	// Redis backs the read cache, token revocation and the audit queue.
	// Without it everything stays in process.
	var (
		projectCache cache.ProjectCache       = cache.NoopProjectCache{}
		revoked      cache.RevocationList     = cache.NewMemoryRevocationList()
		sessions     services.SessionRecorder = services.NewStoreSessionRecorder(sessionRepo)
	)
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Fatal("redis connection failed", zap.Error(err))
		}
		defer rdb.Close()

		queue := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer queue.Close()

		projectCache = cache.NewRedisProjectCache(rdb, cfg.CacheTTL)
		revoked = cache.NewRedisRevocationList(rdb)
		sessions = tasks.NewQueueSessionRecorder(queue)
		log.Info("Redis connected", zap.String("addr", cfg.RedisAddr))
	} else {
		log.Warn("REDIS_ADDR not set, using in-process cache and revocation list")
	}

	// Initialize services
	authSvc := services.NewAuthService(userRepo, sessions, revoked, []byte(cfg.JWTSecret), cfg.JWTTTL)
	projectSvc := services.NewProjectService(projectRepo, diagramStore, projectCache)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer limiter.Stop()

	// Create router with dependencies
	router := api.NewRouter(api.Dependencies{
		Verifier:        authSvc,
		AuthHandler:     handlers.NewAuthHandler(authSvc),
		ProjectsHandler: handlers.NewProjectsHandler(projectSvc),
		DiagramHandler:  handlers.NewDiagramHandler(projectSvc),
		HealthHandler:   handlers.NewHealthHandler(pinger(db)),
		CORSOrigins:     cfg.CORSAllowedOrigins,
		RateLimiter:     limiter,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server exited gracefully")
	}
}

func pinger(db *gorm.DB) handlers.Pinger {
	return func(ctx context.Context) error { return database.Ping(ctx, db) }
}
