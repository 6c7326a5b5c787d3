package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"intraportal/internal/config"
	"intraportal/internal/handler"
	"intraportal/internal/httpserver"
	"intraportal/internal/importer"
	"intraportal/internal/progress"
	"intraportal/internal/repository"
	"intraportal/internal/service/project"
	"intraportal/internal/service/task"
	"intraportal/pkg/auth"
	"intraportal/pkg/db"
	"intraportal/pkg/lock"
	"intraportal/pkg/logger"
	"intraportal/pkg/otel"
	redisclient "intraportal/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger(cfg.Log.Mode, cfg.Log.Level)
	defer log.Sync()

	if err := cfg.JWT.Validate(); err != nil {
		log.Fatal("Invalid JWT configuration", zap.Error(err))
	}

	log.Info("Starting intraportal api...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("redis_addr", cfg.Redis.Addr),
	)

	shutdownTracing, err := otel.Init(cfg.ServiceName+"-api", cfg.Version, cfg.OTel, log)
	if err != nil {
		log.Warn("Failed to init OpenTelemetry, continuing without tracing", zap.Error(err))
		shutdownTracing = func() {}
	}
	defer shutdownTracing()

	// DB
	log.Info("Initializing database connection...")
	pool, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(context.Background(), pool, log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Redis 只用于导入锁，不可用时导入照常进行
	rdb, err := redisclient.NewClient(cfg.Redis, log)
	if err != nil {
		log.Warn("Redis unavailable, import lock degraded", zap.Error(err))
	}
	defer rdb.Close()

	st := repository.NewStore(pool, log)
	aggregator := progress.NewAggregator(log)

	imp := importer.NewService(st, aggregator, lock.NewLocker(rdb, "intraportal:lock:"), importer.Config{
		EmailDomain: cfg.Import.EmailDomain,
		LockTTL:     cfg.Import.LockTTLOrDefault(),
	}, log)
	projectHandler := handler.NewProjectHandler(imp, project.NewService(st, aggregator, log), cfg.Import.MaxUploadBytes(), log)
	taskHandler := handler.NewTaskHandler(task.NewService(st, aggregator, log), log)

	validator := auth.NewValidator(cfg.JWT.Secret, cfg.JWT.Issuer)
	router := httpserver.NewRouter(projectHandler, taskHandler, validator, st, log)

	port := cfg.Server.Port
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router.Engine,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 优雅退出处理
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeoutOrDefault())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}
	log.Info("intraportal api shutdown complete")
}
