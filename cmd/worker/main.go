package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"intraportal/internal/config"
	"intraportal/internal/mqhandler"
	"intraportal/internal/progress"
	"intraportal/internal/repository"
	"intraportal/pkg/db"
	"intraportal/pkg/dedup"
	"intraportal/pkg/logger"
	"intraportal/pkg/mq"
	"intraportal/pkg/otel"
	"intraportal/pkg/outbox"
	redisclient "intraportal/pkg/redis"
)

const projectImportedQueue = "project.imported.progress.q"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger(cfg.Log.Mode, cfg.Log.Level)
	defer log.Sync()

	log.Info("Starting intraportal worker...", zap.String("mq_url", cfg.MQ.URL))

	shutdownTracing, err := otel.Init(cfg.ServiceName+"-worker", cfg.Version, cfg.OTel, log)
	if err != nil {
		log.Warn("Failed to init OpenTelemetry, continuing without tracing", zap.Error(err))
		shutdownTracing = func() {}
	}
	defer shutdownTracing()

	// DB
	pool, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer pool.Close()

	// Redis 只用于消费去重
	rdb, err := redisclient.NewClient(cfg.Redis, log)
	if err != nil {
		log.Warn("Redis unavailable, consumer dedup degraded", zap.Error(err))
	}
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	// (1) Outbox dispatcher
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	dispatcher := outbox.NewDispatcher(pool, publisher, log).
		WithInterval(cfg.Outbox.IntervalOrDefault()).
		WithBatchSize(cfg.Outbox.BatchSize).
		WithMaxRetries(cfg.Outbox.MaxRetries)

	if cfg.Outbox.ReplayFailedOnStart {
		n, err := dispatcher.Repository().ReplayFailed(ctx)
		if err != nil {
			log.Error("Failed to replay failed outbox events", zap.Error(err))
		} else {
			log.Info("Replayed failed outbox events", zap.Int64("count", n))
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatcher.Start(ctx)
	}()

	// (2) project.imported consumer
	st := repository.NewStore(pool, log)
	importedHandler := mqhandler.NewProjectImportedHandler(
		st,
		progress.NewAggregator(log),
		dedup.NewDeduper(rdb, cfg.Dedup.TTLOrDefault(), log),
		log,
	)

	log.Info("Initializing project.imported consumer", zap.String("queue", projectImportedQueue))
	consumer, err := mq.NewConsumer(cfg.MQ.URL, projectImportedQueue, mq.RoutingKeyProjectImported, log)
	if err != nil {
		log.Fatal("Failed to init project.imported consumer", zap.Error(err))
	}
	defer consumer.Close()
	consumer.SetHandler(importedHandler.Handle)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := consumer.StartConsuming(ctx); err != nil {
			log.Error("project.imported consumer stopped", zap.Error(err))
			cancel()
		}
	}()

	log.Info("intraportal worker is running")

	// 优雅退出处理
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info("Shutting down worker gracefully...")
	cancel()
	wg.Wait()
	log.Info("intraportal worker shutdown complete")
}
