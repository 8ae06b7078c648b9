package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"classroll/internal/attendance"
	"classroll/internal/checkin"
	"classroll/internal/config"
	"classroll/internal/logging"
	"classroll/internal/queue"
	"classroll/internal/roster"
	"classroll/internal/store"
)

// Worker consumes check-in messages from Redis and records attendance.
func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.Production(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend != "redis" {
		logger.Fatal("worker needs QUEUE_BACKEND=redis; the api records check-ins in-process otherwise")
	}
	rdb := store.NewRedis(cfg.RedisAddr)
	if rdb == nil {
		logger.Fatal("REDIS_ADDR is required")
	}
	defer func() { _ = rdb.Close() }()
	if !rdb.Healthy(ctx) {
		logger.Warn("redis not reachable yet; consumer will keep retrying", zap.String("addr", cfg.RedisAddr))
	}

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	defer func() { _ = db.Close() }()
	if err := store.Migrate(ctx, db); err != nil {
		logger.Fatal("migrate failed", zap.Error(err))
	}

	rq := queue.NewRedisQueue(rdb.Client, queue.DefaultKey)
	rq.OnError(func(err error) { logger.Warn("check-in queue", zap.Error(err)) })

	rosterRepo := roster.NewRepository(db.Client)
	att := attendance.NewService(
		attendance.NewRepository(db.Client),
		roster.NewService(rosterRepo, logger.Named("roster")),
		rosterRepo,
		logger.Named("attendance"),
	)

	logger.Info("worker started, waiting for check-ins", zap.String("queue", queue.DefaultKey))
	if err := checkin.Consume(ctx, rq, att, logger.Named("checkin")); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", zap.Error(err))
	}
	logger.Info("worker stopped")
}
