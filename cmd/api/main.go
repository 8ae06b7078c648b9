package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"classroll/internal/account"
	"classroll/internal/attendance"
	"classroll/internal/auth"
	"classroll/internal/checkin"
	"classroll/internal/config"
	"classroll/internal/handler"
	"classroll/internal/httpmiddleware"
	"classroll/internal/logging"
	"classroll/internal/metrics"
	"classroll/internal/qrsession"
	"classroll/internal/queue"
	"classroll/internal/roster"
	"classroll/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	logger, err := logging.New(cfg.Production(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	if err := store.Migrate(ctx, db); err != nil {
		return err
	}

	rdb := store.NewRedis(cfg.RedisAddr)
	defer func() { _ = rdb.Close() }()
	var redisClient *redis.Client
	if rdb != nil {
		redisClient = rdb.Client
	}

	var q queue.Queue
	inProcess := false
	switch {
	case cfg.QueueBackend == "redis" && redisClient != nil:
		rq := queue.NewRedisQueue(redisClient, queue.DefaultKey)
		rq.OnError(func(err error) { logger.Warn("check-in queue", zap.Error(err)) })
		q = rq
	default:
		if cfg.QueueBackend == "redis" {
			logger.Warn("QUEUE_BACKEND=redis but REDIS_ADDR is empty; using in-process queue")
		}
		q = queue.NewInMemory(256)
		inProcess = true
	}

	rosterRepo := roster.NewRepository(db.Client)
	rosterSvc := roster.NewService(rosterRepo, logger.Named("roster"))
	issuer := auth.NewIssuer(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
	att := attendance.NewService(attendance.NewRepository(db.Client), rosterSvc, rosterRepo, logger.Named("attendance"))

	sessions := qrsession.NewRepository(db.Client)
	cache := qrsession.NewCache(redisClient)
	manager := qrsession.NewManager(sessions, rosterRepo, cache, cfg.QRSessionTTL, logger.Named("qrsession"))
	defer manager.Close()
	if err := manager.Resume(ctx); err != nil {
		logger.Warn("resume qr sessions", zap.Error(err))
	}

	consumerDone := make(chan struct{})
	if inProcess {
		go func() {
			defer close(consumerDone)
			if err := checkin.Consume(ctx, q, att, logger.Named("checkin")); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("check-in consumer stopped", zap.Error(err))
			}
		}()
	} else {
		close(consumerDone)
	}

	h := &handler.Handler{
		Accounts:    account.NewService(account.NewRepository(db.Client), rosterRepo, issuer, logger.Named("account")),
		Roster:      rosterSvc,
		Attendance:  att,
		Sessions:    manager,
		Checkins:    checkin.NewService(qrsession.NewVerifier(sessions, cache, logger.Named("verifier")), rosterRepo, q, logger.Named("checkin")),
		Issuer:      issuer,
		Log:         logger,
		QRImageSize: cfg.QRImageSize,
		ScanLimit:   httpmiddleware.NewSimpleTokenBucket(cfg.ScanRateLimitPerMin, cfg.ScanRateLimitPerMin),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.GinLogger(logger, "/healthz", "/metrics"))
	r.Use(metrics.GinMiddleware())
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	r.Use(httpmiddleware.SecurityHeaders(cfg.Production()))
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		dbHealthy := db.Healthy(c.Request.Context())
		redisStatus := "disabled"
		if rdb != nil {
			redisStatus = "ok"
			if !rdb.Healthy(c.Request.Context()) {
				redisStatus = "down"
			}
		}
		status := http.StatusOK
		if !dbHealthy || redisStatus == "down" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "db": dbHealthy, "redis": redisStatus})
	})

	h.Register(r)
	handler.RegisterPages(r, cfg.FrontendDir, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.Bool("in_process_queue", inProcess))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}
	stop()
	<-consumerDone

	logger.Info("server exited")
	return nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowWebSockets:  true,
		MaxAge:           24 * time.Hour,
		AllowCredentials: false,
	}
	if len(origins) == 1 && origins[0] == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
