package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shop-api/batcher"
	"shop-api/cache"
	"shop-api/config"
	"shop-api/handlers"
	"shop-api/jobs"
	"shop-api/logger"
	"shop-api/metrics"
	middleware "shop-api/middlewares"
	"shop-api/pubsub"
	"shop-api/queue"
	"shop-api/store"
	"shop-api/utils"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
)

const (
	taskQueueSize   = 256
	retentionPeriod = "@every 1h"
)

func main() {
	// a missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logger.Init(cfg.LogDir); err != nil {
		log.Fatalf("Failed to initialize loggers: %v", err)
	}

	var sentryHandler *sentryhttp.Handler
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 1.0,
		}); err != nil {
			logger.Error.Printf("Sentry initialization failed: %v", err)
		} else {
			sentryHandler = sentryhttp.New(sentryhttp.Options{Repanic: true})
		}
	}

	db, err := config.OpenDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize the database: %v", err)
	}

	viewStore := store.NewViewStore(db)
	views := batcher.NewViewCache(viewStore, batcher.Options{
		FlushInterval: cfg.ViewFlushInterval,
		MaxBufferSize: cfg.ViewMaxBuffer,
		FlushTimeout:  cfg.ViewFlushTimeout,
		OnError: func(err error, dropped int) {
			sentry.CaptureException(err)
		},
	})
	views.StartFlushTimer()

	var redisStore *cache.RedisStore
	if cfg.RedisAddr != "" {
		err := utils.RetryWithExponentialBackoff(func() error {
			var err error
			redisStore, err = cache.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
			return err
		}, 5, 200*time.Millisecond)
		if err != nil {
			log.Fatalf("Failed to initialize Redis cache: %v", err)
		}
	}

	var productCache cache.ProductCache
	if cfg.CacheBackend == config.CacheRedis {
		productCache = redisStore
	} else {
		bigCache, err := cache.NewBigCacheStore()
		if err != nil {
			log.Fatalf("Failed to initialize cache: %v", err)
		}
		productCache = bigCache
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var events *pubsub.PubSub
	if redisStore != nil {
		events = pubsub.NewPubSub(redisStore)
		pubsub.EvictOnProductChanged(ctx, events, productCache)
	}

	tasks := queue.New(taskQueueSize)
	tasks.StartWorker()

	scheduler := jobs.New()
	if err := scheduler.AddViewRetention(retentionPeriod, cfg.ViewRetention, viewStore); err != nil {
		log.Fatalf("Failed to schedule view retention: %v", err)
	}
	scheduler.Start()

	h := &handlers.Handler{
		DB:     db,
		Cache:  productCache,
		Views:  views,
		Auth:   &middleware.Authenticator{DB: db, Secret: []byte(cfg.JWTSecret), TTL: cfg.JWTTTL},
		Tasks:  tasks,
		Events: events,
	}
	r := newRouter(h, sentryHandler, redisStore, cfg.RateLimitPerMinute)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Debug.Printf("Server is running on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Debug.Printf("received %s, shutting down", sig)

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error.Printf("HTTP server shutdown: %v", err)
	}
	// the HTTP drain may have used up shutdownCtx; pending views get their own budget
	flushCtx, cancelFlush := context.WithTimeout(context.Background(), cfg.ViewFlushTimeout)
	defer cancelFlush()
	views.StopFlushTimer(flushCtx)
	scheduler.Stop()
	tasks.Stop()
	cancel()

	if err := productCache.Close(); err != nil {
		logger.Warn.Printf("close product cache: %v", err)
	}
	if redisStore != nil && cfg.CacheBackend != config.CacheRedis {
		if err := redisStore.Close(); err != nil {
			logger.Warn.Printf("close redis: %v", err)
		}
	}
	sentry.Flush(2 * time.Second)
	logger.Debug.Printf("shutdown complete")
}

// newRouter builds the middleware chain and every route. sentryHandler and
// redisStore may be nil.
func newRouter(h *handlers.Handler, sentryHandler *sentryhttp.Handler, redisStore *cache.RedisStore, ratePerMinute int64) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.LoggingMiddleware)
	if sentryHandler != nil {
		r.Use(sentryHandler.Handle)
	}
	r.Use(middleware.RecoverMiddleware)
	r.Use(middleware.ResponseTimeMiddleware)
	if redisStore != nil {
		r.Use(middleware.APIRateLimitMiddleware(redisStore, ratePerMinute))
	}

	h.Routes(r)
	r.Handle("/metrics", metrics.Handler()).Methods("GET")
	r.NotFoundHandler = http.HandlerFunc(middleware.NotFoundHandler)
	return r
}
