package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"festival-booking/config"
	"festival-booking/internal/cache"
	"festival-booking/internal/database"
	"festival-booking/internal/handler"
	"festival-booking/internal/middleware"
	"festival-booking/internal/queue"
	"festival-booking/internal/repository"
	"festival-booking/internal/service"
	"festival-booking/internal/worker"
	"festival-booking/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()
	logger.SetLevel(cfg.Server.LogLevel)
	gin.SetMode(cfg.Server.GinMode)
	log := logger.WithComponent("server")
	defer logger.L.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer store.Close()

	// Redis 只負責快照、Stream 與限流，連不上時降級為不使用
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = database.InitRedis(&cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, running without cache and rate limit", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	var inventoryCache cache.InventoryCache
	if rdb != nil {
		inventoryCache = cache.NewRedisInventoryCache(rdb, cfg.Redis.SnapshotTTL)
	}

	eventQueue, err := openQueue(cfg, rdb)
	if err != nil {
		log.Fatal("Failed to initialize queue", zap.String("driver", cfg.Queue.Driver), zap.Error(err))
	}
	defer eventQueue.Close()

	inventoryService := service.NewInventoryService(store, inventoryCache, eventQueue)
	eventService := service.NewEventService(store, inventoryService, eventQueue)
	commentService := service.NewCommentService(store)

	if cfg.Server.ReconcileOnStart {
		fixed, err := inventoryService.ReconcileAll(ctx)
		if err != nil {
			log.Error("Startup reconcile failed", zap.Error(err))
		} else if fixed > 0 {
			log.Warn("Startup reconcile corrected sold counters", zap.Int("events", fixed))
		}
	}

	bookingWorker := worker.NewBookingEventWorker(inventoryService, eventQueue)
	if err := bookingWorker.Start(ctx); err != nil {
		log.Fatal("Failed to start booking event worker", zap.Error(err))
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.UserRef())
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	api := router.Group("/api/v1")
	limiter := middleware.NewRateLimiter(cfg.RateLimit, rdb)
	handler.NewEventHandler(eventService, inventoryService).RegisterRoutes(api)
	handler.NewBookingHandler(inventoryService).RegisterRoutes(api, limiter.Handler())
	handler.NewCommentHandler(commentService).RegisterRoutes(api)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}

	select {
	case <-bookingWorker.Done():
	case <-shutdownCtx.Done():
		log.Warn("Booking event worker did not stop in time")
	}
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pool, err := database.InitDatabase(&cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return repository.NewPostgresStore(pool), nil
	case config.StoreDriverJSON:
		return repository.NewJSONFileStore(cfg.Store.DataDir)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func openQueue(cfg *config.Config, rdb *redis.Client) (queue.BookingEventQueue, error) {
	switch cfg.Queue.Driver {
	case config.QueueDriverMemory:
		return queue.NewBookingEventQueue(cfg.Queue.BufferSize), nil
	case config.QueueDriverRedis:
		if rdb == nil {
			return nil, errors.New("redis queue requires a reachable redis")
		}
		return queue.NewRedisStreamQueue(rdb, cfg.Queue.ConsumerID, nil)
	case config.QueueDriverAMQP:
		return queue.NewAMQPQueue(cfg.Queue.AMQPURL, cfg.Queue.AMQPQueue)
	}
	return nil, fmt.Errorf("unknown queue driver %q", cfg.Queue.Driver)
}
