package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/example/pantrysync/internal/api"
	"github.com/example/pantrysync/internal/clientid"
	"github.com/example/pantrysync/internal/config"
	"github.com/example/pantrysync/internal/firebase"
	"github.com/example/pantrysync/internal/household"
	"github.com/example/pantrysync/internal/middleware"
	"github.com/example/pantrysync/internal/notify"
	"github.com/example/pantrysync/internal/ratings"
	"github.com/example/pantrysync/internal/session"
	"github.com/example/pantrysync/internal/syncer"
	"github.com/example/pantrysync/internal/users"
	"github.com/example/pantrysync/pkg/cache"
	"github.com/example/pantrysync/pkg/database"
	"github.com/example/pantrysync/pkg/messagequeue"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	if cfg.IsRelease() {
		zc = zap.NewProductionConfig()
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to load application configuration: %v", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer logger.Sync()

	initCtx, cancelInit := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelInit()

	// --- Store and authentication ---
	var (
		store database.Store
		auth  gin.HandlerFunc
	)
	switch cfg.StoreBackend {
	case config.BackendFirestore:
		clients, err := firebase.Init(initCtx, cfg)
		if err != nil {
			logger.Fatal("CRITICAL_ERROR: Failed to initialize Firebase Admin SDK", zap.Error(err))
		}
		store = database.NewFirestoreStoreFromClient(clients.Firestore, logger)
		auth = middleware.VerifyToken(clients.Auth, logger)
		logger.Info("Firebase Admin SDK (Firestore, Auth) initialized successfully.")
	default:
		store = database.NewMemoryStore()
		logger.Warn("Using the in-memory store; data is lost on restart.")
	}
	if cfg.AuthDisabled {
		auth = middleware.HeaderAuth()
		logger.Warn("AUTH_DISABLED is set: identity headers are trusted.")
	}
	defer store.Close()

	// --- Snapshot cache ---
	var snapshots cache.Cache
	if cfg.CacheBackend == config.BackendRedis {
		snapshots, err = cache.NewRedisCache(initCtx, cache.NewRedisCacheConfig{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			logger.Fatal("CRITICAL_ERROR: Failed to connect to Redis", zap.Error(err))
		}
	} else {
		snapshots = cache.NewMemoryCache()
	}
	defer snapshots.Close()

	// --- Notification sinks ---
	var mq messagequeue.MessageQueue
	if cfg.RabbitMQURL != "" {
		rabbit, err := messagequeue.NewRabbitMQService(messagequeue.NewRabbitMQServiceConfig{URL: cfg.RabbitMQURL}, logger)
		if err != nil {
			logger.Fatal("CRITICAL_ERROR: Failed to connect to RabbitMQ", zap.Error(err))
		}
		mq = rabbit
		defer rabbit.Close()
	}
	sentryEnabled := false
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.SentryEnvironment,
		}); err != nil {
			logger.Error("Sentry init failed", zap.Error(err))
		} else {
			sentryEnabled = true
			defer sentry.Flush(2 * time.Second)
		}
	}
	sinks := func(uid string) []syncer.Notifier {
		var out []syncer.Notifier
		if mq != nil {
			out = append(out, notify.NewQueue(mq, cfg.NotificationQueue, uid, logger))
		}
		if sentryEnabled {
			out = append(out, notify.NewSentry(sentry.CurrentHub().Clone(), uid))
		}
		return out
	}

	cid, err := clientid.Load(cfg.ClientIDFile)
	if err != nil {
		logger.Fatal("CRITICAL_ERROR: Failed to load client id", zap.Error(err))
	}
	logger.Info("Client id loaded", zap.String("client_id", cid))

	// --- Services ---
	households := household.NewService(store, logger)
	sessions := session.NewManager(session.Options{
		Store:    store,
		Cache:    snapshots,
		Logger:   logger,
		ClientID: cid,
		Timings:  cfg.SyncTimings(),
		Sinks:    sinks,
	}, households)
	handler := api.NewHandler(sessions, households, users.NewService(store, logger), ratings.NewService(store, logger), logger)

	// --- HTTP ---
	if cfg.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.Recovery(logger))
	if sentryEnabled {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	if cfg.ClientURL != "" {
		router.Use(middleware.CORS(cfg.ClientURL))
		logger.Info("CORS Middleware enabled", zap.String("clientURL", cfg.ClientURL))
	} else {
		logger.Warn("CORS Middleware SKIPPED: CLIENT_URL is not configured.")
	}
	api.SetupRoutes(router, handler, auth)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Starting HTTP server...", zap.String("address", httpServer.Addr), zap.String("ginMode", gin.Mode()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	// Pending debounced writes are flushed before the store is closed.
	sessions.CloseAll(shutdownCtx)
	logger.Info("Server exiting gracefully.")
}
