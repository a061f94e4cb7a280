package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"trustchat/internal/cache"
	"trustchat/internal/classifier"
	"trustchat/internal/config"
	"trustchat/internal/db"
	"trustchat/internal/dispatch"
	"trustchat/internal/handlers"
	"trustchat/internal/media"
	"trustchat/internal/middleware"
	"trustchat/internal/observability"
	"trustchat/internal/presence"
	"trustchat/internal/rabbitmq"
	"trustchat/internal/repositories"
	"trustchat/internal/telemetry"
	"trustchat/internal/ws"
)

const serviceName = "trustchat"

func main() {
	if err := run(); err != nil {
		slog.Error("service stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := observability.NewLogger(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.OTLPEndpoint, serviceName)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	database, err := db.Connect(ctx, cfg.DatabaseDSN, log)
	if err != nil {
		return err
	}
	defer database.Close()

	messageRepo := repositories.NewMessageRepo(database)
	groupRepo := repositories.NewGroupRepo(database)
	users := newUserDirectory(ctx, cfg, repositories.NewUserRepo(database), log)

	mediaResolver, err := newMediaResolver(ctx, cfg, log)
	if err != nil {
		return err
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
	defer publisher.Close()
	log.Info("event publisher ready", "mode", rabbitmq.PublisherMode(publisher), "noop_reason", rabbitmq.PublisherNoopReason(publisher))
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, serviceName, cfg.Environment, log)

	online := presence.NewMap()
	hub := ws.NewHub(online, log)

	oracle, err := newOracle(cfg, log)
	if err != nil {
		return err
	}
	pool := classifier.NewPool(oracle, classifier.Config{
		Workers:   cfg.ClassifierWorkers,
		QueueSize: cfg.ClassifierQueue,
		Timeout:   cfg.ClassifierTimeout,
	}, log)

	engine := dispatch.NewEngine(dispatch.Deps{
		Messages:  messageRepo,
		Groups:    groupRepo,
		Users:     users,
		Media:     mediaResolver,
		Notifier:  hub,
		Scheduler: pool,
		Audit:     audit,
		Log:       log,
	})
	pool.Start(ctx, engine)

	verifier := middleware.NewJWTVerifier(cfg.JWTSecret)
	messageHandler := handlers.NewMessageHandler(engine, audit)
	groupHandler := handlers.NewGroupHandler(engine, audit)
	wsHandler := ws.NewHandler(hub, verifier, groupRepo, log)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(observability.RequestID())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(gin.Recovery())

	router.GET("/metrics", observability.MetricsHandler())
	router.GET("/ws", wsHandler.Handle)
	handlers.RegisterDebugRoutes(router, handlers.DebugDeps{Audit: audit, Online: online, Classifier: oracle}, cfg.DebugRoutes)

	api := router.Group("/api")
	api.GET("/status", handlers.Status(online))

	authed := api.Group("", middleware.AuthMiddleware(verifier))
	authed.GET("/messages/users", messageHandler.ListContacts)
	authed.GET("/messages/:id", messageHandler.GetConversation)
	authed.PUT("/messages/mark/:id", messageHandler.MarkSeen)
	authed.POST("/messages/send/:id", messageHandler.SendMessage)

	authed.POST("/groups/create", groupHandler.CreateGroup)
	authed.GET("/groups", groupHandler.ListGroups)
	authed.GET("/groups/:groupId/messages", groupHandler.GetGroupMessages)
	authed.POST("/groups/send/:groupId", groupHandler.SendGroupMessage)
	authed.PUT("/groups/update/:groupId", groupHandler.UpdateGroup)
	authed.POST("/groups/join/:groupId", groupHandler.JoinGroup)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
	stop()
	pool.Wait()
	return nil
}

// newUserDirectory puts the Redis read-through cache in front of the user
// table when REDIS_ADDR is set and reachable.
func newUserDirectory(ctx context.Context, cfg config.Config, repo *repositories.UserRepo, log *slog.Logger) dispatch.UserDirectory {
	if cfg.RedisAddr == "" {
		return cache.NewUserCache(repo, nil, 0, log)
	}
	rc := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		log.Warn("redis unavailable, user cache disabled", "error", err)
		_ = rc.Close()
		return cache.NewUserCache(repo, nil, 0, log)
	}
	return cache.NewUserCache(repo, rc, cfg.UserCacheTTL, log)
}

func newMediaResolver(ctx context.Context, cfg config.Config, log *slog.Logger) (dispatch.MediaResolver, error) {
	if !cfg.MediaEnabled() {
		log.Info("object storage not configured, image uploads disabled")
		return media.Disabled{}, nil
	}
	store, err := media.NewS3Storage(media.S3Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		Bucket:    cfg.S3Bucket,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		UseSSL:    cfg.S3UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3: %w", err)
	}
	if err := store.EnsureBucket(ctx, cfg.S3Region); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	return media.NewResolver(store, cfg.PublicMediaURL(), cfg.S3Prefix, 0), nil
}

func newOracle(cfg config.Config, log *slog.Logger) (classifier.Oracle, error) {
	if cfg.ClassifierURL != "" {
		log.Info("using remote classifier", "url", cfg.ClassifierURL)
		return classifier.NewHTTPOracle(cfg.ClassifierURL, &http.Client{Timeout: cfg.ClassifierTimeout}), nil
	}
	log.Info("using keyword classifier")
	return classifier.NewDefaultKeywordOracle()
}
