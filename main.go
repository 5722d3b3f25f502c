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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"messaging-service/internal/cache"
	"messaging-service/internal/config"
	"messaging-service/internal/db"
	"messaging-service/internal/handlers"
	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/service"
	"messaging-service/internal/storage"
	"messaging-service/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg)

	database, err := db.Connect(cfg.DBDSN, log)
	if err != nil {
		log.Fatal().Err(err).Msg("database connect failed")
	}
	defer database.Close()

	if cfg.EnableTracing {
		shutdown, err := setupTracing(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("tracing setup failed")
		}
		defer shutdown()
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
	defer publisher.Close()
	emitter := telemetry.NewEmitter(publisher, log)

	var statusCache cache.Cache = cache.Noop{}
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, status cache disabled")
		} else {
			statusCache = redisCache
		}
	}
	defer statusCache.Close()

	store, err := storage.NewLocalStore(cfg.StoragePath, cfg.StorageBaseURL, cfg.MaxUploadBytes, log)
	if err != nil {
		log.Fatal().Err(err).Msg("attachment storage setup failed")
	}

	conversationRepo := repositories.NewConversationRepo(database)
	membershipRepo := repositories.NewMembershipRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	seenRepo := repositories.NewSeenRepo(database)
	attachmentRepo := repositories.NewAttachmentRepo(database)
	userRepo := repositories.NewUserRepo(database)

	conversationSvc := service.NewConversationService(
		conversationRepo, membershipRepo, messageRepo, seenRepo, userRepo,
		statusCache, cfg.StatusCacheTTL, emitter, log,
	)
	messageSvc := service.NewMessageService(
		messageRepo, membershipRepo, seenRepo, attachmentRepo, userRepo,
		store, statusCache, cfg.MaxUploadBytes, emitter, log,
	)

	conversationHandler := handlers.NewConversationHandler(conversationSvc, log)
	messageHandler := handlers.NewMessageHandler(messageSvc, log)
	attachmentHandler := handlers.NewAttachmentHandler(messageSvc, log)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observability.RequestLogger(log))
	router.Use(observability.HTTPMetricsMiddleware())
	if cfg.EnableTracing {
		router.Use(otelgin.Middleware(cfg.ServiceName))
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.Static(cfg.StorageBaseURL, cfg.StoragePath)

	auth := middleware.AuthMiddleware(userRepo)
	chat := router.Group("/chat", auth)
	{
		chat.GET("/status", conversationHandler.Status)
		chat.GET("/users/search", conversationHandler.SearchUsers)

		chat.GET("/conversations", conversationHandler.List)
		chat.POST("/conversations", conversationHandler.Create)
		chat.GET("/conversations/:id", conversationHandler.Get)
		chat.DELETE("/conversations/:id", conversationHandler.Delete)
		chat.POST("/conversations/:id/archive", conversationHandler.Archive)
		chat.POST("/conversations/:id/unarchive", conversationHandler.Unarchive)
		chat.POST("/conversations/:id/leave", conversationHandler.Leave)
		chat.POST("/conversations/:id/members", conversationHandler.AddMember)
		chat.DELETE("/conversations/:id/members/:user_id", conversationHandler.RemoveMember)
		chat.PUT("/conversations/:id/members/:user_id/admin", conversationHandler.SetAdmin)

		chat.GET("/conversations/:id/messages", messageHandler.Page)
		chat.GET("/conversations/:id/messages/poll", messageHandler.Poll)
		chat.GET("/conversations/:id/messages/search", messageHandler.Search)
		chat.POST("/conversations/:id/messages", messageHandler.Send)
		chat.PUT("/messages/:id", messageHandler.Edit)
		chat.DELETE("/messages/:id", messageHandler.Delete)
		chat.POST("/conversations/:id/seen", messageHandler.MarkSeen)

		chat.POST("/conversations/:id/attachments", attachmentHandler.Upload)
		chat.DELETE("/attachments/:id", attachmentHandler.Delete)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: router,
	}

	go func() {
		log.Info().Int("port", cfg.HTTPPort).Str("environment", cfg.Environment).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if cfg.Environment == "development" {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Str("service", cfg.ServiceName).Logger()
}

func setupTracing(cfg *config.Config) (func(), error) {
	ctx := context.Background()

	opts := []otlptracegrpc.Option{otlptracegrpc.WithInsecure()}
	if cfg.OTLPEndpoint != "" {
		opts = append(opts, otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint))
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}, nil
}
