package main

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.25.0"

	"ghar-chat-service/internal/config"
	"ghar-chat-service/internal/db"
	"ghar-chat-service/internal/handlers"
	"ghar-chat-service/internal/middleware"
	"ghar-chat-service/internal/observability"
	"ghar-chat-service/internal/presence"
	"ghar-chat-service/internal/rabbitmq"
	"ghar-chat-service/internal/repositories"
	"ghar-chat-service/internal/telemetry"
	"ghar-chat-service/internal/ws"
)

func main() {
	cfg := config.Load()

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	shutdownTracing, err := setupTracing(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("tracing shutdown error: %v", err)
		}
	}()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	log.Printf("event publisher mode=%s", rabbitmq.PublisherMode(publisher))

	audit := telemetry.NewAuditEmitter(publisher, "audit.chat", "ghar-chat-service", cfg.Environment)
	registry := presence.NewRegistry(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	userRepo := repositories.NewUserRepo(database)
	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	hub := ws.NewHub()

	authHandler := handlers.NewAuthHandler(userRepo, audit, cfg.JWTSecret, cfg.TokenTTL)
	chatHandler := handlers.NewChatHandler(conversationRepo, messageRepo, registry, hub)
	chatWS := ws.NewChatWebSocketHandler(hub, registry, cfg.JWTSecret)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("ghar-chat-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	router.POST("/signup", authHandler.Signup)
	router.POST("/login", authHandler.Login)

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret)

	router.GET("/me", authMiddleware, authHandler.Me)
	router.GET("/conversations", authMiddleware, chatHandler.ListConversations)
	router.POST("/conversations", authMiddleware, chatHandler.StartConversation)
	router.GET("/message/:conversation_id", authMiddleware, chatHandler.GetMessages)
	router.POST("/message", authMiddleware, chatHandler.PostMessage)

	router.GET("/ws", chatWS.Handle)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// setupTracing installs the OTLP trace exporter. Without an endpoint the
// global noop provider stays in place and spans cost nothing.
func setupTracing(ctx context.Context, cfg config.Config) (func(context.Context) error, error) {
	if cfg.OTLPEndpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := sdkresource.Merge(sdkresource.Default(), sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName("ghar-chat-service"),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}
