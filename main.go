package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"messaging-service/internal/config"
	"messaging-service/internal/db"
	"messaging-service/internal/handlers"
	"messaging-service/internal/identity"
	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/projection"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.OTLPEndpoint, "messaging-service", cfg.Environment)
	if err != nil {
		logger.Fatal("failed to init tracing", zap.Error(err))
	}
	defer shutdownTracing(ctx)

	database, err := db.Connect(cfg.DBDSN, logger)
	if err != nil {
		logger.Fatal("failed to connect to db", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	verifier, err := identity.NewJWKSVerifier(ctx, cfg.JWKSURL, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWKSRefreshEvery)
	if err != nil {
		logger.Fatal("failed to init identity verifier", zap.Error(err))
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer publisher.Close()
	audit := telemetry.NewAuditEmitter(publisher, "audit.messaging", "messaging-service", cfg.Environment, logger)

	if eventPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger); err == nil {
		observability.SetPublisher(eventPublisher)
		defer eventPublisher.Close()
	} else {
		logger.Info("ws event publishing disabled", zap.Error(err))
	}

	userRepo := repositories.NewUserRepo(database)
	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	reactionRepo := repositories.NewReactionRepo(database)
	typingRepo := repositories.NewTypingRepo(redisClient)

	projector := projection.NewProjector(userRepo, conversationRepo, messageRepo, reactionRepo)

	hub := ws.NewHub(logger)

	userHandler := handlers.NewUserHandler(userRepo, audit)
	conversationHandler := handlers.NewConversationHandler(conversationRepo, userRepo, projector)
	groupHandler := handlers.NewGroupHandler(conversationRepo, userRepo, typingRepo, audit)
	messageHandler := handlers.NewMessageHandler(messageRepo, reactionRepo, userRepo, projector, hub, audit)
	typingHandler := handlers.NewTypingHandler(typingRepo, userRepo, hub)

	conversationWS := ws.NewConversationWebSocketHandler(hub, conversationRepo, userRepo, verifier)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		observability.HTTPMetricsMiddleware(),
		otelgin.Middleware("messaging-service"),
	)

	auth := middleware.Auth(verifier)
	optionalAuth := middleware.OptionalAuth(verifier)

	router.POST("/users/sync", auth, userHandler.Sync)
	router.GET("/users/me", optionalAuth, userHandler.Me)
	router.GET("/users/search", optionalAuth, userHandler.Search)
	router.POST("/users/status", optionalAuth, userHandler.SetStatus)

	router.GET("/conversations", optionalAuth, conversationHandler.List)
	router.POST("/conversations/direct", auth, conversationHandler.StartDirect)
	router.GET("/conversations/:conversation_id", optionalAuth, conversationHandler.Get)
	router.POST("/conversations/:conversation_id/read", optionalAuth, conversationHandler.MarkAsRead)

	router.POST("/groups", auth, groupHandler.Create)
	router.DELETE("/groups/:conversation_id", auth, groupHandler.Delete)
	router.POST("/groups/:conversation_id/members", auth, groupHandler.AddMembers)

	router.GET("/conversations/:conversation_id/messages", optionalAuth, messageHandler.List)
	router.POST("/conversations/:conversation_id/messages", auth, messageHandler.Send)
	router.PATCH("/messages/:message_id", auth, messageHandler.Edit)
	router.DELETE("/messages/:message_id", auth, messageHandler.Delete)
	router.POST("/messages/:message_id/reactions", optionalAuth, messageHandler.ToggleReaction)

	router.POST("/conversations/:conversation_id/typing", optionalAuth, typingHandler.Set)
	router.GET("/conversations/:conversation_id/typing", optionalAuth, typingHandler.List)

	router.GET("/ws/conversations/:conversation_id", conversationWS.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	logger.Info("messaging service listening", zap.String("port", cfg.Port))
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
