package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-client/internal/config"
	"chat-client/internal/handlers"
	"chat-client/internal/history"
	"chat-client/internal/middleware"
	"chat-client/internal/observability"
	"chat-client/internal/realtime"
	"chat-client/internal/session"
	"chat-client/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	shutdownTracer, err := telemetry.InitTracer(context.Background(), cfg.OTLPEndpoint, "chat-client")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init tracing")
	}

	publisher := observability.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()

	registry := session.NewRegistry(
		session.Settings{
			ServerURL:            cfg.ChatServerURL,
			HistoryBaseURL:       cfg.HistoryBaseURL,
			MaxReconnectAttempts: cfg.ReconnectMaxAttempts,
			ReconnectDelay:       cfg.ReconnectDelay(),
			DialTimeout:          cfg.DialTimeout(),
			TypingExpiry:         cfg.TypingExpiry(),
		},
		realtime.WebsocketDialer{},
		publisher,
		func(token string) history.Fetcher {
			return history.NewClient(cfg.HistoryBaseURL, token, nil)
		},
	)
	defer registry.CloseAll()

	sessionHandler := handlers.NewSessionHandler(registry)
	chatHandler := handlers.NewChatHandler(registry)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("chat-client"))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(observability.RequestLogger())

	router.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.AuthMiddleware(cfg.APIToken)
	api := router.Group("/", authMiddleware)

	api.POST("/sessions", sessionHandler.OpenSession)
	api.DELETE("/sessions/:user_id", sessionHandler.CloseSession)
	api.GET("/sessions/:user_id/status", sessionHandler.GetStatus)
	api.GET("/sessions/:user_id/presence", sessionHandler.GetPresence)
	api.GET("/sessions/:user_id/typing/:peer_id", sessionHandler.GetTyping)
	api.POST("/sessions/:user_id/typing/:peer_id", chatHandler.PostTyping)

	api.POST("/sessions/:user_id/conversations/:conversation_id/activate", chatHandler.ActivateConversation)
	api.GET("/sessions/:user_id/conversations/:conversation_id/messages", chatHandler.GetMessages)
	api.POST("/sessions/:user_id/conversations/:conversation_id/messages", chatHandler.PostMessage)
	api.PATCH("/sessions/:user_id/messages/:message_id", chatHandler.EditMessage)
	api.DELETE("/sessions/:user_id/messages/:message_id", chatHandler.DeleteMessage)

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("gateway listening")
		if err := router.Run(cfg.ListenAddr); err != nil {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	registry.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracer(ctx); err != nil {
		log.Warn().Err(err).Msg("tracer shutdown failed")
	}
}
