package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"wagate/internal/config"
	"wagate/internal/infrastructure"
	httpapi "wagate/internal/interfaces/http"
	"wagate/internal/repository"
	"wagate/internal/usecases"
)

func main() {
	// .env is optional; the environment may already be populated.
	_ = godotenv.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("LOG_PRETTY") == "1" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Fatal().Err(err).Msg("failed to create data directory")
	}

	// Storage
	sqlClient, err := infrastructure.NewSQLiteClient(cfg.DataDir + "/gateway.db")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open gateway database")
	}
	defer sqlClient.Close()

	messageLog, err := repository.NewMessageLog(cfg.DataDir+"/log", cfg.LogMaxMessages, logger.With().Str("component", "log").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open message log")
	}
	defer messageLog.Close()

	contactRepo, err := repository.NewContactRepository(sqlClient.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init contacts")
	}
	webhookRepo, err := repository.NewWebhookRepository(sqlClient.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init webhooks")
	}
	userRepo, err := repository.NewUserRepository(sqlClient.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init users")
	}

	// Core pipeline
	dispatcher, err := usecases.NewWebhookDispatcher(webhookRepo, cfg.WebhookTimeout, logger.With().Str("component", "dispatch").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init dispatcher")
	}
	ingest := usecases.NewIngestService(messageLog, contactRepo, dispatcher, logger.With().Str("component", "ingest").Logger())

	// Auth
	auth := usecases.NewAuthUsecase(userRepo, cfg.JWTSecret)
	if err := auth.EnsureAdmin(cfg.AdminUser, cfg.AdminPass); err != nil {
		logger.Warn().Err(err).Msg("failed to ensure admin user")
	}

	// Connection layer
	waClient, err := infrastructure.NewWhatsAppClient(cfg.SessionDBPath, logger.With().Str("component", "whatsapp").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init WhatsApp client")
	}
	waClient.SetSink(ingest)
	if err := waClient.Connect(); err != nil {
		logger.Fatal().Err(err).Msg("failed to connect WhatsApp client")
	}
	defer waClient.Disconnect()

	// HTTP front door
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	handler := httpapi.NewHandler(waClient, waClient, messageLog, contactRepo, dispatcher, logger.With().Str("component", "http").Logger())
	httpapi.SetupRoutes(r, handler, auth, httpapi.NewMiddleware(cfg.JWTSecret))

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := r.Run(cfg.HTTPAddr); err != nil {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info().Msg("shutting down")
}
