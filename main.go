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

	"chanfeed-bot/internal/config"
	"chanfeed-bot/internal/database"
	"chanfeed-bot/internal/importsession"
	"chanfeed-bot/internal/ingest"
	"chanfeed-bot/internal/locales"
	"chanfeed-bot/internal/mediagroups"
	"chanfeed-bot/internal/storage"
	"chanfeed-bot/internal/webhook"
	"chanfeed-bot/pkg/telegoapi"

	sentry "github.com/getsentry/sentry-go"
	telego "github.com/mymmrac/telego"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Initialize localization bundle
	locales.Init(cfg.DefaultLanguage)

	// Initialize Sentry (if DSN is provided)
	err = sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.AppEnv,
		Release:          cfg.Version,
		EnableTracing:    true,
		TracesSampleRate: 1.0,
		Debug:            cfg.Debug,
	})
	if err != nil {
		log.Fatalf("sentry.Init: %s", err)
	}
	defer sentry.Flush(2 * time.Second)

	// Connect to MongoDB
	client, db, err := database.ConnectDB(cfg)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal(err)
	}
	defer func() {
		if err = client.Disconnect(context.Background()); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
			sentry.CaptureException(err)
		} else {
			log.Println("Disconnected from MongoDB.")
		}
	}()

	// Create repository instances
	botConfigRepo := database.NewMongoBotConfigRepository(db)
	linkedChatRepo := database.NewMongoLinkedChatRepository(db)
	accountRepo := database.NewMongoAccountRepository(db)
	sessionRepo := database.NewMongoImportSessionRepository(db)
	bufferRepo := database.NewMongoMediaGroupBufferRepository(db)
	postRepo := database.NewMongoPostRepository(db)
	postMediaRepo := database.NewMongoPostMediaRepository(db)

	// The stored bot config supplements the environment: bindings set by the
	// operator tooling win over local defaults.
	channelID, collectionID := cfg.ChannelID, cfg.CollectionID
	if stored, err := botConfigRepo.GetByToken(context.Background(), cfg.BotToken); err == nil {
		if !stored.Active {
			log.Fatal("Bot is marked inactive in its stored config, refusing to start")
		}
		if stored.ChannelID != 0 {
			channelID = stored.ChannelID
		}
		if stored.CollectionID != 0 {
			collectionID = stored.CollectionID
		}
	} else if !errors.Is(err, database.ErrBotConfigNotFound) {
		sentry.CaptureException(err)
		log.Fatalf("Failed to load stored bot config: %v", err)
	}

	// Creating context for application lifecycle
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Bot Initialization ---
	var bot *telego.Bot
	if cfg.Debug {
		bot, err = telego.NewBot(cfg.BotToken, telego.WithDefaultDebugLogger())
	} else {
		bot, err = telego.NewBot(cfg.BotToken, telego.WithDefaultLogger(false, false))
	}
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to create telego bot: %v", err)
	}
	apiClient := telegoapi.NewClient(bot)

	// Object storage and the retrieval pipeline
	objectStorage, err := storage.NewS3Storage(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Endpoint)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to create object storage: %v", err)
	}
	pipeline := storage.NewPipeline(apiClient, objectStorage)

	// Aggregator, ingestion router, and the import session machine
	aggregator := mediagroups.NewAggregator(bufferRepo, postRepo, postMediaRepo, pipeline, cfg.MediaGroupDelay)
	ingestService := ingest.NewService(channelID, collectionID, linkedChatRepo, postRepo, aggregator, pipeline)
	sessionManager := importsession.NewManager(apiClient, sessionRepo, accountRepo, ingestService, collectionID)

	// Webhook receiver
	processor := webhook.NewProcessor(ingestService, sessionManager)
	server := webhook.NewServer(cfg.ListenAddr, cfg.BotToken, processor)

	webhookURL := cfg.WebhookBaseURL + server.WebhookPath()
	if err := bot.SetWebhook(ctx, &telego.SetWebhookParams{URL: webhookURL}); err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to register webhook: %v", err)
	}
	if err := botConfigRepo.SetWebhookStatus(ctx, cfg.BotToken, true); err != nil {
		log.Printf("Failed to record webhook registration: %v", err)
	}
	log.Printf("Webhook registered at %s", cfg.WebhookBaseURL)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			sentry.CaptureException(err)
			log.Fatalf("Webhook server failed: %v", err)
		}
	}()

	// Wait for context cancellation (e.g., SIGINT, SIGTERM)
	<-ctx.Done()

	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down webhook server: %v", err)
	}
	aggregator.Shutdown()

	if err := bot.DeleteWebhook(shutdownCtx, &telego.DeleteWebhookParams{}); err != nil {
		log.Printf("Error removing webhook: %v", err)
	} else if err := botConfigRepo.SetWebhookStatus(shutdownCtx, cfg.BotToken, false); err != nil {
		log.Printf("Failed to record webhook removal: %v", err)
	}

	log.Println("Shutdown complete.")
}
