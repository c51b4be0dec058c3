package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/Ananth-NQI/astro-whatsapp-bot/database"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/config"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/content"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/handlers"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/jobs"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/logger"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/routes"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/services"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/storage"
)

const version = "1.0.0"

type redisPinger struct{ client *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.client.Ping(ctx).Err() }

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init("astrobot", cfg.Debug)

	// Storage
	var store storage.Store
	storageType := "postgres"
	if cfg.Database.UseMemoryStore {
		logger.Warn().Msg("Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
		storageType = "memory"
	} else {
		db, err := database.Connect(cfg.Database.DSN, cfg.Database.AutoMigrate, storage.Models()...)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize database")
		}
		store = storage.NewDatabaseStore(db)
	}

	// Menu cache and de-duplication, shared through Redis when configured
	var (
		redisClient *redis.Client
		cachePinger handlers.Pinger
		menuBackend services.MenuBackend
		deduper     services.Deduper
	)
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cachePinger = redisPinger{client: redisClient}
		menuBackend = services.NewRedisMenuBackend(redisClient, cfg.Menu.TTL)
		deduper = services.NewRedisDeduper(redisClient, cfg.Webhook.DedupTTL)
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Using Redis for menu mappings and event de-duplication")
	} else {
		menuBackend = services.NewMemoryMenuBackend(cfg.Menu.MaxUsers, cfg.Menu.TTL)
		deduper = services.NewStoreDeduper(store, cfg.Webhook.DedupTTL)
	}
	if !cfg.Webhook.Dedup {
		deduper = nil
	}

	// Outbound provider
	var sender services.Sender
	switch cfg.WhatsApp.Provider {
	case config.ProviderTwilio:
		sender, err = services.NewTwilioSender(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.From)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize Twilio sender")
		}
	default:
		sender = services.NewCloudSender(cfg.WhatsApp.APIBaseURL, cfg.WhatsApp.APIVersion, cfg.WhatsApp.PhoneNumberID, cfg.WhatsApp.AccessToken)
	}
	templates := services.NewTemplateService(sender, cfg.WhatsApp.Provider == config.ProviderTwilio)

	// Routing core
	sessions := services.NewSessionManager(store, cfg.Session.TTL)
	menus := services.NewMenuMappingCache(menuBackend)
	router := services.NewMessageRouter(
		store,
		sessions,
		services.NewDefaultFlowEngine(time.Now),
		content.NewDefaultRegistry(menus),
		menus,
		services.NewRetryExecutor(services.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
		}),
		sender,
	)

	// Session sweep
	var noticeTemplates *services.TemplateService
	if cfg.Session.ExpiryNotice {
		noticeTemplates = templates
	}
	var eventStore storage.EventStore
	if _, ok := deduper.(*services.StoreDeduper); ok {
		eventStore = store
	}
	cleanupJob := jobs.NewSessionCleanupJob(sessions, eventStore, noticeTemplates, cfg.Session.SweepSchedule)
	if err := cleanupJob.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start session cleanup job")
	}

	// HTTP
	app := fiber.New(fiber.Config{
		AppName:      "AstroBot v" + version,
		ErrorHandler: handlers.ErrorHandler(cfg.Debug),
	})

	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))

	wa := handlers.NewWhatsAppHandler(router, handlers.WhatsAppOptions{
		VerifyToken:    cfg.WhatsApp.VerifyToken,
		Deduper:        deduper,
		Async:          cfg.Webhook.Async,
		ProcessTimeout: cfg.Webhook.ProcessTimeout,
	})

	appSecret := cfg.WhatsApp.AppSecret
	if !cfg.SignatureValidation() {
		appSecret = ""
	}

	routes.SetupRoutes(app, routes.Handlers{
		WhatsApp: wa,
		Health:   handlers.NewHealthHandler(version, storageType, cfg.WhatsApp.Provider, store, cachePinger),
		Admin:    handlers.NewAdminHandler(store, sessions, menus),
	}, routes.Options{
		Version:    version,
		AppSecret:  appSecret,
		AdminToken: cfg.AdminToken,
	})

	go func() {
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Fatal().Err(err).Msg("Server stopped")
		}
	}()

	logger.Info().
		Int("port", cfg.Port).
		Str("environment", cfg.Environment).
		Str("storage", storageType).
		Str("provider", cfg.WhatsApp.Provider).
		Bool("signature_validation", appSecret != "").
		Bool("async", cfg.Webhook.Async).
		Msg("AstroBot starting")

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("Gracefully shutting down...")

	if err := app.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := wa.Drain(ctx); err != nil {
		logger.Warn().Err(err).Msg("Webhook processing did not finish before shutdown")
	}
	cleanupJob.Stop(ctx)

	if redisClient != nil {
		_ = redisClient.Close()
	}
	logger.Info().Msg("Shutdown complete")
}
