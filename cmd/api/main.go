package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asoclub/notify-engine/internal/config"
	"github.com/asoclub/notify-engine/internal/cost"
	"github.com/asoclub/notify-engine/internal/dispatch"
	"github.com/asoclub/notify-engine/internal/handler"
	infraredis "github.com/asoclub/notify-engine/internal/infra/redis"
	"github.com/asoclub/notify-engine/internal/observability"
	"github.com/asoclub/notify-engine/internal/orchestrator"
	"github.com/asoclub/notify-engine/internal/provider"
	"github.com/asoclub/notify-engine/internal/queue"
	"github.com/asoclub/notify-engine/internal/tracker"
	"github.com/asoclub/notify-engine/internal/transport"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	estimator := cost.DefaultEstimator()

	registry, err := provider.BuildRegistry(provider.FactoryConfig{
		WhatsAppOrder:      config.ProviderOrder(cfg.WhatsAppProviderOrder),
		SMSOrder:           config.ProviderOrder(cfg.SMSProviderOrder),
		EmailOrder:         config.ProviderOrder(cfg.EmailProviderOrder),
		PushOrder:          config.ProviderOrder(cfg.PushProviderOrder),
		InAppOrder:         config.ProviderOrder(cfg.InAppProviderOrder),
		CallMeBotAPIKey:    cfg.CallMeBotAPIKey,
		MetaAccessToken:    cfg.MetaAccessToken,
		MetaPhoneNumberID:  cfg.MetaPhoneNumberID,
		TwilioAccountSID:   cfg.TwilioAccountSID,
		TwilioAuthToken:    cfg.TwilioAuthToken,
		TwilioWhatsAppFrom: cfg.TwilioWhatsAppFrom,
		TwilioSMSFrom:      cfg.TwilioSMSFrom,
		SendGridAPIKey:     cfg.SendGridAPIKey,
		SendGridFromName:   cfg.SendGridFromName,
		SendGridFromEmail:  cfg.SendGridFromEmail,
		PushWebhookURL:     cfg.PushWebhookURL,
		InAppWebhookURL:    cfg.InAppWebhookURL,
	}, estimator)
	if err != nil {
		logger.Fatal("provider registry wiring failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec, nil)
	if err != nil {
		logger.Fatal("rate limiter wiring failed", zap.Error(err))
	}

	engine, err := orchestrator.New(registry, estimator, logger,
		orchestrator.WithMetrics(metrics),
		orchestrator.WithRateLimiter(limiter),
		orchestrator.WithMaxAttemptsPerProvider(cfg.ProviderMaxAttempts),
		orchestrator.WithSendTimeout(cfg.SendTimeout()),
	)
	if err != nil {
		logger.Fatal("orchestrator wiring failed", zap.Error(err))
	}

	pool, err := dispatch.NewPool(engine, logger,
		dispatch.WithWorkers(cfg.BatchWorkers),
		dispatch.WithMetrics(metrics),
	)
	if err != nil {
		logger.Fatal("dispatch pool wiring failed", zap.Error(err))
	}

	statusTracker, err := tracker.New(registry, logger,
		tracker.WithCache(rdb),
		tracker.WithMetrics(metrics),
	)
	if err != nil {
		logger.Fatal("tracker wiring failed", zap.Error(err))
	}

	handlerOpts := []handler.NotificationHandlerOption{}
	var broker *queue.RabbitMQ
	if cfg.RabbitMQURL != "" {
		broker, err = queue.NewRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			logger.Fatal("rabbitmq initialization failed", zap.Error(err))
		}
		defer broker.Close()
		handlerOpts = append(handlerOpts, handler.WithPublisher(queue.NewRabbitMQPublisher(broker)))
	}

	notificationHandler, err := handler.NewNotificationHandler(engine, pool, statusTracker, estimator, handlerOpts...)
	if err != nil {
		logger.Fatal("notification handler wiring failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	if err := handler.RegisterWhatsAppRoutes(app, engine, registry); err != nil {
		logger.Fatal("whatsapp route wiring failed", zap.Error(err))
	}
	if err := handler.RegisterNotificationRoutes(app, notificationHandler); err != nil {
		logger.Fatal("notification route wiring failed", zap.Error(err))
	}

	go func() {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		logger.Info("notify-engine api listening", zap.String("addr", addr))
		if err := app.Listen(addr); err != nil {
			logger.Fatal("http server stopped", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("shutdown incomplete", zap.Error(err))
	}
}
