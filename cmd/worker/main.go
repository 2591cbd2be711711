package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/asoclub/notify-engine/internal/config"
	"github.com/asoclub/notify-engine/internal/cost"
	infraredis "github.com/asoclub/notify-engine/internal/infra/redis"
	"github.com/asoclub/notify-engine/internal/observability"
	"github.com/asoclub/notify-engine/internal/orchestrator"
	"github.com/asoclub/notify-engine/internal/provider"
	"github.com/asoclub/notify-engine/internal/queue"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.RabbitMQURL == "" {
		log.Fatal("RABBITMQ_URL is required for the worker")
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

	broker, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer broker.Close()

	consumer := queue.NewRabbitMQConsumer(broker, cfg.WorkerConcurrency, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handleMessage := func(ctx context.Context, msg queue.BroadcastMessage) error {
		msgCtx := ctx
		if msg.CorrelationID != "" {
			msgCtx = observability.WithCorrelationID(ctx, msg.CorrelationID)
		}

		result, err := engine.Deliver(msgCtx, msg.Channel, msg.Payload)
		if err != nil {
			// Returning the error dead-letters the message.
			logger.Warn("queued delivery failed",
				zap.String("channel", msg.Channel.String()),
				zap.String("messageId", msg.MessageID),
				zap.Error(err),
			)
			return err
		}

		logger.Info("queued delivery complete",
			zap.String("channel", msg.Channel.String()),
			zap.String("provider", result.Provider),
			zap.String("messageId", result.MessageID),
		)
		return nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, queueName := range queue.WorkQueueNames() {
		queueName := queueName
		group.Go(func() error {
			logger.Info("consuming queue", zap.String("queue", queueName))
			return consumer.Consume(groupCtx, queueName, handleMessage)
		})
	}

	if err := group.Wait(); err != nil {
		logger.Fatal("worker stopped", zap.Error(err))
	}
	logger.Info("worker shut down")
}
