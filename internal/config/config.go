package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	APIPort  int    `env:"API_PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	RedisURL    string `env:"REDIS_URL,required=true"`
	RabbitMQURL string `env:"RABBITMQ_URL"`

	WorkerConcurrency int `env:"WORKER_CONCURRENCY,default=16"`
	BatchWorkers      int `env:"BATCH_WORKERS,default=8"`
	RateLimitPerSec   int `env:"RATE_LIMIT_PER_SEC,default=50"`

	SendTimeoutSeconds  int `env:"SEND_TIMEOUT_SECONDS,default=15"`
	ProviderMaxAttempts int `env:"PROVIDER_MAX_ATTEMPTS,default=3"`

	// Comma-separated provider names; order is the fallback chain.
	WhatsAppProviderOrder string `env:"WHATSAPP_PROVIDER_ORDER,default=callmebot,meta,twilio"`
	SMSProviderOrder      string `env:"SMS_PROVIDER_ORDER,default=twilio"`
	EmailProviderOrder    string `env:"EMAIL_PROVIDER_ORDER,default=sendgrid"`
	PushProviderOrder     string `env:"PUSH_PROVIDER_ORDER,default=webhook"`
	InAppProviderOrder    string `env:"INAPP_PROVIDER_ORDER,default=webhook"`

	CallMeBotAPIKey string `env:"CALLMEBOT_API_KEY"`

	MetaAccessToken   string `env:"META_ACCESS_TOKEN"`
	MetaPhoneNumberID string `env:"META_PHONE_NUMBER_ID"`

	TwilioAccountSID   string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken    string `env:"TWILIO_AUTH_TOKEN"`
	TwilioWhatsAppFrom string `env:"TWILIO_WHATSAPP_FROM"`
	TwilioSMSFrom      string `env:"TWILIO_SMS_FROM"`

	SendGridAPIKey    string `env:"SENDGRID_API_KEY"`
	SendGridFromName  string `env:"SENDGRID_FROM_NAME,default=ASO Club"`
	SendGridFromEmail string `env:"SENDGRID_FROM_EMAIL"`

	PushWebhookURL  string `env:"PUSH_WEBHOOK_URL"`
	InAppWebhookURL string `env:"INAPP_WEBHOOK_URL"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutSeconds) * time.Second
}

// ProviderOrder splits a comma-separated chain into cleaned provider names.
func ProviderOrder(raw string) []string {
	parts := strings.Split(raw, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		name := strings.ToLower(strings.TrimSpace(part))
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}
