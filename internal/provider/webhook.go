package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/asoclub/notify-engine/internal/domain"
	"github.com/go-resty/resty/v2"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookAdapter relays push and in-app notifications to an internal
// delivery endpoint (the app backend fans them out to devices/sessions).
type WebhookAdapter struct {
	name     string
	client   *resty.Client
	endpoint string
	channel  domain.Channel
}

type webhookMessage struct {
	To      string            `json:"to"`
	Channel string            `json:"channel"`
	Title   string            `json:"title,omitempty"`
	Body    string            `json:"body"`
	Vars    map[string]string `json:"vars,omitempty"`
}

func NewWebhookAdapter(name string, channel domain.Channel, endpoint string) (*WebhookAdapter, error) {
	client := resty.New()
	client.SetTimeout(defaultWebhookTimeout)
	client.SetRetryCount(0)

	return NewWebhookAdapterWithClient(name, channel, endpoint, client)
}

func NewWebhookAdapterWithClient(name string, channel domain.Channel, endpoint string, client *resty.Client) (*WebhookAdapter, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("webhook endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid webhook endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if strings.TrimSpace(name) == "" {
		name = "webhook"
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultWebhookTimeout)
	}
	client.SetRetryCount(0)

	return &WebhookAdapter{
		name:     strings.ToLower(strings.TrimSpace(name)),
		client:   client,
		endpoint: trimmedEndpoint,
		channel:  channel,
	}, nil
}

func (a *WebhookAdapter) Name() string { return a.name }

func (a *WebhookAdapter) Send(ctx context.Context, payload domain.Payload) (*SendReceipt, error) {
	if a == nil || a.client == nil {
		return nil, fmt.Errorf("adapter is not initialized")
	}

	msg := webhookMessage{
		To:      payload.Recipient(),
		Channel: strings.ToLower(a.channel.String()),
		Title:   payload.Subject,
		Body:    payload.Text,
		Vars:    payload.TemplateVars,
	}

	response, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(msg).
		Post(a.endpoint)
	if err != nil {
		return nil, requestError(a.name, err)
	}
	if response == nil {
		return nil, &ProviderError{Provider: a.name, Message: "empty response", Transient: true}
	}

	statusCode := response.StatusCode()
	body := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &SendReceipt{
			StatusCode: statusCode,
			Body:       body,
			MessageID:  receiptMessageID(response),
		}, nil
	}

	return nil, httpError(a.name, statusCode, body)
}

func receiptMessageID(response *resty.Response) string {
	if response == nil {
		return ""
	}

	for _, key := range []string{"X-Message-ID", "X-Message-Id", "X-Request-ID", "X-Request-Id"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}

	return ""
}
