package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/asoclub/notify-engine/internal/domain"
	"github.com/go-resty/resty/v2"
)

const (
	callMeBotName       = "callmebot"
	callMeBotBaseURL    = "https://api.callmebot.com"
	defaultBotTimeout   = 15 * time.Second
	callMeBotMessageCap = 25 // free tier: messages per day, surfaced in diagnostics
)

// CallMeBotAdapter sends WhatsApp messages through the free CallMeBot
// gateway. Zero unit cost makes it the usual chain head; its per-day cap
// and text-only payloads make it unsuitable as the only provider.
type CallMeBotAdapter struct {
	client *resty.Client
	apiKey string
}

func NewCallMeBotAdapter(apiKey string) (*CallMeBotAdapter, error) {
	client := resty.New()
	client.SetBaseURL(callMeBotBaseURL)
	client.SetTimeout(defaultBotTimeout)
	client.SetRetryCount(0)

	return NewCallMeBotAdapterWithClient(apiKey, client)
}

func NewCallMeBotAdapterWithClient(apiKey string, client *resty.Client) (*CallMeBotAdapter, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("callmebot api key is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultBotTimeout)
	}
	client.SetRetryCount(0)

	return &CallMeBotAdapter{client: client, apiKey: strings.TrimSpace(apiKey)}, nil
}

func (a *CallMeBotAdapter) Name() string { return callMeBotName }

// Limitations describes the free tier for the registry snapshot.
func (a *CallMeBotAdapter) Limitations() string {
	return fmt.Sprintf("free tier, ~%d messages/day, text only", callMeBotMessageCap)
}

func (a *CallMeBotAdapter) Send(ctx context.Context, payload domain.Payload) (*SendReceipt, error) {
	if a == nil || a.client == nil {
		return nil, fmt.Errorf("adapter is not initialized")
	}

	text := payload.Text
	if payload.Subject != "" {
		text = fmt.Sprintf("*%s*\n%s", payload.Subject, payload.Text)
	}

	response, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"phone":  payload.Recipient(),
			"text":   text,
			"apikey": a.apiKey,
		}).
		Get("/whatsapp.php")
	if err != nil {
		return nil, requestError(callMeBotName, err)
	}

	statusCode := response.StatusCode()
	body := strings.TrimSpace(response.String())

	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return nil, httpError(callMeBotName, statusCode, body)
	}

	// The gateway answers 200 even for some rejections; the verdict is in
	// the response text.
	lower := strings.ToLower(body)
	switch {
	case strings.Contains(lower, "message queued") || strings.Contains(lower, "message sent"):
		return &SendReceipt{StatusCode: statusCode, Body: body}, nil
	case strings.Contains(lower, "apikey is invalid") || strings.Contains(lower, "not registered"):
		return nil, &ProviderError{
			Provider:   callMeBotName,
			StatusCode: statusCode,
			Message:    body,
			Transient:  false,
		}
	default:
		return nil, &ProviderError{
			Provider:   callMeBotName,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("unexpected gateway response: %s", body),
			Transient:  true,
		}
	}
}
