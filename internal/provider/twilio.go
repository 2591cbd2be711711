package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/asoclub/notify-engine/internal/domain"
	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

const twilioName = "twilio"

// messageAPI is the slice of the Twilio REST surface the adapter uses,
// narrowed for test fakes.
type messageAPI interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
	FetchMessage(sid string, params *openapi.FetchMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioAdapter sends SMS or WhatsApp messages through Twilio. The same
// adapter serves both channels; the channel decides the address scheme.
type TwilioAdapter struct {
	api        messageAPI
	fromNumber string
	channel    domain.Channel
}

func NewTwilioAdapter(accountSID, authToken, fromNumber string, channel domain.Channel) (*TwilioAdapter, error) {
	if strings.TrimSpace(accountSID) == "" || strings.TrimSpace(authToken) == "" {
		return nil, fmt.Errorf("twilio account sid and auth token are required")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: strings.TrimSpace(accountSID),
		Password: strings.TrimSpace(authToken),
	})

	return NewTwilioAdapterWithAPI(client.Api, fromNumber, channel)
}

func NewTwilioAdapterWithAPI(api messageAPI, fromNumber string, channel domain.Channel) (*TwilioAdapter, error) {
	if api == nil {
		return nil, fmt.Errorf("twilio api client is required")
	}
	if strings.TrimSpace(fromNumber) == "" {
		return nil, fmt.Errorf("twilio from number is required")
	}
	if !channel.IsPhoneBased() {
		return nil, fmt.Errorf("twilio adapter serves phone channels, got %s", channel)
	}

	return &TwilioAdapter{
		api:        api,
		fromNumber: strings.TrimSpace(fromNumber),
		channel:    channel,
	}, nil
}

func (a *TwilioAdapter) Name() string { return twilioName }

func (a *TwilioAdapter) Send(ctx context.Context, payload domain.Payload) (*SendReceipt, error) {
	if a == nil || a.api == nil {
		return nil, fmt.Errorf("adapter is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return nil, requestError(twilioName, err)
	}

	text := payload.Text
	if payload.Subject != "" {
		text = fmt.Sprintf("%s\n%s", payload.Subject, payload.Text)
	}

	params := &openapi.CreateMessageParams{}
	params.SetBody(text)
	params.SetFrom(a.address(a.fromNumber))
	params.SetTo(a.address(payload.Recipient()))

	msg, err := a.api.CreateMessage(params)
	if err != nil {
		return nil, classifyTwilioError(err)
	}
	if msg == nil || msg.Sid == nil {
		return nil, &ProviderError{
			Provider:  twilioName,
			Message:   "response missing message sid",
			Transient: true,
		}
	}

	receipt := &SendReceipt{MessageID: *msg.Sid}
	if msg.Status != nil {
		receipt.Body = *msg.Status
	}
	return receipt, nil
}

// FetchStatus returns Twilio's raw message status (queued, sent, delivered,
// read, undelivered, failed, ...) for the tracker to normalize.
func (a *TwilioAdapter) FetchStatus(ctx context.Context, messageID string) (string, error) {
	if a == nil || a.api == nil {
		return "", fmt.Errorf("adapter is not initialized")
	}
	if strings.TrimSpace(messageID) == "" {
		return "", fmt.Errorf("message id is required")
	}
	if err := ctx.Err(); err != nil {
		return "", requestError(twilioName, err)
	}

	msg, err := a.api.FetchMessage(strings.TrimSpace(messageID), nil)
	if err != nil {
		return "", classifyTwilioError(err)
	}
	if msg == nil || msg.Status == nil {
		return "", fmt.Errorf("%w: message %q has no status", domain.ErrNotFound, messageID)
	}

	return *msg.Status, nil
}

// address applies the whatsapp: scheme Twilio expects for WhatsApp sends.
func (a *TwilioAdapter) address(number string) string {
	if a.channel != domain.ChannelWhatsApp {
		return number
	}
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}

func classifyTwilioError(err error) error {
	var restErr *twilioclient.TwilioRestError
	if errors.As(err, &restErr) {
		return &ProviderError{
			Provider:   twilioName,
			StatusCode: restErr.Status,
			Message:    restErr.Message,
			Transient:  IsTransientHTTPStatus(restErr.Status),
			Cause:      err,
		}
	}
	return requestError(twilioName, err)
}
