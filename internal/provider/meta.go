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
	metaName           = "meta"
	metaBaseURL        = "https://graph.facebook.com/v19.0"
	defaultMetaTimeout = 15 * time.Second
)

// MetaWhatsAppAdapter sends through the WhatsApp Business Cloud API.
type MetaWhatsAppAdapter struct {
	client        *resty.Client
	accessToken   string
	phoneNumberID string
}

type metaTextBody struct {
	Body string `json:"body"`
}

type metaSendRequest struct {
	MessagingProduct string        `json:"messaging_product"`
	To               string        `json:"to"`
	Type             string        `json:"type"`
	Text             *metaTextBody `json:"text,omitempty"`
}

type metaSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

type metaStatusResponse struct {
	Status string `json:"status"`
}

func NewMetaWhatsAppAdapter(accessToken, phoneNumberID string) (*MetaWhatsAppAdapter, error) {
	client := resty.New()
	client.SetBaseURL(metaBaseURL)
	client.SetTimeout(defaultMetaTimeout)
	client.SetRetryCount(0)

	return NewMetaWhatsAppAdapterWithClient(accessToken, phoneNumberID, client)
}

func NewMetaWhatsAppAdapterWithClient(accessToken, phoneNumberID string, client *resty.Client) (*MetaWhatsAppAdapter, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, fmt.Errorf("meta access token is required")
	}
	if strings.TrimSpace(phoneNumberID) == "" {
		return nil, fmt.Errorf("meta phone number id is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultMetaTimeout)
	}
	client.SetRetryCount(0)

	return &MetaWhatsAppAdapter{
		client:        client,
		accessToken:   strings.TrimSpace(accessToken),
		phoneNumberID: strings.TrimSpace(phoneNumberID),
	}, nil
}

func (a *MetaWhatsAppAdapter) Name() string { return metaName }

func (a *MetaWhatsAppAdapter) Send(ctx context.Context, payload domain.Payload) (*SendReceipt, error) {
	if a == nil || a.client == nil {
		return nil, fmt.Errorf("adapter is not initialized")
	}

	text := payload.Text
	if payload.Subject != "" {
		text = fmt.Sprintf("*%s*\n%s", payload.Subject, payload.Text)
	}

	// The Cloud API wants the number without the leading +.
	to := strings.TrimPrefix(payload.Recipient(), "+")

	req := metaSendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             &metaTextBody{Body: text},
	}

	var parsed metaSendResponse
	response, err := a.client.R().
		SetContext(ctx).
		SetAuthToken(a.accessToken).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&parsed).
		SetError(&parsed).
		Post(fmt.Sprintf("/%s/messages", a.phoneNumberID))
	if err != nil {
		return nil, requestError(metaName, err)
	}

	statusCode := response.StatusCode()
	body := strings.TrimSpace(response.String())

	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		if parsed.Error != nil {
			return nil, &ProviderError{
				Provider:   metaName,
				StatusCode: statusCode,
				Message:    fmt.Sprintf("%s (%s, code %d)", parsed.Error.Message, parsed.Error.Type, parsed.Error.Code),
				Transient:  IsTransientHTTPStatus(statusCode),
			}
		}
		return nil, httpError(metaName, statusCode, body)
	}

	receipt := &SendReceipt{StatusCode: statusCode, Body: body}
	if len(parsed.Messages) > 0 {
		receipt.MessageID = parsed.Messages[0].ID
	}
	return receipt, nil
}

// FetchStatus queries the Cloud API for the message's current status. The
// raw vendor vocabulary (sent/delivered/read/failed) is returned as-is for
// the tracker to normalize.
func (a *MetaWhatsAppAdapter) FetchStatus(ctx context.Context, messageID string) (string, error) {
	if a == nil || a.client == nil {
		return "", fmt.Errorf("adapter is not initialized")
	}
	if strings.TrimSpace(messageID) == "" {
		return "", fmt.Errorf("message id is required")
	}

	var parsed metaStatusResponse
	response, err := a.client.R().
		SetContext(ctx).
		SetAuthToken(a.accessToken).
		SetResult(&parsed).
		Get(fmt.Sprintf("/%s", messageID))
	if err != nil {
		return "", requestError(metaName, err)
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return "", httpError(metaName, statusCode, response.String())
	}

	return parsed.Status, nil
}
