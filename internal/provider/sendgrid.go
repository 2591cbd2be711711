package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/asoclub/notify-engine/internal/domain"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const sendGridName = "sendgrid"

// sendGridClient narrows the SendGrid SDK surface for test fakes.
type sendGridClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridAdapter delivers email through SendGrid's v3 mail API.
type SendGridAdapter struct {
	client    sendGridClient
	fromName  string
	fromEmail string
}

func NewSendGridAdapter(apiKey, fromName, fromEmail string) (*SendGridAdapter, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("sendgrid api key is required")
	}
	return NewSendGridAdapterWithClient(sendgrid.NewSendClient(strings.TrimSpace(apiKey)), fromName, fromEmail)
}

func NewSendGridAdapterWithClient(client sendGridClient, fromName, fromEmail string) (*SendGridAdapter, error) {
	if client == nil {
		return nil, fmt.Errorf("sendgrid client is required")
	}
	if strings.TrimSpace(fromEmail) == "" {
		return nil, fmt.Errorf("sendgrid from email is required")
	}

	return &SendGridAdapter{
		client:    client,
		fromName:  strings.TrimSpace(fromName),
		fromEmail: strings.TrimSpace(fromEmail),
	}, nil
}

func (a *SendGridAdapter) Name() string { return sendGridName }

func (a *SendGridAdapter) Send(ctx context.Context, payload domain.Payload) (*SendReceipt, error) {
	if a == nil || a.client == nil {
		return nil, fmt.Errorf("adapter is not initialized")
	}

	message := mail.NewV3Mail()
	message.SetFrom(mail.NewEmail(a.fromName, a.fromEmail))
	message.Subject = payload.Subject
	if message.Subject == "" {
		message.Subject = "(no subject)"
	}

	personalization := mail.NewPersonalization()
	personalization.AddTos(mail.NewEmail("", payload.Recipient()))
	for key, value := range payload.TemplateVars {
		personalization.SetSubstitution("{{"+key+"}}", value)
	}
	message.AddPersonalizations(personalization)

	if payload.Text != "" {
		message.AddContent(mail.NewContent("text/plain", payload.Text))
	}
	if payload.HTML != "" {
		message.AddContent(mail.NewContent("text/html", payload.HTML))
	}
	for _, attachment := range payload.Attachments {
		att := mail.NewAttachment()
		att.SetFilename(attachment.Name)
		att.SetType(attachment.MIMEType)
		att.SetContent(attachment.URL)
		message.AddAttachment(att)
	}

	response, err := a.client.SendWithContext(ctx, message)
	if err != nil {
		return nil, requestError(sendGridName, err)
	}
	if response == nil {
		return nil, &ProviderError{Provider: sendGridName, Message: "empty response", Transient: true}
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return nil, httpError(sendGridName, response.StatusCode, response.Body)
	}

	messageID := ""
	if ids, ok := response.Headers["X-Message-Id"]; ok && len(ids) > 0 {
		messageID = ids[0]
	}

	return &SendReceipt{
		MessageID:  messageID,
		StatusCode: response.StatusCode,
		Body:       strings.TrimSpace(response.Body),
	}, nil
}
