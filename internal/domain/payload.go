package domain

import (
	"fmt"
	"strings"
)

// Channel represents the delivery medium.
type Channel string

const (
	ChannelWhatsApp Channel = "WHATSAPP"
	ChannelSMS      Channel = "SMS"
	ChannelEmail    Channel = "EMAIL"
	ChannelPush     Channel = "PUSH"
	ChannelInApp    Channel = "IN_APP"
)

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelWhatsApp, ChannelSMS, ChannelEmail, ChannelPush, ChannelInApp:
		return true
	}
	return false
}

// IsPhoneBased reports whether the recipient address is a phone number that
// must pass normalization before any provider is contacted.
func (c Channel) IsPhoneBased() bool {
	return c == ChannelWhatsApp || c == ChannelSMS
}

func ParseChannelFromString(s string) (Channel, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	ch := Channel(normalized)
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// Content limits per channel (in characters).
const (
	MaxSMSContent      = 160
	MaxWhatsAppContent = 4096
	MaxPushContent     = 240
	MaxEmailContent    = 100000
)

// Attachment references an externally hosted file included with a message.
type Attachment struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	MIMEType string `json:"mimeType,omitempty"`
}

// Payload is the caller-owned description of one logical notification.
// The delivery core treats it as read-only; workers operate on copies.
type Payload struct {
	// To is the recipient address: phone number for WHATSAPP/SMS, email
	// address for EMAIL, device token or subscriber id otherwise.
	To string `json:"to"`
	// OverrideRecipient redirects a single send (e.g. verification test
	// sends) without touching the stored recipient.
	OverrideRecipient string            `json:"overrideRecipient,omitempty"`
	Subject           string            `json:"subject,omitempty"`
	Text              string            `json:"text"`
	HTML              string            `json:"html,omitempty"`
	TemplateID        string            `json:"templateId,omitempty"`
	TemplateVars      map[string]string `json:"templateVars,omitempty"`
	Attachments       []Attachment      `json:"attachments,omitempty"`
}

// Recipient returns the effective recipient address for this send.
func (p Payload) Recipient() string {
	if strings.TrimSpace(p.OverrideRecipient) != "" {
		return strings.TrimSpace(p.OverrideRecipient)
	}
	return strings.TrimSpace(p.To)
}

func (p Payload) Validate(channel Channel) error {
	if !channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, channel)
	}
	if p.Recipient() == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if strings.TrimSpace(p.Text) == "" && strings.TrimSpace(p.TemplateID) == "" {
		return fmt.Errorf("%w: text or templateId is required", ErrValidation)
	}

	contentLen := len([]rune(p.Text))
	switch channel {
	case ChannelSMS:
		if contentLen > MaxSMSContent {
			return fmt.Errorf("%w: SMS content exceeds %d characters (got %d)", ErrValidation, MaxSMSContent, contentLen)
		}
	case ChannelWhatsApp:
		if contentLen > MaxWhatsAppContent {
			return fmt.Errorf("%w: WhatsApp content exceeds %d characters (got %d)", ErrValidation, MaxWhatsAppContent, contentLen)
		}
	case ChannelPush, ChannelInApp:
		if contentLen > MaxPushContent {
			return fmt.Errorf("%w: push content exceeds %d characters (got %d)", ErrValidation, MaxPushContent, contentLen)
		}
	case ChannelEmail:
		if contentLen > MaxEmailContent {
			return fmt.Errorf("%w: email content exceeds %d characters (got %d)", ErrValidation, MaxEmailContent, contentLen)
		}
	}

	return nil
}
