package provider

import (
	"fmt"

	"github.com/asoclub/notify-engine/internal/cost"
	"github.com/asoclub/notify-engine/internal/domain"
)

// FactoryConfig carries the credentials and per-channel fallback chains the
// registry is built from. A provider listed in a chain without its
// credentials is registered unconfigured so diagnostics can surface it.
type FactoryConfig struct {
	WhatsAppOrder []string
	SMSOrder      []string
	EmailOrder    []string
	PushOrder     []string
	InAppOrder    []string

	CallMeBotAPIKey string

	MetaAccessToken   string
	MetaPhoneNumberID string

	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioWhatsAppFrom string
	TwilioSMSFrom      string

	SendGridAPIKey    string
	SendGridFromName  string
	SendGridFromEmail string

	PushWebhookURL  string
	InAppWebhookURL string
}

// BuildRegistry assembles the provider registry for every channel. Chain
// order is preserved verbatim: position in the slice is fallback priority.
func BuildRegistry(cfg FactoryConfig, estimator *cost.Estimator) (*Registry, error) {
	if estimator == nil {
		estimator = cost.DefaultEstimator()
	}

	registry := NewRegistry()

	chains := []struct {
		channel domain.Channel
		order   []string
	}{
		{domain.ChannelWhatsApp, cfg.WhatsAppOrder},
		{domain.ChannelSMS, cfg.SMSOrder},
		{domain.ChannelEmail, cfg.EmailOrder},
		{domain.ChannelPush, cfg.PushOrder},
		{domain.ChannelInApp, cfg.InAppOrder},
	}

	for _, chain := range chains {
		for _, name := range chain.order {
			entry, err := buildEntry(cfg, chain.channel, name)
			if err != nil {
				return nil, fmt.Errorf("channel %s: %w", chain.channel, err)
			}
			entry.UnitCost = estimator.UnitCost(chain.channel, entry.Name)
			if err := registry.Register(chain.channel, entry); err != nil {
				return nil, fmt.Errorf("channel %s: %w", chain.channel, err)
			}
		}
	}

	return registry, nil
}

func buildEntry(cfg FactoryConfig, channel domain.Channel, name string) (Entry, error) {
	switch name {
	case "callmebot":
		if channel != domain.ChannelWhatsApp {
			return Entry{}, fmt.Errorf("provider callmebot only supports whatsapp")
		}
		if cfg.CallMeBotAPIKey == "" {
			return unconfigured(name), nil
		}
		adapter, err := NewCallMeBotAdapter(cfg.CallMeBotAPIKey)
		if err != nil {
			return Entry{}, err
		}
		return configured(name, adapter, adapter.Limitations()), nil

	case "meta":
		if channel != domain.ChannelWhatsApp {
			return Entry{}, fmt.Errorf("provider meta only supports whatsapp")
		}
		if cfg.MetaAccessToken == "" || cfg.MetaPhoneNumberID == "" {
			return unconfigured(name), nil
		}
		adapter, err := NewMetaWhatsAppAdapter(cfg.MetaAccessToken, cfg.MetaPhoneNumberID)
		if err != nil {
			return Entry{}, err
		}
		return configured(name, adapter, ""), nil

	case "twilio":
		from := cfg.TwilioWhatsAppFrom
		if channel == domain.ChannelSMS {
			from = cfg.TwilioSMSFrom
		}
		if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || from == "" {
			return unconfigured(name), nil
		}
		adapter, err := NewTwilioAdapter(cfg.TwilioAccountSID, cfg.TwilioAuthToken, from, channel)
		if err != nil {
			return Entry{}, err
		}
		return configured(name, adapter, ""), nil

	case "sendgrid":
		if channel != domain.ChannelEmail {
			return Entry{}, fmt.Errorf("provider sendgrid only supports email")
		}
		if cfg.SendGridAPIKey == "" || cfg.SendGridFromEmail == "" {
			return unconfigured(name), nil
		}
		adapter, err := NewSendGridAdapter(cfg.SendGridAPIKey, cfg.SendGridFromName, cfg.SendGridFromEmail)
		if err != nil {
			return Entry{}, err
		}
		return configured(name, adapter, ""), nil

	case "webhook":
		endpoint := cfg.PushWebhookURL
		if channel == domain.ChannelInApp {
			endpoint = cfg.InAppWebhookURL
		}
		if endpoint == "" {
			return unconfigured(name), nil
		}
		adapter, err := NewWebhookAdapter(name, channel, endpoint)
		if err != nil {
			return Entry{}, err
		}
		return configured(name, adapter, ""), nil

	default:
		return Entry{}, fmt.Errorf("unknown provider %q", name)
	}
}

func configured(name string, adapter Adapter, limitations string) Entry {
	return Entry{
		Name:        name,
		Adapter:     adapter,
		Configured:  true,
		Available:   true,
		Limitations: limitations,
	}
}

func unconfigured(name string) Entry {
	return Entry{Name: name}
}
