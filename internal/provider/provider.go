package provider

import (
	"context"

	"github.com/asoclub/notify-engine/internal/domain"
)

// Adapter is the uniform outbound delivery port one vendor implements for
// one channel. Adapters classify their own failures (see ProviderError) and
// never decide to retry; the orchestrator acts on the classification.
type Adapter interface {
	// Name returns the vendor identifier, e.g. "twilio".
	Name() string
	Send(ctx context.Context, payload domain.Payload) (*SendReceipt, error)
}

// SendReceipt stores vendor call metadata for the attempt audit trail.
type SendReceipt struct {
	// MessageID is the vendor-scoped, opaque message identifier.
	MessageID  string
	StatusCode int
	Body       string
}

// StatusFetcher is implemented by adapters whose vendor exposes delivery
// tracking. The returned string is the raw vendor status vocabulary; the
// tracker normalizes it.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, messageID string) (string, error)
}
