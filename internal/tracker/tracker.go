// Package tracker resolves the current delivery status of a previously sent
// message by asking the vendor and mapping its vocabulary onto the uniform
// status set.
package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/asoclub/notify-engine/internal/domain"
	"github.com/asoclub/notify-engine/internal/observability"
	"github.com/asoclub/notify-engine/internal/provider"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	statusCacheKeyPrefix = "delivery:status:"
	statusCacheTTL       = 24 * time.Hour
)

// vendorStatusMaps translates each vendor's raw status vocabulary. Vendors
// absent from this table do not expose a status API and always report SENT.
var vendorStatusMaps = map[string]map[string]domain.DeliveryStatus{
	"twilio": {
		"accepted":    domain.StatusSent,
		"queued":      domain.StatusSent,
		"sending":     domain.StatusSent,
		"sent":        domain.StatusSent,
		"delivered":   domain.StatusDelivered,
		"read":        domain.StatusRead,
		"undelivered": domain.StatusFailed,
		"failed":      domain.StatusFailed,
		"canceled":    domain.StatusFailed,
	},
	"meta": {
		"accepted":  domain.StatusSent,
		"sent":      domain.StatusSent,
		"delivered": domain.StatusDelivered,
		"read":      domain.StatusRead,
		"failed":    domain.StatusFailed,
		"deleted":   domain.StatusFailed,
	},
}

type Tracker struct {
	registry *provider.Registry
	cache    redis.Cmdable
	logger   *zap.Logger
	metrics  *observability.Metrics
}

type Option func(*Tracker)

// WithCache enables the short-lived status cache so repeated polls for the
// same message do not hammer the vendor.
func WithCache(cache redis.Cmdable) Option {
	return func(t *Tracker) {
		t.cache = cache
	}
}

func WithMetrics(metrics *observability.Metrics) Option {
	return func(t *Tracker) {
		t.metrics = metrics
	}
}

func New(registry *provider.Registry, logger *zap.Logger, opts ...Option) (*Tracker, error) {
	if registry == nil {
		return nil, fmt.Errorf("provider registry is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &Tracker{
		registry: registry,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Status reports the normalized delivery status for a message sent through
// the named provider. Providers without a status API report SENT, meaning
// "handed off, nothing further known".
func (t *Tracker) Status(ctx context.Context, providerName, messageID string) (domain.DeliveryStatus, error) {
	providerName = strings.ToLower(strings.TrimSpace(providerName))
	if providerName == "" {
		return "", fmt.Errorf("%w: provider name is required", domain.ErrValidation)
	}
	if strings.TrimSpace(messageID) == "" {
		return "", fmt.Errorf("%w: message id is required", domain.ErrValidation)
	}

	entry, ok := t.registry.Find(providerName)
	if !ok {
		return "", fmt.Errorf("%w: provider %q", domain.ErrNotFound, providerName)
	}

	fetcher, ok := entry.Adapter.(provider.StatusFetcher)
	if !ok {
		t.metrics.IncTrackerStatusFetch(providerName, domain.StatusSent.String())
		return domain.StatusSent, nil
	}

	cached, hasCached := t.cachedStatus(ctx, providerName, messageID)
	if hasCached && cached.IsTerminal() {
		return cached, nil
	}

	raw, err := fetcher.FetchStatus(ctx, messageID)
	if err != nil {
		return "", fmt.Errorf("fetch status from %s: %w", providerName, err)
	}

	status := normalizeVendorStatus(providerName, raw)
	// A stale vendor response never walks an already observed status
	// backwards.
	if hasCached && !cached.CanTransitionTo(status) {
		status = cached
	}
	t.metrics.IncTrackerStatusFetch(providerName, status.String())
	t.storeStatus(ctx, providerName, messageID, status)
	return status, nil
}

// normalizeVendorStatus maps a raw vendor status onto the uniform set.
// Unknown statuses from a known vendor degrade to SENT rather than failing
// the lookup.
func normalizeVendorStatus(providerName, raw string) domain.DeliveryStatus {
	vocab, ok := vendorStatusMaps[providerName]
	if !ok {
		return domain.StatusSent
	}
	status, ok := vocab[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return domain.StatusSent
	}
	return status
}

func (t *Tracker) cachedStatus(ctx context.Context, providerName, messageID string) (domain.DeliveryStatus, bool) {
	if t.cache == nil {
		return "", false
	}

	raw, err := t.cache.Get(ctx, statusCacheKey(providerName, messageID)).Result()
	if err != nil {
		return "", false
	}
	status, err := domain.ParseDeliveryStatusFromString(raw)
	if err != nil {
		return "", false
	}
	return status, true
}

// storeStatus caches the latest status, refusing regressions from terminal
// states so a stale vendor response never undoes a READ or FAILED.
func (t *Tracker) storeStatus(ctx context.Context, providerName, messageID string, status domain.DeliveryStatus) {
	if t.cache == nil {
		return
	}

	key := statusCacheKey(providerName, messageID)
	if prev, ok := t.cachedStatus(ctx, providerName, messageID); ok && !prev.CanTransitionTo(status) {
		return
	}
	if err := t.cache.Set(ctx, key, status.String(), statusCacheTTL).Err(); err != nil {
		t.logger.Warn("status cache write failed",
			zap.String("provider", providerName),
			zap.Error(err),
		)
	}
}

func statusCacheKey(providerName, messageID string) string {
	return statusCacheKeyPrefix + providerName + ":" + messageID
}
