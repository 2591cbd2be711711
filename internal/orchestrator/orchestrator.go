// Package orchestrator drives the fallback chain for a single notification:
// normalize the address, pick a provider, send, classify the outcome, and
// retry, fall back or terminate.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/asoclub/notify-engine/internal/cost"
	"github.com/asoclub/notify-engine/internal/domain"
	"github.com/asoclub/notify-engine/internal/observability"
	"github.com/asoclub/notify-engine/internal/phone"
	"github.com/asoclub/notify-engine/internal/provider"
	"github.com/asoclub/notify-engine/internal/ratelimit"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultMaxAttemptsPerProvider = 3
	defaultBaseRetryDelay         = 500 * time.Millisecond
	defaultMaxRetryDelay          = 5 * time.Second
	defaultSendTimeout            = 15 * time.Second
	maxRetryJitterMillis          = 100

	// phoneCountry is the jurisdiction of every canonical number; cost
	// attribution for phone channels uses it.
	phoneCountry = "AR"
)

// errRateLimiter marks an infrastructure fault, distinct from a provider
// verdict: the chain aborts instead of falling back.
var errRateLimiter = errors.New("rate limiter unavailable")

// Option tunes an Orchestrator at construction.
type Option func(*Orchestrator)

func WithMaxAttemptsPerProvider(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxAttemptsPerProvider = n
		}
	}
}

func WithSendTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.sendTimeout = d
		}
	}
}

func WithRetryDelays(base, max time.Duration) Option {
	return func(o *Orchestrator) {
		if base > 0 {
			o.baseRetryDelay = base
		}
		if max > 0 {
			o.maxRetryDelay = max
		}
	}
}

func WithMetrics(metrics *observability.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = metrics
	}
}

func WithRateLimiter(limiter ratelimit.RateLimiter) Option {
	return func(o *Orchestrator) {
		o.rateLimiter = limiter
	}
}

// Orchestrator is safe for concurrent use: the registry and estimator are
// read-only and every Deliver call owns its own attempt chain.
type Orchestrator struct {
	registry  *provider.Registry
	estimator *cost.Estimator
	logger    *zap.Logger
	metrics   *observability.Metrics

	rateLimiter ratelimit.RateLimiter

	maxAttemptsPerProvider int
	baseRetryDelay         time.Duration
	maxRetryDelay          time.Duration
	sendTimeout            time.Duration

	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	randIntn func(n int) int
}

func New(registry *provider.Registry, estimator *cost.Estimator, logger *zap.Logger, opts ...Option) (*Orchestrator, error) {
	if registry == nil {
		return nil, fmt.Errorf("provider registry is required")
	}
	if estimator == nil {
		estimator = cost.DefaultEstimator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	o := &Orchestrator{
		registry:               registry,
		estimator:              estimator,
		logger:                 logger,
		maxAttemptsPerProvider: defaultMaxAttemptsPerProvider,
		baseRetryDelay:         defaultBaseRetryDelay,
		maxRetryDelay:          defaultMaxRetryDelay,
		sendTimeout:            defaultSendTimeout,
		now:                    time.Now,
		sleep:                  sleepWithContext,
		randIntn:               rand.Intn,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o, nil
}

// Deliver runs the full fallback chain for one payload and always returns a
// result with the complete attempt chain, alongside a classified error when
// the chain did not end in success.
func (o *Orchestrator) Deliver(ctx context.Context, channel domain.Channel, payload domain.Payload) (*domain.DeliveryResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := observability.WithContextLogger(o.logger, ctx)

	if err := payload.Validate(channel); err != nil {
		return o.failedResult(channel, nil, err), err
	}

	// NORMALIZE: phone channels only. A failure here terminates the chain
	// before any provider is contacted.
	if channel.IsPhoneBased() {
		canonical, err := phone.Normalize(payload.Recipient())
		if err != nil {
			logger.Warn("recipient failed phone validation",
				zap.String("channel", channel.String()),
				zap.Error(err),
			)
			return o.failedResult(channel, nil, err), err
		}
		payload.OverrideRecipient = ""
		payload.To = canonical
	}

	excluded := make(map[string]struct{})
	var attempts []domain.DeliveryAttempt

	for {
		// SELECT
		entry, ok := o.registry.Next(channel, excluded)
		if !ok {
			err := fmt.Errorf("%w: channel %s, %d attempt(s) recorded",
				domain.ErrExhausted, channel, len(attempts))
			o.metrics.IncDeliveryFailed(channel.String(), failureReason(attempts))
			logger.Error("fallback chain exhausted",
				zap.String("channel", channel.String()),
				zap.Int("attempts", len(attempts)),
			)
			return o.failedResult(channel, attempts, err), err
		}

		// SEND with same-provider retries for transient failures.
		receipt, providerAttempts, sendErr := o.sendWithRetries(ctx, channel, entry, payload, len(attempts))
		attempts = append(attempts, providerAttempts...)

		if sendErr == nil {
			result := o.successResult(channel, entry, receipt, attempts)
			o.metrics.IncDeliverySucceeded(channel.String(), entry.Name)
			logger.Info("notification delivered",
				zap.String("channel", channel.String()),
				zap.String("provider", entry.Name),
				zap.String("messageId", result.MessageID),
				zap.Bool("fallback", result.FallbackOccurred()),
				zap.Int("attempts", len(attempts)),
			)
			return result, nil
		}

		if ctx.Err() != nil {
			err := fmt.Errorf("delivery aborted: %w", ctx.Err())
			return o.failedResult(channel, attempts, err), err
		}
		if errors.Is(sendErr, errRateLimiter) {
			return o.failedResult(channel, attempts, sendErr), sendErr
		}

		// PERMANENT_NEXT / retry budget spent: exclude and re-select.
		excluded[entry.Name] = struct{}{}
		o.metrics.IncFallback(channel.String(), entry.Name)
		logger.Warn("provider excluded, trying next in chain",
			zap.String("channel", channel.String()),
			zap.String("provider", entry.Name),
			zap.Error(sendErr),
		)
	}
}

// sendWithRetries tries one provider up to the per-provider attempt cap,
// backing off between transient failures. Exactly one attempt record is
// produced per adapter invocation.
func (o *Orchestrator) sendWithRetries(
	ctx context.Context,
	channel domain.Channel,
	entry provider.Entry,
	payload domain.Payload,
	priorAttempts int,
) (*provider.SendReceipt, []domain.DeliveryAttempt, error) {
	var attempts []domain.DeliveryAttempt
	var lastErr error

	for attempt := 1; attempt <= o.maxAttemptsPerProvider; attempt++ {
		if o.rateLimiter != nil {
			if err := o.rateLimiter.Wait(ctx, entry.Name); err != nil {
				return nil, attempts, fmt.Errorf("%w: %v", errRateLimiter, err)
			}
		}

		sendCtx, cancel := context.WithTimeout(ctx, o.sendTimeout)
		start := o.now()
		receipt, err := entry.Adapter.Send(sendCtx, payload)
		cancel()

		o.metrics.ObserveSendDuration(channel.String(), entry.Name, o.now().Sub(start))
		attempts = append(attempts, o.recordAttempt(channel, entry, priorAttempts+len(attempts)+1, receipt, err))

		if err == nil {
			return receipt, attempts, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, attempts, lastErr
		}
		if !provider.IsTransient(err) {
			// Permanent for this vendor; the chain may still try others.
			return nil, attempts, lastErr
		}
		if attempt == o.maxAttemptsPerProvider {
			break
		}

		if err := o.sleep(ctx, o.retryDelay(attempt)); err != nil {
			return nil, attempts, lastErr
		}
	}

	return nil, attempts, lastErr
}

func (o *Orchestrator) recordAttempt(
	channel domain.Channel,
	entry provider.Entry,
	attemptNumber int,
	receipt *provider.SendReceipt,
	sendErr error,
) domain.DeliveryAttempt {
	attempt := domain.DeliveryAttempt{
		ID:            uuid.NewString(),
		Provider:      entry.Name,
		AttemptNumber: attemptNumber,
		Timestamp:     o.now().UTC(),
	}

	switch {
	case sendErr == nil:
		attempt.Outcome = domain.OutcomeSuccess
		attempt.Cost = o.estimator.Estimate(channel, entry.Name, 1, phoneCountry)
	case provider.IsTransient(sendErr):
		attempt.Outcome = domain.OutcomeTransientError
		attempt.Error = sendErr.Error()
	default:
		attempt.Outcome = domain.OutcomePermanentError
		attempt.Error = sendErr.Error()
	}

	if receipt != nil {
		attempt.MessageID = receipt.MessageID
		attempt.StatusCode = receipt.StatusCode
	}
	if sendErr != nil {
		var providerErr *provider.ProviderError
		if errors.As(sendErr, &providerErr) && providerErr.StatusCode > 0 {
			attempt.StatusCode = providerErr.StatusCode
		}
	}

	o.metrics.IncProviderAttempt(channel.String(), entry.Name, attempt.Outcome.String())
	return attempt
}

func (o *Orchestrator) retryDelay(attemptNumber int) time.Duration {
	if attemptNumber < 1 {
		attemptNumber = 1
	}

	delay := o.baseRetryDelay
	for i := 1; i < attemptNumber; i++ {
		delay *= 2
		if delay >= o.maxRetryDelay {
			delay = o.maxRetryDelay
			break
		}
	}
	if delay > o.maxRetryDelay {
		delay = o.maxRetryDelay
	}

	jitterMillis := 0
	if o.randIntn != nil && maxRetryJitterMillis > 0 {
		jitterMillis = o.randIntn(maxRetryJitterMillis + 1)
	}

	return delay + time.Duration(jitterMillis)*time.Millisecond
}

func (o *Orchestrator) successResult(
	channel domain.Channel,
	entry provider.Entry,
	receipt *provider.SendReceipt,
	attempts []domain.DeliveryAttempt,
) *domain.DeliveryResult {
	result := &domain.DeliveryResult{
		Success:   true,
		Channel:   channel,
		Provider:  entry.Name,
		Cost:      o.estimator.Estimate(channel, entry.Name, 1, phoneCountry),
		Attempts:  attempts,
		Timestamp: o.now().UTC(),
	}
	if receipt != nil {
		result.MessageID = receipt.MessageID
	}
	return result
}

func (o *Orchestrator) failedResult(channel domain.Channel, attempts []domain.DeliveryAttempt, err error) *domain.DeliveryResult {
	result := &domain.DeliveryResult{
		Success:   false,
		Channel:   channel,
		Attempts:  attempts,
		Timestamp: o.now().UTC(),
	}
	if err != nil {
		result.Error = err.Error()
	}
	if len(attempts) > 0 {
		result.Provider = attempts[len(attempts)-1].Provider
	}
	return result
}

// failureReason summarizes an exhausted chain for metrics labels.
func failureReason(attempts []domain.DeliveryAttempt) string {
	if len(attempts) == 0 {
		return "no_provider_available"
	}
	for _, attempt := range attempts {
		if attempt.Outcome == domain.OutcomeTransientError {
			return "retry_exhausted"
		}
	}
	return "permanent_error"
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
