// Package dispatch fans a batch of payloads out over a bounded worker pool.
// Each recipient runs through the full delivery chain independently; one
// failing recipient never affects the others.
package dispatch

import (
	"context"
	"fmt"

	"github.com/asoclub/notify-engine/internal/domain"
	"github.com/asoclub/notify-engine/internal/observability"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 8

// Deliverer is the single-recipient delivery chain the pool drives.
type Deliverer interface {
	Deliver(ctx context.Context, channel domain.Channel, payload domain.Payload) (*domain.DeliveryResult, error)
}

type Pool struct {
	deliverer Deliverer
	workers   int
	logger    *zap.Logger
	metrics   *observability.Metrics
}

type PoolOption func(*Pool)

func WithWorkers(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithMetrics(metrics *observability.Metrics) PoolOption {
	return func(p *Pool) {
		p.metrics = metrics
	}
}

func NewPool(deliverer Deliverer, logger *zap.Logger, opts ...PoolOption) (*Pool, error) {
	if deliverer == nil {
		return nil, fmt.Errorf("deliverer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pool{
		deliverer: deliverer,
		workers:   defaultWorkers,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Dispatch delivers every payload and returns one result per payload, in
// input order. Delivery errors are folded into the corresponding result;
// the returned error is non-nil only when the context is canceled before
// every payload has been attempted.
func (p *Pool) Dispatch(ctx context.Context, channel domain.Channel, payloads []domain.Payload) ([]domain.DeliveryResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(payloads) == 0 {
		return nil, nil
	}

	results := make([]domain.DeliveryResult, len(payloads))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.workers)

	for i := range payloads {
		i := i

		if err := groupCtx.Err(); err != nil {
			markCanceled(results[i:], channel, err)
			break
		}

		group.Go(func() error {
			p.metrics.IncDispatchInFlight(channel.String())
			defer p.metrics.DecDispatchInFlight(channel.String())

			result, err := p.deliverer.Deliver(groupCtx, channel, payloads[i])
			if result != nil {
				results[i] = *result
			} else if err != nil {
				results[i] = domain.DeliveryResult{
					Success: false,
					Channel: channel,
					Error:   err.Error(),
				}
			}
			if err != nil {
				p.logger.Warn("batch recipient delivery failed",
					zap.String("channel", channel.String()),
					zap.Int("index", i),
					zap.Error(err),
				)
			}
			// A per-recipient failure must not cancel the siblings.
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("batch dispatch interrupted: %w", err)
	}
	return results, nil
}

func markCanceled(remaining []domain.DeliveryResult, channel domain.Channel, err error) {
	for i := range remaining {
		if remaining[i].Channel == "" {
			remaining[i] = domain.DeliveryResult{
				Success: false,
				Channel: channel,
				Error:   fmt.Sprintf("dispatch canceled: %v", err),
			}
		}
	}
}
