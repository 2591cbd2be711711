package domain

import "time"

// AttemptOutcome classifies a single adapter invocation.
type AttemptOutcome string

const (
	OutcomeSuccess        AttemptOutcome = "SUCCESS"
	OutcomeTransientError AttemptOutcome = "TRANSIENT_ERROR"
	OutcomePermanentError AttemptOutcome = "PERMANENT_ERROR"
)

func (o AttemptOutcome) String() string { return string(o) }

// DeliveryAttempt records one adapter invocation. It is created by the
// orchestrator and never mutated afterwards; the ordered chain of attempts
// for one payload is the audit trail surfaced with the result.
type DeliveryAttempt struct {
	ID            string         `json:"id"`
	Provider      string         `json:"provider"`
	AttemptNumber int            `json:"attemptNumber"`
	Outcome       AttemptOutcome `json:"outcome"`
	MessageID     string         `json:"messageId,omitempty"`
	StatusCode    int            `json:"statusCode,omitempty"`
	Error         string         `json:"error,omitempty"`
	Cost          float64        `json:"cost"`
	Timestamp     time.Time      `json:"timestamp"`
}

// DeliveryResult is the caller-facing outcome of one fallback chain.
// Constructed once the chain terminates; ownership transfers to the caller.
type DeliveryResult struct {
	Success   bool              `json:"success"`
	Channel   Channel           `json:"channel"`
	Provider  string            `json:"provider,omitempty"`
	MessageID string            `json:"messageId,omitempty"`
	Cost      float64           `json:"cost"`
	Error     string            `json:"error,omitempty"`
	Attempts  []DeliveryAttempt `json:"attempts"`
	Timestamp time.Time         `json:"timestamp"`
}

// FallbackOccurred reports whether more than one provider was attempted.
// Fallback detail stays visible to support even on ultimate success.
func (r DeliveryResult) FallbackOccurred() bool {
	if len(r.Attempts) < 2 {
		return false
	}
	first := r.Attempts[0].Provider
	for _, attempt := range r.Attempts[1:] {
		if attempt.Provider != first {
			return true
		}
	}
	return false
}
