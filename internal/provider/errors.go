package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ProviderError classifies vendor call failures as transient or permanent.
// Transient failures (timeouts, 5xx, rate limits) may be retried on the
// same vendor; permanent ones (rejected recipient, bad credentials) must
// not, though a different vendor in the fallback chain may still be tried.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Transient  bool
	Cause      error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	if e.Provider != "" {
		parts = append(parts, e.Provider)
	}
	parts = append(parts, "provider error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsTransient reports whether an error is eligible for a same-vendor retry.
// Anything not recognizably transient is treated as permanent for that
// vendor; the chain moves on.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

// IsTransientHTTPStatus classifies a vendor HTTP status: 429 and 5xx are
// worth retrying, everything else in the error range is a vendor verdict.
func IsTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		(statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func httpError(providerName string, statusCode int, body string) *ProviderError {
	msg := fmt.Sprintf("returned status %d", statusCode)
	if body = strings.TrimSpace(body); body != "" {
		msg = fmt.Sprintf("%s: %s", msg, body)
	}
	return &ProviderError{
		Provider:   providerName,
		StatusCode: statusCode,
		Message:    msg,
		Transient:  IsTransientHTTPStatus(statusCode),
	}
}

func requestError(providerName string, err error) *ProviderError {
	return &ProviderError{
		Provider:  providerName,
		Message:   "request failed",
		Transient: !errors.Is(err, context.Canceled),
		Cause:     err,
	}
}
