package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsTransient(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: true},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "transient provider error", err: &ProviderError{Transient: true}, want: true},
		{name: "permanent provider error", err: &ProviderError{Transient: false}, want: false},
		{name: "wrapped transient", err: fmt.Errorf("send: %w", &ProviderError{Transient: true}), want: true},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := IsTransient(tc.err); got != tc.want {
				t.Fatalf("IsTransient() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	t.Parallel()

	transient := []int{http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, 599}
	for _, code := range transient {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("IsTransientHTTPStatus(%d) = false, want true", code)
		}
	}

	permanent := []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity}
	for _, code := range permanent {
		if IsTransientHTTPStatus(code) {
			t.Errorf("IsTransientHTTPStatus(%d) = true, want false", code)
		}
	}
}

func TestProviderErrorMessage(t *testing.T) {
	t.Parallel()

	err := &ProviderError{
		Provider:   "meta",
		StatusCode: 401,
		Message:    "invalid token",
	}
	got := err.Error()
	want := "meta: provider error: status=401: invalid token"
	if got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestProviderErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := requestError("twilio", cause)
	if !errors.Is(err, cause) {
		t.Fatal("requestError should wrap its cause")
	}
	if !err.Transient {
		t.Fatal("request failures other than cancellation are transient")
	}

	canceled := requestError("twilio", context.Canceled)
	if canceled.Transient {
		t.Fatal("canceled requests are not transient")
	}
}
