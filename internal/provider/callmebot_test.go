package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/asoclub/notify-engine/internal/domain"
	"github.com/go-resty/resty/v2"
)

func newBotServerClient(t *testing.T, handler http.HandlerFunc) *resty.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := resty.New()
	client.SetBaseURL(server.URL)
	return client
}

func TestCallMeBotSendQueued(t *testing.T) {
	t.Parallel()

	client := newBotServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("phone") != "+5491112345678" {
			t.Errorf("phone = %q", r.URL.Query().Get("phone"))
		}
		if r.URL.Query().Get("apikey") != "key-1" {
			t.Errorf("apikey = %q", r.URL.Query().Get("apikey"))
		}
		_, _ = w.Write([]byte("Message queued. You will receive it soon."))
	})

	adapter, err := NewCallMeBotAdapterWithClient("key-1", client)
	if err != nil {
		t.Fatalf("NewCallMeBotAdapterWithClient() error = %v", err)
	}

	receipt, err := adapter.Send(context.Background(), domain.Payload{To: "+5491112345678", Text: "hola"})
	if err != nil {
		t.Fatalf("Send() unexpected error: %v", err)
	}
	if receipt.StatusCode != http.StatusOK {
		t.Fatalf("StatusCode = %d, want 200", receipt.StatusCode)
	}
}

func TestCallMeBotInvalidKeyIsPermanent(t *testing.T) {
	t.Parallel()

	client := newBotServerClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("APIKey is invalid"))
	})

	adapter, err := NewCallMeBotAdapterWithClient("bad-key", client)
	if err != nil {
		t.Fatalf("NewCallMeBotAdapterWithClient() error = %v", err)
	}

	_, err = adapter.Send(context.Background(), domain.Payload{To: "+5491112345678", Text: "hola"})
	if err == nil {
		t.Fatal("Send() expected error")
	}

	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("error type = %T, want *ProviderError", err)
	}
	if providerErr.Transient {
		t.Fatal("invalid api key must be permanent")
	}
}

func TestCallMeBotUnexpectedBodyIsTransient(t *testing.T) {
	t.Parallel()

	client := newBotServerClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("Server busy, try later"))
	})

	adapter, err := NewCallMeBotAdapterWithClient("key-1", client)
	if err != nil {
		t.Fatalf("NewCallMeBotAdapterWithClient() error = %v", err)
	}

	_, err = adapter.Send(context.Background(), domain.Payload{To: "+5491112345678", Text: "hola"})

	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("error type = %T, want *ProviderError", err)
	}
	if !providerErr.Transient {
		t.Fatal("unknown gateway response should be retried")
	}
}

func TestCallMeBotRequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := NewCallMeBotAdapter(""); err == nil {
		t.Fatal("empty api key should fail")
	}
}
