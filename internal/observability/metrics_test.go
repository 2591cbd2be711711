package observability

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsDeliveryCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.IncDeliverySucceeded("WHATSAPP", "meta")
	metrics.IncDeliveryFailed("whatsapp", "permanent_error")
	metrics.ObserveSendDuration("whatsapp", "meta", 120*time.Millisecond)
	metrics.IncFallback("whatsapp", "callmebot")
	metrics.IncProviderAttempt("whatsapp", "meta", "SUCCESS")
	metrics.IncDispatchInFlight("whatsapp")
	metrics.DecDispatchInFlight("whatsapp")
	metrics.IncTrackerStatusFetch("twilio", "DELIVERED")

	if got := testutil.ToFloat64(metrics.deliveriesTotal.WithLabelValues("whatsapp", "meta")); got != 1 {
		t.Fatalf("deliveries_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.deliveriesFailedTotal.WithLabelValues("whatsapp", "permanent_error")); got != 1 {
		t.Fatalf("deliveries_failed_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.providerFallbackTotal.WithLabelValues("whatsapp", "callmebot")); got != 1 {
		t.Fatalf("provider_fallback_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.providerAttemptsTotal.WithLabelValues("whatsapp", "meta", "success")); got != 1 {
		t.Fatalf("provider_attempts_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.dispatchInflight.WithLabelValues("whatsapp")); got != 0 {
		t.Fatalf("dispatch_inflight = %v, want 0", got)
	}
	if got := testutil.ToFloat64(metrics.trackerStatusFetchTotal.WithLabelValues("twilio", "delivered")); got != 1 {
		t.Fatalf("tracker_status_fetch_total = %v, want 1", got)
	}
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	t.Parallel()

	var metrics *Metrics
	metrics.IncDeliverySucceeded("whatsapp", "meta")
	metrics.IncDeliveryFailed("whatsapp", "retry_exhausted")
	metrics.ObserveSendDuration("whatsapp", "meta", time.Second)
	metrics.IncFallback("whatsapp", "meta")
	metrics.IncProviderAttempt("whatsapp", "meta", "SUCCESS")
	metrics.IncDispatchInFlight("whatsapp")
	metrics.DecDispatchInFlight("whatsapp")
	metrics.IncTrackerStatusFetch("twilio", "SENT")
}

func TestMetricsHTTPMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/livez", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/livez", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsErrorStatus(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	_, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/boom", "500")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}
