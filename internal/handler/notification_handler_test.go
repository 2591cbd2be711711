package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/asoclub/notify-engine/internal/cost"
	"github.com/asoclub/notify-engine/internal/domain"
	"github.com/asoclub/notify-engine/internal/queue"
	"github.com/asoclub/notify-engine/internal/transport"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type fakeDispatcher struct {
	results     []domain.DeliveryResult
	err         error
	lastChannel domain.Channel
	lastCount   int
}

func (f *fakeDispatcher) Dispatch(_ context.Context, channel domain.Channel, payloads []domain.Payload) ([]domain.DeliveryResult, error) {
	f.lastChannel = channel
	f.lastCount = len(payloads)
	return f.results, f.err
}

type fakeTracker struct {
	status domain.DeliveryStatus
	err    error
}

func (f *fakeTracker) Status(context.Context, string, string) (domain.DeliveryStatus, error) {
	return f.status, f.err
}

type fakePublisher struct {
	published []queue.BroadcastMessage
	queues    []string
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, queueName string, msg queue.BroadcastMessage) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msg)
	f.queues = append(f.queues, queueName)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func newNotificationApp(t *testing.T, deliverer Deliverer, dispatcher Dispatcher, tracker StatusTracker, opts ...NotificationHandlerOption) *fiber.App {
	t.Helper()

	h, err := NewNotificationHandler(deliverer, dispatcher, tracker, cost.DefaultEstimator(), opts...)
	if err != nil {
		t.Fatalf("NewNotificationHandler() error = %v", err)
	}

	app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
	if err := RegisterNotificationRoutes(app, h); err != nil {
		t.Fatalf("RegisterNotificationRoutes() error = %v", err)
	}
	return app
}

func TestSendReturnsDeliveryResult(t *testing.T) {
	t.Parallel()

	deliverer := &fakeDeliverer{result: &domain.DeliveryResult{
		Success:   true,
		Channel:   domain.ChannelEmail,
		Provider:  "sendgrid",
		MessageID: "sg-1",
		Attempts:  []domain.DeliveryAttempt{{Provider: "sendgrid", AttemptNumber: 1, Outcome: domain.OutcomeSuccess}},
	}}
	app := newNotificationApp(t, deliverer, &fakeDispatcher{}, &fakeTracker{})

	rec, body := postJSON(t, app, "/v1/notifications", sendNotificationRequest{
		Channel: "email",
		Payload: payloadRequest{To: "socio@club.test", Subject: "Bienvenido", Text: "hola"},
	})

	if rec.Code != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["provider"] != "sendgrid" {
		t.Errorf("provider = %v, want sendgrid", body["provider"])
	}
	if deliverer.lastChannel != domain.ChannelEmail {
		t.Errorf("channel = %s, want EMAIL", deliverer.lastChannel)
	}
	attempts, ok := body["attempts"].([]any)
	if !ok || len(attempts) != 1 {
		t.Errorf("attempts = %v, want chain of 1", body["attempts"])
	}
}

func TestSendExhaustionCarriesAttemptChain(t *testing.T) {
	t.Parallel()

	deliverer := &fakeDeliverer{
		result: &domain.DeliveryResult{
			Success: false,
			Channel: domain.ChannelWhatsApp,
			Attempts: []domain.DeliveryAttempt{
				{Provider: "callmebot", Outcome: domain.OutcomePermanentError},
				{Provider: "meta", Outcome: domain.OutcomePermanentError},
			},
		},
		err: fmt.Errorf("%w: channel WHATSAPP", domain.ErrExhausted),
	}
	app := newNotificationApp(t, deliverer, &fakeDispatcher{}, &fakeTracker{})

	rec, body := postJSON(t, app, "/v1/notifications", sendNotificationRequest{
		Channel: "whatsapp",
		Payload: payloadRequest{To: "+5491112345678", Text: "hola"},
	})

	if rec.Code != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	attempts, ok := body["attempts"].([]any)
	if !ok || len(attempts) != 2 {
		t.Errorf("attempts = %v, want chain of 2", body["attempts"])
	}
}

func TestSendRejectsUnknownChannel(t *testing.T) {
	t.Parallel()

	app := newNotificationApp(t, &fakeDeliverer{}, &fakeDispatcher{}, &fakeTracker{})

	rec, _ := postJSON(t, app, "/v1/notifications", sendNotificationRequest{
		Channel: "pigeon",
		Payload: payloadRequest{To: "+5491112345678", Text: "hola"},
	})

	if rec.Code != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSendBatchInline(t *testing.T) {
	t.Parallel()

	dispatcher := &fakeDispatcher{results: []domain.DeliveryResult{
		{Success: true, Channel: domain.ChannelWhatsApp, Provider: "meta"},
		{Success: false, Channel: domain.ChannelWhatsApp, Error: "all providers exhausted"},
	}}
	app := newNotificationApp(t, &fakeDeliverer{}, dispatcher, &fakeTracker{})

	rec, body := postJSON(t, app, "/v1/notifications/batch", sendBatchRequest{
		Channel: "whatsapp",
		Payloads: []payloadRequest{
			{To: "+5491112345601", Text: "hola"},
			{To: "+5491112345602", Text: "hola"},
		},
	})

	if rec.Code != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["total"] != float64(2) {
		t.Errorf("total = %v, want 2", body["total"])
	}
	if body["failed"] != float64(1) {
		t.Errorf("failed = %v, want 1", body["failed"])
	}
	if body["success"] != false {
		t.Error("success = true with one failed result")
	}
	if dispatcher.lastCount != 2 {
		t.Errorf("dispatcher saw %d payloads, want 2", dispatcher.lastCount)
	}
}

func TestSendBatchEmptyPayloads(t *testing.T) {
	t.Parallel()

	app := newNotificationApp(t, &fakeDeliverer{}, &fakeDispatcher{}, &fakeTracker{})

	rec, _ := postJSON(t, app, "/v1/notifications/batch", sendBatchRequest{
		Channel:  "whatsapp",
		Payloads: nil,
	})

	if rec.Code != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSendBatchAsyncEnqueues(t *testing.T) {
	t.Parallel()

	publisher := &fakePublisher{}
	app := newNotificationApp(t, &fakeDeliverer{}, &fakeDispatcher{}, &fakeTracker{}, WithPublisher(publisher))

	rec, body := postJSON(t, app, "/v1/notifications/batch", sendBatchRequest{
		CorrelationID: "cid-1",
		Channel:       "whatsapp",
		Async:         true,
		Payloads: []payloadRequest{
			{To: "+5491112345601", Text: "hola"},
			{To: "+5491112345602", Text: "hola"},
		},
	})

	if rec.Code != fiber.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if body["queued"] != float64(2) {
		t.Errorf("queued = %v, want 2", body["queued"])
	}
	if len(publisher.published) != 2 {
		t.Fatalf("published = %d, want 2", len(publisher.published))
	}
	if publisher.queues[0] != "notify.whatsapp" {
		t.Errorf("queue = %q, want notify.whatsapp", publisher.queues[0])
	}
	if publisher.published[0].CorrelationID != "cid-1" {
		t.Errorf("correlationId = %q, want cid-1", publisher.published[0].CorrelationID)
	}
}

func TestSendBatchAsyncWithoutPublisher(t *testing.T) {
	t.Parallel()

	app := newNotificationApp(t, &fakeDeliverer{}, &fakeDispatcher{}, &fakeTracker{})

	rec, _ := postJSON(t, app, "/v1/notifications/batch", sendBatchRequest{
		Channel:  "whatsapp",
		Async:    true,
		Payloads: []payloadRequest{{To: "+5491112345601", Text: "hola"}},
	})

	if rec.Code != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDeliveryStatusEndpoint(t *testing.T) {
	t.Parallel()

	app := newNotificationApp(t, &fakeDeliverer{}, &fakeDispatcher{}, &fakeTracker{status: domain.StatusDelivered})

	req := httptest.NewRequest("GET", "/v1/notifications/twilio/SM123/status", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body deliveryStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != "DELIVERED" {
		t.Errorf("status = %q, want DELIVERED", body.Status)
	}
	if body.Provider != "twilio" {
		t.Errorf("provider = %q, want twilio", body.Provider)
	}
}

func TestDeliveryStatusUnknownProvider(t *testing.T) {
	t.Parallel()

	tracker := &fakeTracker{err: fmt.Errorf("%w: provider \"nope\"", domain.ErrNotFound)}
	app := newNotificationApp(t, &fakeDeliverer{}, &fakeDispatcher{}, tracker)

	req := httptest.NewRequest("GET", "/v1/notifications/nope/SM123/status", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestEstimateEndpoint(t *testing.T) {
	t.Parallel()

	app := newNotificationApp(t, &fakeDeliverer{}, &fakeDispatcher{}, &fakeTracker{})

	rec, body := postJSON(t, app, "/v1/notifications/estimate", estimateRequest{
		Channel:        "sms",
		Provider:       "twilio",
		RecipientCount: 100,
		CountryCode:    "UY",
	})

	if rec.Code != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	got, ok := body["estimatedCost"].(float64)
	if !ok || got <= 0 {
		t.Errorf("estimatedCost = %v, want > 0", body["estimatedCost"])
	}
}

func TestEstimateRequiresProvider(t *testing.T) {
	t.Parallel()

	app := newNotificationApp(t, &fakeDeliverer{}, &fakeDispatcher{}, &fakeTracker{})

	rec, _ := postJSON(t, app, "/v1/notifications/estimate", estimateRequest{
		Channel:        "sms",
		RecipientCount: 10,
	})

	if rec.Code != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
