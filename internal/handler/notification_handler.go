package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/asoclub/notify-engine/internal/cost"
	"github.com/asoclub/notify-engine/internal/domain"
	"github.com/asoclub/notify-engine/internal/observability"
	"github.com/asoclub/notify-engine/internal/queue"
	"github.com/gofiber/fiber/v2"
)

const maxBatchRecipients = 1000

// Dispatcher fans a batch out over the worker pool.
type Dispatcher interface {
	Dispatch(ctx context.Context, channel domain.Channel, payloads []domain.Payload) ([]domain.DeliveryResult, error)
}

// StatusTracker resolves the normalized delivery status of a sent message.
type StatusTracker interface {
	Status(ctx context.Context, providerName, messageID string) (domain.DeliveryStatus, error)
}

type NotificationHandler struct {
	deliverer  Deliverer
	dispatcher Dispatcher
	tracker    StatusTracker
	estimator  *cost.Estimator
	// publisher is optional; when absent the async batch mode is rejected.
	publisher queue.Publisher
}

type NotificationHandlerOption func(*NotificationHandler)

func WithPublisher(publisher queue.Publisher) NotificationHandlerOption {
	return func(h *NotificationHandler) {
		h.publisher = publisher
	}
}

func NewNotificationHandler(
	deliverer Deliverer,
	dispatcher Dispatcher,
	tracker StatusTracker,
	estimator *cost.Estimator,
	opts ...NotificationHandlerOption,
) (*NotificationHandler, error) {
	if deliverer == nil {
		return nil, fmt.Errorf("deliverer is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if tracker == nil {
		return nil, fmt.Errorf("status tracker is required")
	}
	if estimator == nil {
		estimator = cost.DefaultEstimator()
	}

	h := &NotificationHandler{
		deliverer:  deliverer,
		dispatcher: dispatcher,
		tracker:    tracker,
		estimator:  estimator,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func RegisterNotificationRoutes(router fiber.Router, h *NotificationHandler) error {
	if h == nil {
		return fmt.Errorf("notification handler is required")
	}

	v1 := router.Group("/v1")
	v1.Post("/notifications", h.Send)
	v1.Post("/notifications/batch", h.SendBatch)
	v1.Get("/notifications/:provider/:messageId/status", h.DeliveryStatus)
	v1.Post("/notifications/estimate", h.Estimate)

	return nil
}

type payloadRequest struct {
	To                string            `json:"to"`
	OverrideRecipient string            `json:"overrideRecipient,omitempty"`
	Subject           string            `json:"subject,omitempty"`
	Text              string            `json:"text,omitempty"`
	HTML              string            `json:"html,omitempty"`
	TemplateID        string            `json:"templateId,omitempty"`
	TemplateVars      map[string]string `json:"templateVars,omitempty"`
}

type sendNotificationRequest struct {
	CorrelationID string         `json:"correlationId,omitempty"`
	Channel       string         `json:"channel"`
	Payload       payloadRequest `json:"payload"`
}

type sendBatchRequest struct {
	CorrelationID string           `json:"correlationId,omitempty"`
	Channel       string           `json:"channel"`
	Payloads      []payloadRequest `json:"payloads"`
	// Async enqueues the batch for the background worker instead of
	// delivering inline.
	Async bool `json:"async,omitempty"`
}

type sendBatchResponse struct {
	Success bool                    `json:"success"`
	Total   int                     `json:"total"`
	Failed  int                     `json:"failed"`
	Results []domain.DeliveryResult `json:"results"`
}

type enqueueBatchResponse struct {
	Success bool   `json:"success"`
	Queued  int    `json:"queued"`
	Queue   string `json:"queue"`
}

type deliveryStatusResponse struct {
	Success   bool   `json:"success"`
	Provider  string `json:"provider"`
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

type estimateRequest struct {
	Channel        string `json:"channel"`
	Provider       string `json:"provider"`
	RecipientCount int    `json:"recipientCount"`
	CountryCode    string `json:"countryCode,omitempty"`
}

type estimateResponse struct {
	Success       bool    `json:"success"`
	EstimatedCost float64 `json:"estimatedCost"`
}

func (h *NotificationHandler) Send(c *fiber.Ctx) error {
	var req sendNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	channel, err := domain.ParseChannelFromString(req.Channel)
	if err != nil {
		return err
	}

	ctx := contextWithCorrelation(c, req.CorrelationID)
	result, err := h.deliverer.Deliver(ctx, channel, toDomainPayload(req.Payload))
	if err != nil {
		// The attempt chain travels with the error response so callers can
		// diagnose exhaustion without server logs.
		if result != nil {
			return c.Status(statusForDeliveryError(err)).JSON(result)
		}
		return err
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *NotificationHandler) SendBatch(c *fiber.Ctx) error {
	var req sendBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	channel, err := domain.ParseChannelFromString(req.Channel)
	if err != nil {
		return err
	}
	if len(req.Payloads) == 0 {
		return fmt.Errorf("%w: payloads is required", domain.ErrValidation)
	}
	if len(req.Payloads) > maxBatchRecipients {
		return fmt.Errorf("%w: batch exceeds %d payloads", domain.ErrValidation, maxBatchRecipients)
	}

	payloads := make([]domain.Payload, 0, len(req.Payloads))
	for _, item := range req.Payloads {
		payloads = append(payloads, toDomainPayload(item))
	}

	if req.Async {
		return h.enqueueBatch(c, channel, req.CorrelationID, payloads)
	}

	results, err := h.dispatcher.Dispatch(contextWithCorrelation(c, req.CorrelationID), channel, payloads)
	if err != nil {
		return err
	}

	failed := 0
	for _, result := range results {
		if !result.Success {
			failed++
		}
	}

	return c.Status(fiber.StatusOK).JSON(sendBatchResponse{
		Success: failed == 0,
		Total:   len(results),
		Failed:  failed,
		Results: results,
	})
}

func (h *NotificationHandler) enqueueBatch(c *fiber.Ctx, channel domain.Channel, correlationID string, payloads []domain.Payload) error {
	if h.publisher == nil {
		return fmt.Errorf("%w: async delivery is not enabled", domain.ErrValidation)
	}

	queueName := queue.QueueName(channel)
	for i, payload := range payloads {
		msg := queue.BroadcastMessage{
			CorrelationID: strings.TrimSpace(correlationID),
			Channel:       channel,
			Payload:       payload,
		}
		if err := h.publisher.Publish(c.Context(), queueName, msg); err != nil {
			return fmt.Errorf("enqueue payload %d of %d: %w", i+1, len(payloads), err)
		}
	}

	return c.Status(fiber.StatusAccepted).JSON(enqueueBatchResponse{
		Success: true,
		Queued:  len(payloads),
		Queue:   queueName,
	})
}

func (h *NotificationHandler) DeliveryStatus(c *fiber.Ctx) error {
	providerName := strings.TrimSpace(c.Params("provider"))
	messageID := strings.TrimSpace(c.Params("messageId"))

	status, err := h.tracker.Status(c.Context(), providerName, messageID)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(deliveryStatusResponse{
		Success:   true,
		Provider:  strings.ToLower(providerName),
		MessageID: messageID,
		Status:    status.String(),
	})
}

func (h *NotificationHandler) Estimate(c *fiber.Ctx) error {
	var req estimateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	channel, err := domain.ParseChannelFromString(req.Channel)
	if err != nil {
		return err
	}
	if strings.TrimSpace(req.Provider) == "" {
		return fmt.Errorf("%w: provider is required", domain.ErrValidation)
	}
	if req.RecipientCount < 0 {
		return fmt.Errorf("%w: recipientCount must be >= 0", domain.ErrValidation)
	}

	estimated := h.estimator.Estimate(channel, req.Provider, req.RecipientCount, req.CountryCode)
	return c.Status(fiber.StatusOK).JSON(estimateResponse{
		Success:       true,
		EstimatedCost: estimated,
	})
}

func toDomainPayload(req payloadRequest) domain.Payload {
	return domain.Payload{
		To:                strings.TrimSpace(req.To),
		OverrideRecipient: strings.TrimSpace(req.OverrideRecipient),
		Subject:           strings.TrimSpace(req.Subject),
		Text:              req.Text,
		HTML:              req.HTML,
		TemplateID:        strings.TrimSpace(req.TemplateID),
		TemplateVars:      req.TemplateVars,
	}
}

func statusForDeliveryError(err error) int {
	if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrExhausted) {
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

func contextWithCorrelation(c *fiber.Ctx, correlationID string) context.Context {
	trimmed := strings.TrimSpace(correlationID)
	if trimmed == "" {
		trimmed = strings.TrimSpace(c.Get(fiber.HeaderXRequestID))
	}
	if trimmed == "" {
		return c.Context()
	}
	return observability.WithCorrelationID(c.Context(), trimmed)
}
