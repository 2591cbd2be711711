package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asoclub/notify-engine/internal/domain"
	"github.com/asoclub/notify-engine/internal/provider"
	"github.com/gofiber/fiber/v2"
)

// Deliverer runs one payload through a channel's fallback chain.
type Deliverer interface {
	Deliver(ctx context.Context, channel domain.Channel, payload domain.Payload) (*domain.DeliveryResult, error)
}

// WhatsAppHandler serves the legacy single-recipient WhatsApp surface the
// membership UI calls directly.
type WhatsAppHandler struct {
	deliverer Deliverer
	registry  *provider.Registry
	now       func() time.Time
}

func NewWhatsAppHandler(deliverer Deliverer, registry *provider.Registry) (*WhatsAppHandler, error) {
	if deliverer == nil {
		return nil, fmt.Errorf("deliverer is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("provider registry is required")
	}
	return &WhatsAppHandler{
		deliverer: deliverer,
		registry:  registry,
		now:       time.Now,
	}, nil
}

func RegisterWhatsAppRoutes(router fiber.Router, deliverer Deliverer, registry *provider.Registry) error {
	h, err := NewWhatsAppHandler(deliverer, registry)
	if err != nil {
		return err
	}

	router.Post("/notifications/whatsapp", h.Send)
	router.Get("/notifications/whatsapp", h.Providers)
	return nil
}

type sendWhatsAppRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
	Title   string `json:"title,omitempty"`
}

type sendWhatsAppResponse struct {
	Success   bool      `json:"success"`
	MessageID string    `json:"messageId"`
	Provider  string    `json:"provider"`
	Cost      float64   `json:"cost"`
	Timestamp time.Time `json:"timestamp"`
}

type whatsAppFailureResponse struct {
	Success  bool   `json:"success"`
	Error    string `json:"error"`
	Provider string `json:"provider,omitempty"`
}

type whatsAppProvidersResponse struct {
	Success   bool                     `json:"success"`
	Providers []provider.EntrySnapshot `json:"providers"`
	Timestamp time.Time                `json:"timestamp"`
}

func (h *WhatsAppHandler) Send(c *fiber.Ctx) error {
	var req sendWhatsAppRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(whatsAppFailureResponse{
			Error: "invalid request body",
		})
	}

	payload := domain.Payload{
		To:      req.To,
		Subject: req.Title,
		Text:    req.Message,
	}

	result, err := h.deliverer.Deliver(c.Context(), domain.ChannelWhatsApp, payload)
	if err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrExhausted) {
			status = fiber.StatusBadRequest
		}

		failure := whatsAppFailureResponse{Error: err.Error()}
		if result != nil {
			failure.Provider = result.Provider
		}
		return c.Status(status).JSON(failure)
	}

	return c.Status(fiber.StatusOK).JSON(sendWhatsAppResponse{
		Success:   true,
		MessageID: result.MessageID,
		Provider:  result.Provider,
		Cost:      result.Cost,
		Timestamp: result.Timestamp,
	})
}

func (h *WhatsAppHandler) Providers(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(whatsAppProvidersResponse{
		Success:   true,
		Providers: h.registry.Snapshot(domain.ChannelWhatsApp),
		Timestamp: h.now().UTC(),
	})
}
