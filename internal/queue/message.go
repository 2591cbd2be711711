package queue

import (
	"fmt"

	"github.com/asoclub/notify-engine/internal/domain"
)

// BroadcastMessage is the broker payload for asynchronous delivery. It
// carries the full notification content so consumers never need a shared
// datastore to process it.
type BroadcastMessage struct {
	MessageID     string         `json:"messageId"`
	CorrelationID string         `json:"correlationId,omitempty"`
	Channel       domain.Channel `json:"channel"`
	Payload       domain.Payload `json:"payload"`
}

func (m BroadcastMessage) Validate() error {
	if !m.Channel.IsValid() {
		return fmt.Errorf("invalid channel %q", m.Channel)
	}
	if err := m.Payload.Validate(m.Channel); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}
