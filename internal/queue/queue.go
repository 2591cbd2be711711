package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/asoclub/notify-engine/internal/domain"
)

// Publisher publishes broadcast messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg BroadcastMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg BroadcastMessage) error

// Consumer consumes broadcast messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

var supportedChannels = []domain.Channel{
	domain.ChannelWhatsApp,
	domain.ChannelSMS,
	domain.ChannelEmail,
	domain.ChannelPush,
	domain.ChannelInApp,
}

// QueueName returns the channel work queue name, e.g. notify.whatsapp.
func QueueName(channel domain.Channel) string {
	return "notify." + strings.ToLower(channel.String())
}

// DLQName returns the dead-letter queue name for a channel,
// e.g. notify.dlq.whatsapp.
func DLQName(channel domain.Channel) string {
	return fmt.Sprintf("notify.dlq.%s", strings.ToLower(channel.String()))
}

// WorkQueueNames returns every channel work queue.
func WorkQueueNames() []string {
	queues := make([]string, 0, len(supportedChannels))
	for _, channel := range supportedChannels {
		queues = append(queues, QueueName(channel))
	}
	return queues
}

// DLQNames returns every dead-letter queue.
func DLQNames() []string {
	queues := make([]string, 0, len(supportedChannels))
	for _, channel := range supportedChannels {
		queues = append(queues, DLQName(channel))
	}
	return queues
}
