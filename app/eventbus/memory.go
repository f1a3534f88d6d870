package eventbus

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// memoryEventBus implements EventBus over watermill's gochannel pub/sub.
// Used by tests and single-process deployments.
type memoryEventBus struct {
	pubsub *gochannel.GoChannel
	logger *slog.Logger
}

// NewInMemoryEventBus builds an in-process EventBus. Messages published
// before a topic has subscribers are dropped, matching at-most-once
// change-feed semantics: a session that subscribes late reloads the full
// aggregate instead of replaying history.
func NewInMemoryEventBus(logger *slog.Logger) EventBus {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: 64,
		},
		watermill.NewSlogLogger(logger),
	)
	return &memoryEventBus{pubsub: pubsub, logger: logger}
}

func (eb *memoryEventBus) Publish(ctx context.Context, topic string, msg *message.Message) error {
	if msg.UUID == "" {
		msg.UUID = watermill.NewUUID()
	}
	msg.SetContext(ctx)
	return eb.pubsub.Publish(topic, msg)
}

func (eb *memoryEventBus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return eb.pubsub.Subscribe(ctx, topic)
}

func (eb *memoryEventBus) Publisher() message.Publisher   { return eb.pubsub }
func (eb *memoryEventBus) Subscriber() message.Subscriber { return eb.pubsub }

func (eb *memoryEventBus) Close() error {
	return eb.pubsub.Close()
}
