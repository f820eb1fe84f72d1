package observability

import (
	"context"

	"ghar-chat-service/internal/rabbitmq"
)

// EventEnvelope is the JSON shape published to the event exchange.
type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

var defaultPublisher rabbitmq.Publisher

// SetPublisher installs the process-wide event publisher.
func SetPublisher(publisher rabbitmq.Publisher) {
	defaultPublisher = publisher
}

// PublishEvent emits an envelope through the installed publisher. A nil
// publisher makes this a no-op so tests and dev setups need no broker.
func PublishEvent(ctx context.Context, routingKey string, envelope EventEnvelope) error {
	if defaultPublisher == nil {
		return nil
	}

	err := defaultPublisher.Publish(ctx, routingKey, envelope)
	if err != nil {
		IncAMQPPublishError()
	}
	return err
}
