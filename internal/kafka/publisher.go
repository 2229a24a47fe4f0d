// Package kafka implements the events.Publisher contract on a kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/printkart/storefront/internal/events"
)

var _ events.Publisher = (*Publisher)(nil)

// Publisher writes event envelopes to a single kafka topic, keyed by
// correlation ID so all events of one order land on the same partition.
// Writes are asynchronous: checkout must never block on broker availability.
type Publisher struct {
	producer string
	writer   *kafkago.Writer
}

// NewPublisher creates a Publisher for the given brokers and topic. The
// producer name is stamped into every envelope.
func NewPublisher(producer string, brokers []string, topic string) *Publisher {
	return &Publisher{
		producer: producer,
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafkago.Hash{},
			RequiredAcks: kafkago.RequireOne,
			Async:        true,
		},
	}
}

// Publish wraps the payload in a versioned envelope and hands it to the
// async writer. An error here means the message could not even be queued.
func (p *Publisher) Publish(ctx context.Context, eventType, correlationID string, payload any) error {
	env, err := events.NewEnvelope(p.producer, eventType, correlationID, payload)
	if err != nil {
		return fmt.Errorf("building envelope for %s: %w", eventType, err)
	}

	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding envelope for %s: %w", eventType, err)
	}

	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(correlationID),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "x-event-type", Value: []byte(eventType)},
			{Key: "x-event-version", Value: []byte("1")},
		},
	})
	if err != nil {
		return fmt.Errorf("publishing %s: %w", eventType, err)
	}
	return nil
}

// Close flushes pending messages and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
