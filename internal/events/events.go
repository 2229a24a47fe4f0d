// Package events defines the versioned envelopes the storefront publishes to
// downstream consumers (production floor dashboards, analytics). Publishing is
// always best-effort: a lost event never affects the customer-facing outcome.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TypeOrderCreated    = "order.created"
	TypePrintJobsQueued = "production.jobs_queued"
)

// Envelope wraps every published event with routing and tracing metadata.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// OrderCreatedPayload announces a successfully placed order.
type OrderCreatedPayload struct {
	OrderID string          `json:"order_id"`
	UserID  string          `json:"user_id"`
	Total   decimal.Decimal `json:"total"`
	Lines   []LineSummary   `json:"lines"`
}

// PrintJobsQueuedPayload announces the production jobs spawned for an order.
type PrintJobsQueuedPayload struct {
	OrderID string   `json:"order_id"`
	JobIDs  []string `json:"job_ids"`
}

// LineSummary is the per-line slice of an order event.
type LineSummary struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Publisher emits events to whatever transport is configured. Implementations
// must be safe for concurrent use and must never block checkout on broker
// availability.
type Publisher interface {
	Publish(ctx context.Context, eventType, correlationID string, payload any) error
}

// NewEnvelope builds an Envelope for the given event, marshaling the payload.
func NewEnvelope(producer, eventType, correlationID string, payload any) (Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       body,
	}, nil
}

// NopPublisher discards all events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }
