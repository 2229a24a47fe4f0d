package order

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Status tracks the fulfillment state of an order. Checkout only ever creates
// orders in StatusPreparing; later transitions (shipped, delivered,
// cancelled) belong to fulfillment systems downstream of this one, which is
// why no transition logic lives here.
type Status string

const (
	StatusPreparing Status = "preparing"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Order represents a placed customer order. The total is always recomputed
// server-side from catalog prices; client-supplied totals are ignored.
type Order struct {
	ID              string
	UserID          string
	Total           decimal.Decimal
	Status          Status
	ShippingAddress string
	PaymentMethod   string
	CreatedAt       time.Time
}

// Line is a single line item belonging to an order. Options carries the
// customization payload (print design, size, color) chosen by the shopper.
type Line struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	Options   json.RawMessage
}

// Repository defines persistence operations for orders. DeleteByID exists
// solely as a checkout compensating action and must never be exposed as a
// customer-facing delete.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	DeleteByID(ctx context.Context, id string) error
}

// LineRepository persists the line items of an order in bulk.
type LineRepository interface {
	CreateBatch(ctx context.Context, lines []Line) error
}
