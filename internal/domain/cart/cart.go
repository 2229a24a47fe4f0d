package cart

import (
	"context"
	"encoding/json"
)

// Entry is a pending cart line for a shopper.
type Entry struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Options   json.RawMessage `json:"options,omitempty"`
}

// Repository owns the shopper's pending cart. Clear removes all of a user's
// entries as a set; checkout calls it after the order is placed.
type Repository interface {
	List(ctx context.Context, userID string) ([]Entry, error)
	Add(ctx context.Context, e Entry) error
	Clear(ctx context.Context, userID string) error
}
