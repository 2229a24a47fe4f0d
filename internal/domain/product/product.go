package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// ErrInsufficientStock is returned by Ledger.Reserve when the conditional
// decrement affected no row because the remaining stock is smaller than the
// requested quantity.
var ErrInsufficientStock = errors.New("insufficient stock")

// Product represents a catalog item available for purchase. Stock is the
// number of units currently available; it is mutated exclusively through the
// Ledger so it can never go negative.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Category string
	Stock    int
	Active   bool
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}

// Ledger owns the stock counters. Reserve must be implemented as a single
// conditional write (decrement only when enough stock remains) with an
// affected-row check — never as a read followed by a separate write, which
// races with concurrent checkouts.
type Ledger interface {
	// Reserve atomically decrements stock by qty. It returns
	// ErrInsufficientStock when the guard fails and ErrNotFound when the
	// product does not exist.
	Reserve(ctx context.Context, id string, qty int) error

	// Release increments stock back by qty. It is the compensating action for
	// a successful Reserve and must be called at most once per reservation.
	Release(ctx context.Context, id string, qty int) error
}
