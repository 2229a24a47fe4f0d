package checkout

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

// Sentinel errors for request validation. These are rejected before any side
// effect and surfaced to the user verbatim.
var (
	ErrEmptyLines     = errors.New("items required")
	ErrMissingUser    = errors.New("user_id required")
	ErrMissingAddress = errors.New("shipping_address required")
)

// InvalidQuantityError indicates a line with a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// ProductInactiveError indicates a requested product exists but is no longer
// sold.
type ProductInactiveError struct {
	ProductID string
	Name      string
}

func (e *ProductInactiveError) Error() string {
	return fmt.Sprintf("product %s (%s) is not available for purchase", e.Name, e.ProductID)
}

// InsufficientStockError indicates a line could not be covered by the
// remaining stock, either during the fast pre-check or when the atomic
// reservation lost a race to a concurrent checkout.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("product %s (%s) has insufficient stock: requested %d, available %d",
		e.Name, e.ProductID, e.Requested, e.Available)
}

// CompensationError reports that one or more compensating actions failed after
// a forward step had already failed. Stock may be under-credited or an orphan
// order row may remain; this requires manual reconciliation and is never
// retried automatically, since a blind retry of a release risks crediting
// stock twice.
type CompensationError struct {
	// Cause is the forward failure that triggered compensation.
	Cause error
	// Failures lists the compensating actions that could not be undone,
	// keyed by the action name recorded on the compensation stack.
	Failures map[string]error
}

func (e *CompensationError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for name := range e.Failures {
		names = append(names, name)
	}
	return fmt.Sprintf("checkout failed (%v) and compensation did not complete: %s",
		e.Cause, strings.Join(names, ", "))
}

func (e *CompensationError) Unwrap() error { return e.Cause }
