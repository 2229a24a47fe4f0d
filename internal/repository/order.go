package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/printkart/storefront/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, user_id, total, status, shipping_address, payment_method, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`

	createOrderLineSQL = `INSERT INTO order_lines (id, order_id, product_id, quantity, unit_price, options)
		VALUES ($1, $2, $3, $4, $5, $6)`
)

var (
	_ order.Repository     = (*OrderRepository)(nil)
	_ order.LineRepository = (*OrderLineRepository)(nil)
)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	_, err := r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.UserID, o.Total, string(o.Status), o.ShippingAddress, o.PaymentMethod, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// DeleteByID removes an order row. Lines cascade at the schema level. This is
// only ever called by checkout compensation.
func (r *OrderRepository) DeleteByID(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, deleteOrderSQL, id)
	if err != nil {
		return fmt.Errorf("deleting order %q: %w", id, err)
	}
	return nil
}

// OrderLineRepository implements order.LineRepository backed by PostgreSQL.
type OrderLineRepository struct {
	pool *pgxpool.Pool
}

// NewOrderLineRepository returns an OrderLineRepository that uses the given pool.
func NewOrderLineRepository(pool *pgxpool.Pool) *OrderLineRepository {
	return &OrderLineRepository{pool: pool}
}

// CreateBatch inserts all lines in a single round trip. Any failed insert
// fails the whole batch; the checkout compensation path then removes the
// order, cascading whatever lines did land.
func (r *OrderLineRepository) CreateBatch(ctx context.Context, lines []order.Line) error {
	if len(lines) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, l := range lines {
		options := l.Options
		if len(options) == 0 {
			options = []byte(`{}`)
		}
		batch.Queue(createOrderLineSQL, l.ID, l.OrderID, l.ProductID, l.Quantity, l.UnitPrice, options)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	for i := range lines {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("creating line %q for order %q: %w", lines[i].ID, lines[i].OrderID, err)
		}
	}
	return nil
}
