package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/printkart/storefront/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, name, price, category, stock, active
		FROM products ORDER BY id`

	getProductByIDSQL = `SELECT id, name, price, category, stock, active
		FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT id, name, price, category, stock, active
		FROM products WHERE id = ANY($1)`

	// The WHERE guard and the decrement are one statement, so two concurrent
	// checkouts can never both take the last unit. RowsAffected tells us
	// whether the guard held.
	reserveStockSQL = `UPDATE products SET stock = stock - $2
		WHERE id = $1 AND stock >= $2`

	releaseStockSQL = `UPDATE products SET stock = stock + $2 WHERE id = $1`

	productExistsSQL = `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`
)

var (
	_ product.Repository = (*ProductRepository)(nil)
	_ product.Ledger     = (*ProductRepository)(nil)
)

// ProductRepository implements the catalog reads and the stock ledger backed
// by PostgreSQL. Both live on the products table, so one type serves both
// interfaces.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products from the catalog ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Reserve atomically decrements stock for a product by qty. When the
// conditional update affects no row, the follow-up existence read only
// classifies the failure — the reservation itself has already been refused
// atomically, so this read cannot reintroduce a race.
func (r *ProductRepository) Reserve(ctx context.Context, id string, qty int) error {
	tag, err := r.pool.Exec(ctx, reserveStockSQL, id, qty)
	if err != nil {
		return fmt.Errorf("reserving %d of product %q: %w", qty, id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, productExistsSQL, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking product %q after failed reserve: %w", id, err)
	}
	if !exists {
		return product.ErrNotFound
	}
	return product.ErrInsufficientStock
}

// Release increments stock back by qty. Unconditional: it compensates a
// reservation whose quantity is already known to have been decremented.
func (r *ProductRepository) Release(ctx context.Context, id string, qty int) error {
	tag, err := r.pool.Exec(ctx, releaseStockSQL, id, qty)
	if err != nil {
		return fmt.Errorf("releasing %d of product %q: %w", qty, id, err)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(product.ErrNotFound, "releasing %d of product %q", qty, id)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p     product.Product
		price decimal.Decimal
	)
	err := row.Scan(&p.ID, &p.Name, &price, &p.Category, &p.Stock, &p.Active)
	p.Price = price
	return p, err
}
