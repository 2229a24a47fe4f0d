package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/printkart/storefront/internal/domain/production"
)

const createProductionJobSQL = `INSERT INTO production_jobs
	(id, order_id, product_id, quantity, unit_price, status, options, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

var _ production.Initiator = (*ProductionJobRepository)(nil)

// ProductionJobRepository implements production.Initiator backed by
// PostgreSQL. Callers treat failures as best-effort; this type just reports
// them honestly.
type ProductionJobRepository struct {
	pool *pgxpool.Pool
}

// NewProductionJobRepository returns a ProductionJobRepository that uses the
// given pool.
func NewProductionJobRepository(pool *pgxpool.Pool) *ProductionJobRepository {
	return &ProductionJobRepository{pool: pool}
}

// CreateBatch inserts all jobs in a single round trip.
func (r *ProductionJobRepository) CreateBatch(ctx context.Context, jobs []production.Job) error {
	if len(jobs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, j := range jobs {
		options := j.Options
		if len(options) == 0 {
			options = []byte(`{}`)
		}
		batch.Queue(createProductionJobSQL,
			j.ID, j.OrderID, j.ProductID, j.Quantity, j.UnitPrice, string(j.Status), options, j.CreatedAt,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	for i := range jobs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("creating production job %q for order %q: %w", jobs[i].ID, jobs[i].OrderID, err)
		}
	}
	return nil
}
