// Package checkout implements order placement as a saga: a sequence of writes
// across independent stores (stock counters, orders, order lines, production
// jobs, the cart) coordinated by compensating actions instead of a single
// transaction. The stock ledger's atomic conditional decrement is the only
// cross-shopper synchronization point; everything else is owned by one run.
package checkout

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/printkart/storefront/internal/domain/cart"
	"github.com/printkart/storefront/internal/domain/order"
	"github.com/printkart/storefront/internal/domain/product"
	"github.com/printkart/storefront/internal/domain/production"
	"github.com/printkart/storefront/internal/events"
)

var tracer = otel.Tracer("github.com/printkart/storefront/internal/domain/checkout")

// RequestedLine is one line of a checkout request. UnitPrice is what the
// client displayed to the shopper; the catalog price is authoritative for the
// persisted line and the order total.
type RequestedLine struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	Options   json.RawMessage
}

// Request holds the input for one checkout run. It has no identity and lives
// only for the duration of the run.
type Request struct {
	UserID          string
	ShippingAddress string
	PaymentMethod   string
	Lines           []RequestedLine
}

// Orchestrator sequences the checkout saga. It is the only component aware of
// the cross-store ordering; the repositories it drives know nothing about
// each other.
type Orchestrator struct {
	products product.Repository
	ledger   product.Ledger
	orders   order.Repository
	lines    order.LineRepository
	jobs     production.Initiator
	carts    cart.Repository
	events   events.Publisher
}

// NewOrchestrator creates a checkout Orchestrator with the required stores.
func NewOrchestrator(
	products product.Repository,
	ledger product.Ledger,
	orders order.Repository,
	lines order.LineRepository,
	jobs production.Initiator,
	carts cart.Repository,
	publisher events.Publisher,
) *Orchestrator {
	return &Orchestrator{
		products: products,
		ledger:   ledger,
		orders:   orders,
		lines:    lines,
		jobs:     jobs,
		carts:    carts,
		events:   publisher,
	}
}

// PlaceOrder runs the full checkout saga:
//
//  1. validate every line against the catalog snapshot (fast user-facing
//     errors, zero side effects),
//  2. reserve stock per line via the ledger's atomic conditional decrement,
//  3. create the order with a server-recomputed total,
//  4. bulk-create the order lines,
//  5. spawn production jobs (best-effort),
//  6. clear the shopper's cart (best-effort).
//
// A failure in steps 2-4 releases every reserved line and deletes the order
// in reverse commit order. Failures in steps 5-6 are logged and absorbed: the
// order and the inventory decrement stand.
//
// Compensation and the best-effort tail run on a context detached from the
// caller, so a client disconnect mid-run never strands a reservation.
func (o *Orchestrator) PlaceOrder(ctx context.Context, req Request) (placed *order.Order, err error) {
	ctx, span := tracer.Start(ctx, "checkout.PlaceOrder",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("checkout.user_id", req.UserID),
			attribute.Int("checkout.lines", len(req.Lines)),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "checkout failed")
		}
		span.End()
	}()

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	lg := zctx.From(ctx)
	run := newSaga()

	catalog, err := o.loadCatalog(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := precheck(req, catalog); err != nil {
		return nil, err
	}

	// Once the first reservation commits, the rest of the run must complete
	// server-side even if the HTTP request goes away.
	detached := context.WithoutCancel(ctx)

	run.advance(StateReserving)
	for _, line := range req.Lines {
		if err := o.ledger.Reserve(ctx, line.ProductID, line.Quantity); err != nil {
			failure := o.reserveFailure(detached, line, catalog[line.ProductID], err)
			if cerr := run.compensate(detached, failure); cerr != nil {
				return nil, cerr
			}
			return nil, failure
		}

		reserved := line
		run.committed("release stock for product "+reserved.ProductID, func(cctx context.Context) error {
			return o.ledger.Release(cctx, reserved.ProductID, reserved.Quantity)
		})
	}

	ord := &order.Order{
		ID:              uuid.New().String(),
		UserID:          req.UserID,
		Total:           orderTotal(req, catalog),
		Status:          order.StatusPreparing,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		CreatedAt:       time.Now().UTC(),
	}
	if err := o.orders.Create(ctx, ord); err != nil {
		failure := errors.Wrap(err, "create order")
		if cerr := run.compensate(detached, failure); cerr != nil {
			return nil, cerr
		}
		return nil, failure
	}
	run.advance(StateOrderCreated)
	run.committed("delete order "+ord.ID, func(cctx context.Context) error {
		// Deleting the order removes its lines as well (FK cascade), so the
		// stack needs no separate entry for the line batch.
		return o.orders.DeleteByID(cctx, ord.ID)
	})

	lines := buildLines(ord, req, catalog)
	if err := o.lines.CreateBatch(ctx, lines); err != nil {
		failure := errors.Wrap(err, "create order lines")
		if cerr := run.compensate(detached, failure); cerr != nil {
			return nil, cerr
		}
		return nil, failure
	}
	run.advance(StateLinesCreated)

	// Production jobs are an operational convenience, not part of the
	// customer-facing contract: the order stands even if none are created.
	jobs := buildJobs(ord, lines)
	if err := o.jobs.CreateBatch(detached, jobs); err != nil {
		lg.Error("production job creation failed, order stands",
			zap.String("order_id", ord.ID),
			zap.Int("jobs", len(jobs)),
			zap.Error(err),
		)
	} else {
		o.publish(detached, events.TypePrintJobsQueued, ord.ID, jobsQueuedPayload(ord, jobs))
	}
	run.advance(StateJobsAttempted)

	if err := o.carts.Clear(detached, req.UserID); err != nil {
		// A stale cart is a UI nuisance, not a consistency violation.
		lg.Warn("cart clear failed after checkout",
			zap.String("user_id", req.UserID),
			zap.String("order_id", ord.ID),
			zap.Error(err),
		)
	}
	run.advance(StateCartCleared)

	o.publish(detached, events.TypeOrderCreated, ord.ID, orderCreatedPayload(ord, req))
	run.advance(StateCompleted)
	span.SetAttributes(attribute.String("order.id", ord.ID))

	lg.Info("order placed",
		zap.String("order_id", ord.ID),
		zap.String("user_id", req.UserID),
		zap.Int("lines", len(lines)),
		zap.String("total", ord.Total.String()),
	)
	return ord, nil
}

func validateRequest(req Request) error {
	switch {
	case req.UserID == "":
		return ErrMissingUser
	case req.ShippingAddress == "":
		return ErrMissingAddress
	case len(req.Lines) == 0:
		return ErrEmptyLines
	}
	for _, line := range req.Lines {
		if line.Quantity <= 0 {
			return &InvalidQuantityError{ProductID: line.ProductID}
		}
	}
	return nil
}

// loadCatalog batch-fetches every requested product in a single query.
func (o *Orchestrator) loadCatalog(ctx context.Context, req Request) (map[string]product.Product, error) {
	ids := make([]string, len(req.Lines))
	for i, line := range req.Lines {
		ids[i] = line.ProductID
	}

	fetched, err := o.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}

	catalog := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		catalog[p.ID] = p
	}
	return catalog, nil
}

// precheck validates every line against the catalog snapshot, reporting the
// first offending line. This is the fast path for user-facing errors; the
// concurrency guard is the ledger's conditional decrement, not this read.
func precheck(req Request, catalog map[string]product.Product) error {
	for _, line := range req.Lines {
		p, ok := catalog[line.ProductID]
		if !ok {
			return &ProductNotFoundError{ProductID: line.ProductID}
		}
		if !p.Active {
			return &ProductInactiveError{ProductID: p.ID, Name: p.Name}
		}
		if p.Stock < line.Quantity {
			return &InsufficientStockError{
				ProductID: p.ID,
				Name:      p.Name,
				Requested: line.Quantity,
				Available: p.Stock,
			}
		}
	}
	return nil
}

// reserveFailure converts a ledger error into the user-facing failure for the
// line that lost the race. Availability is re-read best-effort so the message
// reflects the stock level that beat us; the snapshot value is the fallback.
func (o *Orchestrator) reserveFailure(ctx context.Context, line RequestedLine, snapshot product.Product, err error) error {
	switch {
	case errors.Is(err, product.ErrInsufficientStock):
		available := snapshot.Stock
		if cur, rerr := o.products.GetByID(ctx, line.ProductID); rerr == nil {
			available = cur.Stock
		}
		return &InsufficientStockError{
			ProductID: line.ProductID,
			Name:      snapshot.Name,
			Requested: line.Quantity,
			Available: available,
		}
	case errors.Is(err, product.ErrNotFound):
		return &ProductNotFoundError{ProductID: line.ProductID}
	default:
		return errors.Wrapf(err, "reserve product %s", line.ProductID)
	}
}

// orderTotal recomputes the total from catalog prices. The client-supplied
// total and line prices are never trusted.
func orderTotal(req Request, catalog map[string]product.Product) decimal.Decimal {
	total := decimal.Zero
	for _, line := range req.Lines {
		price := catalog[line.ProductID].Price
		total = total.Add(price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total.Round(2)
}

func buildLines(ord *order.Order, req Request, catalog map[string]product.Product) []order.Line {
	lines := make([]order.Line, len(req.Lines))
	for i, line := range req.Lines {
		lines[i] = order.Line{
			ID:        uuid.New().String(),
			OrderID:   ord.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: catalog[line.ProductID].Price,
			Options:   line.Options,
		}
	}
	return lines
}

func buildJobs(ord *order.Order, lines []order.Line) []production.Job {
	jobs := make([]production.Job, len(lines))
	for i, line := range lines {
		jobs[i] = production.Job{
			ID:        uuid.New().String(),
			OrderID:   ord.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Status:    production.JobStatusPending,
			Options:   line.Options,
			CreatedAt: time.Now().UTC(),
		}
	}
	return jobs
}

func orderCreatedPayload(ord *order.Order, req Request) events.OrderCreatedPayload {
	lines := make([]events.LineSummary, len(req.Lines))
	for i, line := range req.Lines {
		lines[i] = events.LineSummary{ProductID: line.ProductID, Quantity: line.Quantity}
	}
	return events.OrderCreatedPayload{
		OrderID: ord.ID,
		UserID:  ord.UserID,
		Total:   ord.Total,
		Lines:   lines,
	}
}

func jobsQueuedPayload(ord *order.Order, jobs []production.Job) events.PrintJobsQueuedPayload {
	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	return events.PrintJobsQueuedPayload{OrderID: ord.ID, JobIDs: ids}
}

func (o *Orchestrator) publish(ctx context.Context, eventType, correlationID string, payload any) {
	if err := o.events.Publish(ctx, eventType, correlationID, payload); err != nil {
		zctx.From(ctx).Warn("event publish failed",
			zap.String("event_type", eventType),
			zap.String("correlation_id", correlationID),
			zap.Error(err),
		)
	}
}
