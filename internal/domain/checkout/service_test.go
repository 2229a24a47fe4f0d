package checkout

import (
	"context"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/printkart/storefront/internal/domain/cart"
	"github.com/printkart/storefront/internal/domain/order"
	"github.com/printkart/storefront/internal/domain/product"
	"github.com/printkart/storefront/internal/domain/production"
	"github.com/printkart/storefront/internal/events"
)

// --- Mock implementations ---

// memLedger is an in-memory stock ledger with the same conditional-decrement
// contract as the postgres implementation. The mutex makes Reserve atomic so
// concurrent checkouts contend the way they would against the database.
type memLedger struct {
	mu         sync.Mutex
	stock      map[string]int
	reserveErr map[string]error // forced failure per product
	releaseErr error
	releases   []string // product IDs in release order
}

func newMemLedger(stock map[string]int) *memLedger {
	s := make(map[string]int, len(stock))
	for k, v := range stock {
		s[k] = v
	}
	return &memLedger{stock: s}
}

func (m *memLedger) Reserve(_ context.Context, id string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.reserveErr[id]; err != nil {
		return err
	}
	cur, ok := m.stock[id]
	if !ok {
		return product.ErrNotFound
	}
	if cur < qty {
		return product.ErrInsufficientStock
	}
	m.stock[id] = cur - qty
	return nil
}

func (m *memLedger) Release(_ context.Context, id string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.releaseErr != nil {
		return m.releaseErr
	}
	m.stock[id] += qty
	m.releases = append(m.releases, id)
	return nil
}

func (m *memLedger) stockOf(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[id]
}

type mockProductRepo struct {
	byID   map[string]product.Product
	getErr error
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockOrderRepo struct {
	mu        sync.Mutex
	created   []*order.Order
	deleted   []string
	createErr error
	deleteErr error
}

func (m *mockOrderRepo) Create(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, o)
	return nil
}

func (m *mockOrderRepo) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	return nil
}

type mockLineRepo struct {
	mu      sync.Mutex
	batches [][]order.Line
	err     error
}

func (m *mockLineRepo) CreateBatch(_ context.Context, lines []order.Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.batches = append(m.batches, lines)
	return nil
}

type mockJobInitiator struct {
	mu      sync.Mutex
	batches [][]production.Job
	err     error
}

func (m *mockJobInitiator) CreateBatch(_ context.Context, jobs []production.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.batches = append(m.batches, jobs)
	return nil
}

type mockCartRepo struct {
	mu      sync.Mutex
	cleared []string
	err     error
}

func (m *mockCartRepo) List(_ context.Context, _ string) ([]cart.Entry, error) { return nil, nil }
func (m *mockCartRepo) Add(_ context.Context, _ cart.Entry) error              { return nil }

func (m *mockCartRepo) Clear(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.cleared = append(m.cleared, userID)
	return nil
}

// --- Helpers ---

type fixture struct {
	ledger   *memLedger
	products *mockProductRepo
	orders   *mockOrderRepo
	lines    *mockLineRepo
	jobs     *mockJobInitiator
	carts    *mockCartRepo
	orch     *Orchestrator
}

func newFixture(products ...product.Product) *fixture {
	byID := make(map[string]product.Product, len(products))
	stock := make(map[string]int, len(products))
	for _, p := range products {
		byID[p.ID] = p
		stock[p.ID] = p.Stock
	}
	f := &fixture{
		ledger:   newMemLedger(stock),
		products: &mockProductRepo{byID: byID},
		orders:   &mockOrderRepo{},
		lines:    &mockLineRepo{},
		jobs:     &mockJobInitiator{},
		carts:    &mockCartRepo{},
	}
	f.orch = NewOrchestrator(f.products, f.ledger, f.orders, f.lines, f.jobs, f.carts, events.NopPublisher{})
	return f
}

func testProduct(id, name string, price string, stock int) product.Product {
	return product.Product{
		ID:       id,
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Category: "mugs",
		Stock:    stock,
		Active:   true,
	}
}

func testRequest(lines ...RequestedLine) Request {
	return Request{
		UserID:          "u1",
		ShippingAddress: "1 Print Lane",
		PaymentMethod:   "card",
		Lines:           lines,
	}
}

func line(productID string, qty int) RequestedLine {
	return RequestedLine{ProductID: productID, Quantity: qty}
}

// --- Validation ---

func TestPlaceOrder_MissingUser(t *testing.T) {
	f := newFixture()
	_, err := f.orch.PlaceOrder(context.Background(), Request{ShippingAddress: "a", Lines: []RequestedLine{line("p1", 1)}})
	require.ErrorIs(t, err, ErrMissingUser)
}

func TestPlaceOrder_MissingAddress(t *testing.T) {
	f := newFixture()
	_, err := f.orch.PlaceOrder(context.Background(), Request{UserID: "u1", Lines: []RequestedLine{line("p1", 1)}})
	require.ErrorIs(t, err, ErrMissingAddress)
}

func TestPlaceOrder_EmptyLines(t *testing.T) {
	f := newFixture()
	_, err := f.orch.PlaceOrder(context.Background(), testRequest())
	require.ErrorIs(t, err, ErrEmptyLines)
}

func TestPlaceOrder_InvalidQuantity(t *testing.T) {
	f := newFixture(testProduct("p1", "Mug", "12.50", 5))
	_, err := f.orch.PlaceOrder(context.Background(), testRequest(line("p1", 0)))

	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, "p1", iqErr.ProductID)
}

func TestPlaceOrder_ProductNotFound(t *testing.T) {
	f := newFixture()
	_, err := f.orch.PlaceOrder(context.Background(), testRequest(line("missing", 1)))

	var pnfErr *ProductNotFoundError
	require.ErrorAs(t, err, &pnfErr)
	assert.Equal(t, "missing", pnfErr.ProductID)
}

func TestPlaceOrder_ProductInactive(t *testing.T) {
	p := testProduct("p1", "Retired Mug", "12.50", 5)
	p.Active = false
	f := newFixture(p)

	_, err := f.orch.PlaceOrder(context.Background(), testRequest(line("p1", 1)))

	var inactiveErr *ProductInactiveError
	require.ErrorAs(t, err, &inactiveErr)
	assert.Equal(t, "p1", inactiveErr.ProductID)
	// Precheck rejects before reservation: nothing to undo.
	assert.Equal(t, 5, f.ledger.stockOf("p1"))
}

func TestPlaceOrder_PrecheckInsufficientStock(t *testing.T) {
	f := newFixture(testProduct("p1", "Mug", "12.50", 3))
	_, err := f.orch.PlaceOrder(context.Background(), testRequest(line("p1", 5)))

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 5, stockErr.Requested)
	assert.Equal(t, 3, stockErr.Available)
	assert.Contains(t, err.Error(), "requested 5, available 3")
	assert.Equal(t, 3, f.ledger.stockOf("p1"))
}

// --- Happy path ---

func TestPlaceOrder_Success(t *testing.T) {
	f := newFixture(
		testProduct("p1", "Mug", "12.50", 10),
		testProduct("p2", "Poster", "8.00", 4),
	)

	ord, err := f.orch.PlaceOrder(context.Background(), testRequest(line("p1", 2), line("p2", 3)))
	require.NoError(t, err)

	// Total recomputed server-side: 2*12.50 + 3*8.00.
	assert.True(t, decimal.RequireFromString("49.00").Equal(ord.Total))
	assert.Equal(t, order.StatusPreparing, ord.Status)
	assert.Equal(t, "u1", ord.UserID)

	assert.Equal(t, 8, f.ledger.stockOf("p1"))
	assert.Equal(t, 1, f.ledger.stockOf("p2"))

	// Lines exactly mirror the reserved request lines.
	require.Len(t, f.lines.batches, 1)
	lines := f.lines.batches[0]
	require.Len(t, lines, 2)
	assert.Equal(t, ord.ID, lines[0].OrderID)
	assert.Equal(t, "p1", lines[0].ProductID)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.True(t, decimal.RequireFromString("12.50").Equal(lines[0].UnitPrice))
	assert.Equal(t, "p2", lines[1].ProductID)

	// One production job per line, pending.
	require.Len(t, f.jobs.batches, 1)
	require.Len(t, f.jobs.batches[0], 2)
	assert.Equal(t, production.JobStatusPending, f.jobs.batches[0][0].Status)
	assert.Equal(t, ord.ID, f.jobs.batches[0][0].OrderID)

	assert.Equal(t, []string{"u1"}, f.carts.cleared)
	assert.Empty(t, f.orders.deleted)
}

func TestPlaceOrder_ClientPriceIgnored(t *testing.T) {
	f := newFixture(testProduct("p1", "Mug", "12.50", 10))

	req := testRequest(RequestedLine{ProductID: "p1", Quantity: 1, UnitPrice: decimal.RequireFromString("0.01")})
	ord, err := f.orch.PlaceOrder(context.Background(), req)

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("12.50").Equal(ord.Total))
	assert.True(t, decimal.RequireFromString("12.50").Equal(f.lines.batches[0][0].UnitPrice))
}

// --- Compensation ---

func TestPlaceOrder_PartialReservationRollsBack(t *testing.T) {
	f := newFixture(
		testProduct("p1", "Mug", "12.50", 10),
		testProduct("p2", "Poster", "8.00", 3),
	)

	// Line 1 reserves (10→8), line 2 fails (wants 5, only 3).
	_, err := f.orch.PlaceOrder(context.Background(), testRequest(line("p1", 2), line("p2", 5)))

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "p2", stockErr.ProductID)

	// No partial reservation left standing.
	assert.Equal(t, 10, f.ledger.stockOf("p1"))
	assert.Equal(t, 3, f.ledger.stockOf("p2"))
	assert.Empty(t, f.orders.created)
	assert.Empty(t, f.lines.batches)
	assert.Empty(t, f.jobs.batches)
	assert.Empty(t, f.carts.cleared)
}

func TestPlaceOrder_ReservationLostRace(t *testing.T) {
	f := newFixture(testProduct("p1", "Mug", "12.50", 10))
	// Precheck sees stock 10, but the atomic reserve loses to a concurrent
	// checkout.
	f.ledger.reserveErr = map[string]error{"p1": product.ErrInsufficientStock}

	_, err := f.orch.PlaceOrder(context.Background(), testRequest(line("p1", 2)))

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Empty(t, f.orders.created)
}

func TestPlaceOrder_OrderCreateFailureReleasesStock(t *testing.T) {
	f := newFixture(
		testProduct("p1", "Mug", "12.50", 10),
		testProduct("p2", "Poster", "8.00", 4),
	)
	f.orders.createErr = errors.New("db write failed")

	_, err := f.orch.PlaceOrder(context.Background(), testRequest(line("p1", 2), line("p2", 1)))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
	assert.Equal(t, 10, f.ledger.stockOf("p1"))
	assert.Equal(t, 4, f.ledger.stockOf("p2"))
	// Releases run in reverse order of reservation.
	assert.Equal(t, []string{"p2", "p1"}, f.ledger.releases)
}

func TestPlaceOrder_LineBatchFailureDeletesOrder(t *testing.T) {
	f := newFixture(testProduct("p1", "Mug", "12.50", 10))
	f.lines.err = errors.New("bulk insert failed")

	_, err := f.orch.PlaceOrder(context.Background(), testRequest(line("p1", 2)))

	require.Error(t, err)
	require.Len(t, f.orders.created, 1)
	assert.Equal(t, []string{f.orders.created[0].ID}, f.orders.deleted)
	assert.Equal(t, 10, f.ledger.stockOf("p1"))
	assert.Empty(t, f.jobs.batches)
	assert.Empty(t, f.carts.cleared)
}

func TestPlaceOrder_ReleaseFailureIsFatalIntegrityError(t *testing.T) {
	f := newFixture(testProduct("p1", "Mug", "12.50", 10))
	f.orders.createErr = errors.New("db write failed")
	f.ledger.releaseErr = errors.New("release failed")

	_, err := f.orch.PlaceOrder(context.Background(), testRequest(line("p1", 2)))

	var compErr *CompensationError
	require.ErrorAs(t, err, &compErr)
	assert.Len(t, compErr.Failures, 1)
	assert.Contains(t, compErr.Error(), "compensation did not complete")
	// The forward failure is still reachable through Unwrap.
	assert.Contains(t, errors.Unwrap(err).Error(), "db write failed")
}

// --- Best-effort tier ---

func TestPlaceOrder_ProductionJobFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(testProduct("p1", "Mug", "12.50", 10))
	f.jobs.err = errors.New("production store down")

	ord, err := f.orch.PlaceOrder(context.Background(), testRequest(line("p1", 2)))

	require.NoError(t, err)
	require.NotNil(t, ord)
	// Order stands, stock stays decremented, cart still cleared.
	assert.Equal(t, 8, f.ledger.stockOf("p1"))
	assert.Len(t, f.orders.created, 1)
	assert.Empty(t, f.orders.deleted)
	assert.Equal(t, []string{"u1"}, f.carts.cleared)
}

func TestPlaceOrder_CartClearFailureDoesNotFailCheckout(t *testing.T) {
	f := newFixture(testProduct("p1", "Mug", "12.50", 10))
	f.carts.err = errors.New("redis down")

	ord, err := f.orch.PlaceOrder(context.Background(), testRequest(line("p1", 2)))

	require.NoError(t, err)
	require.NotNil(t, ord)
	assert.Equal(t, 8, f.ledger.stockOf("p1"))
}

// --- Cancellation ---

func TestPlaceOrder_CompensationSurvivesRequestCancel(t *testing.T) {
	f := newFixture(testProduct("p1", "Mug", "12.50", 10))

	ctx, cancel := context.WithCancel(context.Background())
	// Fail order creation and cancel the request at the same point the client
	// would give up; the releases must still run.
	f.orders.createErr = errors.New("db write failed")
	cancel()

	// Reservation and the rest of the run still execute against the ledger:
	// Reserve uses the live ctx but the mock ignores cancellation, matching a
	// write that already reached the store when the client disconnected.
	_, err := f.orch.PlaceOrder(ctx, f.requestFor("p1", 2))
	require.Error(t, err)
	assert.Equal(t, 10, f.ledger.stockOf("p1"))
	assert.Equal(t, []string{"p1"}, f.ledger.releases)
}

func (f *fixture) requestFor(productID string, qty int) Request {
	return testRequest(line(productID, qty))
}

// --- Concurrency ---

func TestPlaceOrder_LastUnitContention(t *testing.T) {
	f := newFixture(testProduct("p1", "Mug", "12.50", 1))

	results := make([]error, 2)
	var g errgroup.Group
	for i := range results {
		i := i
		g.Go(func() error {
			_, err := f.orch.PlaceOrder(context.Background(), Request{
				UserID:          "u" + string(rune('1'+i)),
				ShippingAddress: "1 Print Lane",
				PaymentMethod:   "card",
				Lines:           []RequestedLine{line("p1", 1)},
			})
			results[i] = err
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var wins, losses int
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		var stockErr *InsufficientStockError
		if assert.ErrorAs(t, err, &stockErr) {
			losses++
		}
	}
	assert.Equal(t, 1, wins, "exactly one checkout wins the last unit")
	assert.Equal(t, 1, losses)
	assert.Equal(t, 0, f.ledger.stockOf("p1"))
	assert.Len(t, f.orders.created, 1)
}

func TestPlaceOrder_NoOversellUnderLoad(t *testing.T) {
	const (
		initialStock = 20
		shoppers     = 50
	)
	f := newFixture(testProduct("p1", "Mug", "12.50", initialStock))

	var g errgroup.Group
	var mu sync.Mutex
	reservedTotal := 0
	for i := 0; i < shoppers; i++ {
		g.Go(func() error {
			ord, err := f.orch.PlaceOrder(context.Background(), testRequest(line("p1", 1)))
			if err == nil && ord != nil {
				mu.Lock()
				reservedTotal++
				mu.Unlock()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	// Winners never exceed the stock available at the start of contention,
	// and the counter never goes negative.
	assert.Equal(t, initialStock, reservedTotal)
	assert.Equal(t, 0, f.ledger.stockOf("p1"))
	assert.Len(t, f.orders.created, initialStock)
}
