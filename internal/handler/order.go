package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/printkart/storefront/internal/domain/checkout"
	"github.com/printkart/storefront/internal/domain/order"
)

// orderItemRequest is one requested line on the wire.
type orderItemRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Options   json.RawMessage `json:"options,omitempty"`
}

// orderRequest is the POST /orders body. TotalAmount is accepted for
// compatibility but never trusted; the orchestrator recomputes the total.
type orderRequest struct {
	UserID          string             `json:"user_id"`
	TotalAmount     decimal.Decimal    `json:"total_amount"`
	ShippingAddress string             `json:"shipping_address"`
	PaymentMethod   string             `json:"payment_method"`
	Items           []orderItemRequest `json:"items"`
}

// orderResponse is the 201 body for a placed order.
type orderResponse struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Total           decimal.Decimal `json:"total"`
	Status          string          `json:"status"`
	ShippingAddress string          `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	lines := make([]checkout.RequestedLine, len(req.Items))
	for i, item := range req.Items {
		lines[i] = checkout.RequestedLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
			Options:   item.Options,
		}
	}

	ord, err := h.checkout.PlaceOrder(r.Context(), checkout.Request{
		UserID:          req.UserID,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Lines:           lines,
	})
	if err != nil {
		writeOrderError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(ord))
}

// writeOrderError maps checkout failures onto status codes: everything the
// shopper can fix is 400 with the offending product named; persistence and
// compensation failures are 500. The compensation check must come first: a
// CompensationError unwraps to the forward cause, which is often a 400-class
// error, and an incomplete compensation is never the shopper's problem.
func writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		iqErr       *checkout.InvalidQuantityError
		notFoundErr *checkout.ProductNotFoundError
		inactiveErr *checkout.ProductInactiveError
		stockErr    *checkout.InsufficientStockError
		compErr     *checkout.CompensationError
	)

	switch {
	case errors.As(err, &compErr):
		zctx.From(r.Context()).Error("checkout compensation incomplete", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "checkout failed")

	case errors.Is(err, checkout.ErrEmptyLines),
		errors.Is(err, checkout.ErrMissingUser),
		errors.Is(err, checkout.ErrMissingAddress),
		errors.As(err, &iqErr),
		errors.As(err, &notFoundErr),
		errors.As(err, &inactiveErr),
		errors.As(err, &stockErr):
		writeError(w, http.StatusBadRequest, err.Error())

	default:
		zctx.From(r.Context()).Error("checkout failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "checkout failed")
	}
}

func toOrderResponse(ord *order.Order) orderResponse {
	return orderResponse{
		ID:              ord.ID,
		UserID:          ord.UserID,
		Total:           ord.Total,
		Status:          string(ord.Status),
		ShippingAddress: ord.ShippingAddress,
		PaymentMethod:   ord.PaymentMethod,
		CreatedAt:       ord.CreatedAt,
	}
}
