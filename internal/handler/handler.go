// Package handler exposes the storefront HTTP API on a chi router,
// delegating all business logic to the checkout orchestrator and the domain
// repositories.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/printkart/storefront/internal/domain/cart"
	"github.com/printkart/storefront/internal/domain/checkout"
	"github.com/printkart/storefront/internal/domain/product"
)

// Handler serves the storefront API routes.
type Handler struct {
	products product.Repository
	checkout *checkout.Orchestrator
	carts    cart.Repository
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products product.Repository,
	orchestrator *checkout.Orchestrator,
	carts cart.Repository,
) *Handler {
	return &Handler{
		products: products,
		checkout: orchestrator,
		carts:    carts,
	}
}

// Routes returns the API router. The security middleware guards every
// mutating route; catalog reads stay open.
func (h *Handler) Routes(security func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)

	r.Group(func(r chi.Router) {
		r.Use(security)
		r.Post("/orders", h.placeOrder)
		r.Get("/cart", h.listCart)
		r.Post("/cart", h.addToCart)
		r.Delete("/cart", h.clearCart)
	})

	return r
}

// errorResponse is the JSON body for all non-2xx responses.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, errorResponse{Code: code, Message: message})
}
