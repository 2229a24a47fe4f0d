package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/printkart/storefront/internal/domain/cart"
)

// Cart routes identify the shopper by the user_id query parameter (the
// storefront has no session layer of its own).

func (h *Handler) listCart(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}

	entries, err := h.carts.List(r.Context(), userID)
	if err != nil {
		zctx.From(r.Context()).Error("list cart", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list cart")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	var entry cart.Entry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	switch {
	case entry.UserID == "":
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	case entry.ProductID == "":
		writeError(w, http.StatusBadRequest, "product_id required")
		return
	case entry.Quantity <= 0:
		writeError(w, http.StatusBadRequest, "quantity must be greater than 0")
		return
	}

	if err := h.carts.Add(r.Context(), entry); err != nil {
		zctx.From(r.Context()).Error("add to cart", zap.String("user_id", entry.UserID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to add to cart")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}

	if err := h.carts.Clear(r.Context(), userID); err != nil {
		zctx.From(r.Context()).Error("clear cart", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to clear cart")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
