//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func doCartGet(t *testing.T, userID string) []cartEntry {
	t.Helper()

	resp := doRequest(t, http.MethodGet, "/api/cart?user_id="+userID, nil, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	return decodeJSON[[]cartEntry](t, resp)
}

func TestCart_NoAuth(t *testing.T) {
	resp := doRequest(t, http.MethodGet, "/api/cart?user_id=u-cart-noauth", nil, "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestCart_AddListClear(t *testing.T) {
	const userID = "u-cart-basic"

	resp := doPostWithAuth(t, "/api/cart", cartEntry{
		UserID:    userID,
		ProductID: "poster-a2-matte",
		Quantity:  3,
	}, testAPIKey)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("add: expected 204, got %d", resp.StatusCode)
	}

	entries := doCartGet(t, userID)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ProductID != "poster-a2-matte" || entries[0].Quantity != 3 {
		t.Errorf("entry: got %+v", entries[0])
	}

	resp = doRequest(t, http.MethodDelete, "/api/cart?user_id="+userID, nil, testAPIKey)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("clear: expected 204, got %d", resp.StatusCode)
	}

	if entries := doCartGet(t, userID); len(entries) != 0 {
		t.Fatalf("expected empty cart after clear, got %d entries", len(entries))
	}
}

func TestCart_ClearedAfterCheckout(t *testing.T) {
	const userID = "u-cart-checkout"

	resp := doPostWithAuth(t, "/api/cart", cartEntry{
		UserID:    userID,
		ProductID: "mug-classic-11oz",
		Quantity:  1,
	}, testAPIKey)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("add: expected 204, got %d", resp.StatusCode)
	}

	req := placeOrderRequest(userID, orderItemRequest{ProductID: "mug-classic-11oz", Quantity: 1})
	orderResp := doPostWithAuth(t, "/api/orders", req, testAPIKey)
	orderResp.Body.Close()
	if orderResp.StatusCode != http.StatusCreated {
		t.Fatalf("order: expected 201, got %d", orderResp.StatusCode)
	}

	if entries := doCartGet(t, userID); len(entries) != 0 {
		t.Fatalf("expected cart cleared after checkout, got %d entries", len(entries))
	}
}
