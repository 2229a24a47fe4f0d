//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestListProducts(t *testing.T) {
	resp := doGet(t, "/api/products")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	products := decodeJSON[[]productResponse](t, resp)
	if len(products) != 8 {
		t.Fatalf("expected 8 products, got %d", len(products))
	}
}

func TestListProducts_Fields(t *testing.T) {
	resp := doGet(t, "/api/products")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	products := decodeJSON[[]productResponse](t, resp)

	var mug *productResponse
	for i := range products {
		if products[i].ID == "mug-classic-11oz" {
			mug = &products[i]
			break
		}
	}

	if mug == nil {
		t.Fatal("product 'mug-classic-11oz' not found")
	}
	if mug.Name != "Classic Mug 11oz" {
		t.Errorf("name: got %q, want %q", mug.Name, "Classic Mug 11oz")
	}
	if mug.Price != "12.5" {
		t.Errorf("price: got %q, want %q", mug.Price, "12.5")
	}
	if mug.Category != "mugs" {
		t.Errorf("category: got %q, want %q", mug.Category, "mugs")
	}
	if !mug.Active {
		t.Error("expected mug to be active")
	}
}

func TestGetProduct(t *testing.T) {
	resp := doGet(t, "/api/products/canvas-30x40")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	product := decodeJSON[productResponse](t, resp)
	if product.ID != "canvas-30x40" {
		t.Errorf("id: got %q, want %q", product.ID, "canvas-30x40")
	}
	if product.Price != "34" {
		t.Errorf("price: got %q, want %q", product.Price, "34")
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	resp := doGet(t, "/api/products/no-such-sku")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	errResp := decodeJSON[errorResponse](t, resp)
	if errResp.Code != 404 {
		t.Errorf("error code: got %d, want 404", errResp.Code)
	}
}
