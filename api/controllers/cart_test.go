package controllers

import (
	"context"
	"net/http"
	"testing"

	"github.com/angelmondragon/buildmart-backend/internal/cart"
	"github.com/angelmondragon/buildmart-backend/internal/products"
	"github.com/angelmondragon/buildmart-backend/internal/session"
	"github.com/angelmondragon/buildmart-backend/pkg/docstore"
)

const testCustomer = "Kerala/Kochi/9000000001"

type staticVendorNames map[string]string

func (s staticVendorNames) VendorName(ctx context.Context, vendorID string) (string, error) {
	return s[vendorID], nil
}

func newCatalog(t *testing.T, store docstore.Store) (products.Service, *products.Product) {
	t.Helper()
	svc, err := products.NewService(products.NewRepository(store), staticVendorNames{"v1": "Sharma Hardware"})
	if err != nil {
		t.Fatalf("products service: %v", err)
	}
	mrp := 120.0
	product, err := svc.Create(context.Background(), session.Vendor("v1"), products.CreateInput{
		Name:     "Cement 50kg",
		Category: "cement",
		Price:    100,
		MRP:      &mrp,
		Unit:     "bag",
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return svc, product
}

func newCart(t *testing.T) (cart.Service, *products.Product) {
	t.Helper()
	store := docstore.NewMemory()
	catalog, product := newCatalog(t, store)
	svc, err := cart.NewService(store, catalog, nil)
	if err != nil {
		t.Fatalf("cart service: %v", err)
	}
	return svc, product
}

func TestCartAddItemAndFetch(t *testing.T) {
	svc, product := newCart(t)
	sc := session.Customer(testCustomer)

	req := withSession(newRequest(t, http.MethodPost, "/api/v1/cart/items", map[string]any{
		"productId": product.ID,
		"noOfItems": 3,
	}), sc)
	resp := serve(CartAddItem(svc, nil), req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}

	resp = serve(CartFetch(svc, nil), withSession(newRequest(t, http.MethodGet, "/api/v1/cart", nil), sc))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	view := decodeData[cart.View](t, resp)
	if view.Count != 1 {
		t.Fatalf("expected one line, got %d", view.Count)
	}
	if view.Total != "300.00" {
		t.Fatalf("expected total 300.00, got %s", view.Total)
	}
	if view.Savings != "60.00" {
		t.Fatalf("expected savings 60.00, got %s", view.Savings)
	}
}

func TestCartAddItemValidation(t *testing.T) {
	svc, _ := newCart(t)
	req := withSession(newRequest(t, http.MethodPost, "/api/v1/cart/items", map[string]any{
		"noOfItems": 2,
	}), session.Customer(testCustomer))
	resp := serve(CartAddItem(svc, nil), req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartUpdateQuantityOutOfRangeIsIgnored(t *testing.T) {
	svc, product := newCart(t)
	sc := session.Customer(testCustomer)
	line, err := svc.AddProduct(context.Background(), sc, cart.AddProductInput{ProductID: product.ID, NoOfItems: 2})
	if err != nil {
		t.Fatalf("add product: %v", err)
	}

	req := withParams(withSession(newRequest(t, http.MethodPatch, "/api/v1/cart/items/"+line.Key, map[string]any{
		"noOfItems": 1000,
	}), sc), map[string]string{"itemKey": line.Key})
	resp := serve(CartUpdateQuantity(svc, nil), req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	view := decodeData[cart.View](t, resp)
	if view.Total != "200.00" {
		t.Fatalf("expected quantity to stay at 2, total %s", view.Total)
	}
}

func TestCartRemoveItem(t *testing.T) {
	svc, product := newCart(t)
	sc := session.Customer(testCustomer)
	line, err := svc.AddProduct(context.Background(), sc, cart.AddProductInput{ProductID: product.ID})
	if err != nil {
		t.Fatalf("add product: %v", err)
	}

	req := withParams(withSession(newRequest(t, http.MethodDelete, "/api/v1/cart/items/"+line.Key, nil), sc),
		map[string]string{"itemKey": line.Key})
	resp := serve(CartRemoveItem(svc, nil), req)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", resp.Code)
	}
	view, err := svc.Get(context.Background(), sc)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if view.Count != 0 {
		t.Fatalf("expected empty cart, got %d lines", view.Count)
	}
}

func TestCartMissingSession(t *testing.T) {
	svc, _ := newCart(t)
	resp := serve(CartFetch(svc, nil), newRequest(t, http.MethodGet, "/api/v1/cart", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCartVendorForbidden(t *testing.T) {
	svc, _ := newCart(t)
	resp := serve(CartFetch(svc, nil), withSession(newRequest(t, http.MethodGet, "/api/v1/cart", nil), session.Vendor("v1")))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}
