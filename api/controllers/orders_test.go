package controllers

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/angelmondragon/buildmart-backend/internal/cart"
	"github.com/angelmondragon/buildmart-backend/internal/docpaths"
	"github.com/angelmondragon/buildmart-backend/internal/orders"
	"github.com/angelmondragon/buildmart-backend/internal/session"
	"github.com/angelmondragon/buildmart-backend/pkg/docstore"
	"github.com/angelmondragon/buildmart-backend/pkg/enums"
)

const (
	testVendor = "v1"
	testOrder  = "o1"
)

func newOrders(t *testing.T, bucket enums.OrderBucket) (orders.Service, docstore.Store) {
	t.Helper()
	store := docstore.NewMemory()
	svc, err := orders.NewService(store, orders.Options{})
	if err != nil {
		t.Fatalf("orders service: %v", err)
	}

	ctx := context.Background()
	qty := 2
	items := map[string]cart.Item{"k1": {ProductID: "p1", VendorID: testVendor, Price: 100, NoOfItems: &qty}}
	created := time.Now().UTC().Add(-time.Hour)
	if err := store.Set(ctx, docpaths.CustomerOrder(testCustomer, testOrder), orders.Order{
		Items: items, PaymentMethod: enums.PaymentMethodCOD, Status: orders.StatusPending, CreatedAt: created, Total: 200,
	}); err != nil {
		t.Fatalf("seed customer order: %v", err)
	}
	if err := store.Set(ctx, docpaths.VendorOrder(testVendor, bucket, testOrder), orders.VendorOrder{
		Items: items, CustomerID: testCustomer, OrderID: testOrder, PaymentMethod: enums.PaymentMethodCOD,
		Status: orders.StatusPending, CreatedAt: created, Total: 200, Version: 1,
	}); err != nil {
		t.Fatalf("seed vendor order: %v", err)
	}
	return svc, store
}

func vendorRequest(t *testing.T, method, target string, body any, params map[string]string) *http.Request {
	return withParams(withSession(newRequest(t, method, target, body), session.Vendor(testVendor)), params)
}

func TestVendorListBucketAcceptsSlug(t *testing.T) {
	svc, _ := newOrders(t, enums.OrderBucketNew)
	req := vendorRequest(t, http.MethodGet, "/api/v1/vendor/orders/buckets/new", nil, map[string]string{"bucket": "new"})
	resp := serve(VendorListBucket(svc, nil), req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	list := decodeData[[]orders.VendorOrderView](t, resp)
	if len(list) != 1 || list[0].OrderID != testOrder {
		t.Fatalf("unexpected listing %+v", list)
	}
}

func TestVendorListBucketUnknown(t *testing.T) {
	svc, _ := newOrders(t, enums.OrderBucketNew)
	req := vendorRequest(t, http.MethodGet, "/api/v1/vendor/orders/buckets/shipped", nil, map[string]string{"bucket": "shipped"})
	resp := serve(VendorListBucket(svc, nil), req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestVendorAcceptMovesOrder(t *testing.T) {
	svc, store := newOrders(t, enums.OrderBucketNew)
	req := vendorRequest(t, http.MethodPost, "/api/v1/vendor/orders/o1/accept", nil, map[string]string{"orderId": testOrder})
	resp := serve(VendorAcceptOrder(svc, nil), req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	view := decodeData[orders.VendorOrderView](t, resp)
	if view.Bucket != enums.OrderBucketAccepted || view.Status != orders.StatusAccepted {
		t.Fatalf("unexpected view %+v", view)
	}

	ctx := context.Background()
	if _, ok, _ := store.Get(ctx, docpaths.VendorOrder(testVendor, enums.OrderBucketNew, testOrder)); ok {
		t.Fatal("expected order to leave New Orders")
	}
	status, _, err := store.Get(ctx, docpaths.CustomerOrderField(testCustomer, testOrder, "status"))
	if err != nil {
		t.Fatalf("read status: %v", err)
	}
	if status != orders.StatusAccepted {
		t.Fatalf("expected customer status accepted, got %v", status)
	}
}

func TestVendorAcceptMissingOrder(t *testing.T) {
	svc, _ := newOrders(t, enums.OrderBucketAccepted)
	req := vendorRequest(t, http.MethodPost, "/api/v1/vendor/orders/o1/accept", nil, map[string]string{"orderId": testOrder})
	resp := serve(VendorAcceptOrder(svc, nil), req)
	if resp.Code < 400 {
		t.Fatalf("expected failure, got %d", resp.Code)
	}
	body := decodeError(t, resp)
	if body.Message != orders.PublicTransitionFailure {
		t.Fatalf("expected generic transition message, got %q", body.Message)
	}
}

func TestVendorCancelRequiresKnownBucket(t *testing.T) {
	svc, _ := newOrders(t, enums.OrderBucketNew)
	req := vendorRequest(t, http.MethodPost, "/api/v1/vendor/orders/o1/cancel",
		map[string]any{"from": "somewhere"}, map[string]string{"orderId": testOrder})
	resp := serve(VendorCancelOrder(svc, nil), req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}

	req = vendorRequest(t, http.MethodPost, "/api/v1/vendor/orders/o1/cancel",
		map[string]any{"from": "new", "reason": "out of stock"}, map[string]string{"orderId": testOrder})
	resp = serve(VendorCancelOrder(svc, nil), req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	view := decodeData[orders.VendorOrderView](t, resp)
	if view.CancellationReason != "out of stock" || view.CancelledBy != "vendor" {
		t.Fatalf("unexpected cancellation %+v", view)
	}
}

func TestDeliveryConfirmationEndpoints(t *testing.T) {
	svc, _ := newOrders(t, enums.OrderBucketOutForDelivery)
	params := map[string]string{"orderId": testOrder}

	resp := serve(VendorConfirmDelivery(svc, nil), vendorRequest(t, http.MethodPost, "/api/v1/vendor/orders/o1/deliver",
		map[string]any{"token": "123456"}, params))
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 before arming, got %d", resp.Code)
	}

	resp = serve(VendorArmDelivery(svc, nil), vendorRequest(t, http.MethodPost, "/api/v1/vendor/orders/o1/deliver/arm", nil, params))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	arm := decodeData[orders.DeliveryArm](t, resp)
	if arm.Token == "" {
		t.Fatal("expected confirmation token")
	}

	resp = serve(VendorConfirmDelivery(svc, nil), vendorRequest(t, http.MethodPost, "/api/v1/vendor/orders/o1/deliver",
		map[string]any{"token": arm.Token}, params))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	view := decodeData[orders.VendorOrderView](t, resp)
	if view.Bucket != enums.OrderBucketDelivered {
		t.Fatalf("expected delivered bucket, got %s", view.Bucket)
	}
}

func TestDisarmDelivery(t *testing.T) {
	svc, _ := newOrders(t, enums.OrderBucketOutForDelivery)
	params := map[string]string{"orderId": testOrder}
	if resp := serve(VendorArmDelivery(svc, nil), vendorRequest(t, http.MethodPost, "/", nil, params)); resp.Code != http.StatusOK {
		t.Fatalf("arm: %d", resp.Code)
	}
	resp := serve(VendorDisarmDelivery(svc, nil), vendorRequest(t, http.MethodDelete, "/", nil, params))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestCustomerOrders(t *testing.T) {
	svc, _ := newOrders(t, enums.OrderBucketNew)
	sc := session.Customer(testCustomer)

	resp := serve(CustomerListOrders(svc, nil), withSession(newRequest(t, http.MethodGet, "/api/v1/orders?status=pending", nil), sc))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if list := decodeData[[]orders.Order](t, resp); len(list) != 1 {
		t.Fatalf("expected one pending order, got %d", len(list))
	}

	resp = serve(CustomerListOrders(svc, nil), withSession(newRequest(t, http.MethodGet, "/api/v1/orders?status=completed", nil), sc))
	if list := decodeData[[]orders.Order](t, resp); len(list) != 0 {
		t.Fatalf("expected literal status filter to match nothing, got %d", len(list))
	}

	req := withParams(withSession(newRequest(t, http.MethodGet, "/api/v1/orders/o1", nil), sc), map[string]string{"orderId": testOrder})
	resp = serve(CustomerOrderDetail(svc, nil), req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if order := decodeData[orders.Order](t, resp); order.ID != testOrder || order.Total != 200 {
		t.Fatalf("unexpected order %+v", order)
	}
}

func TestAdminOrderRoutes(t *testing.T) {
	svc, _ := newOrders(t, enums.OrderBucketAccepted)
	admin := session.Admin("root")

	req := withParams(withSession(newRequest(t, http.MethodGet, "/", nil), admin),
		map[string]string{"vendorId": testVendor, "bucket": "accepted"})
	resp := serve(AdminVendorBucket(svc, nil), req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if list := decodeData[[]orders.VendorOrderView](t, resp); len(list) != 1 {
		t.Fatalf("expected one accepted order, got %d", len(list))
	}

	resp = serve(AdminCustomerOrders(svc, nil), withSession(newRequest(t, http.MethodGet, "/api/v1/admin/customers/orders", nil), admin))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without customerId, got %d", resp.Code)
	}

	target := "/api/v1/admin/customers/orders?customerId=" + url.QueryEscape(testCustomer)
	resp = serve(AdminCustomerOrders(svc, nil), withSession(newRequest(t, http.MethodGet, target, nil), admin))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}

	req = withParams(withSession(newRequest(t, http.MethodPost, "/", map[string]any{"reason": "fraud"}), admin),
		map[string]string{"vendorId": testVendor, "orderId": testOrder})
	resp = serve(AdminCancelOrder(svc, nil), req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	view := decodeData[orders.VendorOrderView](t, resp)
	if view.Bucket != enums.OrderBucketCancelled || view.CancelledBy != "admin" {
		t.Fatalf("unexpected admin cancel result %+v", view)
	}
}

func TestVendorCannotUseAdminRoutes(t *testing.T) {
	svc, _ := newOrders(t, enums.OrderBucketAccepted)
	req := withParams(withSession(newRequest(t, http.MethodGet, "/", nil), session.Vendor("v2")),
		map[string]string{"vendorId": testVendor, "bucket": "accepted"})
	resp := serve(AdminVendorBucket(svc, nil), req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}
