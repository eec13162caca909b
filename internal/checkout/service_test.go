package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/buildmart-backend/internal/cart"
	"github.com/angelmondragon/buildmart-backend/internal/orders"
	"github.com/angelmondragon/buildmart-backend/internal/session"
	"github.com/angelmondragon/buildmart-backend/pkg/docstore"
	pkgerrors "github.com/angelmondragon/buildmart-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

const customerID = "Karnataka/Mysuru/9000000001"

// recordingStore counts writes and can fail writes below chosen paths.
type recordingStore struct {
	docstore.Store
	mu       sync.Mutex
	writes   int
	failures map[string]error
}

func (r *recordingStore) fail(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	for prefix, err := range r.failures {
		if strings.HasPrefix(path, prefix) {
			return err
		}
	}
	return nil
}

func (r *recordingStore) Set(ctx context.Context, path string, value any) error {
	if err := r.fail(path); err != nil {
		return err
	}
	return r.Store.Set(ctx, path, value)
}

func (r *recordingStore) Delete(ctx context.Context, path string) error {
	if err := r.fail(path); err != nil {
		return err
	}
	return r.Store.Delete(ctx, path)
}

func (r *recordingStore) Push(ctx context.Context, path string, value any) (string, error) {
	if err := r.fail(path); err != nil {
		return "", err
	}
	return r.Store.Push(ctx, path, value)
}

func (r *recordingStore) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := r.fail(path); err != nil {
		return err
	}
	return r.Store.Update(ctx, path, fields)
}

func (r *recordingStore) Commit(ctx context.Context, b *docstore.Batch) error {
	for _, p := range b.Paths() {
		if err := r.fail(p); err != nil {
			return err
		}
	}
	return r.Store.Commit(ctx, b)
}

func (r *recordingStore) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

type fakeNotifier struct {
	mu      sync.Mutex
	vendors []string
}

func (f *fakeNotifier) NotifyVendorNewOrder(ctx context.Context, vendorID, orderID string, itemCount int, total float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vendors = append(f.vendors, vendorID)
}

type fakeMetrics struct {
	placed   []string
	failures []string
	ok, bad  int
}

func (f *fakeMetrics) IncPlaced(method string)         { f.placed = append(f.placed, method) }
func (f *fakeMetrics) IncCheckoutFailure(reason string) { f.failures = append(f.failures, reason) }
func (f *fakeMetrics) ObserveCheckout(time.Duration)    {}
func (f *fakeMetrics) AddVendorWrites(ok, bad int)      { f.ok += ok; f.bad += bad }

type fixture struct {
	svc      Service
	base     docstore.Store
	store    *recordingStore
	notifier *fakeNotifier
	metrics  *fakeMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	n := 0
	var mu sync.Mutex
	base := docstore.NewMemory(docstore.WithKeyGen(func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("k%03d", n)
	}))
	rec := &recordingStore{Store: base, failures: map[string]error{}}
	f := &fixture{base: base, store: rec, notifier: &fakeNotifier{}, metrics: &fakeMetrics{}}
	svc, err := NewService(rec, Options{Concurrency: 2, Notifier: f.notifier, Metrics: f.metrics})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	f.svc = svc
	return f
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func (f *fixture) seedCart(t *testing.T, items map[string]cart.Item) {
	t.Helper()
	for key, item := range items {
		if err := f.base.Set(context.Background(), "Users/"+customerID+"/Cart/"+key, item); err != nil {
			t.Fatalf("seed cart: %v", err)
		}
	}
}

func threeItemsTwoVendors() map[string]cart.Item {
	return map[string]cart.Item{
		"a": {ProductID: "p1", VendorID: "v1", Price: 100, NoOfItems: intPtr(2)},
		"b": {ProductID: "p2", VendorID: "v2", Price: 50, Quantity: floatPtr(3)},
		"c": {ProductID: "p3", VendorID: "v1", Price: 12.5, NoOfItems: intPtr(4)},
	}
}

func TestPlaceOrderPartitionsByVendor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedCart(t, threeItemsTwoVendors())

	res, err := f.svc.PlaceOrder(ctx, session.Customer(customerID), PlaceOrderInput{PaymentMethod: "cod"})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if res.Total != "400.00" {
		t.Fatalf("expected grand total 400.00, got %s", res.Total)
	}

	var order orders.Order
	if ok, err := docstore.GetInto(ctx, f.base, "Users/"+customerID+"/Orders/"+res.OrderID, &order); err != nil || !ok {
		t.Fatalf("customer order missing: ok=%v err=%v", ok, err)
	}
	if order.Status != "pending" || len(order.Items) != 3 || order.UPIID != nil {
		t.Fatalf("unexpected customer order %+v", order)
	}

	vendorCount := 0
	sum := decimal.Zero
	for _, vendor := range []string{"v1", "v2", "v3"} {
		var vo orders.VendorOrder
		ok, err := docstore.GetInto(ctx, f.base, "Vendors/"+vendor+"/Orders/New Orders/"+res.OrderID, &vo)
		if err != nil {
			t.Fatalf("read vendor order: %v", err)
		}
		if !ok {
			continue
		}
		vendorCount++
		sum = sum.Add(decimal.NewFromFloat(vo.Total))
		for key, item := range vo.Items {
			if item.VendorID != vendor {
				t.Fatalf("item %s of vendor %s leaked into %s", key, item.VendorID, vendor)
			}
		}
		if vo.CustomerID != customerID || vo.OrderID != res.OrderID || vo.Status != "pending" || vo.Version != 1 {
			t.Fatalf("unexpected vendor order %+v", vo)
		}
	}
	if vendorCount != 2 {
		t.Fatalf("expected 2 vendor orders, got %d", vendorCount)
	}
	if !sum.Equal(decimal.NewFromFloat(order.Total)) {
		t.Fatalf("vendor totals %s do not sum to order total %v", sum, order.Total)
	}

	if _, ok, _ := f.base.Get(ctx, "Users/"+customerID+"/Cart"); ok {
		t.Fatal("expected cart to be cleared")
	}
	if len(f.notifier.vendors) != 2 || len(f.metrics.placed) != 1 || f.metrics.ok != 2 {
		t.Fatalf("unexpected side effects notifier=%v metrics=%+v", f.notifier.vendors, f.metrics)
	}
}

func TestPlaceOrderEmptyCartWritesNothing(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.PlaceOrder(context.Background(), session.Customer(customerID), PlaceOrderInput{PaymentMethod: "cod"})
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
	if typed := pkgerrors.As(err); typed == nil || typed.PublicMessage() != PublicFailureMessage {
		t.Fatalf("expected public failure message, got %v", err)
	}
	if f.store.writeCount() != 0 {
		t.Fatalf("expected zero writes, got %d", f.store.writeCount())
	}
	if _, ok, _ := f.base.Get(context.Background(), "Vendors"); ok {
		t.Fatal("expected no vendor records")
	}
	if len(f.metrics.failures) != 1 || f.metrics.failures[0] != "empty_cart" {
		t.Fatalf("unexpected failure metrics %v", f.metrics.failures)
	}
}

func TestPlaceOrderUPIRequiresID(t *testing.T) {
	f := newFixture(t)
	f.seedCart(t, threeItemsTwoVendors())

	_, err := f.svc.PlaceOrder(context.Background(), session.Customer(customerID), PlaceOrderInput{PaymentMethod: "upi", UPIID: "  "})
	if !errors.Is(err, ErrMissingPaymentDetail) {
		t.Fatalf("expected ErrMissingPaymentDetail, got %v", err)
	}
	if f.store.writeCount() != 0 {
		t.Fatalf("expected zero writes, got %d", f.store.writeCount())
	}
	if _, ok, _ := f.base.Get(context.Background(), "Users/"+customerID+"/Orders"); ok {
		t.Fatal("expected no customer order")
	}

	res, err := f.svc.PlaceOrder(context.Background(), session.Customer(customerID), PlaceOrderInput{PaymentMethod: "upi", UPIID: "asha@upi"})
	if err != nil {
		t.Fatalf("place upi order: %v", err)
	}
	upi, _, _ := f.base.Get(context.Background(), "Users/"+customerID+"/Orders/"+res.OrderID+"/upiId")
	if upi != "asha@upi" {
		t.Fatalf("expected upi id stored, got %v", upi)
	}
}

func TestPlaceOrderRejectsUnknownMethod(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.PlaceOrder(context.Background(), session.Customer(customerID), PlaceOrderInput{PaymentMethod: "card"})
	if !errors.Is(err, ErrInvalidPaymentMethod) {
		t.Fatalf("expected ErrInvalidPaymentMethod, got %v", err)
	}
}

func TestPlaceOrderPartialFanoutKeepsCart(t *testing.T) {
	f := newFixture(t)
	f.seedCart(t, threeItemsTwoVendors())
	f.store.failures["Vendors/v2/"] = errors.New("connection reset")

	_, err := f.svc.PlaceOrder(context.Background(), session.Customer(customerID), PlaceOrderInput{PaymentMethod: "cod"})
	var partial *PartialFanoutError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialFanoutError, got %v", err)
	}
	if len(partial.Failed) != 1 || partial.Failed[0] != "v2" || len(partial.Succeeded) != 1 || partial.Succeeded[0] != "v1" {
		t.Fatalf("unexpected partial result %+v", partial)
	}
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected persistence cause, got %v", err)
	}

	ctx := context.Background()
	if _, ok, _ := f.base.Get(ctx, "Users/"+customerID+"/Cart"); !ok {
		t.Fatal("cart must be kept after partial fan-out")
	}
	if _, ok, _ := f.base.Get(ctx, "Vendors/v1/Orders/New Orders/"+partial.OrderID); !ok {
		t.Fatal("successful vendor write is not rolled back")
	}
	if len(f.notifier.vendors) != 0 {
		t.Fatal("no vendor notifications expected on failure")
	}

	// Retrying duplicates the vendor order that already succeeded.
	delete(f.store.failures, "Vendors/v2/")
	res, err := f.svc.PlaceOrder(ctx, session.Customer(customerID), PlaceOrderInput{PaymentMethod: "cod"})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	bucket, _, _ := f.base.Get(ctx, "Vendors/v1/Orders/New Orders")
	if m, _ := bucket.(map[string]any); len(m) != 2 || m[res.OrderID] == nil {
		t.Fatalf("expected duplicate vendor order after retry, got %v", bucket)
	}
}

func TestPlaceOrderRejectsLineWithoutVendor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	items := threeItemsTwoVendors()
	items["d"] = cart.Item{NoOfItems: intPtr(5)}
	f.seedCart(t, items)

	_, err := f.svc.PlaceOrder(ctx, session.Customer(customerID), PlaceOrderInput{PaymentMethod: "cod"})
	if !errors.Is(err, ErrInvalidCartLine) {
		t.Fatalf("expected ErrInvalidCartLine, got %v", err)
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.store.writeCount() != 0 {
		t.Fatalf("expected zero writes, got %d", f.store.writeCount())
	}
	if _, ok, _ := f.base.Get(ctx, "Vendors"); ok {
		t.Fatal("expected no vendor records")
	}
	if _, ok, _ := f.base.Get(ctx, "Users/"+customerID+"/Orders"); ok {
		t.Fatal("expected no customer order")
	}
	if len(f.metrics.failures) != 1 || f.metrics.failures[0] != "invalid_line" {
		t.Fatalf("unexpected failure metrics %v", f.metrics.failures)
	}
}

func TestPlaceOrderRequiresCustomer(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.PlaceOrder(context.Background(), session.Vendor("v1"), PlaceOrderInput{PaymentMethod: "cod"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
