package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/buildmart-backend/internal/cart"
	"github.com/angelmondragon/buildmart-backend/internal/docpaths"
	"github.com/angelmondragon/buildmart-backend/internal/orders"
	"github.com/angelmondragon/buildmart-backend/internal/session"
	"github.com/angelmondragon/buildmart-backend/pkg/docstore"
	"github.com/angelmondragon/buildmart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/buildmart-backend/pkg/errors"
	"github.com/angelmondragon/buildmart-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

const defaultFanoutConcurrency = 8

type vendorNotifier interface {
	NotifyVendorNewOrder(ctx context.Context, vendorID, orderID string, itemCount int, total float64)
}

type metricsRecorder interface {
	IncPlaced(paymentMethod string)
	IncCheckoutFailure(reason string)
	ObserveCheckout(duration time.Duration)
	AddVendorWrites(succeeded, failed int)
}

// Service executes checkout orchestration.
type Service interface {
	PlaceOrder(ctx context.Context, sc session.Context, input PlaceOrderInput) (*Result, error)
}

type PlaceOrderInput struct {
	PaymentMethod string
	UPIID         string
}

// Result describes a placed order.
type Result struct {
	OrderID      string   `json:"orderId"`
	Total        string   `json:"total"`
	VendorOrders []string `json:"vendorIds"`
}

// Options tunes the fan-out.
type Options struct {
	Concurrency int
	Notifier    vendorNotifier
	Metrics     metricsRecorder
	Logger      *logger.Logger
}

type service struct {
	store       docstore.Store
	carts       *cart.Repository
	concurrency int
	notifier    vendorNotifier
	metrics     metricsRecorder
	logg        *logger.Logger
	now         func() time.Time
}

func NewService(store docstore.Store, opts Options) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("document store required")
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultFanoutConcurrency
	}
	return &service{
		store:       store,
		carts:       cart.NewRepository(store),
		concurrency: concurrency,
		notifier:    opts.Notifier,
		metrics:     opts.Metrics,
		logg:        opts.Logger,
		now:         time.Now,
	}, nil
}

type vendorGroup struct {
	vendorID string
	items    map[string]cart.Item
	subtotal decimal.Decimal
}

// PlaceOrder converts the customer's cart into one customer order and one
// vendor order per distinct vendor. The cart is cleared only after every
// vendor write succeeded.
func (s *service) PlaceOrder(ctx context.Context, sc session.Context, input PlaceOrderInput) (result *Result, err error) {
	started := s.now()
	defer func() {
		if s.metrics == nil {
			return
		}
		s.metrics.ObserveCheckout(s.now().Sub(started))
		if err != nil {
			s.metrics.IncCheckoutFailure(failureReason(err))
		}
	}()

	customerID, err := sc.RequireCustomer()
	if err != nil {
		return nil, err
	}
	method, upiID, err := validatePayment(input)
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		ctx = s.logg.WithCustomerID(ctx, customerID)
	}

	lines, err := s.carts.Lines(ctx, customerID)
	if err != nil {
		s.logError(ctx, "checkout.read_cart_failed", err)
		return nil, persistence(err, "read cart")
	}
	if len(lines) == 0 {
		return nil, failure(pkgerrors.CodeValidation, ErrEmptyCart, "cart is empty")
	}
	if err := validateLines(lines); err != nil {
		s.logError(ctx, "checkout.invalid_cart_line", err)
		return nil, failure(pkgerrors.CodeValidation, err, "cart contains an invalid line")
	}

	groups, grandTotal := partition(lines)
	now := s.now().UTC()
	allItems := make(map[string]cart.Item, len(lines))
	vendorIDs := make([]string, 0, len(groups))
	for _, line := range lines {
		allItems[line.Key] = line.Item
	}
	for _, g := range groups {
		vendorIDs = append(vendorIDs, g.vendorID)
	}

	order := orders.Order{
		Items:         allItems,
		PaymentMethod: method,
		UPIID:         upiID,
		Status:        orders.StatusPending,
		CreatedAt:     now,
		Total:         grandTotal.InexactFloat64(),
		VendorIDs:     vendorIDs,
	}
	orderID, err := s.store.Push(ctx, docpaths.CustomerOrders(customerID), order)
	if err != nil {
		s.logError(ctx, "checkout.create_order_failed", err)
		return nil, persistence(err, "create customer order")
	}
	if s.logg != nil {
		ctx = s.logg.WithField(ctx, "order_id", orderID)
	}

	succeeded, fanoutErr := s.fanOut(ctx, customerID, orderID, order, groups)
	if s.metrics != nil {
		s.metrics.AddVendorWrites(len(succeeded), len(groups)-len(succeeded))
	}
	if fanoutErr != nil {
		partial := &PartialFanoutError{
			OrderID:   orderID,
			Succeeded: succeeded,
			Failed:    missing(vendorIDs, succeeded),
			Err:       fmt.Errorf("%w: %w", ErrPersistence, fanoutErr),
		}
		s.logError(ctx, "checkout.partial_fanout", partial)
		return nil, failure(pkgerrors.CodeDependency, partial, "vendor fan-out incomplete")
	}

	if err := s.carts.Clear(ctx, customerID); err != nil {
		s.logError(ctx, "checkout.clear_cart_failed", err)
		return nil, persistence(err, "clear cart")
	}

	if s.notifier != nil {
		for _, g := range groups {
			s.notifier.NotifyVendorNewOrder(ctx, g.vendorID, orderID, len(g.items), g.subtotal.InexactFloat64())
		}
	}
	if s.metrics != nil {
		s.metrics.IncPlaced(string(method))
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "vendor_count", len(groups)), "checkout.order_placed")
	}

	return &Result{
		OrderID:      orderID,
		Total:        grandTotal.StringFixed(2),
		VendorOrders: vendorIDs,
	}, nil
}

// fanOut writes every vendor order concurrently and waits for all of them.
// Writes are detached from request cancellation so a disconnect cannot stop
// some vendors mid-flight.
func (s *service) fanOut(ctx context.Context, customerID, orderID string, order orders.Order, groups []vendorGroup) ([]string, error) {
	writeCtx := context.WithoutCancel(ctx)
	var (
		mu        sync.Mutex
		errs      error
		succeeded = make([]string, 0, len(groups))
	)
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for _, group := range groups {
		vo := orders.VendorOrder{
			Items:         group.items,
			CustomerID:    customerID,
			OrderID:       orderID,
			PaymentMethod: order.PaymentMethod,
			UPIID:         order.UPIID,
			Status:        orders.StatusPending,
			CreatedAt:     order.CreatedAt,
			Total:         group.subtotal.InexactFloat64(),
			Version:       1,
		}
		vendorID := group.vendorID
		g.Go(func() error {
			err := s.store.Set(writeCtx, docpaths.VendorOrder(vendorID, enums.OrderBucketNew, orderID), vo)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("vendor %s: %w", vendorID, err))
				return nil
			}
			succeeded = append(succeeded, vendorID)
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(succeeded)
	return succeeded, errs
}

// partition groups lines by vendor. The grand total is the sum of the rounded
// vendor subtotals so the customer total always equals the vendor totals.
func partition(lines []cart.Line) ([]vendorGroup, decimal.Decimal) {
	byVendor := map[string]*vendorGroup{}
	for _, line := range lines {
		g, ok := byVendor[line.VendorID]
		if !ok {
			g = &vendorGroup{vendorID: line.VendorID, items: map[string]cart.Item{}}
			byVendor[line.VendorID] = g
		}
		g.items[line.Key] = line.Item
	}

	groups := make([]vendorGroup, 0, len(byVendor))
	total := decimal.Zero
	for _, g := range byVendor {
		items := make([]cart.Item, 0, len(g.items))
		for _, item := range g.items {
			items = append(items, item)
		}
		g.subtotal = cart.ComputeTotal(items)
		total = total.Add(g.subtotal)
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].vendorID < groups[j].vendorID })
	return groups, total
}

// validateLines rejects lines that cannot be routed to a vendor bucket.
func validateLines(lines []cart.Line) error {
	for _, line := range lines {
		if strings.TrimSpace(line.ProductID) == "" || !docstore.ValidSegment(line.VendorID) {
			return fmt.Errorf("%w: line %s", ErrInvalidCartLine, line.Key)
		}
	}
	return nil
}

func validatePayment(input PlaceOrderInput) (enums.PaymentMethod, *string, error) {
	method, err := enums.ParsePaymentMethod(strings.ToLower(strings.TrimSpace(input.PaymentMethod)))
	if err != nil {
		return "", nil, failure(pkgerrors.CodeValidation, ErrInvalidPaymentMethod, "invalid payment method")
	}
	if !method.RequiresUPIID() {
		return method, nil, nil
	}
	upiID := strings.TrimSpace(input.UPIID)
	if upiID == "" {
		return "", nil, failure(pkgerrors.CodeValidation, ErrMissingPaymentDetail, "upi id missing")
	}
	return method, &upiID, nil
}

func missing(all, present []string) []string {
	seen := make(map[string]struct{}, len(present))
	for _, id := range present {
		seen[id] = struct{}{}
	}
	out := []string{}
	for _, id := range all {
		if _, ok := seen[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func (s *service) logError(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	var partial *PartialFanoutError
	if errors.As(err, &partial) {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"failed_vendors":    partial.Failed,
			"succeeded_vendors": partial.Succeeded,
		})
	}
	s.logg.Error(ctx, msg, err)
}
