package cron

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/buildmart-backend/internal/docpaths"
	"github.com/angelmondragon/buildmart-backend/internal/orders"
	"github.com/angelmondragon/buildmart-backend/pkg/docstore"
	"github.com/angelmondragon/buildmart-backend/pkg/enums"
	"github.com/angelmondragon/buildmart-backend/pkg/logger"
)

const (
	defaultOrderMaxAge = 10 * 24 * time.Hour
	expiredReason      = "Order expired before the vendor responded"
	systemActor        = "system"
)

type orderMover interface {
	MoveOrder(ctx context.Context, req orders.MoveRequest) (*orders.VendorOrderView, error)
}

// ExpireOrdersJobParams configure the stale new-order sweep.
type ExpireOrdersJobParams struct {
	Logger *logger.Logger
	Store  docstore.Store
	Orders orderMover
	MaxAge time.Duration
}

// NewExpireOrdersJob builds the job that cancels orders left in New Orders
// longer than MaxAge.
func NewExpireOrdersJob(params ExpireOrdersJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("document store required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	maxAge := params.MaxAge
	if maxAge <= 0 {
		maxAge = defaultOrderMaxAge
	}
	return &expireOrdersJob{
		logg:   params.Logger,
		store:  params.Store,
		orders: params.Orders,
		maxAge: maxAge,
		now:    time.Now,
	}, nil
}

type expireOrdersJob struct {
	logg   *logger.Logger
	store  docstore.Store
	orders orderMover
	maxAge time.Duration
	now    func() time.Time
}

func (j *expireOrdersJob) Name() string { return "expire-new-orders" }

func (j *expireOrdersJob) Run(ctx context.Context) (int, error) {
	var vendors map[string]struct{}
	if _, err := docstore.GetInto(ctx, j.store, docpaths.Vendors(), &vendors); err != nil {
		return 0, fmt.Errorf("load vendors: %w", err)
	}
	cutoff := j.now().UTC().Add(-j.maxAge)

	vendorIDs := make([]string, 0, len(vendors))
	for id := range vendors {
		vendorIDs = append(vendorIDs, id)
	}
	sort.Strings(vendorIDs)

	expired := 0
	var errs error
	for _, vendorID := range vendorIDs {
		stale, err := j.staleOrders(ctx, vendorID, cutoff)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		for _, orderID := range stale {
			_, err := j.orders.MoveOrder(ctx, orders.MoveRequest{
				VendorID: vendorID,
				OrderID:  orderID,
				From:     enums.OrderBucketNew,
				To:       enums.OrderBucketCancelled,
				Extra: map[string]any{
					"cancelledBy":        systemActor,
					"cancellationReason": expiredReason,
				},
			})
			switch {
			case err == nil:
				expired++
			case errors.Is(err, orders.ErrConcurrentModification), errors.Is(err, orders.ErrOrderNotFound):
				// The vendor acted on the order while we were sweeping.
				j.logg.Warn(j.logg.WithFields(ctx, map[string]any{"vendor_id": vendorID, "order_id": orderID}), "order moved before expiry")
			default:
				errs = multierr.Append(errs, fmt.Errorf("expire %s/%s: %w", vendorID, orderID, err))
			}
		}
	}
	return expired, errs
}

func (j *expireOrdersJob) staleOrders(ctx context.Context, vendorID string, cutoff time.Time) ([]string, error) {
	var bucket map[string]orders.VendorOrder
	if _, err := docstore.GetInto(ctx, j.store, docpaths.VendorBucket(vendorID, enums.OrderBucketNew), &bucket); err != nil {
		return nil, fmt.Errorf("load new orders for %s: %w", vendorID, err)
	}
	var stale []string
	for orderID, order := range bucket {
		if !order.CreatedAt.IsZero() && order.CreatedAt.Before(cutoff) {
			stale = append(stale, orderID)
		}
	}
	sort.Strings(stale)
	return stale, nil
}
