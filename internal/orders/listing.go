package orders

import (
	"context"
	"sort"

	"github.com/angelmondragon/buildmart-backend/internal/docpaths"
	"github.com/angelmondragon/buildmart-backend/internal/session"
	"github.com/angelmondragon/buildmart-backend/pkg/docstore"
	"github.com/angelmondragon/buildmart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/buildmart-backend/pkg/errors"
)

// BucketQuery selects one vendor bucket. VendorID is only honoured for admins.
type BucketQuery struct {
	VendorID string
	Bucket   enums.OrderBucket
}

// CustomerQuery lists a customer's orders. Status is matched literally
// against the stored status string. CustomerID is only honoured for admins.
type CustomerQuery struct {
	CustomerID string
	Status     string
}

type BucketView struct {
	VendorID string            `json:"vendorId"`
	Bucket   enums.OrderBucket `json:"bucket"`
	Orders   []VendorOrderView `json:"orders"`
	Error    string            `json:"error,omitempty"`
}

type OrdersView struct {
	Orders []Order `json:"orders"`
	Error  string  `json:"error,omitempty"`
}

func (s *service) ListVendorBucket(ctx context.Context, sc session.Context, query BucketQuery) ([]VendorOrderView, error) {
	vendorID, err := resolveVendor(sc, query.VendorID)
	if err != nil {
		return nil, err
	}
	if !query.Bucket.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order bucket")
	}
	value, _, err := s.store.Get(ctx, docpaths.VendorBucket(vendorID, query.Bucket))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vendor orders")
	}
	return decodeBucket(vendorID, query.Bucket, value)
}

func (s *service) ListCustomerOrders(ctx context.Context, sc session.Context, query CustomerQuery) ([]Order, error) {
	customerID, err := resolveCustomer(sc, query.CustomerID)
	if err != nil {
		return nil, err
	}
	value, _, err := s.store.Get(ctx, docpaths.CustomerOrders(customerID))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return decodeOrders(value, query.Status)
}

func (s *service) GetCustomerOrder(ctx context.Context, sc session.Context, customerID, orderID string) (*Order, error) {
	customerID, err := resolveCustomer(sc, customerID)
	if err != nil {
		return nil, err
	}
	if !docstore.ValidSegment(orderID) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id")
	}
	var order Order
	ok, err := docstore.GetInto(ctx, s.store, docpaths.CustomerOrder(customerID, orderID), &order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	order.ID = orderID
	return &order, nil
}

func (s *service) WatchVendorBucket(ctx context.Context, sc session.Context, query BucketQuery) (<-chan BucketView, func(), error) {
	vendorID, err := resolveVendor(sc, query.VendorID)
	if err != nil {
		return nil, nil, err
	}
	if !query.Bucket.IsValid() {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order bucket")
	}
	bucket := query.Bucket
	return docstore.Watch(ctx, s.store, docpaths.VendorBucket(vendorID, bucket), func(snap docstore.Snapshot) BucketView {
		view := BucketView{VendorID: vendorID, Bucket: bucket, Orders: []VendorOrderView{}}
		if snap.Err != nil {
			view.Error = "orders unavailable"
			return view
		}
		orders, err := decodeBucket(vendorID, bucket, snap.Value)
		if err != nil {
			s.logError(ctx, "orders.decode_bucket_failed", err)
			view.Error = "orders unavailable"
			return view
		}
		view.Orders = orders
		return view
	})
}

func (s *service) WatchCustomerOrders(ctx context.Context, sc session.Context, query CustomerQuery) (<-chan OrdersView, func(), error) {
	customerID, err := resolveCustomer(sc, query.CustomerID)
	if err != nil {
		return nil, nil, err
	}
	status := query.Status
	return docstore.Watch(ctx, s.store, docpaths.CustomerOrders(customerID), func(snap docstore.Snapshot) OrdersView {
		if snap.Err != nil {
			return OrdersView{Orders: []Order{}, Error: "orders unavailable"}
		}
		orders, err := decodeOrders(snap.Value, status)
		if err != nil {
			s.logError(ctx, "orders.decode_orders_failed", err)
			return OrdersView{Orders: []Order{}, Error: "orders unavailable"}
		}
		return OrdersView{Orders: orders}
	})
}

func decodeBucket(vendorID string, bucket enums.OrderBucket, value any) ([]VendorOrderView, error) {
	out := []VendorOrderView{}
	if value == nil {
		return out, nil
	}
	var byID map[string]VendorOrder
	if err := docstore.Decode(value, &byID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode vendor orders")
	}
	for id, vo := range byID {
		if vo.OrderID == "" {
			vo.OrderID = id
		}
		out = append(out, VendorOrderView{VendorID: vendorID, Bucket: bucket, VendorOrder: vo})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].OrderID > out[j].OrderID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func decodeOrders(value any, status string) ([]Order, error) {
	out := []Order{}
	if value == nil {
		return out, nil
	}
	var byID map[string]Order
	if err := docstore.Decode(value, &byID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode orders")
	}
	for id, order := range byID {
		if status != "" && order.Status != status {
			continue
		}
		order.ID = id
		out = append(out, order)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func resolveVendor(sc session.Context, requested string) (string, error) {
	if sc.IsAdmin() {
		if err := sc.RequireAdmin(); err != nil {
			return "", err
		}
		if !docstore.ValidSegment(requested) {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "vendor id is required")
		}
		return requested, nil
	}
	vendorID, err := sc.RequireVendor()
	if err != nil {
		return "", err
	}
	if requested != "" && requested != vendorID {
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "cannot read another vendor's orders")
	}
	return vendorID, nil
}

func resolveCustomer(sc session.Context, requested string) (string, error) {
	if sc.IsAdmin() {
		if err := sc.RequireAdmin(); err != nil {
			return "", err
		}
		if _, err := session.ParseCustomerID(requested); err != nil {
			return "", err
		}
		return requested, nil
	}
	customerID, err := sc.RequireCustomer()
	if err != nil {
		return "", err
	}
	if requested != "" && requested != customerID {
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "cannot read another customer's orders")
	}
	return customerID, nil
}
