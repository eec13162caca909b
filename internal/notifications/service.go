package notifications

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/angelmondragon/buildmart-backend/internal/docpaths"
	"github.com/angelmondragon/buildmart-backend/internal/session"
	"github.com/angelmondragon/buildmart-backend/pkg/docstore"
	"github.com/angelmondragon/buildmart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/buildmart-backend/pkg/errors"
	"github.com/angelmondragon/buildmart-backend/pkg/logger"
)

// Notification is stored under the recipient's Notifications subtree.
type Notification struct {
	ID        string                 `json:"id,omitempty"`
	Type      enums.NotificationType `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	OrderID   string                 `json:"orderId,omitempty"`
	Status    string                 `json:"status,omitempty"`
	Read      bool                   `json:"read"`
	CreatedAt time.Time              `json:"createdAt"`
	ReadAt    *time.Time             `json:"readAt,omitempty"`
}

// Service defines notification write, list and read operations.
type Service interface {
	NotifyVendorNewOrder(ctx context.Context, vendorID, orderID string, itemCount int, total float64)
	NotifyCustomerStatus(ctx context.Context, customerID, orderID, status string)
	List(ctx context.Context, sc session.Context, params ListParams) ([]Notification, error)
	MarkRead(ctx context.Context, sc session.Context, notificationID string) error
}

type ListParams struct {
	UnreadOnly bool
	Limit      int
}

const defaultListLimit = 50

type service struct {
	store docstore.Store
	logg  *logger.Logger
	now   func() time.Time
}

// NewService wires notifications dependencies.
func NewService(store docstore.Store, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "document store required")
	}
	return &service{store: store, logg: logg, now: time.Now}, nil
}

// NotifyVendorNewOrder records a new-order notice for the vendor. Failures are logged only.
func (s *service) NotifyVendorNewOrder(ctx context.Context, vendorID, orderID string, itemCount int, total float64) {
	n := Notification{
		Type:      enums.NotificationTypeNewOrder,
		Title:     "New order received",
		Message:   fmt.Sprintf("Order %s with %d item(s) worth %.2f is waiting in New Orders", orderID, itemCount, total),
		OrderID:   orderID,
		Status:    "pending",
		CreatedAt: s.now().UTC(),
	}
	s.push(ctx, docpaths.VendorNotifications(vendorID), n)
}

// NotifyCustomerStatus records an order status change for the customer. Failures are logged only.
func (s *service) NotifyCustomerStatus(ctx context.Context, customerID, orderID, status string) {
	n := Notification{
		Type:      enums.NotificationTypeOrderStatus,
		Title:     "Order update",
		Message:   fmt.Sprintf("Your order %s is now %s", orderID, status),
		OrderID:   orderID,
		Status:    status,
		CreatedAt: s.now().UTC(),
	}
	s.push(ctx, docpaths.CustomerNotifications(customerID), n)
}

func (s *service) push(ctx context.Context, path string, n Notification) {
	if _, err := s.store.Push(ctx, path, n); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithField(ctx, "notification_path", path), "notifications.push_failed", err)
	}
}

func (s *service) List(ctx context.Context, sc session.Context, params ListParams) ([]Notification, error) {
	root, err := rootFor(sc)
	if err != nil {
		return nil, err
	}
	var byID map[string]Notification
	if _, err := docstore.GetInto(ctx, s.store, root, &byID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	out := make([]Notification, 0, len(byID))
	for id, n := range byID {
		if params.UnreadOnly && n.Read {
			continue
		}
		n.ID = id
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	limit := params.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *service) MarkRead(ctx context.Context, sc session.Context, notificationID string) error {
	root, err := rootFor(sc)
	if err != nil {
		return err
	}
	if !docstore.ValidSegment(notificationID) {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid notification id")
	}
	path := docstore.Join(root, notificationID)
	batch := docstore.NewBatch().
		Require(docstore.Join(path, "read"), false).
		Update(path, map[string]any{"read": true, "readAt": s.now().UTC()})
	err = s.store.Commit(ctx, batch)
	if errors.Is(err, docstore.ErrPreconditionFailed) {
		exists, getErr := s.exists(ctx, path)
		if getErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, getErr, "load notification")
		}
		if !exists {
			return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
		}
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	return nil
}

func (s *service) exists(ctx context.Context, path string) (bool, error) {
	_, ok, err := s.store.Get(ctx, path)
	return ok, err
}

func rootFor(sc session.Context) (string, error) {
	switch {
	case sc.IsCustomer():
		id, err := sc.RequireCustomer()
		if err != nil {
			return "", err
		}
		return docpaths.CustomerNotifications(id), nil
	case sc.IsVendor():
		id, err := sc.RequireVendor()
		if err != nil {
			return "", err
		}
		return docpaths.VendorNotifications(id), nil
	}
	return "", pkgerrors.New(pkgerrors.CodeForbidden, "notifications are only kept for customers and vendors")
}
