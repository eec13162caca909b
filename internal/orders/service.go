package orders

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/buildmart-backend/internal/docpaths"
	"github.com/angelmondragon/buildmart-backend/internal/session"
	"github.com/angelmondragon/buildmart-backend/pkg/docstore"
	"github.com/angelmondragon/buildmart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/buildmart-backend/pkg/errors"
	"github.com/angelmondragon/buildmart-backend/pkg/logger"
	"github.com/angelmondragon/buildmart-backend/pkg/security"
)

const (
	deliveryTokenDigits   = 6
	defaultDeliveryArmTTL = 2 * time.Minute
)

type customerNotifier interface {
	NotifyCustomerStatus(ctx context.Context, customerID, orderID, status string)
}

type transitionRecorder interface {
	IncTransition(from, to, outcome string)
}

// Service runs the vendor order state machine and the order listings.
type Service interface {
	MoveOrder(ctx context.Context, req MoveRequest) (*VendorOrderView, error)
	Accept(ctx context.Context, sc session.Context, orderID string) (*VendorOrderView, error)
	Cancel(ctx context.Context, sc session.Context, orderID string, from enums.OrderBucket, reason string) (*VendorOrderView, error)
	Dispatch(ctx context.Context, sc session.Context, orderID string) (*VendorOrderView, error)
	ArmDelivery(ctx context.Context, sc session.Context, orderID string) (*DeliveryArm, error)
	ConfirmDelivery(ctx context.Context, sc session.Context, orderID, token string) (*VendorOrderView, error)
	DisarmDelivery(ctx context.Context, sc session.Context, orderID string) error
	AdminCancel(ctx context.Context, sc session.Context, vendorID, orderID, reason string) (*VendorOrderView, error)

	ListVendorBucket(ctx context.Context, sc session.Context, query BucketQuery) ([]VendorOrderView, error)
	ListCustomerOrders(ctx context.Context, sc session.Context, query CustomerQuery) ([]Order, error)
	GetCustomerOrder(ctx context.Context, sc session.Context, customerID, orderID string) (*Order, error)
	WatchVendorBucket(ctx context.Context, sc session.Context, query BucketQuery) (<-chan BucketView, func(), error)
	WatchCustomerOrders(ctx context.Context, sc session.Context, query CustomerQuery) (<-chan OrdersView, func(), error)
}

// MoveRequest moves one vendor order between buckets. The record becomes the
// existing fields, then status, then Extra, then updatedAt and version.
type MoveRequest struct {
	VendorID string
	OrderID  string
	From     enums.OrderBucket
	To       enums.OrderBucket
	Extra    map[string]any
	Actor    enums.Role
}

// DeliveryArm is returned by the first step of delivery confirmation.
type DeliveryArm struct {
	OrderID   string    `json:"orderId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Options struct {
	Mode     Mode
	ArmTTL   time.Duration
	Arms     ArmStore
	Notifier customerNotifier
	Metrics  transitionRecorder
	Logger   *logger.Logger
}

type service struct {
	store    docstore.Store
	mode     Mode
	armTTL   time.Duration
	arms     ArmStore
	notifier customerNotifier
	metrics  transitionRecorder
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(store docstore.Store, opts Options) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("document store required")
	}
	mode := opts.Mode
	switch mode {
	case "":
		mode = ModeBatched
	case ModeBatched, ModeSequential:
	default:
		return nil, fmt.Errorf("unknown transition mode %q", mode)
	}
	ttl := opts.ArmTTL
	if ttl <= 0 {
		ttl = defaultDeliveryArmTTL
	}
	arms := opts.Arms
	if arms == nil {
		arms = NewMemoryArmStore()
	}
	return &service{
		store:    store,
		mode:     mode,
		armTTL:   ttl,
		arms:     arms,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		logg:     opts.Logger,
		now:      time.Now,
	}, nil
}

func (s *service) MoveOrder(ctx context.Context, req MoveRequest) (*VendorOrderView, error) {
	if !req.From.IsValid() || !req.To.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order bucket")
	}
	if !docstore.ValidSegment(req.VendorID) || !docstore.ValidSegment(req.OrderID) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id and order id are required")
	}
	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"vendor_id": req.VendorID,
			"order_id":  req.OrderID,
			"from":      string(req.From),
			"to":        string(req.To),
		})
	}

	t, err := lookupTransition(req.From, req.To, req.Actor == enums.RoleAdmin)
	if err != nil {
		s.record(req, "rejected")
		return nil, err
	}

	fromPath := docpaths.VendorOrder(req.VendorID, req.From, req.OrderID)
	toPath := docpaths.VendorOrder(req.VendorID, req.To, req.OrderID)

	value, ok, err := s.store.Get(ctx, fromPath)
	if err != nil {
		s.record(req, "error")
		s.logError(ctx, "orders.read_failed", err)
		return nil, transitionError(pkgerrors.CodeDependency, err, "read vendor order")
	}
	current, isDoc := value.(map[string]any)
	if !ok || !isDoc {
		s.record(req, "not_found")
		return nil, transitionError(pkgerrors.CodeNotFound, ErrOrderNotFound, "order not found in "+string(req.From))
	}

	now := s.now().UTC()
	updated := make(map[string]any, len(current)+len(req.Extra)+4)
	for k, v := range current {
		updated[k] = v
	}
	updated[t.stampedAt] = now
	updated["status"] = t.status
	for k, v := range req.Extra {
		updated[k] = v
	}
	prevVersion := current["version"]
	updated["updatedAt"] = now
	updated["version"] = versionOf(prevVersion) + 1

	status := t.status
	if s, ok := updated["status"].(string); ok && s != "" {
		status = s
	}
	customerID, _ := current["customerId"].(string)
	customerPatch := map[string]any{"status": status, "updatedAt": now}

	if s.mode == ModeSequential {
		err = s.moveSequential(ctx, fromPath, toPath, customerID, req.OrderID, updated, customerPatch)
	} else {
		batch := docstore.NewBatch().
			Require(docstore.Join(fromPath, "version"), prevVersion).
			Set(toPath, updated).
			Delete(fromPath)
		if customerID != "" {
			batch.Update(docpaths.CustomerOrder(customerID, req.OrderID), customerPatch)
		}
		err = s.store.Commit(ctx, batch)
	}
	if errors.Is(err, docstore.ErrPreconditionFailed) {
		s.record(req, "conflict")
		s.logWarn(ctx, "orders.concurrent_move")
		return nil, transitionError(pkgerrors.CodeConflict, fmt.Errorf("%w: %w", ErrConcurrentModification, err), "order changed during transition")
	}
	if err != nil {
		s.record(req, "error")
		s.logError(ctx, "orders.move_failed", err)
		return nil, transitionError(pkgerrors.CodeDependency, err, "move vendor order")
	}

	s.record(req, "success")
	if s.notifier != nil && customerID != "" {
		s.notifier.NotifyCustomerStatus(ctx, customerID, req.OrderID, status)
	}

	var vo VendorOrder
	if err := docstore.Decode(updated, &vo); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode moved order")
	}
	return &VendorOrderView{VendorID: req.VendorID, Bucket: req.To, VendorOrder: vo}, nil
}

// moveSequential issues the legacy three independent writes. A failure part way
// leaves the earlier writes in place.
func (s *service) moveSequential(ctx context.Context, fromPath, toPath, customerID, orderID string, updated, customerPatch map[string]any) error {
	if err := s.store.Set(ctx, toPath, updated); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, fromPath); err != nil {
		return err
	}
	if customerID == "" {
		return nil
	}
	return s.store.Update(ctx, docpaths.CustomerOrder(customerID, orderID), customerPatch)
}

func (s *service) Accept(ctx context.Context, sc session.Context, orderID string) (*VendorOrderView, error) {
	vendorID, err := sc.RequireVendor()
	if err != nil {
		return nil, err
	}
	return s.MoveOrder(ctx, MoveRequest{
		VendorID: vendorID,
		OrderID:  orderID,
		From:     enums.OrderBucketNew,
		To:       enums.OrderBucketAccepted,
		Actor:    enums.RoleVendor,
	})
}

func (s *service) Cancel(ctx context.Context, sc session.Context, orderID string, from enums.OrderBucket, reason string) (*VendorOrderView, error) {
	vendorID, err := sc.RequireVendor()
	if err != nil {
		return nil, err
	}
	return s.MoveOrder(ctx, MoveRequest{
		VendorID: vendorID,
		OrderID:  orderID,
		From:     from,
		To:       enums.OrderBucketCancelled,
		Extra:    cancellation("vendor", reason),
		Actor:    enums.RoleVendor,
	})
}

func (s *service) Dispatch(ctx context.Context, sc session.Context, orderID string) (*VendorOrderView, error) {
	vendorID, err := sc.RequireVendor()
	if err != nil {
		return nil, err
	}
	return s.MoveOrder(ctx, MoveRequest{
		VendorID: vendorID,
		OrderID:  orderID,
		From:     enums.OrderBucketAccepted,
		To:       enums.OrderBucketOutForDelivery,
		Actor:    enums.RoleVendor,
	})
}

// ArmDelivery is the first confirmation step. Nothing is written to the
// document store.
func (s *service) ArmDelivery(ctx context.Context, sc session.Context, orderID string) (*DeliveryArm, error) {
	vendorID, err := sc.RequireVendor()
	if err != nil {
		return nil, err
	}
	if !docstore.ValidSegment(orderID) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id")
	}
	_, ok, err := s.store.Get(ctx, docpaths.VendorOrder(vendorID, enums.OrderBucketOutForDelivery, orderID))
	if err != nil {
		return nil, transitionError(pkgerrors.CodeDependency, err, "read vendor order")
	}
	if !ok {
		return nil, transitionError(pkgerrors.CodeNotFound, ErrOrderNotFound, "order is not out for delivery")
	}
	token, err := security.GenerateNumericCode(deliveryTokenDigits)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate confirmation token")
	}
	if err := s.arms.Arm(ctx, vendorID, orderID, token, s.armTTL); err != nil {
		return nil, transitionError(pkgerrors.CodeDependency, err, "arm delivery confirmation")
	}
	return &DeliveryArm{OrderID: orderID, Token: token, ExpiresAt: s.now().UTC().Add(s.armTTL)}, nil
}

// ConfirmDelivery consumes the armed token and moves the order to Delivered Orders.
func (s *service) ConfirmDelivery(ctx context.Context, sc session.Context, orderID, token string) (*VendorOrderView, error) {
	vendorID, err := sc.RequireVendor()
	if err != nil {
		return nil, err
	}
	if !docstore.ValidSegment(orderID) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id")
	}
	armedToken, ok, err := s.arms.Take(ctx, vendorID, orderID)
	if err != nil {
		return nil, transitionError(pkgerrors.CodeDependency, err, "load delivery confirmation")
	}
	if !ok {
		return nil, transitionError(pkgerrors.CodeStateConflict, ErrDeliveryNotArmed, "delivery confirmation not armed or expired")
	}
	if subtle.ConstantTimeCompare([]byte(armedToken), []byte(strings.TrimSpace(token))) != 1 {
		return nil, transitionError(pkgerrors.CodeStateConflict, ErrDeliveryNotArmed, "delivery confirmation token mismatch")
	}
	return s.MoveOrder(ctx, MoveRequest{
		VendorID: vendorID,
		OrderID:  orderID,
		From:     enums.OrderBucketOutForDelivery,
		To:       enums.OrderBucketDelivered,
		Actor:    enums.RoleVendor,
	})
}

func (s *service) DisarmDelivery(ctx context.Context, sc session.Context, orderID string) error {
	vendorID, err := sc.RequireVendor()
	if err != nil {
		return err
	}
	if err := s.arms.Disarm(ctx, vendorID, orderID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "disarm delivery confirmation")
	}
	return nil
}

// AdminCancel cancels a vendor order from whichever non-terminal bucket holds it.
func (s *service) AdminCancel(ctx context.Context, sc session.Context, vendorID, orderID, reason string) (*VendorOrderView, error) {
	if err := sc.RequireAdmin(); err != nil {
		return nil, err
	}
	if !docstore.ValidSegment(vendorID) || !docstore.ValidSegment(orderID) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id and order id are required")
	}
	for _, bucket := range enums.OrderBuckets() {
		if bucket.IsTerminal() {
			continue
		}
		_, ok, err := s.store.Get(ctx, docpaths.VendorOrder(vendorID, bucket, orderID))
		if err != nil {
			return nil, transitionError(pkgerrors.CodeDependency, err, "locate vendor order")
		}
		if !ok {
			continue
		}
		return s.MoveOrder(ctx, MoveRequest{
			VendorID: vendorID,
			OrderID:  orderID,
			From:     bucket,
			To:       enums.OrderBucketCancelled,
			Extra:    cancellation("admin", reason),
			Actor:    enums.RoleAdmin,
		})
	}
	return nil, transitionError(pkgerrors.CodeNotFound, ErrOrderNotFound, "no open vendor order found")
}

func cancellation(by, reason string) map[string]any {
	extra := map[string]any{"cancelledBy": by}
	if reason = strings.TrimSpace(reason); reason != "" {
		extra["cancellationReason"] = reason
	}
	return extra
}

func versionOf(value any) int64 {
	switch v := value.(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

func (s *service) record(req MoveRequest, outcome string) {
	if s.metrics != nil {
		s.metrics.IncTransition(string(req.From), string(req.To), outcome)
	}
}

func (s *service) logError(ctx context.Context, msg string, err error) {
	if s.logg != nil {
		s.logg.Error(ctx, msg, err)
	}
}

func (s *service) logWarn(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Warn(ctx, msg)
	}
}
