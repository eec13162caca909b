package notifications

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/buildmart-backend/internal/session"
	"github.com/angelmondragon/buildmart-backend/pkg/docstore"
	"github.com/angelmondragon/buildmart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/buildmart-backend/pkg/errors"
)

func newTestService(t *testing.T) (*service, docstore.Store) {
	t.Helper()
	n := 0
	store := docstore.NewMemory(docstore.WithKeyGen(func() string {
		n++
		return fmt.Sprintf("n%03d", n)
	}))
	svc, err := NewService(store, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	impl := svc.(*service)
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	impl.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return impl, store
}

func TestNotifyVendorNewOrder(t *testing.T) {
	t.Parallel()
	svc, store := newTestService(t)
	ctx := context.Background()

	svc.NotifyVendorNewOrder(ctx, "v1", "o1", 2, 350)

	var n Notification
	ok, err := docstore.GetInto(ctx, store, "Vendors/v1/Notifications/n001", &n)
	if err != nil || !ok {
		t.Fatalf("expected notification stored, ok=%v err=%v", ok, err)
	}
	if n.Type != enums.NotificationTypeNewOrder || n.OrderID != "o1" || n.Read {
		t.Fatalf("unexpected notification %+v", n)
	}
}

func TestListNewestFirstAndUnreadOnly(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()
	customer := "Goa/Panaji/1"

	svc.NotifyCustomerStatus(ctx, customer, "o1", "accepted")
	svc.NotifyCustomerStatus(ctx, customer, "o1", "out for delivery")

	sc := session.Customer(customer)
	items, err := svc.List(ctx, sc, ListParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || items[0].Status != "out for delivery" || items[0].ID != "n002" {
		t.Fatalf("unexpected list %+v", items)
	}

	if err := svc.MarkRead(ctx, sc, "n002"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := svc.MarkRead(ctx, sc, "n002"); err != nil {
		t.Fatalf("second mark read should be a no-op: %v", err)
	}
	unread, err := svc.List(ctx, sc, ListParams{UnreadOnly: true})
	if err != nil {
		t.Fatalf("list unread: %v", err)
	}
	if len(unread) != 1 || unread[0].ID != "n001" {
		t.Fatalf("unexpected unread list %+v", unread)
	}
}

func TestMarkReadMissing(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	err := svc.MarkRead(context.Background(), session.Vendor("v1"), "missing")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAdminHasNoInbox(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	_, err := svc.List(context.Background(), session.Admin("root"), ListParams{})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
