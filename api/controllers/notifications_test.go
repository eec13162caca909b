package controllers

import (
	"context"
	"net/http"
	"testing"

	"github.com/angelmondragon/buildmart-backend/internal/notifications"
	"github.com/angelmondragon/buildmart-backend/internal/session"
	"github.com/angelmondragon/buildmart-backend/pkg/docstore"
)

func TestNotificationsListAndMarkRead(t *testing.T) {
	svc, err := notifications.NewService(docstore.NewMemory(), nil)
	if err != nil {
		t.Fatalf("notifications service: %v", err)
	}
	sc := session.Customer(testCustomer)
	svc.NotifyCustomerStatus(context.Background(), testCustomer, testOrder, "accepted")

	resp := serve(ListNotifications(svc, nil), withSession(newRequest(t, http.MethodGet, "/api/v1/notifications?unreadOnly=true", nil), sc))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	list := decodeData[[]notifications.Notification](t, resp)
	if len(list) != 1 || list[0].OrderID != testOrder {
		t.Fatalf("unexpected notifications %+v", list)
	}

	req := withParams(withSession(newRequest(t, http.MethodPost, "/", nil), sc), map[string]string{"notificationId": list[0].ID})
	if resp := serve(MarkNotificationRead(svc, nil), req); resp.Code != http.StatusOK {
		t.Fatalf("mark read: expected 200 got %d", resp.Code)
	}

	resp = serve(ListNotifications(svc, nil), withSession(newRequest(t, http.MethodGet, "/api/v1/notifications?unreadOnly=true", nil), sc))
	if list := decodeData[[]notifications.Notification](t, resp); len(list) != 0 {
		t.Fatalf("expected no unread notifications, got %d", len(list))
	}
}

func TestNotificationsQueryValidation(t *testing.T) {
	svc, err := notifications.NewService(docstore.NewMemory(), nil)
	if err != nil {
		t.Fatalf("notifications service: %v", err)
	}
	sc := session.Vendor(testVendor)
	for _, target := range []string{"/api/v1/notifications?unreadOnly=maybe", "/api/v1/notifications?limit=500"} {
		resp := serve(ListNotifications(svc, nil), withSession(newRequest(t, http.MethodGet, target, nil), sc))
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", target, resp.Code)
		}
	}

	req := withParams(withSession(newRequest(t, http.MethodPost, "/", nil), sc), map[string]string{"notificationId": "missing"})
	if resp := serve(MarkNotificationRead(svc, nil), req); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
