package orders

import (
	"context"
	"testing"
	"time"
)

func TestMemoryArmStoreExpires(t *testing.T) {
	store := NewMemoryArmStore().(*memoryArms)
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.Arm(ctx, "v1", "o1", "123456", time.Minute); err != nil {
		t.Fatalf("arm: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, ok, _ := store.Take(ctx, "v1", "o1"); ok {
		t.Fatal("expected expired token to be ignored")
	}

	_ = store.Arm(ctx, "v1", "o1", "654321", time.Minute)
	token, ok, err := store.Take(ctx, "v1", "o1")
	if err != nil || !ok || token != "654321" {
		t.Fatalf("unexpected take result %q %v %v", token, ok, err)
	}
	if _, ok, _ := store.Take(ctx, "v1", "o1"); ok {
		t.Fatal("token must be single use")
	}
}
