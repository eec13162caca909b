package cron

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestNewRedisLockValidation(t *testing.T) {
	if _, err := NewRedisLock(nil, "bm:maintenance:lock", 0); err == nil {
		t.Fatal("expected error without client")
	}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	if _, err := NewRedisLock(client, "", 0); err == nil {
		t.Fatal("expected error without key")
	}
	lock, err := NewRedisLock(client, "bm:maintenance:lock", 0)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	if lock.ttl != defaultLockTTL {
		t.Fatalf("expected default ttl, got %s", lock.ttl)
	}
	// Releasing a lock this process never acquired touches nothing.
	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("release without owner: %v", err)
	}
}
