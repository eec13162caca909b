package orders

import (
	"context"
	"errors"
	"sync"
	"time"

	redisclient "github.com/angelmondragon/buildmart-backend/pkg/redis"
	"github.com/redis/go-redis/v9"
)

// ArmStore holds delivery confirmation tokens between the arm and confirm steps.
type ArmStore interface {
	Arm(ctx context.Context, vendorID, orderID, token string, ttl time.Duration) error
	// Take returns and removes the armed token. ok is false when nothing is armed.
	Take(ctx context.Context, vendorID, orderID string) (token string, ok bool, err error)
	Disarm(ctx context.Context, vendorID, orderID string) error
}

type redisArms struct {
	client *redisclient.Client
}

// NewRedisArmStore keeps tokens in redis so any API instance can confirm.
func NewRedisArmStore(client *redisclient.Client) ArmStore {
	return &redisArms{client: client}
}

func (r *redisArms) Arm(ctx context.Context, vendorID, orderID, token string, ttl time.Duration) error {
	return r.client.ArmDelivery(ctx, vendorID, orderID, token, ttl)
}

func (r *redisArms) Take(ctx context.Context, vendorID, orderID string) (string, bool, error) {
	token, err := r.client.TakeDeliveryToken(ctx, vendorID, orderID)
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}

func (r *redisArms) Disarm(ctx context.Context, vendorID, orderID string) error {
	return r.client.DisarmDelivery(ctx, vendorID, orderID)
}

type armed struct {
	token     string
	expiresAt time.Time
}

type memoryArms struct {
	mu    sync.Mutex
	now   func() time.Time
	items map[string]armed
}

// NewMemoryArmStore is the single-process fallback used without redis.
func NewMemoryArmStore() ArmStore {
	return &memoryArms{now: time.Now, items: map[string]armed{}}
}

func (m *memoryArms) Arm(ctx context.Context, vendorID, orderID, token string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[vendorID+"/"+orderID] = armed{token: token, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *memoryArms) Take(ctx context.Context, vendorID, orderID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := vendorID + "/" + orderID
	item, ok := m.items[key]
	delete(m.items, key)
	if !ok || !m.now().Before(item.expiresAt) {
		return "", false, nil
	}
	return item.token, true, nil
}

func (m *memoryArms) Disarm(ctx context.Context, vendorID, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, vendorID+"/"+orderID)
	return nil
}
