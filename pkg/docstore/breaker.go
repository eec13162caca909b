package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/buildmart-backend/pkg/logger"
	"github.com/sony/gobreaker"
)

// BreakerSettings configures the circuit breaker wrapped around a Store.
type BreakerSettings struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

// Breaker fails fast while the backing store keeps erroring.
type Breaker struct {
	next Store
	cb   *gobreaker.CircuitBreaker
}

func WithBreaker(next Store, settings BreakerSettings, logg *logger.Logger) *Breaker {
	if settings.Name == "" {
		settings.Name = "docstore"
	}
	minRequests := settings.MinRequests
	ratio := settings.FailureRatio
	st := gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && failureRatio >= ratio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logg == nil {
				return
			}
			ctx := logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			logg.Warn(ctx, "docstore.breaker_state_changed")
		},
		IsSuccessful: isBreakerSuccess,
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

// Caller mistakes and lost races say nothing about backend health.
func isBreakerSuccess(err error) bool {
	return err == nil ||
		errors.Is(err, ErrPreconditionFailed) ||
		errors.Is(err, ErrInvalidPath) ||
		errors.Is(err, ErrInvalidValue) ||
		errors.Is(err, ErrOverlappingPaths) ||
		errors.Is(err, context.Canceled)
}

// IsUnavailable reports whether err was produced by an open breaker.
func IsUnavailable(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// State exposes the breaker state for health reporting.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

func (b *Breaker) Get(ctx context.Context, path string) (any, bool, error) {
	type result struct {
		value any
		found bool
	}
	out, err := b.cb.Execute(func() (interface{}, error) {
		value, found, err := b.next.Get(ctx, path)
		return result{value: value, found: found}, err
	})
	if err != nil {
		return nil, false, err
	}
	res := out.(result)
	return res.value, res.found, nil
}

func (b *Breaker) Set(ctx context.Context, path string, value any) error {
	return b.run(func() error { return b.next.Set(ctx, path, value) })
}

func (b *Breaker) Update(ctx context.Context, path string, fields map[string]any) error {
	return b.run(func() error { return b.next.Update(ctx, path, fields) })
}

func (b *Breaker) Delete(ctx context.Context, path string) error {
	return b.run(func() error { return b.next.Delete(ctx, path) })
}

func (b *Breaker) Push(ctx context.Context, path string, value any) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Push(ctx, path, value)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (b *Breaker) Commit(ctx context.Context, batch *Batch) error {
	return b.run(func() error { return b.next.Commit(ctx, batch) })
}

// Subscribe is not guarded; the subscription re-reads through the inner store.
func (b *Breaker) Subscribe(ctx context.Context, path string) (<-chan Snapshot, func(), error) {
	return b.next.Subscribe(ctx, path)
}

func (b *Breaker) Ping(ctx context.Context) error {
	if p, ok := b.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (b *Breaker) run(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}
