package docstore

import (
	"context"
	"time"
)

// Observer records the outcome of store operations.
type Observer interface {
	ObserveOperation(op string, elapsed time.Duration, err error)
}

// Instrumented reports every operation of the wrapped store to an Observer.
type Instrumented struct {
	next Store
	obs  Observer
}

func WithObserver(next Store, obs Observer) Store {
	if obs == nil {
		return next
	}
	return &Instrumented{next: next, obs: obs}
}

func (s *Instrumented) observe(op string, start time.Time, err error) {
	s.obs.ObserveOperation(op, time.Since(start), err)
}

func (s *Instrumented) Get(ctx context.Context, path string) (value any, found bool, err error) {
	defer func(start time.Time) { s.observe("get", start, err) }(time.Now())
	return s.next.Get(ctx, path)
}

func (s *Instrumented) Set(ctx context.Context, path string, value any) (err error) {
	defer func(start time.Time) { s.observe("set", start, err) }(time.Now())
	return s.next.Set(ctx, path, value)
}

func (s *Instrumented) Update(ctx context.Context, path string, fields map[string]any) (err error) {
	defer func(start time.Time) { s.observe("update", start, err) }(time.Now())
	return s.next.Update(ctx, path, fields)
}

func (s *Instrumented) Delete(ctx context.Context, path string) (err error) {
	defer func(start time.Time) { s.observe("delete", start, err) }(time.Now())
	return s.next.Delete(ctx, path)
}

func (s *Instrumented) Push(ctx context.Context, path string, value any) (key string, err error) {
	defer func(start time.Time) { s.observe("push", start, err) }(time.Now())
	return s.next.Push(ctx, path, value)
}

func (s *Instrumented) Commit(ctx context.Context, batch *Batch) (err error) {
	defer func(start time.Time) { s.observe("commit", start, err) }(time.Now())
	return s.next.Commit(ctx, batch)
}

func (s *Instrumented) Subscribe(ctx context.Context, path string) (ch <-chan Snapshot, cancel func(), err error) {
	defer func(start time.Time) { s.observe("subscribe", start, err) }(time.Now())
	return s.next.Subscribe(ctx, path)
}

func (s *Instrumented) Ping(ctx context.Context) error {
	if p, ok := s.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
