// Package docstore is a hierarchical, path addressed JSON document store with
// live subscriptions. Values written at a path become documents; paths below a
// document address fields inside it and paths above documents read as the
// assembled subtree.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrInvalidPath        = errors.New("docstore: invalid path")
	ErrInvalidValue       = errors.New("docstore: invalid value")
	ErrPreconditionFailed = errors.New("docstore: precondition failed")
	ErrOverlappingPaths   = errors.New("docstore: overlapping batch paths")
	ErrContention         = errors.New("docstore: transaction retries exhausted")
)

// Store is the full set of primitives the application uses.
type Store interface {
	// Get is a point read. The bool is false when nothing exists at path.
	Get(ctx context.Context, path string) (any, bool, error)
	// Set replaces whatever lives at path. A nil value deletes.
	Set(ctx context.Context, path string, value any) error
	// Update merges fields into path. Field names may be relative paths; nil deletes.
	Update(ctx context.Context, path string, fields map[string]any) error
	Delete(ctx context.Context, path string) error
	// Push stores value under a freshly generated, time ordered child key.
	Push(ctx context.Context, path string, value any) (string, error)
	// Commit applies every operation in the batch atomically, or none of them.
	Commit(ctx context.Context, batch *Batch) error
	// Subscribe emits the current value at path and again after every change
	// affecting it, until cancel is called or ctx ends.
	Subscribe(ctx context.Context, path string) (<-chan Snapshot, func(), error)
}

// Pinger is implemented by stores that can report backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Snapshot is one emission of a subscription.
type Snapshot struct {
	Path   string
	Value  any
	Exists bool
	Err    error
}

// Decode converts the snapshot value into dest.
func (s Snapshot) Decode(dest any) error {
	if s.Err != nil {
		return s.Err
	}
	return Decode(s.Value, dest)
}

// Decode converts a generic document value into dest via its JSON form.
func Decode(value any, dest any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// GetInto reads path and decodes it into dest. It reports false when path is empty.
func GetInto(ctx context.Context, s Store, path string, dest any) (bool, error) {
	value, ok, err := s.Get(ctx, path)
	if err != nil || !ok {
		return false, err
	}
	if err := Decode(value, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Updates builds a batch from a multi-path update map where nil values delete.
func Updates(values map[string]any) *Batch {
	b := NewBatch()
	for _, path := range sortedKeys(values) {
		if values[path] == nil {
			b.Delete(path)
			continue
		}
		b.Set(path, values[path])
	}
	return b
}
