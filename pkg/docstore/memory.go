package docstore

import (
	"context"
	"sort"
	"strings"
	"sync"
)

type memoryBackend struct {
	mu   sync.RWMutex
	docs map[string][]byte
	hub  *Hub
}

// NewMemory returns an in-process store. Used by tests and single node development.
func NewMemory(opts ...Option) *Engine {
	hub := NewHub()
	b := &memoryBackend{docs: map[string][]byte{}, hub: hub}
	return newEngine(b, hub, buildOptions(opts))
}

func (m *memoryBackend) view(_ context.Context, fn func(r reader) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(memoryReader{docs: m.docs})
}

func (m *memoryBackend) transact(_ context.Context, fn func(r reader) (map[string][]byte, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	writes, err := fn(memoryReader{docs: m.docs})
	if err != nil {
		return err
	}
	for path, raw := range writes {
		if raw == nil {
			delete(m.docs, path)
			continue
		}
		m.docs[path] = raw
	}
	return nil
}

func (m *memoryBackend) publish(_ context.Context, paths []string) error {
	m.hub.Notify(paths)
	return nil
}

func (m *memoryBackend) ping(context.Context) error { return nil }

func (m *memoryBackend) close() error { return nil }

type memoryReader struct {
	docs map[string][]byte
}

func (r memoryReader) getMany(_ context.Context, paths []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(paths))
	for _, p := range paths {
		if raw, ok := r.docs[p]; ok {
			out[p] = raw
		}
	}
	return out, nil
}

func (r memoryReader) scan(_ context.Context, prefix string) ([]entry, error) {
	var out []entry
	for p, raw := range r.docs {
		if strings.HasPrefix(p, prefix) {
			out = append(out, entry{path: p, raw: raw})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out, nil
}
