package docstore

import "sync"

// Hub fans change notifications out to subscribers whose path is related to a
// changed path. Signals coalesce: a slow subscriber re-reads once for any number
// of changes.
type Hub struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[uint64]*listener
}

type listener struct {
	path   string
	signal chan struct{}
}

func NewHub() *Hub {
	return &Hub{listeners: map[uint64]*listener{}}
}

// Notify wakes every listener related to one of paths.
func (h *Hub) Notify(paths []string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, l := range h.listeners {
		for _, p := range paths {
			if !related(l.path, p) {
				continue
			}
			select {
			case l.signal <- struct{}{}:
			default:
			}
			break
		}
	}
}

// Len reports the number of active listeners.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

func (h *Hub) listen(path string) (<-chan struct{}, func()) {
	l := &listener{path: path, signal: make(chan struct{}, 1)}
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.listeners[id] = l
	h.mu.Unlock()

	var once sync.Once
	return l.signal, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
}
