package docstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/angelmondragon/buildmart-backend/pkg/logger"
)

type entry struct {
	path string
	raw  []byte
}

type reader interface {
	// getMany returns the stored documents found among paths.
	getMany(ctx context.Context, paths []string) (map[string][]byte, error)
	// scan returns every document whose path starts with prefix, ordered by path.
	scan(ctx context.Context, prefix string) ([]entry, error)
}

type backend interface {
	view(ctx context.Context, fn func(r reader) error) error
	// transact runs fn and applies the returned writes atomically. A nil value
	// deletes the document. fn may run more than once.
	transact(ctx context.Context, fn func(r reader) (map[string][]byte, error)) error
	publish(ctx context.Context, paths []string) error
	ping(ctx context.Context) error
	close() error
}

// Option customises an Engine.
type Option func(*options)

type options struct {
	keys       KeyGen
	maxRetries int
	logg       *logger.Logger
}

func WithKeyGen(keys KeyGen) Option {
	return func(o *options) {
		if keys != nil {
			o.keys = keys
		}
	}
}

// WithMaxRetries bounds optimistic transaction retries on backends that use them.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxRetries = n
		}
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(o *options) { o.logg = logg }
}

func buildOptions(opts []Option) options {
	o := options{keys: NewKey, maxRetries: 8}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Engine implements Store on top of a flat document backend.
type Engine struct {
	backend backend
	hub     *Hub
	opts    options
}

func newEngine(b backend, hub *Hub, opts options) *Engine {
	return &Engine{backend: b, hub: hub, opts: opts}
}

func (e *Engine) Get(ctx context.Context, path string) (any, bool, error) {
	p, err := Clean(path)
	if err != nil {
		return nil, false, err
	}
	var (
		value any
		found bool
	)
	err = e.backend.view(ctx, func(r reader) error {
		var readErr error
		value, found, readErr = readPath(ctx, r, p)
		return readErr
	})
	if err != nil {
		return nil, false, err
	}
	return value, found, nil
}

func (e *Engine) Set(ctx context.Context, path string, value any) error {
	return e.Commit(ctx, NewBatch().Set(path, value))
}

func (e *Engine) Delete(ctx context.Context, path string) error {
	return e.Commit(ctx, NewBatch().Delete(path))
}

func (e *Engine) Update(ctx context.Context, path string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return e.Commit(ctx, NewBatch().Update(path, fields))
}

func (e *Engine) Push(ctx context.Context, path string, value any) (string, error) {
	key := e.opts.keys()
	if !ValidSegment(key) {
		return "", fmt.Errorf("%w: generated key %q", ErrInvalidPath, key)
	}
	if err := e.Set(ctx, Join(path, key), value); err != nil {
		return "", err
	}
	return key, nil
}

func (e *Engine) Commit(ctx context.Context, batch *Batch) error {
	if batch == nil || (len(batch.ops) == 0 && len(batch.guards) == 0) {
		return nil
	}
	prepared, err := batch.prepare()
	if err != nil {
		return err
	}

	var changed []string
	err = e.backend.transact(ctx, func(r reader) (map[string][]byte, error) {
		st := newStage(r)
		for _, g := range prepared.guards {
			current, _, err := readPath(ctx, st, g.path)
			if err != nil {
				return nil, err
			}
			if !equalValues(current, g.expected) {
				return nil, fmt.Errorf("%w: %s", ErrPreconditionFailed, g.path)
			}
		}
		for _, op := range prepared.ops {
			var err error
			switch op.kind {
			case opSet:
				err = writePath(ctx, st, op.path, op.value)
			case opUpdate:
				err = updatePath(ctx, st, op.path, op.fields)
			}
			if err != nil {
				return nil, err
			}
		}
		changed = st.changedPaths()
		return st.pending, nil
	})
	if err != nil {
		return err
	}

	if len(changed) > 0 {
		if err := e.backend.publish(context.WithoutCancel(ctx), changed); err != nil && e.opts.logg != nil {
			e.opts.logg.Error(ctx, "docstore.publish_failed", err)
		}
	}
	return nil
}

// Subscribe registers interest before the first read so no change between the
// initial snapshot and the listener is lost. Identical consecutive values are
// not re-emitted.
func (e *Engine) Subscribe(ctx context.Context, path string) (<-chan Snapshot, func(), error) {
	p, err := Clean(path)
	if err != nil {
		return nil, nil, err
	}
	signal, unlisten := e.hub.listen(p)
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan Snapshot, 1)

	go func() {
		defer close(out)
		defer unlisten()

		var (
			last    Snapshot
			emitted bool
		)
		emit := func() bool {
			value, found, err := e.Get(ctx, p)
			if err != nil && ctx.Err() != nil {
				return false
			}
			snap := Snapshot{Path: p, Value: value, Exists: found, Err: err}
			if emitted && err == nil && last.Err == nil && last.Exists == snap.Exists && equalValues(last.Value, snap.Value) {
				return true
			}
			select {
			case out <- snap:
				last, emitted = snap, true
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-signal:
				if !emit() {
					return
				}
			}
		}
	}()

	return out, cancel, nil
}

func (e *Engine) Ping(ctx context.Context) error {
	return e.backend.ping(ctx)
}

func (e *Engine) Close() error {
	return e.backend.close()
}

func readPath(ctx context.Context, r reader, p string) (any, bool, error) {
	chain := lineage(p)
	found, err := r.getMany(ctx, chain)
	if err != nil {
		return nil, false, err
	}
	segs := Split(p)
	for i, candidate := range chain {
		raw, ok := found[candidate]
		if !ok {
			continue
		}
		doc, err := decode(raw)
		if err != nil {
			return nil, false, err
		}
		value, ok := lookup(doc, segs[i+1:])
		return value, ok, nil
	}

	entries, err := r.scan(ctx, p+"/")
	if err != nil {
		return nil, false, err
	}
	if len(entries) == 0 {
		return nil, false, nil
	}
	tree, err := assemble(p, entries)
	if err != nil {
		return nil, false, err
	}
	return tree, tree != nil, nil
}

// writePath stores value at p. When a strict ancestor is a document the value
// becomes a field of it; otherwise p and its subtree are replaced.
func writePath(ctx context.Context, st *stage, p string, value any) error {
	chain := lineage(p)
	ancestors := chain[:len(chain)-1]
	if len(ancestors) > 0 {
		found, err := st.getMany(ctx, ancestors)
		if err != nil {
			return err
		}
		segs := Split(p)
		for i, ancestor := range ancestors {
			raw, ok := found[ancestor]
			if !ok {
				continue
			}
			doc, err := decode(raw)
			if err != nil {
				return err
			}
			doc = prune(setIn(doc, segs[i+1:], value))
			return st.set(ancestor, doc)
		}
	}

	below, err := st.scan(ctx, p+"/")
	if err != nil {
		return err
	}
	for _, e := range below {
		st.del(e.path)
	}
	return st.set(p, value)
}

func updatePath(ctx context.Context, st *stage, p string, fields map[string]any) error {
	current, found, err := readPath(ctx, st, p)
	if err != nil {
		return err
	}
	if !found || current == nil {
		return writePath(ctx, st, p, expand(fields))
	}
	for _, rel := range sortedKeys(fields) {
		if err := writePath(ctx, st, p+"/"+rel, fields[rel]); err != nil {
			return err
		}
	}
	return nil
}

// stage overlays pending writes on a reader so later operations in a batch
// observe earlier ones.
type stage struct {
	base    reader
	pending map[string][]byte
}

func newStage(base reader) *stage {
	return &stage{base: base, pending: map[string][]byte{}}
}

func (s *stage) set(p string, value any) error {
	if value == nil {
		s.del(p)
		return nil
	}
	raw, err := encode(value)
	if err != nil {
		return err
	}
	s.pending[p] = raw
	return nil
}

func (s *stage) del(p string) {
	s.pending[p] = nil
}

func (s *stage) changedPaths() []string {
	return sortedKeys(s.pending)
}

func (s *stage) getMany(ctx context.Context, paths []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(paths))
	missing := make([]string, 0, len(paths))
	for _, p := range paths {
		if raw, ok := s.pending[p]; ok {
			if raw != nil {
				out[p] = raw
			}
			continue
		}
		missing = append(missing, p)
	}
	if len(missing) == 0 {
		return out, nil
	}
	base, err := s.base.getMany(ctx, missing)
	if err != nil {
		return nil, err
	}
	for p, raw := range base {
		out[p] = raw
	}
	return out, nil
}

func (s *stage) scan(ctx context.Context, prefix string) ([]entry, error) {
	base, err := s.base.scan(ctx, prefix)
	if err != nil {
		return nil, err
	}
	merged := make(map[string][]byte, len(base))
	for _, e := range base {
		merged[e.path] = e.raw
	}
	for p, raw := range s.pending {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		if raw == nil {
			delete(merged, p)
			continue
		}
		merged[p] = raw
	}
	out := make([]entry, 0, len(merged))
	for p, raw := range merged {
		out = append(out, entry{path: p, raw: raw})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out, nil
}
