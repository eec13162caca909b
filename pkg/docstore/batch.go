package docstore

import "fmt"

type opKind int

const (
	opSet opKind = iota
	opUpdate
)

type operation struct {
	kind   opKind
	path   string
	value  any
	fields map[string]any
}

type guard struct {
	path     string
	expected any
}

// Batch groups writes that must land together. Requirements are checked inside
// the same transaction before any write is applied.
type Batch struct {
	ops    []operation
	guards []guard
}

func NewBatch() *Batch {
	return &Batch{}
}

// Set replaces the value at path.
func (b *Batch) Set(path string, value any) *Batch {
	b.ops = append(b.ops, operation{kind: opSet, path: path, value: value})
	return b
}

// Delete removes path and everything below it.
func (b *Batch) Delete(path string) *Batch {
	return b.Set(path, nil)
}

// Update merges fields into path.
func (b *Batch) Update(path string, fields map[string]any) *Batch {
	b.ops = append(b.ops, operation{kind: opUpdate, path: path, fields: fields})
	return b
}

// Require makes the batch fail with ErrPreconditionFailed unless the value at
// path equals expected. A nil expected value requires path to be absent.
func (b *Batch) Require(path string, expected any) *Batch {
	b.guards = append(b.guards, guard{path: path, expected: expected})
	return b
}

// Len returns the number of write operations.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.ops)
}

// Paths lists the write targets in insertion order.
func (b *Batch) Paths() []string {
	if b == nil {
		return nil
	}
	out := make([]string, 0, len(b.ops))
	for _, op := range b.ops {
		out = append(out, op.path)
	}
	return out
}

func (b *Batch) prepare() (*Batch, error) {
	out := &Batch{
		ops:    make([]operation, 0, len(b.ops)),
		guards: make([]guard, 0, len(b.guards)),
	}
	for _, op := range b.ops {
		path, err := Clean(op.path)
		if err != nil {
			return nil, err
		}
		prepared := operation{kind: op.kind, path: path}
		switch op.kind {
		case opSet:
			if prepared.value, err = normalize(op.value); err != nil {
				return nil, err
			}
		case opUpdate:
			if prepared.fields, err = normalizeFields(op.fields); err != nil {
				return nil, err
			}
		}
		out.ops = append(out.ops, prepared)
	}
	for i := range out.ops {
		for j := i + 1; j < len(out.ops); j++ {
			if related(out.ops[i].path, out.ops[j].path) {
				return nil, fmt.Errorf("%w: %q and %q", ErrOverlappingPaths, out.ops[i].path, out.ops[j].path)
			}
		}
	}
	for _, g := range b.guards {
		path, err := Clean(g.path)
		if err != nil {
			return nil, err
		}
		expected, err := normalize(g.expected)
		if err != nil {
			return nil, err
		}
		out.guards = append(out.guards, guard{path: path, expected: expected})
	}
	return out, nil
}
