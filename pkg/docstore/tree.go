package docstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// normalize converts value into its generic JSON form and prunes empty maps.
// The result is nil when nothing would be stored.
func normalize(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	if err := validateKeys(generic); err != nil {
		return nil, err
	}
	return prune(generic), nil
}

func normalizeFields(fields map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		rel, err := Clean(key)
		if err != nil {
			return nil, err
		}
		if out[rel], err = normalize(value); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func validateKeys(value any) error {
	switch typed := value.(type) {
	case map[string]any:
		for key, child := range typed {
			if err := validateSegment(key); err != nil {
				return fmt.Errorf("%w: key %v", ErrInvalidValue, err)
			}
			if err := validateKeys(child); err != nil {
				return err
			}
		}
	case []any:
		for _, child := range typed {
			if err := validateKeys(child); err != nil {
				return err
			}
		}
	}
	return nil
}

// prune drops nil entries and empty maps, returning nil when nothing is left.
func prune(value any) any {
	m, ok := value.(map[string]any)
	if !ok {
		return value
	}
	for key, child := range m {
		child = prune(child)
		if child == nil {
			delete(m, key)
			continue
		}
		m[key] = child
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

func lookup(node any, rel []string) (any, bool) {
	for _, seg := range rel {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		if node, ok = m[seg]; !ok {
			return nil, false
		}
	}
	return node, node != nil
}

// setIn writes value at rel below node and returns the new node. A nil value
// removes the entry.
func setIn(node any, rel []string, value any) any {
	if len(rel) == 0 {
		return value
	}
	m, ok := node.(map[string]any)
	if !ok {
		if value == nil {
			return node
		}
		m = map[string]any{}
	}
	child := setIn(m[rel[0]], rel[1:], value)
	if child == nil {
		delete(m, rel[0])
	} else {
		m[rel[0]] = child
	}
	return m
}

// expand turns relative field paths into a nested value.
func expand(fields map[string]any) any {
	var root any = map[string]any{}
	for _, key := range sortedKeys(fields) {
		root = setIn(root, Split(key), fields[key])
	}
	return prune(root)
}

func encode(value any) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return raw, nil
}

func decode(raw []byte) (any, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("decode stored document: %w", err)
	}
	return value, nil
}

func equalValues(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// assemble builds the nested value for a subtree from the documents below root.
func assemble(root string, entries []entry) (any, error) {
	var tree any = map[string]any{}
	for _, e := range entries {
		value, err := decode(e.raw)
		if err != nil {
			return nil, err
		}
		rel := Split(strings.TrimPrefix(e.path, root+"/"))
		tree = setIn(tree, rel, value)
	}
	return prune(tree), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
