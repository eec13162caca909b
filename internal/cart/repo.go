package cart

import (
	"context"
	"sort"

	"github.com/angelmondragon/buildmart-backend/internal/docpaths"
	"github.com/angelmondragon/buildmart-backend/pkg/docstore"
)

// Line pairs a cart item with its store key.
type Line struct {
	Key string `json:"key"`
	Item
}

// Repository reads and writes one customer's cart subtree.
type Repository struct {
	store docstore.Store
}

func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

func (r *Repository) Add(ctx context.Context, customerID string, item Item) (string, error) {
	return r.store.Push(ctx, docpaths.Cart(customerID), item)
}

func (r *Repository) Get(ctx context.Context, customerID, key string) (*Item, error) {
	var item Item
	ok, err := docstore.GetInto(ctx, r.store, docpaths.CartItem(customerID, key), &item)
	if err != nil || !ok {
		return nil, err
	}
	return &item, nil
}

// SetQuantity updates noOfItems only while the line still holds productID, so
// a line removed concurrently is never recreated as a bare quantity.
func (r *Repository) SetQuantity(ctx context.Context, customerID, key, productID string, n int) error {
	path := docpaths.CartItem(customerID, key)
	batch := docstore.NewBatch().
		Require(docstore.Join(path, "productId"), productID).
		Update(path, map[string]any{"noOfItems": n})
	return r.store.Commit(ctx, batch)
}

func (r *Repository) Remove(ctx context.Context, customerID, key string) error {
	return r.store.Delete(ctx, docpaths.CartItem(customerID, key))
}

// Clear deletes the whole cart subtree.
func (r *Repository) Clear(ctx context.Context, customerID string) error {
	return r.store.Delete(ctx, docpaths.Cart(customerID))
}

// Lines reads the cart with a point read and returns lines in key order.
func (r *Repository) Lines(ctx context.Context, customerID string) ([]Line, error) {
	value, ok, err := r.store.Get(ctx, docpaths.Cart(customerID))
	if err != nil || !ok {
		return nil, err
	}
	return decodeLines(value)
}

func decodeLines(value any) ([]Line, error) {
	if value == nil {
		return nil, nil
	}
	var byKey map[string]Item
	if err := docstore.Decode(value, &byKey); err != nil {
		return nil, err
	}
	lines := make([]Line, 0, len(byKey))
	for key, item := range byKey {
		lines = append(lines, Line{Key: key, Item: item})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Key < lines[j].Key })
	return lines, nil
}

// Items strips the keys from lines.
func Items(lines []Line) []Item {
	out := make([]Item, len(lines))
	for i, line := range lines {
		out[i] = line.Item
	}
	return out
}
