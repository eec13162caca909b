package products

import (
	"context"
	"fmt"
	"sort"

	"github.com/angelmondragon/buildmart-backend/internal/docpaths"
	"github.com/angelmondragon/buildmart-backend/pkg/docstore"
)

// Repository reads and writes catalog documents.
type Repository struct {
	store docstore.Store
}

func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

func (r *Repository) Create(ctx context.Context, product Product) (string, error) {
	product.ID = ""
	return r.store.Push(ctx, docpaths.Products(), product)
}

func (r *Repository) Get(ctx context.Context, id string) (*Product, error) {
	var product Product
	ok, err := docstore.GetInto(ctx, r.store, docpaths.Product(id), &product)
	if err != nil || !ok {
		return nil, err
	}
	product.ID = id
	return &product, nil
}

// UpdateOwned merges fields into the product only while it still belongs to vendorID.
func (r *Repository) UpdateOwned(ctx context.Context, id, vendorID string, fields map[string]any) error {
	path := docpaths.Product(id)
	batch := docstore.NewBatch().
		Require(docstore.Join(path, "vendorId"), vendorID).
		Update(path, fields)
	return r.store.Commit(ctx, batch)
}

func (r *Repository) DeleteOwned(ctx context.Context, id, vendorID string) error {
	path := docpaths.Product(id)
	batch := docstore.NewBatch().
		Require(docstore.Join(path, "vendorId"), vendorID).
		Delete(path)
	return r.store.Commit(ctx, batch)
}

// List returns every product ordered newest first.
func (r *Repository) List(ctx context.Context) ([]Product, error) {
	var byID map[string]Product
	ok, err := docstore.GetInto(ctx, r.store, docpaths.Products(), &byID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if !ok {
		return []Product{}, nil
	}
	out := make([]Product, 0, len(byID))
	for id, product := range byID {
		product.ID = id
		out = append(out, product)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
