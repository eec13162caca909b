package products

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/buildmart-backend/internal/session"
	"github.com/angelmondragon/buildmart-backend/pkg/docstore"
	pkgerrors "github.com/angelmondragon/buildmart-backend/pkg/errors"
	"github.com/angelmondragon/buildmart-backend/pkg/pagination"
)

// Service manages the vendor catalog.
type Service interface {
	Create(ctx context.Context, sc session.Context, input CreateInput) (*Product, error)
	Update(ctx context.Context, sc session.Context, id string, input UpdateInput) (*Product, error)
	Delete(ctx context.Context, sc session.Context, id string) error
	Get(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context, params ListParams) (*ProductList, error)
}

type CreateInput struct {
	Name        string
	Category    string
	Description string
	Price       float64
	MRP         *float64
	Unit        string
	Quantity    *float64
	Images      []string
	Variants    []Variant
	InStock     *bool
}

// UpdateInput carries optional field changes; nil fields are left untouched.
type UpdateInput struct {
	Name        *string
	Category    *string
	Description *string
	Price       *float64
	MRP         *float64
	Unit        *string
	Quantity    *float64
	Images      []string
	Variants    []Variant
	InStock     *bool
}

type ListParams struct {
	Category string
	VendorID string
	pagination.Params
}

// ProductList is one catalog page. NextCursor is empty on the last page.
type ProductList struct {
	Items      []Product `json:"items"`
	NextCursor string    `json:"nextCursor,omitempty"`
}

type vendorNames interface {
	VendorName(ctx context.Context, vendorID string) (string, error)
}

type service struct {
	repo    *Repository
	vendors vendorNames
	now     func() time.Time
}

func NewService(repo *Repository, vendors vendorNames) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if vendors == nil {
		return nil, fmt.Errorf("vendor name lookup required")
	}
	return &service{repo: repo, vendors: vendors, now: time.Now}, nil
}

func (s *service) Create(ctx context.Context, sc session.Context, input CreateInput) (*Product, error) {
	vendorID, err := sc.RequireVendor()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.Category) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name and category are required")
	}
	if err := validatePricing(input.Price, input.MRP, input.Variants); err != nil {
		return nil, err
	}
	vendorName, err := s.vendors.VendorName(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor profile")
	}

	now := s.now().UTC()
	inStock := true
	if input.InStock != nil {
		inStock = *input.InStock
	}
	product := Product{
		Name:        strings.TrimSpace(input.Name),
		Category:    strings.TrimSpace(input.Category),
		Description: input.Description,
		Price:       input.Price,
		MRP:         input.MRP,
		Unit:        input.Unit,
		Quantity:    input.Quantity,
		Images:      input.Images,
		Variants:    input.Variants,
		VendorID:    vendorID,
		VendorName:  vendorName,
		InStock:     inStock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	id, err := s.repo.Create(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	product.ID = id
	return &product, nil
}

func (s *service) Update(ctx context.Context, sc session.Context, id string, input UpdateInput) (*Product, error) {
	vendorID, err := sc.RequireVendor()
	if err != nil {
		return nil, err
	}
	existing, err := s.owned(ctx, id, vendorID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{"updatedAt": s.now().UTC()}
	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		fields["name"] = strings.TrimSpace(*input.Name)
	}
	if input.Category != nil {
		fields["category"] = strings.TrimSpace(*input.Category)
	}
	if input.Description != nil {
		fields["description"] = *input.Description
	}
	price := existing.Price
	if input.Price != nil {
		price = *input.Price
		fields["price"] = price
	}
	mrp := existing.MRP
	if input.MRP != nil {
		mrp = input.MRP
		fields["mrp"] = *input.MRP
	}
	if input.Unit != nil {
		fields["unit"] = *input.Unit
	}
	if input.Quantity != nil {
		fields["quantity"] = *input.Quantity
	}
	if input.Images != nil {
		fields["images"] = input.Images
	}
	variants := existing.Variants
	if input.Variants != nil {
		variants = input.Variants
		fields["variants"] = input.Variants
	}
	if input.InStock != nil {
		fields["inStock"] = *input.InStock
	}
	if err := validatePricing(price, mrp, variants); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateOwned(ctx, id, vendorID, fields); err != nil {
		return nil, mapWriteError(err, "update product")
	}
	return s.Get(ctx, id)
}

func (s *service) Delete(ctx context.Context, sc session.Context, id string) error {
	vendorID, err := sc.RequireVendor()
	if err != nil {
		return err
	}
	if _, err := s.owned(ctx, id, vendorID); err != nil {
		return err
	}
	if err := s.repo.DeleteOwned(ctx, id, vendorID); err != nil {
		return mapWriteError(err, "delete product")
	}
	return nil
}

func (s *service) Get(ctx context.Context, id string) (*Product, error) {
	if !docstore.ValidSegment(id) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid product id")
	}
	product, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ProductList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	category := strings.TrimSpace(params.Category)
	out := make([]Product, 0, limit)
	more := false
	for _, product := range all {
		if category != "" && !strings.EqualFold(product.Category, category) {
			continue
		}
		if params.VendorID != "" && product.VendorID != params.VendorID {
			continue
		}
		if cursor != nil && !cursor.After(product.CreatedAt, product.ID) {
			continue
		}
		if len(out) == limit {
			more = true
			break
		}
		out = append(out, product)
	}
	list := &ProductList{Items: out}
	if more {
		last := out[len(out)-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return list, nil
}

func (s *service) owned(ctx context.Context, id, vendorID string) (*Product, error) {
	product, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.VendorID != vendorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "product belongs to another vendor")
	}
	return product, nil
}

func validatePricing(price float64, mrp *float64, variants []Variant) error {
	if price <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if mrp != nil && *mrp < price {
		return pkgerrors.New(pkgerrors.CodeValidation, "mrp cannot be below price")
	}
	for i, v := range variants {
		if strings.TrimSpace(v.Details) == "" || v.Price <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("variant %d needs details and a positive price", i))
		}
		if v.MRP != nil && *v.MRP < v.Price {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("variant %d mrp cannot be below price", i))
		}
	}
	return nil
}

func mapWriteError(err error, msg string) error {
	if errors.Is(err, docstore.ErrPreconditionFailed) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "product changed owner or was removed")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
