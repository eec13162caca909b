package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/buildmart-backend/internal/docpaths"
	"github.com/angelmondragon/buildmart-backend/internal/products"
	"github.com/angelmondragon/buildmart-backend/internal/session"
	"github.com/angelmondragon/buildmart-backend/pkg/docstore"
	pkgerrors "github.com/angelmondragon/buildmart-backend/pkg/errors"
	"github.com/angelmondragon/buildmart-backend/pkg/logger"
)

type productLoader interface {
	Get(ctx context.Context, id string) (*products.Product, error)
}

// View is the cart as shown to the customer.
type View struct {
	Items   []Line `json:"items"`
	Count   int    `json:"count"`
	Total   string `json:"total"`
	Savings string `json:"savings"`
	Error   string `json:"error,omitempty"`
}

// AddProductInput selects a catalog product (and optional variant) to add.
type AddProductInput struct {
	ProductID    string
	VariantIndex *int
	NoOfItems    int
}

// Service exposes cart operations for one customer at a time.
type Service interface {
	AddItem(ctx context.Context, sc session.Context, item Item) (*Line, error)
	AddProduct(ctx context.Context, sc session.Context, input AddProductInput) (*Line, error)
	UpdateQuantity(ctx context.Context, sc session.Context, key string, n int) error
	RemoveItem(ctx context.Context, sc session.Context, key string) error
	Get(ctx context.Context, sc session.Context) (*View, error)
	Watch(ctx context.Context, sc session.Context) (<-chan View, func(), error)
}

type service struct {
	repo     *Repository
	store    docstore.Store
	products productLoader
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds a cart service backed by the document store.
func NewService(store docstore.Store, productLoader productLoader, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("document store required")
	}
	if productLoader == nil {
		return nil, fmt.Errorf("product loader required")
	}
	return &service{
		repo:     NewRepository(store),
		store:    store,
		products: productLoader,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// AddItem always inserts a new line; identical products are not merged.
func (s *service) AddItem(ctx context.Context, sc session.Context, item Item) (*Line, error) {
	customerID, err := sc.RequireCustomer()
	if err != nil {
		return nil, err
	}
	if err := validateItem(item); err != nil {
		return nil, err
	}
	if item.NoOfItems == nil {
		one := MinLineQuantity
		item.NoOfItems = &one
	}
	item.AddedAt = s.now().UTC()

	key, err := s.repo.Add(ctx, customerID, item)
	if err != nil {
		s.logError(ctx, "cart.add_failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add cart item")
	}
	return &Line{Key: key, Item: item}, nil
}

// AddProduct denormalizes the catalog product into a new cart line.
func (s *service) AddProduct(ctx context.Context, sc session.Context, input AddProductInput) (*Line, error) {
	if _, err := sc.RequireCustomer(); err != nil {
		return nil, err
	}
	product, err := s.products.Get(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.InStock {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "product is out of stock")
	}
	price, mrp, details, ok := product.PriceFor(input.VariantIndex)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant not found")
	}
	n := input.NoOfItems
	if n == 0 {
		n = MinLineQuantity
	}

	item := Item{
		ProductID:      product.ID,
		ProductName:    product.Name,
		VendorID:       product.VendorID,
		VendorName:     product.VendorName,
		Category:       product.Category,
		VariantIndex:   input.VariantIndex,
		VariantDetails: details,
		Image:          product.PrimaryImage(),
		Price:          price,
		MRP:            mrp,
		OriginalPrice:  mrp,
		NoOfItems:      &n,
		Quantity:       product.Quantity,
		Unit:           product.Unit,
	}
	return s.AddItem(ctx, sc, item)
}

// UpdateQuantity ignores values outside [1, 999] without error or write.
func (s *service) UpdateQuantity(ctx context.Context, sc session.Context, key string, n int) error {
	customerID, err := sc.RequireCustomer()
	if err != nil {
		return err
	}
	if n < MinLineQuantity || n > MaxLineQuantity {
		return nil
	}
	if !docstore.ValidSegment(key) {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid cart item key")
	}
	existing, err := s.repo.Get(ctx, customerID, key)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}
	if existing == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	if err := s.repo.SetQuantity(ctx, customerID, key, existing.ProductID, n); err != nil {
		if errors.Is(err, docstore.ErrPreconditionFailed) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		s.logError(ctx, "cart.update_quantity_failed", err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart quantity")
	}
	return nil
}

func (s *service) RemoveItem(ctx context.Context, sc session.Context, key string) error {
	customerID, err := sc.RequireCustomer()
	if err != nil {
		return err
	}
	if !docstore.ValidSegment(key) {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid cart item key")
	}
	if err := s.repo.Remove(ctx, customerID, key); err != nil {
		s.logError(ctx, "cart.remove_failed", err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
	}
	return nil
}

func (s *service) Get(ctx context.Context, sc session.Context) (*View, error) {
	customerID, err := sc.RequireCustomer()
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.Lines(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	view := buildView(lines)
	return &view, nil
}

// Watch streams a fresh view after every change to the cart subtree.
func (s *service) Watch(ctx context.Context, sc session.Context) (<-chan View, func(), error) {
	customerID, err := sc.RequireCustomer()
	if err != nil {
		return nil, nil, err
	}
	return docstore.Watch(ctx, s.store, docpaths.Cart(customerID), func(snap docstore.Snapshot) View {
		if snap.Err != nil {
			return View{Items: []Line{}, Total: "0.00", Savings: "0.00", Error: "cart unavailable"}
		}
		lines, err := decodeLines(snap.Value)
		if err != nil {
			s.logError(ctx, "cart.decode_failed", err)
			return View{Items: []Line{}, Total: "0.00", Savings: "0.00", Error: "cart unavailable"}
		}
		return buildView(lines)
	})
}

func (s *service) logError(ctx context.Context, msg string, err error) {
	if s.logg != nil {
		s.logg.Error(ctx, msg, err)
	}
}

func buildView(lines []Line) View {
	if lines == nil {
		lines = []Line{}
	}
	items := Items(lines)
	return View{
		Items:   lines,
		Count:   len(lines),
		Total:   ComputeTotal(items).StringFixed(2),
		Savings: ComputeSavings(items).StringFixed(2),
	}
}

func validateItem(item Item) error {
	switch {
	case strings.TrimSpace(item.ProductID) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
	case !docstore.ValidSegment(item.VendorID):
		return pkgerrors.New(pkgerrors.CodeValidation, "vendorId is required")
	case item.Price < 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	case item.NoOfItems != nil && (*item.NoOfItems < MinLineQuantity || *item.NoOfItems > MaxLineQuantity):
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("noOfItems must be between %d and %d", MinLineQuantity, MaxLineQuantity))
	}
	return nil
}
