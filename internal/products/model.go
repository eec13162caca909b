package products

import "time"

// Variant is a purchasable option of a product with its own price.
type Variant struct {
	Details string   `json:"details"`
	Price   float64  `json:"price"`
	MRP     *float64 `json:"mrp,omitempty"`
}

// Product is the catalog document stored at Products/{id}.
type Product struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	MRP         *float64  `json:"mrp,omitempty"`
	Unit        string    `json:"unit"`
	Quantity    *float64  `json:"quantity,omitempty"`
	Images      []string  `json:"images,omitempty"`
	Variants    []Variant `json:"variants,omitempty"`
	VendorID    string    `json:"vendorId"`
	VendorName  string    `json:"vendorName"`
	InStock     bool      `json:"inStock"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PrimaryImage returns the first image, if any.
func (p Product) PrimaryImage() *string {
	if len(p.Images) == 0 || p.Images[0] == "" {
		return nil
	}
	img := p.Images[0]
	return &img
}

// PriceFor resolves the selling price and MRP for an optional variant.
func (p Product) PriceFor(variantIndex *int) (price float64, mrp *float64, details *string, ok bool) {
	if variantIndex == nil {
		return p.Price, p.MRP, nil, true
	}
	idx := *variantIndex
	if idx < 0 || idx >= len(p.Variants) {
		return 0, nil, nil, false
	}
	v := p.Variants[idx]
	d := v.Details
	return v.Price, v.MRP, &d, true
}
