package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MinLineQuantity = 1
	MaxLineQuantity = 999
)

var mrpFallbackMarkup = decimal.RequireFromString("1.2")

// Item is one cart line as stored under Users/{customerId}/Cart/{key}.
type Item struct {
	ProductID      string    `json:"productId"`
	ProductName    string    `json:"productName"`
	VendorID       string    `json:"vendorId"`
	VendorName     string    `json:"vendorName"`
	Category       string    `json:"category"`
	VariantIndex   *int      `json:"variantIndex"`
	VariantDetails *string   `json:"variantDetails"`
	Image          *string   `json:"image"`
	Price          float64   `json:"price"`
	MRP            *float64  `json:"mrp"`
	OriginalPrice  *float64  `json:"originalPrice,omitempty"`
	NoOfItems      *int      `json:"noOfItems,omitempty"`
	Quantity       *float64  `json:"quantity,omitempty"`
	Unit           string    `json:"unit"`
	AddedAt        time.Time `json:"addedAt"`
}

// EffectiveQuantity falls back from noOfItems to the pack quantity and then to 1.
func (i Item) EffectiveQuantity() decimal.Decimal {
	if i.NoOfItems != nil {
		return decimal.NewFromInt(int64(*i.NoOfItems))
	}
	if i.Quantity != nil {
		return decimal.NewFromFloat(*i.Quantity)
	}
	return decimal.NewFromInt(1)
}

// LineTotal is price times the effective quantity, unrounded.
func (i Item) LineTotal() decimal.Decimal {
	return decimal.NewFromFloat(i.Price).Mul(i.EffectiveQuantity())
}

func (i Item) effectiveMRP() decimal.Decimal {
	if i.OriginalPrice != nil {
		return decimal.NewFromFloat(*i.OriginalPrice)
	}
	return decimal.NewFromFloat(i.Price).Mul(mrpFallbackMarkup)
}

// ComputeTotal sums every line total, rounded to two decimals.
func ComputeTotal(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total.Round(2)
}

// ComputeSavings sums (mrp - price) per line. Lines without an original price
// assume a 20% markup.
func ComputeSavings(items []Item) decimal.Decimal {
	savings := decimal.Zero
	for _, item := range items {
		diff := item.effectiveMRP().Sub(decimal.NewFromFloat(item.Price))
		savings = savings.Add(diff.Mul(item.EffectiveQuantity()))
	}
	return savings.Round(2)
}
