package orders

import (
	"time"

	"github.com/angelmondragon/buildmart-backend/internal/cart"
	"github.com/angelmondragon/buildmart-backend/pkg/enums"
)

// Status literals written by each call site. Customer tab filters match these
// strings exactly; no mapping to bucket names is applied.
const (
	StatusPending        = "pending"
	StatusAccepted       = "accepted"
	StatusOutForDelivery = "out for delivery"
	StatusDelivered      = "delivered"
	StatusCancelled      = "cancelled"
)

// Order is the customer copy at Users/{customerId}/Orders/{orderId}.
type Order struct {
	ID            string               `json:"id,omitempty"`
	Items         map[string]cart.Item `json:"items"`
	PaymentMethod enums.PaymentMethod  `json:"paymentMethod"`
	UPIID         *string              `json:"upiId"`
	Status        string               `json:"status"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     *time.Time           `json:"updatedAt,omitempty"`
	Total         float64              `json:"total"`
	VendorIDs     []string             `json:"vendorIds,omitempty"`
}

// VendorOrder is the vendor copy living in exactly one bucket.
type VendorOrder struct {
	Items              map[string]cart.Item `json:"items"`
	CustomerID         string               `json:"customerId"`
	OrderID            string               `json:"orderId"`
	PaymentMethod      enums.PaymentMethod  `json:"paymentMethod"`
	UPIID              *string              `json:"upiId"`
	Status             string               `json:"status"`
	CreatedAt          time.Time            `json:"createdAt"`
	UpdatedAt          *time.Time           `json:"updatedAt,omitempty"`
	Total              float64              `json:"total"`
	Version            int64                `json:"version"`
	AcceptedAt         *time.Time           `json:"acceptedAt,omitempty"`
	OutForDeliveryAt   *time.Time           `json:"outForDeliveryAt,omitempty"`
	DeliveredAt        *time.Time           `json:"deliveredAt,omitempty"`
	CancelledAt        *time.Time           `json:"cancelledAt,omitempty"`
	CancelledBy        string               `json:"cancelledBy,omitempty"`
	CancellationReason string               `json:"cancellationReason,omitempty"`
}

// VendorOrderView adds the location of a vendor order for listings.
type VendorOrderView struct {
	VendorID string            `json:"vendorId"`
	Bucket   enums.OrderBucket `json:"bucket"`
	VendorOrder
}
