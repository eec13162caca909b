package enums

import "fmt"

// OrderBucket names the vendor-side collection a vendor order currently lives in.
// The string values are path segments and must not change.
type OrderBucket string

const (
	OrderBucketNew            OrderBucket = "New Orders"
	OrderBucketAccepted       OrderBucket = "Accepted Orders"
	OrderBucketOutForDelivery OrderBucket = "Out for Delivery"
	OrderBucketDelivered      OrderBucket = "Delivered Orders"
	OrderBucketCancelled      OrderBucket = "Cancelled Orders"
)

var validOrderBuckets = []OrderBucket{
	OrderBucketNew,
	OrderBucketAccepted,
	OrderBucketOutForDelivery,
	OrderBucketDelivered,
	OrderBucketCancelled,
}

// OrderBuckets returns every bucket in lifecycle order.
func OrderBuckets() []OrderBucket {
	out := make([]OrderBucket, len(validOrderBuckets))
	copy(out, validOrderBuckets)
	return out
}

// String implements fmt.Stringer.
func (b OrderBucket) String() string {
	return string(b)
}

// IsValid reports whether the value is a known OrderBucket.
func (b OrderBucket) IsValid() bool {
	for _, candidate := range validOrderBuckets {
		if candidate == b {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no vendor transition leaves the bucket.
func (b OrderBucket) IsTerminal() bool {
	return b == OrderBucketDelivered || b == OrderBucketCancelled
}

// ParseOrderBucket converts raw input into an OrderBucket. URL-friendly slugs
// ("new", "accepted", "out-for-delivery", "delivered", "cancelled") are accepted too.
func ParseOrderBucket(value string) (OrderBucket, error) {
	for _, candidate := range validOrderBuckets {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	if bucket, ok := bucketSlugs[value]; ok {
		return bucket, nil
	}
	return "", fmt.Errorf("invalid order bucket %q", value)
}

var bucketSlugs = map[string]OrderBucket{
	"new":              OrderBucketNew,
	"accepted":         OrderBucketAccepted,
	"out-for-delivery": OrderBucketOutForDelivery,
	"delivered":        OrderBucketDelivered,
	"cancelled":        OrderBucketCancelled,
}
