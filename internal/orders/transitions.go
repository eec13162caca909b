package orders

import (
	"errors"

	"github.com/angelmondragon/buildmart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/buildmart-backend/pkg/errors"
)

// PublicTransitionFailure is the only transition failure text shown to users.
const PublicTransitionFailure = "Failed to update order status"

var (
	ErrInvalidTransition      = errors.New("order transition not allowed")
	ErrConcurrentModification = errors.New("order was modified concurrently")
	ErrOrderNotFound          = errors.New("order not found in bucket")
	ErrDeliveryNotArmed       = errors.New("delivery confirmation is not armed")
)

// Mode selects how the three writes of a bucket move are issued.
type Mode string

const (
	// ModeBatched applies the move as one guarded batch.
	ModeBatched Mode = "batched"
	// ModeSequential issues three independent writes without a version guard.
	ModeSequential Mode = "sequential"
)

type transition struct {
	status    string
	stampedAt string
}

var vendorTransitions = map[enums.OrderBucket]map[enums.OrderBucket]transition{
	enums.OrderBucketNew: {
		enums.OrderBucketAccepted:  {status: StatusAccepted, stampedAt: "acceptedAt"},
		enums.OrderBucketCancelled: {status: StatusCancelled, stampedAt: "cancelledAt"},
	},
	enums.OrderBucketAccepted: {
		enums.OrderBucketOutForDelivery: {status: StatusOutForDelivery, stampedAt: "outForDeliveryAt"},
		enums.OrderBucketCancelled:      {status: StatusCancelled, stampedAt: "cancelledAt"},
	},
	enums.OrderBucketOutForDelivery: {
		enums.OrderBucketDelivered: {status: StatusDelivered, stampedAt: "deliveredAt"},
	},
}

// CanTransition reports whether a vendor may move an order from one bucket to another.
func CanTransition(from, to enums.OrderBucket) bool {
	_, ok := vendorTransitions[from][to]
	return ok
}

func lookupTransition(from, to enums.OrderBucket, admin bool) (transition, error) {
	if t, ok := vendorTransitions[from][to]; ok {
		return t, nil
	}
	if admin && to == enums.OrderBucketCancelled && from.IsValid() && !from.IsTerminal() {
		return transition{status: StatusCancelled, stampedAt: "cancelledAt"}, nil
	}
	return transition{}, transitionError(pkgerrors.CodeStateConflict, ErrInvalidTransition, "cannot move order from "+string(from)+" to "+string(to))
}

func transitionError(code pkgerrors.Code, cause error, msg string) error {
	return pkgerrors.Wrap(code, cause, msg).WithPublicMessage(PublicTransitionFailure)
}
