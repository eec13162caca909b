package checkout

import (
	"errors"
	"fmt"
	"strings"

	pkgerrors "github.com/angelmondragon/buildmart-backend/pkg/errors"
)

// PublicFailureMessage is the only checkout failure text shown to customers.
const PublicFailureMessage = "Order failed. Please try again."

var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrMissingPaymentDetail = errors.New("upi id is required for upi payments")
	ErrInvalidPaymentMethod = errors.New("payment method must be cod or upi")
	ErrPersistence          = errors.New("order persistence failed")
	ErrInvalidCartLine      = errors.New("cart line has no product or vendor")
)

// PartialFanoutError reports a fan-out where some vendor orders were written
// and others were not. The customer order and the cart are left in place.
type PartialFanoutError struct {
	OrderID   string
	Succeeded []string
	Failed    []string
	Err       error
}

func (e *PartialFanoutError) Error() string {
	return fmt.Sprintf("order %s: %d of %d vendor writes failed (%s): %v",
		e.OrderID, len(e.Failed), len(e.Failed)+len(e.Succeeded), strings.Join(e.Failed, ","), e.Err)
}

func (e *PartialFanoutError) Unwrap() error {
	return e.Err
}

func failure(code pkgerrors.Code, cause error, msg string) error {
	return pkgerrors.Wrap(code, cause, msg).WithPublicMessage(PublicFailureMessage)
}

func persistence(err error, msg string) error {
	return failure(pkgerrors.CodeDependency, fmt.Errorf("%w: %w", ErrPersistence, err), msg)
}

// failureReason maps a checkout error onto a metrics label.
func failureReason(err error) string {
	var partial *PartialFanoutError
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrMissingPaymentDetail), errors.Is(err, ErrInvalidPaymentMethod):
		return "payment_detail"
	case errors.Is(err, ErrInvalidCartLine):
		return "invalid_line"
	case errors.As(err, &partial):
		return "partial_fanout"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	}
	return "other"
}
