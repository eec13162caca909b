package controllers

import (
	"net/http"

	"github.com/angelmondragon/buildmart-backend/api/responses"
	"github.com/angelmondragon/buildmart-backend/api/validators"
	"github.com/angelmondragon/buildmart-backend/internal/checkout"
	"github.com/angelmondragon/buildmart-backend/pkg/logger"
)

type checkoutRequest struct {
	PaymentMethod string `json:"paymentMethod" validate:"required,max=16"`
	UPIID         string `json:"upiId" validate:"max=128"`
}

// Checkout places the caller's cart as one order fanned out per vendor.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("checkout service"))
			return
		}
		sc, err := callerSession(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body checkoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.PlaceOrder(r.Context(), sc, checkout.PlaceOrderInput{
			PaymentMethod: body.PaymentMethod,
			UPIID:         body.UPIID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
