package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/buildmart-backend/api/responses"
	"github.com/angelmondragon/buildmart-backend/api/validators"
	"github.com/angelmondragon/buildmart-backend/internal/orders"
	"github.com/angelmondragon/buildmart-backend/internal/session"
	"github.com/angelmondragon/buildmart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/buildmart-backend/pkg/errors"
	"github.com/angelmondragon/buildmart-backend/pkg/logger"
)

type cancelOrderRequest struct {
	From   string `json:"from" validate:"required"`
	Reason string `json:"reason" validate:"max=500"`
}

type confirmDeliveryRequest struct {
	Token string `json:"token" validate:"required,numeric,max=12"`
}

func bucketParam(r *http.Request) (enums.OrderBucket, error) {
	raw, err := pathParam(r, "bucket")
	if err != nil {
		return "", err
	}
	bucket, err := enums.ParseOrderBucket(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown order bucket")
	}
	return bucket, nil
}

// VendorListBucket lists the caller's orders in one bucket, newest first.
func VendorListBucket(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("orders service"))
			return
		}
		sc, err := callerSession(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bucket, err := bucketParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListVendorBucket(r.Context(), sc, orders.BucketQuery{Bucket: bucket})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

type vendorAction func(r *http.Request, sc session.Context, orderID string) (any, error)

// vendorOrderAction resolves the caller and order id before running action.
func vendorOrderAction(svc orders.Service, logg *logger.Logger, action vendorAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("orders service"))
			return
		}
		sc, err := callerSession(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := pathParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := action(r, sc, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func VendorAcceptOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return vendorOrderAction(svc, logg, func(r *http.Request, sc session.Context, orderID string) (any, error) {
		return svc.Accept(r.Context(), sc, orderID)
	})
}

func VendorCancelOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return vendorOrderAction(svc, logg, func(r *http.Request, sc session.Context, orderID string) (any, error) {
		var body cancelOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		from, err := enums.ParseOrderBucket(body.From)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown order bucket")
		}
		return svc.Cancel(r.Context(), sc, orderID, from, strings.TrimSpace(body.Reason))
	})
}

func VendorDispatchOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return vendorOrderAction(svc, logg, func(r *http.Request, sc session.Context, orderID string) (any, error) {
		return svc.Dispatch(r.Context(), sc, orderID)
	})
}

// VendorArmDelivery starts the two-step delivery confirmation.
func VendorArmDelivery(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return vendorOrderAction(svc, logg, func(r *http.Request, sc session.Context, orderID string) (any, error) {
		return svc.ArmDelivery(r.Context(), sc, orderID)
	})
}

func VendorConfirmDelivery(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return vendorOrderAction(svc, logg, func(r *http.Request, sc session.Context, orderID string) (any, error) {
		var body confirmDeliveryRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.ConfirmDelivery(r.Context(), sc, orderID, body.Token)
	})
}

func VendorDisarmDelivery(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return vendorOrderAction(svc, logg, func(r *http.Request, sc session.Context, orderID string) (any, error) {
		if err := svc.DisarmDelivery(r.Context(), sc, orderID); err != nil {
			return nil, err
		}
		return map[string]string{"orderId": orderID, "status": "disarmed"}, nil
	})
}

// CustomerListOrders lists the caller's orders. The status query is matched
// literally against the stored status.
func CustomerListOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("orders service"))
			return
		}
		sc, err := callerSession(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := orders.CustomerQuery{Status: validators.QueryString(r, "status", 32)}
		list, err := svc.ListCustomerOrders(r.Context(), sc, query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func CustomerOrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("orders service"))
			return
		}
		sc, err := callerSession(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := pathParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetCustomerOrder(r.Context(), sc, "", orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
