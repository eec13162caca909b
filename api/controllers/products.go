package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/buildmart-backend/api/responses"
	"github.com/angelmondragon/buildmart-backend/api/validators"
	"github.com/angelmondragon/buildmart-backend/internal/products"
	"github.com/angelmondragon/buildmart-backend/pkg/logger"
	"github.com/angelmondragon/buildmart-backend/pkg/pagination"
)

type createProductRequest struct {
	Name        string             `json:"name" validate:"required,max=160"`
	Category    string             `json:"category" validate:"required,max=80"`
	Description string             `json:"description" validate:"max=2000"`
	Price       float64            `json:"price" validate:"gt=0"`
	MRP         *float64           `json:"mrp" validate:"omitempty,gt=0"`
	Unit        string             `json:"unit" validate:"max=32"`
	Quantity    *float64           `json:"quantity" validate:"omitempty,gt=0"`
	Images      []string           `json:"images" validate:"max=10,dive,max=2048"`
	Variants    []products.Variant `json:"variants" validate:"max=50"`
	InStock     *bool              `json:"inStock"`
}

type updateProductRequest struct {
	Name        *string            `json:"name" validate:"omitempty,min=1,max=160"`
	Category    *string            `json:"category" validate:"omitempty,min=1,max=80"`
	Description *string            `json:"description" validate:"omitempty,max=2000"`
	Price       *float64           `json:"price" validate:"omitempty,gt=0"`
	MRP         *float64           `json:"mrp" validate:"omitempty,gt=0"`
	Unit        *string            `json:"unit" validate:"omitempty,max=32"`
	Quantity    *float64           `json:"quantity" validate:"omitempty,gt=0"`
	Images      []string           `json:"images" validate:"omitempty,max=10,dive,max=2048"`
	Variants    []products.Variant `json:"variants" validate:"omitempty,max=50"`
	InStock     *bool              `json:"inStock"`
}

// ListProducts returns one page of the public catalog, optionally filtered by category or vendor.
func ListProducts(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("products service"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := products.ListParams{
			Category: validators.QueryString(r, "category", 80),
			VendorID: validators.QueryString(r, "vendorId", 64),
			Params: pagination.Params{
				Limit:  limit,
				Cursor: validators.QueryString(r, "cursor", 200),
			},
		}
		list, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func GetProduct(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("products service"))
			return
		}

		productID, err := pathParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Get(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func VendorCreateProduct(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("products service"))
			return
		}
		sc, err := callerSession(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Create(r.Context(), sc, products.CreateInput{
			Name:        strings.TrimSpace(body.Name),
			Category:    strings.TrimSpace(body.Category),
			Description: body.Description,
			Price:       body.Price,
			MRP:         body.MRP,
			Unit:        body.Unit,
			Quantity:    body.Quantity,
			Images:      body.Images,
			Variants:    body.Variants,
			InStock:     body.InStock,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

func VendorUpdateProduct(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("products service"))
			return
		}
		sc, err := callerSession(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := pathParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Update(r.Context(), sc, productID, products.UpdateInput{
			Name:        body.Name,
			Category:    body.Category,
			Description: body.Description,
			Price:       body.Price,
			MRP:         body.MRP,
			Unit:        body.Unit,
			Quantity:    body.Quantity,
			Images:      body.Images,
			Variants:    body.Variants,
			InStock:     body.InStock,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func VendorDeleteProduct(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("products service"))
			return
		}
		sc, err := callerSession(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := pathParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), sc, productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
