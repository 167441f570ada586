package controllers

import (
	"net/http"

	"github.com/angelmondragon/marketprep-backend/api/responses"
	"github.com/angelmondragon/marketprep-backend/api/validators"
	productsvc "github.com/angelmondragon/marketprep-backend/internal/products"
	"github.com/angelmondragon/marketprep-backend/pkg/logger"
)

type createProductRequest struct {
	Name       string `json:"name" validate:"required,max=200"`
	Category   string `json:"category" validate:"required,max=100"`
	Price      string `json:"price" validate:"required,money"`
	Unit       string `json:"unit" validate:"required,max=32"`
	IsSeasonal bool   `json:"is_seasonal"`
}

type updateProductRequest struct {
	Name       *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Category   *string `json:"category,omitempty" validate:"omitempty,min=1,max=100"`
	Price      *string `json:"price,omitempty" validate:"omitempty,money"`
	Unit       *string `json:"unit,omitempty" validate:"omitempty,min=1,max=32"`
	IsActive   *bool   `json:"is_active,omitempty"`
	IsSeasonal *bool   `json:"is_seasonal,omitempty"`
}

func (r createProductRequest) toInput() (productsvc.CreateProductInput, error) {
	price, err := parseMoney("price", r.Price)
	if err != nil {
		return productsvc.CreateProductInput{}, err
	}
	return productsvc.CreateProductInput{
		Name:       validators.SanitizeString(r.Name, 200),
		Category:   validators.SanitizeString(r.Category, 100),
		Price:      price,
		Unit:       validators.SanitizeString(r.Unit, 32),
		IsSeasonal: r.IsSeasonal,
	}, nil
}

func (r updateProductRequest) toInput() (productsvc.UpdateProductInput, error) {
	input := productsvc.UpdateProductInput{
		Name:       r.Name,
		Category:   r.Category,
		Unit:       r.Unit,
		IsActive:   r.IsActive,
		IsSeasonal: r.IsSeasonal,
	}
	if r.Price != nil {
		price, err := parseMoney("price", *r.Price)
		if err != nil {
			return productsvc.UpdateProductInput{}, err
		}
		input.Price = &price
	}
	return input, nil
}

func ListProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("product"))
			return
		}
		vendorID, err := vendorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		includeInactive, err := validators.ParseQueryBool(r, "include_inactive")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		products, err := svc.ListProducts(r.Context(), vendorID, includeInactive)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, products)
	}
}

func CreateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("product"))
			return
		}
		vendorID, err := vendorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), vendorID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

func UpdateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("product"))
			return
		}
		vendorID, err := vendorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseURLUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.UpdateProduct(r.Context(), vendorID, productID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// DeactivateProduct backs DELETE; products are soft-deactivated.
func DeactivateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("product"))
			return
		}
		vendorID, err := vendorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseURLUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeactivateProduct(r.Context(), vendorID, productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}
