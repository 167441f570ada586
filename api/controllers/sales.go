package controllers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketprep-backend/api/responses"
	"github.com/angelmondragon/marketprep-backend/api/validators"
	"github.com/angelmondragon/marketprep-backend/internal/sales"
	pkgerrors "github.com/angelmondragon/marketprep-backend/pkg/errors"
	"github.com/angelmondragon/marketprep-backend/pkg/logger"
	"github.com/angelmondragon/marketprep-backend/pkg/pagination"
)

type recordSaleRequest struct {
	// SaleDate accepts RFC 3339 or a bare YYYY-MM-DD date.
	SaleDate  string                `json:"sale_date" validate:"required"`
	VenueID   *string               `json:"venue_id,omitempty" validate:"omitempty,uuid"`
	LineItems []saleLineItemRequest `json:"line_items" validate:"required,min=1,max=200,dive"`
}

type saleLineItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
	UnitPrice string `json:"unit_price" validate:"required,money"`
}

func (r recordSaleRequest) toInput() (sales.RecordSaleInput, error) {
	saleDate, err := parseTimestamp(r.SaleDate)
	if err != nil {
		return sales.RecordSaleInput{}, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"sale_date": "must be RFC 3339 or YYYY-MM-DD"})
	}
	input := sales.RecordSaleInput{SaleDate: saleDate}
	if r.VenueID != nil {
		id := uuid.MustParse(*r.VenueID)
		input.VenueID = &id
	}
	for i, li := range r.LineItems {
		price, err := parseMoney(fmt.Sprintf("line_items[%d].unit_price", i), li.UnitPrice)
		if err != nil {
			return sales.RecordSaleInput{}, err
		}
		input.LineItems = append(input.LineItems, sales.LineItemInput{
			ProductID: uuid.MustParse(li.ProductID),
			Quantity:  li.Quantity,
			UnitPrice: price,
		})
	}
	return input, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), nil
	}
	return validators.ParseDate(raw)
}

func ListSales(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("sales"))
			return
		}
		vendorID, err := vendorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListSales(r.Context(), vendorID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// RecordSale appends a manually entered sale.
func RecordSale(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("sales"))
			return
		}
		vendorID, err := vendorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload recordSaleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sale, err := svc.RecordSale(r.Context(), vendorID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sale)
	}
}
