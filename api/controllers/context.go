package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketprep-backend/api/middleware"
	pkgerrors "github.com/angelmondragon/marketprep-backend/pkg/errors"
)

func vendorFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := middleware.VendorIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "vendor context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid vendor id")
	}
	return id, nil
}

func unavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable")
}

// parseMoney parses an amount the money validator already accepted. The
// validator trims, so parsing trims too.
func parseMoney(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed").
			WithDetails(map[string]string{field: "must be a non-negative amount with at most 2 decimals"})
	}
	return d, nil
}
