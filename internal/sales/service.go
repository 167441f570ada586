package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/marketprep-backend/pkg/db"
	"github.com/angelmondragon/marketprep-backend/pkg/db/models"
	"github.com/angelmondragon/marketprep-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketprep-backend/pkg/errors"
	"github.com/angelmondragon/marketprep-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	maxLineItems = 200
	// sales dated further ahead than this are rejected as typos
	futureSkew = 24 * time.Hour
)

// Service records and lists the vendor's sales history.
type Service interface {
	RecordSale(ctx context.Context, vendorID uuid.UUID, input RecordSaleInput) (*SaleDTO, error)
	ListSales(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*pagination.Page[SaleDTO], error)
}

type RecordSaleInput struct {
	SaleDate  time.Time
	VenueID   *uuid.UUID
	LineItems []LineItemInput
}

type LineItemInput struct {
	ProductID uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
}

type productLookup interface {
	FindActiveByIDs(ctx context.Context, vendorID uuid.UUID, ids []uuid.UUID) ([]models.Product, error)
}

type venueLookup interface {
	FindByID(ctx context.Context, vendorID, id uuid.UUID) (*models.Venue, error)
}

type service struct {
	repo     *Repository
	dbClient *db.Client
	products productLookup
	venues   venueLookup
	now      func() time.Time
}

func NewService(repo *Repository, dbClient *db.Client, products productLookup, venues venueLookup) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("sales repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if products == nil {
		return nil, fmt.Errorf("product lookup required")
	}
	if venues == nil {
		return nil, fmt.Errorf("venue lookup required")
	}
	return &service{repo: repo, dbClient: dbClient, products: products, venues: venues, now: time.Now}, nil
}

// RecordSale appends a manual sale. Existing sales are never edited.
func (s *service) RecordSale(ctx context.Context, vendorID uuid.UUID, input RecordSaleInput) (*SaleDTO, error) {
	return db.InTenant(ctx, s.dbClient, vendorID, func(ctx context.Context) (*SaleDTO, error) {
		if input.SaleDate.IsZero() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale_date is required")
		}
		if input.SaleDate.After(s.now().Add(futureSkew)) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale_date cannot be in the future")
		}
		if len(input.LineItems) == 0 || len(input.LineItems) > maxLineItems {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("between 1 and %d line items required", maxLineItems))
		}

		ids := make([]uuid.UUID, 0, len(input.LineItems))
		seen := map[uuid.UUID]struct{}{}
		for i, li := range input.LineItems {
			if li.Quantity <= 0 {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line_items[%d].quantity must be > 0", i))
			}
			if li.UnitPrice.IsNegative() {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line_items[%d].unit_price must be >= 0", i))
			}
			if _, ok := seen[li.ProductID]; !ok {
				seen[li.ProductID] = struct{}{}
				ids = append(ids, li.ProductID)
			}
		}

		if input.VenueID != nil {
			if _, err := s.venues.FindByID(ctx, vendorID, *input.VenueID); err != nil {
				return nil, err
			}
		}
		products, err := s.products.FindActiveByIDs(ctx, vendorID, ids)
		if err != nil {
			return nil, err
		}
		if len(products) != len(ids) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}

		sale := &models.Sale{
			VendorID: vendorID,
			VenueID:  input.VenueID,
			SaleDate: input.SaleDate.UTC(),
			Source:   enums.SaleSourceManual,
		}
		total := decimal.Zero
		for _, li := range input.LineItems {
			price := li.UnitPrice.Round(2)
			total = total.Add(price.Mul(decimal.NewFromInt(int64(li.Quantity))))
			sale.LineItems = append(sale.LineItems, models.SaleLineItem{
				ProductID: li.ProductID,
				Quantity:  li.Quantity,
				UnitPrice: price,
			})
		}
		sale.TotalAmount = total

		if err := s.repo.Create(ctx, sale); err != nil {
			return nil, err
		}
		dto := NewSaleDTO(*sale)
		return &dto, nil
	})
}

func (s *service) ListSales(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*pagination.Page[SaleDTO], error) {
	return db.InTenant(ctx, s.dbClient, vendorID, func(ctx context.Context) (*pagination.Page[SaleDTO], error) {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		rows, err := s.repo.ListPage(ctx, vendorID, params.Limit, cursor)
		if err != nil {
			return nil, err
		}

		page := pagination.Trim(rows, params.Limit, func(sale models.Sale) pagination.Cursor {
			return pagination.Cursor{At: sale.SaleDate, ID: sale.ID}
		})
		out := &pagination.Page[SaleDTO]{Items: make([]SaleDTO, 0, len(page.Items)), NextCursor: page.NextCursor}
		for _, sale := range page.Items {
			out.Items = append(out.Items, NewSaleDTO(sale))
		}
		return out, nil
	})
}
