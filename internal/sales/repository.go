package sales

import (
	"context"
	"time"

	"github.com/angelmondragon/marketprep-backend/internal/features"
	"github.com/angelmondragon/marketprep-backend/internal/repo"
	"github.com/angelmondragon/marketprep-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketprep-backend/pkg/errors"
	"github.com/angelmondragon/marketprep-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists the append-only sales history.
type Repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(tx)}
}

// Create inserts the sale and its line items.
func (r *Repository) Create(ctx context.Context, sale *models.Sale) error {
	for i := range sale.LineItems {
		sale.LineItems[i].VendorID = sale.VendorID
		sale.LineItems[i].Position = i
	}
	if err := r.base.DB(ctx).Create(sale).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: create sale")
	}
	return nil
}

// ListPage returns sales newest first, starting after cursor. It fetches one
// extra row so callers can tell whether another page exists.
func (r *Repository) ListPage(ctx context.Context, vendorID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Sale, error) {
	query := r.base.Tenant(ctx, vendorID)
	if cursor != nil {
		query = query.Where("(sale_date < ?) OR (sale_date = ? AND id < ?)", cursor.At, cursor.At, cursor.ID)
	}
	var rows []models.Sale
	err := query.
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("sale_date DESC, id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list sales")
	}
	return rows, nil
}

type historyRow struct {
	SaleDate  time.Time
	VenueID   *uuid.UUID
	ProductID uuid.UUID
	Quantity  int
}

// History flattens line items sold in [from, to) into feature inputs.
func (r *Repository) History(ctx context.Context, vendorID uuid.UUID, from, to time.Time) ([]features.SalePoint, error) {
	var rows []historyRow
	err := r.base.DB(ctx).
		Table("sale_line_items AS li").
		Select("s.sale_date AS sale_date, s.venue_id AS venue_id, li.product_id AS product_id, li.quantity AS quantity").
		Joins("JOIN sales s ON s.id = li.sale_id").
		Where("s.vendor_id = ? AND li.vendor_id = ?", vendorID, vendorID).
		Where("s.sale_date >= ? AND s.sale_date < ?", from.UTC(), to.UTC()).
		Order("s.sale_date ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load sales history")
	}
	out := make([]features.SalePoint, 0, len(rows))
	for _, row := range rows {
		out = append(out, features.SalePoint{
			Date:      row.SaleDate,
			VenueID:   row.VenueID,
			ProductID: row.ProductID,
			Quantity:  row.Quantity,
		})
	}
	return out, nil
}

// ExistingSquareOrders returns which of the order ids are already stored.
func (r *Repository) ExistingSquareOrders(ctx context.Context, vendorID uuid.UUID, orderIDs []string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	var found []string
	err := r.base.Tenant(ctx, vendorID).
		Model(&models.Sale{}).
		Where("square_order_id IN ?", orderIDs).
		Pluck("square_order_id", &found).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find square orders")
	}
	for _, id := range found {
		out[id] = struct{}{}
	}
	return out, nil
}
