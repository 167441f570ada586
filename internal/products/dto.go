package product

import (
	"time"

	"github.com/angelmondragon/marketprep-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductDTO is the API view of a product.
type ProductDTO struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	Category        string          `json:"category"`
	Price           decimal.Decimal `json:"price"`
	Unit            string          `json:"unit"`
	IsActive        bool            `json:"is_active"`
	IsSeasonal      bool            `json:"is_seasonal"`
	SquareCatalogID *string         `json:"square_catalog_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewProductDTO maps the model to its API view.
func NewProductDTO(p models.Product) ProductDTO {
	return ProductDTO{
		ID:              p.ID,
		Name:            p.Name,
		Category:        p.Category,
		Price:           p.Price,
		Unit:            p.Unit,
		IsActive:        p.IsActive,
		IsSeasonal:      p.IsSeasonal,
		SquareCatalogID: p.SquareCatalogID,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}
