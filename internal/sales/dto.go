package sales

import (
	"time"

	"github.com/angelmondragon/marketprep-backend/pkg/db/models"
	"github.com/angelmondragon/marketprep-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SaleDTO struct {
	ID            uuid.UUID        `json:"id"`
	SaleDate      time.Time        `json:"sale_date"`
	VenueID       *uuid.UUID       `json:"venue_id,omitempty"`
	TotalAmount   decimal.Decimal  `json:"total_amount"`
	Source        enums.SaleSource `json:"source"`
	SquareOrderID *string          `json:"square_order_id,omitempty"`
	LineItems     []LineItemDTO    `json:"line_items"`
}

type LineItemDTO struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func NewSaleDTO(s models.Sale) SaleDTO {
	dto := SaleDTO{
		ID:            s.ID,
		SaleDate:      s.SaleDate.UTC(),
		VenueID:       s.VenueID,
		TotalAmount:   s.TotalAmount,
		Source:        s.Source,
		SquareOrderID: s.SquareOrderID,
		LineItems:     make([]LineItemDTO, 0, len(s.LineItems)),
	}
	for _, li := range s.LineItems {
		dto.LineItems = append(dto.LineItems, LineItemDTO{
			ProductID: li.ProductID,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
		})
	}
	return dto
}
