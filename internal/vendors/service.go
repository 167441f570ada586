package vendors

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/marketprep-backend/pkg/db"
	"github.com/angelmondragon/marketprep-backend/pkg/db/models"
	"github.com/angelmondragon/marketprep-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VendorDTO is the account view returned to its owner.
type VendorDTO struct {
	ID               uuid.UUID              `json:"id"`
	Email            string                 `json:"email"`
	BusinessName     string                 `json:"business_name"`
	SubscriptionTier enums.SubscriptionTier `json:"subscription_tier"`
	LastLoginAt      *time.Time             `json:"last_login_at,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
}

func NewVendorDTO(v models.Vendor) VendorDTO {
	return VendorDTO{
		ID:               v.ID,
		Email:            v.Email,
		BusinessName:     v.BusinessName,
		SubscriptionTier: v.SubscriptionTier,
		LastLoginAt:      v.LastLoginAt,
		CreatedAt:        v.CreatedAt,
	}
}

// Service exposes the account owner's view of their vendor.
type Service interface {
	Get(ctx context.Context, vendorID uuid.UUID) (*VendorDTO, error)
	Erase(ctx context.Context, vendorID uuid.UUID) error
}

type service struct {
	repo     *Repository
	dbClient *db.Client
}

func NewService(repo *Repository, dbClient *db.Client) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("vendor repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{repo: repo, dbClient: dbClient}, nil
}

func (s *service) Get(ctx context.Context, vendorID uuid.UUID) (*VendorDTO, error) {
	vendor, err := s.repo.FindByID(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	dto := NewVendorDTO(*vendor)
	return &dto, nil
}

// Erase is the explicit erasure request; it is the only way a vendor is deleted.
func (s *service) Erase(ctx context.Context, vendorID uuid.UUID) error {
	return s.dbClient.WithTenantTx(ctx, vendorID, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Erase(ctx, vendorID)
	})
}
