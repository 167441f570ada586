package product

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/marketprep-backend/pkg/db"
	"github.com/angelmondragon/marketprep-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketprep-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const defaultUnit = "each"

// Service exposes vendor product management operations.
type Service interface {
	CreateProduct(ctx context.Context, vendorID uuid.UUID, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, vendorID, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeactivateProduct(ctx context.Context, vendorID, productID uuid.UUID) error
	ListProducts(ctx context.Context, vendorID uuid.UUID, includeInactive bool) ([]ProductDTO, error)
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	Name       string
	Category   string
	Price      decimal.Decimal
	Unit       string
	IsSeasonal bool
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	Name       *string
	Category   *string
	Price      *decimal.Decimal
	Unit       *string
	IsActive   *bool
	IsSeasonal *bool
}

type service struct {
	repo *Repository
	db   *db.Client
}

// NewService constructs a product service instance.
func NewService(repo *Repository, dbClient *db.Client) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{repo: repo, db: dbClient}, nil
}

func (s *service) CreateProduct(ctx context.Context, vendorID uuid.UUID, input CreateProductInput) (*ProductDTO, error) {
	return db.InTenant(ctx, s.db, vendorID, func(ctx context.Context) (*ProductDTO, error) {
		name := strings.TrimSpace(input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
		}
		if input.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be >= 0")
		}
		unit := strings.TrimSpace(input.Unit)
		if unit == "" {
			unit = defaultUnit
		}

		product := &models.Product{
			VendorID:   vendorID,
			Name:       name,
			Category:   strings.TrimSpace(input.Category),
			Price:      input.Price.Round(2),
			Unit:       unit,
			IsActive:   true,
			IsSeasonal: input.IsSeasonal,
		}
		if err := s.repo.Create(ctx, product); err != nil {
			return nil, err
		}
		dto := NewProductDTO(*product)
		return &dto, nil
	})
}

func (s *service) UpdateProduct(ctx context.Context, vendorID, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	return db.InTenant(ctx, s.db, vendorID, func(ctx context.Context) (*ProductDTO, error) {
		product, err := s.repo.FindByID(ctx, vendorID, productID)
		if err != nil {
			return nil, err
		}

		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
			}
			product.Name = name
		}
		if input.Category != nil {
			product.Category = strings.TrimSpace(*input.Category)
		}
		if input.Price != nil {
			if input.Price.IsNegative() {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be >= 0")
			}
			product.Price = input.Price.Round(2)
		}
		if input.Unit != nil && strings.TrimSpace(*input.Unit) != "" {
			product.Unit = strings.TrimSpace(*input.Unit)
		}
		if input.IsActive != nil {
			product.IsActive = *input.IsActive
		}
		if input.IsSeasonal != nil {
			product.IsSeasonal = *input.IsSeasonal
		}

		if err := s.repo.Save(ctx, product); err != nil {
			return nil, err
		}
		dto := NewProductDTO(*product)
		return &dto, nil
	})
}

// DeactivateProduct hides the product from generation; history keeps pointing at it.
func (s *service) DeactivateProduct(ctx context.Context, vendorID, productID uuid.UUID) error {
	return s.db.TenantScope(ctx, vendorID, func(ctx context.Context) error {
		product, err := s.repo.FindByID(ctx, vendorID, productID)
		if err != nil {
			return err
		}
		if !product.IsActive {
			return nil
		}
		product.IsActive = false
		return s.repo.Save(ctx, product)
	})
}

func (s *service) ListProducts(ctx context.Context, vendorID uuid.UUID, includeInactive bool) ([]ProductDTO, error) {
	return db.InTenant(ctx, s.db, vendorID, func(ctx context.Context) ([]ProductDTO, error) {
		products, err := s.repo.List(ctx, vendorID, includeInactive)
		if err != nil {
			return nil, err
		}
		out := make([]ProductDTO, 0, len(products))
		for _, p := range products {
			out = append(out, NewProductDTO(p))
		}
		return out, nil
	})
}
