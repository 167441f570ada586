// Package squaresync pulls a vendor's Square catalog and completed orders into
// products and the append-only sales history.
package squaresync

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	product "github.com/angelmondragon/marketprep-backend/internal/products"
	"github.com/angelmondragon/marketprep-backend/internal/sales"
	"github.com/angelmondragon/marketprep-backend/internal/venues"
	"github.com/angelmondragon/marketprep-backend/pkg/adapter"
	"github.com/angelmondragon/marketprep-backend/pkg/db"
	"github.com/angelmondragon/marketprep-backend/pkg/db/models"
	"github.com/angelmondragon/marketprep-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketprep-backend/pkg/errors"
	"github.com/angelmondragon/marketprep-backend/pkg/logger"
	"github.com/angelmondragon/marketprep-backend/pkg/square"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultUnit        = "each"
	defaultConcurrency = 4
)

// SquareAPI is the subset of the Square client the sync needs.
type SquareAPI interface {
	RefreshToken(ctx context.Context, refreshToken string) (*square.TokenGrant, error)
	FetchCatalog(ctx context.Context, merchantKey, accessToken string) adapter.Result[square.Catalog]
	SearchCompletedOrders(ctx context.Context, accessToken string, params square.OrderSearchParams) ([]square.Order, error)
}

// Cipher seals OAuth tokens at rest. The vendor id is the associated data so a
// ciphertext cannot be replayed onto another tenant's row.
type Cipher interface {
	Seal(plaintext, additionalData string) (string, error)
	Open(ciphertext, additionalData string) (string, error)
}

// LinkInput carries tokens obtained from the Square OAuth handshake.
type LinkInput struct {
	MerchantID   string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	LocationIDs  []string
}

// Result summarizes one vendor's sync.
type Result struct {
	VendorID        uuid.UUID `json:"vendor_id"`
	ProductsCreated int       `json:"products_created"`
	ProductsUpdated int       `json:"products_updated"`
	SalesImported   int       `json:"sales_imported"`
	SalesSkipped    int       `json:"sales_skipped"`
	Degraded        bool      `json:"degraded"`
}

// Service links and syncs Square accounts.
type Service interface {
	Link(ctx context.Context, vendorID uuid.UUID, input LinkInput) error
	Sync(ctx context.Context, vendorID uuid.UUID) (*Result, error)
	SyncAll(ctx context.Context) ([]Result, error)
}

// Params bundles the sync's collaborators.
type Params struct {
	DB            *db.Client
	Connections   *Repository
	Products      *product.Repository
	Sales         *sales.Repository
	Venues        *venues.Repository
	Square        SquareAPI
	Cipher        Cipher
	Logger        *logger.Logger
	RefreshSkew   time.Duration
	SalesLookback time.Duration
	Concurrency   int
	Now           func() time.Time
}

type service struct {
	db          *db.Client
	connections *Repository
	products    *product.Repository
	sales       *sales.Repository
	venues      *venues.Repository
	square      SquareAPI
	cipher      Cipher
	logg        *logger.Logger
	skew        time.Duration
	lookback    time.Duration
	concurrency int
	now         func() time.Time

	// refreshMu serializes token refresh in this process. Holders re-read the
	// connection, so a refresh token is sent to Square at most once.
	refreshMu sync.Mutex
}

func NewService(p Params) (Service, error) {
	switch {
	case p.DB == nil:
		return nil, fmt.Errorf("db client required")
	case p.Connections == nil || p.Products == nil || p.Sales == nil || p.Venues == nil:
		return nil, fmt.Errorf("repositories required")
	case p.Square == nil:
		return nil, fmt.Errorf("square client required")
	case p.Cipher == nil:
		return nil, fmt.Errorf("token cipher required")
	case p.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	if p.SalesLookback <= 0 {
		p.SalesLookback = 90 * 24 * time.Hour
	}
	if p.Concurrency <= 0 {
		p.Concurrency = defaultConcurrency
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &service{
		db:          p.DB,
		connections: p.Connections,
		products:    p.Products,
		sales:       p.Sales,
		venues:      p.Venues,
		square:      p.Square,
		cipher:      p.Cipher,
		logg:        p.Logger,
		skew:        p.RefreshSkew,
		lookback:    p.SalesLookback,
		concurrency: p.Concurrency,
		now:         p.Now,
	}, nil
}

func (s *service) Link(ctx context.Context, vendorID uuid.UUID, input LinkInput) error {
	if strings.TrimSpace(input.AccessToken) == "" || strings.TrimSpace(input.RefreshToken) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "access and refresh tokens are required")
	}
	if len(input.LocationIDs) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one location id is required")
	}
	ad := vendorID.String()
	accessCipher, err := s.cipher.Seal(input.AccessToken, ad)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "seal access token")
	}
	refreshCipher, err := s.cipher.Seal(input.RefreshToken, ad)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "seal refresh token")
	}
	conn := &models.SquareConnection{
		VendorID:     vendorID,
		MerchantID:   strings.TrimSpace(input.MerchantID),
		AccessToken:  accessCipher,
		RefreshToken: refreshCipher,
		ExpiresAt:    input.ExpiresAt.UTC(),
		LocationIDs:  datatypes.NewJSONType(input.LocationIDs),
	}
	return s.db.WithTenantTx(ctx, vendorID, func(tx *gorm.DB) error {
		return s.connections.WithTx(tx).Upsert(ctx, conn)
	})
}

// Sync refreshes the token if needed, then upserts the catalog and appends new
// orders. A degraded catalog fetch skips the sales pass, since orders cannot be
// mapped to products without it.
func (s *service) Sync(ctx context.Context, vendorID uuid.UUID) (*Result, error) {
	ctx = s.logg.WithVendorID(ctx, vendorID.String())
	conn, err := db.InTenant(ctx, s.db, vendorID, func(ctx context.Context) (*models.SquareConnection, error) {
		return s.connections.FindByVendor(ctx, vendorID)
	})
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "square account not linked")
	}

	token, err := s.accessToken(ctx, conn)
	if err != nil {
		return nil, err
	}

	result := &Result{VendorID: vendorID}
	catalog := s.square.FetchCatalog(ctx, vendorID.String(), token)
	if catalog.Value == nil {
		result.Degraded = true
		s.logg.Warn(ctx, "square catalog unavailable; sync skipped")
		return result, nil
	}
	result.Degraded = catalog.Degraded

	now := s.now().UTC()
	if err := s.syncCatalog(ctx, vendorID, catalog.Value.Items, result); err != nil {
		return nil, err
	}
	if catalog.Degraded {
		// Stale catalog: products are refreshed from cache but sales wait for a live one.
		if err := s.markSynced(ctx, vendorID, &now, nil); err != nil {
			return nil, err
		}
		return result, nil
	}

	from := now.Add(-s.lookback)
	if conn.LastSalesSyncAt != nil && conn.LastSalesSyncAt.After(from) {
		from = conn.LastSalesSyncAt.UTC()
	}
	orders, err := s.square.SearchCompletedOrders(ctx, token, square.OrderSearchParams{
		LocationIDs: conn.LocationIDs.Data(),
		ClosedFrom:  from,
		ClosedTo:    now,
	})
	if err != nil {
		return nil, err
	}
	if err := s.syncSales(ctx, vendorID, *catalog.Value, orders, result); err != nil {
		return nil, err
	}
	if err := s.markSynced(ctx, vendorID, &now, &now); err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"products_created": result.ProductsCreated,
		"products_updated": result.ProductsUpdated,
		"sales_imported":   result.SalesImported,
		"sales_skipped":    result.SalesSkipped,
	}), "square sync complete")
	return result, nil
}

// SyncAll syncs every linked vendor. One vendor failing does not stop the
// others; the errors are combined.
func (s *service) SyncAll(ctx context.Context) ([]Result, error) {
	var vendorIDs []uuid.UUID
	err := s.db.WithSystemTx(ctx, func(tx *gorm.DB) error {
		ids, err := s.connections.WithTx(tx).ListVendorIDs(ctx)
		vendorIDs = ids
		return err
	})
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		results []Result
		errs    error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range vendorIDs {
		g.Go(func() error {
			res, err := s.Sync(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("vendor %s: %w", id, err))
				return nil
			}
			results = append(results, *res)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].VendorID.String() < results[j].VendorID.String()
	})
	return results, errs
}

func (s *service) markSynced(ctx context.Context, vendorID uuid.UUID, catalogAt, salesAt *time.Time) error {
	return s.db.TenantScope(ctx, vendorID, func(ctx context.Context) error {
		return s.connections.MarkSynced(ctx, vendorID, catalogAt, salesAt)
	})
}

func (s *service) accessToken(ctx context.Context, conn *models.SquareConnection) (string, error) {
	if !square.NeedsRefresh(conn.ExpiresAt, s.now().UTC(), s.skew) {
		return s.openAccess(conn)
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	// conn was read before the lock; another sync may have rotated the tokens since.
	current, err := db.InTenant(ctx, s.db, conn.VendorID, func(ctx context.Context) (*models.SquareConnection, error) {
		return s.connections.FindByVendor(ctx, conn.VendorID)
	})
	if err != nil {
		return "", err
	}
	if current == nil {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "square account not linked")
	}
	if !square.NeedsRefresh(current.ExpiresAt, s.now().UTC(), s.skew) {
		return s.openAccess(current)
	}

	ad := current.VendorID.String()
	refresh, err := s.cipher.Open(current.RefreshToken, ad)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "open square refresh token")
	}
	grant, err := s.square.RefreshToken(ctx, refresh)
	if err != nil {
		return "", err
	}
	accessCipher, err := s.cipher.Seal(grant.AccessToken, ad)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "seal access token")
	}
	refreshCipher, err := s.cipher.Seal(grant.RefreshToken, ad)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "seal refresh token")
	}
	err = s.db.WithTenantTx(ctx, current.VendorID, func(tx *gorm.DB) error {
		return s.connections.WithTx(tx).UpdateTokens(ctx, current.VendorID, accessCipher, refreshCipher, grant.ExpiresAt)
	})
	if err != nil {
		return "", err
	}
	s.logg.Info(ctx, "square token refreshed")
	return grant.AccessToken, nil
}

func (s *service) openAccess(conn *models.SquareConnection) (string, error) {
	token, err := s.cipher.Open(conn.AccessToken, conn.VendorID.String())
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "open square access token")
	}
	return token, nil
}

func (s *service) syncCatalog(ctx context.Context, vendorID uuid.UUID, items []square.CatalogItem, result *Result) error {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return s.db.WithTenantTx(ctx, vendorID, func(tx *gorm.DB) error {
		repo := s.products.WithTx(tx)
		existing, err := repo.FindBySquareCatalogIDs(ctx, vendorID, ids)
		if err != nil {
			return err
		}
		for _, item := range items {
			price, ok := CatalogPrice(item)
			if !ok {
				continue
			}
			if current, found := existing[item.ID]; found {
				if current.Name == item.Name && current.Price.Equal(price) {
					continue
				}
				current.Name = item.Name
				current.Price = price
				if err := repo.Save(ctx, &current); err != nil {
					return err
				}
				result.ProductsUpdated++
				continue
			}
			catalogID := item.ID
			if err := repo.Create(ctx, &models.Product{
				VendorID:        vendorID,
				Name:            item.Name,
				Price:           price,
				Unit:            defaultUnit,
				IsActive:        true,
				SquareCatalogID: &catalogID,
			}); err != nil {
				return err
			}
			result.ProductsCreated++
		}
		return nil
	})
}

func (s *service) syncSales(ctx context.Context, vendorID uuid.UUID, catalog square.Catalog, orders []square.Order, result *Result) error {
	if len(orders) == 0 {
		return nil
	}
	variationToItem := catalog.VariationIndex()
	itemIDs := make([]string, 0, len(catalog.Items))
	for _, item := range catalog.Items {
		itemIDs = append(itemIDs, item.ID)
	}
	orderIDs := make([]string, 0, len(orders))
	for _, o := range orders {
		orderIDs = append(orderIDs, o.ID)
	}

	return s.db.WithTenantTx(ctx, vendorID, func(tx *gorm.DB) error {
		productsByItem, err := s.products.WithTx(tx).FindBySquareCatalogIDs(ctx, vendorID, itemIDs)
		if err != nil {
			return err
		}
		venueByLocation, err := s.venues.WithTx(tx).MapBySquareLocation(ctx, vendorID)
		if err != nil {
			return err
		}
		salesRepo := s.sales.WithTx(tx)
		seen, err := salesRepo.ExistingSquareOrders(ctx, vendorID, orderIDs)
		if err != nil {
			return err
		}

		for _, order := range orders {
			if _, dup := seen[order.ID]; dup {
				result.SalesSkipped++
				continue
			}
			sale := buildSale(vendorID, order, variationToItem, productsByItem, venueByLocation)
			if sale == nil {
				result.SalesSkipped++
				continue
			}
			if err := salesRepo.Create(ctx, sale); err != nil {
				return err
			}
			seen[order.ID] = struct{}{}
			result.SalesImported++
		}
		return nil
	})
}

// buildSale maps an order onto a sale, dropping lines whose variation is not
// a known product. Orders with no mappable lines yield nil.
func buildSale(vendorID uuid.UUID, order square.Order, variationToItem map[string]string, productsByItem map[string]models.Product, venueByLocation map[string]uuid.UUID) *models.Sale {
	var lines []models.SaleLineItem
	for _, li := range order.LineItems {
		itemID, ok := variationToItem[li.CatalogObjectID]
		if !ok {
			continue
		}
		p, ok := productsByItem[itemID]
		if !ok || li.Quantity <= 0 {
			continue
		}
		lines = append(lines, models.SaleLineItem{
			ProductID: p.ID,
			Quantity:  li.Quantity,
			UnitPrice: centsToDecimal(li.UnitPriceCents),
		})
	}
	if len(lines) == 0 {
		return nil
	}
	orderID := order.ID
	sale := &models.Sale{
		VendorID:      vendorID,
		SaleDate:      order.ClosedAt.UTC(),
		TotalAmount:   centsToDecimal(order.TotalCents),
		Source:        enums.SaleSourceSquare,
		SquareOrderID: &orderID,
		LineItems:     lines,
	}
	if venueID, ok := venueByLocation[order.LocationID]; ok {
		sale.VenueID = &venueID
	}
	return sale
}

// CatalogPrice is the cheapest priced variation. Items without any priced
// variation are not imported.
func CatalogPrice(item square.CatalogItem) (decimal.Decimal, bool) {
	var (
		best  int64
		found bool
	)
	for _, v := range item.Variations {
		if v.PriceCents <= 0 {
			continue
		}
		if !found || v.PriceCents < best {
			best = v.PriceCents
			found = true
		}
	}
	if !found {
		return decimal.Zero, false
	}
	return centsToDecimal(best), true
}

func centsToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
