package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/marketprep-backend/internal/dbtest"
	"github.com/angelmondragon/marketprep-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestNewBaseStoresConnection(t *testing.T) {
	conn := dbtest.Open(t).DB()
	base := NewBase(conn)

	if base.Conn() != conn {
		t.Fatalf("expected base db to match provided connection")
	}
}

func TestBaseDB_BindsContext(t *testing.T) {
	conn := dbtest.Open(t).DB()
	base := NewBase(conn)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	withCtx := base.DB(ctx)

	if withCtx.Statement == nil || withCtx.Statement.Context != ctx {
		t.Fatalf("expected context to flow through")
	}
	//nolint:staticcheck // nil context is part of the contract
	if base.DB(nil) != conn {
		t.Fatalf("expected nil context to return raw connection")
	}
}

func TestBaseTenantFiltersVendor(t *testing.T) {
	conn := dbtest.Open(t).DB()
	base := NewBase(conn)
	ctx := context.Background()

	vendorA, vendorB := uuid.New(), uuid.New()
	for _, v := range []uuid.UUID{vendorA, vendorA, vendorB} {
		require.NoError(t, conn.Create(&models.Product{VendorID: v, Name: "jam", Price: decimal.NewFromInt(4), IsActive: true}).Error)
	}

	var rows []models.Product
	require.NoError(t, base.Tenant(ctx, vendorA).Find(&rows).Error)
	require.Len(t, rows, 2)
	for _, p := range rows {
		require.Equal(t, vendorA, p.VendorID)
	}

	var count int64
	require.NoError(t, base.Tenant(ctx, uuid.New()).Model(&models.Product{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestBaseDBJoinsContextTransaction(t *testing.T) {
	client := dbtest.Open(t)
	base := NewBase(client.DB())
	vendor := uuid.New()

	err := client.TenantScope(context.Background(), vendor, func(ctx context.Context) error {
		if err := base.DB(ctx).Create(&models.Product{VendorID: vendor, Name: "honey", Price: decimal.NewFromInt(9), IsActive: true}).Error; err != nil {
			return err
		}
		var count int64
		require.NoError(t, base.Tenant(ctx, vendor).Model(&models.Product{}).Count(&count).Error)
		require.Equal(t, int64(1), count)
		return errRollback
	})
	require.ErrorIs(t, err, errRollback)

	var count int64
	require.NoError(t, base.Tenant(context.Background(), vendor).Model(&models.Product{}).Count(&count).Error)
	require.Zero(t, count)
}

var errRollback = errors.New("rollback")
