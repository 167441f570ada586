package db

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txKey struct{}

// ContextWithTx binds tx to ctx so repositories built on the pool join it.
func ContextWithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the transaction bound by ContextWithTx, if any.
func TxFromContext(ctx context.Context) (*gorm.DB, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	return tx, ok && tx != nil
}

// TenantScope runs fn inside a tenant transaction carried by the context.
// Reads must go through it on Postgres; row-level security hides every
// tenant row from a connection with no vendor set.
func (c *Client) TenantScope(ctx context.Context, vendorID uuid.UUID, fn func(ctx context.Context) error) error {
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}
	return c.WithTenantTx(ctx, vendorID, func(tx *gorm.DB) error {
		return fn(ContextWithTx(ctx, tx))
	})
}

// SystemScope is TenantScope for cross-tenant background jobs.
func (c *Client) SystemScope(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}
	return c.WithSystemTx(ctx, func(tx *gorm.DB) error {
		return fn(ContextWithTx(ctx, tx))
	})
}

// InTenant is TenantScope for calls that return a value.
func InTenant[T any](ctx context.Context, c *Client, vendorID uuid.UUID, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := c.TenantScope(ctx, vendorID, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}
