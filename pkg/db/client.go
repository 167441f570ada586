package db

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"

	"github.com/angelmondragon/marketprep-backend/pkg/config"
	"github.com/angelmondragon/marketprep-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	tenantSetting = "app.current_vendor_id"
	bypassSetting = "app.bypass_rls"
)

// Client wraps the shared GORM connection.
type Client struct {
	conn *gorm.DB
}

// Pinger exposes the health check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TxRunner is the transaction surface services depend on.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	WithTenantTx(ctx context.Context, vendorID uuid.UUID, fn func(tx *gorm.DB) error) error
	WithSystemTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// New boots a GORM client; sqlite is selected by the feature flag for local runs.
func New(ctx context.Context, cfg config.DBConfig, useSQLite bool, logg *logger.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	var dialector gorm.Dialector
	if useSQLite {
		dialector = sqlite.Open(cfg.DSN)
	} else {
		dialector = postgres.New(postgres.Config{
			DSN:                  cfg.DSN,
			PreferSimpleProtocol: true,
		})
	}

	conn, err := gorm.Open(dialector, gormConfig())
	if err != nil {
		return nil, fmt.Errorf("opening db connection: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	applyPoolSettings(sqlDB, cfg, useSQLite)

	if logg != nil {
		ctx = logg.WithField(ctx, "dialect", conn.Dialector.Name())
		logg.Info(ctx, "database connection established")
	}

	return &Client{conn: conn}, nil
}

// NewFromGorm wraps an already-open connection (tests, CLI tooling).
func NewFromGorm(conn *gorm.DB) *Client {
	return &Client{conn: conn}
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: gormlogger.New(
			log.New(io.Discard, "", log.LstdFlags),
			gormlogger.Config{LogLevel: gormlogger.Silent},
		),
		SkipDefaultTransaction: true,
	}
}

func applyPoolSettings(sqlDB *sql.DB, cfg config.DBConfig, useSQLite bool) {
	if useSQLite {
		// one writer keeps sqlite from returning SQLITE_BUSY under the API's concurrency
		sqlDB.SetMaxOpenConns(1)
		return
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}

// DB returns the underlying GORM connection.
func (c *Client) DB() *gorm.DB {
	return c.conn
}

// Dialect reports the active driver name.
func (c *Client) Dialect() string {
	return c.conn.Dialector.Name()
}

// Ping verifies the datasource is reachable.
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close shuts down the pooled connections.
func (c *Client) Close() error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Exec wraps GORM's Exec with context propagation.
func (c *Client) Exec(ctx context.Context, query string, args ...any) *gorm.DB {
	return c.conn.WithContext(ctx).Exec(query, args...)
}

// Raw wraps GORM's Raw with context propagation.
func (c *Client) Raw(ctx context.Context, query string, args ...any) *gorm.DB {
	return c.conn.WithContext(ctx).Raw(query, args...)
}

// WithTx executes fn inside a transaction, rolling back on error/panic. When
// ctx already carries a transaction, fn joins it instead of opening another.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if outer, ok := TxFromContext(ctx); ok {
		return fn(outer.WithContext(ctx))
	}
	tx := c.conn.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// WithTenantTx runs fn in a transaction bound to one vendor. On Postgres the
// vendor id is set transaction-locally so row-level security policies apply.
func (c *Client) WithTenantTx(ctx context.Context, vendorID uuid.UUID, fn func(tx *gorm.DB) error) error {
	if vendorID == uuid.Nil {
		return fmt.Errorf("tenant transaction requires a vendor id")
	}
	return c.WithTx(ctx, func(tx *gorm.DB) error {
		if err := c.setLocal(tx, tenantSetting, vendorID.String()); err != nil {
			return err
		}
		return fn(tx)
	})
}

// WithSystemTx runs fn with row-level security bypassed. Only background jobs
// that fan out across vendors use it.
func (c *Client) WithSystemTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.WithTx(ctx, func(tx *gorm.DB) error {
		if err := c.setLocal(tx, bypassSetting, "on"); err != nil {
			return err
		}
		return fn(tx)
	})
}

func (c *Client) setLocal(tx *gorm.DB, key, value string) error {
	if c.Dialect() != DialectPostgres {
		return nil
	}
	if err := tx.Exec("SELECT set_config(?, ?, true)", key, value).Error; err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
