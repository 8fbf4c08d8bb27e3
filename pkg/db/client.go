package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/freshcut/chickenshop/pkg/config"
	"github.com/freshcut/chickenshop/pkg/logger"
)

// Client owns the pooled GORM connection shared by every repository.
type Client struct {
	conn *gorm.DB
}

// New opens the configured driver, applies the pool limits and routes slow
// queries to logg.
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database DSN is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}

	conn, err := gorm.Open(dialector(cfg), &gorm.Config{
		Logger:                 slowQueryLogger(logg, cfg.SlowQuery),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s connection: %w", cfg.Driver, err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("sql handle: %w", err)
	}
	for _, apply := range []func(){
		func() { sqlDB.SetMaxOpenConns(cfg.MaxOpenConns) },
		func() { sqlDB.SetMaxIdleConns(cfg.MaxIdleConns) },
		func() { sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime) },
		func() { sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime) },
	} {
		apply()
	}

	logg.Info(logg.WithField(ctx, "driver", cfg.Driver), "database connection established")
	return &Client{conn: conn}, nil
}

// Wrap adopts an already opened connection.
func Wrap(conn *gorm.DB) *Client {
	return &Client{conn: conn}
}

func dialector(cfg config.DBConfig) gorm.Dialector {
	if cfg.IsSQLite() {
		return sqlite.Open(cfg.DSN)
	}
	// pgbouncer in transaction mode cannot hold prepared statements
	return postgres.New(postgres.Config{DSN: cfg.DSN, PreferSimpleProtocol: true})
}

// slowQueryLogger reports only queries slower than threshold and never the
// record-not-found noise repositories already handle.
func slowQueryLogger(logg *logger.Logger, threshold time.Duration) gormlogger.Interface {
	level := gormlogger.Warn
	if threshold <= 0 {
		level = gormlogger.Silent
	}
	return gormlogger.New(slowQueryWriter{logg: logg}, gormlogger.Config{
		SlowThreshold:             threshold,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		ParameterizedQueries:      true,
	})
}

type slowQueryWriter struct {
	logg *logger.Logger
}

func (w slowQueryWriter) Printf(format string, args ...any) {
	w.logg.Warn(w.logg.WithField(context.Background(), "component", "gorm"), fmt.Sprintf(format, args...))
}

func (c *Client) IsSQLite() bool {
	return c.conn.Dialector.Name() == "sqlite"
}

func (c *Client) DB() *gorm.DB {
	return c.conn
}

func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Client) Close() error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Raw runs a query bound to ctx; stored procedure calls go through here.
func (c *Client) Raw(ctx context.Context, query string, args ...any) *gorm.DB {
	return c.conn.WithContext(ctx).Raw(query, args...)
}

// WithTx runs fn in one transaction. An error or panic from fn rolls back.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.conn.WithContext(ctx).Transaction(fn)
}
