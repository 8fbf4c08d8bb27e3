// Package rpc calls the backend's stored procedures. Business rules such as
// credential checks, stock movement and metrics live there; this package
// only marshals arguments and surfaces the backend's error message.
package rpc

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/freshcut/chickenshop/pkg/enums"
	pkgerrors "github.com/freshcut/chickenshop/pkg/errors"
)

const MetricDeliveredOrders = "delivered_orders"

type querier interface {
	Raw(ctx context.Context, query string, args ...any) *gorm.DB
}

type Client struct {
	db querier
}

func NewClient(db querier) (*Client, error) {
	if db == nil {
		return nil, errors.New("database required")
	}
	return &Client{db: db}, nil
}

// Identity is what authenticate_user returns for valid credentials.
type Identity struct {
	UserID      string     `json:"id"`
	Username    string     `json:"username"`
	DisplayName *string    `json:"display_name"`
	Role        enums.Role `json:"role"`
}

type NewUser struct {
	Username    string
	Password    string
	DisplayName string
	Phone       string
}

// Authenticate checks credentials. A null result means they did not match.
func (c *Client) Authenticate(ctx context.Context, username, password string) (*Identity, error) {
	raw, err := c.scalarString(ctx, "SELECT authenticate_user(?, ?) AS result", username, password)
	if err != nil {
		return nil, err
	}
	if !raw.Valid || strings.TrimSpace(raw.String) == "" || raw.String == "null" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid username or password")
	}
	var id Identity
	if err := json.Unmarshal([]byte(raw.String), &id); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unexpected authenticate_user result")
	}
	if id.UserID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid username or password")
	}
	if !id.Role.IsValid() {
		id.Role = enums.RoleCustomer
	}
	return &id, nil
}

// CreateUser registers a customer and returns the new user id.
func (c *Client) CreateUser(ctx context.Context, in NewUser) (string, error) {
	raw, err := c.scalarString(ctx, "SELECT create_user(?, ?, ?, ?) AS result",
		in.Username, in.Password, nullable(in.DisplayName), nullable(in.Phone))
	if err != nil {
		return "", err
	}
	if !raw.Valid || raw.String == "" {
		return "", pkgerrors.New(pkgerrors.CodeBackend, "create_user returned no id")
	}
	return raw.String, nil
}

// ButcherChicken moves live stock into the cut product's stock.
func (c *Client) ButcherChicken(ctx context.Context, productID string, weightKg decimal.Decimal) error {
	if !weightKg.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "weight must be positive")
	}
	_, err := c.scalarString(ctx, "SELECT butcher_chicken(?, ?) AS result", productID, weightKg)
	return err
}

// RecordWaste writes off stock for a product.
func (c *Client) RecordWaste(ctx context.Context, productID string, weightKg decimal.Decimal, reason string) error {
	if !weightKg.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "weight must be positive")
	}
	_, err := c.scalarString(ctx, "SELECT record_waste(?, ?, ?) AS result", productID, weightKg, nullable(reason))
	return err
}

func (c *Client) GetMetric(ctx context.Context, name string) (int64, error) {
	var v sql.NullInt64
	if err := c.db.Raw(ctx, "SELECT get_metric(?) AS result", name).Row().Scan(&v); err != nil {
		return 0, pkgerrors.Backend(err)
	}
	return v.Int64, nil
}

// IncrementMetric adds delta and returns the new value.
func (c *Client) IncrementMetric(ctx context.Context, name string, delta int64) (int64, error) {
	var v sql.NullInt64
	if err := c.db.Raw(ctx, "SELECT increment_metric(?, ?) AS result", name, delta).Row().Scan(&v); err != nil {
		return 0, pkgerrors.Backend(err)
	}
	return v.Int64, nil
}

func (c *Client) scalarString(ctx context.Context, query string, args ...any) (sql.NullString, error) {
	var v sql.NullString
	if err := c.db.Raw(ctx, query, args...).Row().Scan(&v); err != nil {
		return sql.NullString{}, pkgerrors.Backend(err)
	}
	return v, nil
}

func nullable(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
