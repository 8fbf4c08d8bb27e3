package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/freshcut/chickenshop/pkg/enums"
)

// Order is a single customer purchase. Status transitions are applied by the
// backend and staff actions; this service only observes them.
type Order struct {
	ID              string            `gorm:"type:text;primaryKey" json:"id"`
	UserID          string            `gorm:"type:text;not null;index" json:"user_id"`
	ProductID       string            `gorm:"type:text;not null" json:"product_id"`
	ProductName     *string           `gorm:"column:product_name;->;-:migration" json:"product_name,omitempty"`
	Quantity        int               `gorm:"not null;default:1" json:"quantity"`
	WeightKg        decimal.Decimal   `gorm:"type:numeric(10,3);not null" json:"weight_kg"`
	TotalAmount     decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	DeliveryAddress string            `gorm:"type:text;not null" json:"delivery_address"`
	Status          enums.OrderStatus `gorm:"type:text;not null;index" json:"status"`
	CreatedAt       time.Time         `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func (Order) TableName() string { return "orders" }

// DisplayProductName returns the joined product name, if present.
func (o Order) DisplayProductName() string {
	if o.ProductName == nil {
		return ""
	}
	return *o.ProductName
}
