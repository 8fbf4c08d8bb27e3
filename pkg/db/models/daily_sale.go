package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailySale is the write-once sale snapshot taken when an order is delivered.
type DailySale struct {
	ID            string          `gorm:"type:text;primaryKey" json:"id"`
	SaleDate      time.Time       `gorm:"not null;index" json:"sale_date"`
	OrderID       string          `gorm:"type:text;not null;uniqueIndex:daily_sales_order_id_key" json:"order_id"`
	CustomerName  *string         `gorm:"type:text" json:"customer_name,omitempty"`
	CustomerPhone *string         `gorm:"type:text" json:"customer_phone,omitempty"`
	ProductID     string          `gorm:"type:text;not null" json:"product_id"`
	ProductName   *string         `gorm:"type:text" json:"product_name,omitempty"`
	Quantity      int             `gorm:"not null" json:"quantity"`
	WeightKg      decimal.Decimal `gorm:"type:numeric(10,3);not null" json:"weight_kg"`
	TotalAmount   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (DailySale) TableName() string { return "daily_sales" }
