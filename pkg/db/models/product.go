package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Pieces are sold by count; PieceWeightKg is the
// nominal weight of one piece and PricePerKg prices the total weight.
type Product struct {
	ID            string          `gorm:"type:text;primaryKey" json:"id"`
	Name          string          `gorm:"type:text;not null" json:"name"`
	Description   *string         `gorm:"type:text" json:"description,omitempty"`
	PricePerKg    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price_per_kg"`
	PieceWeightKg decimal.Decimal `gorm:"type:numeric(10,3);not null" json:"piece_weight_kg"`
	ImageURL      *string         `gorm:"type:text" json:"image_url,omitempty"`
	StockKg       decimal.Decimal `gorm:"type:numeric(10,3);not null;default:0" json:"stock_kg"`
	IsActive      bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (Product) TableName() string { return "products" }
