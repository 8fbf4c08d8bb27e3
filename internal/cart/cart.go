package cart

import (
	"github.com/shopspring/decimal"

	"github.com/freshcut/chickenshop/pkg/db/models"
	pkgerrors "github.com/freshcut/chickenshop/pkg/errors"
)

// ProductSnapshot is the catalog data captured when an item is added.
type ProductSnapshot struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	PricePerKg    decimal.Decimal `json:"price_per_kg"`
	PieceWeightKg decimal.Decimal `json:"piece_weight_kg"`
	ImageURL      *string         `json:"image_url,omitempty"`
}

// SnapshotOf copies the fields a cart line needs from a catalog row.
func SnapshotOf(p models.Product) ProductSnapshot {
	return ProductSnapshot{
		ID:            p.ID,
		Name:          p.Name,
		PricePerKg:    p.PricePerKg,
		PieceWeightKg: p.PieceWeightKg,
		ImageURL:      p.ImageURL,
	}
}

// LineItem is one cart line. WeightKg is always PieceWeightKg × Quantity.
type LineItem struct {
	Product  ProductSnapshot `json:"product"`
	Quantity int             `json:"quantity"`
	WeightKg decimal.Decimal `json:"weight_kg"`
}

// Subtotal prices the line's total weight.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.WeightKg.Mul(li.Product.PricePerKg).Round(2)
}

func (li LineItem) matches(productID string, pieceWeight decimal.Decimal) bool {
	return li.Product.ID == productID && li.Product.PieceWeightKg.Equal(pieceWeight)
}

// Cart is an ordered list of line items, merged on (product id, piece weight).
type Cart struct {
	Items []LineItem `json:"items"`
}

// Add appends quantity pieces of p, merging into an existing line with the
// same product and piece weight.
func (c *Cart) Add(p ProductSnapshot, quantity int) error {
	if p.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if !p.PieceWeightKg.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "piece weight must be positive")
	}

	added := p.PieceWeightKg.Mul(decimal.NewFromInt(int64(quantity)))
	for i := range c.Items {
		if c.Items[i].matches(p.ID, p.PieceWeightKg) {
			c.Items[i].Quantity += quantity
			c.Items[i].WeightKg = c.Items[i].WeightKg.Add(added)
			return nil
		}
	}
	c.Items = append(c.Items, LineItem{Product: p, Quantity: quantity, WeightKg: added})
	return nil
}

// SetQuantity replaces a line's quantity. A non-positive quantity removes it.
func (c *Cart) SetQuantity(productID string, pieceWeight decimal.Decimal, quantity int) error {
	for i := range c.Items {
		if !c.Items[i].matches(productID, pieceWeight) {
			continue
		}
		if quantity <= 0 {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return nil
		}
		c.Items[i].Quantity = quantity
		c.Items[i].WeightKg = pieceWeight.Mul(decimal.NewFromInt(int64(quantity)))
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
}

// Remove drops a line. Removing a missing line is not an error.
func (c *Cart) Remove(productID string, pieceWeight decimal.Decimal) {
	for i := range c.Items {
		if c.Items[i].matches(productID, pieceWeight) {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return
		}
	}
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// Count returns the number of pieces across all lines.
func (c *Cart) Count() int {
	total := 0
	for _, li := range c.Items {
		total += li.Quantity
	}
	return total
}

func (c *Cart) TotalWeightKg() decimal.Decimal {
	total := decimal.Zero
	for _, li := range c.Items {
		total = total.Add(li.WeightKg)
	}
	return total
}

func (c *Cart) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, li := range c.Items {
		total = total.Add(li.Subtotal())
	}
	return total
}
