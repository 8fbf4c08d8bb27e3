package validators

import (
	"strings"

	pkgerrors "github.com/freshcut/chickenshop/pkg/errors"
	"github.com/shopspring/decimal"
)

// ParsePositiveDecimal reads a kilogram or currency amount that must be above zero.
func ParsePositiveDecimal(field, raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "must be a decimal number").WithDetails(map[string]any{"field": field})
	}
	if !value.IsPositive() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "must be greater than zero").WithDetails(map[string]any{"field": field})
	}
	return value, nil
}
