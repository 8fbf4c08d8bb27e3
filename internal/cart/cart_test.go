package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/freshcut/chickenshop/pkg/errors"
)

func drumstick(pieceKg string) ProductSnapshot {
	return ProductSnapshot{
		ID:            "prod-drumstick",
		Name:          "Drumstick",
		PricePerKg:    decimal.RequireFromString("280"),
		PieceWeightKg: decimal.RequireFromString(pieceKg),
	}
}

func TestAddMergesSameProductAndPieceWeight(t *testing.T) {
	var c Cart
	require.NoError(t, c.Add(drumstick("0.5"), 1))
	require.NoError(t, c.Add(drumstick("0.5"), 1))

	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.True(t, c.Items[0].WeightKg.Equal(decimal.RequireFromString("1.0")), c.Items[0].WeightKg.String())
}

func TestAddKeepsDifferentPieceWeightsSeparate(t *testing.T) {
	var c Cart
	require.NoError(t, c.Add(drumstick("0.5"), 1))
	require.NoError(t, c.Add(drumstick("1"), 2))

	require.Len(t, c.Items, 2)
	assert.Equal(t, 3, c.Count())
	assert.True(t, c.TotalWeightKg().Equal(decimal.RequireFromString("2.5")))
}

func TestAddMatchesEquivalentDecimals(t *testing.T) {
	var c Cart
	require.NoError(t, c.Add(drumstick("0.5"), 1))
	require.NoError(t, c.Add(drumstick("0.500"), 3))

	require.Len(t, c.Items, 1)
	assert.Equal(t, 4, c.Items[0].Quantity)
	assert.True(t, c.Items[0].WeightKg.Equal(decimal.RequireFromString("2")))
}

func TestAddValidates(t *testing.T) {
	var c Cart
	err := c.Add(drumstick("0.5"), 0)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	require.Error(t, c.Add(drumstick("0"), 1))
	require.Error(t, c.Add(ProductSnapshot{PieceWeightKg: decimal.NewFromInt(1)}, 1))
	assert.True(t, c.IsEmpty())
}

func TestSetQuantityRecomputesWeight(t *testing.T) {
	var c Cart
	require.NoError(t, c.Add(drumstick("0.5"), 1))

	require.NoError(t, c.SetQuantity("prod-drumstick", decimal.RequireFromString("0.5"), 5))
	assert.Equal(t, 5, c.Items[0].Quantity)
	assert.True(t, c.Items[0].WeightKg.Equal(decimal.RequireFromString("2.5")))

	require.NoError(t, c.SetQuantity("prod-drumstick", decimal.RequireFromString("0.5"), 0))
	assert.True(t, c.IsEmpty())

	err := c.SetQuantity("prod-drumstick", decimal.RequireFromString("0.5"), 1)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestRemoveAndTotals(t *testing.T) {
	var c Cart
	require.NoError(t, c.Add(drumstick("0.5"), 3))
	breast := ProductSnapshot{ID: "prod-breast", PricePerKg: decimal.RequireFromString("320"), PieceWeightKg: decimal.RequireFromString("0.25")}
	require.NoError(t, c.Add(breast, 2))

	// 1.5kg * 280 + 0.5kg * 320
	assert.True(t, c.TotalAmount().Equal(decimal.RequireFromString("580")), c.TotalAmount().String())

	c.Remove("prod-drumstick", decimal.RequireFromString("0.5"))
	c.Remove("prod-missing", decimal.RequireFromString("0.5"))
	require.Len(t, c.Items, 1)
	assert.Equal(t, "prod-breast", c.Items[0].Product.ID)
}
