package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAdjustAndValidateBuyQuantity(t *testing.T) {
	v := NewValidator(zap.NewNop().Sugar())

	// Affordable order passes through untouched.
	qty, err := v.AdjustAndValidateBuyQuantity(d("1000"), d("5"), d("100"))
	require.NoError(t, err)
	assert.True(t, qty.Equal(d("5")))

	// Too expensive: scaled down to what the balance covers, minus tolerance.
	qty, err = v.AdjustAndValidateBuyQuantity(d("300"), d("5"), d("100"))
	require.NoError(t, err)
	assert.True(t, qty.LessThan(d("3")))
	assert.True(t, qty.GreaterThan(d("2.9")))

	// No balance at all: scaling cannot rescue the order.
	_, err = v.AdjustAndValidateBuyQuantity(d("0"), d("5"), d("100"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestAdjustAndValidateSellQuantity(t *testing.T) {
	v := NewValidator(zap.NewNop().Sugar())

	qty, err := v.AdjustAndValidateSellQuantity(d("10"), d("5"))
	require.NoError(t, err)
	assert.True(t, qty.Equal(d("5")))

	qty, err = v.AdjustAndValidateSellQuantity(d("3"), d("5"))
	require.NoError(t, err)
	assert.True(t, qty.LessThan(d("3")))
	assert.True(t, qty.GreaterThan(d("2.9")))

	_, err = v.AdjustAndValidateSellQuantity(d("0"), d("5"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientCryptoBalance)
}
