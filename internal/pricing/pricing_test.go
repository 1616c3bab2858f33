package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/utafrali/promotion-service/internal/domain"
)

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{1.005, 1.01},
		{1.004, 1.0},
		{-1.005, -1.01},
		{0, 0},
		{99.999, 100.0},
		{80000, 80000},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, Round2(tt.in), 1e-9, "Round2(%v)", tt.in)
	}
}

func TestApply_Percentage(t *testing.T) {
	v := domain.Variant{ID: "v1", ProductID: "p1", BasePrice: 100000}

	got := Apply(v, domain.DiscountTypePercentage, 20, "")

	assert.InDelta(t, 80000, got.DiscountPrice, 1e-9)
	assert.InDelta(t, 20, got.DiscountPercent, 1e-9)
	assert.True(t, got.OnSales)
	assert.Equal(t, DefaultSaleNote, got.SaleNote)
	// The input is not mutated.
	assert.False(t, v.OnSales)
}

func TestApply_FixedAmount(t *testing.T) {
	v := domain.Variant{ID: "v1", ProductID: "p1", BasePrice: 100000}

	got := Apply(v, domain.DiscountTypeFixedAmount, 15000, "Flash sale")

	assert.InDelta(t, 85000, got.DiscountPrice, 1e-9)
	assert.InDelta(t, 15, got.DiscountPercent, 1e-9)
	assert.True(t, got.OnSales)
	assert.Equal(t, "Flash sale", got.SaleNote)
}

func TestApply_ClampsPriceAtZero(t *testing.T) {
	v := domain.Variant{BasePrice: 100}

	got := Apply(v, domain.DiscountTypeFixedAmount, 250, "")

	assert.Zero(t, got.DiscountPrice)
	assert.InDelta(t, 100, got.DiscountPercent, 1e-9, "percent is clamped to 100")
}

func TestApply_ZeroBasePrice(t *testing.T) {
	v := domain.Variant{BasePrice: 0}

	got := Apply(v, domain.DiscountTypeFixedAmount, 50, "")

	assert.Zero(t, got.DiscountPrice)
	assert.Zero(t, got.DiscountPercent)
	assert.True(t, got.OnSales)
}

func TestApply_UnknownTypeIsNoop(t *testing.T) {
	v := domain.Variant{BasePrice: 500}

	got := Apply(v, "buy_x_get_y", 10, "")

	assert.Equal(t, v, got)
}

func TestApply_Idempotent(t *testing.T) {
	v := domain.Variant{BasePrice: 19999.99}

	once := Apply(v, domain.DiscountTypePercentage, 33, "note")
	twice := Apply(once, domain.DiscountTypePercentage, 33, "note")

	assert.Equal(t, once, twice)
}

func TestApply_FractionalRounding(t *testing.T) {
	v := domain.Variant{BasePrice: 19.99}

	got := Apply(v, domain.DiscountTypePercentage, 33, "")

	// 19.99 * 0.67 = 13.3933
	assert.InDelta(t, 13.39, got.DiscountPrice, 1e-9)
}

func TestRevert(t *testing.T) {
	v := domain.Variant{BasePrice: 100000}
	applied := Apply(v, domain.DiscountTypePercentage, 20, "sale")

	reverted := Revert(applied)

	assert.Zero(t, reverted.DiscountPrice)
	assert.Zero(t, reverted.DiscountPercent)
	assert.False(t, reverted.OnSales)
	assert.Empty(t, reverted.SaleNote)
	assert.InDelta(t, 100000, reverted.BasePrice, 1e-9)
}

func TestRevert_Idempotent(t *testing.T) {
	v := domain.Variant{BasePrice: 42, DiscountPrice: 10, DiscountPercent: 76.19, OnSales: true, SaleNote: "x"}

	once := Revert(v)
	twice := Revert(once)

	assert.Equal(t, once, twice)
	assert.Equal(t, Revert(domain.Variant{BasePrice: 42}), once)
}
