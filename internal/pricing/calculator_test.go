package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

func TestCalculate_Formula(t *testing.T) {
	items := []domain.CartItem{
		{ProductID: "p1", Qty: 2, PriceMinor: 30_000},
		{ProductID: "p2", Qty: 1, PriceMinor: 55_000},
	}

	q := Calculate(items, 5_000)

	assert.Equal(t, int64(115_000), q.SubtotalMinor)
	assert.Equal(t, int64(11_500), q.TaxMinor)
	assert.Equal(t, int64(0), q.ShippingMinor, "subtotal above threshold ships free")
	assert.Equal(t, int64(5_000), q.DiscountMinor)
	assert.Equal(t, q.SubtotalMinor+q.TaxMinor+q.ShippingMinor-q.DiscountMinor, q.TotalMinor)
}

func TestCalculate_ShippingBoundary(t *testing.T) {
	// Ровно на пороге: доставка всё ещё платная, граница строгая.
	items := []domain.CartItem{{ProductID: "p1", Qty: 2, PriceMinor: 50_000}}

	q := Calculate(items, 0)

	assert.Equal(t, int64(100_000), q.SubtotalMinor)
	assert.Equal(t, int64(10_000), q.TaxMinor)
	assert.Equal(t, ShippingFeeMinor, q.ShippingMinor)
	assert.Equal(t, int64(120_000), q.TotalMinor)
}

func TestCalculate_JustAboveThreshold(t *testing.T) {
	items := []domain.CartItem{{ProductID: "p1", Qty: 1, PriceMinor: 100_001}}

	q := Calculate(items, 0)

	assert.Equal(t, int64(0), q.ShippingMinor)
}

func TestCalculate_EmptyItems(t *testing.T) {
	q := Calculate(nil, 0)

	assert.Equal(t, int64(0), q.SubtotalMinor)
	assert.Equal(t, int64(0), q.TaxMinor)
	assert.Equal(t, ShippingFeeMinor, q.ShippingMinor)
	assert.Equal(t, ShippingFeeMinor, q.TotalMinor)
}

func TestCalculate_Deterministic(t *testing.T) {
	items := []domain.CartItem{{ProductID: "p1", Qty: 3, PriceMinor: 19_999}}

	first := Calculate(items, 1_000)
	second := Calculate(items, 1_000)

	if first != second {
		t.Fatalf("expected identical quotes, got %+v and %+v", first, second)
	}
}
