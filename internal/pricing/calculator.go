// Package pricing считает суммы заказа из позиций корзины. Расчёт чистый и
// детерминированный: никаких обращений к хранилищу или внешним сервисам.
package pricing

import "github.com/vladislavdragonenkov/shop/internal/domain"

const (
	// Налог — единая плоская ставка 10%.
	taxRatePercent = 10

	// FreeShippingThresholdMinor — порог бесплатной доставки. Граница строгая:
	// subtotal, равный порогу, ещё оплачивает доставку.
	FreeShippingThresholdMinor int64 = 100_000
	// ShippingFeeMinor — фиксированная стоимость доставки ниже порога.
	ShippingFeeMinor int64 = 10_000
)

// Quote — результат расчёта. Все суммы в минимальных денежных единицах.
type Quote struct {
	SubtotalMinor int64
	TaxMinor      int64
	ShippingMinor int64
	DiscountMinor int64
	TotalMinor    int64
}

// Calculate выводит суммы заказа из позиций и непрозрачной скидки корзины.
// total = subtotal + tax + shipping - discount.
func Calculate(items []domain.CartItem, discountMinor int64) Quote {
	var subtotal int64
	for _, item := range items {
		subtotal += int64(item.Qty) * item.PriceMinor
	}

	tax := subtotal * taxRatePercent / 100

	shipping := ShippingFeeMinor
	if subtotal > FreeShippingThresholdMinor {
		shipping = 0
	}

	return Quote{
		SubtotalMinor: subtotal,
		TaxMinor:      tax,
		ShippingMinor: shipping,
		DiscountMinor: discountMinor,
		TotalMinor:    subtotal + tax + shipping - discountMinor,
	}
}
