package domain

import "time"

// CartItem — позиция корзины с ценой, зафиксированной в момент добавления.
type CartItem struct {
	ProductID   string     `json:"product_id"`
	ProductName string     `json:"product_name"`
	Qty         int32      `json:"qty"`
	PriceMinor  int64      `json:"price_minor"`
	Attributes  Attributes `json:"attributes"`
}

// Cart хранит позиции пользователя до оформления заказа. Корзина одна на
// пользователя и создаётся лениво при первом обращении.
type Cart struct {
	ID     string     `json:"id"`
	UserID UserID     `json:"user_id"`
	Items  []CartItem `json:"items"`

	SubtotalMinor int64 `json:"subtotal_minor"`
	// DiscountMinor — скидка корзины; принимается как непрозрачный вход,
	// расчёт купонов лежит вне этого сервиса.
	DiscountMinor       int64  `json:"discount_minor"`
	CouponCode          string `json:"coupon_code,omitempty"`
	CouponDiscountMinor int64  `json:"coupon_discount_minor"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecalculateTotals пересчитывает производные суммы после любой мутации позиций.
func (c *Cart) RecalculateTotals() {
	var subtotal int64
	for _, item := range c.Items {
		subtotal += int64(item.Qty) * item.PriceMinor
	}
	c.SubtotalMinor = subtotal
}

// FindItem возвращает индекс позиции с данным товаром и атрибутами или -1.
func (c *Cart) FindItem(productID string, attrs Attributes) int {
	for i, item := range c.Items {
		if item.ProductID == productID && item.Attributes == attrs {
			return i
		}
	}
	return -1
}

// IsEmpty сообщает, пуста ли корзина.
func (c *Cart) IsEmpty() bool { return len(c.Items) == 0 }
