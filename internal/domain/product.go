package domain

import "time"

// Product — срез каталога, который нужен движку заказов: цена, название,
// признак активности и складской остаток. Остальными полями каталога владеет
// внешний сервис.
type Product struct {
	ID         string
	Name       string
	Slug       string
	PriceMinor int64
	StockQty   int32
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
