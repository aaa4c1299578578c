package httpapi

import (
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// JSON-представления доменных типов. Заказ отдаётся наружу только через view,
// чтобы сериализация не зависела от внутренней структуры.

type orderItemView struct {
	ID          string            `json:"id"`
	ProductID   string            `json:"product_id"`
	ProductName string            `json:"product_name"`
	Qty         int32             `json:"qty"`
	PriceMinor  int64             `json:"price_minor"`
	Attributes  domain.Attributes `json:"attributes"`
}

type orderView struct {
	ID     string `json:"id"`
	Number string `json:"number"`
	UserID string `json:"user_id"`

	Items []orderItemView `json:"items"`

	SubtotalMinor int64  `json:"subtotal_minor"`
	TaxMinor      int64  `json:"tax_minor"`
	ShippingMinor int64  `json:"shipping_minor"`
	DiscountMinor int64  `json:"discount_minor"`
	TotalMinor    int64  `json:"total_minor"`
	Currency      string `json:"currency"`

	ShippingAddress domain.Address `json:"shipping_address"`
	BillingAddress  domain.Address `json:"billing_address"`
	PaymentMethod   string         `json:"payment_method"`

	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	PaymentID     string `json:"payment_id,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`

	TrackingNumber string `json:"tracking_number,omitempty"`
	Notes          string `json:"notes,omitempty"`

	CancelledAt       *time.Time `json:"cancelled_at,omitempty"`
	CancelReason      string     `json:"cancel_reason,omitempty"`
	RefundAmountMinor int64      `json:"refund_amount_minor,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type timelineEventView struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

func toOrderView(order domain.Order) orderView {
	items := make([]orderItemView, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemView{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Qty:         item.Qty,
			PriceMinor:  item.PriceMinor,
			Attributes:  item.Attributes,
		})
	}

	return orderView{
		ID:                order.ID,
		Number:            order.Number,
		UserID:            string(order.UserID),
		Items:             items,
		SubtotalMinor:     order.SubtotalMinor,
		TaxMinor:          order.TaxMinor,
		ShippingMinor:     order.ShippingMinor,
		DiscountMinor:     order.DiscountMinor,
		TotalMinor:        order.TotalMinor,
		Currency:          order.Currency,
		ShippingAddress:   order.ShippingAddress,
		BillingAddress:    order.BillingAddress,
		PaymentMethod:     string(order.PaymentMethod),
		Status:            string(order.Status),
		PaymentStatus:     string(order.PaymentStatus),
		PaymentID:         order.PaymentID,
		TransactionID:     order.TransactionID,
		TrackingNumber:    order.TrackingNumber,
		Notes:             order.Notes,
		CancelledAt:       order.CancelledAt,
		CancelReason:      order.CancelReason,
		RefundAmountMinor: order.RefundAmountMinor,
		Version:           order.Version,
		CreatedAt:         order.CreatedAt,
		UpdatedAt:         order.UpdatedAt,
	}
}

func toOrderViews(orders []domain.Order) []orderView {
	views := make([]orderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, toOrderView(order))
	}
	return views
}

func toTimelineViews(events []domain.TimelineEvent) []timelineEventView {
	views := make([]timelineEventView, 0, len(events))
	for _, event := range events {
		views = append(views, timelineEventView{
			Type:     event.Type,
			Reason:   event.Reason,
			Occurred: event.Occurred,
		})
	}
	return views
}
