// Package cart реализует корзину покупателя: единственная корзина на
// пользователя, ленивое создание, снапшот цены в момент добавления.
package cart

import (
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Service выполняет CRUD-операции над корзиной пользователя.
type Service struct {
	carts    domain.CartRepository
	products domain.ProductRepository
	logger   *log.Entry
}

// NewService создаёт сервис корзины.
func NewService(carts domain.CartRepository, products domain.ProductRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "cart-service")
	}
	return &Service{carts: carts, products: products, logger: logger}
}

// Get возвращает корзину пользователя, создавая пустую при первом обращении.
func (s *Service) Get(userID domain.UserID) (domain.Cart, error) {
	if userID == "" {
		return domain.Cart{}, domain.ErrUserRequired
	}

	cart, err := s.carts.GetByUser(userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, domain.ErrCartNotFound) {
		return domain.Cart{}, err
	}

	now := time.Now().UTC()
	cart = domain.Cart{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.carts.Save(cart); err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

// AddItem добавляет товар в корзину или увеличивает количество уже лежащей
// позиции с теми же атрибутами. Цена фиксируется из каталога в момент
// добавления.
func (s *Service) AddItem(userID domain.UserID, productID string, qty int32, attrs domain.Attributes) (domain.Cart, error) {
	if qty <= 0 {
		return domain.Cart{}, domain.ErrItemQtyInvalid
	}

	product, err := s.products.Get(productID)
	if err != nil {
		return domain.Cart{}, err
	}
	if !product.Active {
		return domain.Cart{}, domain.ErrProductInactive
	}
	// Предварительная проверка остатка. Это не резерв: настоящая атомарная
	// проверка происходит при оформлении заказа.
	if product.StockQty < qty {
		return domain.Cart{}, &domain.OutOfStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Requested:   qty,
			Available:   product.StockQty,
		}
	}

	cart, err := s.Get(userID)
	if err != nil {
		return domain.Cart{}, err
	}

	if idx := cart.FindItem(productID, attrs); idx >= 0 {
		cart.Items[idx].Qty += qty
	} else {
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Qty:         qty,
			PriceMinor:  product.PriceMinor,
			Attributes:  attrs,
		})
	}

	return s.saveRecalculated(cart)
}

// UpdateItem устанавливает новое количество позиции. Позиция ищется по паре
// (товар, атрибуты) — те же атрибуты, по которым AddItem разделяет позиции.
func (s *Service) UpdateItem(userID domain.UserID, productID string, qty int32, attrs domain.Attributes) (domain.Cart, error) {
	if qty <= 0 {
		return domain.Cart{}, domain.ErrItemQtyInvalid
	}

	product, err := s.products.Get(productID)
	if err != nil {
		return domain.Cart{}, err
	}
	if product.StockQty < qty {
		return domain.Cart{}, &domain.OutOfStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Requested:   qty,
			Available:   product.StockQty,
		}
	}

	cart, err := s.carts.GetByUser(userID)
	if err != nil {
		return domain.Cart{}, err
	}

	idx := cart.FindItem(productID, attrs)
	if idx < 0 {
		return domain.Cart{}, domain.ErrCartItemNotFound
	}
	cart.Items[idx].Qty = qty

	return s.saveRecalculated(cart)
}

// RemoveItem убирает товар из корзины (все позиции с этим товаром).
func (s *Service) RemoveItem(userID domain.UserID, productID string) (domain.Cart, error) {
	cart, err := s.carts.GetByUser(userID)
	if err != nil {
		return domain.Cart{}, err
	}

	filtered := cart.Items[:0]
	for _, item := range cart.Items {
		if item.ProductID != productID {
			filtered = append(filtered, item)
		}
	}
	cart.Items = filtered

	return s.saveRecalculated(cart)
}

// Clear опустошает корзину и сбрасывает скидки.
func (s *Service) Clear(userID domain.UserID) (domain.Cart, error) {
	cart, err := s.carts.GetByUser(userID)
	if err != nil {
		return domain.Cart{}, err
	}

	cart.Items = nil
	cart.DiscountMinor = 0
	cart.CouponCode = ""
	cart.CouponDiscountMinor = 0

	return s.saveRecalculated(cart)
}

func (s *Service) saveRecalculated(cart domain.Cart) (domain.Cart, error) {
	cart.RecalculateTotals()
	cart.UpdatedAt = time.Now().UTC()
	if err := s.carts.Save(cart); err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}
