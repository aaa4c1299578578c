package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// cartRepositoryInMemory хранит корзины по идентификатору пользователя.
type cartRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[domain.UserID]domain.Cart
}

// NewCartRepository создаёт in-memory реализацию CartRepository.
func NewCartRepository() domain.CartRepository {
	return &cartRepositoryInMemory{items: make(map[domain.UserID]domain.Cart)}
}

// GetByUser возвращает корзину пользователя или ErrCartNotFound.
func (r *cartRepositoryInMemory) GetByUser(userID domain.UserID) (domain.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, ok := r.items[userID]
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	return cloneCart(cart), nil
}

// Save перезаписывает корзину целиком.
func (r *cartRepositoryInMemory) Save(cart domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[cart.UserID] = cloneCart(cart)
	return nil
}

func cloneCart(cart domain.Cart) domain.Cart {
	clone := cart
	clone.Items = make([]domain.CartItem, len(cart.Items))
	copy(clone.Items, cart.Items)
	return clone
}

var _ domain.CartRepository = (*cartRepositoryInMemory)(nil)
