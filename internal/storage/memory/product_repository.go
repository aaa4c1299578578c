package memory

import (
	"sync"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// ProductRepository — in-memory каталог с атомарным складским учётом.
// Реализует и domain.ProductRepository, и domain.InventoryLedger: проверка
// остатка и декремент выполняются под одной блокировкой, поэтому два
// конкурентных резервирования не могут совместно увести сток в минус.
type ProductRepository struct {
	mu    sync.Mutex
	items map[string]domain.Product
}

// NewProductRepository создаёт пустой in-memory каталог.
func NewProductRepository() *ProductRepository {
	return &ProductRepository{items: make(map[string]domain.Product)}
}

// Get возвращает товар или ErrProductNotFound.
func (r *ProductRepository) Get(id string) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.items[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// Put сохраняет товар (наполнение каталога).
func (r *ProductRepository) Put(product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if product.UpdatedAt.IsZero() {
		product.UpdatedAt = time.Now().UTC()
	}
	r.items[product.ID] = product
	return nil
}

// Reserve выполняет батч условных декрементов "всё или ничего". Декремент
// позиции проходит только при достаточном остатке; при первом отказе уже
// применённые декременты компенсируются равными инкрементами, после чего
// возвращается *OutOfStockError с отказавшим товаром.
func (r *ProductRepository) Reserve(items []domain.StockItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	applied := make([]domain.StockItem, 0, len(items))
	for _, item := range items {
		product, ok := r.items[item.ProductID]
		if !ok {
			r.compensate(applied)
			return domain.ErrProductNotFound
		}
		if product.StockQty < item.Qty {
			r.compensate(applied)
			return &domain.OutOfStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   item.Qty,
				Available:   product.StockQty,
			}
		}
		product.StockQty -= item.Qty
		product.UpdatedAt = time.Now().UTC()
		r.items[item.ProductID] = product
		applied = append(applied, item)
	}

	return nil
}

// Restore безусловно возвращает количества на склад.
func (r *ProductRepository) Restore(items []domain.StockItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.compensate(items)
	return nil
}

// compensate инкрементирует остатки перечисленных позиций. Вызывается только
// под удерживаемой блокировкой.
func (r *ProductRepository) compensate(items []domain.StockItem) {
	for _, item := range items {
		product, ok := r.items[item.ProductID]
		if !ok {
			continue
		}
		product.StockQty += item.Qty
		product.UpdatedAt = time.Now().UTC()
		r.items[item.ProductID] = product
	}
}

var _ domain.ProductRepository = (*ProductRepository)(nil)
var _ domain.InventoryLedger = (*ProductRepository)(nil)
