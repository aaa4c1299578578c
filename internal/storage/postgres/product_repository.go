package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// ProductRepository — PostgreSQL-реализация каталога и складского учёта.
// Резервирование опирается на условный UPDATE: декремент проходит только при
// достаточном остатке, конкурентные батчи сериализуются блокировками строк.
type ProductRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository и
// InventoryLedger поверх одной таблицы products.
func NewProductRepository(store *Store) *ProductRepository {
	return &ProductRepository{db: store.DB()}
}

// Get возвращает товар или ErrProductNotFound.
func (r *ProductRepository) Get(id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var product domain.Product
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, slug, price_minor, stock_qty, active, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(
		&product.ID, &product.Name, &product.Slug, &product.PriceMinor,
		&product.StockQty, &product.Active, &product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}

	return product, nil
}

// Put сохраняет товар (upsert, наполнение каталога).
func (r *ProductRepository) Put(product domain.Product) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, name, slug, price_minor, stock_qty, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    slug = EXCLUDED.slug,
		    price_minor = EXCLUDED.price_minor,
		    stock_qty = EXCLUDED.stock_qty,
		    active = EXCLUDED.active,
		    updated_at = EXCLUDED.updated_at
	`,
		product.ID, product.Name, product.Slug, product.PriceMinor,
		product.StockQty, product.Active, product.CreatedAt, product.UpdatedAt,
	); err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}

	return nil
}

// Reserve выполняет батч условных декрементов "всё или ничего" в одной
// транзакции. Декремент позиции проходит только при достаточном остатке;
// первый отказ откатывает всю транзакцию и возвращает *OutOfStockError.
func (r *ProductRepository) Reserve(items []domain.StockItem) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reserve tx: %w", err)
	}

	for _, item := range items {
		res, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock_qty = stock_qty - $2,
			    updated_at = NOW()
			WHERE id = $1
			  AND stock_qty >= $2
		`, item.ProductID, item.Qty)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("reserve stock for %s: %w", item.ProductID, err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("reserve rows affected: %w", err)
		}
		if affected == 0 {
			outErr := r.shortfallError(ctx, tx, item)
			_ = tx.Rollback()
			return outErr
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reserve tx: %w", err)
	}

	return nil
}

// Restore безусловно возвращает количества на склад.
func (r *ProductRepository) Restore(items []domain.StockItem) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin restore tx: %w", err)
	}

	for _, item := range items {
		if _, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock_qty = stock_qty + $2,
			    updated_at = NOW()
			WHERE id = $1
		`, item.ProductID, item.Qty); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("restore stock for %s: %w", item.ProductID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit restore tx: %w", err)
	}

	return nil
}

// shortfallError различает отсутствующий товар и нехватку остатка.
func (r *ProductRepository) shortfallError(ctx context.Context, tx *sql.Tx, item domain.StockItem) error {
	var (
		name      string
		available int32
	)
	err := tx.QueryRowContext(ctx, `
		SELECT name, stock_qty FROM products WHERE id = $1
	`, item.ProductID).Scan(&name, &available)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrProductNotFound
		}
		return fmt.Errorf("inspect stock shortfall for %s: %w", item.ProductID, err)
	}

	return &domain.OutOfStockError{
		ProductID:   item.ProductID,
		ProductName: name,
		Requested:   item.Qty,
		Available:   available,
	}
}

var _ domain.ProductRepository = (*ProductRepository)(nil)
var _ domain.InventoryLedger = (*ProductRepository)(nil)
