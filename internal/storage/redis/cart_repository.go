// Package redis реализует хранение корзин в Redis. Корзина живёт как один
// JSON-документ под ключом на пользователя: мутации редкие и всегда проходят
// через перезапись целиком.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const (
	cartKeyPattern = "cart:%s"
	opTimeout      = 2 * time.Second

	// cartTTL ограничивает жизнь брошенной корзины.
	cartTTL = 30 * 24 * time.Hour
)

// NewClient открывает подключение к Redis и проверяет его доступность.
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

type cartRepository struct {
	client *redis.Client
}

// NewCartRepository создаёт Redis-реализацию CartRepository.
func NewCartRepository(client *redis.Client) domain.CartRepository {
	return &cartRepository{client: client}
}

func (r *cartRepository) GetByUser(userID domain.UserID) (domain.Cart, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	raw, err := r.client.Get(ctx, cartKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Cart{}, domain.ErrCartNotFound
		}
		return domain.Cart{}, fmt.Errorf("get cart: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(raw, &cart); err != nil {
		return domain.Cart{}, fmt.Errorf("unmarshal cart: %w", err)
	}

	return cart, nil
}

func (r *cartRepository) Save(cart domain.Cart) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	raw, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}

	if err := r.client.Set(ctx, cartKey(cart.UserID), raw, cartTTL).Err(); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}

	return nil
}

func cartKey(userID domain.UserID) string {
	return fmt.Sprintf(cartKeyPattern, userID)
}

var _ domain.CartRepository = (*cartRepository)(nil)
