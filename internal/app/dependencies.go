package app

import (
	"context"

	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
	"github.com/vladislavdragonenkov/shop/internal/storage/postgres"
	"github.com/vladislavdragonenkov/shop/internal/storage/redis"
)

// Dependencies собирает хранилища сервиса. Конкретный бекенд выбирается
// конфигурацией: PostgreSQL и Redis при наличии DSN, иначе in-memory.
type Dependencies struct {
	Orders   domain.OrderRepository
	Carts    domain.CartRepository
	Products domain.ProductRepository
	Ledger   domain.InventoryLedger
	Outbox   domain.OutboxRepository
	Timeline domain.TimelineRepository
	Idem     domain.IdempotencyRepository

	store       *postgres.Store
	redisClient *goredis.Client
}

// NewDependencies инициализирует хранилища согласно конфигурации.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	deps := &Dependencies{}

	if cfg.PostgresDSN != "" {
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		products := postgres.NewProductRepository(store)
		deps.store = store
		deps.Orders = postgres.NewOrderRepository(store)
		deps.Products = products
		deps.Ledger = products
		deps.Outbox = postgres.NewOutboxRepository(store)
		deps.Timeline = postgres.NewTimelineRepository(store)
		deps.Idem = postgres.NewIdempotencyRepository(store)
		logger.Info("postgres storage initialized")
	} else {
		products := memory.NewProductRepository()
		deps.Orders = memory.NewOrderRepository()
		deps.Products = products
		deps.Ledger = products
		deps.Outbox = memory.NewOutboxRepository()
		deps.Timeline = memory.NewTimelineRepository()
		deps.Idem = memory.NewIdempotencyRepository()
		logger.Info("in-memory storage initialized")
	}

	if cfg.RedisAddr != "" {
		client, err := redis.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			deps.Close(logger)
			return nil, err
		}
		deps.redisClient = client
		deps.Carts = redis.NewCartRepository(client)
		logger.WithField("addr", cfg.RedisAddr).Info("redis cart storage initialized")
	} else {
		deps.Carts = memory.NewCartRepository()
	}

	return deps, nil
}

// Ping проверяет доступность внешних хранилищ. Для in-memory всегда nil.
func (d *Dependencies) Ping(ctx context.Context) error {
	if d.store != nil {
		if err := d.store.Ping(ctx); err != nil {
			return err
		}
	}
	if d.redisClient != nil {
		if err := d.redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Close освобождает подключения к внешним хранилищам.
func (d *Dependencies) Close(logger *log.Entry) {
	if d.redisClient != nil {
		if err := d.redisClient.Close(); err != nil {
			logger.WithError(err).Warn("failed to close redis client")
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			logger.WithError(err).Warn("failed to close postgres store")
		}
	}
}
