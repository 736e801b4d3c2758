package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"storefront-service/internal/entity"
)

type ItemRepository interface {
	GetItemByID(ctx context.Context, id int64) (*entity.Item, error)
	GetItems(ctx context.Context) ([]*entity.Item, error)
	CreateItem(ctx context.Context, item *entity.Item) (*entity.Item, error)
	AdjustStock(ctx context.Context, id int64, delta int) error
}

// CatalogService serves items from redis, falling back to the repository on a
// miss. A nil redis client disables caching.
type CatalogService struct {
	itemRepo ItemRepository
	rdb      *redis.Client
	ttl      time.Duration
}

// NewCatalogService creates a new instance of CatalogService.
func NewCatalogService(itemRepo ItemRepository, rdb *redis.Client, ttl time.Duration) *CatalogService {
	return &CatalogService{
		itemRepo: itemRepo,
		rdb:      rdb,
		ttl:      ttl,
	}
}

func itemKey(id int64) string {
	return fmt.Sprintf("item:%d", id)
}

// FindItem returns the item or ErrItemNotFound.
func (c *CatalogService) FindItem(ctx context.Context, id int64) (*entity.Item, error) {
	if item := c.cached(ctx, id); item != nil {
		return item, nil
	}

	item, err := c.itemRepo.GetItemByID(ctx, id)
	if err != nil {
		if !errors.Is(err, entity.ErrItemNotFound) {
			logger.Error().Err(err).Msgf("Error getting item by ID %d", id)
		}
		return nil, err
	}

	c.cache(ctx, item)
	return item, nil
}

func (c *CatalogService) ItemExists(ctx context.Context, id int64) (bool, error) {
	_, err := c.FindItem(ctx, id)
	if errors.Is(err, entity.ErrItemNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RepositoryLookup reads items straight from the repository, so orders are
// always priced from the stored row and never from a cached copy.
type RepositoryLookup struct {
	itemRepo ItemRepository
}

func NewRepositoryLookup(itemRepo ItemRepository) *RepositoryLookup {
	return &RepositoryLookup{itemRepo: itemRepo}
}

func (l *RepositoryLookup) FindItem(ctx context.Context, id int64) (*entity.Item, error) {
	return l.itemRepo.GetItemByID(ctx, id)
}

func (l *RepositoryLookup) ItemExists(ctx context.Context, id int64) (bool, error) {
	_, err := l.itemRepo.GetItemByID(ctx, id)
	if errors.Is(err, entity.ErrItemNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *CatalogService) ListItems(ctx context.Context) ([]*entity.Item, error) {
	return c.itemRepo.GetItems(ctx)
}

func (c *CatalogService) CreateItem(ctx context.Context, item *entity.Item) (*entity.Item, error) {
	created, err := c.itemRepo.CreateItem(ctx, item)
	if err != nil {
		logger.Error().Err(err).Msg("Error creating item")
		return nil, err
	}

	c.cache(ctx, created)
	return created, nil
}

// ReserveStock takes quantity units out of a tracked stock count.
func (c *CatalogService) ReserveStock(ctx context.Context, id int64, quantity int) error {
	return c.adjust(ctx, id, -quantity)
}

// ReleaseStock puts quantity units back.
func (c *CatalogService) ReleaseStock(ctx context.Context, id int64, quantity int) error {
	return c.adjust(ctx, id, quantity)
}

func (c *CatalogService) adjust(ctx context.Context, id int64, delta int) error {
	if err := c.itemRepo.AdjustStock(ctx, id, delta); err != nil {
		logger.Warn().Err(err).Msgf("Error adjusting stock for item %d by %d", id, delta)
		return err
	}

	if c.rdb != nil {
		if err := c.rdb.Del(ctx, itemKey(id)).Err(); err != nil {
			logger.Error().Err(err).Msgf("Error evicting item %d from cache", id)
		}
	}
	return nil
}

// WarmCache loads every item into redis.
func (c *CatalogService) WarmCache(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}

	items, err := c.itemRepo.GetItems(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Error getting items")
		return err
	}

	for _, item := range items {
		c.cache(ctx, item)
	}

	logger.Info().Msgf("Cache warmed with %d items", len(items))
	return nil
}

func (c *CatalogService) cached(ctx context.Context, id int64) *entity.Item {
	if c.rdb == nil {
		return nil
	}

	data, err := c.rdb.Get(ctx, itemKey(id)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Error().Err(err).Msgf("Error getting item %d from cache", id)
		}
		return nil
	}

	var item entity.Item
	if err := json.Unmarshal([]byte(data), &item); err != nil {
		logger.Error().Err(err).Msgf("Error unmarshalling item %d", id)
		return nil
	}
	return &item
}

func (c *CatalogService) cache(ctx context.Context, item *entity.Item) {
	if c.rdb == nil {
		return
	}

	data, err := json.Marshal(item)
	if err != nil {
		logger.Error().Err(err).Msgf("Error marshalling item %d", item.ID)
		return
	}

	if err := c.rdb.Set(ctx, itemKey(item.ID), data, c.ttl).Err(); err != nil {
		logger.Error().Err(err).Msgf("Error setting item %d in cache", item.ID)
	}
}
