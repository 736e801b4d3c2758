package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/entity"
	"storefront-service/internal/repository/memory"
)

func newCatalog(t *testing.T) (*CatalogService, *memory.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store := memory.New()
	return NewCatalogService(store.Items(), rdb, time.Minute), store, mr
}

func intPtr(v int) *int { return &v }

func TestFindItemCachesResult(t *testing.T) {
	catalog, store, mr := newCatalog(t)
	ctx := context.Background()

	item, err := store.Items().CreateItem(ctx, &entity.Item{Name: "lamp", Price: 2500})
	require.NoError(t, err)

	got, err := catalog.FindItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), got.Price)
	assert.True(t, mr.Exists(itemKey(item.ID)))

	// served from cache until the entry expires
	require.NoError(t, store.Items().UpdatePrice(ctx, item.ID, 3000))
	got, err = catalog.FindItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), got.Price)

	mr.FastForward(2 * time.Minute)
	got, err = catalog.FindItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), got.Price)
}

func TestFindItemNotFound(t *testing.T) {
	catalog, _, _ := newCatalog(t)

	_, err := catalog.FindItem(context.Background(), 42)
	assert.ErrorIs(t, err, entity.ErrItemNotFound)

	ok, err := catalog.ItemExists(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindItemIgnoresCorruptCacheEntry(t *testing.T) {
	catalog, store, mr := newCatalog(t)
	ctx := context.Background()

	item, err := store.Items().CreateItem(ctx, &entity.Item{Name: "mug", Price: 800})
	require.NoError(t, err)
	require.NoError(t, mr.Set(itemKey(item.ID), "not json"))

	got, err := catalog.FindItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "mug", got.Name)
}

func TestReserveAndReleaseStock(t *testing.T) {
	catalog, store, mr := newCatalog(t)
	ctx := context.Background()

	item, err := catalog.CreateItem(ctx, &entity.Item{Name: "chair", Price: 100, Stock: intPtr(5)})
	require.NoError(t, err)
	assert.True(t, mr.Exists(itemKey(item.ID)))

	require.NoError(t, catalog.ReserveStock(ctx, item.ID, 3))
	assert.False(t, mr.Exists(itemKey(item.ID)))

	got, err := store.Items().GetItemByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, *got.Stock)

	err = catalog.ReserveStock(ctx, item.ID, 3)
	assert.ErrorIs(t, err, entity.ErrOutOfStock)

	require.NoError(t, catalog.ReleaseStock(ctx, item.ID, 3))
	got, err = catalog.FindItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, *got.Stock)
}

func TestReserveUntrackedStockIsNoop(t *testing.T) {
	catalog, _, _ := newCatalog(t)
	ctx := context.Background()

	item, err := catalog.CreateItem(ctx, &entity.Item{Name: "ebook", Price: 100})
	require.NoError(t, err)

	assert.NoError(t, catalog.ReserveStock(ctx, item.ID, 1000))
	got, err := catalog.FindItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Stock)
}

func TestWarmCache(t *testing.T) {
	catalog, store, mr := newCatalog(t)
	ctx := context.Background()

	a, err := store.Items().CreateItem(ctx, &entity.Item{Name: "a", Price: 1})
	require.NoError(t, err)
	b, err := store.Items().CreateItem(ctx, &entity.Item{Name: "b", Price: 2})
	require.NoError(t, err)

	require.NoError(t, catalog.WarmCache(ctx))
	assert.True(t, mr.Exists(itemKey(a.ID)))
	assert.True(t, mr.Exists(itemKey(b.ID)))
}

func TestRepositoryLookupIgnoresCache(t *testing.T) {
	catalog, store, _ := newCatalog(t)
	ctx := context.Background()
	lookup := NewRepositoryLookup(store.Items())

	item, err := store.Items().CreateItem(ctx, &entity.Item{Name: "lamp", Price: 2500})
	require.NoError(t, err)
	_, err = catalog.FindItem(ctx, item.ID)
	require.NoError(t, err)

	require.NoError(t, store.Items().UpdatePrice(ctx, item.ID, 3000))

	cached, err := catalog.FindItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), cached.Price)

	fresh, err := lookup.FindItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), fresh.Price)

	ok, err := lookup.ItemExists(ctx, 999)
	require.NoError(t, err)
	assert.False(t, ok)
}
