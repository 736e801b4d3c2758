package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/entity"
	"storefront-service/internal/repository/memory"
)

type recordingPublisher struct {
	events []entity.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event entity.OrderEvent) error {
	p.events = append(p.events, event)
	return p.err
}

type mapGuard struct {
	claimed map[string]bool
}

func (g *mapGuard) Claim(ctx context.Context, key string) (bool, error) {
	if g.claimed[key] {
		return false, nil
	}
	g.claimed[key] = true
	return true, nil
}

func (g *mapGuard) Release(ctx context.Context, key string) error {
	delete(g.claimed, key)
	return nil
}

type fixture struct {
	svc       *OrderService
	store     *memory.Store
	publisher *recordingPublisher
	guard     *mapGuard
	customer  *entity.Customer
	itemA     *entity.Item
	itemB     *entity.Item
	itemC     *entity.Item
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store := memory.New()
	customer, err := store.Customers().CreateCustomer(ctx, &entity.Customer{Username: "alice", APIKey: "key-alice"})
	require.NoError(t, err)

	itemA, err := store.Items().CreateItem(ctx, &entity.Item{Name: "A", Price: 1000})
	require.NoError(t, err)
	itemB, err := store.Items().CreateItem(ctx, &entity.Item{Name: "B", Price: 2000})
	require.NoError(t, err)
	itemC, err := store.Items().CreateItem(ctx, &entity.Item{Name: "C", Price: 500})
	require.NoError(t, err)

	publisher := &recordingPublisher{}
	guard := &mapGuard{claimed: map[string]bool{}}
	catalog := NewCatalogService(store.Items(), nil, 0)
	customers := NewCustomerService(store.Customers(), []byte("secret"), time.Hour)

	svc := NewOrderService(store, store.Orders(), store.LineItems(), NewRepositoryLookup(store.Items()), catalog, customers, publisher, guard)

	return &fixture{
		svc:       svc,
		store:     store,
		publisher: publisher,
		guard:     guard,
		customer:  customer,
		itemA:     itemA,
		itemB:     itemB,
		itemC:     itemC,
	}
}

func (f *fixture) place(t *testing.T, lines ...entity.LineRequest) *entity.OrderView {
	t.Helper()
	order, err := f.svc.CreateOrder(context.Background(), f.customer.ID, lines, "")
	require.NoError(t, err)
	return order
}

func line(itemID int64, quantity int) entity.LineRequest {
	return entity.LineRequest{ItemID: itemID, Quantity: quantity}
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)

	order := f.place(t, line(f.itemA.ID, 2), line(f.itemB.ID, 1))

	assert.NotZero(t, order.ID)
	assert.Equal(t, f.customer.ID, order.CustomerID)
	assert.Equal(t, int64(4000), order.TotalPrice)
	assert.Equal(t, entity.DeliveryPending, order.DeliveryStatus)
	require.Len(t, order.LineItems, 2)
	assert.Equal(t, f.itemA.ID, order.LineItems[0].ItemID)
	assert.Equal(t, 2, order.LineItems[0].Quantity)
	assert.Equal(t, f.itemB.ID, order.LineItems[1].ItemID)

	stored, found, err := f.svc.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, order, stored)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, entity.EventOrderCreated, f.publisher.events[0].Type)
	assert.Len(t, f.publisher.events[0].Lines, 2)
}

func TestCreateOrderUnknownItemPersistsNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateOrder(context.Background(), f.customer.ID, []entity.LineRequest{line(f.itemA.ID, 1), line(404, 1)}, "")
	assert.ErrorIs(t, err, entity.ErrItemNotFound)

	orders, err := f.svc.GetOrdersByCustomerID(context.Background(), f.customer.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Empty(t, f.publisher.events)
}

func TestCreateOrderInvalidQuantity(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateOrder(context.Background(), f.customer.ID, []entity.LineRequest{line(f.itemA.ID, 0)}, "")
	assert.ErrorIs(t, err, entity.ErrInvalidQuantity)
}

func TestCreateOrderUnknownCustomer(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateOrder(context.Background(), 999, []entity.LineRequest{line(f.itemA.ID, 1)}, "")
	assert.ErrorIs(t, err, entity.ErrCustomerNotFound)
}

func TestCreateOrderIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateOrder(ctx, f.customer.ID, []entity.LineRequest{line(f.itemA.ID, 1)}, "k1")
	require.NoError(t, err)

	_, err = f.svc.CreateOrder(ctx, f.customer.ID, []entity.LineRequest{line(f.itemA.ID, 1)}, "k1")
	assert.ErrorIs(t, err, entity.ErrDuplicateRequest)

	orders, err := f.svc.GetOrdersByCustomerID(ctx, f.customer.ID)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestCreateOrderRejectedRequestKeepsKeyFree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateOrder(ctx, f.customer.ID, []entity.LineRequest{line(404, 1)}, "k2")
	require.ErrorIs(t, err, entity.ErrItemNotFound)

	_, err = f.svc.CreateOrder(ctx, f.customer.ID, []entity.LineRequest{line(f.itemA.ID, 1)}, "k2")
	assert.NoError(t, err)
}

func TestCreateOrderUsesCurrentPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.place(t, line(f.itemA.ID, 1))
	require.NoError(t, f.store.Items().UpdatePrice(ctx, f.itemA.ID, 1500))
	second := f.place(t, line(f.itemA.ID, 1))

	assert.Equal(t, int64(1000), first.TotalPrice)
	assert.Equal(t, int64(1500), second.TotalPrice)

	stored, _, err := f.svc.GetOrderByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), stored.TotalPrice)
}

func TestCreateOrderPublishFailureIsNotReturned(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	order, err := f.svc.CreateOrder(context.Background(), f.customer.ID, []entity.LineRequest{line(f.itemA.ID, 1)}, "")
	require.NoError(t, err)
	assert.NotZero(t, order.ID)
}

func TestUpdateOrderAdjustsQuantity(t *testing.T) {
	f := newFixture(t)
	order := f.place(t, line(f.itemA.ID, 2))

	updated, err := f.svc.UpdateOrder(context.Background(), order.ID, []entity.LineRequest{line(f.itemA.ID, 5)})
	require.NoError(t, err)

	assert.Equal(t, order.ID, updated.ID)
	assert.Equal(t, int64(5000), updated.TotalPrice)
	require.Len(t, updated.LineItems, 1)
	assert.Equal(t, 5, updated.LineItems[0].Quantity)

	lines, err := f.store.LineItems().FindByOrderID(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)
}

func TestUpdateOrderDropsItemsNotInOrder(t *testing.T) {
	f := newFixture(t)
	order := f.place(t, line(f.itemA.ID, 2))

	updated, err := f.svc.UpdateOrder(context.Background(), order.ID, []entity.LineRequest{line(f.itemC.ID, 1)})
	require.NoError(t, err)

	assert.Empty(t, updated.LineItems)
	assert.Zero(t, updated.TotalPrice)
}

func TestUpdateOrderKeepsOnlyMatchingLines(t *testing.T) {
	f := newFixture(t)
	order := f.place(t, line(f.itemA.ID, 1), line(f.itemB.ID, 1))

	updated, err := f.svc.UpdateOrder(context.Background(), order.ID, []entity.LineRequest{
		line(f.itemB.ID, 3),
		line(f.itemC.ID, 4),
	})
	require.NoError(t, err)

	require.Len(t, updated.LineItems, 1)
	assert.Equal(t, f.itemB.ID, updated.LineItems[0].ItemID)
	assert.Equal(t, int64(6000), updated.TotalPrice)

	require.Len(t, f.publisher.events, 2)
	ev := f.publisher.events[1]
	assert.Equal(t, entity.EventOrderUpdated, ev.Type)
	assert.Len(t, ev.PreviousLines, 2)
	assert.Len(t, ev.Lines, 1)
}

func TestUpdateOrderRepricesAndRefreshesDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	updatedAt := created.Add(48 * time.Hour)
	f.svc.now = func() time.Time { return created }
	order := f.place(t, line(f.itemA.ID, 2))
	assert.Equal(t, created, order.Date)

	require.NoError(t, f.store.Items().UpdatePrice(ctx, f.itemA.ID, 1200))
	f.svc.now = func() time.Time { return updatedAt }

	updated, err := f.svc.UpdateOrder(ctx, order.ID, []entity.LineRequest{line(f.itemA.ID, 2)})
	require.NoError(t, err)
	assert.Equal(t, int64(2400), updated.TotalPrice)
	assert.Equal(t, updatedAt, updated.Date)
}

func TestUpdateOrderNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.UpdateOrder(context.Background(), 12345, []entity.LineRequest{line(f.itemA.ID, 1)})
	assert.ErrorIs(t, err, entity.ErrOrderNotFound)
}

func TestUpdateOrderFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.place(t, line(f.itemA.ID, 2), line(f.itemB.ID, 1))

	_, err := f.svc.UpdateOrder(ctx, order.ID, []entity.LineRequest{line(f.itemA.ID, 1), line(f.itemB.ID, 0)})
	require.ErrorIs(t, err, entity.ErrInvalidQuantity)

	stored, found, err := f.svc.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, order, stored)
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.place(t, line(f.itemA.ID, 2), line(f.itemB.ID, 1))

	id, err := f.svc.CancelOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, id)

	_, found, err := f.svc.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, found)

	lines, err := f.store.LineItems().FindByOrderID(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)

	ev := f.publisher.events[len(f.publisher.events)-1]
	assert.Equal(t, entity.EventOrderCancelled, ev.Type)
	assert.Len(t, ev.Lines, 2)
}

func TestCancelOrderNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CancelOrder(context.Background(), 77)
	assert.ErrorIs(t, err, entity.ErrOrderNotFound)
	assert.Empty(t, f.publisher.events)
}

func TestGetOrderByIDMissingIsNotAnError(t *testing.T) {
	f := newFixture(t)

	view, found, err := f.svc.GetOrderByID(context.Background(), 1)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, view)
}

func TestGetOrdersByCustomerID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.place(t, line(f.itemA.ID, 1))
	second := f.place(t, line(f.itemB.ID, 2), line(f.itemC.ID, 2))

	other, err := f.store.Customers().CreateCustomer(ctx, &entity.Customer{Username: "bob", APIKey: "key-bob"})
	require.NoError(t, err)
	_, err = f.svc.CreateOrder(ctx, other.ID, []entity.LineRequest{line(f.itemA.ID, 1)}, "")
	require.NoError(t, err)

	orders, err := f.svc.GetOrdersByCustomerID(ctx, f.customer.ID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, first.ID, orders[0].ID)
	assert.Equal(t, second.ID, orders[1].ID)
	assert.Len(t, orders[1].LineItems, 2)
	assert.Equal(t, int64(5000), orders[1].TotalPrice)
}

func TestUpdateDeliveryStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.place(t, line(f.itemA.ID, 1))
	f.place(t, line(f.itemB.ID, 1))

	n, err := f.svc.UpdateDeliveryStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	view, _, err := f.svc.GetOrderByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DeliveryShipped, view.DeliveryStatus)

	n, err = f.svc.UpdateDeliveryStatus(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func (f *fixture) stockedItem(t *testing.T, price int64, stock int) *entity.Item {
	t.Helper()
	item, err := f.store.Items().CreateItem(context.Background(), &entity.Item{Name: "stocked", Price: price, Stock: intPtr(stock)})
	require.NoError(t, err)
	return item
}

func (f *fixture) stockOf(t *testing.T, itemID int64) int {
	t.Helper()
	item, err := f.store.Items().GetItemByID(context.Background(), itemID)
	require.NoError(t, err)
	require.NotNil(t, item.Stock)
	return *item.Stock
}

func TestCreateOrderReservesStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.stockedItem(t, 1000, 3)

	f.place(t, line(item.ID, 2))
	assert.Equal(t, 1, f.stockOf(t, item.ID))

	_, err := f.svc.CreateOrder(ctx, f.customer.ID, []entity.LineRequest{line(f.itemA.ID, 1), line(item.ID, 100)}, "key-1")
	require.ErrorIs(t, err, entity.ErrOutOfStock)

	assert.Equal(t, 1, f.stockOf(t, item.ID))
	orders, err := f.svc.GetOrdersByCustomerID(ctx, f.customer.ID)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Empty(t, f.guard.claimed)
	assert.Len(t, f.publisher.events, 1)
}

func TestCreateOrderCountsRepeatedItemAgainstStock(t *testing.T) {
	f := newFixture(t)
	item := f.stockedItem(t, 1000, 3)

	_, err := f.svc.CreateOrder(context.Background(), f.customer.ID, []entity.LineRequest{line(item.ID, 2), line(item.ID, 2)}, "")
	require.ErrorIs(t, err, entity.ErrOutOfStock)
	assert.Equal(t, 3, f.stockOf(t, item.ID))
}

func TestUpdateOrderMovesStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.stockedItem(t, 1000, 3)
	order := f.place(t, line(item.ID, 3))
	assert.Equal(t, 0, f.stockOf(t, item.ID))

	// the order's own units count as available again
	updated, err := f.svc.UpdateOrder(ctx, order.ID, []entity.LineRequest{line(item.ID, 2)})
	require.NoError(t, err)
	assert.Equal(t, int64(2000), updated.TotalPrice)
	assert.Equal(t, 1, f.stockOf(t, item.ID))

	_, err = f.svc.UpdateOrder(ctx, order.ID, []entity.LineRequest{line(item.ID, 5)})
	require.ErrorIs(t, err, entity.ErrOutOfStock)
	assert.Equal(t, 1, f.stockOf(t, item.ID))

	stored, found, err := f.svc.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, updated, stored)
}

func TestCancelOrderReleasesStock(t *testing.T) {
	f := newFixture(t)
	item := f.stockedItem(t, 1000, 3)
	order := f.place(t, line(item.ID, 2), line(f.itemA.ID, 1))

	_, err := f.svc.CancelOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, f.stockOf(t, item.ID))
}

func TestOrderEventsCarryOrigin(t *testing.T) {
	f := newFixture(t)
	order := f.place(t, line(f.itemA.ID, 1))
	_, err := f.svc.CancelOrder(context.Background(), order.ID)
	require.NoError(t, err)

	require.Len(t, f.publisher.events, 2)
	for _, ev := range f.publisher.events {
		assert.Equal(t, entity.OriginStorefront, ev.Origin)
	}
}
