package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"storefront-service/internal/entity"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

type OrderRepository interface {
	Save(ctx context.Context, order *entity.Order) (*entity.Order, error)
	FindByID(ctx context.Context, id int64) (*entity.Order, error)
	FindAllByCustomerID(ctx context.Context, customerID int64) ([]*entity.Order, error)
	DeleteByID(ctx context.Context, id int64) error
	UpdateDeliveryStatus(ctx context.Context, from, to entity.DeliveryStatus) (int64, error)
}

type LineItemRepository interface {
	Save(ctx context.Context, line *entity.LineItem) (*entity.LineItem, error)
	FindByOrderID(ctx context.Context, orderID int64) ([]entity.LineItem, error)
	DeleteAllForOrder(ctx context.Context, orderID int64) error
}

// Transactor runs fn so that every repository call made with the context it
// receives commits or rolls back together.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CustomerDirectory resolves customers by id, username or API key.
type CustomerDirectory interface {
	FindCustomer(ctx context.Context, id int64) (*entity.Customer, error)
	FindByUsername(ctx context.Context, username string) (*entity.Customer, error)
	FindByAPIKey(ctx context.Context, apiKey string) (*entity.Customer, error)
}

// StockKeeper moves tracked stock. Calls made with a transaction context take
// part in that transaction.
type StockKeeper interface {
	ReserveStock(ctx context.Context, itemID int64, quantity int) error
	ReleaseStock(ctx context.Context, itemID int64, quantity int) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event entity.OrderEvent) error
}

type IdempotencyGuard interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// OrderService places, updates and cancels orders.
type OrderService struct {
	tx        Transactor
	orders    OrderRepository
	lines     LineItemRepository
	catalog   CatalogLookup
	stock     StockKeeper
	customers CustomerDirectory
	publisher EventPublisher   // optional
	guard     IdempotencyGuard // optional
	now       func() time.Time
}

// NewOrderService creates a new instance of OrderService. publisher and guard
// may be nil.
func NewOrderService(tx Transactor, orders OrderRepository, lines LineItemRepository, catalog CatalogLookup, stock StockKeeper, customers CustomerDirectory, publisher EventPublisher, guard IdempotencyGuard) *OrderService {
	return &OrderService{
		tx:        tx,
		orders:    orders,
		lines:     lines,
		catalog:   catalog,
		stock:     stock,
		customers: customers,
		publisher: publisher,
		guard:     guard,
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Second)
		},
	}
}

// CreateOrder places a new order for customerID. Every requested item must
// exist and have enough tracked stock; otherwise nothing is persisted. A non-empty idempotencyKey that was
// already used fails with ErrDuplicateRequest.
func (s *OrderService) CreateOrder(ctx context.Context, customerID int64, requests []entity.LineRequest, idempotencyKey string) (*entity.OrderView, error) {
	if _, err := s.customers.FindCustomer(ctx, customerID); err != nil {
		logger.Warn().Err(err).Msgf("Error resolving customer %d", customerID)
		return nil, err
	}

	wb := NewWorkbook(s.catalog)
	for _, req := range requests {
		if err := wb.AddLine(ctx, req.ItemID, req.Quantity); err != nil {
			logger.Warn().Err(err).Msgf("Rejecting order for customer %d", customerID)
			return nil, err
		}
	}

	if err := s.claim(ctx, idempotencyKey); err != nil {
		return nil, err
	}

	order := &entity.Order{
		CustomerID:     customerID,
		Date:           s.now(),
		TotalPrice:     wb.Total(),
		DeliveryStatus: entity.DeliveryPending,
	}
	var saved []entity.LineItem

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.reserve(ctx, wb.Lines()); err != nil {
			return err
		}
		if _, err := s.orders.Save(ctx, order); err != nil {
			return fmt.Errorf("save order: %w", err)
		}
		lines, err := s.saveLines(ctx, order.ID, wb.Lines())
		if err != nil {
			return err
		}
		saved = lines
		return nil
	})
	if err != nil {
		if errors.Is(err, entity.ErrOutOfStock) {
			logger.Warn().Err(err).Msgf("Rejecting order for customer %d", customerID)
		} else {
			logger.Error().Err(err).Msg("Error creating order")
		}
		s.releaseKey(ctx, idempotencyKey)
		return nil, err
	}

	s.publish(ctx, entity.OrderEvent{
		Type:       entity.EventOrderCreated,
		Origin:     entity.OriginStorefront,
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Lines:      saved,
	})

	return entity.Compose(order, saved), nil
}

// UpdateOrder rebuilds the order's lines from requests. Only items that
// already appear in the order are kept; the rest are dropped. The total and
// date are recomputed from current catalog prices.
func (s *OrderService) UpdateOrder(ctx context.Context, orderID int64, requests []entity.LineRequest) (*entity.OrderView, error) {
	var (
		order    *entity.Order
		previous []entity.LineItem
		saved    []entity.LineItem
	)

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.orders.FindByID(ctx, orderID)
		if err != nil {
			return err
		}

		previous, err = s.lines.FindByOrderID(ctx, orderID)
		if err != nil {
			return fmt.Errorf("load lines: %w", err)
		}

		wb := LoadWorkbook(s.catalog, previous)
		retained := make([]entity.LineRequest, 0, len(requests))
		for _, req := range requests {
			if wb.Contains(req.ItemID) {
				retained = append(retained, req)
				continue
			}
			logger.Info().Msgf("Dropping item %d from update of order %d: not in order", req.ItemID, orderID)
		}

		wb.Clear()
		if err := s.lines.DeleteAllForOrder(ctx, orderID); err != nil {
			return fmt.Errorf("clear lines: %w", err)
		}
		if err := s.release(ctx, previous); err != nil {
			return err
		}

		for _, req := range retained {
			if err := wb.AddLine(ctx, req.ItemID, req.Quantity); err != nil {
				return err
			}
		}
		if err := s.reserve(ctx, wb.Lines()); err != nil {
			return err
		}

		saved, err = s.saveLines(ctx, orderID, wb.Lines())
		if err != nil {
			return err
		}

		order.TotalPrice = wb.Total()
		order.Date = s.now()
		if _, err := s.orders.Save(ctx, order); err != nil {
			return fmt.Errorf("save order: %w", err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, entity.ErrOrderNotFound) {
			logger.Error().Err(err).Msgf("Error updating order %d", orderID)
		}
		return nil, err
	}

	s.publish(ctx, entity.OrderEvent{
		Type:          entity.EventOrderUpdated,
		Origin:        entity.OriginStorefront,
		OrderID:       order.ID,
		CustomerID:    order.CustomerID,
		Lines:         saved,
		PreviousLines: previous,
	})

	return entity.Compose(order, saved), nil
}

// CancelOrder deletes the order and its lines and returns its id.
func (s *OrderService) CancelOrder(ctx context.Context, orderID int64) (int64, error) {
	var (
		order *entity.Order
		lines []entity.LineItem
	)

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.orders.FindByID(ctx, orderID)
		if err != nil {
			return err
		}

		lines, err = s.lines.FindByOrderID(ctx, orderID)
		if err != nil {
			return fmt.Errorf("load lines: %w", err)
		}
		if err := s.release(ctx, lines); err != nil {
			return err
		}

		return s.orders.DeleteByID(ctx, orderID)
	})
	if err != nil {
		if !errors.Is(err, entity.ErrOrderNotFound) {
			logger.Error().Err(err).Msgf("Error cancelling order %d", orderID)
		}
		return 0, err
	}

	s.publish(ctx, entity.OrderEvent{
		Type:       entity.EventOrderCancelled,
		Origin:     entity.OriginStorefront,
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Lines:      lines,
	})

	return order.ID, nil
}

// GetOrderByID returns the composed order. found is false when no order has
// that id.
func (s *OrderService) GetOrderByID(ctx context.Context, orderID int64) (view *entity.OrderView, found bool, err error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, entity.ErrOrderNotFound) {
			return nil, false, nil
		}
		logger.Error().Err(err).Msgf("Error getting order by ID %d", orderID)
		return nil, false, err
	}

	lines, err := s.lines.FindByOrderID(ctx, orderID)
	if err != nil {
		logger.Error().Err(err).Msgf("Error getting lines for order %d", orderID)
		return nil, false, err
	}

	return entity.Compose(order, lines), true, nil
}

func (s *OrderService) GetOrdersByCustomerID(ctx context.Context, customerID int64) ([]*entity.OrderView, error) {
	orders, err := s.orders.FindAllByCustomerID(ctx, customerID)
	if err != nil {
		logger.Error().Err(err).Msgf("Error listing orders for customer %d", customerID)
		return nil, err
	}

	views := make([]*entity.OrderView, 0, len(orders))
	for _, order := range orders {
		lines, err := s.lines.FindByOrderID(ctx, order.ID)
		if err != nil {
			logger.Error().Err(err).Msgf("Error getting lines for order %d", order.ID)
			return nil, err
		}
		views = append(views, entity.Compose(order, lines))
	}

	return views, nil
}

// UpdateDeliveryStatus ships every order whose delivery is still pending.
func (s *OrderService) UpdateDeliveryStatus(ctx context.Context) (int64, error) {
	return s.orders.UpdateDeliveryStatus(ctx, entity.DeliveryPending, entity.DeliveryShipped)
}

func (s *OrderService) saveLines(ctx context.Context, orderID int64, lines []entity.LineItem) ([]entity.LineItem, error) {
	saved := make([]entity.LineItem, 0, len(lines))
	for _, line := range lines {
		line := line
		line.OrderID = orderID
		l, err := s.lines.Save(ctx, &line)
		if err != nil {
			return nil, fmt.Errorf("save line for item %d: %w", line.ItemID, err)
		}
		saved = append(saved, *l)
	}
	return saved, nil
}

func (s *OrderService) reserve(ctx context.Context, lines []entity.LineItem) error {
	for _, line := range lines {
		if err := s.stock.ReserveStock(ctx, line.ItemID, line.Quantity); err != nil {
			return fmt.Errorf("reserve item %d: %w", line.ItemID, err)
		}
	}
	return nil
}

func (s *OrderService) release(ctx context.Context, lines []entity.LineItem) error {
	for _, line := range lines {
		if err := s.stock.ReleaseStock(ctx, line.ItemID, line.Quantity); err != nil {
			return fmt.Errorf("release item %d: %w", line.ItemID, err)
		}
	}
	return nil
}

func (s *OrderService) claim(ctx context.Context, key string) error {
	if s.guard == nil || key == "" {
		return nil
	}

	ok, err := s.guard.Claim(ctx, key)
	if err != nil {
		logger.Error().Err(err).Msgf("Error claiming idempotency key %s", key)
		return err
	}
	if !ok {
		return entity.ErrDuplicateRequest
	}
	return nil
}

func (s *OrderService) releaseKey(ctx context.Context, key string) {
	if s.guard == nil || key == "" {
		return
	}
	if err := s.guard.Release(ctx, key); err != nil {
		logger.Error().Err(err).Msgf("Error releasing idempotency key %s", key)
	}
}

// publish runs after the transaction committed, so a failure here is only
// logged.
func (s *OrderService) publish(ctx context.Context, event entity.OrderEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.Error().Err(err).Msgf("Error publishing %s", event.Key())
	}
}
