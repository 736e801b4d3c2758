// Package memory implements the repositories on top of in-process maps. It is
// used for STORAGE=memory and by the service tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"storefront-service/internal/entity"
)

// Store holds every table. Transactions are serialised with each other and with
// every write made outside one, and are rolled back by restoring a snapshot
// taken when they started.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	orders    map[int64]entity.Order
	lines     map[int64]entity.LineItem
	items     map[int64]entity.Item
	customers map[int64]entity.Customer
	seq       map[string]int64
}

func New() *Store {
	return &Store{
		orders:    make(map[int64]entity.Order),
		lines:     make(map[int64]entity.LineItem),
		items:     make(map[int64]entity.Item),
		customers: make(map[int64]entity.Customer),
		seq:       make(map[string]int64),
	}
}

func (s *Store) Orders() *OrderRepository       { return &OrderRepository{s} }
func (s *Store) LineItems() *LineItemRepository { return &LineItemRepository{s} }
func (s *Store) Items() *ItemRepository         { return &ItemRepository{s} }
func (s *Store) Customers() *CustomerRepository { return &CustomerRepository{s} }

type txKey struct{}

// RunInTx runs fn and restores the previous state if it fails.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// write locks the tables for a single mutation. Outside a transaction it also
// waits for any running transaction, so a rollback cannot discard the write.
func (s *Store) write(ctx context.Context) (unlock func()) {
	inTx := ctx.Value(txKey{}) != nil
	if !inTx {
		s.txMu.Lock()
	}
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		if !inTx {
			s.txMu.Unlock()
		}
	}
}

type snapshot struct {
	orders    map[int64]entity.Order
	lines     map[int64]entity.LineItem
	items     map[int64]entity.Item
	customers map[int64]entity.Customer
	seq       map[string]int64
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{
		orders:    make(map[int64]entity.Order, len(s.orders)),
		lines:     make(map[int64]entity.LineItem, len(s.lines)),
		items:     make(map[int64]entity.Item, len(s.items)),
		customers: make(map[int64]entity.Customer, len(s.customers)),
		seq:       make(map[string]int64, len(s.seq)),
	}
	for k, v := range s.orders {
		snap.orders[k] = v
	}
	for k, v := range s.lines {
		snap.lines[k] = v
	}
	for k, v := range s.items {
		snap.items[k] = copyItem(v)
	}
	for k, v := range s.customers {
		snap.customers[k] = v
	}
	for k, v := range s.seq {
		snap.seq[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = snap.orders
	s.lines = snap.lines
	s.items = snap.items
	s.customers = snap.customers
	s.seq = snap.seq
}

// next must be called with mu held.
func (s *Store) next(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

func copyItem(it entity.Item) entity.Item {
	if it.Stock != nil {
		stock := *it.Stock
		it.Stock = &stock
	}
	return it
}

type OrderRepository struct {
	s *Store
}

func (r *OrderRepository) Save(ctx context.Context, order *entity.Order) (*entity.Order, error) {
	defer r.s.write(ctx)()

	if order.ID == 0 {
		order.ID = r.s.next("orders")
	} else if _, ok := r.s.orders[order.ID]; !ok {
		return nil, entity.ErrOrderNotFound
	}
	r.s.orders[order.ID] = *order
	return order, nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id int64) (*entity.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	o, ok := r.s.orders[id]
	if !ok {
		return nil, entity.ErrOrderNotFound
	}
	return &o, nil
}

func (r *OrderRepository) FindAllByCustomerID(ctx context.Context, customerID int64) ([]*entity.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*entity.Order
	for _, o := range r.s.orders {
		if o.CustomerID == customerID {
			o := o
			out = append(out, &o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteByID removes the order and cascades to its line items.
func (r *OrderRepository) DeleteByID(ctx context.Context, id int64) error {
	defer r.s.write(ctx)()

	if _, ok := r.s.orders[id]; !ok {
		return entity.ErrOrderNotFound
	}
	delete(r.s.orders, id)
	for lid, l := range r.s.lines {
		if l.OrderID == id {
			delete(r.s.lines, lid)
		}
	}
	return nil
}

func (r *OrderRepository) UpdateDeliveryStatus(ctx context.Context, from, to entity.DeliveryStatus) (int64, error) {
	defer r.s.write(ctx)()

	var n int64
	for id, o := range r.s.orders {
		if o.DeliveryStatus == from {
			o.DeliveryStatus = to
			r.s.orders[id] = o
			n++
		}
	}
	return n, nil
}

type LineItemRepository struct {
	s *Store
}

func (r *LineItemRepository) Save(ctx context.Context, line *entity.LineItem) (*entity.LineItem, error) {
	defer r.s.write(ctx)()

	if _, ok := r.s.orders[line.OrderID]; !ok {
		return nil, entity.ErrOrderNotFound
	}
	if line.ID == 0 {
		line.ID = r.s.next("order_items")
	}
	r.s.lines[line.ID] = *line
	return line, nil
}

func (r *LineItemRepository) FindByOrderID(ctx context.Context, orderID int64) ([]entity.LineItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []entity.LineItem
	for _, l := range r.s.lines {
		if l.OrderID == orderID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *LineItemRepository) DeleteAllForOrder(ctx context.Context, orderID int64) error {
	defer r.s.write(ctx)()

	for id, l := range r.s.lines {
		if l.OrderID == orderID {
			delete(r.s.lines, id)
		}
	}
	return nil
}

type ItemRepository struct {
	s *Store
}

func (r *ItemRepository) GetItemByID(ctx context.Context, id int64) (*entity.Item, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	it, ok := r.s.items[id]
	if !ok {
		return nil, entity.ErrItemNotFound
	}
	it = copyItem(it)
	return &it, nil
}

func (r *ItemRepository) GetItems(ctx context.Context) ([]*entity.Item, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*entity.Item, 0, len(r.s.items))
	for _, it := range r.s.items {
		it := copyItem(it)
		out = append(out, &it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *ItemRepository) CreateItem(ctx context.Context, item *entity.Item) (*entity.Item, error) {
	defer r.s.write(ctx)()

	if item.ID == 0 {
		item.ID = r.s.next("items")
	}
	r.s.items[item.ID] = copyItem(*item)
	return item, nil
}

// UpdatePrice is a test hook for catalog price changes.
func (r *ItemRepository) UpdatePrice(ctx context.Context, id int64, price int64) error {
	defer r.s.write(ctx)()

	it, ok := r.s.items[id]
	if !ok {
		return entity.ErrItemNotFound
	}
	it.Price = price
	r.s.items[id] = it
	return nil
}

func (r *ItemRepository) AdjustStock(ctx context.Context, id int64, delta int) error {
	defer r.s.write(ctx)()

	it, ok := r.s.items[id]
	if !ok {
		return entity.ErrItemNotFound
	}
	if it.Stock == nil {
		return nil
	}
	if *it.Stock+delta < 0 {
		return entity.ErrOutOfStock
	}
	stock := *it.Stock + delta
	it.Stock = &stock
	r.s.items[id] = it
	return nil
}

type CustomerRepository struct {
	s *Store
}

func (r *CustomerRepository) GetCustomerByID(ctx context.Context, id int64) (*entity.Customer, error) {
	return r.find(func(c entity.Customer) bool { return c.ID == id })
}

func (r *CustomerRepository) GetCustomerByUsername(ctx context.Context, username string) (*entity.Customer, error) {
	return r.find(func(c entity.Customer) bool { return c.Username == username })
}

func (r *CustomerRepository) GetCustomerByAPIKey(ctx context.Context, apiKey string) (*entity.Customer, error) {
	if apiKey == "" {
		return nil, entity.ErrCustomerNotFound
	}
	return r.find(func(c entity.Customer) bool { return c.APIKey == apiKey })
}

// CreateCustomer enforces the same unique username and API key as the
// customers table.
func (r *CustomerRepository) CreateCustomer(ctx context.Context, customer *entity.Customer) (*entity.Customer, error) {
	defer r.s.write(ctx)()

	for _, c := range r.s.customers {
		if c.Username == customer.Username || (customer.APIKey != "" && c.APIKey == customer.APIKey) {
			return nil, entity.ErrDuplicateCustomer
		}
	}

	if customer.ID == 0 {
		customer.ID = r.s.next("customers")
	}
	r.s.customers[customer.ID] = *customer
	return customer, nil
}

func (r *CustomerRepository) find(match func(entity.Customer) bool) (*entity.Customer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, c := range r.s.customers {
		if match(c) {
			return &c, nil
		}
	}
	return nil, entity.ErrCustomerNotFound
}
