package entity

import "time"

type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliveryShipped DeliveryStatus = "shipped"
)

// Order is the persisted order header. Line items live in their own table and
// reference the order by OrderID.
type Order struct {
	ID             int64          `json:"id"`
	CustomerID     int64          `json:"customer_id"`
	Date           time.Time      `json:"date"`
	TotalPrice     int64          `json:"total_price"`
	DeliveryStatus DeliveryStatus `json:"delivery_status"`
}

type LineItem struct {
	ID        int64 `json:"id"`
	OrderID   int64 `json:"order_id"`
	ItemID    int64 `json:"item_id"`
	Quantity  int   `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
}

func (l LineItem) Subtotal() int64 {
	return int64(l.Quantity) * l.UnitPrice
}

// LineRequest is one (item, quantity) pair submitted by a client.
type LineRequest struct {
	ItemID   int64 `json:"item_id" validate:"required,gt=0"`
	Quantity int   `json:"quantity"`
}

// OrderView is an order composed in memory with its line items.
type OrderView struct {
	ID             int64          `json:"id"`
	CustomerID     int64          `json:"customer_id"`
	Date           time.Time      `json:"date"`
	TotalPrice     int64          `json:"total_price"`
	DeliveryStatus DeliveryStatus `json:"delivery_status"`
	LineItems      []LineItemView `json:"line_items"`
}

type LineItemView struct {
	ID       int64 `json:"id"`
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

// Compose merges an order with its line items.
func Compose(o *Order, lines []LineItem) *OrderView {
	view := &OrderView{
		ID:             o.ID,
		CustomerID:     o.CustomerID,
		Date:           o.Date,
		TotalPrice:     o.TotalPrice,
		DeliveryStatus: o.DeliveryStatus,
		LineItems:      make([]LineItemView, 0, len(lines)),
	}
	for _, l := range lines {
		view.LineItems = append(view.LineItems, LineItemView{ID: l.ID, ItemID: l.ItemID, Quantity: l.Quantity})
	}
	return view
}

/*
MySQL schema, see migrations:

CREATE TABLE orders (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	customer_id BIGINT NOT NULL REFERENCES customers(id),
	...
);

CREATE TABLE order_items (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	...
);
*/
