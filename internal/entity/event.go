package entity

import "fmt"

type EventType string

const (
	EventOrderCreated   EventType = "created"
	EventOrderUpdated   EventType = "updated"
	EventOrderCancelled EventType = "cancelled"
)

// OriginStorefront marks events for orders placed here. Their stock was
// already moved in the order's own transaction.
const OriginStorefront = "storefront-service"

// OrderEvent is published after an order mutation commits. PreviousLines is
// only set for updates.
type OrderEvent struct {
	Type          EventType  `json:"type"`
	Origin        string     `json:"origin,omitempty"`
	OrderID       int64      `json:"order_id"`
	CustomerID    int64      `json:"customer_id"`
	Lines         []LineItem `json:"lines"`
	PreviousLines []LineItem `json:"previous_lines,omitempty"`
}

// Key is the message key, e.g. "order.created.42".
func (e OrderEvent) Key() string {
	return fmt.Sprintf("order.%s.%d", e.Type, e.OrderID)
}
