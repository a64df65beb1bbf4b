package domain

import (
	"time"
)

// OrderStatus enumerates the lifecycle states of an order.
type OrderStatus string

const (
	// OrderStatusWaiting is the only initial state of a freshly admitted order.
	OrderStatusWaiting OrderStatus = "waiting"
	// OrderStatusPreparation indicates the order is being prepared.
	OrderStatusPreparation OrderStatus = "preparation"
	// OrderStatusReady indicates the order is ready for pickup or delivery.
	OrderStatusReady OrderStatus = "ready"
	// OrderStatusDelivered is the terminal state; no transitions leave it.
	OrderStatusDelivered OrderStatus = "delivered"
)

// orderStatusFlow is the single transition table for the lifecycle machine.
// The flow is strictly linear; adding or removing a state is an edit here.
var orderStatusFlow = map[OrderStatus]OrderStatus{
	OrderStatusWaiting:     OrderStatusPreparation,
	OrderStatusPreparation: OrderStatusReady,
	OrderStatusReady:       OrderStatusDelivered,
}

// ParseOrderStatus validates a raw status string against the closed enumeration.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	switch OrderStatus(raw) {
	case OrderStatusWaiting, OrderStatusPreparation, OrderStatusReady, OrderStatusDelivered:
		return OrderStatus(raw), true
	default:
		return "", false
	}
}

// NextStatus returns the immediate successor of the given status, if any.
func NextStatus(current OrderStatus) (OrderStatus, bool) {
	next, ok := orderStatusFlow[current]
	return next, ok
}

// CanTransition reports whether target is the immediate successor of current.
// Self-transitions, skips, and reverse moves are all rejected.
func CanTransition(current, target OrderStatus) bool {
	next, ok := orderStatusFlow[current]
	return ok && next == target
}

// Order is the aggregate admitted exactly once per logical attempt. Its total
// is fixed at admission time from the snapshotted line-item prices and never
// recomputed against the live catalog.
type Order struct {
	ID         string          `firestore:"id"`
	CustomerID string          `firestore:"customer_id"`
	Status     OrderStatus     `firestore:"status"`
	TotalCents int64           `firestore:"total_cents"`
	Items      []OrderLineItem `firestore:"items"`
	Metadata   map[string]any  `firestore:"metadata,omitempty"`
	CreatedAt  time.Time       `firestore:"created_at"`
	UpdatedAt  time.Time       `firestore:"updated_at"`
}

// OrderLineItem is immutable once its order is admitted. UnitPriceCents is
// the price snapshot taken at admission; later catalog changes do not touch it.
type OrderLineItem struct {
	ProductID      string `firestore:"product_id"`
	VariationID    string `firestore:"variation_id"`
	Quantity       int    `firestore:"quantity"`
	UnitPriceCents int64  `firestore:"unit_price_cents"`
}

// LineTotalCents returns quantity times the snapshotted unit price.
func (i OrderLineItem) LineTotalCents() int64 {
	return int64(i.Quantity) * i.UnitPriceCents
}

// Payment is the audit record of the single gateway charge backing an order.
// One payment per order; written atomically with it and never updated.
type Payment struct {
	ID              string         `firestore:"id"`
	OrderID         string         `firestore:"order_id"`
	AmountCents     int64          `firestore:"amount_cents"`
	RequestPayload  map[string]any `firestore:"request_payload,omitempty"`
	ResponseStatus  int            `firestore:"response_status"`
	ResponsePayload map[string]any `firestore:"response_payload,omitempty"`
	CreatedAt       time.Time      `firestore:"created_at"`
}

// NotificationRecord captures one status-change notification attempt,
// successful or not. Append-only; failures are recorded, never retried here.
type NotificationRecord struct {
	ID              string         `firestore:"id"`
	OrderID         string         `firestore:"order_id"`
	Status          OrderStatus    `firestore:"status"`
	ResponseStatus  int            `firestore:"response_status"`
	ResponsePayload map[string]any `firestore:"response_payload,omitempty"`
	CreatedAt       time.Time      `firestore:"created_at"`
}
