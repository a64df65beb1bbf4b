package services

import (
	"context"
	"time"

	domain "github.com/roastline/api/internal/domain"
	"github.com/roastline/api/internal/gateways"
)

// PlaceOrderCommand admits a new order. IdempotencyKey is the raw client
// header value; the service hashes it before it touches storage. An empty
// key disables deduplication for the request.
type PlaceOrderCommand struct {
	IdempotencyKey string
	CustomerID     string
	Items          []OrderItemInput
	// AssertedTotalCents, when set, must match the server-computed total or
	// the admission is rejected before any payment attempt.
	AssertedTotalCents *int64
	Metadata           map[string]any
}

// OrderItemInput is one requested line item. Prices are never accepted from
// the client; they are resolved from the catalog at admission time.
type OrderItemInput struct {
	ProductID   string
	VariationID string
	Quantity    int
}

// PlacedOrder is the admission result. Replayed is true when the idempotency
// ledger already held a live record for the key and the original outcome was
// returned instead of creating a new order.
type PlacedOrder struct {
	Order    domain.Order
	Payment  domain.Payment
	Replayed bool
}

// GetOrderQuery fetches one order on behalf of a requester. Customers only
// see their own orders; managers see everything.
type GetOrderQuery struct {
	OrderID       string
	RequesterID   string
	RequesterRole string
}

// ListOrdersQuery lists orders, scoped the same way as GetOrderQuery.
type ListOrdersQuery struct {
	RequesterID   string
	RequesterRole string
	CustomerID    string
	Status        string
	Limit         int
}

// AdvanceStatusCommand moves an order one step along the lifecycle.
type AdvanceStatusCommand struct {
	OrderID      string
	TargetStatus string
	ActorID      string
}

// OrderService admits orders and drives their lifecycle.
type OrderService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (PlacedOrder, error)
	GetOrder(ctx context.Context, query GetOrderQuery) (domain.Order, error)
	ListOrders(ctx context.Context, query ListOrdersQuery) ([]domain.Order, error)
	AdvanceStatus(ctx context.Context, cmd AdvanceStatusCommand) (domain.Order, error)
	// ListNotifications returns the delivery log for an order, subject to the
	// same visibility rules as GetOrder.
	ListNotifications(ctx context.Context, query GetOrderQuery) ([]domain.NotificationRecord, error)
}

// CatalogService exposes the public menu.
type CatalogService interface {
	ListMenu(ctx context.Context) ([]domain.Product, error)
}

// PaymentGateway charges the computed order total.
type PaymentGateway interface {
	Charge(ctx context.Context, amountCents int64) (gateways.ChargeResult, error)
}

// NotificationGateway delivers status change notifications.
type NotificationGateway interface {
	NotifyStatusChange(ctx context.Context, status string) (gateways.NotifyResult, error)
}

// OrderStatusEvent is published after a committed status transition.
type OrderStatusEvent struct {
	OrderID    string    `json:"order_id"`
	CustomerID string    `json:"customer_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	ActorID    string    `json:"actor_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// OrderEventPublisher publishes order lifecycle events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderStatusChanged(ctx context.Context, event OrderStatusEvent) (string, error)
}
