package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/roastline/api/internal/domain"
	"github.com/roastline/api/internal/repositories"
)

const (
	orderEventAdmitted      = "order.admitted"
	orderEventReplayed      = "order.replayed"
	orderEventStatusChanged = "order.status.changed"

	orderIDPrefix        = "ord_"
	paymentIDPrefix      = "pay_"
	notificationIDPrefix = "ntf_"

	// maxItemQuantity bounds a single line item. Totals are computed in
	// int64 cents, so the cap also keeps quantity*price far from overflow.
	maxItemQuantity = 1000
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located or is not
	// visible to the requester.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrUnknownProduct indicates a line item referenced a product or
	// variation absent from the catalog.
	ErrUnknownProduct = errors.New("order: unknown product")
	// ErrTotalMismatch indicates the client-asserted total disagrees with the
	// server-computed total.
	ErrTotalMismatch = errors.New("order: total mismatch")
	// ErrPaymentDeclined indicates the payment gateway did not approve the charge.
	ErrPaymentDeclined = errors.New("order: payment declined")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates concurrent admissions raced and neither
	// outcome could be replayed.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrBackendUnavailable indicates a transient storage outage.
	ErrBackendUnavailable = errors.New("order: backend unavailable")
)

// PaymentDeclinedError carries the gateway's verdict on a declined charge so
// callers can surface the provider response to the client. It matches
// errors.Is(err, ErrPaymentDeclined).
type PaymentDeclinedError struct {
	StatusCode int
	Response   map[string]any
}

func (e *PaymentDeclinedError) Error() string {
	return fmt.Sprintf("%v: gateway status %d", ErrPaymentDeclined, e.StatusCode)
}

func (e *PaymentDeclinedError) Unwrap() error { return ErrPaymentDeclined }

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders         repositories.OrderRepository
	Catalog        repositories.CatalogRepository
	Idempotency    repositories.IdempotencyRepository
	Notifications  repositories.NotificationRepository
	Payments       PaymentGateway
	Notifier       NotificationGateway
	Events         OrderEventPublisher
	IdempotencyTTL time.Duration
	Clock          func() time.Time
	IDGenerator    func() string
	Logger         func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders        repositories.OrderRepository
	catalog       repositories.CatalogRepository
	idempotency   repositories.IdempotencyRepository
	notifications repositories.NotificationRepository
	payments      PaymentGateway
	notifier      NotificationGateway
	events        OrderEventPublisher
	ttl           time.Duration
	clock         func() time.Time
	newID         func() string
	logger        func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("order service: catalog repository is required")
	}
	if deps.Idempotency == nil {
		return nil, errors.New("order service: idempotency repository is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("order service: payment gateway is required")
	}

	ttl := deps.IdempotencyTTL
	if ttl <= 0 {
		ttl = domain.IdempotencyTTL
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:        deps.Orders,
		catalog:       deps.Catalog,
		idempotency:   deps.Idempotency,
		notifications: deps.Notifications,
		payments:      deps.Payments,
		notifier:      deps.Notifier,
		events:        deps.Events,
		ttl:           ttl,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// PlaceOrder admits an order exactly once per idempotency key. The sequence
// is fixed: ledger lookup, item validation, price resolution, total check,
// gateway charge, then a single transaction persisting order, payment, and
// ledger entry together.
func (s *orderService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (PlacedOrder, error) {
	// An absent key disables deduplication; every keyless request admits a
	// fresh order.
	key := strings.TrimSpace(cmd.IdempotencyKey)
	customerID := strings.TrimSpace(cmd.CustomerID)
	if customerID == "" {
		return PlacedOrder{}, fmt.Errorf("%w: customer id is required", ErrOrderInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return PlacedOrder{}, fmt.Errorf("%w: at least one item is required", ErrOrderInvalidInput)
	}
	for i, item := range cmd.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return PlacedOrder{}, fmt.Errorf("%w: item %d is missing a product id", ErrOrderInvalidInput, i)
		}
		if item.Quantity < 1 {
			return PlacedOrder{}, fmt.Errorf("%w: item %d has a non-positive quantity", ErrOrderInvalidInput, i)
		}
		if item.Quantity > maxItemQuantity {
			return PlacedOrder{}, fmt.Errorf("%w: item %d exceeds the maximum quantity of %d",
				ErrOrderInvalidInput, i, maxItemQuantity)
		}
	}

	now := s.clock()
	var keyHash string
	overwriteLedger := false
	if key != "" {
		keyHash = domain.HashIdempotencyKey(key)

		record, err := s.idempotency.Find(ctx, keyHash)
		switch {
		case err == nil && !record.Expired(now):
			return s.replay(ctx, record)
		case err == nil:
			// Expired record: the key may be reused and the stale entry replaced.
			overwriteLedger = true
		case repositories.IsNotFound(err):
			// Fresh key.
		default:
			return PlacedOrder{}, s.mapRepositoryError(err)
		}
	}

	items, total, err := s.resolveItems(ctx, cmd.Items)
	if err != nil {
		return PlacedOrder{}, err
	}

	if cmd.AssertedTotalCents != nil && *cmd.AssertedTotalCents != total {
		return PlacedOrder{}, fmt.Errorf("%w: asserted %d, computed %d",
			ErrTotalMismatch, *cmd.AssertedTotalCents, total)
	}

	charge, err := s.payments.Charge(ctx, total)
	if err != nil {
		return PlacedOrder{}, fmt.Errorf("order: charge attempt failed: %w", err)
	}
	if !charge.Approved {
		s.logger(ctx, "order.payment.declined", map[string]any{
			"customer_id":     customerID,
			"amount_cents":    total,
			"gateway_status":  charge.StatusCode,
			"idempotency_key": domain.IdempotencyKeyPreview(key),
		})
		return PlacedOrder{}, &PaymentDeclinedError{
			StatusCode: charge.StatusCode,
			Response:   charge.ResponsePayload,
		}
	}

	order := domain.Order{
		ID:         orderIDPrefix + s.newID(),
		CustomerID: customerID,
		Status:     domain.OrderStatusWaiting,
		TotalCents: total,
		Items:      items,
		Metadata:   maps.Clone(cmd.Metadata),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	payment := domain.Payment{
		ID:              paymentIDPrefix + s.newID(),
		OrderID:         order.ID,
		AmountCents:     total,
		RequestPayload:  charge.RequestPayload,
		ResponseStatus:  charge.StatusCode,
		ResponsePayload: charge.ResponsePayload,
		CreatedAt:       now,
	}
	var ledger domain.IdempotencyRecord
	if keyHash != "" {
		ledger = domain.IdempotencyRecord{
			KeyHash:    keyHash,
			KeyPreview: domain.IdempotencyKeyPreview(key),
			OrderID:    order.ID,
			PaymentID:  payment.ID,
			CreatedAt:  now,
			ExpiresAt:  now.Add(s.ttl),
		}
	}

	err = s.orders.CreateAdmission(ctx, repositories.Admission{
		Order:           order,
		Payment:         payment,
		Ledger:          ledger,
		OverwriteLedger: overwriteLedger,
	})
	if err != nil {
		if keyHash != "" && repositories.IsConflict(err) {
			// A concurrent request won the ledger key after our fast-path
			// check. Surface the winner's outcome instead of a duplicate.
			return s.replayAfterConflict(ctx, keyHash)
		}
		return PlacedOrder{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, orderEventAdmitted, map[string]any{
		"order_id":    order.ID,
		"payment_id":  payment.ID,
		"customer_id": customerID,
		"total_cents": total,
		"item_count":  len(items),
	})

	return PlacedOrder{Order: order, Payment: payment}, nil
}

// GetOrder loads an order, hiding other customers' orders from non-managers.
func (s *orderService) GetOrder(ctx context.Context, query GetOrderQuery) (domain.Order, error) {
	orderID := strings.TrimSpace(query.OrderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	if !isManager(query.RequesterRole) && order.CustomerID != strings.TrimSpace(query.RequesterID) {
		// Deny without revealing that the order exists.
		return domain.Order{}, ErrOrderNotFound
	}
	return order, nil
}

// ListOrders lists orders. Non-managers are always scoped to their own.
func (s *orderService) ListOrders(ctx context.Context, query ListOrdersQuery) ([]domain.Order, error) {
	filter := repositories.OrderListFilter{
		CustomerID: strings.TrimSpace(query.CustomerID),
		Limit:      query.Limit,
	}
	if !isManager(query.RequesterRole) {
		filter.CustomerID = strings.TrimSpace(query.RequesterID)
	}
	if raw := strings.TrimSpace(query.Status); raw != "" {
		status, ok := domain.ParseOrderStatus(raw)
		if !ok {
			return nil, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, raw)
		}
		filter.Status = status
	}

	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return orders, nil
}

// resolveItems validates every line item against the catalog and snapshots
// unit prices. Client-supplied prices never enter this path.
func (s *orderService) resolveItems(ctx context.Context, inputs []OrderItemInput) ([]domain.OrderLineItem, int64, error) {
	items := make([]domain.OrderLineItem, 0, len(inputs))
	var total int64
	for _, input := range inputs {
		productID := strings.TrimSpace(input.ProductID)
		product, err := s.catalog.FindProduct(ctx, productID)
		if err != nil {
			if repositories.IsNotFound(err) {
				return nil, 0, fmt.Errorf("%w: product %q", ErrUnknownProduct, productID)
			}
			return nil, 0, s.mapRepositoryError(err)
		}

		variationID := strings.TrimSpace(input.VariationID)
		unitPrice, ok := product.UnitPriceCents(variationID)
		if !ok {
			return nil, 0, fmt.Errorf("%w: variation %q of product %q", ErrUnknownProduct, variationID, productID)
		}

		item := domain.OrderLineItem{
			ProductID:      productID,
			VariationID:    variationID,
			Quantity:       input.Quantity,
			UnitPriceCents: unitPrice,
		}
		items = append(items, item)
		total += item.LineTotalCents()
	}
	return items, total, nil
}

// replay returns the stored outcome for a key that already admitted an order.
func (s *orderService) replay(ctx context.Context, record domain.IdempotencyRecord) (PlacedOrder, error) {
	order, err := s.orders.FindByID(ctx, record.OrderID)
	if err != nil {
		return PlacedOrder{}, s.mapRepositoryError(err)
	}
	payment, err := s.orders.FindPayment(ctx, record.PaymentID)
	if err != nil {
		return PlacedOrder{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, orderEventReplayed, map[string]any{
		"order_id":    order.ID,
		"payment_id":  payment.ID,
		"key_preview": record.KeyPreview,
	})
	return PlacedOrder{Order: order, Payment: payment, Replayed: true}, nil
}

// replayAfterConflict re-reads the ledger after losing the admission race.
func (s *orderService) replayAfterConflict(ctx context.Context, keyHash string) (PlacedOrder, error) {
	record, err := s.idempotency.Find(ctx, keyHash)
	if err != nil {
		if repositories.IsNotFound(err) {
			return PlacedOrder{}, ErrOrderConflict
		}
		return PlacedOrder{}, s.mapRepositoryError(err)
	}
	if record.Expired(s.clock()) {
		return PlacedOrder{}, ErrOrderConflict
	}
	return s.replay(ctx, record)
}

func (s *orderService) mapRepositoryError(err error) error {
	switch {
	case err == nil:
		return nil
	case repositories.IsNotFound(err):
		return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
	case repositories.IsConflict(err):
		return fmt.Errorf("%w: %v", ErrOrderConflict, err)
	case repositories.IsUnavailable(err):
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	default:
		return err
	}
}

func isManager(role string) bool {
	return strings.EqualFold(strings.TrimSpace(role), "manager")
}
