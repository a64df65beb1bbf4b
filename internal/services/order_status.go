package services

import (
	"context"
	"fmt"
	"strings"

	domain "github.com/roastline/api/internal/domain"
)

// AdvanceStatus moves an order exactly one step along the linear lifecycle.
// The transition check and the write happen in the same transaction, so
// concurrent requests on one order serialise and at most one of them wins.
// Notifications and events run strictly after the commit and never fail it.
func (s *orderService) AdvanceStatus(ctx context.Context, cmd AdvanceStatusCommand) (domain.Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target, ok := domain.ParseOrderStatus(strings.TrimSpace(cmd.TargetStatus))
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.TargetStatus)
	}

	var previous domain.OrderStatus
	updated, err := s.orders.Mutate(ctx, orderID, func(order *domain.Order) error {
		if !domain.CanTransition(order.Status, target) {
			return fmt.Errorf("%w: %s -> %s", ErrOrderInvalidState, order.Status, target)
		}
		previous = order.Status
		order.Status = target
		order.UpdatedAt = s.clock()
		return nil
	})
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, orderEventStatusChanged, map[string]any{
		"order_id": updated.ID,
		"from":     string(previous),
		"to":       string(target),
		"actor_id": cmd.ActorID,
	})

	s.dispatchNotification(ctx, updated)
	s.publishStatusEvent(ctx, updated, previous, cmd.ActorID)

	return updated, nil
}

// ListNotifications returns the delivery log for an order the requester may see.
func (s *orderService) ListNotifications(ctx context.Context, query GetOrderQuery) ([]domain.NotificationRecord, error) {
	if _, err := s.GetOrder(ctx, query); err != nil {
		return nil, err
	}
	if s.notifications == nil {
		return []domain.NotificationRecord{}, nil
	}
	records, err := s.notifications.ListByOrder(ctx, strings.TrimSpace(query.OrderID))
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	if records == nil {
		records = []domain.NotificationRecord{}
	}
	return records, nil
}

// dispatchNotification delivers the status change and appends the attempt to
// the log. Every attempt is recorded, delivered or not, and failures are
// swallowed after logging.
func (s *orderService) dispatchNotification(ctx context.Context, order domain.Order) {
	if s.notifier == nil {
		return
	}

	result, err := s.notifier.NotifyStatusChange(ctx, string(order.Status))
	if err != nil {
		s.logger(ctx, "order.notification.failed", map[string]any{
			"order_id": order.ID,
			"status":   string(order.Status),
			"error":    err.Error(),
		})
	}

	if s.notifications == nil {
		return
	}
	record := domain.NotificationRecord{
		ID:              notificationIDPrefix + s.newID(),
		OrderID:         order.ID,
		Status:          order.Status,
		ResponseStatus:  result.StatusCode,
		ResponsePayload: result.ResponsePayload,
		CreatedAt:       s.clock(),
	}
	if err := s.notifications.Append(ctx, record); err != nil {
		s.logger(ctx, "order.notification.log_failed", map[string]any{
			"order_id": order.ID,
			"error":    err.Error(),
		})
	}
}

func (s *orderService) publishStatusEvent(ctx context.Context, order domain.Order, previous domain.OrderStatus, actorID string) {
	if s.events == nil {
		return
	}

	event := OrderStatusEvent{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		From:       string(previous),
		To:         string(order.Status),
		ActorID:    strings.TrimSpace(actorID),
		OccurredAt: s.clock(),
	}
	if _, err := s.events.PublishOrderStatusChanged(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish_failed", map[string]any{
			"order_id": order.ID,
			"error":    err.Error(),
		})
	}
}
