package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/roastline/api/internal/domain"
	pfirestore "github.com/roastline/api/internal/platform/firestore"
	"github.com/roastline/api/internal/repositories"
)

const notificationCollection = "notifications"

// NotificationRepository stores the append-only delivery log for status
// change notifications.
type NotificationRepository struct {
	provider *pfirestore.Provider
}

// NewNotificationRepository constructs a Firestore-backed notification log.
func NewNotificationRepository(provider *pfirestore.Provider) (*NotificationRepository, error) {
	if provider == nil {
		return nil, errors.New("notification repository requires firestore provider")
	}
	return &NotificationRepository{provider: provider}, nil
}

// Append records one delivery attempt. Records are never updated or deleted.
func (r *NotificationRepository) Append(ctx context.Context, record domain.NotificationRecord) error {
	client, err := r.client(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(record.ID) == "" {
		return errors.New("notification repository: record id is required")
	}
	if strings.TrimSpace(record.OrderID) == "" {
		return errors.New("notification repository: order id is required")
	}

	if _, err := client.Collection(notificationCollection).Doc(record.ID).Create(ctx, record); err != nil {
		return pfirestore.WrapError("notifications.append", err)
	}
	return nil
}

// ListByOrder returns the delivery log for an order, oldest first.
func (r *NotificationRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.NotificationRecord, error) {
	client, err := r.client(ctx)
	if err != nil {
		return nil, err
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, errors.New("notification repository: order id is required")
	}

	iter := client.Collection(notificationCollection).
		Where("order_id", "==", orderID).
		OrderBy("created_at", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var records []domain.NotificationRecord
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("notifications.list", err)
		}
		var record domain.NotificationRecord
		if err := snap.DataTo(&record); err != nil {
			return nil, fmt.Errorf("decode notification %s: %w", snap.Ref.ID, err)
		}
		record.ID = snap.Ref.ID
		records = append(records, record)
	}
	return records, nil
}

func (r *NotificationRepository) client(ctx context.Context) (*firestore.Client, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("notification repository not initialised")
	}
	return r.provider.Client(ctx)
}

// Ensure interface compliance.
var _ repositories.NotificationRepository = (*NotificationRepository)(nil)
