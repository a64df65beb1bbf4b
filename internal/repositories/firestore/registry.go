package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/roastline/api/internal/platform/firestore"
	"github.com/roastline/api/internal/repositories"
)

// Registry wires the Firestore repository implementations behind the
// repositories.Registry interface.
type Registry struct {
	provider *pfirestore.Provider

	orders        *OrderRepository
	catalog       *CatalogRepository
	idempotency   *IdempotencyRepository
	notifications *NotificationRepository
	health        *HealthRepository
}

// NewRegistry constructs all Firestore repositories on a shared provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	catalog, err := NewCatalogRepository(provider)
	if err != nil {
		return nil, err
	}
	idempotency, err := NewIdempotencyRepository(provider)
	if err != nil {
		return nil, err
	}
	notifications, err := NewNotificationRepository(provider)
	if err != nil {
		return nil, err
	}
	health, err := NewHealthRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:      provider,
		orders:        orders,
		catalog:       catalog,
		idempotency:   idempotency,
		notifications: notifications,
		health:        health,
	}, nil
}

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// Catalog returns the catalog repository.
func (r *Registry) Catalog() repositories.CatalogRepository { return r.catalog }

// Idempotency returns the admission ledger repository.
func (r *Registry) Idempotency() repositories.IdempotencyRepository { return r.idempotency }

// Notifications returns the notification log repository.
func (r *Registry) Notifications() repositories.NotificationRepository { return r.notifications }

// Health returns the backend connectivity checker.
func (r *Registry) Health() repositories.HealthRepository { return r.health }

// Ensure interface compliance.
var _ repositories.Registry = (*Registry)(nil)
