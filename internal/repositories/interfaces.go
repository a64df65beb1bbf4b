package repositories

import (
	"context"
	"errors"
	"time"

	domain "github.com/roastline/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Catalog() CatalogRepository
	Idempotency() IdempotencyRepository
	Notifications() NotificationRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// IsNotFound reports whether err categorises as a missing record.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsConflict reports whether err categorises as a conflicting write.
func IsConflict(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}

// IsUnavailable reports whether err categorises as a transient backend outage.
func IsUnavailable(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsUnavailable()
}

// OrderListFilter narrows order listings.
type OrderListFilter struct {
	CustomerID string
	Status     domain.OrderStatus
	Limit      int
}

// Admission bundles the records persisted atomically when an order is
// admitted. OverwriteLedger is set when an expired ledger record for the same
// key hash may be replaced instead of created.
type Admission struct {
	Order           domain.Order
	Payment         domain.Payment
	Ledger          domain.IdempotencyRecord
	OverwriteLedger bool
}

// OrderRepository persists orders, their payment audit records, and applies
// serialized status mutations.
type OrderRepository interface {
	// CreateAdmission writes the order, payment, and idempotency ledger entry
	// in one transaction. A conflict error means another request holds the
	// ledger key; nothing is written in that case. A zero-valued Ledger skips
	// the ledger write entirely.
	CreateAdmission(ctx context.Context, admission Admission) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) ([]domain.Order, error)
	// Mutate applies fn to the current order inside a transaction and persists
	// the result. Errors returned by fn abort without writing and are passed
	// through unchanged.
	Mutate(ctx context.Context, orderID string, fn func(order *domain.Order) error) (domain.Order, error)
	FindPayment(ctx context.Context, paymentID string) (domain.Payment, error)
}

// CatalogRepository reads the product catalog used for price resolution.
type CatalogRepository interface {
	FindProduct(ctx context.Context, productID string) (domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// IdempotencyRepository reads and maintains the admission ledger. Writes
// happen through OrderRepository.CreateAdmission so they stay atomic with the
// order itself.
type IdempotencyRepository interface {
	Find(ctx context.Context, keyHash string) (domain.IdempotencyRecord, error)
	// PurgeExpired removes up to limit records whose TTL elapsed before now,
	// returning the number deleted.
	PurgeExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// NotificationRepository stores the append-only delivery log.
type NotificationRepository interface {
	Append(ctx context.Context, record domain.NotificationRecord) error
	ListByOrder(ctx context.Context, orderID string) ([]domain.NotificationRecord, error)
}

// HealthRepository verifies backend connectivity for readiness probes.
type HealthRepository interface {
	Check(ctx context.Context) error
}
