package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/roastline/api/internal/domain"
	pfirestore "github.com/roastline/api/internal/platform/firestore"
	"github.com/roastline/api/internal/repositories"
)

const (
	orderCollection   = "orders"
	paymentCollection = "payments"
	ledgerCollection  = "idempotency_keys"

	defaultListLimit = 50
	maxListLimit     = 200
)

// OrderRepository persists orders, payments, and the admission ledger.
type OrderRepository struct {
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{provider: provider}, nil
}

// CreateAdmission writes the order, its payment, and the idempotency ledger
// entry in a single transaction. The ledger document ID is the key hash, so a
// concurrent admission of the same key fails the Create with a conflict and
// nothing is persisted. An admission without a ledger entry (no idempotency
// key supplied) writes only the order and payment.
func (r *OrderRepository) CreateAdmission(ctx context.Context, admission repositories.Admission) error {
	client, err := r.client(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(admission.Order.ID) == "" {
		return errors.New("order repository: order id is required")
	}
	if strings.TrimSpace(admission.Payment.ID) == "" {
		return errors.New("order repository: payment id is required")
	}

	orderRef := client.Collection(orderCollection).Doc(admission.Order.ID)
	paymentRef := client.Collection(paymentCollection).Doc(admission.Payment.ID)

	return pfirestore.RunTransaction(ctx, client, "orders.admit", func(ctx context.Context, tx *firestore.Transaction) error {
		if keyHash := strings.TrimSpace(admission.Ledger.KeyHash); keyHash != "" {
			ledgerRef := client.Collection(ledgerCollection).Doc(keyHash)
			if admission.OverwriteLedger {
				// Reusing an expired key: re-read the record inside the
				// transaction, putting it in the read set. Concurrent reuses
				// of the same key then conflict instead of committing blind,
				// and a record revived since the caller's fast-path check is
				// never clobbered.
				snap, err := tx.Get(ledgerRef)
				switch {
				case err == nil:
					var stored domain.IdempotencyRecord
					if err := snap.DataTo(&stored); err != nil {
						return fmt.Errorf("decode idempotency record %s: %w", keyHash, err)
					}
					if !stored.Expired(admission.Ledger.CreatedAt) {
						return status.Errorf(codes.AlreadyExists,
							"idempotency key %s is live again", admission.Ledger.KeyPreview)
					}
					if err := tx.Set(ledgerRef, admission.Ledger); err != nil {
						return err
					}
				case status.Code(err) == codes.NotFound:
					// The expired record was purged since the caller's check.
					if err := tx.Create(ledgerRef, admission.Ledger); err != nil {
						return err
					}
				default:
					return err
				}
			} else if err := tx.Create(ledgerRef, admission.Ledger); err != nil {
				return err
			}
		}
		if err := tx.Create(orderRef, admission.Order); err != nil {
			return err
		}
		return tx.Create(paymentRef, admission.Payment)
	})
}

// FindByID loads a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	client, err := r.client(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	snap, err := client.Collection(orderCollection).Doc(orderID).Get(ctx)
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.find", err)
	}
	return decodeOrder(snap)
}

// List returns orders matching the filter, most recent first.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	client, err := r.client(ctx)
	if err != nil {
		return nil, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := client.Collection(orderCollection).Query
	if customer := strings.TrimSpace(filter.CustomerID); customer != "" {
		query = query.Where("customer_id", "==", customer)
	}
	if filter.Status != "" {
		query = query.Where("status", "==", string(filter.Status))
	}
	query = query.OrderBy("created_at", firestore.Desc).Limit(limit)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var orders []domain.Order
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("orders.list", err)
		}
		order, err := decodeOrder(snap)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// Mutate reloads the order inside a transaction, applies fn, and persists the
// result. Firestore serialises concurrent transactions on the same document,
// so fn always sees the latest committed state.
func (r *OrderRepository) Mutate(ctx context.Context, orderID string, fn func(order *domain.Order) error) (domain.Order, error) {
	client, err := r.client(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	if fn == nil {
		return domain.Order{}, errors.New("order repository: mutation function is required")
	}

	docRef := client.Collection(orderCollection).Doc(orderID)
	var (
		updated domain.Order
		fnErr   error
	)
	err = pfirestore.RunTransaction(ctx, client, "orders.mutate", func(ctx context.Context, tx *firestore.Transaction) error {
		fnErr = nil
		snap, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		order, err := decodeOrder(snap)
		if err != nil {
			return err
		}
		if err := fn(&order); err != nil {
			fnErr = err
			return err
		}
		if err := tx.Set(docRef, order); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		// Domain errors from fn pass through without repository wrapping.
		if fnErr != nil && errors.Is(err, fnErr) {
			return domain.Order{}, fnErr
		}
		return domain.Order{}, err
	}
	return updated, nil
}

// FindPayment loads a payment audit record.
func (r *OrderRepository) FindPayment(ctx context.Context, paymentID string) (domain.Payment, error) {
	client, err := r.client(ctx)
	if err != nil {
		return domain.Payment{}, err
	}
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return domain.Payment{}, errors.New("order repository: payment id is required")
	}

	snap, err := client.Collection(paymentCollection).Doc(paymentID).Get(ctx)
	if err != nil {
		return domain.Payment{}, pfirestore.WrapError("payments.find", err)
	}
	var payment domain.Payment
	if err := snap.DataTo(&payment); err != nil {
		return domain.Payment{}, fmt.Errorf("decode payment %s: %w", snap.Ref.ID, err)
	}
	payment.ID = snap.Ref.ID
	return payment, nil
}

func (r *OrderRepository) client(ctx context.Context) (*firestore.Client, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("order repository not initialised")
	}
	return r.provider.Client(ctx)
}

func decodeOrder(snap *firestore.DocumentSnapshot) (domain.Order, error) {
	var order domain.Order
	if err := snap.DataTo(&order); err != nil {
		return domain.Order{}, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
	}
	order.ID = snap.Ref.ID
	return order, nil
}

// Ensure interface compliance.
var _ repositories.OrderRepository = (*OrderRepository)(nil)
