package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/roastline/api/internal/domain"
	pfirestore "github.com/roastline/api/internal/platform/firestore"
	"github.com/roastline/api/internal/repositories"
)

// IdempotencyRepository reads and purges the admission ledger. Ledger writes
// are performed by OrderRepository.CreateAdmission so they commit atomically
// with the order.
type IdempotencyRepository struct {
	provider *pfirestore.Provider
}

// NewIdempotencyRepository constructs a Firestore-backed ledger reader.
func NewIdempotencyRepository(provider *pfirestore.Provider) (*IdempotencyRepository, error) {
	if provider == nil {
		return nil, errors.New("idempotency repository requires firestore provider")
	}
	return &IdempotencyRepository{provider: provider}, nil
}

// Find loads the ledger record for a key hash. Absent keys surface as a
// not-found repository error; TTL handling is the caller's concern.
func (r *IdempotencyRepository) Find(ctx context.Context, keyHash string) (domain.IdempotencyRecord, error) {
	client, err := r.client(ctx)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}
	keyHash = strings.TrimSpace(keyHash)
	if keyHash == "" {
		return domain.IdempotencyRecord{}, errors.New("idempotency repository: key hash is required")
	}

	snap, err := client.Collection(ledgerCollection).Doc(keyHash).Get(ctx)
	if err != nil {
		return domain.IdempotencyRecord{}, pfirestore.WrapError("idempotency.find", err)
	}

	var record domain.IdempotencyRecord
	if err := snap.DataTo(&record); err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("decode idempotency record %s: %w", snap.Ref.ID, err)
	}
	record.KeyHash = snap.Ref.ID
	return record, nil
}

// PurgeExpired deletes up to limit ledger records whose TTL elapsed before
// now. Deletion is best effort housekeeping; expired records are already
// treated as absent on read.
func (r *IdempotencyRepository) PurgeExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	client, err := r.client(ctx)
	if err != nil {
		return 0, err
	}
	if limit <= 0 {
		return 0, nil
	}

	query := client.Collection(ledgerCollection).
		Where("expires_at", "<=", now.UTC()).
		OrderBy("expires_at", firestore.Asc).
		Limit(limit)

	iter := query.Documents(ctx)
	defer iter.Stop()

	deleted := 0
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return deleted, pfirestore.WrapError("idempotency.purge", err)
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return deleted, pfirestore.WrapError("idempotency.purge", err)
		}
		deleted++
	}
	return deleted, nil
}

func (r *IdempotencyRepository) client(ctx context.Context) (*firestore.Client, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("idempotency repository not initialised")
	}
	return r.provider.Client(ctx)
}

// Ensure interface compliance.
var _ repositories.IdempotencyRepository = (*IdempotencyRepository)(nil)
