package firestore

import (
	"context"
	"errors"
	"time"

	pfirestore "github.com/roastline/api/internal/platform/firestore"
	"github.com/roastline/api/internal/repositories"
)

const healthCheckTimeout = 3 * time.Second

// HealthRepository verifies Firestore connectivity for readiness probes.
type HealthRepository struct {
	provider *pfirestore.Provider
}

// NewHealthRepository constructs a Firestore connectivity checker.
func NewHealthRepository(provider *pfirestore.Provider) (*HealthRepository, error) {
	if provider == nil {
		return nil, errors.New("health repository requires firestore provider")
	}
	return &HealthRepository{provider: provider}, nil
}

// Check performs a bounded single-document read against the catalog. Reading
// an empty collection is a successful round trip.
func (r *HealthRepository) Check(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return errors.New("health repository not initialised")
	}

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	iter := client.Collection(productCollection).Limit(1).Documents(ctx)
	defer iter.Stop()

	if _, err := iter.GetAll(); err != nil {
		return pfirestore.WrapError("health.check", err)
	}
	return nil
}

// Ensure interface compliance.
var _ repositories.HealthRepository = (*HealthRepository)(nil)
