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

const productCollection = "products"

// CatalogRepository reads the product catalog. The catalog is maintained by a
// separate system, so this repository is read-only.
type CatalogRepository struct {
	provider *pfirestore.Provider
}

// NewCatalogRepository constructs a Firestore-backed catalog repository.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{provider: provider}, nil
}

// FindProduct loads a single product with its variations.
func (r *CatalogRepository) FindProduct(ctx context.Context, productID string) (domain.Product, error) {
	client, err := r.client(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, errors.New("catalog repository: product id is required")
	}

	snap, err := client.Collection(productCollection).Doc(productID).Get(ctx)
	if err != nil {
		return domain.Product{}, pfirestore.WrapError("catalog.find", err)
	}
	return decodeProduct(snap)
}

// ListProducts returns the full catalog ordered by name.
func (r *CatalogRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	client, err := r.client(ctx)
	if err != nil {
		return nil, err
	}

	iter := client.Collection(productCollection).OrderBy("name", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var products []domain.Product
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("catalog.list", err)
		}
		product, err := decodeProduct(snap)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, nil
}

func (r *CatalogRepository) client(ctx context.Context) (*firestore.Client, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("catalog repository not initialised")
	}
	return r.provider.Client(ctx)
}

func decodeProduct(snap *firestore.DocumentSnapshot) (domain.Product, error) {
	var product domain.Product
	if err := snap.DataTo(&product); err != nil {
		return domain.Product{}, fmt.Errorf("decode product %s: %w", snap.Ref.ID, err)
	}
	product.ID = snap.Ref.ID
	return product, nil
}

// Ensure interface compliance.
var _ repositories.CatalogRepository = (*CatalogRepository)(nil)
