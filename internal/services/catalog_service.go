package services

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/roastline/api/internal/domain"
	"github.com/roastline/api/internal/repositories"
)

// ErrCatalogUnavailable indicates the catalog backend could not be reached.
var ErrCatalogUnavailable = errors.New("catalog: backend unavailable")

// CatalogServiceDeps bundles collaborators for the catalog service.
type CatalogServiceDeps struct {
	Catalog repositories.CatalogRepository
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	catalog repositories.CatalogRepository
	logger  func(context.Context, string, map[string]any)
}

// NewCatalogService wires dependencies into a concrete CatalogService.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("catalog service: catalog repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &catalogService{catalog: deps.Catalog, logger: logger}, nil
}

// ListMenu returns the full product catalog with variations.
func (s *catalogService) ListMenu(ctx context.Context) ([]domain.Product, error) {
	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		if repositories.IsUnavailable(err) {
			return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
		}
		return nil, err
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}
