package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/roastline/api/internal/domain"
	"github.com/roastline/api/internal/platform/httpx"
	"github.com/roastline/api/internal/services"
)

// MenuHandlers exposes the public product catalog.
type MenuHandlers struct {
	catalog services.CatalogService
}

// NewMenuHandlers constructs a new MenuHandlers instance.
func NewMenuHandlers(catalog services.CatalogService) *MenuHandlers {
	return &MenuHandlers{catalog: catalog}
}

// Routes registers the /menu endpoints. No authentication; the menu is public.
func (h *MenuHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listMenu)
}

type menuItemView struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Description    string              `json:"description,omitempty"`
	BasePriceCents int64               `json:"base_price_cents"`
	Variations     []menuVariationView `json:"variations"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

type menuVariationView struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	PriceChangeCents int64  `json:"price_change_cents"`
}

func (h *MenuHandlers) listMenu(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	products, err := h.catalog.ListMenu(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog temporarily unavailable", http.StatusServiceUnavailable))
		return
	}

	items := make([]menuItemView, 0, len(products))
	for _, product := range products {
		items = append(items, newMenuItemView(product))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func newMenuItemView(product domain.Product) menuItemView {
	variations := make([]menuVariationView, 0, len(product.Variations))
	for _, v := range product.Variations {
		variations = append(variations, menuVariationView{
			ID:               v.ID,
			Name:             v.Name,
			PriceChangeCents: v.PriceChangeCents,
		})
	}
	return menuItemView{
		ID:             product.ID,
		Name:           product.Name,
		Description:    product.Description,
		BasePriceCents: product.BasePriceCents,
		Variations:     variations,
		UpdatedAt:      product.UpdatedAt,
	}
}
