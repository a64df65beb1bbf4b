package domain

import "time"

// Product is a read-only catalog entry. Catalog management happens in a
// separate system; this service only resolves prices and lists the menu.
type Product struct {
	ID             string             `firestore:"id"`
	Name           string             `firestore:"name"`
	Description    string             `firestore:"description,omitempty"`
	BasePriceCents int64              `firestore:"base_price_cents"`
	Variations     []ProductVariation `firestore:"variations"`
	UpdatedAt      time.Time          `firestore:"updated_at"`
}

// ProductVariation adjusts the product base price by a signed delta.
type ProductVariation struct {
	ID               string `firestore:"id"`
	Name             string `firestore:"name"`
	PriceChangeCents int64  `firestore:"price_change_cents"`
}

// UnitPriceCents resolves the effective unit price for one of the product's
// variations. An empty variation ID selects the base price. The second return
// is false when the variation does not belong to the product.
func (p Product) UnitPriceCents(variationID string) (int64, bool) {
	if variationID == "" {
		return p.BasePriceCents, true
	}
	for _, v := range p.Variations {
		if v.ID == variationID {
			return p.BasePriceCents + v.PriceChangeCents, true
		}
	}
	return 0, false
}
