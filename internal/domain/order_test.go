package domain

import (
	"testing"
	"time"
)

func TestCanTransitionLinearFlow(t *testing.T) {
	cases := []struct {
		current OrderStatus
		target  OrderStatus
		want    bool
	}{
		{OrderStatusWaiting, OrderStatusPreparation, true},
		{OrderStatusPreparation, OrderStatusReady, true},
		{OrderStatusReady, OrderStatusDelivered, true},

		// Self-transitions are rejected.
		{OrderStatusWaiting, OrderStatusWaiting, false},
		{OrderStatusDelivered, OrderStatusDelivered, false},

		// Skips are rejected.
		{OrderStatusWaiting, OrderStatusReady, false},
		{OrderStatusWaiting, OrderStatusDelivered, false},
		{OrderStatusPreparation, OrderStatusDelivered, false},

		// Reverse moves are rejected.
		{OrderStatusReady, OrderStatusWaiting, false},
		{OrderStatusPreparation, OrderStatusWaiting, false},
		{OrderStatusDelivered, OrderStatusReady, false},
	}

	for _, tc := range cases {
		if got := CanTransition(tc.current, tc.target); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.current, tc.target, got, tc.want)
		}
	}
}

func TestNextStatusTerminalState(t *testing.T) {
	if _, ok := NextStatus(OrderStatusDelivered); ok {
		t.Fatal("delivered must have no successor")
	}
	next, ok := NextStatus(OrderStatusWaiting)
	if !ok || next != OrderStatusPreparation {
		t.Fatalf("NextStatus(waiting) = %s, %v; want preparation, true", next, ok)
	}
}

func TestParseOrderStatus(t *testing.T) {
	for _, raw := range []string{"waiting", "preparation", "ready", "delivered"} {
		if _, ok := ParseOrderStatus(raw); !ok {
			t.Errorf("ParseOrderStatus(%q) rejected a valid status", raw)
		}
	}
	for _, raw := range []string{"", "WAITING", "shipped", "canceled", "done"} {
		if _, ok := ParseOrderStatus(raw); ok {
			t.Errorf("ParseOrderStatus(%q) accepted an invalid status", raw)
		}
	}
}

func TestIdempotencyRecordExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	fresh := IdempotencyRecord{ExpiresAt: now.Add(time.Hour)}
	if fresh.Expired(now) {
		t.Fatal("record expiring in the future reported as expired")
	}

	stale := IdempotencyRecord{ExpiresAt: now.Add(-time.Second)}
	if !stale.Expired(now) {
		t.Fatal("record past its TTL reported as live")
	}

	boundary := IdempotencyRecord{ExpiresAt: now}
	if !boundary.Expired(now) {
		t.Fatal("record expiring exactly now must be treated as absent")
	}
}

func TestHashIdempotencyKey(t *testing.T) {
	a := HashIdempotencyKey("retry-attempt-1")
	b := HashIdempotencyKey("retry-attempt-1")
	c := HashIdempotencyKey("retry-attempt-2")

	if a != b {
		t.Fatal("hash must be deterministic")
	}
	if a == c {
		t.Fatal("distinct keys must not collide")
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256 digest, got %d chars", len(a))
	}
	// Leading/trailing whitespace is not significant.
	if HashIdempotencyKey("  retry-attempt-1  ") != a {
		t.Fatal("hash must trim surrounding whitespace")
	}
}

func TestIdempotencyKeyPreview(t *testing.T) {
	if got := IdempotencyKeyPreview("abcdefghijklmnop"); got != "abcdefgh" {
		t.Fatalf("preview = %q, want first 8 chars", got)
	}
	if got := IdempotencyKeyPreview("abc"); got != "abc" {
		t.Fatalf("short keys are kept whole, got %q", got)
	}
}

func TestUnitPriceCents(t *testing.T) {
	product := Product{
		ID:             "prod-espresso",
		BasePriceCents: 300,
		Variations: []ProductVariation{
			{ID: "var-single", PriceChangeCents: 0},
			{ID: "var-double", PriceChangeCents: 150},
			{ID: "var-decaf", PriceChangeCents: -50},
		},
	}

	price, ok := product.UnitPriceCents("var-double")
	if !ok || price != 450 {
		t.Fatalf("double shot price = %d, %v; want 450, true", price, ok)
	}
	price, ok = product.UnitPriceCents("var-decaf")
	if !ok || price != 250 {
		t.Fatalf("decaf price = %d, %v; want 250, true", price, ok)
	}
	price, ok = product.UnitPriceCents("")
	if !ok || price != 300 {
		t.Fatalf("base price = %d, %v; want 300, true", price, ok)
	}
	if _, ok := product.UnitPriceCents("var-missing"); ok {
		t.Fatal("unknown variation must not resolve")
	}
}

func TestOrderLineItemLineTotal(t *testing.T) {
	item := OrderLineItem{Quantity: 3, UnitPriceCents: 450}
	if got := item.LineTotalCents(); got != 1350 {
		t.Fatalf("line total = %d, want 1350", got)
	}
}
