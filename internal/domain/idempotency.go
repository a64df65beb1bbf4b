package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// IdempotencyTTL is the default retention for idempotency records. Records
// older than this are treated as absent and the key may be reused.
const IdempotencyTTL = 24 * time.Hour

const keyPreviewLength = 8

// IdempotencyRecord maps the hash of a client key to the outcome of the
// attempt that won the key. The hash doubles as the document ID, so storage
// uniqueness is enforced by the document store itself. The raw key is never
// persisted.
type IdempotencyRecord struct {
	KeyHash    string    `firestore:"key_hash"`
	KeyPreview string    `firestore:"key_preview"`
	OrderID    string    `firestore:"order_id"`
	PaymentID  string    `firestore:"payment_id"`
	CreatedAt  time.Time `firestore:"created_at"`
	ExpiresAt  time.Time `firestore:"expires_at"`
}

// Expired reports whether the record has passed its TTL at the given instant.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// HashIdempotencyKey derives the storage identity of a client key. One-way,
// so the raw value never reaches the durable store.
func HashIdempotencyKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

// IdempotencyKeyPreview returns the short non-reversible prefix stored for
// operator debugging alongside the hash.
func IdempotencyKeyPreview(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) <= keyPreviewLength {
		return trimmed
	}
	return trimmed[:keyPreviewLength]
}
