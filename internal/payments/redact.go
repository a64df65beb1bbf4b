package payments

import "strings"

const redactedPlaceholder = "[REDACTED]"

// sensitiveKeys lists payload field names that must never be persisted in the
// payment audit trail. Matching is case-insensitive on the full key.
var sensitiveKeys = map[string]struct{}{
	"card_number":     {},
	"cardnumber":      {},
	"pan":             {},
	"cvv":             {},
	"cvc":             {},
	"security_code":   {},
	"expiry":          {},
	"expiration":      {},
	"authorization":   {},
	"api_key":         {},
	"apikey":          {},
	"secret":          {},
	"token":           {},
	"access_token":    {},
	"refresh_token":   {},
	"password":        {},
	"account_number":  {},
	"routing_number":  {},
	"ssn":             {},
	"tax_id":          {},
	"client_secret":   {},
	"private_key":     {},
	"signature":       {},
	"webhook_secret":  {},
	"payment_method":  {},
	"billing_address": {},
}

// RedactPayload returns a deep copy of the payload with sensitive fields
// replaced. The input map is never modified; gateway responses are stored
// verbatim apart from the redacted keys.
func RedactPayload(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		if isSensitiveKey(key) {
			out[key] = redactedPlaceholder
			continue
		}
		out[key] = redactValue(value)
	}
	return out
}

func redactValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return RedactPayload(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = redactValue(item)
		}
		return out
	default:
		return value
	}
}

func isSensitiveKey(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}
