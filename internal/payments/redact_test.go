package payments

import "testing"

func TestRedactPayloadMasksSensitiveKeys(t *testing.T) {
	payload := map[string]any{
		"value":       1050,
		"currency":    "usd",
		"card_number": "4242424242424242",
		"CVV":         "123",
	}

	got := RedactPayload(payload)

	if got["value"] != 1050 {
		t.Errorf("expected value preserved, got %v", got["value"])
	}
	if got["card_number"] != redactedPlaceholder {
		t.Errorf("expected card_number redacted, got %v", got["card_number"])
	}
	if got["CVV"] != redactedPlaceholder {
		t.Errorf("expected CVV redacted regardless of case, got %v", got["CVV"])
	}
	if payload["card_number"] != "4242424242424242" {
		t.Error("input payload must not be modified")
	}
}

func TestRedactPayloadWalksNestedStructures(t *testing.T) {
	payload := map[string]any{
		"charge": map[string]any{
			"amount": 500,
			"source": map[string]any{
				"pan": "4111111111111111",
			},
		},
		"attempts": []any{
			map[string]any{"token": "tok_123", "status": "declined"},
		},
	}

	got := RedactPayload(payload)

	charge := got["charge"].(map[string]any)
	source := charge["source"].(map[string]any)
	if source["pan"] != redactedPlaceholder {
		t.Errorf("expected nested pan redacted, got %v", source["pan"])
	}

	attempt := got["attempts"].([]any)[0].(map[string]any)
	if attempt["token"] != redactedPlaceholder {
		t.Errorf("expected token in list redacted, got %v", attempt["token"])
	}
	if attempt["status"] != "declined" {
		t.Errorf("expected status preserved, got %v", attempt["status"])
	}
}

func TestRedactPayloadNil(t *testing.T) {
	if got := RedactPayload(nil); got != nil {
		t.Errorf("expected nil passthrough, got %v", got)
	}
}
