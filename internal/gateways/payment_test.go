package gateways

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestChargeApprovedOn2xx(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"transaction_id": "txn_1"})
	}))
	defer server.Close()

	client, err := NewPaymentClient(server.URL, time.Second)
	if err != nil {
		t.Fatalf("NewPaymentClient: %v", err)
	}

	result, err := client.Charge(context.Background(), 1050)
	if err != nil {
		t.Fatalf("Charge returned error: %v", err)
	}
	if !result.Approved {
		t.Error("expected charge approved")
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", result.StatusCode)
	}
	if received["value"] != float64(1050) {
		t.Errorf("expected value 1050 in request body, got %v", received["value"])
	}
	if result.ResponsePayload["transaction_id"] != "txn_1" {
		t.Errorf("expected response payload captured, got %v", result.ResponsePayload)
	}
}

func TestChargeDeclinedOnGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(map[string]any{"reason": "insufficient_funds"})
	}))
	defer server.Close()

	client, err := NewPaymentClient(server.URL, time.Second)
	if err != nil {
		t.Fatalf("NewPaymentClient: %v", err)
	}

	result, err := client.Charge(context.Background(), 500)
	if err != nil {
		t.Fatalf("Charge returned error: %v", err)
	}
	if result.Approved {
		t.Error("expected charge declined")
	}
	if result.ResponsePayload["reason"] != "insufficient_funds" {
		t.Errorf("expected decline reason captured, got %v", result.ResponsePayload)
	}
}

func TestChargeDeclinedOnTimeout(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	client, err := NewPaymentClient(server.URL, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewPaymentClient: %v", err)
	}

	result, err := client.Charge(context.Background(), 500)
	if err != nil {
		t.Fatalf("Charge returned error: %v", err)
	}
	if result.Approved {
		t.Error("expected timeout to decline the charge")
	}
	if result.ResponsePayload["error"] == nil {
		t.Error("expected transport error recorded in response payload")
	}
}

func TestChargeRedactsSensitiveResponseFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"transaction_id": "txn_9",
			"token":          "tok_secret",
		})
	}))
	defer server.Close()

	client, err := NewPaymentClient(server.URL, time.Second)
	if err != nil {
		t.Fatalf("NewPaymentClient: %v", err)
	}

	result, err := client.Charge(context.Background(), 300)
	if err != nil {
		t.Fatalf("Charge returned error: %v", err)
	}
	if result.ResponsePayload["token"] == "tok_secret" {
		t.Error("expected token redacted from stored response payload")
	}
}

func TestChargeNonJSONResponseCapturedRaw(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer server.Close()

	client, err := NewPaymentClient(server.URL, time.Second)
	if err != nil {
		t.Fatalf("NewPaymentClient: %v", err)
	}

	result, err := client.Charge(context.Background(), 300)
	if err != nil {
		t.Fatalf("Charge returned error: %v", err)
	}
	if result.Approved {
		t.Error("expected 502 to decline the charge")
	}
	if result.ResponsePayload["raw"] != "upstream exploded" {
		t.Errorf("expected raw body captured, got %v", result.ResponsePayload)
	}
}

func TestNewPaymentClientRequiresEndpoint(t *testing.T) {
	if _, err := NewPaymentClient("  ", time.Second); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
}
