package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/roastline/api/internal/payments"
)

const (
	defaultPaymentTimeout = 10 * time.Second
	maxResponseBytes      = 1 << 20
)

// PaymentClient calls the external payment gateway to charge an order total.
// A non-2xx reply, a timeout, or an unreachable gateway all surface as a
// declined charge rather than an error, so the caller can map them uniformly.
type PaymentClient struct {
	endpoint   string
	httpClient *http.Client
}

// ChargeResult captures the outcome of a charge attempt along with the
// redacted request and response payloads retained for the audit trail.
type ChargeResult struct {
	Approved        bool
	StatusCode      int
	RequestPayload  map[string]any
	ResponsePayload map[string]any
}

// PaymentOption customises PaymentClient construction.
type PaymentOption func(*PaymentClient)

// WithPaymentHTTPClient overrides the HTTP client (primarily for tests).
func WithPaymentHTTPClient(client *http.Client) PaymentOption {
	return func(c *PaymentClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewPaymentClient constructs a PaymentClient targeting the given endpoint.
func NewPaymentClient(endpoint string, timeout time.Duration, opts ...PaymentOption) (*PaymentClient, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("payment gateway: endpoint is required")
	}
	if timeout <= 0 {
		timeout = defaultPaymentTimeout
	}

	client := &PaymentClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Charge posts the amount to the gateway. The returned error is reserved for
// request construction failures; transport failures are reported as a decline.
func (c *PaymentClient) Charge(ctx context.Context, amountCents int64) (ChargeResult, error) {
	requestPayload := map[string]any{"value": amountCents}
	result := ChargeResult{
		RequestPayload: payments.RedactPayload(requestPayload),
	}

	body, err := json.Marshal(requestPayload)
	if err != nil {
		return result, fmt.Errorf("payment gateway: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return result, fmt.Errorf("payment gateway: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		result.ResponsePayload = map[string]any{"error": err.Error()}
		return result, nil
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	result.Approved = resp.StatusCode >= 200 && resp.StatusCode < 300
	result.ResponsePayload = payments.RedactPayload(decodeResponseBody(resp.Body))
	return result, nil
}

// decodeResponseBody parses a bounded JSON body, falling back to a raw string
// capture when the gateway replies with something else.
func decodeResponseBody(body io.Reader) map[string]any {
	data, err := io.ReadAll(io.LimitReader(body, maxResponseBytes))
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	var parsed map[string]any
	if err := json.Unmarshal(trimmed, &parsed); err == nil {
		return parsed
	}
	return map[string]any{"raw": string(trimmed)}
}
