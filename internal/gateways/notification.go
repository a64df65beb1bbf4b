package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultNotificationTimeout = 5 * time.Second

// NotificationClient posts order status updates to the external notification
// service. Delivery is best effort; callers record the outcome and move on.
type NotificationClient struct {
	endpoint   string
	httpClient *http.Client
}

// NotifyResult captures a delivery attempt for the notification log.
type NotifyResult struct {
	Delivered       bool
	StatusCode      int
	ResponsePayload map[string]any
}

// NotificationOption customises NotificationClient construction.
type NotificationOption func(*NotificationClient)

// WithNotificationHTTPClient overrides the HTTP client (primarily for tests).
func WithNotificationHTTPClient(client *http.Client) NotificationOption {
	return func(c *NotificationClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewNotificationClient constructs a NotificationClient targeting the given endpoint.
// An empty endpoint disables delivery; NotifyStatusChange then reports failure
// without performing network calls.
func NewNotificationClient(endpoint string, timeout time.Duration, opts ...NotificationOption) *NotificationClient {
	if timeout <= 0 {
		timeout = defaultNotificationTimeout
	}
	client := &NotificationClient{
		endpoint:   strings.TrimSpace(endpoint),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

// NotifyStatusChange posts the new status to the notification service.
func (c *NotificationClient) NotifyStatusChange(ctx context.Context, status string) (NotifyResult, error) {
	result := NotifyResult{}
	if c.endpoint == "" {
		return result, errors.New("notification gateway: endpoint not configured")
	}

	body, err := json.Marshal(map[string]any{"status": status})
	if err != nil {
		return result, fmt.Errorf("notification gateway: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return result, fmt.Errorf("notification gateway: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return result, fmt.Errorf("notification gateway: deliver: %w", err)
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	result.Delivered = resp.StatusCode >= 200 && resp.StatusCode < 300
	result.ResponsePayload = decodeResponseBody(resp.Body)

	if !result.Delivered {
		return result, fmt.Errorf("notification gateway: unexpected status %d", resp.StatusCode)
	}
	return result, nil
}
