package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/roastline/api/internal/domain"
	"github.com/roastline/api/internal/platform/auth"
	"github.com/roastline/api/internal/platform/httpx"
	"github.com/roastline/api/internal/platform/requestctx"
	"github.com/roastline/api/internal/services"
)

const (
	defaultIdempotencyHeader = "Idempotency-Key"
	maxOrderBodyBytes        = 1 << 20
)

// OrderHandlers exposes order admission, retrieval, and lifecycle endpoints.
type OrderHandlers struct {
	authn             *auth.Authenticator
	orders            services.OrderService
	idempotencyHeader string
}

// OrderHandlerOption customises an OrderHandlers instance.
type OrderHandlerOption func(*OrderHandlers)

// WithIdempotencyHeader overrides the header carrying the idempotency key.
func WithIdempotencyHeader(name string) OrderHandlerOption {
	return func(h *OrderHandlers) {
		if name = strings.TrimSpace(name); name != "" {
			h.idempotencyHeader = name
		}
	}
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, opts ...OrderHandlerOption) *OrderHandlers {
	h := &OrderHandlers{
		authn:             authn,
		orders:            orders,
		idempotencyHeader: defaultIdempotencyHeader,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /orders endpoints. All routes require authentication;
// status transitions additionally require the manager role.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}

	r.Group(func(gr chi.Router) {
		gr.Use(h.authn.Require(auth.RoleCustomer, auth.RoleManager))
		gr.Post("/", h.placeOrder)
		gr.Get("/", h.listOrders)
		gr.Get("/{orderID}", h.getOrder)
		gr.Get("/{orderID}/notifications", h.listNotifications)
	})

	r.Group(func(gr chi.Router) {
		gr.Use(h.authn.Require(auth.RoleManager))
		gr.Patch("/{orderID}/status", h.advanceStatus)
	})
}

type placeOrderRequest struct {
	Items      []orderItemRequest `json:"items"`
	TotalCents *int64             `json:"total_cents,omitempty"`
	Metadata   map[string]any     `json:"metadata,omitempty"`
}

type orderItemRequest struct {
	ProductID   string `json:"product_id"`
	VariationID string `json:"variation_id,omitempty"`
	Quantity    int    `json:"quantity"`
}

type advanceStatusRequest struct {
	Status string `json:"status"`
}

type orderView struct {
	ID         string          `json:"id"`
	CustomerID string          `json:"customer_id"`
	Status     string          `json:"status"`
	TotalCents int64           `json:"total_cents"`
	Items      []orderItemView `json:"items"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type orderItemView struct {
	ProductID      string `json:"product_id"`
	VariationID    string `json:"variation_id,omitempty"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	LineTotalCents int64  `json:"line_total_cents"`
}

type paymentView struct {
	ID             string    `json:"id"`
	AmountCents    int64     `json:"amount_cents"`
	ResponseStatus int       `json:"response_status"`
	CreatedAt      time.Time `json:"created_at"`
}

type placedOrderView struct {
	Order    orderView   `json:"order"`
	Payment  paymentView `json:"payment"`
	Replayed bool        `json:"replayed"`
}

type notificationView struct {
	ID              string         `json:"id"`
	OrderID         string         `json:"order_id"`
	Status          string         `json:"status"`
	ResponseStatus  int            `json:"response_status"`
	ResponsePayload map[string]any `json:"response_payload,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

func (h *OrderHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requestctx.IdentityFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	// Absent header means no deduplication; retries without a key create new
	// orders.
	key := strings.TrimSpace(r.Header.Get(h.idempotencyHeader))

	var req placeOrderRequest
	if err := decodeJSONBody(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	items := make([]services.OrderItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, services.OrderItemInput{
			ProductID:   item.ProductID,
			VariationID: item.VariationID,
			Quantity:    item.Quantity,
		})
	}

	placed, err := h.orders.PlaceOrder(ctx, services.PlaceOrderCommand{
		IdempotencyKey:     key,
		CustomerID:         identity.Subject,
		Items:              items,
		AssertedTotalCents: req.TotalCents,
		Metadata:           req.Metadata,
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	status := http.StatusCreated
	if placed.Replayed {
		status = http.StatusOK
	}
	httpx.WriteJSON(w, status, placedOrderView{
		Order:    newOrderView(placed.Order),
		Payment:  newPaymentView(placed.Payment),
		Replayed: placed.Replayed,
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, _ := requestctx.IdentityFromContext(ctx)

	order, err := h.orders.GetOrder(ctx, services.GetOrderQuery{
		OrderID:       chi.URLParam(r, "orderID"),
		RequesterID:   identity.Subject,
		RequesterRole: identity.Role,
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newOrderView(order))
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, _ := requestctx.IdentityFromContext(ctx)

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a non-negative integer", http.StatusBadRequest))
			return
		}
		limit = parsed
	}

	orders, err := h.orders.ListOrders(ctx, services.ListOrdersQuery{
		RequesterID:   identity.Subject,
		RequesterRole: identity.Role,
		CustomerID:    r.URL.Query().Get("customer_id"),
		Status:        r.URL.Query().Get("status"),
		Limit:         limit,
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	views := make([]orderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, newOrderView(order))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"orders": views})
}

func (h *OrderHandlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, _ := requestctx.IdentityFromContext(ctx)

	records, err := h.orders.ListNotifications(ctx, services.GetOrderQuery{
		OrderID:       chi.URLParam(r, "orderID"),
		RequesterID:   identity.Subject,
		RequesterRole: identity.Role,
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	views := make([]notificationView, 0, len(records))
	for _, record := range records {
		views = append(views, notificationView{
			ID:              record.ID,
			OrderID:         record.OrderID,
			Status:          string(record.Status),
			ResponseStatus:  record.ResponseStatus,
			ResponsePayload: record.ResponsePayload,
			CreatedAt:       record.CreatedAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"notifications": views})
}

func (h *OrderHandlers) advanceStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, _ := requestctx.IdentityFromContext(ctx)

	var req advanceStatusRequest
	if err := decodeJSONBody(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	order, err := h.orders.AdvanceStatus(ctx, services.AdvanceStatusCommand{
		OrderID:      chi.URLParam(r, "orderID"),
		TargetStatus: req.Status,
		ActorID:      identity.Subject,
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newOrderView(order))
}

// writeOrderError maps service sentinels onto the API error envelope.
func (h *OrderHandlers) writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrUnknownProduct):
		httpx.WriteError(ctx, w, httpx.NewError("unknown_product", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrTotalMismatch):
		httpx.WriteError(ctx, w, httpx.NewError("total_mismatch", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrPaymentDeclined):
		declineErr := httpx.NewError("payment_declined", err.Error(), http.StatusPaymentRequired)
		var declined *services.PaymentDeclinedError
		if errors.As(err, &declined) {
			declineErr = declineErr.WithDetails(map[string]any{
				"gateway_status":   declined.StatusCode,
				"gateway_response": declined.Response,
			})
		}
		httpx.WriteError(ctx, w, declineErr)
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrBackendUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("backend_unavailable", "service temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}

func newOrderView(order domain.Order) orderView {
	items := make([]orderItemView, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemView{
			ProductID:      item.ProductID,
			VariationID:    item.VariationID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			LineTotalCents: item.LineTotalCents(),
		})
	}
	return orderView{
		ID:         order.ID,
		CustomerID: order.CustomerID,
		Status:     string(order.Status),
		TotalCents: order.TotalCents,
		Items:      items,
		Metadata:   order.Metadata,
		CreatedAt:  order.CreatedAt,
		UpdatedAt:  order.UpdatedAt,
	}
}

func newPaymentView(payment domain.Payment) paymentView {
	return paymentView{
		ID:             payment.ID,
		AmountCents:    payment.AmountCents,
		ResponseStatus: payment.ResponseStatus,
		CreatedAt:      payment.CreatedAt,
	}
}

func decodeJSONBody(r *http.Request, dst any) error {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxOrderBodyBytes))
	return decoder.Decode(dst)
}
