package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/kograph/api/internal/domain"
	"github.com/kograph/api/internal/platform/auth"
	"github.com/kograph/api/internal/platform/httpx"
	"github.com/kograph/api/internal/repositories"
	"github.com/kograph/api/internal/services"
)

const maxOrderBodySize = 512 * 1024

// OrderHandlers exposes checkout, fulfillment, and payment verification endpoints.
type OrderHandlers struct {
	authn       *auth.Authenticator
	orders      services.OrderService
	idempotency func(http.Handler) http.Handler
}

// NewOrderHandlers constructs a new OrderHandlers instance. The idempotency
// middleware is optional and guards the write endpoints when provided.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, idempotency func(http.Handler) http.Handler) *OrderHandlers {
	return &OrderHandlers{
		authn:       authn,
		orders:      orders,
		idempotency: idempotency,
	}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}

	r.With(h.optionalAuth(), h.idempotent()).Post("/", h.createOrder)
	r.With(h.requireAdmin()).Get("/", h.listOrders)
	r.With(h.requireAuth()).Get("/{orderID}", h.getOrder)
	r.With(h.requireAdmin()).Get("/{orderID}/proof", h.getProofURL)
	r.With(h.requireAdmin()).Patch("/{orderID}/status", h.transitionStatus)
	r.With(h.requireAdmin(), h.idempotent()).Post("/{orderID}/verify-payment", h.verifyPayment)
}

func (h *OrderHandlers) optionalAuth() func(http.Handler) http.Handler {
	if h.authn == nil {
		return passthrough
	}
	return h.authn.OptionalFirebaseAuth()
}

func (h *OrderHandlers) requireAuth() func(http.Handler) http.Handler {
	if h.authn == nil {
		return passthrough
	}
	return h.authn.RequireFirebaseAuth()
}

func (h *OrderHandlers) requireAdmin() func(http.Handler) http.Handler {
	if h.authn == nil {
		return passthrough
	}
	return h.authn.RequireFirebaseAuth(auth.RoleAdmin)
}

func (h *OrderHandlers) idempotent() func(http.Handler) http.Handler {
	if h.idempotency == nil {
		return passthrough
	}
	return h.idempotency
}

func passthrough(next http.Handler) http.Handler { return next }

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req createOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	cmd := services.CreateOrderCommand{
		UserID:       strings.TrimSpace(req.UserID),
		UserName:     strings.TrimSpace(req.UserName),
		UserEmail:    strings.TrimSpace(req.UserEmail),
		TotalAmount:  req.TotalAmount,
		PaymentProof: req.PaymentProof,
		Details: domain.OrderDetails{
			CustomerName: strings.TrimSpace(req.Details.CustomerName),
			Email:        strings.TrimSpace(req.Details.Email),
			Phone:        strings.TrimSpace(req.Details.Phone),
			Notes:        strings.TrimSpace(req.Details.Notes),
		},
	}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, domain.OrderItem{
			ProductID:    strings.TrimSpace(item.ProductID),
			ProductName:  strings.TrimSpace(item.ProductName),
			ProductImage: strings.TrimSpace(item.ProductImage),
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
		})
	}

	// A signed-in buyer places the order under their own account regardless
	// of what the payload claims.
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil && strings.TrimSpace(identity.UID) != "" {
		cmd.UserID = strings.TrimSpace(identity.UID)
		if cmd.UserName == "" {
			cmd.UserName = strings.TrimSpace(identity.Name)
		}
		if cmd.UserEmail == "" {
			cmd.UserEmail = strings.TrimSpace(identity.Email)
		}
	}

	order, err := h.orders.Create(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	pager, err := listParams(r)
	if err != nil {
		writePaginationError(ctx, w, err)
		return
	}

	filter := services.OrderListFilter{
		UserID:     strings.TrimSpace(r.URL.Query().Get("userId")),
		Pagination: pager,
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		if !domain.ValidOrderStatus(raw) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown order status filter", http.StatusBadRequest))
			return
		}
		filter.Status = domain.OrderStatus(raw)
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("paymentStatus")); raw != "" {
		filter.PaymentStatus = domain.PaymentStatus(raw)
	}

	page, err := h.orders.List(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	payload := listOrdersResponse{
		Orders:        make([]orderPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, order := range page.Items {
		payload.Orders = append(payload.Orders, buildOrderPayload(order))
	}

	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	actor, ok := actorFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	order, err := h.orders.Get(ctx, chi.URLParam(r, "orderID"), actor)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) getProofURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	actor, ok := actorFromContext(ctx)
	if !ok {
		actor = services.Actor{Admin: true}
	}

	order, err := h.orders.Get(ctx, chi.URLParam(r, "orderID"), actor)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	url, err := h.orders.ProofURL(ctx, order)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, proofURLResponse{URL: url})
}

func (h *OrderHandlers) transitionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req transitionStatusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	order, err := h.orders.TransitionStatus(ctx, services.TransitionStatusCommand{
		OrderID:      chi.URLParam(r, "orderID"),
		TargetStatus: domain.OrderStatus(strings.TrimSpace(req.Status)),
		ActorID:      actorID(ctx),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) verifyPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req verifyPaymentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	order, err := h.orders.VerifyPayment(ctx, services.VerifyPaymentCommand{
		OrderID:         chi.URLParam(r, "orderID"),
		Decision:        services.VerifyPaymentDecision(strings.TrimSpace(req.Decision)),
		AccountEmail:    strings.TrimSpace(req.AccountEmail),
		AccountPassword: req.AccountPassword,
		ActorID:         actorID(ctx),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func actorFromContext(ctx context.Context) (services.Actor, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		return services.Actor{}, false
	}
	return services.Actor{
		UserID: strings.TrimSpace(identity.UID),
		Admin:  identity.IsAdmin(),
	}, true
}

func actorID(ctx context.Context) string {
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil {
		return strings.TrimSpace(identity.UID)
	}
	return ""
}

type createOrderRequest struct {
	UserID       string              `json:"user_id"`
	UserName     string              `json:"user_name"`
	UserEmail    string              `json:"user_email"`
	Items        []orderItemRequest  `json:"items"`
	TotalAmount  int64               `json:"total_amount"`
	Details      orderDetailsRequest `json:"details"`
	PaymentProof string              `json:"payment_proof"`
}

type orderItemRequest struct {
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	ProductImage string `json:"product_image"`
	Quantity     int    `json:"quantity"`
	UnitPrice    int64  `json:"unit_price"`
}

type orderDetailsRequest struct {
	CustomerName string `json:"customer_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Notes        string `json:"notes"`
}

type transitionStatusRequest struct {
	Status string `json:"status"`
}

type verifyPaymentRequest struct {
	Decision        string `json:"decision"`
	AccountEmail    string `json:"account_email"`
	AccountPassword string `json:"account_password"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type listOrdersResponse struct {
	Orders        []orderPayload `json:"orders"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

type proofURLResponse struct {
	URL string `json:"url"`
}

type orderPayload struct {
	ID            string              `json:"id"`
	UserID        string              `json:"user_id"`
	UserName      string              `json:"user_name,omitempty"`
	UserEmail     string              `json:"user_email,omitempty"`
	Items         []orderItemPayload  `json:"items"`
	TotalAmount   int64               `json:"total_amount"`
	Details       orderDetailsPayload `json:"details"`
	PaymentStatus string              `json:"payment_status"`
	Status        string              `json:"status"`
	Account       *accountPayload     `json:"account,omitempty"`
	Rated         bool                `json:"rated"`
	CreatedAt     string              `json:"created_at"`
	UpdatedAt     string              `json:"updated_at"`
}

type orderItemPayload struct {
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	ProductImage string `json:"product_image,omitempty"`
	Quantity     int    `json:"quantity"`
	UnitPrice    int64  `json:"unit_price"`
}

type orderDetailsPayload struct {
	CustomerName string `json:"customer_name,omitempty"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

type accountPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	SentAt   string `json:"sent_at,omitempty"`
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:            order.ID,
		UserID:        order.UserID,
		UserName:      order.UserName,
		UserEmail:     order.UserEmail,
		Items:         make([]orderItemPayload, 0, len(order.Items)),
		TotalAmount:   order.TotalAmount,
		PaymentStatus: string(order.PaymentStatus),
		Status:        string(order.Status),
		Rated:         order.Rated,
		CreatedAt:     formatTime(order.CreatedAt),
		UpdatedAt:     formatTime(order.UpdatedAt),
		Details: orderDetailsPayload{
			CustomerName: order.Details.CustomerName,
			Email:        order.Details.Email,
			Phone:        order.Details.Phone,
			Notes:        order.Details.Notes,
		},
	}

	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			ProductImage: item.ProductImage,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
		})
	}

	if order.Account != nil {
		account := &accountPayload{
			Email:    order.Account.Email,
			Password: order.Account.Password,
		}
		if order.Account.SentAt != nil {
			account.SentAt = formatTime(*order.Account.SentAt)
		}
		payload.Account = account
	}

	return payload
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_state", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	default:
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsUnavailable() {
			httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order repository unavailable", http.StatusServiceUnavailable))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}
