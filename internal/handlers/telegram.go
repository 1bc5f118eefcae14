package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kograph/api/internal/platform/auth"
	"github.com/kograph/api/internal/platform/httpx"
	"github.com/kograph/api/internal/services"
)

// Data-URI photos dominate the payload size here.
const maxRelayBodySize = 8 * 1024 * 1024

// TelegramHandlers exposes the admin relay endpoint that forwards a message
// or photo straight to the configured Telegram channel.
type TelegramHandlers struct {
	authn      *auth.Authenticator
	deliveries services.DeliveryService
}

// NewTelegramHandlers constructs a new TelegramHandlers instance.
func NewTelegramHandlers(authn *auth.Authenticator, deliveries services.DeliveryService) *TelegramHandlers {
	return &TelegramHandlers{
		authn:      authn,
		deliveries: deliveries,
	}
}

// Routes registers the /telegram endpoints.
func (h *TelegramHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
	}
	r.Post("/", h.relay)
}

func (h *TelegramHandlers) relay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.deliveries == nil {
		httpx.WriteError(ctx, w, httpx.NewError("delivery_service_unavailable", "delivery service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxRelayBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req relayRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	err = h.deliveries.Relay(ctx, services.RelayCommand{
		Message: strings.TrimSpace(req.Message),
		Photo:   strings.TrimSpace(req.Photo),
		Caption: strings.TrimSpace(req.Caption),
	})
	if err != nil {
		writeDeliveryError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"sent": true})
}

type relayRequest struct {
	Message string `json:"message"`
	Photo   string `json:"photo"`
	Caption string `json:"caption"`
}

func writeDeliveryError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrDeliveryInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrDeliveryNotConfigured):
		httpx.WriteError(ctx, w, httpx.NewError("delivery_not_configured", "telegram chat not configured", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("delivery_error", "failed to forward message", http.StatusBadGateway))
	}
}
