package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kograph/api/internal/platform/httpx"
	"github.com/kograph/api/internal/platform/jobs"
	"github.com/kograph/api/internal/services"
)

const maxPushBodySize = 1 * 1024 * 1024

// InternalHandlers serves the Pub/Sub push endpoint that drains the delivery
// topic. OIDC validation is applied as group middleware at router wiring.
type InternalHandlers struct {
	deliveries services.DeliveryService
}

// NewInternalHandlers constructs a new InternalHandlers instance.
func NewInternalHandlers(deliveries services.DeliveryService) *InternalHandlers {
	return &InternalHandlers{deliveries: deliveries}
}

// Routes registers the /internal endpoints.
func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/deliveries", h.processDelivery)
}

// pushEnvelope is the wrapper Pub/Sub wraps around pushed messages.
type pushEnvelope struct {
	Message struct {
		Data       []byte            `json:"data"`
		Attributes map[string]string `json:"attributes"`
		MessageID  string            `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func (h *InternalHandlers) processDelivery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.deliveries == nil {
		httpx.WriteError(ctx, w, httpx.NewError("delivery_service_unavailable", "delivery service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxPushBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var envelope pushEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid push envelope", http.StatusBadRequest))
		return
	}
	if len(envelope.Message.Data) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "push envelope carries no data", http.StatusBadRequest))
		return
	}

	var message jobs.DeliveryMessage
	if err := json.Unmarshal(envelope.Message.Data, &message); err != nil {
		// Malformed payloads are acked with 400 so Pub/Sub stops redelivering them.
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid delivery payload", http.StatusBadRequest))
		return
	}

	if err := h.deliveries.Process(ctx, message); err != nil {
		switch {
		case errors.Is(err, services.ErrDeliveryInvalidInput), errors.Is(err, services.ErrDeliveryNotConfigured):
			// Permanent failures must not be retried.
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("delivery_error", "delivery failed", http.StatusServiceUnavailable))
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
