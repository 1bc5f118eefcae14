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
	"github.com/kograph/api/internal/repositories"
	"github.com/kograph/api/internal/services"
)

const maxRatingBodySize = 32 * 1024

// RatingHandlers exposes the endpoint buyers use to rate completed orders.
type RatingHandlers struct {
	authn   *auth.Authenticator
	ratings services.RatingService
}

// NewRatingHandlers constructs a new RatingHandlers instance.
func NewRatingHandlers(authn *auth.Authenticator, ratings services.RatingService) *RatingHandlers {
	return &RatingHandlers{
		authn:   authn,
		ratings: ratings,
	}
}

// Routes registers the /ratings endpoints.
func (h *RatingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/", h.submitRating)
}

func (h *RatingHandlers) submitRating(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.ratings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("rating_service_unavailable", "rating service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	body, err := readLimitedBody(r, maxRatingBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req submitRatingRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	rating, err := h.ratings.Submit(ctx, services.SubmitRatingCommand{
		OrderID:  strings.TrimSpace(req.OrderID),
		UserID:   strings.TrimSpace(identity.UID),
		UserName: strings.TrimSpace(identity.Name),
		Score:    req.Rating,
		Comment:  strings.TrimSpace(req.Comment),
	})
	if err != nil {
		writeRatingError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, submitRatingResponse{Rating: buildRatingPayload(rating)})
}

type submitRatingRequest struct {
	OrderID string `json:"order_id"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type submitRatingResponse struct {
	Rating ratingPayload `json:"rating"`
}

type ratingPayload struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name,omitempty"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment,omitempty"`
	CreatedAt string `json:"created_at"`
}

func buildRatingPayload(rating services.Rating) ratingPayload {
	return ratingPayload{
		ID:        rating.ID,
		OrderID:   rating.OrderID,
		UserID:    rating.UserID,
		UserName:  rating.UserName,
		Rating:    rating.Score,
		Comment:   rating.Comment,
		CreatedAt: formatTime(rating.CreatedAt),
	}
}

func writeRatingError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrRatingInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrRatingNotAllowed):
		httpx.WriteError(ctx, w, httpx.NewError("rating_not_allowed", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrRatingConflict):
		httpx.WriteError(ctx, w, httpx.NewError("rating_conflict", "order already rated", http.StatusConflict))
	case errors.Is(err, services.ErrRatingNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	default:
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsUnavailable() {
			httpx.WriteError(ctx, w, httpx.NewError("rating_service_unavailable", "rating repository unavailable", http.StatusServiceUnavailable))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("rating_error", "failed to process rating request", http.StatusInternalServerError))
	}
}
