package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kograph/api/internal/platform/auth"
	"github.com/kograph/api/internal/platform/httpx"
	"github.com/kograph/api/internal/services"
)

const maxTestimonialBodySize = 32 * 1024

// TestimonialHandlers exposes the authenticated testimonial submission endpoint.
type TestimonialHandlers struct {
	authn        *auth.Authenticator
	testimonials services.TestimonialService
}

// NewTestimonialHandlers constructs a new TestimonialHandlers instance.
func NewTestimonialHandlers(authn *auth.Authenticator, testimonials services.TestimonialService) *TestimonialHandlers {
	return &TestimonialHandlers{
		authn:        authn,
		testimonials: testimonials,
	}
}

// Routes registers the /testimonials endpoints.
func (h *TestimonialHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/", h.submitTestimonial)
}

func (h *TestimonialHandlers) submitTestimonial(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.testimonials == nil {
		httpx.WriteError(ctx, w, httpx.NewError("testimonials_unavailable", "testimonial service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	body, err := readLimitedBody(r, maxTestimonialBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req submitTestimonialRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	userName := strings.TrimSpace(req.UserName)
	if userName == "" {
		userName = strings.TrimSpace(identity.Name)
	}

	testimonial, err := h.testimonials.Submit(ctx, services.SubmitTestimonialCommand{
		UserID:    strings.TrimSpace(identity.UID),
		UserName:  userName,
		UserPhoto: strings.TrimSpace(req.UserPhoto),
		Message:   strings.TrimSpace(req.Message),
		Rating:    req.Rating,
	})
	if err != nil {
		writeTestimonialError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, submitTestimonialResponse{Testimonial: buildTestimonialPayload(testimonial)})
}

type submitTestimonialRequest struct {
	UserName  string `json:"user_name"`
	UserPhoto string `json:"user_photo"`
	Message   string `json:"message"`
	Rating    int    `json:"rating"`
}

type submitTestimonialResponse struct {
	Testimonial testimonialPayload `json:"testimonial"`
}
