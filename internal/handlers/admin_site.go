package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/kograph/api/internal/domain"
	"github.com/kograph/api/internal/platform/httpx"
	"github.com/kograph/api/internal/services"
)

const maxSettingsBodySize = 256 * 1024

// AdminSiteHandlers covers the remaining back-office surface: testimonial
// moderation, the settings singleton, and the stats overrides.
type AdminSiteHandlers struct {
	testimonials services.TestimonialService
	settings     services.SettingsService
	stats        services.StatsService
}

// NewAdminSiteHandlers constructs a new AdminSiteHandlers instance.
func NewAdminSiteHandlers(testimonials services.TestimonialService, settings services.SettingsService, stats services.StatsService) *AdminSiteHandlers {
	return &AdminSiteHandlers{
		testimonials: testimonials,
		settings:     settings,
		stats:        stats,
	}
}

// Routes registers the moderation, settings, and stats endpoints on the provided router.
func (h *AdminSiteHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/testimonials", h.listTestimonials)
	r.Post("/testimonials/{testimonialID}/approve", h.approveTestimonial)
	r.Delete("/testimonials/{testimonialID}", h.deleteTestimonial)
	r.Put("/settings", h.updateSettings)
	r.Put("/stats", h.overwriteStats)
}

func (h *AdminSiteHandlers) listTestimonials(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.testimonials == nil {
		httpx.WriteError(ctx, w, httpx.NewError("testimonials_unavailable", "testimonial service unavailable", http.StatusServiceUnavailable))
		return
	}

	pager, err := listParams(r)
	if err != nil {
		writePaginationError(ctx, w, err)
		return
	}

	page, err := h.testimonials.ListAll(ctx, pager)
	if err != nil {
		writeTestimonialError(ctx, w, err)
		return
	}

	payload := listTestimonialsResponse{
		Testimonials:  make([]testimonialPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, testimonial := range page.Items {
		payload.Testimonials = append(payload.Testimonials, buildTestimonialPayload(testimonial))
	}

	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *AdminSiteHandlers) approveTestimonial(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.testimonials == nil {
		httpx.WriteError(ctx, w, httpx.NewError("testimonials_unavailable", "testimonial service unavailable", http.StatusServiceUnavailable))
		return
	}

	approved := true
	if raw := strings.TrimSpace(r.URL.Query().Get("approved")); raw == "false" {
		approved = false
	}

	if err := h.testimonials.SetApproved(ctx, chi.URLParam(r, "testimonialID"), approved); err != nil {
		writeTestimonialError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminSiteHandlers) deleteTestimonial(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.testimonials == nil {
		httpx.WriteError(ctx, w, httpx.NewError("testimonials_unavailable", "testimonial service unavailable", http.StatusServiceUnavailable))
		return
	}

	if err := h.testimonials.Delete(ctx, chi.URLParam(r, "testimonialID")); err != nil {
		writeTestimonialError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminSiteHandlers) updateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("settings_unavailable", "settings service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxSettingsBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req updateSettingsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	settings := domain.SiteSettings{
		AboutUs:         req.AboutUs,
		ContactEmail:    req.ContactEmail,
		ContactPhone:    req.ContactPhone,
		ContactWhatsapp: req.ContactWhatsapp,
		PrivacyPolicy:   req.PrivacyPolicy,
		TelegramChatID:  req.TelegramChatID,
	}
	for _, entry := range req.FAQ {
		settings.FAQ = append(settings.FAQ, domain.FAQEntry{
			Question: strings.TrimSpace(entry.Question),
			Answer:   strings.TrimSpace(entry.Answer),
		})
	}

	updated, err := h.settings.Update(ctx, services.UpdateSettingsCommand{Settings: settings})
	if err != nil {
		writeSettingsError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, settingsResponse{Settings: buildSettingsPayload(updated)})
}

func (h *AdminSiteHandlers) overwriteStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.stats == nil {
		httpx.WriteError(ctx, w, httpx.NewError("stats_unavailable", "stats service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxSettingsBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req overwriteStatsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	stats, err := h.stats.Overwrite(ctx, services.OverwriteStatsCommand{
		ResponseTime: req.ResponseTime,
		ActiveUsers:  req.ActiveUsers,
	})
	if err != nil {
		writeStatsError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, statsResponse{Stats: buildStatsPayload(stats)})
}

type updateSettingsRequest struct {
	AboutUs         string            `json:"about_us"`
	ContactEmail    string            `json:"contact_email"`
	ContactPhone    string            `json:"contact_phone"`
	ContactWhatsapp string            `json:"contact_whatsapp"`
	FAQ             []faqEntryPayload `json:"faq"`
	PrivacyPolicy   string            `json:"privacy_policy"`
	TelegramChatID  string            `json:"telegram_chat_id"`
}

type overwriteStatsRequest struct {
	ResponseTime *int64 `json:"response_time"`
	ActiveUsers  *int64 `json:"active_users"`
}

func writeSettingsError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, services.ErrSettingsInvalidInput) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	httpx.WriteError(ctx, w, httpx.NewError("settings_error", "failed to update settings", http.StatusInternalServerError))
}

func writeStatsError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, services.ErrStatsInvalidInput) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	httpx.WriteError(ctx, w, httpx.NewError("stats_error", "failed to update stats", http.StatusInternalServerError))
}
