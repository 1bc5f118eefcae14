package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kograph/api/internal/platform/httpx"
	"github.com/kograph/api/internal/repositories"
	"github.com/kograph/api/internal/services"
)

// PublicHandlers serves the unauthenticated storefront surface: catalog,
// approved testimonials, site settings, and the stats counters.
type PublicHandlers struct {
	catalog      services.CatalogService
	testimonials services.TestimonialService
	settings     services.SettingsService
	stats        services.StatsService
}

// NewPublicHandlers constructs a new PublicHandlers instance.
func NewPublicHandlers(catalog services.CatalogService, testimonials services.TestimonialService, settings services.SettingsService, stats services.StatsService) *PublicHandlers {
	return &PublicHandlers{
		catalog:      catalog,
		testimonials: testimonials,
		settings:     settings,
		stats:        stats,
	}
}

// Routes registers the /public endpoints.
func (h *PublicHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/products", h.listProducts)
	r.Get("/products/{productID}", h.getProduct)
	r.Get("/testimonials", h.listTestimonials)
	r.Get("/settings", h.getSettings)
	r.Get("/stats", h.getStats)
}

func (h *PublicHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	pager, err := listParams(r)
	if err != nil {
		writePaginationError(ctx, w, err)
		return
	}

	page, err := h.catalog.ListProducts(ctx, r.URL.Query().Get("category"), pager)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	payload := listProductsResponse{
		Products:      make([]productPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, product := range page.Items {
		payload.Products = append(payload.Products, buildProductPayload(product))
	}

	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *PublicHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	product, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "productID"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, productResponse{Product: buildProductPayload(product)})
}

func (h *PublicHandlers) listTestimonials(w http.ResponseWriter, r *http.Request) {
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

	page, err := h.testimonials.ListPublic(ctx, pager)
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

func (h *PublicHandlers) getSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("settings_unavailable", "settings service unavailable", http.StatusServiceUnavailable))
		return
	}

	settings, err := h.settings.Get(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("settings_error", "failed to load settings", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, settingsResponse{Settings: buildSettingsPayload(settings)})
}

func (h *PublicHandlers) getStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.stats == nil {
		httpx.WriteError(ctx, w, httpx.NewError("stats_unavailable", "stats service unavailable", http.StatusServiceUnavailable))
		return
	}

	stats, err := h.stats.Get(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("stats_error", "failed to load stats", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, statsResponse{Stats: buildStatsPayload(stats)})
}

type listProductsResponse struct {
	Products      []productPayload `json:"products"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

type productResponse struct {
	Product productPayload `json:"product"`
}

type productPayload struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       int64    `json:"price"`
	Category    string   `json:"category,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	Stock       int      `json:"stock"`
	Features    []string `json:"features,omitempty"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

func buildProductPayload(product services.Product) productPayload {
	return productPayload{
		ID:          product.ID,
		Name:        product.Name,
		Description: product.Description,
		Price:       product.Price,
		Category:    product.Category,
		ImageURL:    product.ImageURL,
		Stock:       product.Stock,
		Features:    product.Features,
		CreatedAt:   formatTime(product.CreatedAt),
		UpdatedAt:   formatTime(product.UpdatedAt),
	}
}

type listTestimonialsResponse struct {
	Testimonials  []testimonialPayload `json:"testimonials"`
	NextPageToken string               `json:"next_page_token,omitempty"`
}

type testimonialPayload struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name,omitempty"`
	UserPhoto string `json:"user_photo,omitempty"`
	Message   string `json:"message"`
	Rating    int    `json:"rating"`
	Approved  bool   `json:"approved"`
	CreatedAt string `json:"created_at"`
}

func buildTestimonialPayload(testimonial services.Testimonial) testimonialPayload {
	return testimonialPayload{
		ID:        testimonial.ID,
		UserID:    testimonial.UserID,
		UserName:  testimonial.UserName,
		UserPhoto: testimonial.UserPhoto,
		Message:   testimonial.Message,
		Rating:    testimonial.Rating,
		Approved:  testimonial.Approved,
		CreatedAt: formatTime(testimonial.CreatedAt),
	}
}

type settingsResponse struct {
	Settings settingsPayload `json:"settings"`
}

type settingsPayload struct {
	AboutUs         string            `json:"about_us,omitempty"`
	ContactEmail    string            `json:"contact_email,omitempty"`
	ContactPhone    string            `json:"contact_phone,omitempty"`
	ContactWhatsapp string            `json:"contact_whatsapp,omitempty"`
	FAQ             []faqEntryPayload `json:"faq,omitempty"`
	PrivacyPolicy   string            `json:"privacy_policy,omitempty"`
	UpdatedAt       string            `json:"updated_at,omitempty"`
}

type faqEntryPayload struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func buildSettingsPayload(settings services.SiteSettings) settingsPayload {
	payload := settingsPayload{
		AboutUs:         settings.AboutUs,
		ContactEmail:    settings.ContactEmail,
		ContactPhone:    settings.ContactPhone,
		ContactWhatsapp: settings.ContactWhatsapp,
		PrivacyPolicy:   settings.PrivacyPolicy,
		UpdatedAt:       formatTime(settings.UpdatedAt),
	}
	for _, entry := range settings.FAQ {
		payload.FAQ = append(payload.FAQ, faqEntryPayload{
			Question: entry.Question,
			Answer:   entry.Answer,
		})
	}
	return payload
}

type statsResponse struct {
	Stats statsPayload `json:"stats"`
}

type statsPayload struct {
	ClientsSatisfied  int64   `json:"clients_satisfied"`
	ProjectsCompleted int64   `json:"projects_completed"`
	AverageRating     float64 `json:"average_rating"`
	ResponseTime      int64   `json:"response_time"`
	ActiveUsers       int64   `json:"active_users"`
	UpdatedAt         string  `json:"updated_at,omitempty"`
}

func buildStatsPayload(stats services.Stats) statsPayload {
	return statsPayload{
		ClientsSatisfied:  stats.ClientsSatisfied,
		ProjectsCompleted: stats.ProjectsCompleted,
		AverageRating:     stats.AverageRating,
		ResponseTime:      stats.ResponseTime,
		ActiveUsers:       stats.ActiveUsers,
		UpdatedAt:         formatTime(stats.UpdatedAt),
	}
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogConflict):
		httpx.WriteError(ctx, w, httpx.NewError("product_conflict", err.Error(), http.StatusConflict))
	default:
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsUnavailable() {
			httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog repository unavailable", http.StatusServiceUnavailable))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to process catalog request", http.StatusInternalServerError))
	}
}

func writeTestimonialError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrTestimonialInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrTestimonialNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("testimonial_not_found", "testimonial not found", http.StatusNotFound))
	default:
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsUnavailable() {
			httpx.WriteError(ctx, w, httpx.NewError("testimonials_unavailable", "testimonial repository unavailable", http.StatusServiceUnavailable))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("testimonial_error", "failed to process testimonial request", http.StatusInternalServerError))
	}
}
