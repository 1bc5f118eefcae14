package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/kograph/api/internal/domain"
	"github.com/kograph/api/internal/services"
)

func publicRouter(catalog services.CatalogService, testimonials services.TestimonialService, settings services.SettingsService, stats services.StatsService) http.Handler {
	handler := NewPublicHandlers(catalog, testimonials, settings, stats)
	return NewRouter(WithPublicRoutes(handler.Routes))
}

func TestPublicHandlersListProducts(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	catalog := &stubCatalogService{
		listFunc: func(ctx context.Context, category string, pager services.Pagination) (domain.CursorPage[services.Product], error) {
			if category != "streaming" {
				t.Fatalf("unexpected category %q", category)
			}
			return domain.CursorPage[services.Product]{
				Items: []services.Product{{
					ID:        "prd_1",
					Name:      "Netflix Premium",
					Price:     50000,
					CreatedAt: now,
					UpdatedAt: now,
				}},
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/products?category=streaming", nil)
	resp := httptest.NewRecorder()

	publicRouter(catalog, nil, nil, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var payload listProductsResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Products) != 1 || payload.Products[0].Name != "Netflix Premium" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestPublicHandlersGetProductNotFound(t *testing.T) {
	catalog := &stubCatalogService{
		getFunc: func(ctx context.Context, productID string) (services.Product, error) {
			return services.Product{}, fmt.Errorf("%w: %s", services.ErrCatalogNotFound, productID)
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/products/prd_missing", nil)
	resp := httptest.NewRecorder()

	publicRouter(catalog, nil, nil, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestPublicHandlersListTestimonials(t *testing.T) {
	testimonials := &stubTestimonialService{
		listPublicFunc: func(ctx context.Context, pager services.Pagination) (domain.CursorPage[services.Testimonial], error) {
			return domain.CursorPage[services.Testimonial]{
				Items: []services.Testimonial{{ID: "tsm_1", Message: "Mantap", Rating: 5, Approved: true}},
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/testimonials", nil)
	resp := httptest.NewRecorder()

	publicRouter(nil, testimonials, nil, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var payload listTestimonialsResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Testimonials) != 1 || !payload.Testimonials[0].Approved {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestPublicHandlersGetStats(t *testing.T) {
	stats := &stubStatsService{
		getFunc: func(ctx context.Context) (services.Stats, error) {
			return services.Stats{ClientsSatisfied: 12, ProjectsCompleted: 30, AverageRating: 4.7}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/stats", nil)
	resp := httptest.NewRecorder()

	publicRouter(nil, nil, nil, stats).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var payload statsResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Stats.AverageRating != 4.7 || payload.Stats.ProjectsCompleted != 30 {
		t.Fatalf("unexpected payload %+v", payload.Stats)
	}
}

func TestPublicHandlersGetSettings(t *testing.T) {
	settings := &stubSettingsService{
		getFunc: func(ctx context.Context) (services.SiteSettings, error) {
			return services.SiteSettings{
				ContactEmail: "admin@kograph.id",
				FAQ:          []domain.FAQEntry{{Question: "Q", Answer: "A"}},
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/settings", nil)
	resp := httptest.NewRecorder()

	publicRouter(nil, nil, settings, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var payload settingsResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Settings.ContactEmail != "admin@kograph.id" || len(payload.Settings.FAQ) != 1 {
		t.Fatalf("unexpected payload %+v", payload.Settings)
	}
}

func TestPublicHandlersInvalidPageSize(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/products?limit=abc", nil)
	resp := httptest.NewRecorder()

	publicRouter(&stubCatalogService{}, nil, nil, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}
