package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kograph/api/internal/domain"
	"github.com/kograph/api/internal/platform/auth"
	"github.com/kograph/api/internal/platform/httpx"
	"github.com/kograph/api/internal/repositories"
	"github.com/kograph/api/internal/services"
)

const maxProfileBodySize = 32 * 1024

// MeHandlers serves the authenticated user's profile and notification feed.
type MeHandlers struct {
	authn         *auth.Authenticator
	users         services.UserService
	notifications services.NotificationService
	orders        services.OrderService
}

// NewMeHandlers constructs a new MeHandlers instance.
func NewMeHandlers(authn *auth.Authenticator, users services.UserService, notifications services.NotificationService, orders services.OrderService) *MeHandlers {
	return &MeHandlers{
		authn:         authn,
		users:         users,
		notifications: notifications,
		orders:        orders,
	}
}

// Routes registers the /me endpoints.
func (h *MeHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.getProfile)
	r.Put("/", h.upsertProfile)
	r.Get("/orders", h.listOwnOrders)
	r.Get("/notifications", h.listNotifications)
	r.Post("/notifications/{notificationID}/read", h.markRead)
	r.Post("/notifications/read-all", h.markAllRead)
}

func (h *MeHandlers) identity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func (h *MeHandlers) getProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := h.identity(ctx, w)
	if !ok {
		return
	}

	profile, err := h.users.GetProfile(ctx, identity.UID)
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, profileResponse{Profile: buildProfilePayload(profile)})
}

func (h *MeHandlers) upsertProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := h.identity(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxProfileBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req upsertProfileRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	cmd := services.UpsertProfileCommand{
		UserID:      identity.UID,
		Email:       strings.TrimSpace(identity.Email),
		DisplayName: strings.TrimSpace(req.DisplayName),
		PhotoURL:    strings.TrimSpace(req.PhotoURL),
		Role:        auth.RoleUser,
	}
	if cmd.DisplayName == "" {
		cmd.DisplayName = strings.TrimSpace(identity.Name)
	}
	if identity.IsAdmin() {
		cmd.Role = auth.RoleAdmin
	}

	profile, err := h.users.UpsertProfile(ctx, cmd)
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, profileResponse{Profile: buildProfilePayload(profile)})
}

func (h *MeHandlers) listOwnOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := h.identity(ctx, w)
	if !ok {
		return
	}

	pager, err := listParams(r)
	if err != nil {
		writePaginationError(ctx, w, err)
		return
	}

	page, err := h.orders.List(ctx, services.OrderListFilter{
		UserID:     identity.UID,
		Pagination: pager,
	})
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

func (h *MeHandlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.notifications == nil {
		httpx.WriteError(ctx, w, httpx.NewError("notification_service_unavailable", "notification service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := h.identity(ctx, w)
	if !ok {
		return
	}

	pager, err := listParams(r)
	if err != nil {
		writePaginationError(ctx, w, err)
		return
	}

	// Admins may read the shared admin feed instead of their personal one.
	audience := identity.UID
	if identity.IsAdmin() && r.URL.Query().Get("audience") == domain.AdminAudience {
		audience = domain.AdminAudience
	}

	page, err := h.notifications.ListForUser(ctx, audience, pager)
	if err != nil {
		writeNotificationError(ctx, w, err)
		return
	}

	payload := listNotificationsResponse{
		Notifications: make([]notificationPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, notification := range page.Items {
		payload.Notifications = append(payload.Notifications, buildNotificationPayload(notification))
	}

	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *MeHandlers) markRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.notifications == nil {
		httpx.WriteError(ctx, w, httpx.NewError("notification_service_unavailable", "notification service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := h.identity(ctx, w)
	if !ok {
		return
	}

	if err := h.notifications.MarkRead(ctx, chi.URLParam(r, "notificationID"), identity.UID); err != nil {
		writeNotificationError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *MeHandlers) markAllRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.notifications == nil {
		httpx.WriteError(ctx, w, httpx.NewError("notification_service_unavailable", "notification service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := h.identity(ctx, w)
	if !ok {
		return
	}

	if err := h.notifications.MarkAllRead(ctx, identity.UID); err != nil {
		writeNotificationError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type upsertProfileRequest struct {
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url"`
}

type profileResponse struct {
	Profile profilePayload `json:"profile"`
}

type profilePayload struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
	Active      bool   `json:"active"`
	CreatedAt   string `json:"created_at"`
	LastActive  string `json:"last_active"`
}

func buildProfilePayload(profile services.UserProfile) profilePayload {
	return profilePayload{
		ID:          profile.ID,
		Email:       profile.Email,
		DisplayName: profile.DisplayName,
		Role:        profile.Role,
		PhotoURL:    profile.PhotoURL,
		Active:      profile.Active,
		CreatedAt:   formatTime(profile.CreatedAt),
		LastActive:  formatTime(profile.LastActive),
	}
}

type listNotificationsResponse struct {
	Notifications []notificationPayload `json:"notifications"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

type notificationPayload struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Read      bool              `json:"read"`
	Link      string            `json:"link,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt string            `json:"created_at"`
}

func buildNotificationPayload(notification services.Notification) notificationPayload {
	return notificationPayload{
		ID:        notification.ID,
		Type:      string(notification.Type),
		Title:     notification.Title,
		Message:   notification.Message,
		Read:      notification.Read,
		Link:      notification.Link,
		Data:      notification.Data,
		CreatedAt: formatTime(notification.CreatedAt),
	}
}

func writeUserError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrUserInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrUserNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("profile_not_found", "profile not found", http.StatusNotFound))
	default:
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsUnavailable() {
			httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user repository unavailable", http.StatusServiceUnavailable))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("user_error", "failed to process profile request", http.StatusInternalServerError))
	}
}

func writeNotificationError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrNotificationInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrNotificationNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("notification_not_found", "notification not found", http.StatusNotFound))
	default:
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsUnavailable() {
			httpx.WriteError(ctx, w, httpx.NewError("notification_service_unavailable", "notification repository unavailable", http.StatusServiceUnavailable))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("notification_error", "failed to process notification request", http.StatusInternalServerError))
	}
}
