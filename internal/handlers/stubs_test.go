package handlers

import (
	"context"

	domain "github.com/kograph/api/internal/domain"
	"github.com/kograph/api/internal/platform/jobs"
	"github.com/kograph/api/internal/services"
)

type stubOrderService struct {
	createFunc     func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error)
	transitionFunc func(ctx context.Context, cmd services.TransitionStatusCommand) (services.Order, error)
	verifyFunc     func(ctx context.Context, cmd services.VerifyPaymentCommand) (services.Order, error)
	getFunc        func(ctx context.Context, orderID string, actor services.Actor) (services.Order, error)
	listFunc       func(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error)
	proofURLFunc   func(ctx context.Context, order services.Order) (string, error)
}

func (s *stubOrderService) Create(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	if s.createFunc == nil {
		return services.Order{}, nil
	}
	return s.createFunc(ctx, cmd)
}

func (s *stubOrderService) TransitionStatus(ctx context.Context, cmd services.TransitionStatusCommand) (services.Order, error) {
	if s.transitionFunc == nil {
		return services.Order{}, nil
	}
	return s.transitionFunc(ctx, cmd)
}

func (s *stubOrderService) VerifyPayment(ctx context.Context, cmd services.VerifyPaymentCommand) (services.Order, error) {
	if s.verifyFunc == nil {
		return services.Order{}, nil
	}
	return s.verifyFunc(ctx, cmd)
}

func (s *stubOrderService) Get(ctx context.Context, orderID string, actor services.Actor) (services.Order, error) {
	if s.getFunc == nil {
		return services.Order{}, nil
	}
	return s.getFunc(ctx, orderID, actor)
}

func (s *stubOrderService) List(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
	if s.listFunc == nil {
		return domain.CursorPage[services.Order]{}, nil
	}
	return s.listFunc(ctx, filter)
}

func (s *stubOrderService) ProofURL(ctx context.Context, order services.Order) (string, error) {
	if s.proofURLFunc == nil {
		return "", nil
	}
	return s.proofURLFunc(ctx, order)
}

type stubRatingService struct {
	submitFunc func(ctx context.Context, cmd services.SubmitRatingCommand) (services.Rating, error)
}

func (s *stubRatingService) Submit(ctx context.Context, cmd services.SubmitRatingCommand) (services.Rating, error) {
	if s.submitFunc == nil {
		return services.Rating{}, nil
	}
	return s.submitFunc(ctx, cmd)
}

type stubNotificationService struct {
	notifyFunc      func(ctx context.Context, cmd services.NotifyCommand) (services.Notification, error)
	listFunc        func(ctx context.Context, userID string, pager services.Pagination) (domain.CursorPage[services.Notification], error)
	markReadFunc    func(ctx context.Context, notificationID, userID string) error
	markAllReadFunc func(ctx context.Context, userID string) error
}

func (s *stubNotificationService) Notify(ctx context.Context, cmd services.NotifyCommand) (services.Notification, error) {
	if s.notifyFunc == nil {
		return services.Notification{}, nil
	}
	return s.notifyFunc(ctx, cmd)
}

func (s *stubNotificationService) ListForUser(ctx context.Context, userID string, pager services.Pagination) (domain.CursorPage[services.Notification], error) {
	if s.listFunc == nil {
		return domain.CursorPage[services.Notification]{}, nil
	}
	return s.listFunc(ctx, userID, pager)
}

func (s *stubNotificationService) MarkRead(ctx context.Context, notificationID, userID string) error {
	if s.markReadFunc == nil {
		return nil
	}
	return s.markReadFunc(ctx, notificationID, userID)
}

func (s *stubNotificationService) MarkAllRead(ctx context.Context, userID string) error {
	if s.markAllReadFunc == nil {
		return nil
	}
	return s.markAllReadFunc(ctx, userID)
}

type stubCatalogService struct {
	listFunc   func(ctx context.Context, category string, pager services.Pagination) (domain.CursorPage[services.Product], error)
	getFunc    func(ctx context.Context, productID string) (services.Product, error)
	createFunc func(ctx context.Context, cmd services.UpsertProductCommand) (services.Product, error)
	updateFunc func(ctx context.Context, productID string, cmd services.UpsertProductCommand) (services.Product, error)
	deleteFunc func(ctx context.Context, productID string) error
}

func (s *stubCatalogService) ListProducts(ctx context.Context, category string, pager services.Pagination) (domain.CursorPage[services.Product], error) {
	if s.listFunc == nil {
		return domain.CursorPage[services.Product]{}, nil
	}
	return s.listFunc(ctx, category, pager)
}

func (s *stubCatalogService) GetProduct(ctx context.Context, productID string) (services.Product, error) {
	if s.getFunc == nil {
		return services.Product{}, nil
	}
	return s.getFunc(ctx, productID)
}

func (s *stubCatalogService) CreateProduct(ctx context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
	if s.createFunc == nil {
		return services.Product{}, nil
	}
	return s.createFunc(ctx, cmd)
}

func (s *stubCatalogService) UpdateProduct(ctx context.Context, productID string, cmd services.UpsertProductCommand) (services.Product, error) {
	if s.updateFunc == nil {
		return services.Product{}, nil
	}
	return s.updateFunc(ctx, productID, cmd)
}

func (s *stubCatalogService) DeleteProduct(ctx context.Context, productID string) error {
	if s.deleteFunc == nil {
		return nil
	}
	return s.deleteFunc(ctx, productID)
}

type stubTestimonialService struct {
	submitFunc      func(ctx context.Context, cmd services.SubmitTestimonialCommand) (services.Testimonial, error)
	listPublicFunc  func(ctx context.Context, pager services.Pagination) (domain.CursorPage[services.Testimonial], error)
	listAllFunc     func(ctx context.Context, pager services.Pagination) (domain.CursorPage[services.Testimonial], error)
	setApprovedFunc func(ctx context.Context, testimonialID string, approved bool) error
	deleteFunc      func(ctx context.Context, testimonialID string) error
}

func (s *stubTestimonialService) Submit(ctx context.Context, cmd services.SubmitTestimonialCommand) (services.Testimonial, error) {
	if s.submitFunc == nil {
		return services.Testimonial{}, nil
	}
	return s.submitFunc(ctx, cmd)
}

func (s *stubTestimonialService) ListPublic(ctx context.Context, pager services.Pagination) (domain.CursorPage[services.Testimonial], error) {
	if s.listPublicFunc == nil {
		return domain.CursorPage[services.Testimonial]{}, nil
	}
	return s.listPublicFunc(ctx, pager)
}

func (s *stubTestimonialService) ListAll(ctx context.Context, pager services.Pagination) (domain.CursorPage[services.Testimonial], error) {
	if s.listAllFunc == nil {
		return domain.CursorPage[services.Testimonial]{}, nil
	}
	return s.listAllFunc(ctx, pager)
}

func (s *stubTestimonialService) SetApproved(ctx context.Context, testimonialID string, approved bool) error {
	if s.setApprovedFunc == nil {
		return nil
	}
	return s.setApprovedFunc(ctx, testimonialID, approved)
}

func (s *stubTestimonialService) Delete(ctx context.Context, testimonialID string) error {
	if s.deleteFunc == nil {
		return nil
	}
	return s.deleteFunc(ctx, testimonialID)
}

type stubSettingsService struct {
	getFunc    func(ctx context.Context) (services.SiteSettings, error)
	updateFunc func(ctx context.Context, cmd services.UpdateSettingsCommand) (services.SiteSettings, error)
}

func (s *stubSettingsService) Get(ctx context.Context) (services.SiteSettings, error) {
	if s.getFunc == nil {
		return services.SiteSettings{}, nil
	}
	return s.getFunc(ctx)
}

func (s *stubSettingsService) Update(ctx context.Context, cmd services.UpdateSettingsCommand) (services.SiteSettings, error) {
	if s.updateFunc == nil {
		return services.SiteSettings{}, nil
	}
	return s.updateFunc(ctx, cmd)
}

type stubStatsService struct {
	getFunc       func(ctx context.Context) (services.Stats, error)
	overwriteFunc func(ctx context.Context, cmd services.OverwriteStatsCommand) (services.Stats, error)
}

func (s *stubStatsService) Get(ctx context.Context) (services.Stats, error) {
	if s.getFunc == nil {
		return services.Stats{}, nil
	}
	return s.getFunc(ctx)
}

func (s *stubStatsService) IncrementProjectsCompleted(ctx context.Context) error { return nil }
func (s *stubStatsService) IncrementClientsSatisfied(ctx context.Context) error  { return nil }
func (s *stubStatsService) AdjustActiveUsers(ctx context.Context, delta int64) error {
	return nil
}

func (s *stubStatsService) Overwrite(ctx context.Context, cmd services.OverwriteStatsCommand) (services.Stats, error) {
	if s.overwriteFunc == nil {
		return services.Stats{}, nil
	}
	return s.overwriteFunc(ctx, cmd)
}

type stubUserService struct {
	getFunc    func(ctx context.Context, userID string) (services.UserProfile, error)
	upsertFunc func(ctx context.Context, cmd services.UpsertProfileCommand) (services.UserProfile, error)
	touchFunc  func(ctx context.Context, userID string) error
}

func (s *stubUserService) GetProfile(ctx context.Context, userID string) (services.UserProfile, error) {
	if s.getFunc == nil {
		return services.UserProfile{}, nil
	}
	return s.getFunc(ctx, userID)
}

func (s *stubUserService) UpsertProfile(ctx context.Context, cmd services.UpsertProfileCommand) (services.UserProfile, error) {
	if s.upsertFunc == nil {
		return services.UserProfile{}, nil
	}
	return s.upsertFunc(ctx, cmd)
}

func (s *stubUserService) TouchLastActive(ctx context.Context, userID string) error {
	if s.touchFunc == nil {
		return nil
	}
	return s.touchFunc(ctx, userID)
}

type stubDeliveryService struct {
	relayFunc   func(ctx context.Context, cmd services.RelayCommand) error
	processFunc func(ctx context.Context, message jobs.DeliveryMessage) error
}

func (s *stubDeliveryService) EnqueueMessage(ctx context.Context, text, orderID string) {}

func (s *stubDeliveryService) EnqueuePhotoProof(ctx context.Context, proofObjectPath, caption, orderID string) {
}

func (s *stubDeliveryService) Relay(ctx context.Context, cmd services.RelayCommand) error {
	if s.relayFunc == nil {
		return nil
	}
	return s.relayFunc(ctx, cmd)
}

func (s *stubDeliveryService) Process(ctx context.Context, message jobs.DeliveryMessage) error {
	if s.processFunc == nil {
		return nil
	}
	return s.processFunc(ctx, message)
}

type stubSystemService struct {
	reportFunc func(ctx context.Context) services.SystemHealthReport
}

func (s *stubSystemService) HealthReport(ctx context.Context) services.SystemHealthReport {
	if s.reportFunc == nil {
		return services.SystemHealthReport{Status: "ok"}
	}
	return s.reportFunc(ctx)
}
