package services

import (
	"context"
	"time"

	domain "github.com/kograph/api/internal/domain"
	"github.com/kograph/api/internal/platform/jobs"
	"github.com/kograph/api/internal/repositories"
)

type (
	Pagination      = domain.Pagination
	Order           = domain.Order
	OrderItem       = domain.OrderItem
	OrderDetails    = domain.OrderDetails
	OrderStatus     = domain.OrderStatus
	PaymentStatus   = domain.PaymentStatus
	AccountDelivery = domain.AccountDelivery
	Rating          = domain.Rating
	Notification    = domain.Notification
	Stats           = domain.Stats
	Product         = domain.Product
	Testimonial     = domain.Testimonial
	SiteSettings    = domain.SiteSettings
	FAQEntry        = domain.FAQEntry
	UserProfile     = domain.UserProfile
)

// OrderListFilter narrows admin order listings.
type OrderListFilter = repositories.OrderListFilter

// Actor identifies the caller of an order read. Admins may read any order;
// everyone else only their own.
type Actor struct {
	UserID string
	Admin  bool
}

// OrderService owns the order lifecycle: creation, status transitions, and
// manual payment verification, including their notification and stats side
// effects.
type OrderService interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	TransitionStatus(ctx context.Context, cmd TransitionStatusCommand) (Order, error)
	VerifyPayment(ctx context.Context, cmd VerifyPaymentCommand) (Order, error)
	Get(ctx context.Context, orderID string, actor Actor) (Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	ProofURL(ctx context.Context, order Order) (string, error)
}

// RatingService accepts one rating per completed order and keeps the global
// average in step.
type RatingService interface {
	Submit(ctx context.Context, cmd SubmitRatingCommand) (Rating, error)
}

// NotificationService writes and reads the in-app notification feed.
type NotificationService interface {
	Notify(ctx context.Context, cmd NotifyCommand) (Notification, error)
	ListForUser(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[Notification], error)
	MarkRead(ctx context.Context, notificationID, userID string) error
	MarkAllRead(ctx context.Context, userID string) error
}

// StatsService fronts the singleton stats aggregate.
type StatsService interface {
	Get(ctx context.Context) (Stats, error)
	IncrementProjectsCompleted(ctx context.Context) error
	IncrementClientsSatisfied(ctx context.Context) error
	AdjustActiveUsers(ctx context.Context, delta int64) error
	Overwrite(ctx context.Context, cmd OverwriteStatsCommand) (Stats, error)
}

// CatalogService manages the product catalog.
type CatalogService interface {
	ListProducts(ctx context.Context, category string, pager Pagination) (domain.CursorPage[Product], error)
	GetProduct(ctx context.Context, productID string) (Product, error)
	CreateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error)
	UpdateProduct(ctx context.Context, productID string, cmd UpsertProductCommand) (Product, error)
	DeleteProduct(ctx context.Context, productID string) error
}

// TestimonialService manages customer testimonials and their moderation.
type TestimonialService interface {
	Submit(ctx context.Context, cmd SubmitTestimonialCommand) (Testimonial, error)
	ListPublic(ctx context.Context, pager Pagination) (domain.CursorPage[Testimonial], error)
	ListAll(ctx context.Context, pager Pagination) (domain.CursorPage[Testimonial], error)
	SetApproved(ctx context.Context, testimonialID string, approved bool) error
	Delete(ctx context.Context, testimonialID string) error
}

// SettingsService reads and updates the storefront settings singleton.
type SettingsService interface {
	Get(ctx context.Context) (SiteSettings, error)
	Update(ctx context.Context, cmd UpdateSettingsCommand) (SiteSettings, error)
}

// UserService maintains user profiles mirrored from Firebase accounts.
type UserService interface {
	GetProfile(ctx context.Context, userID string) (UserProfile, error)
	UpsertProfile(ctx context.Context, cmd UpsertProfileCommand) (UserProfile, error)
	TouchLastActive(ctx context.Context, userID string) error
}

// DeliveryService moves outbound Telegram traffic. Enqueue variants are
// best-effort and asynchronous; Relay is the synchronous admin passthrough;
// Process executes a dequeued delivery.
type DeliveryService interface {
	EnqueueMessage(ctx context.Context, text, orderID string)
	EnqueuePhotoProof(ctx context.Context, proofObjectPath, caption, orderID string)
	Relay(ctx context.Context, cmd RelayCommand) error
	Process(ctx context.Context, message jobs.DeliveryMessage) error
}

// DeliveryPublisher enqueues deliveries on the outbound pipeline.
type DeliveryPublisher interface {
	PublishDelivery(ctx context.Context, message jobs.DeliveryMessage) (string, error)
}

// SystemService reports process health for the readiness probe.
type SystemService interface {
	HealthReport(ctx context.Context) SystemHealthReport
}

// SystemHealthReport aggregates dependency probe outcomes.
type SystemHealthReport struct {
	Status      string
	Version     string
	GeneratedAt time.Time
	Uptime      time.Duration
	Checks      []repositories.DependencyStatus
}

type CreateOrderCommand struct {
	UserID       string
	UserName     string
	UserEmail    string
	Items        []OrderItem
	TotalAmount  int64
	Details      OrderDetails
	PaymentProof string
}

type TransitionStatusCommand struct {
	OrderID      string
	TargetStatus OrderStatus
	ActorID      string
}

// VerifyPaymentDecision is the admin's verdict on a payment proof.
type VerifyPaymentDecision string

const (
	VerifyDecisionVerified VerifyPaymentDecision = "verified"
	VerifyDecisionRejected VerifyPaymentDecision = "rejected"
)

type VerifyPaymentCommand struct {
	OrderID         string
	Decision        VerifyPaymentDecision
	AccountEmail    string
	AccountPassword string
	ActorID         string
}

type SubmitRatingCommand struct {
	OrderID  string
	UserID   string
	UserName string
	Score    int
	Comment  string
}

type NotifyCommand struct {
	UserID  string
	Type    domain.NotificationType
	Title   string
	Message string
	Link    string
	Data    map[string]string
}

type OverwriteStatsCommand struct {
	ResponseTime *int64
	ActiveUsers  *int64
}

type UpsertProductCommand struct {
	Name        string
	Description string
	Price       int64
	Category    string
	ImageURL    string
	Stock       int
	Features    []string
}

type SubmitTestimonialCommand struct {
	UserID    string
	UserName  string
	UserPhoto string
	Message   string
	Rating    int
}

type UpdateSettingsCommand struct {
	Settings SiteSettings
}

type UpsertProfileCommand struct {
	UserID      string
	Email       string
	DisplayName string
	Role        string
	PhotoURL    string
}

type RelayCommand struct {
	Message string
	Photo   string
	Caption string
}
