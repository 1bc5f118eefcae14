package repositories

import (
	"context"
	"time"

	domain "github.com/kograph/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderListFilter narrows admin order listings.
type OrderListFilter struct {
	UserID        string
	Status        domain.OrderStatus
	PaymentStatus domain.PaymentStatus
	Pagination    domain.Pagination
}

// OrderRepository persists order documents.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	// Update rewrites the full order document. Inside a transactional
	// context the write joins the surrounding transaction.
	Update(ctx context.Context, order domain.Order) error
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// RatingRepository persists rating documents.
type RatingRepository interface {
	Insert(ctx context.Context, rating domain.Rating) error
	ListAll(ctx context.Context) ([]domain.Rating, error)
}

// NotificationRepository persists in-app notifications.
type NotificationRepository interface {
	Insert(ctx context.Context, notification domain.Notification) error
	ListByUser(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Notification], error)
	MarkRead(ctx context.Context, notificationID string, userID string, readAt time.Time) error
	MarkAllRead(ctx context.Context, userID string, readAt time.Time) error
}

// StatsRepository owns the singleton stats aggregate. Increment operations map
// onto the store's atomic increment primitive so concurrent bumps never lose
// updates; SetAverageRating must be applied inside a transaction by callers
// recomputing the average.
type StatsRepository interface {
	Get(ctx context.Context) (domain.Stats, error)
	Increment(ctx context.Context, field StatsField, delta int64, now time.Time) error
	SetAverageRating(ctx context.Context, average float64, now time.Time) error
	Put(ctx context.Context, stats domain.Stats) error
}

// StatsField enumerates the counter fields on the stats aggregate.
type StatsField string

const (
	// StatsClientsSatisfied counts completed orders.
	StatsClientsSatisfied StatsField = "clientsSatisfied"
	// StatsProjectsCompleted counts submitted orders.
	StatsProjectsCompleted StatsField = "projectsCompleted"
	// StatsActiveUsers tracks currently active account count.
	StatsActiveUsers StatsField = "activeUsers"
)

// ProductRepository persists catalog products.
type ProductRepository interface {
	Insert(ctx context.Context, product domain.Product) error
	Update(ctx context.Context, product domain.Product) error
	Delete(ctx context.Context, productID string) error
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	List(ctx context.Context, category string, pager domain.Pagination) (domain.CursorPage[domain.Product], error)
}

// TestimonialRepository persists customer testimonials.
type TestimonialRepository interface {
	Insert(ctx context.Context, testimonial domain.Testimonial) error
	SetApproved(ctx context.Context, testimonialID string, approved bool) error
	Delete(ctx context.Context, testimonialID string) error
	List(ctx context.Context, approvedOnly bool, pager domain.Pagination) (domain.CursorPage[domain.Testimonial], error)
}

// SettingsRepository owns the singleton site settings document.
type SettingsRepository interface {
	Get(ctx context.Context) (domain.SiteSettings, error)
	Put(ctx context.Context, settings domain.SiteSettings) error
}

// UserRepository persists user profiles.
type UserRepository interface {
	FindByID(ctx context.Context, userID string) (domain.UserProfile, error)
	Upsert(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error)
	TouchLastActive(ctx context.Context, userID string, at time.Time) error
}

// HealthRepository reports dependency health for readiness probes.
type HealthRepository interface {
	Check(ctx context.Context) []DependencyStatus
}

// DependencyCheck names a dependency probe with its timeout budget.
type DependencyCheck struct {
	Name    string
	Timeout time.Duration
	Check   func(ctx context.Context) error
}

// DependencyStatus is the outcome of a single dependency probe.
type DependencyStatus struct {
	Name    string
	Healthy bool
	Error   string
	Latency time.Duration
}
