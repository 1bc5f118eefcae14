package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage wraps a page of results together with the token for the next page.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// GuestUserID marks orders placed without an authenticated account.
const GuestUserID = "guest"

// AdminAudience is the reserved notification target for the back-office feed.
const AdminAudience = "admin"

// OrderStatus describes fulfillment states for an order.
type OrderStatus string

const (
	// OrderStatusPending indicates the order awaits payment confirmation.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing indicates payment was verified and delivery is underway.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusCompleted indicates the order was fulfilled.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCancelled indicates the order was abandoned or rejected.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentStatus describes verification states for a manual payment proof.
type PaymentStatus string

const (
	// PaymentStatusUnpaid indicates no proof has been submitted yet.
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	// PaymentStatusPendingVerification indicates a proof awaits admin review.
	PaymentStatusPendingVerification PaymentStatus = "pending_verification"
	// PaymentStatusVerified indicates the proof was accepted.
	PaymentStatusVerified PaymentStatus = "verified"
	// PaymentStatusRejected indicates the proof was declined.
	PaymentStatusRejected PaymentStatus = "rejected"
)

// OrderItem is an immutable line-item snapshot captured at order time.
type OrderItem struct {
	ProductID    string
	ProductName  string
	ProductImage string
	Quantity     int
	UnitPrice    int64
}

// OrderDetails carries the buyer contact details collected at checkout.
type OrderDetails struct {
	CustomerName string
	Email        string
	Phone        string
	Notes        string
}

// AccountDelivery holds the credentials handed to the buyer after verification.
// Set only while PaymentStatus is verified.
type AccountDelivery struct {
	Email    string
	Password string
	SentAt   *time.Time
}

// Order links a buyer, line-item snapshots, and payment/fulfillment state.
type Order struct {
	ID            string
	UserID        string
	UserName      string
	UserEmail     string
	Items         []OrderItem
	TotalAmount   int64
	Details       OrderDetails
	PaymentProof  string
	PaymentStatus PaymentStatus
	Status        OrderStatus
	Account       *AccountDelivery
	Rated         bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsGuest reports whether the order was placed without an account.
func (o Order) IsGuest() bool {
	return o.UserID == "" || o.UserID == GuestUserID
}

// Rating records a 1-5 score a buyer gave a completed order.
type Rating struct {
	ID        string
	OrderID   string
	UserID    string
	UserName  string
	Score     int
	Comment   string
	CreatedAt time.Time
}

// NotificationType categorises in-app notifications.
type NotificationType string

const (
	// NotificationTypeOrder announces order creation events.
	NotificationTypeOrder NotificationType = "order"
	// NotificationTypeStatusUpdate announces fulfillment status changes.
	NotificationTypeStatusUpdate NotificationType = "status_update"
	// NotificationTypePayment announces payment verification outcomes.
	NotificationTypePayment NotificationType = "payment"
	// NotificationTypeRating announces rating submissions.
	NotificationTypeRating NotificationType = "rating"
	// NotificationTypeGeneral covers everything else.
	NotificationTypeGeneral NotificationType = "general"
)

// Notification is an in-app message targeted at a user or the admin audience.
type Notification struct {
	ID        string
	UserID    string
	Type      NotificationType
	Title     string
	Message   string
	Read      bool
	Link      string
	Data      map[string]string
	CreatedAt time.Time
}

// Stats is the singleton aggregate of site-wide counters shown on the storefront.
type Stats struct {
	ClientsSatisfied  int64
	ProjectsCompleted int64
	AverageRating     float64
	ResponseTime      int64
	ActiveUsers       int64
	UpdatedAt         time.Time
}

// Product is a digital good or service offered in the store.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       int64
	Category    string
	ImageURL    string
	Stock       int
	Features    []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Testimonial is a customer quote shown on the storefront once approved.
type Testimonial struct {
	ID        string
	UserID    string
	UserName  string
	UserPhoto string
	Message   string
	Rating    int
	Approved  bool
	CreatedAt time.Time
}

// FAQEntry is a question/answer pair on the storefront.
type FAQEntry struct {
	Question string
	Answer   string
}

// SiteSettings is the singleton document of storefront copy and contact channels.
type SiteSettings struct {
	AboutUs         string
	ContactEmail    string
	ContactPhone    string
	ContactWhatsapp string
	FAQ             []FAQEntry
	PrivacyPolicy   string
	TelegramChatID  string
	UpdatedAt       time.Time
}

// UserProfile mirrors the Firestore users collection.
type UserProfile struct {
	ID          string
	Email       string
	DisplayName string
	Role        string
	PhotoURL    string
	Active      bool
	CreatedAt   time.Time
	LastActive  time.Time
}

// ValidOrderStatus reports whether the value is one of the four order statuses.
func ValidOrderStatus(value string) bool {
	switch OrderStatus(value) {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// TerminalOrderStatus reports whether no further transitions are allowed.
func TerminalOrderStatus(status OrderStatus) bool {
	return status == OrderStatusCompleted || status == OrderStatusCancelled
}
