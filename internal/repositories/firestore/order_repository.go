package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/kograph/api/internal/domain"
	pfirestore "github.com/kograph/api/internal/platform/firestore"
	"github.com/kograph/api/internal/platform/pagination"
	"github.com/kograph/api/internal/repositories"
)

const orderCollection = "orders"

type orderItemDocument struct {
	ProductID    string `firestore:"productId"`
	ProductName  string `firestore:"productName"`
	ProductImage string `firestore:"productImage,omitempty"`
	Quantity     int    `firestore:"quantity"`
	UnitPrice    int64  `firestore:"unitPrice"`
}

type orderDetailsDocument struct {
	CustomerName string `firestore:"customerName"`
	Email        string `firestore:"email"`
	Phone        string `firestore:"phone"`
	Notes        string `firestore:"notes,omitempty"`
}

type accountDeliveryDocument struct {
	Email    string     `firestore:"email"`
	Password string     `firestore:"password"`
	SentAt   *time.Time `firestore:"sentAt,omitempty"`
}

type orderDocument struct {
	UserID        string                   `firestore:"userId"`
	UserName      string                   `firestore:"userName"`
	UserEmail     string                   `firestore:"userEmail"`
	Items         []orderItemDocument      `firestore:"items"`
	TotalAmount   int64                    `firestore:"totalAmount"`
	Details       orderDetailsDocument     `firestore:"orderDetails"`
	PaymentProof  string                   `firestore:"paymentProof,omitempty"`
	PaymentStatus string                   `firestore:"paymentStatus"`
	Status        string                   `firestore:"status"`
	Account       *accountDeliveryDocument `firestore:"account,omitempty"`
	Rated         bool                     `firestore:"rated"`
	CreatedAt     time.Time                `firestore:"createdAt"`
	UpdatedAt     time.Time                `firestore:"updatedAt"`
}

// OrderRepository implements repositories.OrderRepository backed by Firestore.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.Collection[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	collection, err := pfirestore.NewCollection[orderDocument](provider, orderCollection, nil)
	if err != nil {
		return nil, err
	}
	return &OrderRepository{provider: provider, orders: collection}, nil
}

// Insert creates a new order document, failing on id collisions.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order id is required")
	}
	return r.orders.Create(ctx, order.ID, fromDomainOrder(order))
}

// FindByID loads an order. Inside a transactional context the read joins the
// surrounding transaction.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, errors.New("order id is required")
	}
	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return toDomainOrder(orderID, doc), nil
}

// Update rewrites the full order document.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order id is required")
	}
	return r.orders.Set(ctx, order.ID, fromDomainOrder(order))
}

// List returns orders newest-first, optionally filtered by user, fulfilment
// status, and payment status.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	query, err := r.orders.Query(ctx)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	if filter.UserID != "" {
		query = query.Where("userId", "==", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status", "==", string(filter.Status))
	}
	if filter.PaymentStatus != "" {
		query = query.Where("paymentStatus", "==", string(filter.PaymentStatus))
	}
	query = query.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	if !cursor.IsZero() {
		query = query.StartAfter(cursorValues(cursor)...)
	}
	query = query.Limit(pageSize + 1)

	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.List", err)
	}

	page := domain.CursorPage[domain.Order]{}
	for i, snap := range snaps {
		if i == pageSize {
			break
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.List", err)
		}
		page.Items = append(page.Items, toDomainOrder(snap.Ref.ID, doc))
	}

	if len(snaps) > pageSize {
		last := page.Items[len(page.Items)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{
			StartAfter: []any{last.CreatedAt, last.ID},
		})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

func fromDomainOrder(order domain.Order) orderDocument {
	doc := orderDocument{
		UserID:       order.UserID,
		UserName:     order.UserName,
		UserEmail:    order.UserEmail,
		TotalAmount:  order.TotalAmount,
		PaymentProof: order.PaymentProof,
		Details: orderDetailsDocument{
			CustomerName: order.Details.CustomerName,
			Email:        order.Details.Email,
			Phone:        order.Details.Phone,
			Notes:        order.Details.Notes,
		},
		PaymentStatus: string(order.PaymentStatus),
		Status:        string(order.Status),
		Rated:         order.Rated,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
	for _, item := range order.Items {
		doc.Items = append(doc.Items, orderItemDocument{
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			ProductImage: item.ProductImage,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
		})
	}
	if order.Account != nil {
		doc.Account = &accountDeliveryDocument{
			Email:    order.Account.Email,
			Password: order.Account.Password,
			SentAt:   order.Account.SentAt,
		}
	}
	return doc
}

func toDomainOrder(id string, doc orderDocument) domain.Order {
	order := domain.Order{
		ID:           id,
		UserID:       doc.UserID,
		UserName:     doc.UserName,
		UserEmail:    doc.UserEmail,
		TotalAmount:  doc.TotalAmount,
		PaymentProof: doc.PaymentProof,
		Details: domain.OrderDetails{
			CustomerName: doc.Details.CustomerName,
			Email:        doc.Details.Email,
			Phone:        doc.Details.Phone,
			Notes:        doc.Details.Notes,
		},
		PaymentStatus: domain.PaymentStatus(doc.PaymentStatus),
		Status:        domain.OrderStatus(doc.Status),
		Rated:         doc.Rated,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
	for _, item := range doc.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			ProductImage: item.ProductImage,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
		})
	}
	if doc.Account != nil {
		order.Account = &domain.AccountDelivery{
			Email:    doc.Account.Email,
			Password: doc.Account.Password,
			SentAt:   doc.Account.SentAt,
		}
	}
	return order
}
