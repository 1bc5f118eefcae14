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
)

const notificationCollection = "notifications"

type notificationDocument struct {
	UserID    string            `firestore:"userId"`
	Type      string            `firestore:"type"`
	Title     string            `firestore:"title"`
	Message   string            `firestore:"message"`
	Read      bool              `firestore:"read"`
	Link      string            `firestore:"link,omitempty"`
	Data      map[string]string `firestore:"data,omitempty"`
	CreatedAt time.Time         `firestore:"createdAt"`
	ReadAt    *time.Time        `firestore:"readAt,omitempty"`
}

// NotificationRepository implements repositories.NotificationRepository backed by Firestore.
type NotificationRepository struct {
	provider      *pfirestore.Provider
	notifications *pfirestore.Collection[notificationDocument]
}

// NewNotificationRepository constructs a Firestore-backed notification repository.
func NewNotificationRepository(provider *pfirestore.Provider) (*NotificationRepository, error) {
	if provider == nil {
		return nil, errors.New("notification repository requires firestore provider")
	}
	collection, err := pfirestore.NewCollection[notificationDocument](provider, notificationCollection, nil)
	if err != nil {
		return nil, err
	}
	return &NotificationRepository{provider: provider, notifications: collection}, nil
}

// Insert persists an in-app notification.
func (r *NotificationRepository) Insert(ctx context.Context, notification domain.Notification) error {
	if strings.TrimSpace(notification.ID) == "" {
		return errors.New("notification id is required")
	}
	return r.notifications.Create(ctx, notification.ID, notificationDocument{
		UserID:    notification.UserID,
		Type:      string(notification.Type),
		Title:     notification.Title,
		Message:   notification.Message,
		Read:      notification.Read,
		Link:      notification.Link,
		Data:      notification.Data,
		CreatedAt: notification.CreatedAt,
	})
}

// ListByUser returns a user's notifications newest-first. The reserved admin
// audience id selects the back-office feed.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Notification], error) {
	if strings.TrimSpace(userID) == "" {
		return domain.CursorPage[domain.Notification]{}, errors.New("user id is required")
	}

	query, err := r.notifications.Query(ctx)
	if err != nil {
		return domain.CursorPage[domain.Notification]{}, err
	}
	query = query.
		Where("userId", "==", userID).
		OrderBy("createdAt", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Desc)

	pageSize := pager.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}
	cursor, err := pagination.DecodeToken(pager.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Notification]{}, err
	}
	if !cursor.IsZero() {
		query = query.StartAfter(cursorValues(cursor)...)
	}

	snaps, err := query.Limit(pageSize + 1).Documents(ctx).GetAll()
	if err != nil {
		return domain.CursorPage[domain.Notification]{}, pfirestore.WrapError("notifications.ListByUser", err)
	}

	page := domain.CursorPage[domain.Notification]{}
	for i, snap := range snaps {
		if i == pageSize {
			break
		}
		var doc notificationDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.Notification]{}, pfirestore.WrapError("notifications.ListByUser", err)
		}
		page.Items = append(page.Items, domain.Notification{
			ID:        snap.Ref.ID,
			UserID:    doc.UserID,
			Type:      domain.NotificationType(doc.Type),
			Title:     doc.Title,
			Message:   doc.Message,
			Read:      doc.Read,
			Link:      doc.Link,
			Data:      doc.Data,
			CreatedAt: doc.CreatedAt,
		})
	}

	if len(snaps) > pageSize {
		last := page.Items[len(page.Items)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{
			StartAfter: []any{last.CreatedAt, last.ID},
		})
		if err != nil {
			return domain.CursorPage[domain.Notification]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

// MarkRead flags one notification as read, verifying ownership inside a
// transaction.
func (r *NotificationRepository) MarkRead(ctx context.Context, notificationID string, userID string, readAt time.Time) error {
	if strings.TrimSpace(notificationID) == "" || strings.TrimSpace(userID) == "" {
		return errors.New("notification id and user id are required")
	}

	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := r.notifications.Get(ctx, notificationID)
		if err != nil {
			return err
		}
		if doc.UserID != userID {
			return pfirestore.NewNotFoundError("notifications.MarkRead", errors.New("notification does not belong to user"))
		}
		if doc.Read {
			return nil
		}
		at := readAt.UTC()
		return r.notifications.Update(ctx, notificationID, []firestore.Update{
			{Path: "read", Value: true},
			{Path: "readAt", Value: at},
		})
	})
}

// MarkAllRead flags every unread notification of a user as read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string, readAt time.Time) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("user id is required")
	}

	query, err := r.notifications.Query(ctx)
	if err != nil {
		return err
	}
	snaps, err := query.
		Where("userId", "==", userID).
		Where("read", "==", false).
		Documents(ctx).GetAll()
	if err != nil {
		return pfirestore.WrapError("notifications.MarkAllRead", err)
	}

	at := readAt.UTC()
	for _, snap := range snaps {
		if _, err := snap.Ref.Update(ctx, []firestore.Update{
			{Path: "read", Value: true},
			{Path: "readAt", Value: at},
		}); err != nil {
			return pfirestore.WrapError("notifications.MarkAllRead", err)
		}
	}
	return nil
}
