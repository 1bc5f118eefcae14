package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/kograph/api/internal/domain"
	"github.com/kograph/api/internal/platform/textutil"
	"github.com/kograph/api/internal/repositories"
)

const notificationIDPrefix = "ntf_"

var (
	// ErrNotificationInvalidInput signals the caller provided invalid data.
	ErrNotificationInvalidInput = errors.New("notification: invalid input")
	// ErrNotificationNotFound indicates the notification could not be located.
	ErrNotificationNotFound = errors.New("notification: not found")
)

// NotificationServiceDeps bundles collaborators required to construct the notification service.
type NotificationServiceDeps struct {
	Notifications repositories.NotificationRepository
	Clock         func() time.Time
	IDGenerator   func() string
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type notificationService struct {
	notifications repositories.NotificationRepository
	clock         func() time.Time
	newID         func() string
	logger        func(context.Context, string, map[string]any)
}

var _ NotificationService = (*notificationService)(nil)

// NewNotificationService wires dependencies into a NotificationService implementation.
func NewNotificationService(deps NotificationServiceDeps) (NotificationService, error) {
	if deps.Notifications == nil {
		return nil, errors.New("notification service: notification repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return notificationIDPrefix + ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &notificationService{
		notifications: deps.Notifications,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *notificationService) Notify(ctx context.Context, cmd NotifyCommand) (Notification, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Notification{}, fmt.Errorf("%w: target user id is required", ErrNotificationInvalidInput)
	}
	if strings.TrimSpace(cmd.Title) == "" {
		return Notification{}, fmt.Errorf("%w: title is required", ErrNotificationInvalidInput)
	}
	if strings.TrimSpace(cmd.Message) == "" {
		return Notification{}, fmt.Errorf("%w: message is required", ErrNotificationInvalidInput)
	}

	notificationType := cmd.Type
	if notificationType == "" {
		notificationType = domain.NotificationTypeGeneral
	}

	notification := Notification{
		ID:        s.newID(),
		UserID:    userID,
		Type:      notificationType,
		Title:     strings.TrimSpace(cmd.Title),
		Message:   strings.TrimSpace(cmd.Message),
		Read:      false,
		Link:      strings.TrimSpace(cmd.Link),
		Data:      textutil.NormalizeStringMap(cmd.Data),
		CreatedAt: s.clock(),
	}

	if err := s.notifications.Insert(ctx, notification); err != nil {
		return Notification{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "notification.created", map[string]any{
		"notificationId": notification.ID,
		"userId":         notification.UserID,
		"type":           string(notification.Type),
	})
	return notification, nil
}

func (s *notificationService) ListForUser(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[Notification], error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.CursorPage[Notification]{}, fmt.Errorf("%w: user id is required", ErrNotificationInvalidInput)
	}
	page, err := s.notifications.ListByUser(ctx, userID, pager)
	if err != nil {
		return domain.CursorPage[Notification]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *notificationService) MarkRead(ctx context.Context, notificationID, userID string) error {
	if strings.TrimSpace(notificationID) == "" {
		return fmt.Errorf("%w: notification id is required", ErrNotificationInvalidInput)
	}
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", ErrNotificationInvalidInput)
	}
	if err := s.notifications.MarkRead(ctx, notificationID, userID, s.clock()); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", ErrNotificationInvalidInput)
	}
	if err := s.notifications.MarkAllRead(ctx, userID, s.clock()); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *notificationService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrNotificationNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("notification: repository unavailable: %w", err)
		}
	}

	return err
}
