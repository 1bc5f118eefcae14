package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/kograph/api/internal/domain"
)

func newTestNotificationService(t *testing.T, repo *stubNotificationRepository) NotificationService {
	t.Helper()
	svc, err := NewNotificationService(NotificationServiceDeps{
		Notifications: repo,
		Clock: func() time.Time {
			return time.Date(2025, 6, 18, 8, 0, 0, 0, time.UTC)
		},
		IDGenerator: func() string { return "ntf_test0001" },
	})
	if err != nil {
		t.Fatalf("new notification service: %v", err)
	}
	return svc
}

func TestNotificationServiceNotifyNormalizesAndDefaults(t *testing.T) {
	repo := &stubNotificationRepository{}
	svc := newTestNotificationService(t, repo)

	notification, err := svc.Notify(context.Background(), NotifyCommand{
		UserID:  " user-1 ",
		Title:   " Pesanan Diterima ",
		Message: "Pesanan abc12345 sedang diverifikasi.",
		Link:    "/profile",
		Data: map[string]string{
			" orderId ": " ord_1 ",
			"":          "dropped",
		},
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}

	if notification.ID != "ntf_test0001" {
		t.Fatalf("unexpected id %s", notification.ID)
	}
	if notification.Type != domain.NotificationTypeGeneral {
		t.Fatalf("expected general default type, got %s", notification.Type)
	}
	if notification.Read {
		t.Fatal("notifications start unread")
	}
	if notification.Data["orderId"] != "ord_1" {
		t.Fatalf("expected normalized data map, got %+v", notification.Data)
	}
	if _, ok := notification.Data[""]; ok {
		t.Fatal("empty keys must be dropped")
	}
	if len(repo.notifications) != 1 {
		t.Fatalf("expected 1 stored notification, got %d", len(repo.notifications))
	}
}

func TestNotificationServiceNotifyValidation(t *testing.T) {
	svc := newTestNotificationService(t, &stubNotificationRepository{})

	cases := []NotifyCommand{
		{Title: "t", Message: "m"},
		{UserID: "user-1", Message: "m"},
		{UserID: "user-1", Title: "t"},
	}
	for i, cmd := range cases {
		if _, err := svc.Notify(context.Background(), cmd); !errors.Is(err, ErrNotificationInvalidInput) {
			t.Fatalf("case %d: expected ErrNotificationInvalidInput, got %v", i, err)
		}
	}
}

func TestNotificationServiceMarkReadMapsNotFound(t *testing.T) {
	repo := &stubNotificationRepository{notifications: []domain.Notification{
		{ID: "ntf_1", UserID: "user-1"},
	}}
	svc := newTestNotificationService(t, repo)

	if err := svc.MarkRead(context.Background(), "ntf_1", "user-1"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !repo.notifications[0].Read {
		t.Fatal("expected notification marked read")
	}

	if err := svc.MarkRead(context.Background(), "ntf_1", "user-2"); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected not-found for foreign notification, got %v", err)
	}
}

func TestNotificationServiceMarkAllRead(t *testing.T) {
	repo := &stubNotificationRepository{notifications: []domain.Notification{
		{ID: "ntf_1", UserID: "user-1"},
		{ID: "ntf_2", UserID: "user-1"},
		{ID: "ntf_3", UserID: "user-2"},
	}}
	svc := newTestNotificationService(t, repo)

	if err := svc.MarkAllRead(context.Background(), "user-1"); err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if !repo.notifications[0].Read || !repo.notifications[1].Read {
		t.Fatal("expected user-1 notifications read")
	}
	if repo.notifications[2].Read {
		t.Fatal("other users' notifications must stay untouched")
	}
}
