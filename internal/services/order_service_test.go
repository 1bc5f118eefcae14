package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/kograph/api/internal/domain"
	"github.com/kograph/api/internal/platform/jobs"
)

const testProofDataURI = "data:image/jpeg;base64,AQID"

func newTestOrderService(t *testing.T, deps OrderServiceDeps) OrderService {
	t.Helper()
	if deps.Clock == nil {
		deps.Clock = func() time.Time {
			return time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
		}
	}
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return "ord_test0001" }
	}
	if deps.UnitOfWork == nil {
		deps.UnitOfWork = &passthroughUnitOfWork{}
	}
	svc, err := NewOrderService(deps)
	if err != nil {
		t.Fatalf("new order service: %v", err)
	}
	return svc
}

func validCreateCommand() CreateOrderCommand {
	return CreateOrderCommand{
		UserID:    "user-1",
		UserName:  "Budi",
		UserEmail: "budi@example.com",
		Items: []OrderItem{
			{ProductID: "prd_1", ProductName: "Netflix Premium", Quantity: 1, UnitPrice: 50000},
		},
		TotalAmount:  50000,
		Details:      OrderDetails{CustomerName: "Budi", Phone: "0812000111"},
		PaymentProof: testProofDataURI,
	}
}

func TestOrderServiceCreatePersistsAndFansOut(t *testing.T) {
	orders := newStubOrderRepository()
	stats := &stubStatsService{}
	notifications := &stubNotificationService{}
	deliveries := &stubDeliveryService{}
	proofs := &stubProofStorage{}

	svc := newTestOrderService(t, OrderServiceDeps{
		Orders:        orders,
		Stats:         stats,
		Notifications: notifications,
		Deliveries:    deliveries,
		Proofs:        proofs,
	})

	order, err := svc.Create(context.Background(), validCreateCommand())
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if order.ID != "ord_test0001" {
		t.Fatalf("unexpected order id %s", order.ID)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected status pending, got %s", order.Status)
	}
	if order.PaymentStatus != domain.PaymentStatusPendingVerification {
		t.Fatalf("expected payment status pending_verification, got %s", order.PaymentStatus)
	}
	if order.Rated {
		t.Fatal("new orders must not be rated")
	}
	if !strings.HasPrefix(order.PaymentProof, "payment-proofs/") {
		t.Fatalf("expected proof offloaded to storage, got %q", order.PaymentProof)
	}

	stored, err := orders.FindByID(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("find stored order: %v", err)
	}
	if stored.PaymentProof != order.PaymentProof {
		t.Fatalf("stored proof %q does not match returned %q", stored.PaymentProof, order.PaymentProof)
	}

	if stats.projectsCompleted != 1 {
		t.Fatalf("expected projectsCompleted incremented once, got %d", stats.projectsCompleted)
	}

	if len(notifications.captured) != 2 {
		t.Fatalf("expected buyer and admin notifications, got %d", len(notifications.captured))
	}
	buyer := notifications.captured[0].cmd
	if buyer.UserID != "user-1" || buyer.Type != domain.NotificationTypeOrder {
		t.Fatalf("unexpected buyer notification %+v", buyer)
	}
	admin := notifications.captured[1].cmd
	if admin.UserID != domain.AdminAudience {
		t.Fatalf("expected admin notification, got %+v", admin)
	}
	if !strings.Contains(admin.Message, "Budi") {
		t.Fatalf("admin message should name the buyer, got %q", admin.Message)
	}

	if len(deliveries.enqueued) != 1 {
		t.Fatalf("expected one queued delivery, got %d", len(deliveries.enqueued))
	}
	delivery := deliveries.enqueued[0]
	if delivery.kind != jobs.DeliveryKindPhoto {
		t.Fatalf("expected photo delivery, got %s", delivery.kind)
	}
	if delivery.proof != order.PaymentProof {
		t.Fatalf("delivery references %q, want %q", delivery.proof, order.PaymentProof)
	}
	if !strings.Contains(delivery.caption, "ORDER BARU") {
		t.Fatalf("unexpected caption %q", delivery.caption)
	}
}

func TestOrderServiceCreateDefaultsGuestAndSkipsBuyerNotification(t *testing.T) {
	orders := newStubOrderRepository()
	notifications := &stubNotificationService{}

	svc := newTestOrderService(t, OrderServiceDeps{
		Orders:        orders,
		Notifications: notifications,
	})

	cmd := validCreateCommand()
	cmd.UserID = ""
	cmd.UserName = ""

	order, err := svc.Create(context.Background(), cmd)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.UserID != domain.GuestUserID {
		t.Fatalf("expected guest user id, got %s", order.UserID)
	}
	if order.UserName != "Guest" {
		t.Fatalf("expected Guest user name, got %s", order.UserName)
	}

	if len(notifications.captured) != 1 {
		t.Fatalf("expected only admin notification, got %d", len(notifications.captured))
	}
	if notifications.captured[0].cmd.UserID != domain.AdminAudience {
		t.Fatalf("expected admin notification, got %+v", notifications.captured[0].cmd)
	}
}

func TestOrderServiceCreateValidation(t *testing.T) {
	svc := newTestOrderService(t, OrderServiceDeps{Orders: newStubOrderRepository()})

	cases := map[string]func(*CreateOrderCommand){
		"empty items":   func(cmd *CreateOrderCommand) { cmd.Items = nil },
		"missing proof": func(cmd *CreateOrderCommand) { cmd.PaymentProof = " " },
		"missing phone": func(cmd *CreateOrderCommand) { cmd.Details.Phone = "" },
		"zero quantity": func(cmd *CreateOrderCommand) { cmd.Items[0].Quantity = 0 },
	}
	for name, mutate := range cases {
		cmd := validCreateCommand()
		mutate(&cmd)
		if _, err := svc.Create(context.Background(), cmd); !errors.Is(err, ErrOrderInvalidInput) {
			t.Fatalf("%s: expected ErrOrderInvalidInput, got %v", name, err)
		}
	}
}

func TestOrderServiceCreateKeepsInlineProofWhenUploadFails(t *testing.T) {
	orders := newStubOrderRepository()
	deliveries := &stubDeliveryService{}
	proofs := &stubProofStorage{saveErr: errors.New("bucket unavailable")}
	logger := &captureLogger{}

	svc := newTestOrderService(t, OrderServiceDeps{
		Orders:     orders,
		Deliveries: deliveries,
		Proofs:     proofs,
		Logger:     logger.log,
	})

	order, err := svc.Create(context.Background(), validCreateCommand())
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.PaymentProof != testProofDataURI {
		t.Fatalf("expected inline proof kept, got %q", order.PaymentProof)
	}
	if !logger.has("order.proof.upload_failed") {
		t.Fatal("expected upload failure logged")
	}

	// Inline proofs cannot ride the photo pipeline.
	if len(deliveries.enqueued) != 1 || deliveries.enqueued[0].kind != jobs.DeliveryKindMessage {
		t.Fatalf("expected text fallback delivery, got %+v", deliveries.enqueued)
	}
}

func TestOrderServiceTransitionStatusForwardOnly(t *testing.T) {
	now := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	orders := newStubOrderRepository(domain.Order{
		ID:        "ord_1",
		UserID:    "user-1",
		Status:    domain.OrderStatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	})

	svc := newTestOrderService(t, OrderServiceDeps{Orders: orders})

	if _, err := svc.TransitionStatus(context.Background(), TransitionStatusCommand{
		OrderID:      "ord_1",
		TargetStatus: domain.OrderStatusPending,
	}); !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected ErrOrderInvalidState for backward move, got %v", err)
	}

	if _, err := svc.TransitionStatus(context.Background(), TransitionStatusCommand{
		OrderID:      "ord_1",
		TargetStatus: "shipped",
	}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput for unknown status, got %v", err)
	}

	if _, err := svc.TransitionStatus(context.Background(), TransitionStatusCommand{
		OrderID:      "ord_missing",
		TargetStatus: domain.OrderStatusCompleted,
	}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderServiceTransitionStatusCompletedSideEffects(t *testing.T) {
	orders := newStubOrderRepository(domain.Order{
		ID:     "ord_1",
		UserID: "user-1",
		Status: domain.OrderStatusProcessing,
	})
	stats := &stubStatsService{}
	notifications := &stubNotificationService{}

	svc := newTestOrderService(t, OrderServiceDeps{
		Orders:        orders,
		Stats:         stats,
		Notifications: notifications,
	})

	updated, err := svc.TransitionStatus(context.Background(), TransitionStatusCommand{
		OrderID:      "ord_1",
		TargetStatus: domain.OrderStatusCompleted,
		ActorID:      "admin-1",
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if updated.Status != domain.OrderStatusCompleted {
		t.Fatalf("expected completed, got %s", updated.Status)
	}
	if stats.clientsSatisfied != 1 {
		t.Fatalf("expected clientsSatisfied incremented, got %d", stats.clientsSatisfied)
	}
	if len(notifications.captured) != 1 {
		t.Fatalf("expected status notification, got %d", len(notifications.captured))
	}
	msg := notifications.captured[0].cmd.Message
	if !strings.Contains(msg, "Selesai") {
		t.Fatalf("unexpected status message %q", msg)
	}
}

func TestOrderServiceTransitionStatusSameStatusIsNoOp(t *testing.T) {
	orders := newStubOrderRepository(domain.Order{
		ID:     "ord_1",
		UserID: "user-1",
		Status: domain.OrderStatusProcessing,
	})
	stats := &stubStatsService{}
	notifications := &stubNotificationService{}

	svc := newTestOrderService(t, OrderServiceDeps{
		Orders:        orders,
		Stats:         stats,
		Notifications: notifications,
	})

	if _, err := svc.TransitionStatus(context.Background(), TransitionStatusCommand{
		OrderID:      "ord_1",
		TargetStatus: domain.OrderStatusProcessing,
	}); err != nil {
		t.Fatalf("same-status transition: %v", err)
	}
	if len(notifications.captured) != 0 || stats.clientsSatisfied != 0 {
		t.Fatal("same-status transition must not emit side effects")
	}
}

func TestOrderServiceVerifyPaymentVerified(t *testing.T) {
	now := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	orders := newStubOrderRepository(domain.Order{
		ID:       "ord_1",
		UserID:   "user-1",
		UserName: "Budi",
		Items: []domain.OrderItem{
			{ProductName: "Netflix Premium", Quantity: 1, UnitPrice: 50000},
		},
		TotalAmount:   50000,
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPendingVerification,
	})
	notifications := &stubNotificationService{}
	deliveries := &stubDeliveryService{}

	svc := newTestOrderService(t, OrderServiceDeps{
		Orders:        orders,
		Notifications: notifications,
		Deliveries:    deliveries,
		Clock:         func() time.Time { return now },
	})

	updated, err := svc.VerifyPayment(context.Background(), VerifyPaymentCommand{
		OrderID:         "ord_1",
		Decision:        VerifyDecisionVerified,
		AccountEmail:    "netflix@example.com",
		AccountPassword: "s3cret",
		ActorID:         "admin-1",
	})
	if err != nil {
		t.Fatalf("verify payment: %v", err)
	}

	if updated.PaymentStatus != domain.PaymentStatusVerified {
		t.Fatalf("expected verified, got %s", updated.PaymentStatus)
	}
	if updated.Status != domain.OrderStatusProcessing {
		t.Fatalf("expected default verified status processing, got %s", updated.Status)
	}
	if updated.Account == nil || updated.Account.Email != "netflix@example.com" {
		t.Fatalf("expected account credentials stored, got %+v", updated.Account)
	}
	if updated.Account.SentAt == nil || !updated.Account.SentAt.Equal(now) {
		t.Fatalf("expected sentAt %s, got %v", now, updated.Account.SentAt)
	}

	if len(notifications.captured) != 1 {
		t.Fatalf("expected buyer notification, got %d", len(notifications.captured))
	}
	if notifications.captured[0].cmd.Title != "Pembayaran Diverifikasi" {
		t.Fatalf("unexpected title %q", notifications.captured[0].cmd.Title)
	}

	if len(deliveries.enqueued) != 1 || deliveries.enqueued[0].kind != jobs.DeliveryKindMessage {
		t.Fatalf("expected account delivery message, got %+v", deliveries.enqueued)
	}
	text := deliveries.enqueued[0].text
	for _, want := range []string{"netflix@example.com", "s3cret", "Netflix Premium", "Rp"} {
		if !strings.Contains(text, want) {
			t.Fatalf("account message missing %q: %q", want, text)
		}
	}
}

func TestOrderServiceVerifyPaymentConfigurableCompletedStatus(t *testing.T) {
	orders := newStubOrderRepository(domain.Order{
		ID:            "ord_1",
		UserID:        "user-1",
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPendingVerification,
	})

	svc := newTestOrderService(t, OrderServiceDeps{
		Orders:         orders,
		VerifiedStatus: domain.OrderStatusCompleted,
	})

	updated, err := svc.VerifyPayment(context.Background(), VerifyPaymentCommand{
		OrderID:         "ord_1",
		Decision:        VerifyDecisionVerified,
		AccountEmail:    "a@b.c",
		AccountPassword: "pw",
	})
	if err != nil {
		t.Fatalf("verify payment: %v", err)
	}
	if updated.Status != domain.OrderStatusCompleted {
		t.Fatalf("expected completed, got %s", updated.Status)
	}
}

func TestOrderServiceVerifyPaymentRejected(t *testing.T) {
	orders := newStubOrderRepository(domain.Order{
		ID:            "ord_1",
		UserID:        "user-1",
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPendingVerification,
	})
	notifications := &stubNotificationService{}
	deliveries := &stubDeliveryService{}

	svc := newTestOrderService(t, OrderServiceDeps{
		Orders:        orders,
		Notifications: notifications,
		Deliveries:    deliveries,
	})

	updated, err := svc.VerifyPayment(context.Background(), VerifyPaymentCommand{
		OrderID:  "ord_1",
		Decision: VerifyDecisionRejected,
	})
	if err != nil {
		t.Fatalf("verify payment: %v", err)
	}
	if updated.PaymentStatus != domain.PaymentStatusRejected {
		t.Fatalf("expected rejected, got %s", updated.PaymentStatus)
	}
	if updated.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", updated.Status)
	}
	if len(notifications.captured) != 1 || notifications.captured[0].cmd.Title != "Pembayaran Ditolak" {
		t.Fatalf("unexpected notifications %+v", notifications.captured)
	}
	if len(deliveries.enqueued) != 0 {
		t.Fatal("rejected payments must not deliver credentials")
	}
}

func TestOrderServiceVerifyPaymentGuards(t *testing.T) {
	orders := newStubOrderRepository(domain.Order{
		ID:            "ord_1",
		UserID:        "user-1",
		Status:        domain.OrderStatusProcessing,
		PaymentStatus: domain.PaymentStatusVerified,
	})

	svc := newTestOrderService(t, OrderServiceDeps{Orders: orders})

	if _, err := svc.VerifyPayment(context.Background(), VerifyPaymentCommand{
		OrderID:  "ord_1",
		Decision: VerifyDecisionVerified,
	}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected credential validation error, got %v", err)
	}

	if _, err := svc.VerifyPayment(context.Background(), VerifyPaymentCommand{
		OrderID:         "ord_1",
		Decision:        VerifyDecisionVerified,
		AccountEmail:    "a@b.c",
		AccountPassword: "pw",
	}); !errors.Is(err, ErrOrderConflict) {
		t.Fatalf("expected double verification conflict, got %v", err)
	}

	if _, err := svc.VerifyPayment(context.Background(), VerifyPaymentCommand{
		OrderID:  "ord_1",
		Decision: "maybe",
	}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected decision validation error, got %v", err)
	}
}

func TestOrderServiceGetEnforcesOwnership(t *testing.T) {
	orders := newStubOrderRepository(domain.Order{
		ID:            "ord_1",
		UserID:        "user-1",
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPendingVerification,
		Account:       &domain.AccountDelivery{Email: "a@b.c", Password: "pw"},
	})

	svc := newTestOrderService(t, OrderServiceDeps{Orders: orders})

	if _, err := svc.Get(context.Background(), "ord_1", Actor{UserID: "user-2"}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not-found for foreign order, got %v", err)
	}

	owned, err := svc.Get(context.Background(), "ord_1", Actor{UserID: "user-1"})
	if err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if owned.Account != nil {
		t.Fatal("credentials must stay hidden before verification")
	}

	admin, err := svc.Get(context.Background(), "ord_1", Actor{UserID: "admin-1", Admin: true})
	if err != nil {
		t.Fatalf("admin get: %v", err)
	}
	if admin.Account == nil {
		t.Fatal("admins see the full order document")
	}
}
