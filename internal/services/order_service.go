package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/kograph/api/internal/domain"
	"github.com/kograph/api/internal/platform/storage"
	"github.com/kograph/api/internal/repositories"
)

const (
	orderEventCreated         = "order.created"
	orderEventStatusChanged   = "order.status.changed"
	orderEventPaymentVerified = "order.payment.verified"
	orderEventPaymentRejected = "order.payment.rejected"

	orderIDPrefix = "ord_"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates a disallowed status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates concurrent modification or double verification.
	ErrOrderConflict = errors.New("order: conflict")
)

// orderStateTransitions is the forward-only fulfillment machine. Cancellation
// is reachable from any non-terminal status; terminal statuses accept nothing.
var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:    {domain.OrderStatusProcessing, domain.OrderStatusCompleted, domain.OrderStatusCancelled},
	domain.OrderStatusProcessing: {domain.OrderStatusCompleted, domain.OrderStatusCancelled},
}

// statusNotificationMessages carries the fixed buyer-facing copy per status.
var statusNotificationMessages = map[domain.OrderStatus]string{
	domain.OrderStatusPending:    "Menunggu konfirmasi",
	domain.OrderStatusProcessing: "Sedang diproses",
	domain.OrderStatusCompleted:  "Selesai! Terima kasih atas pesanan Anda",
	domain.OrderStatusCancelled:  "Dibatalkan",
}

// ProofStorage offloads payment proof payloads to object storage.
type ProofStorage interface {
	Save(ctx context.Context, orderID, dataURI string) (storage.StoredProof, error)
	SignedURL(ctx context.Context, objectPath string) (string, error)
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders        repositories.OrderRepository
	Stats         StatsService
	Notifications NotificationService
	Deliveries    DeliveryService
	Proofs        ProofStorage
	UnitOfWork    repositories.UnitOfWork
	// VerifiedStatus is the fulfillment status applied when a payment is
	// verified. Defaults to processing.
	VerifiedStatus domain.OrderStatus
	Clock          func() time.Time
	IDGenerator    func() string
	Logger         func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders         repositories.OrderRepository
	stats          StatsService
	notifications  NotificationService
	deliveries     DeliveryService
	proofs         ProofStorage
	unitOfWork     repositories.UnitOfWork
	verifiedStatus domain.OrderStatus
	clock          func() time.Time
	newID          func() string
	logger         func(context.Context, string, map[string]any)
}

var _ OrderService = (*orderService)(nil)

// NewOrderService wires dependencies into an OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.UnitOfWork == nil {
		return nil, errors.New("order service: unit of work is required")
	}

	verifiedStatus := deps.VerifiedStatus
	if verifiedStatus == "" {
		verifiedStatus = domain.OrderStatusProcessing
	}
	if verifiedStatus != domain.OrderStatusProcessing && verifiedStatus != domain.OrderStatusCompleted {
		return nil, fmt.Errorf("order service: unsupported verified status %q", verifiedStatus)
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return orderIDPrefix + ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:         deps.Orders,
		stats:          deps.Stats,
		notifications:  deps.Notifications,
		deliveries:     deps.Deliveries,
		proofs:         deps.Proofs,
		unitOfWork:     deps.UnitOfWork,
		verifiedStatus: verifiedStatus,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *orderService) Create(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	if len(cmd.Items) == 0 {
		return Order{}, fmt.Errorf("%w: cart is empty", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(cmd.PaymentProof) == "" {
		return Order{}, fmt.Errorf("%w: payment proof is required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(cmd.Details.Phone) == "" {
		return Order{}, fmt.Errorf("%w: phone number is required", ErrOrderInvalidInput)
	}
	for _, item := range cmd.Items {
		if item.Quantity <= 0 {
			return Order{}, fmt.Errorf("%w: item quantity must be positive", ErrOrderInvalidInput)
		}
	}

	now := s.clock()
	order := Order{
		ID:            s.newID(),
		UserID:        strings.TrimSpace(cmd.UserID),
		UserName:      strings.TrimSpace(cmd.UserName),
		UserEmail:     strings.TrimSpace(cmd.UserEmail),
		Items:         cmd.Items,
		TotalAmount:   cmd.TotalAmount,
		Details:       cmd.Details,
		PaymentProof:  cmd.PaymentProof,
		PaymentStatus: domain.PaymentStatusPendingVerification,
		Status:        domain.OrderStatusPending,
		Rated:         false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if order.UserID == "" {
		order.UserID = domain.GuestUserID
	}
	if order.UserName == "" {
		order.UserName = "Guest"
	}

	if s.proofs != nil && strings.HasPrefix(order.PaymentProof, "data:") {
		stored, err := s.proofs.Save(ctx, order.ID, order.PaymentProof)
		if err != nil {
			s.logger(ctx, "order.proof.upload_failed", map[string]any{
				"orderId": order.ID,
				"error":   err.Error(),
			})
		} else {
			order.PaymentProof = stored.ObjectPath
		}
	}

	if err := s.orders.Insert(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, orderEventCreated, map[string]any{
		"orderId":     order.ID,
		"userId":      order.UserID,
		"totalAmount": order.TotalAmount,
		"items":       len(order.Items),
	})

	// Side effects past this point are best-effort: the order is committed
	// and a flaky notification channel must not fail checkout.
	s.bumpProjectsCompleted(ctx, order.ID)
	s.notifyOrderCreated(ctx, order)
	s.queueOrderCreatedDelivery(ctx, order)

	return order, nil
}

func (s *orderService) TransitionStatus(ctx context.Context, cmd TransitionStatusCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target := cmd.TargetStatus
	if !domain.ValidOrderStatus(string(target)) {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, target)
	}

	var (
		updated  Order
		previous domain.OrderStatus
		now      = s.clock()
	)
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return err
		}
		previous = order.Status
		if order.Status == target {
			updated = order
			return nil
		}
		if !transitionAllowed(order.Status, target) {
			return fmt.Errorf("%w: %s -> %s", ErrOrderInvalidState, order.Status, target)
		}

		order.Status = target
		order.UpdatedAt = now
		if err := s.orders.Update(txCtx, order); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrOrderInvalidState) {
			return Order{}, err
		}
		return Order{}, s.mapRepositoryError(err)
	}

	if previous == target {
		return updated, nil
	}

	s.logger(ctx, orderEventStatusChanged, map[string]any{
		"orderId":  updated.ID,
		"previous": string(previous),
		"current":  string(target),
		"actorId":  cmd.ActorID,
	})

	s.notifyStatusChanged(ctx, updated)
	if target == domain.OrderStatusCompleted {
		s.bumpClientsSatisfied(ctx, updated.ID)
	}

	return updated, nil
}

func (s *orderService) VerifyPayment(ctx context.Context, cmd VerifyPaymentCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	switch cmd.Decision {
	case VerifyDecisionVerified:
		if strings.TrimSpace(cmd.AccountEmail) == "" || strings.TrimSpace(cmd.AccountPassword) == "" {
			return Order{}, fmt.Errorf("%w: account email and password are required to verify", ErrOrderInvalidInput)
		}
	case VerifyDecisionRejected:
	default:
		return Order{}, fmt.Errorf("%w: decision must be verified or rejected", ErrOrderInvalidInput)
	}

	var (
		updated Order
		now     = s.clock()
	)
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return err
		}
		if order.PaymentStatus != domain.PaymentStatusPendingVerification {
			return fmt.Errorf("%w: payment already %s", ErrOrderConflict, order.PaymentStatus)
		}

		switch cmd.Decision {
		case VerifyDecisionVerified:
			sentAt := now
			order.PaymentStatus = domain.PaymentStatusVerified
			order.Status = s.verifiedStatus
			order.Account = &domain.AccountDelivery{
				Email:    strings.TrimSpace(cmd.AccountEmail),
				Password: cmd.AccountPassword,
				SentAt:   &sentAt,
			}
		case VerifyDecisionRejected:
			order.PaymentStatus = domain.PaymentStatusRejected
			order.Status = domain.OrderStatusCancelled
		}
		order.UpdatedAt = now

		if err := s.orders.Update(txCtx, order); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrOrderConflict) {
			return Order{}, err
		}
		return Order{}, s.mapRepositoryError(err)
	}

	// Credentials never reach the log stream, only the buyer's channel.
	event := orderEventPaymentRejected
	if cmd.Decision == VerifyDecisionVerified {
		event = orderEventPaymentVerified
	}
	s.logger(ctx, event, map[string]any{
		"orderId": updated.ID,
		"status":  string(updated.Status),
		"actorId": cmd.ActorID,
	})

	s.notifyPaymentDecision(ctx, updated, cmd.Decision)
	if cmd.Decision == VerifyDecisionVerified {
		s.queueAccountDelivery(ctx, updated)
	}

	return updated, nil
}

func (s *orderService) Get(ctx context.Context, orderID string, actor Actor) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if !actor.Admin && order.UserID != actor.UserID {
		// Non-owners learn nothing, not even existence.
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if !actor.Admin {
		order.Account = sanitizeAccountForOwner(order)
	}
	return order, nil
}

func (s *orderService) List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) ProofURL(ctx context.Context, order Order) (string, error) {
	proof := strings.TrimSpace(order.PaymentProof)
	if proof == "" {
		return "", fmt.Errorf("%w: order has no payment proof", ErrOrderInvalidInput)
	}
	if s.proofs == nil || strings.HasPrefix(proof, "data:") {
		return proof, nil
	}
	url, err := s.proofs.SignedURL(ctx, proof)
	if err != nil {
		return "", fmt.Errorf("order: sign proof url: %w", err)
	}
	return url, nil
}

func (s *orderService) bumpProjectsCompleted(ctx context.Context, orderID string) {
	if s.stats == nil {
		return
	}
	if err := s.stats.IncrementProjectsCompleted(ctx); err != nil {
		s.logger(ctx, "order.stats.update_failed", map[string]any{
			"orderId": orderID,
			"field":   string(repositories.StatsProjectsCompleted),
			"error":   err.Error(),
		})
	}
}

func (s *orderService) bumpClientsSatisfied(ctx context.Context, orderID string) {
	if s.stats == nil {
		return
	}
	if err := s.stats.IncrementClientsSatisfied(ctx); err != nil {
		s.logger(ctx, "order.stats.update_failed", map[string]any{
			"orderId": orderID,
			"field":   string(repositories.StatsClientsSatisfied),
			"error":   err.Error(),
		})
	}
}

func (s *orderService) notifyOrderCreated(ctx context.Context, order Order) {
	if s.notifications == nil {
		return
	}
	if !order.IsGuest() {
		s.notify(ctx, NotifyCommand{
			UserID:  order.UserID,
			Type:    domain.NotificationTypeOrder,
			Title:   "Pesanan Diterima",
			Message: fmt.Sprintf("Pesanan %s sedang diverifikasi.", shortOrderID(order.ID)),
			Link:    "/profile",
			Data:    map[string]string{"orderId": order.ID},
		})
	}
	s.notify(ctx, NotifyCommand{
		UserID:  domain.AdminAudience,
		Type:    domain.NotificationTypeOrder,
		Title:   "Pesanan Baru",
		Message: fmt.Sprintf("Order baru dari %s - %s", order.UserName, formatRupiah(order.TotalAmount)),
		Link:    "/admin",
		Data:    map[string]string{"orderId": order.ID},
	})
}

func (s *orderService) notifyStatusChanged(ctx context.Context, order Order) {
	if s.notifications == nil || order.IsGuest() {
		return
	}
	s.notify(ctx, NotifyCommand{
		UserID:  order.UserID,
		Type:    domain.NotificationTypeStatusUpdate,
		Title:   "Update Status Pesanan",
		Message: fmt.Sprintf("Pesanan %s: %s", shortOrderID(order.ID), statusNotificationMessages[order.Status]),
		Link:    "/profile",
		Data:    map[string]string{"orderId": order.ID, "status": string(order.Status)},
	})
}

func (s *orderService) notifyPaymentDecision(ctx context.Context, order Order, decision VerifyPaymentDecision) {
	if s.notifications == nil || order.IsGuest() {
		return
	}
	cmd := NotifyCommand{
		UserID: order.UserID,
		Type:   domain.NotificationTypePayment,
		Link:   "/profile",
		Data:   map[string]string{"orderId": order.ID},
	}
	if decision == VerifyDecisionVerified {
		cmd.Title = "Pembayaran Diverifikasi"
		cmd.Message = fmt.Sprintf("Pesanan %s telah diverifikasi.", shortOrderID(order.ID))
	} else {
		cmd.Title = "Pembayaran Ditolak"
		cmd.Message = fmt.Sprintf("Pembayaran untuk pesanan %s ditolak. Pesanan dibatalkan.", shortOrderID(order.ID))
	}
	s.notify(ctx, cmd)
}

func (s *orderService) notify(ctx context.Context, cmd NotifyCommand) {
	if _, err := s.notifications.Notify(ctx, cmd); err != nil {
		s.logger(ctx, "order.notification.failed", map[string]any{
			"userId": cmd.UserID,
			"title":  cmd.Title,
			"error":  err.Error(),
		})
	}
}

func (s *orderService) queueOrderCreatedDelivery(ctx context.Context, order Order) {
	if s.deliveries == nil {
		return
	}
	caption := buildOrderCreatedCaption(order)
	if strings.HasPrefix(order.PaymentProof, "data:") || order.PaymentProof == "" {
		// Inline proofs never travel through the queue; fall back to text.
		s.deliveries.EnqueueMessage(ctx, caption, order.ID)
		return
	}
	s.deliveries.EnqueuePhotoProof(ctx, order.PaymentProof, caption, order.ID)
}

func (s *orderService) queueAccountDelivery(ctx context.Context, order Order) {
	if s.deliveries == nil || order.Account == nil {
		return
	}
	s.deliveries.EnqueueMessage(ctx, buildAccountDeliveryMessage(order), order.ID)
}

func transitionAllowed(from, to domain.OrderStatus) bool {
	for _, allowed := range orderStateTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// sanitizeAccountForOwner keeps the credential payload for the buyer only
// after verification completed; any other state hides it.
func sanitizeAccountForOwner(order Order) *domain.AccountDelivery {
	if order.PaymentStatus != domain.PaymentStatusVerified {
		return nil
	}
	return order.Account
}

func shortOrderID(orderID string) string {
	trimmed := strings.TrimPrefix(orderID, orderIDPrefix)
	if len(trimmed) > 8 {
		return trimmed[:8]
	}
	return trimmed
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}
