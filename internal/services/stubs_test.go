package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	domain "github.com/kograph/api/internal/domain"
	"github.com/kograph/api/internal/platform/jobs"
	"github.com/kograph/api/internal/platform/storage"
	"github.com/kograph/api/internal/platform/telegram"
	"github.com/kograph/api/internal/repositories"
)

type stubRepositoryError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *stubRepositoryError) Error() string       { return e.msg }
func (e *stubRepositoryError) IsNotFound() bool    { return e.notFound }
func (e *stubRepositoryError) IsConflict() bool    { return e.conflict }
func (e *stubRepositoryError) IsUnavailable() bool { return e.unavailable }

func notFoundError(id string) error {
	return &stubRepositoryError{msg: fmt.Sprintf("document %s not found", id), notFound: true}
}

type stubOrderRepository struct {
	mu        sync.Mutex
	orders    map[string]domain.Order
	insertErr error
	updateErr error
}

func newStubOrderRepository(orders ...domain.Order) *stubOrderRepository {
	repo := &stubOrderRepository{orders: map[string]domain.Order{}}
	for _, order := range orders {
		repo.orders[order.ID] = order
	}
	return repo
}

func (r *stubOrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = order
	return nil
}

func (r *stubOrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, notFoundError(orderID)
	}
	return order, nil
}

func (r *stubOrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; !ok {
		return notFoundError(order.ID)
	}
	r.orders[order.ID] = order
	return nil
}

func (r *stubOrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []domain.Order
	for _, order := range r.orders {
		if filter.UserID != "" && order.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		if filter.PaymentStatus != "" && order.PaymentStatus != filter.PaymentStatus {
			continue
		}
		items = append(items, order)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return domain.CursorPage[domain.Order]{Items: items}, nil
}

type stubRatingRepository struct {
	ratings   []domain.Rating
	insertErr error
}

func (r *stubRatingRepository) Insert(ctx context.Context, rating domain.Rating) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	r.ratings = append(r.ratings, rating)
	return nil
}

func (r *stubRatingRepository) ListAll(ctx context.Context) ([]domain.Rating, error) {
	return append([]domain.Rating(nil), r.ratings...), nil
}

type statsIncrement struct {
	field repositories.StatsField
	delta int64
}

type stubStatsRepository struct {
	stats        domain.Stats
	increments   []statsIncrement
	averages     []float64
	incrementErr error
}

func (r *stubStatsRepository) Get(ctx context.Context) (domain.Stats, error) {
	return r.stats, nil
}

func (r *stubStatsRepository) Increment(ctx context.Context, field repositories.StatsField, delta int64, now time.Time) error {
	if r.incrementErr != nil {
		return r.incrementErr
	}
	r.increments = append(r.increments, statsIncrement{field: field, delta: delta})
	return nil
}

func (r *stubStatsRepository) SetAverageRating(ctx context.Context, average float64, now time.Time) error {
	r.averages = append(r.averages, average)
	return nil
}

func (r *stubStatsRepository) Put(ctx context.Context, stats domain.Stats) error {
	r.stats = stats
	return nil
}

type stubNotificationRepository struct {
	notifications []domain.Notification
	insertErr     error
	markReadErr   error
}

func (r *stubNotificationRepository) Insert(ctx context.Context, notification domain.Notification) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	r.notifications = append(r.notifications, notification)
	return nil
}

func (r *stubNotificationRepository) ListByUser(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Notification], error) {
	var items []domain.Notification
	for _, notification := range r.notifications {
		if notification.UserID == userID {
			items = append(items, notification)
		}
	}
	return domain.CursorPage[domain.Notification]{Items: items}, nil
}

func (r *stubNotificationRepository) MarkRead(ctx context.Context, notificationID, userID string, readAt time.Time) error {
	if r.markReadErr != nil {
		return r.markReadErr
	}
	for i, notification := range r.notifications {
		if notification.ID == notificationID && notification.UserID == userID {
			r.notifications[i].Read = true
			return nil
		}
	}
	return notFoundError(notificationID)
}

func (r *stubNotificationRepository) MarkAllRead(ctx context.Context, userID string, readAt time.Time) error {
	for i, notification := range r.notifications {
		if notification.UserID == userID {
			r.notifications[i].Read = true
		}
	}
	return nil
}

// passthroughUnitOfWork runs the function inline, matching the transaction
// seam without a Firestore backend.
type passthroughUnitOfWork struct {
	err error
}

func (u *passthroughUnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if u.err != nil {
		return u.err
	}
	return fn(ctx)
}

type capturedNotification struct {
	cmd NotifyCommand
}

type stubNotificationService struct {
	notifyErr error
	captured  []capturedNotification
}

func (s *stubNotificationService) Notify(ctx context.Context, cmd NotifyCommand) (Notification, error) {
	if s.notifyErr != nil {
		return Notification{}, s.notifyErr
	}
	s.captured = append(s.captured, capturedNotification{cmd: cmd})
	return Notification{ID: "ntf_test", UserID: cmd.UserID}, nil
}

func (s *stubNotificationService) ListForUser(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[Notification], error) {
	return domain.CursorPage[Notification]{}, nil
}

func (s *stubNotificationService) MarkRead(ctx context.Context, notificationID, userID string) error {
	return nil
}

func (s *stubNotificationService) MarkAllRead(ctx context.Context, userID string) error {
	return nil
}

type stubStatsService struct {
	projectsCompleted int
	clientsSatisfied  int
	activeUserDeltas  []int64
	err               error
}

func (s *stubStatsService) Get(ctx context.Context) (Stats, error) { return Stats{}, nil }

func (s *stubStatsService) IncrementProjectsCompleted(ctx context.Context) error {
	if s.err != nil {
		return s.err
	}
	s.projectsCompleted++
	return nil
}

func (s *stubStatsService) IncrementClientsSatisfied(ctx context.Context) error {
	if s.err != nil {
		return s.err
	}
	s.clientsSatisfied++
	return nil
}

func (s *stubStatsService) AdjustActiveUsers(ctx context.Context, delta int64) error {
	s.activeUserDeltas = append(s.activeUserDeltas, delta)
	return nil
}

func (s *stubStatsService) Overwrite(ctx context.Context, cmd OverwriteStatsCommand) (Stats, error) {
	return Stats{}, nil
}

type enqueuedDelivery struct {
	kind    jobs.DeliveryKind
	text    string
	caption string
	proof   string
	orderID string
}

type stubDeliveryService struct {
	enqueued []enqueuedDelivery
	relayed  []RelayCommand
}

func (s *stubDeliveryService) EnqueueMessage(ctx context.Context, text, orderID string) {
	s.enqueued = append(s.enqueued, enqueuedDelivery{kind: jobs.DeliveryKindMessage, text: text, orderID: orderID})
}

func (s *stubDeliveryService) EnqueuePhotoProof(ctx context.Context, proofObjectPath, caption, orderID string) {
	s.enqueued = append(s.enqueued, enqueuedDelivery{kind: jobs.DeliveryKindPhoto, proof: proofObjectPath, caption: caption, orderID: orderID})
}

func (s *stubDeliveryService) Relay(ctx context.Context, cmd RelayCommand) error {
	s.relayed = append(s.relayed, cmd)
	return nil
}

func (s *stubDeliveryService) Process(ctx context.Context, message jobs.DeliveryMessage) error {
	return nil
}

type stubProofStorage struct {
	saveErr  error
	saved    []string
	signed   []string
	signbase string
}

func (s *stubProofStorage) Save(ctx context.Context, orderID, dataURI string) (storage.StoredProof, error) {
	if s.saveErr != nil {
		return storage.StoredProof{}, s.saveErr
	}
	objectPath := fmt.Sprintf("payment-proofs/2025/06/%s/1.jpg", orderID)
	s.saved = append(s.saved, objectPath)
	return storage.StoredProof{ObjectPath: objectPath, MediaType: "image/jpeg", Size: 3}, nil
}

func (s *stubProofStorage) SignedURL(ctx context.Context, objectPath string) (string, error) {
	s.signed = append(s.signed, objectPath)
	return s.signbaseOr("https://storage.test/") + objectPath, nil
}

func (s *stubProofStorage) signbaseOr(fallback string) string {
	if s.signbase != "" {
		return s.signbase
	}
	return fallback
}

type stubProofReader struct {
	objects map[string][]byte
	readErr error
}

func (r *stubProofReader) Read(ctx context.Context, objectPath string) ([]byte, string, error) {
	if r.readErr != nil {
		return nil, "", r.readErr
	}
	data, ok := r.objects[objectPath]
	if !ok {
		return nil, "", fmt.Errorf("object %s not found", objectPath)
	}
	return data, "image/jpeg", nil
}

type publishedDelivery struct {
	message jobs.DeliveryMessage
}

type stubDeliveryPublisher struct {
	published  []publishedDelivery
	publishErr error
}

func (p *stubDeliveryPublisher) PublishDelivery(ctx context.Context, message jobs.DeliveryMessage) (string, error) {
	if p.publishErr != nil {
		return "", p.publishErr
	}
	p.published = append(p.published, publishedDelivery{message: message})
	return fmt.Sprintf("msg-%d", len(p.published)), nil
}

type sentTelegram struct {
	message *telegram.Message
	photo   *telegram.Photo
}

type stubTelegramSender struct {
	mu      sync.Mutex
	sent    []sentTelegram
	sendErr error
}

func (s *stubTelegramSender) SendMessage(ctx context.Context, msg telegram.Message) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentTelegram{message: &msg})
	return nil
}

func (s *stubTelegramSender) SendPhoto(ctx context.Context, photo telegram.Photo) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentTelegram{photo: &photo})
	return nil
}

type loggedEvent struct {
	event  string
	fields map[string]any
}

type captureLogger struct {
	mu     sync.Mutex
	events []loggedEvent
}

func (l *captureLogger) log(ctx context.Context, event string, fields map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, loggedEvent{event: event, fields: fields})
}

func (l *captureLogger) has(event string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, logged := range l.events {
		if logged.event == event {
			return true
		}
	}
	return false
}
