package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kograph/api/internal/platform/jobs"
	"github.com/kograph/api/internal/platform/storage"
	"github.com/kograph/api/internal/platform/telegram"
)

const (
	deliveryIDPrefix      = "dlv_"
	defaultDirectTimeout  = 30 * time.Second
	defaultProofFileName  = "payment-proof.jpg"
	deliveryEventQueued      = "delivery.queued"
	deliveryEventSent        = "delivery.sent"
	deliveryEventFailed      = "delivery.failed"
	deliveryEventRelayed     = "delivery.relayed"
	deliveryEventUnknownKind = "delivery.unknown_kind"
)

var (
	// ErrDeliveryInvalidInput signals a malformed relay or delivery payload.
	ErrDeliveryInvalidInput = errors.New("delivery: invalid input")
	// ErrDeliveryNotConfigured indicates no chat target is available.
	ErrDeliveryNotConfigured = errors.New("delivery: chat not configured")
)

// ProofReader loads stored payment proof objects for photo deliveries.
type ProofReader interface {
	Read(ctx context.Context, objectPath string) ([]byte, string, error)
}

// DeliveryServiceDeps bundles collaborators required to construct the delivery service.
type DeliveryServiceDeps struct {
	// Publisher enqueues deliveries on the Pub/Sub pipeline. When nil the
	// service degrades to direct asynchronous sends.
	Publisher   DeliveryPublisher
	Sender      telegram.Sender
	Proofs      ProofReader
	ChatID      string
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type deliveryService struct {
	publisher DeliveryPublisher
	sender    telegram.Sender
	proofs    ProofReader
	chatID    string
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

var _ DeliveryService = (*deliveryService)(nil)

// NewDeliveryService wires dependencies into a DeliveryService implementation.
func NewDeliveryService(deps DeliveryServiceDeps) (DeliveryService, error) {
	if deps.Sender == nil {
		return nil, errors.New("delivery service: telegram sender is required")
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return deliveryIDPrefix + ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &deliveryService{
		publisher: deps.Publisher,
		sender:    deps.Sender,
		proofs:    deps.Proofs,
		chatID:    strings.TrimSpace(deps.ChatID),
		newID:     idGen,
		logger:    logger,
	}, nil
}

// EnqueueMessage queues a text delivery. Failures are logged, never returned:
// outbound messaging must not fail the caller's write.
func (s *deliveryService) EnqueueMessage(ctx context.Context, text, orderID string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	s.dispatch(ctx, jobs.DeliveryMessage{
		DeliveryID: s.newID(),
		Kind:       jobs.DeliveryKindMessage,
		ChatID:     s.chatID,
		Text:       text,
		OrderID:    orderID,
	})
}

// EnqueuePhotoProof queues a photo delivery referencing a stored proof object.
func (s *deliveryService) EnqueuePhotoProof(ctx context.Context, proofObjectPath, caption, orderID string) {
	if strings.TrimSpace(proofObjectPath) == "" {
		s.EnqueueMessage(ctx, caption, orderID)
		return
	}
	s.dispatch(ctx, jobs.DeliveryMessage{
		DeliveryID:      s.newID(),
		Kind:            jobs.DeliveryKindPhoto,
		ChatID:          s.chatID,
		Caption:         caption,
		ProofObjectPath: proofObjectPath,
		OrderID:         orderID,
	})
}

func (s *deliveryService) dispatch(ctx context.Context, message jobs.DeliveryMessage) {
	if s.publisher != nil {
		if _, err := s.publisher.PublishDelivery(ctx, message); err != nil {
			s.logger(ctx, deliveryEventFailed, map[string]any{
				"deliveryId": message.DeliveryID,
				"kind":       string(message.Kind),
				"orderId":    message.OrderID,
				"error":      err.Error(),
			})
			return
		}
		s.logger(ctx, deliveryEventQueued, map[string]any{
			"deliveryId": message.DeliveryID,
			"kind":       string(message.Kind),
			"orderId":    message.OrderID,
		})
		return
	}

	// No pipeline configured: send off the request path with a detached
	// context so the HTTP response does not wait on Telegram.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultDirectTimeout)
	go func() {
		defer cancel()
		if err := s.Process(sendCtx, message); err != nil {
			s.logger(sendCtx, deliveryEventFailed, map[string]any{
				"deliveryId": message.DeliveryID,
				"kind":       string(message.Kind),
				"orderId":    message.OrderID,
				"error":      err.Error(),
			})
		}
	}()
}

// Process executes a delivery, either dequeued from the pipeline or handed
// over directly. Errors bubble up so the push consumer can trigger a retry.
func (s *deliveryService) Process(ctx context.Context, message jobs.DeliveryMessage) error {
	chatID := strings.TrimSpace(message.ChatID)
	if chatID == "" {
		chatID = s.chatID
	}
	if chatID == "" {
		return ErrDeliveryNotConfigured
	}

	switch message.Kind {
	case jobs.DeliveryKindMessage:
		if strings.TrimSpace(message.Text) == "" {
			return fmt.Errorf("%w: message text is empty", ErrDeliveryInvalidInput)
		}
		if err := s.sender.SendMessage(ctx, telegram.Message{ChatID: chatID, Text: message.Text}); err != nil {
			return err
		}
	case jobs.DeliveryKindPhoto:
		if s.proofs == nil {
			return fmt.Errorf("%w: proof storage not configured", ErrDeliveryInvalidInput)
		}
		data, _, err := s.proofs.Read(ctx, message.ProofObjectPath)
		if err != nil {
			return fmt.Errorf("delivery: load proof %s: %w", message.ProofObjectPath, err)
		}
		if err := s.sender.SendPhoto(ctx, telegram.Photo{
			ChatID:   chatID,
			Caption:  message.Caption,
			FileName: proofFileName(message.ProofObjectPath),
			Data:     data,
		}); err != nil {
			return err
		}
	default:
		s.logger(ctx, deliveryEventUnknownKind, map[string]any{
			"deliveryId": message.DeliveryID,
			"kind":       string(message.Kind),
		})
		return fmt.Errorf("%w: unknown delivery kind %q", ErrDeliveryInvalidInput, message.Kind)
	}

	s.logger(ctx, deliveryEventSent, map[string]any{
		"deliveryId": message.DeliveryID,
		"kind":       string(message.Kind),
		"orderId":    message.OrderID,
	})
	return nil
}

// Relay forwards an admin-composed message or photo synchronously, mirroring
// the storefront's passthrough endpoint.
func (s *deliveryService) Relay(ctx context.Context, cmd RelayCommand) error {
	if s.chatID == "" {
		return ErrDeliveryNotConfigured
	}

	if strings.TrimSpace(cmd.Photo) != "" && strings.TrimSpace(cmd.Caption) != "" {
		_, data, err := storage.DecodeDataURI(cmd.Photo)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDeliveryInvalidInput, err)
		}
		if err := s.sender.SendPhoto(ctx, telegram.Photo{
			ChatID:   s.chatID,
			Caption:  cmd.Caption,
			FileName: defaultProofFileName,
			Data:     data,
		}); err != nil {
			return err
		}
		s.logger(ctx, deliveryEventRelayed, map[string]any{"kind": string(jobs.DeliveryKindPhoto)})
		return nil
	}

	if strings.TrimSpace(cmd.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrDeliveryInvalidInput)
	}
	if err := s.sender.SendMessage(ctx, telegram.Message{ChatID: s.chatID, Text: cmd.Message}); err != nil {
		return err
	}
	s.logger(ctx, deliveryEventRelayed, map[string]any{"kind": string(jobs.DeliveryKindMessage)})
	return nil
}

func proofFileName(objectPath string) string {
	name := path.Base(objectPath)
	if name == "" || name == "." || name == "/" {
		return defaultProofFileName
	}
	return name
}
