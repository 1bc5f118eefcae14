package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"
)

// DeliveryKind distinguishes the two Telegram delivery shapes.
type DeliveryKind string

const (
	// DeliveryKindMessage is a plain HTML text message.
	DeliveryKindMessage DeliveryKind = "message"
	// DeliveryKindPhoto is a photo upload sourced from the proof bucket.
	DeliveryKindPhoto DeliveryKind = "photo"
)

// DeliveryMessage is the envelope carried through the delivery topic. Photo
// deliveries reference the stored proof object rather than embedding bytes.
type DeliveryMessage struct {
	DeliveryID      string       `json:"deliveryId"`
	Kind            DeliveryKind `json:"kind"`
	ChatID          string       `json:"chatId"`
	Text            string       `json:"text,omitempty"`
	Caption         string       `json:"caption,omitempty"`
	ProofObjectPath string       `json:"proofObjectPath,omitempty"`
	OrderID         string       `json:"orderId,omitempty"`
}

// PubSubDeliveryPublisher publishes outbound Telegram deliveries to a topic.
type PubSubDeliveryPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubDeliveryPublisher constructs a Pub/Sub backed delivery publisher.
func NewPubSubDeliveryPublisher(topic *pubsub.Topic) (*PubSubDeliveryPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub delivery publisher: topic is required")
	}
	return &PubSubDeliveryPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishDelivery enqueues a delivery on the configured topic and returns the
// Pub/Sub message id.
func (p *PubSubDeliveryPublisher) PublishDelivery(ctx context.Context, message DeliveryMessage) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub delivery publisher: not initialised")
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal delivery: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "deliveryId", message.DeliveryID)
	setAttr(attrs, "kind", string(message.Kind))
	setAttr(attrs, "orderId", message.OrderID)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish delivery: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
