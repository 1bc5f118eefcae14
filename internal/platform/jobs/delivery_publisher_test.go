package jobs

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func TestPubSubDeliveryPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "telegram-deliveries")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubDeliveryPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubDeliveryPublisher: %v", err)
	}

	msg := DeliveryMessage{
		DeliveryID:      "dlv_01HX",
		Kind:            DeliveryKindPhoto,
		ChatID:          "-100200300",
		Caption:         "<b>Bukti Pembayaran</b>",
		ProofObjectPath: "payment-proofs/2024/03/ord_01HX/1.png",
		OrderID:         "ord_01HX",
	}
	if _, err := publisher.PublishDelivery(ctx, msg); err != nil {
		t.Fatalf("PublishDelivery: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload DeliveryMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.DeliveryID != msg.DeliveryID || payload.ProofObjectPath != msg.ProofObjectPath {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["kind"]; attr != "photo" {
		t.Fatalf("expected kind attribute, got %q", attr)
	}
	if attr := messages[0].Attributes["orderId"]; attr != "ord_01HX" {
		t.Fatalf("expected orderId attribute, got %q", attr)
	}
}
