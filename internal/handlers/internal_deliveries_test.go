package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kograph/api/internal/platform/jobs"
	"github.com/kograph/api/internal/services"
)

func internalRouter(service services.DeliveryService) http.Handler {
	handler := NewInternalHandlers(service)
	return NewRouter(WithInternalRoutes(handler.Routes))
}

func pushBody(t *testing.T, message jobs.DeliveryMessage) *bytes.Buffer {
	t.Helper()
	data, err := json.Marshal(message)
	if err != nil {
		t.Fatalf("marshal delivery: %v", err)
	}
	envelope := map[string]any{
		"message": map[string]any{
			"data":      base64.StdEncoding.EncodeToString(data),
			"messageId": "123",
		},
		"subscription": "projects/p/subscriptions/telegram-deliveries",
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return bytes.NewBuffer(body)
}

func TestInternalHandlersProcessDelivery(t *testing.T) {
	var captured jobs.DeliveryMessage
	service := &stubDeliveryService{
		processFunc: func(ctx context.Context, message jobs.DeliveryMessage) error {
			captured = message
			return nil
		},
	}

	message := jobs.DeliveryMessage{
		DeliveryID: "dlv_1",
		Kind:       jobs.DeliveryKindMessage,
		ChatID:     "-100123",
		Text:       "🔔 ORDER BARU",
		OrderID:    "ord_1",
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/deliveries", pushBody(t, message))
	resp := httptest.NewRecorder()

	internalRouter(service).ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.DeliveryID != "dlv_1" || captured.Kind != jobs.DeliveryKindMessage || captured.Text != "🔔 ORDER BARU" {
		t.Fatalf("unexpected message %+v", captured)
	}
}

func TestInternalHandlersRejectsMalformedEnvelope(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/deliveries", strings.NewReader(`{broken`))
	resp := httptest.NewRecorder()

	internalRouter(&stubDeliveryService{}).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestInternalHandlersRejectsEmptyData(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/deliveries", strings.NewReader(`{"message":{"messageId":"1"}}`))
	resp := httptest.NewRecorder()

	internalRouter(&stubDeliveryService{}).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestInternalHandlersPermanentFailureIsNotRetried(t *testing.T) {
	service := &stubDeliveryService{
		processFunc: func(ctx context.Context, message jobs.DeliveryMessage) error {
			return fmt.Errorf("%w: carrier-pigeon", services.ErrDeliveryInvalidInput)
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/deliveries", pushBody(t, jobs.DeliveryMessage{Kind: "carrier-pigeon"}))
	resp := httptest.NewRecorder()

	internalRouter(service).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 so the message is acked, got %d", resp.Code)
	}
}

func TestInternalHandlersTransientFailureIsRetried(t *testing.T) {
	service := &stubDeliveryService{
		processFunc: func(ctx context.Context, message jobs.DeliveryMessage) error {
			return fmt.Errorf("telegram: dial timeout")
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/deliveries", pushBody(t, jobs.DeliveryMessage{Kind: jobs.DeliveryKindMessage, Text: "x", ChatID: "-1"}))
	resp := httptest.NewRecorder()

	internalRouter(service).ServeHTTP(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503 so the message is redelivered, got %d", resp.Code)
	}
}
