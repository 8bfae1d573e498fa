package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/apexflow/api/internal/domain"
	"github.com/apexflow/api/internal/services"
)

func newTestPublisher(t *testing.T) (*PubSubEventPublisher, *pstest.Server) {
	t.Helper()
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	orders, err := client.CreateTopic(ctx, "order-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	ledger, err := client.CreateTopic(ctx, "ledger-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	stock, err := client.CreateTopic(ctx, "stock-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubEventPublisher(orders, ledger, stock)
	if err != nil {
		t.Fatalf("NewPubSubEventPublisher: %v", err)
	}
	return publisher, srv
}

func TestPublishOrderEvent(t *testing.T) {
	publisher, srv := newTestPublisher(t)
	ctx := context.Background()

	msg := services.OrderEventMessage{
		EventType:  "order.progressed",
		OrderID:    "ord_01TEST",
		Status:     domain.OrderStatusPacked,
		CustomerID: "cus_01TEST",
		ActorID:    "staff_1",
		OccurredAt: time.Date(2025, time.July, 1, 8, 0, 0, 0, time.UTC),
	}

	if _, err := publisher.PublishOrderEvent(ctx, msg); err != nil {
		t.Fatalf("PublishOrderEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.OrderEventMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.OrderID != msg.OrderID || payload.Status != msg.Status {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["eventType"]; attr != "order.progressed" {
		t.Fatalf("expected eventType attribute, got %q", attr)
	}
}

func TestPublishLedgerEvent(t *testing.T) {
	publisher, srv := newTestPublisher(t)
	ctx := context.Background()

	msg := services.LedgerEventMessage{
		EventType:  "ledger.payment_recorded",
		EntryID:    "pay_01TEST",
		CustomerID: "cus_01TEST",
		Amount:     1250,
		Status:     domain.OrderStatusPayment,
		OccurredAt: time.Date(2025, time.July, 1, 8, 0, 0, 0, time.UTC),
	}

	if _, err := publisher.PublishLedgerEvent(ctx, msg); err != nil {
		t.Fatalf("PublishLedgerEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if attr := messages[0].Attributes["entryId"]; attr != "pay_01TEST" {
		t.Fatalf("expected entryId attribute, got %q", attr)
	}
}

func TestPublishStockEvent(t *testing.T) {
	publisher, srv := newTestPublisher(t)
	ctx := context.Background()

	msg := services.StockEventMessage{
		EventType: "stock.removed",
		OrderID:   "ord_01GR",
		Brand:     "Acme",
		Model:     "A1",
		Quality:   "premium",
		Category:  "glass",
		Qty:       3,
	}

	if _, err := publisher.PublishStockEvent(ctx, msg); err != nil {
		t.Fatalf("PublishStockEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if attr := messages[0].Attributes["brand"]; attr != "Acme" {
		t.Fatalf("expected brand attribute, got %q", attr)
	}
}
