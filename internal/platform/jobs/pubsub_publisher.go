package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/apexflow/api/internal/services"
)

// PubSubEventPublisher publishes pipeline domain events to Pub/Sub topics.
type PubSubEventPublisher struct {
	orders  *pubsub.Topic
	ledger  *pubsub.Topic
	stock   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubEventPublisher constructs a Pub/Sub backed event publisher. Each
// event family goes to its own topic.
func NewPubSubEventPublisher(orders, ledger, stock *pubsub.Topic) (*PubSubEventPublisher, error) {
	if orders == nil || ledger == nil || stock == nil {
		return nil, errors.New("pubsub event publisher: all topics are required")
	}
	return &PubSubEventPublisher{
		orders:  orders,
		ledger:  ledger,
		stock:   stock,
		marshal: json.Marshal,
	}, nil
}

// PublishOrderEvent enqueues an order lifecycle event.
func (p *PubSubEventPublisher) PublishOrderEvent(ctx context.Context, message services.OrderEventMessage) (string, error) {
	if p == nil || p.orders == nil {
		return "", errors.New("pubsub event publisher: not initialised")
	}

	attrs := make(map[string]string)
	setAttr(attrs, "eventType", message.EventType)
	setAttr(attrs, "orderId", message.OrderID)
	setAttr(attrs, "status", string(message.Status))
	setAttr(attrs, "customerId", message.CustomerID)

	return p.publish(ctx, p.orders, message, attrs, "order event")
}

// PublishLedgerEvent enqueues a ledger mutation event.
func (p *PubSubEventPublisher) PublishLedgerEvent(ctx context.Context, message services.LedgerEventMessage) (string, error) {
	if p == nil || p.ledger == nil {
		return "", errors.New("pubsub event publisher: not initialised")
	}

	attrs := make(map[string]string)
	setAttr(attrs, "eventType", message.EventType)
	setAttr(attrs, "entryId", message.EntryID)
	setAttr(attrs, "customerId", message.CustomerID)

	return p.publish(ctx, p.ledger, message, attrs, "ledger event")
}

// PublishStockEvent enqueues a stock-room mutation event.
func (p *PubSubEventPublisher) PublishStockEvent(ctx context.Context, message services.StockEventMessage) (string, error) {
	if p == nil || p.stock == nil {
		return "", errors.New("pubsub event publisher: not initialised")
	}

	attrs := make(map[string]string)
	setAttr(attrs, "eventType", message.EventType)
	setAttr(attrs, "orderId", message.OrderID)
	setAttr(attrs, "brand", message.Brand)
	setAttr(attrs, "model", message.Model)

	return p.publish(ctx, p.stock, message, attrs, "stock event")
}

func (p *PubSubEventPublisher) publish(ctx context.Context, topic *pubsub.Topic, message any, attrs map[string]string, kind string) (string, error) {
	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", kind, err)
	}

	result := topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish %s: %w", kind, err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
