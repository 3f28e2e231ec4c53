package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bakehouse/cart-service/internal/config"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type EventType string

const (
	EventCartCreated     EventType = "cart.created"
	EventCartItemAdded   EventType = "cart.item_added"
	EventCartItemUpdated EventType = "cart.item_updated"
	EventCartItemRemoved EventType = "cart.item_removed"
	EventCartMerged      EventType = "cart.merged"
	EventCartSaved       EventType = "cart.saved"
	EventCartReactivated EventType = "cart.reactivated"
	EventCartConverted   EventType = "cart.converted"
	EventCartAbandoned   EventType = "cart.abandoned"
	EventCartExpired     EventType = "cart.expired"
)

// CartEvent is the lifecycle notification published for downstream consumers
// (analytics, notifications). Messages are keyed by cart id so per-cart
// ordering is preserved within a partition.
type CartEvent struct {
	Type        EventType  `json:"type"`
	CartID      uuid.UUID  `json:"cart_id"`
	UserID      *uuid.UUID `json:"user_id,omitempty"`
	SessionID   string     `json:"session_id,omitempty"`
	ProductID   *uuid.UUID `json:"product_id,omitempty"`
	OrderID     *uuid.UUID `json:"order_id,omitempty"`
	ItemCount   int        `json:"item_count"`
	TotalAmount float64    `json:"total_amount"`
	OccurredAt  time.Time  `json:"occurred_at"`
}

type Producer interface {
	Publish(ctx context.Context, event CartEvent) error
	Close() error
}

type kafkaProducer struct {
	writer *kafka.Writer
}

// NewProducer returns a no-op producer when Kafka is disabled so callers
// never have to branch on configuration.
func NewProducer(cfg *config.Kafka) Producer {
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		return &noopProducer{}
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}

	return &kafkaProducer{writer: writer}
}

func (p *kafkaProducer) Publish(ctx context.Context, event CartEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal cart event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.CartID.String()),
		Value: data,
		Time:  event.OccurredAt,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write cart event: %w", err)
	}

	return nil
}

func (p *kafkaProducer) Close() error {
	return p.writer.Close()
}

type noopProducer struct{}

func (p *noopProducer) Publish(ctx context.Context, event CartEvent) error {
	return nil
}

func (p *noopProducer) Close() error {
	return nil
}
