// Package events публикует доменные события заказов и рассрочек в Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Типы событий.
const (
	TypeOrderCompleted       = "order.completed"
	TypeInstallmentCreated   = "installment.created"
	TypeInstallmentPayment   = "installment.payment_recorded"
	TypeInstallmentCancelled = "installment.cancelled"
	TypeInstallmentCompleted = "installment.completed"
	TypeInstallmentOverdue   = "installment.overdue"
)

// Event — доменное событие. Key определяет партицию (идентификатор владельца магазина).
type Event struct {
	Type       string    `json:"type"`
	Key        string    `json:"-"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

// MessageWriter — часть kafka.Writer, используемая издателем.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher публикует события в один топик.
type KafkaPublisher struct {
	writer MessageWriter
}

// NewKafkaPublisher создаёт издателя для брокеров и топика.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return NewPublisherWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	})
}

// NewPublisherWithWriter создаёт издателя поверх готового writer.
func NewPublisherWithWriter(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

// Publish сериализует события в JSON и отправляет их одним пакетом.
func (p *KafkaPublisher) Publish(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		if e.OccurredAt.IsZero() {
			e.OccurredAt = time.Now()
		}
		value, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", e.Type, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(e.Key),
			Value: value,
			Time:  e.OccurredAt,
			Headers: []kafka.Header{
				{Key: "type", Value: []byte(e.Type)},
			},
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write messages: %w", err)
	}
	return nil
}

// Close закрывает writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
