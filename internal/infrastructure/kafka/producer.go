package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

type Producer interface {
	Send(ctx context.Context, key string, payload any) error
	Close() error
}

// QueueProducer writes durable messages to a single topic. Writes are
// synchronous so the caller knows the message reached the broker before it
// returns a response.
type QueueProducer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *QueueProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return &QueueProducer{writer: writer}
}

func (p *QueueProducer) Send(ctx context.Context, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		slog.Error("failed to send Kafka message", "topic", p.writer.Topic, "key", key, "error", err)
		return fmt.Errorf("failed to send message: %w", err)
	}
	slog.Info("Kafka message sent", "topic", p.writer.Topic, "key", key)
	return nil
}

func (p *QueueProducer) Close() error {
	if err := p.writer.Close(); err != nil {
		slog.Error("failed to close Kafka writer", "error", err)
		return err
	}
	return nil
}
