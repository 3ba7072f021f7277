package kafka

import (
	"github.com/segmentio/kafka-go"
)

// NewReader builds a consumer-group reader with manual commits. Callers
// fetch one message at a time and commit only after handling it, which gives
// at-least-once delivery with explicit acknowledgment.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}
