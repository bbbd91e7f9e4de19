package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/lauraabreulima/ecochat/internal/relay"
)

// KafkaSink publishes archived messages to a topic consumed by the history
// pipeline. Messages are keyed by sender so per-sender order survives
// partitioning.
type KafkaSink struct {
	writer *kafka.Writer
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

type kafkaMessage struct {
	Kind relay.MessageKind `json:"kind"`
	*relay.Envelope
}

func (s *KafkaSink) Archive(ctx context.Context, msg *ArchivedMessage) error {
	value, err := json.Marshal(&kafkaMessage{Kind: msg.Kind, Envelope: msg.Envelope})
	if err != nil {
		return fmt.Errorf("marshal archive message: %w", err)
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Envelope.SenderID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("publish archive message: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
