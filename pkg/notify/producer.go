// Package notify publishes the side-channel signal for conversation
// messages whose recipient has no live connection. The signal is
// best-effort and at-most-once: a delivery failure is logged by the caller
// and never retried. Payloads carry the conversation address only, never
// message content.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Notification is the published payload.
type Notification struct {
	RecipientID    string    `json:"recipient_id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	SentAt         time.Time `json:"sent_at"`
}

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// NotifyOffline publishes one notification keyed by recipient so a
// downstream consumer can partition per user.
func (p *Producer) NotifyOffline(ctx context.Context, recipientID, conversationID, senderID string) error {
	payload, err := json.Marshal(Notification{
		RecipientID:    recipientID,
		ConversationID: conversationID,
		SenderID:       senderID,
		SentAt:         time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(recipientID),
		Value: payload,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
