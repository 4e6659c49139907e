package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/palm-beach-pass/pass-api/internal/domain"
	"github.com/palm-beach-pass/pass-api/internal/ports/out/clock"
	"github.com/palm-beach-pass/pass-api/internal/ports/out/notifier"
)

type Config struct {
	Brokers []string
	Topic   string
}

// messageWriter is the subset of *kafka.Writer the notifier uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Notifier publishes page-context messages to a Kafka topic keyed by client id, so every
// message for one client lands on the same partition in order.
type Notifier struct {
	writer messageWriter
	topic  string
	clk    clock.Clock
}

// envelope is the record value written to the topic.
type envelope struct {
	Client string `json:"client"`
	Type   string `json:"type"`
	Data   any    `json:"data,omitempty"`
	SentAt int64  `json:"sentAt"`
}

func NewNotifier(cfg Config, clk clock.Clock) *Notifier {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		MaxAttempts:            5,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
		Async:                  false,
		AllowAutoTopicCreation: true,
	}
	return &Notifier{writer: w, topic: cfg.Topic, clk: clk}
}

func (n *Notifier) Notify(ctx context.Context, client domain.ClientID, msg notifier.Message) error {
	value, err := json.Marshal(envelope{
		Client: string(client),
		Type:   msg.Type,
		Data:   msg.Data,
		SentAt: n.clk.Now().UTC().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(client),
		Value: value,
	}); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

func (n *Notifier) Topic() string { return n.topic }

func (n *Notifier) Close() error {
	return n.writer.Close()
}
