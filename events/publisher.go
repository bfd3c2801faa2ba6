package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"mindcare-chatbot-backend/config"
	"mindcare-chatbot-backend/logger"
	"mindcare-chatbot-backend/models"
)

const EventTypeChatTurn = "chat.turn"

// Publisher emits one event per processed chat turn.
type Publisher interface {
	PublishTurn(ctx context.Context, event models.TurnEvent) error
	Close() error
}

// New returns a Kafka publisher when brokers are configured and a no-op
// publisher otherwise.
func New(cfg config.KafkaConfig) Publisher {
	if len(cfg.Brokers) == 0 {
		logger.Log.Info("No Kafka brokers configured, turn events disabled")
		return NoopPublisher{}
	}
	return NewKafkaPublisher(cfg.Brokers, cfg.Topic)
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
	}

	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) PublishTurn(ctx context.Context, event models.TurnEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	message, err := turnMessage(event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"event_id":   event.ID,
			"session_id": event.SessionID,
		}).Error("Failed to publish turn event")
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"event_id": event.ID,
		"kind":     event.Kind,
		"topic":    p.writer.Topic,
	}).Debug("Turn event published")

	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// turnMessage keys by session so a session's turns stay ordered on one partition.
func turnMessage(event models.TurnEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	return kafka.Message{
		Key:   []byte(event.SessionID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(EventTypeChatTurn)},
			{Key: "source", Value: []byte(event.Channel)},
		},
	}, nil
}

type NoopPublisher struct{}

func (NoopPublisher) PublishTurn(context.Context, models.TurnEvent) error { return nil }

func (NoopPublisher) Close() error { return nil }
