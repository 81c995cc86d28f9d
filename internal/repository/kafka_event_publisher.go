package repository

import (
	"context"

	"github.com/google/uuid"

	"SignalFlow/internal/domain/models"
	"SignalFlow/internal/domain/repository"
	pkgkafka "SignalFlow/pkg/kafka"
	"SignalFlow/pkg/logger"
)

// KafkaEventPublisher publishes signal events keyed by symbol so one symbol's
// lifecycle stays on one partition. It also ships aggregated logs.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

var (
	_ repository.EventPublisher = (*KafkaEventPublisher)(nil)
	_ logger.Publisher          = (*KafkaEventPublisher)(nil)
)

func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) PublishEvent(ctx context.Context, ev models.SignalEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	key := ev.Symbol
	if key == "" {
		key = string(ev.Kind)
	}
	return p.producer.Publish(ctx, p.topic, []byte(key), ev,
		pkgkafka.Header{Key: pkgkafka.EventIDHeader, Value: ev.ID},
		pkgkafka.Header{Key: "kind", Value: string(ev.Kind)})
}

// PublishMessage implements logger.Publisher for the log collector.
func (p *KafkaEventPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
