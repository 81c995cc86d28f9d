package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"SignalFlow/internal/domain/models"
	"SignalFlow/internal/domain/repository"
	pkgkafka "SignalFlow/pkg/kafka"
	"SignalFlow/pkg/logger"
)

// NotifyEventsHandler consumes signal events from the bus and forwards them to the notifier.
type NotifyEventsHandler struct {
	topic    string
	notifier repository.Notifier
	log      *logger.Logger
}

func NewNotifyEventsHandler(topic string, notifier repository.Notifier, log *logger.Logger) *NotifyEventsHandler {
	return &NotifyEventsHandler{topic: topic, notifier: notifier, log: log.Component("notify_consumer")}
}

func (h *NotifyEventsHandler) Topic() string { return h.topic }

func (h *NotifyEventsHandler) Handle(ctx context.Context, data []byte) error {
	var ev models.SignalEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		h.log.Warn("discarding malformed event", logger.Error(err))
		return nil
	}
	if !Notifiable(ev.Kind) {
		return nil
	}
	if err := h.notifier.Send(ctx, FormatEvent(ev)); err != nil {
		return fmt.Errorf("notify %s: %w", ev.Kind, err)
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*NotifyEventsHandler)(nil)
