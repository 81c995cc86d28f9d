package notify

import (
	"context"

	"SignalFlow/internal/domain/repository"
	"SignalFlow/pkg/logger"
)

// Log writes notifications to the structured log. Used when no chat backend is configured.
type Log struct {
	log *logger.Logger
}

var _ repository.Notifier = (*Log)(nil)

func NewLog(l *logger.Logger) *Log {
	return &Log{log: l.Component("notify")}
}

func (n *Log) Name() string { return "log" }

func (n *Log) Send(ctx context.Context, text string) error {
	n.log.Info("notification", logger.String("text", text))
	return nil
}
