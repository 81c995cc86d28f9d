package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"SignalFlow/internal/domain/models"
	"SignalFlow/internal/domain/repository"
	"SignalFlow/pkg/logger"
)

const (
	defaultEventQueue = 256
	defaultSendLimit  = 10 * time.Second
)

// FeedBroadcaster pushes events to live subscribers without blocking.
type FeedBroadcaster interface {
	Broadcast(ev models.SignalEvent)
}

type DispatcherConfig struct {
	QueueSize   int
	SendTimeout time.Duration
	// NotifyViaBus leaves notification to the bus consumer.
	NotifyViaBus bool
}

// EventDispatcher fans lifecycle events out to the bus, the live feed and the notifier.
type EventDispatcher struct {
	publisher repository.EventPublisher
	feed      FeedBroadcaster
	notifier  repository.Notifier
	cfg       DispatcherConfig
	queue     chan models.SignalEvent
	metrics   repository.Metrics
	log       *logger.Logger
}

// NewEventDispatcher accepts a nil publisher or feed when those outputs are disabled.
func NewEventDispatcher(publisher repository.EventPublisher, feed FeedBroadcaster, notifier repository.Notifier,
	cfg DispatcherConfig, metrics repository.Metrics, log *logger.Logger) *EventDispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultEventQueue
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendLimit
	}
	return &EventDispatcher{
		publisher: publisher,
		feed:      feed,
		notifier:  notifier,
		cfg:       cfg,
		queue:     make(chan models.SignalEvent, cfg.QueueSize),
		metrics:   metrics,
		log:       log.Component("events"),
	}
}

// Dispatch never blocks. The feed gets the event at once; bus and notifier work is
// queued and dropped with a warning on overflow.
func (d *EventDispatcher) Dispatch(ev models.SignalEvent) {
	if d.feed != nil {
		d.feed.Broadcast(ev)
	}
	select {
	case d.queue <- ev:
	default:
		d.metrics.RecordError("event_queue_full")
		d.log.Warn("event queue full, dropping event",
			logger.String("kind", string(ev.Kind)), logger.String("symbol", ev.Symbol))
	}
}

// Run drains the queue until ctx is done.
func (d *EventDispatcher) Run(ctx context.Context) {
	d.log.Info("event dispatcher started")
	defer d.log.Info("event dispatcher stopped")
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.queue:
			d.deliver(ctx, ev)
		}
	}
}

func (d *EventDispatcher) deliver(ctx context.Context, ev models.SignalEvent) {
	if d.publisher != nil {
		pctx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
		if err := d.publisher.PublishEvent(pctx, ev); err != nil {
			d.log.Warn("event publish failed", logger.String("kind", string(ev.Kind)), logger.Error(err))
		}
		cancel()
	}
	if d.cfg.NotifyViaBus || d.notifier == nil || !Notifiable(ev.Kind) {
		return
	}
	nctx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()
	if err := d.notifier.Send(nctx, FormatEvent(ev)); err != nil {
		d.log.Warn("notification failed",
			logger.String("notifier", d.notifier.Name()), logger.String("kind", string(ev.Kind)), logger.Error(err))
	}
}

// Notifiable reports whether an event kind is worth a human message.
func Notifiable(kind models.EventKind) bool {
	switch kind {
	case models.EventConfirmed, models.EventMonitorCompleted, models.EventMonitorExpired, models.EventDailyReset:
		return true
	default:
		return false
	}
}

// FormatEvent renders an event as a short plain-text message.
func FormatEvent(ev models.SignalEvent) string {
	var b strings.Builder
	switch ev.Kind {
	case models.EventConfirmed:
		fmt.Fprintf(&b, "CONFIRMED %s %s\n", ev.Symbol, ev.Direction)
		fmt.Fprintf(&b, "Entry: %s  Target: %s\n", formatPrice(ev.EntryPrice), formatPrice(ev.TargetPrice))
		fmt.Fprintf(&b, "Quality: %.1f (%s)", ev.Quality, ev.Class)
		if len(ev.Reasons) > 0 {
			fmt.Fprintf(&b, "\nReasons: %s", strings.Join(ev.Reasons, ", "))
		}
	case models.EventMonitorCompleted:
		fmt.Fprintf(&b, "TARGET REACHED %s %s\nMax profit: %.1f%%  Sim value: %.2f",
			ev.Symbol, ev.Direction, ev.Profit, ev.SimValue)
	case models.EventMonitorExpired:
		fmt.Fprintf(&b, "MONITORING EXPIRED %s %s\nMax profit: %.1f%%  Sim value: %.2f",
			ev.Symbol, ev.Direction, ev.Profit, ev.SimValue)
	case models.EventDailyReset:
		fmt.Fprintf(&b, "Daily reset: %d confirmations cleared", ev.Count)
	default:
		fmt.Fprintf(&b, "%s %s %s", strings.ToUpper(string(ev.Kind)), ev.Symbol, ev.Direction)
		if len(ev.Reasons) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(ev.Reasons, ", "))
		}
	}
	return b.String()
}

func formatPrice(p float64) string {
	switch {
	case p >= 100:
		return fmt.Sprintf("%.2f", p)
	case p >= 1:
		return fmt.Sprintf("%.4f", p)
	default:
		return fmt.Sprintf("%.8f", p)
	}
}
