package repository

import (
	"context"
	"time"

	"SignalFlow/internal/domain/models"
)

// MarketDataProvider is the exchange-facing data source. Implementations return
// errs.TransientFetchError for retryable failures and errs.ValidationError for bad input.
type MarketDataProvider interface {
	GetExchangeInfo(ctx context.Context) (*models.ExchangeInfo, error)
	// GetLeverageBrackets returns brackets for one symbol, or all symbols when symbol is empty.
	GetLeverageBrackets(ctx context.Context, symbol string) (map[string][]models.LeverageBracket, error)
	Get24hTickers(ctx context.Context, symbols []string) (map[string]models.Ticker24h, error)
	GetKlines(ctx context.Context, symbol string, interval models.Interval, limit int) (models.Klines, error)
	GetTicker(ctx context.Context, symbol string) (models.PriceTicker, error)
}

// SignalStore is the table-oriented object store for signals and monitored signals.
type SignalStore interface {
	Init(ctx context.Context) error
	// InsertSignal writes a row, replacing any row with the same id.
	InsertSignal(ctx context.Context, rec models.SignalRecord) error
	DeleteSignal(ctx context.Context, id string) error
	ListSignals(ctx context.Context, f models.SignalFilter) ([]models.SignalRecord, error)
	DeleteSignalsBefore(ctx context.Context, statuses []models.SignalStatus, field models.TimeField, before time.Time) (int64, error)
	UpsertMonitored(ctx context.Context, m *models.MonitoredSignal) error
	ListMonitored(ctx context.Context, status models.MonitorStatus) ([]*models.MonitoredSignal, error)
	Close() error
}

// EvaluationLog is the append-only history of evaluations and decisions. Best effort.
type EvaluationLog interface {
	RecordEvaluation(ctx context.Context, c *models.Candidate, rec models.EvaluationRecord) error
	RecordDecision(ctx context.Context, c *models.Candidate) error
	Purge(ctx context.Context, before time.Time) error
	Close() error
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, ev models.SignalEvent) error
	Close() error
}

// Notifier delivers human-readable messages. Send is best effort.
type Notifier interface {
	Send(ctx context.Context, text string) error
	Name() string
}

// GuardStore persists the daily confirmed set so a restart keeps the day's state.
type GuardStore interface {
	LoadDaily(ctx context.Context, date string) ([]models.DailyKey, error)
	SaveDaily(ctx context.Context, date string, keys []models.DailyKey) error
	// LoadResetDate returns the trading day of the last executed reset, "" if unknown.
	LoadResetDate(ctx context.Context) (string, error)
	SaveResetDate(ctx context.Context, date string) error
}

type Metrics interface {
	RecordCacheRequest(cache string, hit bool)
	RecordScanPass(duration time.Duration, scanned, candidates int)
	RecordCandidate(class string)
	SetPending(n int)
	RecordDecision(outcome string)
	SetMonitored(status string, n int)
	RecordFetchError(op, kind string)
	RecordLatency(op string, seconds float64)
	RecordError(kind string)
}
