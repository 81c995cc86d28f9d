package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"SignalFlow/internal/domain/models"
	"SignalFlow/internal/domain/repository"
	pkgch "SignalFlow/pkg/clickhouse"
	applogger "SignalFlow/pkg/logger"
)

// EvaluationSchema creates the history tables. Safe to run on every start.
func EvaluationSchema(database string) []string {
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.signal_evaluations (
			ts            DateTime64(3, 'UTC'),
			signal_id     String,
			symbol        LowCardinality(String),
			direction     LowCardinality(String),
			attempt       UInt16,
			action        LowCardinality(String),
			confirmations UInt8,
			rejections    UInt8,
			last_close    Float64,
			volume_ratio  Float64,
			leader_trend  LowCardinality(String),
			predicates    String,
			fetch_error   String
		) ENGINE = MergeTree
		ORDER BY (symbol, ts)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.signal_decisions (
			ts              DateTime64(3, 'UTC'),
			signal_id       String,
			symbol          LowCardinality(String),
			direction       LowCardinality(String),
			outcome         LowCardinality(String),
			reasons         Array(String),
			attempts        UInt16,
			confirmations   UInt8,
			rejections      UInt8,
			price_move_pct  Float64,
			processing_ms   Int64,
			quality_score   Float64,
			quality_class   LowCardinality(String),
			lesson          LowCardinality(String),
			manual          UInt8
		) ENGINE = MergeTree
		ORDER BY (symbol, ts)`, database),
	}
}

// CHEvaluationLog appends evaluation and decision history to ClickHouse.
type CHEvaluationLog struct {
	ch *pkgch.Client
	l  *applogger.Logger
}

var _ repository.EvaluationLog = (*CHEvaluationLog)(nil)

func NewCHEvaluationLog(ch *pkgch.Client, l *applogger.Logger) *CHEvaluationLog {
	return &CHEvaluationLog{ch: ch, l: l.Component("evaluation_log")}
}

func (s *CHEvaluationLog) RecordEvaluation(ctx context.Context, c *models.Candidate, rec models.EvaluationRecord) error {
	preds, err := json.Marshal(rec.Predicates)
	if err != nil {
		return fmt.Errorf("marshal predicates: %w", err)
	}
	var volRatio float64
	for _, p := range rec.Predicates {
		if p.Name == models.PredicateVolume {
			volRatio = p.Value
		}
	}
	q := fmt.Sprintf(`INSERT INTO %s
		(ts, signal_id, symbol, direction, attempt, action, confirmations, rejections,
		 last_close, volume_ratio, leader_trend, predicates, fetch_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.ch.Table("signal_evaluations"))
	err = s.ch.Exec(ctx, q,
		rec.Timestamp.UTC(),
		c.ID,
		c.Symbol,
		string(c.Direction),
		uint16(rec.Attempt),
		string(rec.Action),
		uint8(rec.Confirmations),
		uint8(rec.Rejections),
		rec.Snapshot.LastClose,
		volRatio,
		string(rec.Snapshot.LeaderTrend),
		string(preds),
		rec.FetchError,
	)
	if err != nil {
		s.l.Error("clickhouse insert evaluation error",
			applogger.String("signal_id", c.ID),
			applogger.String("symbol", c.Symbol),
			applogger.Int("attempt", rec.Attempt),
			applogger.Error(err),
		)
		return fmt.Errorf("insert evaluation: %w", err)
	}
	return nil
}

func (s *CHEvaluationLog) RecordDecision(ctx context.Context, c *models.Candidate) error {
	if c.Decision == nil {
		return nil
	}
	d := c.Decision
	manual := uint8(0)
	if d.Manual {
		manual = 1
	}
	q := fmt.Sprintf(`INSERT INTO %s
		(ts, signal_id, symbol, direction, outcome, reasons, attempts, confirmations, rejections,
		 price_move_pct, processing_ms, quality_score, quality_class, lesson, manual)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.ch.Table("signal_decisions"))
	err := s.ch.Exec(ctx, q,
		d.Timestamp.UTC(),
		c.ID,
		c.Symbol,
		string(c.Direction),
		string(d.Outcome),
		nonNilStrings(d.Reasons),
		uint16(d.Attempts),
		uint8(d.Confirmations),
		uint8(d.Rejections),
		d.PriceMovePct,
		d.ProcessingTime.Milliseconds(),
		c.QualityScore,
		string(c.QualityClass),
		d.Lesson,
		manual,
	)
	if err != nil {
		s.l.Error("clickhouse insert decision error",
			applogger.String("signal_id", c.ID),
			applogger.String("symbol", c.Symbol),
			applogger.String("outcome", string(d.Outcome)),
			applogger.Error(err),
		)
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// Purge drops evaluations older than before and non-confirmed decisions older than before.
// Confirmed decisions are kept as the learning record.
func (s *CHEvaluationLog) Purge(ctx context.Context, before time.Time) error {
	start := time.Now()
	stmts := []string{
		fmt.Sprintf(`ALTER TABLE %s DELETE WHERE ts < ?`, s.ch.Table("signal_evaluations")),
		fmt.Sprintf(`ALTER TABLE %s DELETE WHERE ts < ? AND outcome != 'CONFIRMED'`, s.ch.Table("signal_decisions")),
	}
	for _, q := range stmts {
		if err := s.ch.Exec(ctx, q, before.UTC()); err != nil {
			return fmt.Errorf("purge history: %w", err)
		}
	}
	s.l.Info("clickhouse purge ok",
		applogger.Time("before", before),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

// Close is a no-op; the client is closed by its owner.
func (s *CHEvaluationLog) Close() error { return nil }

// NopEvaluationLog discards history. Used when clickhouse is disabled.
type NopEvaluationLog struct{}

var _ repository.EvaluationLog = NopEvaluationLog{}

func (NopEvaluationLog) RecordEvaluation(context.Context, *models.Candidate, models.EvaluationRecord) error {
	return nil
}
func (NopEvaluationLog) RecordDecision(context.Context, *models.Candidate) error { return nil }
func (NopEvaluationLog) Purge(context.Context, time.Time) error                  { return nil }
func (NopEvaluationLog) Close() error                                            { return nil }
