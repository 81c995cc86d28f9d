package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"SignalFlow/internal/domain/errs"
	"SignalFlow/internal/domain/models"
	"SignalFlow/internal/domain/repository"
	applogger "SignalFlow/pkg/logger"
)

var signalSchema = []string{
	`CREATE TABLE IF NOT EXISTS signals (
		id                   TEXT PRIMARY KEY,
		symbol               TEXT NOT NULL,
		type                 TEXT NOT NULL,
		entry_price          NUMERIC(30, 12) NOT NULL,
		target_price         NUMERIC(30, 12) NOT NULL,
		projection_pct       NUMERIC(12, 4) NOT NULL,
		quality_score        NUMERIC(8, 2) NOT NULL,
		quality_class        TEXT NOT NULL,
		status               TEXT NOT NULL,
		created_at           TIMESTAMPTZ NOT NULL,
		confirmed_at         TIMESTAMPTZ,
		decided_at           TIMESTAMPTZ,
		leader_correlation   NUMERIC(8, 4) NOT NULL DEFAULT 0,
		leader_trend         TEXT NOT NULL DEFAULT 'NEUTRAL',
		confirmation_reasons JSONB NOT NULL DEFAULT '[]',
		decision             JSONB,
		generation_reasons   JSONB NOT NULL DEFAULT '{}'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_signals_status_created ON signals (status, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_signals_confirmed_at ON signals (confirmed_at) WHERE confirmed_at IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS monitored_signals (
		id                 TEXT PRIMARY KEY,
		symbol             TEXT NOT NULL,
		type               TEXT NOT NULL,
		entry_price        NUMERIC(30, 12) NOT NULL,
		max_leverage       INTEGER NOT NULL,
		current_price      NUMERIC(30, 12) NOT NULL DEFAULT 0,
		current_profit     NUMERIC(14, 4) NOT NULL DEFAULT 0,
		max_profit_reached NUMERIC(14, 4) NOT NULL DEFAULT 0,
		sim_current_value  NUMERIC(20, 4) NOT NULL DEFAULT 0,
		sim_pnl            NUMERIC(20, 4) NOT NULL DEFAULT 0,
		sim_max_value      NUMERIC(20, 4) NOT NULL DEFAULT 0,
		days_monitored     INTEGER NOT NULL DEFAULT 0,
		status             TEXT NOT NULL,
		confirmed_at       TIMESTAMPTZ NOT NULL,
		updated_at         TIMESTAMPTZ NOT NULL,
		payload            JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_monitored_status ON monitored_signals (status)`,
}

const signalColumns = `id, symbol, type, entry_price, target_price, projection_pct, quality_score,
	quality_class, status, created_at, confirmed_at, decided_at, leader_correlation, leader_trend,
	confirmation_reasons, decision, generation_reasons`

// PostgresSignalStore implements SignalStore on PostgreSQL. Prices go through
// decimal so NUMERIC columns keep their scale.
type PostgresSignalStore struct {
	pool *pgxpool.Pool
	l    *applogger.Logger
}

var _ repository.SignalStore = (*PostgresSignalStore)(nil)

func NewPostgresSignalStore(pool *pgxpool.Pool, l *applogger.Logger) *PostgresSignalStore {
	return &PostgresSignalStore{pool: pool, l: l.Component("signal_store")}
}

func (s *PostgresSignalStore) Init(ctx context.Context) error {
	for _, stmt := range signalSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init signal schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresSignalStore) InsertSignal(ctx context.Context, r models.SignalRecord) error {
	reasons, err := json.Marshal(nonNilStrings(r.ConfirmationReasons))
	if err != nil {
		return fmt.Errorf("marshal confirmation reasons: %w", err)
	}
	var decision []byte
	if r.Decision != nil {
		if decision, err = json.Marshal(r.Decision); err != nil {
			return fmt.Errorf("marshal decision: %w", err)
		}
	}
	gen, err := json.Marshal(r.GenerationReasons)
	if err != nil {
		return fmt.Errorf("marshal generation reasons: %w", err)
	}

	const q = `
		INSERT INTO signals (` + signalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			confirmed_at = EXCLUDED.confirmed_at,
			decided_at = EXCLUDED.decided_at,
			leader_correlation = EXCLUDED.leader_correlation,
			leader_trend = EXCLUDED.leader_trend,
			confirmation_reasons = EXCLUDED.confirmation_reasons,
			decision = EXCLUDED.decision`

	_, err = s.pool.Exec(ctx, q,
		r.ID,
		r.Symbol,
		string(r.Type),
		decimal.NewFromFloat(r.EntryPrice),
		decimal.NewFromFloat(r.TargetPrice),
		decimal.NewFromFloat(r.ProjectionPct).Round(4),
		decimal.NewFromFloat(r.QualityScore).Round(2),
		string(r.QualityClass),
		string(r.Status),
		r.CreatedAt.UTC(),
		utcPtr(r.ConfirmedAt),
		utcPtr(r.DecidedAt),
		decimal.NewFromFloat(r.LeaderCorrelation).Round(4),
		string(r.LeaderTrend),
		reasons,
		decision,
		gen,
	)
	if err != nil {
		s.l.Error("insert signal failed", applogger.String("id", r.ID), applogger.String("symbol", r.Symbol), applogger.Error(err))
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

func (s *PostgresSignalStore) DeleteSignal(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM signals WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete signal: %w", err)
	}
	return nil
}

func (s *PostgresSignalStore) ListSignals(ctx context.Context, f models.SignalFilter) ([]models.SignalRecord, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if len(f.Statuses) > 0 {
		where = append(where, "status = ANY("+arg(statusStrings(f.Statuses))+")")
	}
	if f.Symbol != "" {
		where = append(where, "symbol = "+arg(f.Symbol))
	}
	if !f.CreatedAfter.IsZero() {
		where = append(where, "created_at > "+arg(f.CreatedAfter.UTC()))
	}
	if !f.CreatedBefore.IsZero() {
		where = append(where, "created_at < "+arg(f.CreatedBefore.UTC()))
	}

	var b strings.Builder
	b.WriteString("SELECT " + signalColumns + " FROM signals")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	if f.Ascending {
		b.WriteString(" ORDER BY created_at ASC, id ASC")
	} else {
		b.WriteString(" ORDER BY created_at DESC, id DESC")
	}
	if f.Limit > 0 {
		b.WriteString(" LIMIT " + arg(f.Limit))
	}

	start := time.Now()
	rows, err := s.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	defer rows.Close()

	var out []models.SignalRecord
	for rows.Next() {
		r, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("list signals ok", applogger.Int("rows", len(out)), applogger.Duration("duration_ms", time.Since(start)))
	return out, nil
}

func scanSignal(row pgx.Row) (models.SignalRecord, error) {
	var (
		r                                  models.SignalRecord
		typ, class, status, trend          string
		entry, target, proj, quality, corr decimal.Decimal
		reasons, decision, gen             []byte
	)
	err := row.Scan(&r.ID, &r.Symbol, &typ, &entry, &target, &proj, &quality, &class, &status,
		&r.CreatedAt, &r.ConfirmedAt, &r.DecidedAt, &corr, &trend, &reasons, &decision, &gen)
	if err != nil {
		return r, fmt.Errorf("scan signal: %w", err)
	}
	dir, ok := models.ParseDirection(typ)
	if !ok {
		return r, fmt.Errorf("scan signal %s: unknown direction %q", r.ID, typ)
	}
	r.Type = dir
	r.QualityClass = models.QualityClass(class)
	r.Status = models.SignalStatus(status)
	r.LeaderTrend = models.Trend(trend)
	r.EntryPrice = entry.InexactFloat64()
	r.TargetPrice = target.InexactFloat64()
	r.ProjectionPct = proj.InexactFloat64()
	r.QualityScore = quality.InexactFloat64()
	r.LeaderCorrelation = corr.InexactFloat64()
	r.CreatedAt = r.CreatedAt.UTC()
	r.ConfirmedAt = utcPtr(r.ConfirmedAt)
	r.DecidedAt = utcPtr(r.DecidedAt)

	if len(reasons) > 0 {
		if err := json.Unmarshal(reasons, &r.ConfirmationReasons); err != nil {
			return r, fmt.Errorf("decode confirmation reasons: %w", err)
		}
	}
	if len(decision) > 0 {
		var d models.DecisionRecord
		if err := json.Unmarshal(decision, &d); err != nil {
			return r, fmt.Errorf("decode decision: %w", err)
		}
		r.Decision = &d
	}
	if len(gen) > 0 {
		if err := json.Unmarshal(gen, &r.GenerationReasons); err != nil {
			return r, fmt.Errorf("decode generation reasons: %w", err)
		}
	}
	return r, nil
}

func (s *PostgresSignalStore) DeleteSignalsBefore(ctx context.Context, statuses []models.SignalStatus, field models.TimeField, before time.Time) (int64, error) {
	if err := validField(field); err != nil {
		return 0, err
	}
	// field is one of two known column names
	q := fmt.Sprintf(`DELETE FROM signals WHERE status = ANY($1) AND %s < $2`, field)
	tag, err := s.pool.Exec(ctx, q, statusStrings(statuses), before.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete signals before: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresSignalStore) UpsertMonitored(ctx context.Context, m *models.MonitoredSignal) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal monitored signal: %w", err)
	}
	const q = `
		INSERT INTO monitored_signals (
			id, symbol, type, entry_price, max_leverage, current_price, current_profit,
			max_profit_reached, sim_current_value, sim_pnl, sim_max_value, days_monitored,
			status, confirmed_at, updated_at, payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			max_leverage = EXCLUDED.max_leverage,
			current_price = EXCLUDED.current_price,
			current_profit = EXCLUDED.current_profit,
			max_profit_reached = EXCLUDED.max_profit_reached,
			sim_current_value = EXCLUDED.sim_current_value,
			sim_pnl = EXCLUDED.sim_pnl,
			sim_max_value = EXCLUDED.sim_max_value,
			days_monitored = EXCLUDED.days_monitored,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at,
			payload = EXCLUDED.payload`

	updated := m.LastUpdate
	if updated.IsZero() {
		updated = m.ConfirmedAt
	}
	_, err = s.pool.Exec(ctx, q,
		m.ID,
		m.Symbol,
		string(m.Direction),
		decimal.NewFromFloat(m.EntryPrice),
		m.MaxLeverage,
		decimal.NewFromFloat(m.CurrentPrice),
		decimal.NewFromFloat(m.CurrentProfit).Round(4),
		decimal.NewFromFloat(m.MaxProfitReached).Round(4),
		decimal.NewFromFloat(m.SimCurrentValue).Round(4),
		decimal.NewFromFloat(m.SimPnL).Round(4),
		decimal.NewFromFloat(m.SimMaxValue).Round(4),
		m.DaysMonitored,
		string(m.Status),
		m.ConfirmedAt.UTC(),
		updated.UTC(),
		payload,
	)
	if err != nil {
		s.l.Error("upsert monitored failed", applogger.String("id", m.ID), applogger.String("symbol", m.Symbol), applogger.Error(err))
		return fmt.Errorf("upsert monitored: %w", err)
	}
	return nil
}

func (s *PostgresSignalStore) ListMonitored(ctx context.Context, status models.MonitorStatus) ([]*models.MonitoredSignal, error) {
	q := `SELECT payload FROM monitored_signals`
	var args []interface{}
	if status != "" {
		q += ` WHERE status = $1`
		args = append(args, string(status))
	}
	q += ` ORDER BY confirmed_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list monitored: %w", err)
	}
	defer rows.Close()

	var out []*models.MonitoredSignal
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan monitored: %w", err)
		}
		var m models.MonitoredSignal
		if err := json.Unmarshal(payload, &m); err != nil {
			s.l.Warn("skipping undecodable monitored row", applogger.Error(err))
			continue
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *PostgresSignalStore) Close() error {
	s.pool.Close()
	return nil
}

func validField(field models.TimeField) error {
	switch field {
	case models.FieldCreatedAt, models.FieldConfirmedAt:
		return nil
	default:
		return errs.Invalid("field", fmt.Sprintf("unsupported time field %q", field))
	}
}

func statusStrings(statuses []models.SignalStatus) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
