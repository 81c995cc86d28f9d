package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"SignalFlow/internal/domain/models"
	"SignalFlow/internal/domain/repository"
)

// MemorySignalStore keeps signals and monitored signals in process. It backs
// the pipeline when postgres is disabled and shares the SQL store's semantics.
type MemorySignalStore struct {
	mu        sync.RWMutex
	signals   map[string]models.SignalRecord
	monitored map[string]*models.MonitoredSignal
}

var _ repository.SignalStore = (*MemorySignalStore)(nil)

func NewMemorySignalStore() *MemorySignalStore {
	return &MemorySignalStore{
		signals:   make(map[string]models.SignalRecord),
		monitored: make(map[string]*models.MonitoredSignal),
	}
}

func (s *MemorySignalStore) Init(ctx context.Context) error { return nil }

func (s *MemorySignalStore) Close() error { return nil }

func (s *MemorySignalStore) InsertSignal(ctx context.Context, rec models.SignalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals[rec.ID] = normalizeRecord(rec)
	return nil
}

func (s *MemorySignalStore) DeleteSignal(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.signals, id)
	return nil
}

func (s *MemorySignalStore) ListSignals(ctx context.Context, f models.SignalFilter) ([]models.SignalRecord, error) {
	want := statusSet(f.Statuses)
	s.mu.RLock()
	out := make([]models.SignalRecord, 0, len(s.signals))
	for _, r := range s.signals {
		if len(want) > 0 && !want[r.Status] {
			continue
		}
		if f.Symbol != "" && r.Symbol != f.Symbol {
			continue
		}
		if !f.CreatedAfter.IsZero() && !r.CreatedAt.After(f.CreatedAfter) {
			continue
		}
		if !f.CreatedBefore.IsZero() && !r.CreatedAt.Before(f.CreatedBefore) {
			continue
		}
		out = append(out, cloneRecord(r))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if f.Ascending {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		if f.Ascending {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemorySignalStore) DeleteSignalsBefore(ctx context.Context, statuses []models.SignalStatus, field models.TimeField, before time.Time) (int64, error) {
	if err := validField(field); err != nil {
		return 0, err
	}
	want := statusSet(statuses)
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, r := range s.signals {
		if len(want) > 0 && !want[r.Status] {
			continue
		}
		ts := r.CreatedAt
		if field == models.FieldConfirmedAt {
			if r.ConfirmedAt == nil {
				continue
			}
			ts = *r.ConfirmedAt
		}
		if ts.Before(before) {
			delete(s.signals, id)
			n++
		}
	}
	return n, nil
}

func (s *MemorySignalStore) UpsertMonitored(ctx context.Context, m *models.MonitoredSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monitored[m.ID] = m.Clone()
	return nil
}

// ListMonitored returns monitored signals with status (all when empty), oldest confirmation first.
func (s *MemorySignalStore) ListMonitored(ctx context.Context, status models.MonitorStatus) ([]*models.MonitoredSignal, error) {
	s.mu.RLock()
	out := make([]*models.MonitoredSignal, 0, len(s.monitored))
	for _, m := range s.monitored {
		if status == "" || m.Status == status {
			out = append(out, m.Clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ConfirmedAt.Equal(out[j].ConfirmedAt) {
			return out[i].ConfirmedAt.Before(out[j].ConfirmedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func statusSet(statuses []models.SignalStatus) map[models.SignalStatus]bool {
	want := make(map[models.SignalStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	return want
}

// normalizeRecord stores timestamps in UTC like the SQL columns do.
func normalizeRecord(r models.SignalRecord) models.SignalRecord {
	r = cloneRecord(r)
	r.CreatedAt = r.CreatedAt.UTC()
	if r.ConfirmedAt != nil {
		t := r.ConfirmedAt.UTC()
		r.ConfirmedAt = &t
	}
	if r.DecidedAt != nil {
		t := r.DecidedAt.UTC()
		r.DecidedAt = &t
	}
	return r
}

func cloneRecord(r models.SignalRecord) models.SignalRecord {
	out := r
	out.ConfirmationReasons = append([]string(nil), r.ConfirmationReasons...)
	if r.ConfirmedAt != nil {
		t := *r.ConfirmedAt
		out.ConfirmedAt = &t
	}
	if r.DecidedAt != nil {
		t := *r.DecidedAt
		out.DecidedAt = &t
	}
	if r.Decision != nil {
		d := *r.Decision
		d.Reasons = append([]string(nil), r.Decision.Reasons...)
		out.Decision = &d
	}
	return out
}
