package usecase

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"SignalFlow/internal/domain/errs"
	"SignalFlow/internal/domain/models"
	"SignalFlow/pkg/util"
)

const defaultDecidedHistory = 500

// ErrAlreadyPending is returned when the same (symbol, direction) is already pending today.
var ErrAlreadyPending = errors.New("candidate already pending for symbol and direction")

type decisionStats struct {
	confirmed   int
	rejected    int
	expired     int
	confirmTime time.Duration
}

// PendingStore owns candidates from accept to decision and keeps a bounded
// history of decided ones.
type PendingStore struct {
	mu      sync.RWMutex
	pending map[string]*models.Candidate
	index   map[string]string
	decided []*models.Candidate
	stats   decisionStats

	timeout    time.Duration
	maxDecided int
	loc        *time.Location
	resetHour  int
	now        Clock
	newID      func() string
}

// NewPendingStore dedups pending candidates per trading day, which opens at
// resetHour in loc.
func NewPendingStore(timeout time.Duration, loc *time.Location, resetHour int) *PendingStore {
	if loc == nil {
		loc = time.UTC
	}
	return &PendingStore{
		pending:    make(map[string]*models.Candidate),
		index:      make(map[string]string),
		timeout:    timeout,
		maxDecided: defaultDecidedHistory,
		loc:        loc,
		resetHour:  resetHour,
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
	}
}

func (s *PendingStore) WithClock(now Clock) *PendingStore {
	s.now = now
	return s
}

func (s *PendingStore) dedupKey(symbol string, dir models.Direction, at time.Time) string {
	day := util.LastBoundary(at, s.loc, s.resetHour).Format(util.DateLayout)
	return symbol + "|" + string(dir) + "|" + day
}

// Add registers a new candidate and returns a copy with its id and lifetime set.
func (s *PendingStore) Add(c *models.Candidate) (*models.Candidate, error) {
	now := s.now()
	key := s.dedupKey(c.Symbol, c.Direction, now)

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.index[key]; ok {
		if _, still := s.pending[id]; still {
			return nil, ErrAlreadyPending
		}
	}

	stored := c.Clone()
	stored.ID = s.newID()
	stored.CreatedAt = now
	stored.ExpiresAt = now.Add(s.timeout)
	stored.Attempts = 0
	stored.Checks = nil
	stored.Decision = nil

	s.pending[stored.ID] = stored
	s.index[key] = stored.ID
	return stored.Clone(), nil
}

// Get returns a copy of a pending candidate.
func (s *PendingStore) Get(id string) (*models.Candidate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.pending[id]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// Lookup finds a candidate whether pending or decided.
func (s *PendingStore) Lookup(id string) (*models.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.pending[id]; ok {
		return c.Clone(), nil
	}
	for _, c := range s.decided {
		if c.ID == id {
			return c.Clone(), errs.ErrAlreadyTerminal
		}
	}
	return nil, errs.ErrNotFound
}

// IDs returns pending ids, oldest first.
func (s *PendingStore) IDs() []string {
	list := s.List()
	ids := make([]string, len(list))
	for i, c := range list {
		ids[i] = c.ID
	}
	return ids
}

// List returns copies of all pending candidates, oldest first.
func (s *PendingStore) List() []*models.Candidate {
	s.mu.RLock()
	out := make([]*models.Candidate, 0, len(s.pending))
	for _, c := range s.pending {
		out = append(out, c.Clone())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *PendingStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

// Append records one evaluation. Attempts and checks move together.
func (s *PendingStore) Append(id string, rec models.EvaluationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.pending[id]
	if !ok {
		return s.missingLocked(id)
	}
	if c.Attempts != len(c.Checks) {
		return errs.Invariant("pending_store", "candidate %s has %d attempts and %d checks", id, c.Attempts, len(c.Checks))
	}
	rec.Attempt = c.Attempts + 1
	c.Checks = append(c.Checks, rec)
	c.Attempts++
	return nil
}

// Decide moves a candidate out of pending with its terminal record.
func (s *PendingStore) Decide(id string, d models.DecisionRecord) (*models.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.pending[id]
	if !ok {
		return nil, s.missingLocked(id)
	}
	delete(s.pending, id)
	key := s.dedupKey(c.Symbol, c.Direction, c.CreatedAt)
	if s.index[key] == id {
		delete(s.index, key)
	}

	d.Attempts = c.Attempts
	c.Decision = &d
	switch d.Outcome {
	case models.DecisionConfirmed:
		s.stats.confirmed++
		s.stats.confirmTime += d.Timestamp.Sub(c.CreatedAt)
	case models.DecisionRejected:
		s.stats.rejected++
	case models.DecisionExpired:
		s.stats.expired++
	}

	s.decided = append(s.decided, c)
	if over := len(s.decided) - s.maxDecided; over > 0 {
		s.decided = append([]*models.Candidate(nil), s.decided[over:]...)
	}
	return c.Clone(), nil
}

func (s *PendingStore) missingLocked(id string) error {
	for _, c := range s.decided {
		if c.ID == id {
			return errs.ErrAlreadyTerminal
		}
	}
	return errs.ErrNotFound
}

// Decided returns decided candidates with one of the outcomes, newest first.
func (s *PendingStore) Decided(limit int, outcomes ...models.DecisionOutcome) []*models.Candidate {
	want := make(map[models.DecisionOutcome]bool, len(outcomes))
	for _, o := range outcomes {
		want[o] = true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Candidate
	for i := len(s.decided) - 1; i >= 0; i-- {
		c := s.decided[i]
		if len(want) > 0 && !want[c.Decision.Outcome] {
			continue
		}
		out = append(out, c.Clone())
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// PurgeDecided drops decided candidates matched by drop and returns how many were removed.
func (s *PendingStore) PurgeDecided(drop func(c *models.Candidate) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.decided[:0]
	n := 0
	for _, c := range s.decided {
		if drop(c) {
			n++
			continue
		}
		kept = append(kept, c)
	}
	for i := len(kept); i < len(s.decided); i++ {
		s.decided[i] = nil
	}
	s.decided = kept
	return n
}

// Metrics summarizes decisions made since start.
func (s *PendingStore) Metrics() models.ConfirmationMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := models.ConfirmationMetrics{
		Confirmed: s.stats.confirmed,
		Rejected:  s.stats.rejected,
		Expired:   s.stats.expired,
		Pending:   len(s.pending),
	}
	decided := m.Confirmed + m.Rejected + m.Expired
	m.Total = decided + m.Pending
	if decided > 0 {
		m.ConfirmationRatePct = float64(m.Confirmed) / float64(decided) * 100
	}
	if m.Confirmed > 0 {
		m.AvgConfirmationTimeMin = s.stats.confirmTime.Minutes() / float64(m.Confirmed)
	}
	return m
}
