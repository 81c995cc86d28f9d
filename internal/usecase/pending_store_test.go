package usecase

import (
	"errors"
	"testing"
	"time"

	"SignalFlow/internal/domain/errs"
	"SignalFlow/internal/domain/models"
)

func newTestPendingStore(clock *fakeClock) *PendingStore {
	return NewPendingStore(time.Hour, time.UTC, 21).WithClock(clock.Now)
}

func TestPendingStoreAddAssignsLifetime(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	s := newTestPendingStore(clock)

	c, err := s.Add(&models.Candidate{Symbol: "SOLUSDT", Direction: models.Long, Attempts: 4})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if c.ID == "" {
		t.Fatalf("id not assigned")
	}
	if !c.CreatedAt.Equal(clock.Now()) || !c.ExpiresAt.Equal(clock.Now().Add(time.Hour)) {
		t.Fatalf("lifetime = %v..%v", c.CreatedAt, c.ExpiresAt)
	}
	if c.Attempts != 0 || len(c.Checks) != 0 || !c.Pending() {
		t.Fatalf("candidate not reset: attempts=%d checks=%d", c.Attempts, len(c.Checks))
	}
}

func TestPendingStoreDeduplicatesWhilePending(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	s := newTestPendingStore(clock)

	first, err := s.Add(&models.Candidate{Symbol: "SOLUSDT", Direction: models.Long})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Add(&models.Candidate{Symbol: "SOLUSDT", Direction: models.Long}); !errors.Is(err, ErrAlreadyPending) {
		t.Fatalf("second Add err = %v, want ErrAlreadyPending", err)
	}
	if _, err := s.Add(&models.Candidate{Symbol: "SOLUSDT", Direction: models.Short}); err != nil {
		t.Fatalf("opposite direction rejected: %v", err)
	}

	if _, err := s.Decide(first.ID, models.DecisionRecord{Timestamp: clock.Now(), Outcome: models.DecisionRejected}); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if _, err := s.Add(&models.Candidate{Symbol: "SOLUSDT", Direction: models.Long}); err != nil {
		t.Fatalf("Add after decision: %v", err)
	}
}

func TestPendingStoreDedupFollowsTradingDay(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 2, 20, 30, 0, 0, time.UTC))
	s := NewPendingStore(6*time.Hour, time.UTC, 21).WithClock(clock.Now)

	if _, err := s.Add(&models.Candidate{Symbol: "SOLUSDT", Direction: models.Long}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// 23:00 is the same calendar date but a new trading day
	clock.Set(time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC))
	if _, err := s.Add(&models.Candidate{Symbol: "SOLUSDT", Direction: models.Long}); err != nil {
		t.Fatalf("Add after the reset boundary: %v", err)
	}

	// past midnight the trading day is unchanged
	clock.Set(time.Date(2026, 3, 3, 0, 30, 0, 0, time.UTC))
	if _, err := s.Add(&models.Candidate{Symbol: "SOLUSDT", Direction: models.Long}); !errors.Is(err, ErrAlreadyPending) {
		t.Fatalf("Add after midnight err = %v, want ErrAlreadyPending", err)
	}
}

func TestPendingStoreAppendAndDecide(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	s := newTestPendingStore(clock)
	c, _ := s.Add(&models.Candidate{Symbol: "ETHUSDT", Direction: models.Short})

	for i := 0; i < 3; i++ {
		if err := s.Append(c.ID, models.EvaluationRecord{Action: models.ActionWait}); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	got, _ := s.Get(c.ID)
	if got.Attempts != 3 || len(got.Checks) != 3 || got.Checks[2].Attempt != 3 {
		t.Fatalf("attempts=%d checks=%d", got.Attempts, len(got.Checks))
	}

	clock.Advance(10 * time.Minute)
	decided, err := s.Decide(c.ID, models.DecisionRecord{Timestamp: clock.Now(), Outcome: models.DecisionConfirmed})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decided.Decision.Attempts != 3 {
		t.Fatalf("decision attempts = %d", decided.Decision.Attempts)
	}
	if s.Len() != 0 {
		t.Fatalf("still pending")
	}

	if err := s.Append(c.ID, models.EvaluationRecord{}); !errors.Is(err, errs.ErrAlreadyTerminal) {
		t.Fatalf("Append after decision err = %v", err)
	}
	if _, err := s.Decide(c.ID, models.DecisionRecord{Outcome: models.DecisionRejected}); !errors.Is(err, errs.ErrAlreadyTerminal) {
		t.Fatalf("second Decide err = %v", err)
	}
	if _, err := s.Lookup("missing"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("Lookup missing err = %v", err)
	}
	if got, err := s.Lookup(c.ID); !errors.Is(err, errs.ErrAlreadyTerminal) || got.Decision.Outcome != models.DecisionConfirmed {
		t.Fatalf("Lookup decided = %v, %v", got, err)
	}

	m := s.Metrics()
	if m.Confirmed != 1 || m.Total != 1 || m.ConfirmationRatePct != 100 || m.AvgConfirmationTimeMin != 10 {
		t.Fatalf("metrics = %+v", m)
	}
}

func TestPendingStoreDecidedHistory(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	s := newTestPendingStore(clock)
	outcomes := []models.DecisionOutcome{models.DecisionConfirmed, models.DecisionRejected, models.DecisionExpired, models.DecisionRejected}
	symbols := []string{"AUSDT", "BUSDT", "CUSDT", "DUSDT"}
	for i, o := range outcomes {
		c, err := s.Add(&models.Candidate{Symbol: symbols[i], Direction: models.Long})
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		clock.Advance(time.Minute)
		if _, err := s.Decide(c.ID, models.DecisionRecord{Timestamp: clock.Now(), Outcome: o}); err != nil {
			t.Fatalf("Decide: %v", err)
		}
	}

	rejected := s.Decided(0, models.DecisionRejected)
	if len(rejected) != 2 || rejected[0].Symbol != "DUSDT" || rejected[1].Symbol != "BUSDT" {
		t.Fatalf("rejected history = %v", rejected)
	}
	if all := s.Decided(3); len(all) != 3 || all[0].Symbol != "DUSDT" {
		t.Fatalf("limited history = %d", len(all))
	}

	n := s.PurgeDecided(func(c *models.Candidate) bool { return c.Decision.Outcome == models.DecisionRejected })
	if n != 2 || len(s.Decided(0)) != 2 {
		t.Fatalf("purged %d, left %d", n, len(s.Decided(0)))
	}
}
