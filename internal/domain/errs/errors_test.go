package errs

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestClassifiersSeeThroughWrapping(t *testing.T) {
	tr := &TransientFetchError{Op: "klines", Status: 429, RetryAfter: 2 * time.Second, Err: context.DeadlineExceeded}
	wrapped := fmt.Errorf("scan BTCUSDT: %w", tr)

	if !IsTransient(wrapped) {
		t.Fatalf("expected transient")
	}
	if IsValidation(wrapped) || IsDuplicate(wrapped) || IsDataInsufficient(wrapped) {
		t.Fatalf("transient error misclassified")
	}
	if got := RetryAfter(wrapped); got != 2*time.Second {
		t.Fatalf("retry after = %v", got)
	}
	if RetryAfter(Invalid("symbol", "bad")) != 0 {
		t.Fatalf("retry after on validation error should be 0")
	}
}

func TestErrorMessages(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&DataInsufficientError{Symbol: "ETHUSDT", Interval: "4h", Have: 20, Need: 50}, "insufficient data for ETHUSDT 4h: have 20, need 50"},
		{Invalid("", "empty"), "validation: empty"},
		{Invalid("limit", "must be positive"), "validation: limit: must be positive"},
		{&DuplicateConfirmationError{Symbol: "SOLUSDT", Direction: "LONG"}, "SOLUSDT LONG already confirmed today"},
		{Invariant("engine", "attempts %d != checks %d", 3, 2), "invariant violated in engine: attempts 3 != checks 2"},
	}
	for _, c := range cases {
		if c.err.Error() != c.want {
			t.Errorf("got %q want %q", c.err.Error(), c.want)
		}
	}
	if !IsInvariant(fmt.Errorf("x: %w", Invariant("m", "y"))) {
		t.Fatalf("expected invariant")
	}
}
