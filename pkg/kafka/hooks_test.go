package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestHookChainOrder(t *testing.T) {
	var calls []string
	mk := func(name string) ConsumerHook {
		return HookFuncs{
			Before: func(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
				calls = append(calls, "before:"+name)
				return ctx, km, append(data, name...), nil
			},
			After: func(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
				calls = append(calls, "after:"+name)
			},
		}
	}
	chain := NewHookChain(mk("a"), nil, mk("b"))

	_, _, data, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte("x"))
	if err != nil {
		t.Fatalf("before: %v", err)
	}
	if string(data) != "xab" {
		t.Fatalf("data threaded wrong: %q", data)
	}
	chain.AfterHandle(context.Background(), "t", kafka.Message{}, data, nil)

	want := []string{"before:a", "before:b", "after:b", "after:a"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
	}
}

func TestHookChainPanicBecomesHookError(t *testing.T) {
	var onErr int
	panicky := HookFuncs{
		Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
			panic("boom")
		},
		Err: func(context.Context, string, kafka.Message, []byte, error) { onErr++ },
	}
	_, _, _, err := NewHookChain(panicky).BeforeHandle(context.Background(), "t", kafka.Message{}, nil)

	var he *HookError
	if !errors.As(err, &he) || he.Code != "ERR_PANIC" {
		t.Fatalf("want ERR_PANIC hook error, got %v", err)
	}
	if onErr != 1 {
		t.Fatalf("OnError calls = %d, want 1", onErr)
	}
}

func TestHeaderValue(t *testing.T) {
	km := kafka.Message{Headers: []kafka.Header{
		{Key: "other", Value: []byte("x")},
		{Key: EventIDHeader, Value: []byte("ev-1")},
	}}
	if got := HeaderValue(km, EventIDHeader); got != "ev-1" {
		t.Fatalf("HeaderValue = %q", got)
	}
	if got := HeaderValue(km, "missing"); got != "" {
		t.Fatalf("missing header = %q", got)
	}
}

func TestBackoffWithJitterBounds(t *testing.T) {
	min, max := 100*time.Millisecond, time.Second
	for attempt := 1; attempt <= 40; attempt++ {
		d := backoffWithJitter(min, max, attempt)
		if d <= 0 || d > max {
			t.Fatalf("attempt %d: backoff %v out of (0, %v]", attempt, d, max)
		}
	}
}
