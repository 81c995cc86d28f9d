package kafka

import (
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestProducerRequiresBrokers(t *testing.T) {
	if _, err := NewProducer(WithCompression("lz4")); !errors.Is(err, errNoBrokers) {
		t.Fatalf("err = %v, want errNoBrokers", err)
	}
}

func TestProducerOptionsIgnoreZeroValues(t *testing.T) {
	cfg := defaultProducerConfig()
	for _, opt := range []ProducerOption{
		WithBatchSize(0),
		WithBatchTimeout(0),
		WithMaxAttempts(-1),
		WithTimeouts(0, 5*time.Second),
	} {
		opt(cfg)
	}
	if cfg.BatchSize != 100 || cfg.BatchTimeout != 200*time.Millisecond || cfg.MaxAttempts != 3 {
		t.Fatalf("defaults overwritten: %+v", cfg)
	}
	if cfg.WriteTimeout != 10*time.Second || cfg.ReadTimeout != 5*time.Second {
		t.Fatalf("timeouts = %v/%v", cfg.WriteTimeout, cfg.ReadTimeout)
	}
}

func TestParseCompression(t *testing.T) {
	cases := map[string]kafka.Compression{
		"snappy": kafka.Snappy,
		"lz4":    kafka.Lz4,
		"zstd":   kafka.Zstd,
		"gzip":   kafka.Gzip,
		"":       kafka.Gzip,
		"brotli": kafka.Gzip,
	}
	for in, want := range cases {
		if got := parseCompression(in); got != want {
			t.Errorf("parseCompression(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConsumerConfigValidation(t *testing.T) {
	cfg := defaultConsumerConfig()
	WithConsumerBrokers([]string{"localhost:9092"})(cfg)
	WithConsumerStartOffset("latest")(cfg)
	WithConsumerRetry(2, time.Second, 10*time.Millisecond)(cfg)
	if err := cfg.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.StartOffset != kafka.LastOffset {
		t.Errorf("start offset = %d, want latest", cfg.StartOffset)
	}
	if cfg.BackoffMax != time.Second {
		t.Errorf("backoff max = %v, want raised to min", cfg.BackoffMax)
	}

	WithConsumerGroupID("")(cfg)
	if err := cfg.validate(); err == nil {
		t.Fatalf("expected error for empty group id")
	}
	if _, err := NewConsumer(); !errors.Is(err, errNoBrokers) {
		t.Fatalf("NewConsumer without brokers: %v", err)
	}
}

func TestStartOffsetDefaultsToEarliest(t *testing.T) {
	if parseStartOffset("earliest") != kafka.FirstOffset || parseStartOffset("bogus") != kafka.FirstOffset {
		t.Fatalf("unknown offsets should start from earliest")
	}
}
