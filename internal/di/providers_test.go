package di

import (
	"testing"

	internalrepo "SignalFlow/internal/repository"
	pkgcache "SignalFlow/pkg/cache"
	"SignalFlow/pkg/config"
	"SignalFlow/pkg/logger"
	"SignalFlow/pkg/metrics"
)

func TestOptionalBackendsFallBack(t *testing.T) {
	cfg := config.Default()

	producer, err := ProvideKafkaProducer(cfg)
	if err != nil || producer != nil {
		t.Fatalf("producer = %v, %v; want nil when kafka is disabled", producer, err)
	}
	if pub := ProvideEventPublisher(producer, cfg); pub != nil {
		t.Fatalf("publisher should be a nil interface without a producer")
	}

	pool, err := ProvidePostgresPool(cfg)
	if err != nil || pool != nil {
		t.Fatalf("pool = %v, %v; want nil when postgres is disabled", pool, err)
	}
	store, err := ProvideSignalStore(pool, logger.Nop())
	if err != nil {
		t.Fatalf("signal store: %v", err)
	}
	if _, ok := store.(*internalrepo.MemorySignalStore); !ok {
		t.Fatalf("store = %T, want in-memory", store)
	}

	ch, err := ProvideClickHouseClient(cfg)
	if err != nil || ch != nil {
		t.Fatalf("clickhouse = %v, %v", ch, err)
	}
	if _, ok := ProvideEvaluationLog(ch, logger.Nop()).(internalrepo.NopEvaluationLog); !ok {
		t.Fatalf("evaluation log should be the no-op without clickhouse")
	}

	c, err := ProvideCache(cfg)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	defer c.Close()
	if _, ok := c.(*pkgcache.MemoryCache); !ok {
		t.Fatalf("cache = %T, want memory", c)
	}

	if ProvideBracketSource(cfg) != nil {
		t.Fatalf("bracket source should be nil without credentials")
	}
	if consumer, err := ProvideKafkaConsumer(cfg, producer, logger.Nop()); err != nil || consumer != nil {
		t.Fatalf("consumer = %v, %v", consumer, err)
	}
	if ProvideNotifyEventsHandler(nil, nil, cfg, logger.Nop()) != nil {
		t.Fatalf("handler should be nil without a consumer")
	}
}

func TestProvideNotifierFallsBackToLog(t *testing.T) {
	cfg := config.Default()
	if got := ProvideNotifier(cfg, logger.Nop()).Name(); got != "log" {
		t.Fatalf("notifier = %q, want log", got)
	}
	cfg.Notify.Telegram.Enabled = true
	cfg.Notify.Telegram.BotToken = "t"
	cfg.Notify.Telegram.ChatID = "1"
	if got := ProvideNotifier(cfg, logger.Nop()).Name(); got != "telegram" {
		t.Fatalf("notifier = %q, want telegram", got)
	}
}

func TestProvideMetricsDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Enabled = false
	if _, ok := ProvideMetrics(cfg).(metrics.Nop); !ok {
		t.Fatalf("want no-op metrics when disabled")
	}
}

func TestClosersOrder(t *testing.T) {
	cfg := config.Default()
	store, _ := ProvideSignalStore(nil, logger.Nop())
	c, _ := ProvideCache(cfg)
	closers := ProvideClosers(store, internalrepo.NopEvaluationLog{}, nil, c, nil, logger.Nop())

	var names []string
	for _, cl := range closers {
		names = append(names, cl.Name)
		if err := cl.Close(); err != nil {
			t.Fatalf("close %s: %v", cl.Name, err)
		}
	}
	want := []string{"signal_store", "evaluation_log", "cache"}
	if len(names) != len(want) {
		t.Fatalf("closers = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("closers = %v, want %v", names, want)
		}
	}
}
