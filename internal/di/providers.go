package di

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"SignalFlow/internal/domain/repository"
	"SignalFlow/internal/handler/api"
	"SignalFlow/internal/handler/ws"
	internalrepo "SignalFlow/internal/repository"
	"SignalFlow/internal/service/binance"
	"SignalFlow/internal/service/cache"
	"SignalFlow/internal/service/notify"
	"SignalFlow/internal/usecase"
	pkgcache "SignalFlow/pkg/cache"
	pkgch "SignalFlow/pkg/clickhouse"
	"SignalFlow/pkg/config"
	xhttp "SignalFlow/pkg/http"
	pkgkafka "SignalFlow/pkg/kafka"
	"SignalFlow/pkg/logger"
	"SignalFlow/pkg/metrics"
	"SignalFlow/pkg/postgres"
	"SignalFlow/pkg/server"
)

const initTimeout = 15 * time.Second

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger builds the root logger. With Kafka enabled, repeated warnings
// and errors are aggregated and shipped to the logs topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if producer != nil {
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.LogsTopic),
		})
	}
	return l.With(logger.String("service", "signalflow"), logger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder, or a no-op when disabled.
func ProvideMetrics(cfg *config.Config) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New()
}

// ProvidePostgresPool opens the pgx pool, or returns nil when Postgres is disabled.
func ProvidePostgresPool(cfg *config.Config) (*pgxpool.Pool, error) {
	if !cfg.Postgres.Enabled {
		return nil, nil
	}
	pc := postgres.DefaultPoolConfig()
	pc.MaxConns = cfg.Postgres.MaxConns
	pc.MinConns = cfg.Postgres.MinConns
	pc.MaxConnLifetime = cfg.Postgres.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.Postgres.MaxConnIdleTime
	pool, err := postgres.NewPool(context.Background(), cfg.Postgres.URL, pc)
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	return pool, nil
}

// ProvideSignalStore returns the Postgres store when a pool exists, else the in-memory one.
func ProvideSignalStore(pool *pgxpool.Pool, l *logger.Logger) (repository.SignalStore, error) {
	var store repository.SignalStore
	if pool != nil {
		store = internalrepo.NewPostgresSignalStore(pool, l)
	} else {
		store = internalrepo.NewMemorySignalStore()
	}
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("signal store init: %w", err)
	}
	return store, nil
}

// ProvideClickHouseClient creates a ClickHouse client with the evaluation schema,
// or nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.EvaluationSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideEvaluationLog writes evaluations to ClickHouse when available.
func ProvideEvaluationLog(ch *pkgch.Client, l *logger.Logger) repository.EvaluationLog {
	if ch == nil {
		return internalrepo.NopEvaluationLog{}
	}
	return internalrepo.NewCHEvaluationLog(ch, l)
}

// ProvideCache returns a memory-fronted Redis cache, or a process-local cache when Redis is disabled.
func ProvideCache(cfg *config.Config) (pkgcache.Service, error) {
	if !cfg.Redis.Enabled {
		return pkgcache.NewMemoryCache(
			pkgcache.WithMemoryMaxSize(10000),
			pkgcache.WithMemoryCleanup(time.Minute),
		), nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Redis.Host),
		pkgcache.WithRedisPort(cfg.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
		pkgcache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, cfg.Redis.PoolTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return pkgcache.NewLayeredCache(rc,
		pkgcache.WithLayeredMemorySize(5000),
		pkgcache.WithLayeredMemoryTTL(time.Minute),
	), nil
}

func ProvideGuardStore(c pkgcache.Service) repository.GuardStore {
	return internalrepo.NewCacheGuardStore(c)
}

// ProvideEventPublisher returns nil when Kafka is disabled.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.EventPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.EventsTopic)
}

func ProvideNotifier(cfg *config.Config, l *logger.Logger) repository.Notifier {
	if !cfg.Notify.Telegram.Enabled {
		return notify.NewLog(l)
	}
	return notify.NewTelegram(notify.TelegramConfig{
		BaseURL:  cfg.Notify.Telegram.BaseURL,
		BotToken: cfg.Notify.Telegram.BotToken,
		ChatID:   cfg.Notify.Telegram.ChatID,
		Timeout:  cfg.Notify.SendTimeout,
	}, nil)
}

// ProvideBracketSource returns nil without API credentials; leverage then falls back to tiers.
func ProvideBracketSource(cfg *config.Config) binance.BracketSource {
	if cfg.Binance.APIKey == "" || cfg.Binance.APISecret == "" {
		return nil
	}
	return binance.NewFuturesBrackets(cfg.Binance.APIKey, cfg.Binance.APISecret, cfg.Binance.BaseURL)
}

func ProvideMarketDataProvider(cfg *config.Config, brackets binance.BracketSource, m repository.Metrics, l *logger.Logger) repository.MarketDataProvider {
	return binance.NewClient(binance.Config{
		BaseURL:        cfg.Binance.BaseURL,
		RequestTimeout: cfg.Binance.RequestTimeout,
		MaxRetries:     cfg.Binance.MaxRetries,
		RetryBase:      cfg.Binance.RetryBase,
		RetryMax:       cfg.Binance.RetryMax,
		RateLimitRPS:   cfg.Binance.RateLimitRPS,
		RateLimitBurst: cfg.Binance.RateLimitBurst,
	}, brackets, m, l)
}

func ProvideKlinesCache(m repository.Metrics, l *logger.Logger) *cache.KlinesCache {
	return cache.NewKlinesCache(m, l)
}

func ProvideMarketData(provider repository.MarketDataProvider, klines *cache.KlinesCache) *usecase.MarketData {
	return usecase.NewMarketData(provider, klines)
}

func ProvideLeverageResolver(provider repository.MarketDataProvider, c pkgcache.Service, cfg *config.Config, l *logger.Logger) *usecase.LeverageResolver {
	return usecase.NewLeverageResolver(provider, c, usecase.LeverageTiers{
		Major:   cfg.Pipeline.MajorCoins,
		HighCap: cfg.Pipeline.HighCapCoins,
		MidCap:  cfg.Pipeline.MidCapCoins,
	}, l)
}

func ProvidePairsSelector(provider repository.MarketDataProvider, leverage *usecase.LeverageResolver, cfg *config.Config, l *logger.Logger) *usecase.PairsSelector {
	return usecase.NewPairsSelector(provider, leverage, usecase.PairsConfig{
		MaxPairs:    cfg.Pipeline.MaxPairs,
		MinLeverage: cfg.Pipeline.MinLeverage,
		QuoteAsset:  cfg.Pipeline.QuoteAsset,
		Refresh:     cfg.Pipeline.PairsRefresh(),
	}, l)
}

func ProvideLeaderAnalyzer(market *usecase.MarketData, cfg *config.Config, l *logger.Logger) *usecase.MarketLeaderAnalyzer {
	return usecase.NewMarketLeaderAnalyzer(market, cfg.Pipeline.LeaderSymbol, l)
}

func ProvideDailyGuard(store repository.GuardStore, cfg *config.Config, l *logger.Logger) *usecase.DailyGuard {
	return usecase.NewDailyGuard(store, cfg.Pipeline.Location(), cfg.Pipeline.DailyResetHourLocal, l)
}

func ProvidePendingStore(cfg *config.Config) *usecase.PendingStore {
	return usecase.NewPendingStore(cfg.Pipeline.ConfirmationTimeout(), cfg.Pipeline.Location(), cfg.Pipeline.DailyResetHourLocal)
}

func ProvideFeedHandler(l *logger.Logger) *ws.FeedHandler {
	return ws.NewFeedHandler(l)
}

func ProvideEventDispatcher(pub repository.EventPublisher, feed *ws.FeedHandler, notifier repository.Notifier,
	cfg *config.Config, m repository.Metrics, l *logger.Logger) *usecase.EventDispatcher {
	return usecase.NewEventDispatcher(pub, feed, notifier, usecase.DispatcherConfig{
		QueueSize:    cfg.Notify.QueueSize,
		SendTimeout:  cfg.Notify.SendTimeout,
		NotifyViaBus: cfg.Notify.ViaKafka && pub != nil,
	}, m, l)
}

func ProvideMonitor(provider repository.MarketDataProvider, leverage *usecase.LeverageResolver, store repository.SignalStore,
	events *usecase.EventDispatcher, cfg *config.Config, m repository.Metrics, l *logger.Logger) *usecase.Monitor {
	return usecase.NewMonitor(provider, leverage, store, events, usecase.MonitorConfig{
		UpdateInterval:  cfg.Pipeline.MonitorUpdateInterval(),
		MonitoringDays:  cfg.Pipeline.MonitoringDays,
		SimInvestment:   cfg.Pipeline.SimInvestment,
		SimTargetValue:  cfg.Pipeline.SimTargetValue,
		ProfitTargetPct: cfg.Pipeline.ProfitTargetPct,
		Workers:         cfg.Pipeline.MonitorWorkers,
	}, m, l)
}

func ProvideConfirmationEngine(pending *usecase.PendingStore, market *usecase.MarketData, leader *usecase.MarketLeaderAnalyzer,
	guard *usecase.DailyGuard, signals repository.SignalStore, history repository.EvaluationLog, monitor *usecase.Monitor,
	events *usecase.EventDispatcher, cfg *config.Config, m repository.Metrics, l *logger.Logger) *usecase.ConfirmationEngine {
	preds := usecase.DefaultPredicateConfig()
	preds.BreakoutMinPct = cfg.Pipeline.BreakoutMinPct
	preds.VolumeMinRatio = cfg.Pipeline.VolumeMinRatio
	return usecase.NewConfirmationEngine(pending, market, leader, guard, signals, history, monitor, events,
		usecase.EngineConfig{
			CheckInterval: cfg.Pipeline.ConfirmationCheckInterval(),
			MaxAttempts:   cfg.Pipeline.MaxConfirmationAttempts,
			Predicates:    preds,
		}, m, l)
}

func ProvideScanner(pairs *usecase.PairsSelector, market *usecase.MarketData, leader *usecase.MarketLeaderAnalyzer,
	engine *usecase.ConfirmationEngine, cfg *config.Config, m repository.Metrics, l *logger.Logger) *usecase.Scanner {
	return usecase.NewScanner(pairs, market, leader, engine, usecase.ScannerConfig{
		Interval:         cfg.Pipeline.ScanInterval(),
		Workers:          cfg.Pipeline.ScanWorkers,
		MaxPairs:         cfg.Pipeline.MaxPairs,
		QualityThreshold: cfg.Pipeline.QualityThreshold,
	}, m, l)
}

func ProvideScheduler(signals repository.SignalStore, history repository.EvaluationLog, pending *usecase.PendingStore,
	guard *usecase.DailyGuard, lock pkgcache.Service, events *usecase.EventDispatcher, l *logger.Logger) *usecase.Scheduler {
	cleanup := usecase.NewCleanup(signals, history, pending, guard, l)
	return usecase.NewScheduler(guard, cleanup, lock, events, l)
}

func ProvideQueryService(pending *usecase.PendingStore, engine *usecase.ConfirmationEngine, guard *usecase.DailyGuard,
	monitor *usecase.Monitor, pairs *usecase.PairsSelector, leader *usecase.MarketLeaderAnalyzer, klines *cache.KlinesCache,
	store pkgcache.Service, signals repository.SignalStore, l *logger.Logger) *usecase.SignalQueryService {
	return usecase.NewSignalQueryService(pending, engine, guard, monitor, pairs, leader, klines, store, signals, l)
}

func ProvideSignalsHandler(queries *usecase.SignalQueryService, cfg *config.Config, l *logger.Logger) *api.SignalsEchoHandler {
	return api.NewSignalsEchoHandler(l, queries, cfg.Server.AdminToken)
}

func ProvideHTTPServer(cfg *config.Config, signals *api.SignalsEchoHandler, feed *ws.FeedHandler,
	pool *pgxpool.Pool, ch *pkgch.Client, store pkgcache.Service, l *logger.Logger) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithCORS(cfg.Server.CORS),
	}
	if pool != nil {
		opts = append(opts, xhttp.WithHealthCheck("postgres", pool.Ping))
	}
	if ch != nil {
		opts = append(opts, xhttp.WithHealthCheck("clickhouse", ch.Health))
	}
	if h, ok := store.(interface{ Health(context.Context) error }); ok {
		opts = append(opts, xhttp.WithHealthCheck("redis", h.Health))
	}
	return xhttp.NewServer(l, []xhttp.Handler{signals, feed}, opts...)
}

// ProvideKafkaConsumer creates the notification consumer, or nil unless
// notifications are routed through the bus.
func ProvideKafkaConsumer(cfg *config.Config, producer *pkgkafka.Producer, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Notify.ViaKafka || producer == nil {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerStartOffset("latest"),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.LoggingHook(l, cfg.Notify.SendTimeout))
	return consumer, nil
}

func ProvideNotifyEventsHandler(consumer *pkgkafka.Consumer, notifier repository.Notifier, cfg *config.Config, l *logger.Logger) *usecase.NotifyEventsHandler {
	if consumer == nil {
		return nil
	}
	return usecase.NewNotifyEventsHandler(cfg.Kafka.EventsTopic, notifier, l)
}

// ProvideClosers lists the clients released at shutdown. The log collector goes
// before the producer it publishes through.
func ProvideClosers(signals repository.SignalStore, history repository.EvaluationLog, ch *pkgch.Client,
	c pkgcache.Service, producer *pkgkafka.Producer, l *logger.Logger) []server.Closer {
	closers := []server.Closer{
		{Name: "signal_store", Close: signals.Close},
		{Name: "evaluation_log", Close: history.Close},
	}
	if ch != nil {
		closers = append(closers, server.Closer{Name: "clickhouse", Close: ch.Close})
	}
	closers = append(closers, server.Closer{Name: "cache", Close: c.Close})
	if producer != nil {
		closers = append(closers,
			server.Closer{Name: "log_collector", Close: func() error { l.RemoveCollector(); return nil }},
			server.Closer{Name: "kafka_producer", Close: producer.Close},
		)
	}
	return closers
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	scanner *usecase.Scanner,
	engine *usecase.ConfirmationEngine,
	monitor *usecase.Monitor,
	scheduler *usecase.Scheduler,
	dispatcher *usecase.EventDispatcher,
	guard *usecase.DailyGuard,
	klines *cache.KlinesCache,
	httpServer *xhttp.Server,
	feed *ws.FeedHandler,
	consumer *pkgkafka.Consumer,
	kh *usecase.NotifyEventsHandler,
	closers []server.Closer,
) *server.App {
	parts := server.Components{
		Scanner:    scanner,
		Engine:     engine,
		Monitor:    monitor,
		Scheduler:  scheduler,
		Dispatcher: dispatcher,
		Guard:      guard,
		Klines:     klines,
	}
	var handler pkgkafka.MessageHandler
	if kh != nil {
		handler = kh
	}
	return server.New(cfg, l, parts, httpServer, feed, consumer, handler, closers)
}
