//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"SignalFlow/pkg/config"
	"SignalFlow/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvidePostgresPool,
		ProvideClickHouseClient,
		ProvideCache,

		// Repositories
		ProvideSignalStore,
		ProvideEvaluationLog,
		ProvideGuardStore,
		ProvideEventPublisher,
		ProvideNotifier,

		// Market data
		ProvideBracketSource,
		ProvideMarketDataProvider,
		ProvideKlinesCache,
		ProvideMarketData,
		ProvideLeverageResolver,
		ProvidePairsSelector,
		ProvideLeaderAnalyzer,

		// Use cases
		ProvideDailyGuard,
		ProvidePendingStore,
		ProvideFeedHandler,
		ProvideEventDispatcher,
		ProvideMonitor,
		ProvideConfirmationEngine,
		ProvideScanner,
		ProvideScheduler,
		ProvideQueryService,

		// Transport
		ProvideSignalsHandler,
		ProvideHTTPServer,
		ProvideKafkaConsumer,
		ProvideNotifyEventsHandler,

		// Application server
		ProvideClosers,
		ProvideApp,
	)
	return &server.App{}, nil
}
