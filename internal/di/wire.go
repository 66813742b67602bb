//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"StockTracker/internal/handler/api"
	"StockTracker/internal/usecase"
	"StockTracker/pkg/config"
	"StockTracker/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(ctx context.Context, cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideRegisterer,
		ProvideGatherer,
		ProvideMetrics,
		ProvideHTTPMetrics,

		// Infrastructure clients
		ProvideCache,
		ProvideKafkaProducer,
		ProvideBackend,

		// Repositories
		ProvidePriceStore,
		ProvideReportStore,
		ProvideSignalCache,
		ProvideEventPublisher,

		// Use cases
		ProvideReader,
		usecase.NewSignalsUseCase,
		usecase.NewIngestionUseCase,
		usecase.NewDashboardUseCase,
		usecase.NewReportsUseCase,

		// HTTP
		ProvideUploadLimiter,
		ProvideWebHandler,
		api.NewStocksHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
