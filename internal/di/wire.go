//go:build wireinject
// +build wireinject

package di

import (
	domrepo "FinSelect/internal/domain/repository"
	"FinSelect/internal/usecase"
	"FinSelect/pkg/config"
	"FinSelect/pkg/metrics"
	"FinSelect/pkg/server"

	"github.com/google/wire"
)

var infraSet = wire.NewSet(
	ProvideKafkaProducer,
	ProvideLogger,
	ProvideMetrics,
	wire.Bind(new(domrepo.Metrics), new(*metrics.Recorder)),
	ProvideClickHouseClient,
	ProvideRedisCache,
)

var repositorySet = wire.NewSet(
	ProvideFilePriceSource,
	ProvidePriceSources,
	ProvideReportStore,
	ProvideReportPublisher,
	ProvideQueue,
)

var usecaseSet = wire.NewSet(
	ProvideBuilderDefaults,
	usecase.NewModelBuilder,
	usecase.NewTrainJob,
	ProvideTrainService,
	usecase.NewCandlesUseCase,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		infraSet,
		repositorySet,
		usecaseSet,

		// Transport
		ProvideModelsHandler,
		ProvideHTTPServer,
		ProvideTrainConsumer,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
