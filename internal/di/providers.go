package di

import (
	"context"
	"fmt"
	"time"

	domrepo "FinSelect/internal/domain/repository"
	"FinSelect/internal/handler/api"
	internalrepo "FinSelect/internal/repository"
	"FinSelect/internal/usecase"
	"FinSelect/pkg/cache"
	pkgch "FinSelect/pkg/clickhouse"
	"FinSelect/pkg/config"
	xhttp "FinSelect/pkg/http"
	"FinSelect/pkg/http/middleware"
	pkgkafka "FinSelect/pkg/kafka"
	applogger "FinSelect/pkg/logger"
	"FinSelect/pkg/metrics"
	"FinSelect/pkg/queue"
	"FinSelect/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
)

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.WriteTimeout),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithBatching(cfg.Kafka.BatchSize, 1<<20, cfg.Kafka.BatchTimeout),
		pkgkafka.WithAutoCreateTopics(cfg.Kafka.AutoCreate),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger builds the application logger. With Kafka enabled, error logs
// are aggregated and shipped to the log topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if producer == nil {
		return l, func() {}, nil
	}
	l.AddCollector(&applogger.CollectionConfig{
		TimeInterval: cfg.Kafka.LogFlush,
		Topic:        cfg.Kafka.LogTopic,
		Publisher:    producer,
	})
	return l, l.RemoveCollector, nil
}

// ProvideMetrics creates a Prometheus metrics recorder on the default registry.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New()
}

// ProvideClickHouseClient connects to ClickHouse when it is the price source.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if cfg.Prices.Source != "clickhouse" {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if cfg.ClickHouse.InitSchema {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.InitSchema(ctx, internalrepo.CandleSchema(cfg.ClickHouse.Database)); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	l.Info("clickhouse connected",
		applogger.String("host", cfg.ClickHouse.Host),
		applogger.String("database", cfg.ClickHouse.Database),
	)
	return client, func() { _ = client.Close() }, nil
}

// ProvideFilePriceSource serves price files from cfg.Prices.Dir.
func ProvideFilePriceSource(cfg *config.Config, l *applogger.Logger) (*internalrepo.FilePriceSource, func()) {
	src := internalrepo.NewFilePriceSource(cfg.Prices.Dir)
	src.SetLogger(l)
	return src, func() { _ = src.Close() }
}

// ProvidePriceSources keys the configured sources by name. ClickHouse is only
// present when a client was created.
func ProvidePriceSources(ch *pkgch.Client, file *internalrepo.FilePriceSource, l *applogger.Logger) map[string]domrepo.PriceSource {
	sources := map[string]domrepo.PriceSource{"file": file}
	if ch != nil {
		chs := internalrepo.NewCHPriceSource(ch)
		chs.SetLogger(l)
		sources["clickhouse"] = chs
	}
	return sources
}

// ProvideRedisCache connects to Redis when it is enabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdle, cfg.Redis.PoolTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	return rc, func() { _ = rc.Close() }, nil
}

// ProvideReportStore selects the report backend.
func ProvideReportStore(cfg *config.Config, rc *cache.RedisCache, l *applogger.Logger) (domrepo.ReportStore, func(), error) {
	switch cfg.Reports.Backend {
	case "badger":
		s, err := internalrepo.OpenBadgerReportStore(cfg.Reports.BadgerDir, cfg.Reports.TTL, l)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "redis":
		if rc == nil {
			return nil, nil, fmt.Errorf("report backend redis requires redis.enabled")
		}
		// The layered cache does not close rc; ProvideRedisCache owns it.
		lc := cache.NewLayeredCache(cache.NewRedisCacheFromClient(rc.Client(), cfg.Redis.Prefix),
			cache.WithLayeredMemory(1000, 5*time.Minute))
		return internalrepo.NewCacheReportStore(lc, cfg.Reports.TTL), func() { _ = lc.Close() }, nil
	default:
		mc := cache.NewMemoryCache(cache.WithMemoryMaxSize(10000))
		return internalrepo.NewCacheReportStore(mc, cfg.Reports.TTL), func() { _ = mc.Close() }, nil
	}
}

// ProvideReportPublisher publishes reports to Kafka, or drops them when Kafka is disabled.
func ProvideReportPublisher(cfg *config.Config, producer *pkgkafka.Producer) domrepo.ReportPublisher {
	if producer == nil {
		return internalrepo.NopReportPublisher{}
	}
	return internalrepo.NewKafkaReportPublisher(producer, cfg.Kafka.ReportTopic)
}

// ProvideQueue selects the job queue backend.
func ProvideQueue(cfg *config.Config, l *applogger.Logger, rc *cache.RedisCache) (queue.Queue, error) {
	qc := &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		QueueSize:  cfg.Queue.QueueSize,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}
	if cfg.Queue.Backend == "redis" {
		if rc == nil {
			return nil, fmt.Errorf("queue backend redis requires redis.enabled")
		}
		return queue.NewRedisQueue(l, qc, rc.Client(), queue.WithKeyPrefix(cfg.Redis.Prefix+":queue")), nil
	}
	return queue.NewMemoryQueue(l, qc), nil
}

// ProvideBuilderDefaults maps the model config section onto the builder.
func ProvideBuilderDefaults(cfg *config.Config) usecase.BuilderDefaults {
	return usecase.BuilderDefaults{
		Source:       cfg.Prices.Source,
		MinTrainRows: cfg.Model.MinTrainRows,
		Selector:     cfg.Model.Selector,
		Grid:         cfg.Model.Grid,
		LockTTL:      cfg.Reports.LockTTL,
		Timeout:      cfg.Model.Timeout,
	}
}

// ProvideTrainService wires the queue to the train job and the builder.
func ProvideTrainService(b *usecase.ModelBuilder, q queue.Queue, job *usecase.TrainJob) *usecase.TrainService {
	q.RegisterJob(job)
	return usecase.NewTrainService(b, q)
}

// ProvideTrainConsumer consumes train requests from Kafka when enabled.
func ProvideTrainConsumer(
	cfg *config.Config,
	l *applogger.Logger,
	train *usecase.TrainService,
	recorder *metrics.Recorder,
) (*pkgkafka.Consumer, func(), error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.ConsumeTrain {
		return nil, func() {}, nil
	}
	c, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumers),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.DLQTopic),
		pkgkafka.WithConsumerRetry(cfg.Kafka.MaxAttempts, 100*time.Millisecond, 5*time.Second),
		pkgkafka.WithConsumerRetryIf(func(err error) bool { return !queue.IsPermanent(err) }),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka consumer: %w", err)
	}
	c.RegisterHandler(usecase.NewTrainRequestsHandler(cfg.Kafka.TrainTopic, train, recorder, l))
	// App stops the consumer; the cleanup only covers a failed start.
	return c, func() { _ = c.Stop(context.Background()) }, nil
}

// ProvideModelsHandler creates the API handler with per-IP rate limiting.
func ProvideModelsHandler(
	cfg *config.Config,
	l *applogger.Logger,
	train *usecase.TrainService,
	candles *usecase.CandlesUseCase,
) *api.ModelsEchoHandler {
	if cfg.Server.RateLimit <= 0 {
		return api.NewModelsEchoHandler(l, train, candles)
	}
	rl := middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst, 10*time.Minute)
	return api.NewModelsEchoHandler(l, train, candles, rl.Middleware())
}

// ProvideHTTPServer creates the Echo server.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.ModelsEchoHandler) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(l),
	}
	if !cfg.Server.DisableCORS {
		opts = append(opts, xhttp.WithCORS(append([]string{}, cfg.Server.CORSOrigins...)))
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(cfg.Metrics.Path, prometheus.DefaultRegisterer, prometheus.DefaultGatherer))
	} else {
		opts = append(opts, xhttp.WithMetrics("", nil, nil))
	}
	return xhttp.NewServer([]xhttp.Handler{h}, opts...)
}

// ProvideApp creates the application and attaches the price file watcher and
// the train request consumer.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	q queue.Queue,
	builder *usecase.ModelBuilder,
	file *internalrepo.FilePriceSource,
	consumer *pkgkafka.Consumer,
) *server.App {
	app := server.New(cfg, l, srv, q, builder)
	if cfg.Prices.Watch {
		app.AddWatcher(file)
	}
	if consumer != nil {
		app.AddService(consumer)
	}
	return app
}
