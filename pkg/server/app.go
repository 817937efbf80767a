package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FinSelect/internal/domain/models"
	"FinSelect/internal/usecase"
	"FinSelect/pkg/config"
	xhttp "FinSelect/pkg/http"
	applogger "FinSelect/pkg/logger"
	"FinSelect/pkg/queue"
)

// Watcher runs a background loop until ctx is cancelled.
type Watcher interface {
	Watch(ctx context.Context) error
}

// Service is a background component with its own start and stop.
type Service interface {
	Start() error
	Stop(ctx context.Context) error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg      *config.Config
	log      *applogger.Logger
	http     *xhttp.Server
	queue    queue.Queue
	builder  *usecase.ModelBuilder
	watchers []Watcher
	services []Service
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	httpServer *xhttp.Server,
	q queue.Queue,
	builder *usecase.ModelBuilder,
) *App {
	return &App{
		cfg:     cfg,
		log:     log,
		http:    httpServer,
		queue:   q,
		builder: builder,
	}
}

// AddWatcher registers a loop started by Run.
func (a *App) AddWatcher(w Watcher) { a.watchers = append(a.watchers, w) }

// AddService registers a component started after the queue and stopped
// before it.
func (a *App) AddService(s Service) { a.services = append(a.services, s) }

// Logger returns the application logger.
func (a *App) Logger() *applogger.Logger { return a.log }

// Run starts the queue workers, watchers and the HTTP server and blocks until
// ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			return fmt.Errorf("start queue: %w", err)
		}
		a.log.Info("job queue started",
			applogger.String("backend", a.cfg.Queue.Backend),
			applogger.Int("workers", a.cfg.Queue.Workers),
		)
	}

	for i, s := range a.services {
		if err := s.Start(); err != nil {
			a.services = a.services[:i]
			return errors.Join(fmt.Errorf("start service: %w", err), a.shutdown())
		}
	}

	for _, w := range a.watchers {
		go func(w Watcher) {
			if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.log.Error("watcher stopped", applogger.Error(err))
			}
		}(w)
	}

	if err := a.http.Start(); err != nil {
		return errors.Join(fmt.Errorf("start http: %w", err), a.shutdown())
	}
	a.log.Info("finselect started",
		applogger.String("env", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("prices", a.cfg.Prices.Source),
		applogger.String("reports", a.cfg.Reports.Backend),
	)

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case runErr = <-a.http.Errors():
	}
	return errors.Join(runErr, a.shutdown())
}

// TrainOnce runs the build described by the model config section.
func (a *App) TrainOnce(ctx context.Context) (*models.ModelReport, error) {
	m := a.cfg.Model
	if m.Symbol == "" {
		return nil, errors.New("model.symbol is required for a one-off build")
	}
	p := a.builder.Params(&models.TrainRequest{
		Symbol:    m.Symbol,
		Timeframe: m.Timeframe,
		Source:    a.cfg.Prices.Source,
		N:         m.N,
		NTest:     m.NTest,
		Buffer:    m.Buffer,
	})
	return a.builder.Build(ctx, p)
}

// shutdown stops the HTTP server and the services first so no new work
// arrives, then drains the queue. Infrastructure is released by the DI cleanup.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout+5*time.Second)
	defer cancel()

	var errs []error
	if err := a.http.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}
	for i := len(a.services) - 1; i >= 0; i-- {
		if err := a.services[i].Stop(ctx); err != nil {
			a.log.Warn("service stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			a.log.Warn("queue stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
