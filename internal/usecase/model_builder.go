package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FinSelect/internal/domain/models"
	domrepo "FinSelect/internal/domain/repository"
	"FinSelect/internal/services/elasticnet"
	"FinSelect/internal/services/features"
	xlogger "FinSelect/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrUnknownSource   = errors.New("unknown price source")
	ErrBuildInProgress = errors.New("a build for this symbol is already running")
	ErrInvalidParams   = errors.New("invalid build parameters")
)

// BuildParams fully describes one model build.
type BuildParams struct {
	ID           string               `json:"id"`
	Symbol       string               `json:"symbol"`
	Timeframe    domrepo.Timeframe    `json:"tf"`
	Source       string               `json:"source"`
	N            int                  `json:"n"`
	NTest        int                  `json:"n_test"`
	Buffer       int                  `json:"buffer"`
	MinTrainRows int                  `json:"min_train_rows"`
	Selector     elasticnet.Config    `json:"selector"`
	Grid         models.IndicatorGrid `json:"grid"`
}

// BuilderDefaults fill request fields a client leaves out.
type BuilderDefaults struct {
	Source       string
	MinTrainRows int
	Selector     elasticnet.Config
	Grid         models.IndicatorGrid
	LockTTL      time.Duration
	Timeout      time.Duration
}

// ModelBuilder loads prices, generates candidate indicators, fits the
// cross-validated elastic net and stores the resulting report.
type ModelBuilder struct {
	sources   map[string]domrepo.PriceSource
	store     domrepo.ReportStore
	publisher domrepo.ReportPublisher
	metrics   domrepo.Metrics
	logger    *xlogger.Logger
	defaults  BuilderDefaults
	now       func() time.Time
}

func NewModelBuilder(
	sources map[string]domrepo.PriceSource,
	store domrepo.ReportStore,
	publisher domrepo.ReportPublisher,
	metrics domrepo.Metrics,
	logger *xlogger.Logger,
	defaults BuilderDefaults,
) *ModelBuilder {
	if logger == nil {
		logger = xlogger.Nop()
	}
	if defaults.LockTTL <= 0 {
		defaults.LockTTL = 30 * time.Minute
	}
	if defaults.MinTrainRows <= 0 {
		defaults.MinTrainRows = 1
	}
	return &ModelBuilder{
		sources:   sources,
		store:     store,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		defaults:  defaults,
		now:       time.Now,
	}
}

// Params merges a request over the builder defaults. Selector fields the
// request does not carry keep their configured values.
func (b *ModelBuilder) Params(req *models.TrainRequest) BuildParams {
	p := BuildParams{
		Symbol:       req.Symbol,
		Timeframe:    domrepo.NormalizeTimeframe(req.Timeframe),
		Source:       req.Source,
		N:            req.N,
		NTest:        req.NTest,
		Buffer:       req.Buffer,
		MinTrainRows: b.defaults.MinTrainRows,
		Selector:     b.defaults.Selector,
		Grid:         b.defaults.Grid,
	}
	if p.Source == "" {
		p.Source = b.defaults.Source
	}
	if req.Alpha > 0 {
		p.Selector.Alpha = req.Alpha
	}
	if req.NFolds > 0 {
		p.Selector.NFolds = req.NFolds
	}
	if req.Workers > 0 {
		p.Selector.Workers = req.Workers
	}
	if req.Grid != nil {
		p.Grid = *req.Grid
	}
	return p
}

// Validate checks the parameters that do not depend on the price data.
func (p BuildParams) Validate() error {
	if p.Symbol == "" {
		return fmt.Errorf("%w: symbol required", ErrInvalidParams)
	}
	if !domrepo.IsValidTimeframe(p.Timeframe) {
		return fmt.Errorf("%w: timeframe %q", ErrInvalidParams, p.Timeframe)
	}
	if p.N < 2 {
		return fmt.Errorf("%w: n must be at least 2", ErrInvalidParams)
	}
	if p.NTest < 0 || p.Buffer < 0 {
		return fmt.Errorf("%w: n_test and buffer must be non-negative", ErrInvalidParams)
	}
	if err := p.Selector.Normalize(); err != nil {
		return err
	}
	return features.ValidateGrid(p.Grid)
}

func (p BuildParams) lockKey() string {
	return fmt.Sprintf("%s:%s:%s", p.Source, p.Symbol, p.Timeframe)
}

// Queue stores a queued report so an asynchronous build can be polled by ID.
func (b *ModelBuilder) Queue(ctx context.Context, p *BuildParams) (*models.ModelReport, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := b.now().UTC()
	r := &models.ModelReport{
		ID:        p.ID,
		Symbol:    p.Symbol,
		Timeframe: string(p.Timeframe),
		Source:    p.Source,
		Status:    models.StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := b.store.Save(ctx, r); err != nil {
		return nil, fmt.Errorf("save queued report: %w", err)
	}
	b.metrics.RecordBuild(p.Symbol, models.StatusQueued)
	return r, nil
}

// Build runs a complete model build. The returned report is persisted in
// every terminal state; on failure it is returned together with the error.
func (b *ModelBuilder) Build(ctx context.Context, p BuildParams) (*models.ModelReport, error) {
	start := b.now()
	if err := p.Validate(); err != nil {
		b.metrics.RecordError("params")
		return nil, err
	}
	src, ok := b.sources[p.Source]
	if !ok || src == nil {
		b.metrics.RecordError("source")
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, p.Source)
	}
	if b.defaults.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.defaults.Timeout)
		defer cancel()
	}

	acquired, release, err := b.store.Acquire(ctx, p.lockKey(), b.defaults.LockTTL)
	if err != nil {
		b.metrics.RecordError("lock")
		return nil, fmt.Errorf("acquire build lock: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("%w: %s", ErrBuildInProgress, p.lockKey())
	}
	defer release()

	r, err := b.loadOrCreate(ctx, &p, start)
	if err != nil {
		return nil, err
	}
	log := b.logger.With(
		xlogger.String("report_id", r.ID),
		xlogger.String("symbol", p.Symbol),
		xlogger.String("tf", string(p.Timeframe)),
	)
	r.Status = models.StatusRunning
	r.UpdatedAt = b.now().UTC()
	if err := b.store.Save(ctx, r); err != nil {
		return nil, fmt.Errorf("save running report: %w", err)
	}
	log.Info("model build started", xlogger.Int("n", p.N), xlogger.Float64("alpha", p.Selector.Alpha))

	buildErr := b.run(ctx, src, p, r, log)
	r.UpdatedAt = b.now().UTC()
	r.DurationMs = r.UpdatedAt.Sub(start).Milliseconds()
	b.metrics.RecordLatency("build", b.now().Sub(start).Seconds())
	if buildErr != nil {
		r.Status = models.StatusFailed
		r.Error = buildErr.Error()
		b.metrics.RecordError(errorKind(buildErr))
		log.Error("model build failed", xlogger.Error(buildErr))
	} else {
		r.Status = models.StatusDone
		b.metrics.RecordSelection(p.Symbol, r.Lambda, r.CVScore, len(r.Coefficients))
		log.Info("model build finished",
			xlogger.Float64("lambda", r.Lambda),
			xlogger.Float64("cv_score", r.CVScore),
			xlogger.Int("active", len(r.Coefficients)),
			xlogger.Int64("duration_ms", r.DurationMs),
		)
	}
	b.metrics.RecordBuild(p.Symbol, r.Status)

	// The report outlives a cancelled request.
	saveCtx := context.WithoutCancel(ctx)
	if err := b.store.Save(saveCtx, r); err != nil {
		log.Error("save report failed", xlogger.Error(err))
		if buildErr == nil {
			buildErr = fmt.Errorf("save report: %w", err)
		}
	}
	if err := b.publisher.PublishReport(saveCtx, r); err != nil {
		b.metrics.RecordError("publish")
		log.Warn("publish report failed", xlogger.Error(err))
	}
	return r, buildErr
}

func (b *ModelBuilder) loadOrCreate(ctx context.Context, p *BuildParams, start time.Time) (*models.ModelReport, error) {
	if p.ID != "" {
		r, err := b.store.Get(ctx, p.ID)
		switch {
		case err == nil:
			return r, nil
		case !errors.Is(err, domrepo.ErrReportNotFound):
			return nil, fmt.Errorf("load report: %w", err)
		}
	} else {
		p.ID = uuid.NewString()
	}
	return &models.ModelReport{
		ID:        p.ID,
		Symbol:    p.Symbol,
		Timeframe: string(p.Timeframe),
		Source:    p.Source,
		CreatedAt: start.UTC(),
	}, nil
}

func (b *ModelBuilder) run(ctx context.Context, src domrepo.PriceSource, p BuildParams, r *models.ModelReport, log *xlogger.Logger) error {
	t0 := b.now()
	candles, err := src.GetLatestNCandles(ctx, p.Symbol, p.N, p.Timeframe)
	if err != nil {
		return fmt.Errorf("load prices: %w", err)
	}
	b.metrics.RecordLatency("load_prices", b.now().Sub(t0).Seconds())
	prices, err := features.ClosePrices(candles)
	if err != nil {
		return err
	}
	r.Prices = len(prices)

	specs, err := features.GenerateSpecs(p.Grid)
	if err != nil {
		return err
	}
	lookback := features.MaxLookback(specs)
	r.Candidates = len(specs)
	r.MaxLookback = lookback

	train, test := prices, []float64(nil)
	if p.NTest > 0 {
		train, test, err = features.SplitTrainTest(prices, lookback, p.NTest, p.MinTrainRows)
		if err != nil {
			return err
		}
	}

	t0 = b.now()
	ds, err := features.Align(train, specs, p.MinTrainRows)
	if err != nil {
		return err
	}
	b.metrics.RecordLatency("align", b.now().Sub(t0).Seconds())
	r.TrainRows = ds.Rows()

	// A fold never purges less than the widest lookback: a training row within
	// that distance of the held-out block shares prices with it.
	purge := max(p.Buffer, lookback)
	r.PurgeBuffer = purge

	model, err := elasticnet.FitModel(ctx, p.Selector, ds.X, ds.Y, nil, purge,
		elasticnet.WithLogger(log),
		elasticnet.WithObserver(&metricsObserver{metrics: b.metrics}),
	)
	if err != nil {
		return err
	}
	fillReport(r, model, specs)

	if len(test) > 0 {
		tds, err := features.Align(test, specs, p.NTest)
		if err != nil {
			return fmt.Errorf("align test prices: %w", err)
		}
		score, err := model.Score(tds.X, tds.Y)
		if err != nil {
			return fmt.Errorf("score test prices: %w", err)
		}
		r.TestRows = tds.Rows()
		r.TestExplained = &score
	}
	return nil
}

func fillReport(r *models.ModelReport, m *elasticnet.Model, specs []models.IndicatorSpec) {
	beta := m.Coefficients()
	raw, rawB0 := m.RawCoefficients()
	r.Alpha = m.Alpha()
	r.Lambda = m.Lambda()
	r.Intercept = rawB0
	r.CVScore = m.CVScore()
	r.InSampleExplained = m.InSampleExplained()

	r.Coefficients = r.Coefficients[:0]
	for _, j := range m.ActiveSet() {
		r.Coefficients = append(r.Coefficients, models.CoefficientReport{
			Name:    specs[j].Name(),
			Kind:    specs[j].Kind,
			Beta:    beta[j],
			RawBeta: raw[j],
		})
	}
	path := m.Path()
	r.Path = make([]models.PathPointReport, len(path))
	for i, pt := range path {
		r.Path[i] = models.PathPointReport(pt)
	}
	r.Warnings = r.Warnings[:0]
	for _, w := range m.Warnings() {
		r.Warnings = append(r.Warnings, w.Error())
	}
}

// errorKind buckets build failures for the error counter.
func errorKind(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	case errors.Is(err, elasticnet.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, elasticnet.ErrInvalidConfig), errors.Is(err, features.ErrInvalidGrid), errors.Is(err, ErrInvalidParams):
		return "config"
	case errors.Is(err, elasticnet.ErrInvalidInput):
		return "input"
	default:
		return "build"
	}
}

// IsClientError reports whether err stems from the request or its data
// rather than from infrastructure.
func IsClientError(err error) bool {
	switch errorKind(err) {
	case "insufficient_data", "config", "input":
		return true
	}
	return errors.Is(err, ErrUnknownSource)
}

// metricsObserver forwards selector phase outcomes to the metrics sink.
type metricsObserver struct {
	metrics domrepo.Metrics
}

func (o *metricsObserver) ObservePath(_, nonConverged int, elapsed time.Duration) {
	o.metrics.RecordNonConverged("path", nonConverged)
	o.metrics.RecordLatency("path", elapsed.Seconds())
}

func (o *metricsObserver) ObserveCrossValidation(summary *elasticnet.CVSummary, elapsed time.Duration) {
	n := 0
	for _, w := range summary.Warnings() {
		if errors.Is(w, elasticnet.ErrNonConvergence) {
			n++
		}
	}
	o.metrics.RecordNonConverged("cv", n)
	o.metrics.RecordLatency("cross_validation", elapsed.Seconds())
}

func (o *metricsObserver) ObserveFinal(m *elasticnet.Model) {
	if !m.Converged() {
		o.metrics.RecordNonConverged("final", 1)
	}
}
