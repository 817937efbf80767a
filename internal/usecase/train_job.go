package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"FinSelect/internal/domain/models"
	xlogger "FinSelect/pkg/logger"
	"FinSelect/pkg/queue"
)

// TrainJobType is the queue message type for asynchronous model builds.
const TrainJobType = "model.train"

// TrainJob runs queued builds on the queue's workers.
type TrainJob struct {
	builder *ModelBuilder
	logger  *xlogger.Logger
}

func NewTrainJob(builder *ModelBuilder, logger *xlogger.Logger) *TrainJob {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &TrainJob{builder: builder, logger: logger}
}

func (j *TrainJob) Name() string { return "model-trainer" }
func (j *TrainJob) Type() string { return TrainJobType }

// Handle decodes BuildParams and runs the build. Failures caused by the request
// or its data are permanent; infrastructure failures and a busy lock are retried.
func (j *TrainJob) Handle(ctx context.Context, payload json.RawMessage) error {
	p, err := queue.Decode[BuildParams](payload)
	if err != nil {
		return queue.Permanent(err)
	}
	if p.ID == "" {
		return queue.Permanent(fmt.Errorf("%w: report id required", ErrInvalidParams))
	}
	_, err = j.builder.Build(ctx, *p)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrBuildInProgress):
		j.logger.Info("build busy, will retry", xlogger.String("report_id", p.ID))
		return err
	case IsClientError(err):
		return queue.Permanent(err)
	default:
		return err
	}
}

// TrainService accepts build requests and runs them inline or on the queue.
type TrainService struct {
	builder *ModelBuilder
	queue   queue.Queue
}

func NewTrainService(builder *ModelBuilder, q queue.Queue) *TrainService {
	return &TrainService{builder: builder, queue: q}
}

// Submit runs the build synchronously, or stores a queued report and enqueues
// the build when req.Async is set.
func (s *TrainService) Submit(ctx context.Context, req *models.TrainRequest) (*models.ModelReport, error) {
	p := s.builder.Params(req)
	if !req.Async || s.queue == nil {
		return s.builder.Build(ctx, p)
	}
	r, err := s.builder.Queue(ctx, &p)
	if err != nil {
		return nil, err
	}
	if _, err := s.queue.Enqueue(ctx, TrainJobType, p); err != nil {
		r.Status = models.StatusFailed
		r.Error = err.Error()
		if serr := s.builder.store.Save(context.WithoutCancel(ctx), r); serr != nil {
			s.builder.metrics.RecordError("save")
			s.builder.logger.Error("save report failed",
				xlogger.String("report_id", r.ID),
				xlogger.Error(serr),
			)
		}
		return nil, fmt.Errorf("enqueue build: %w", err)
	}
	return r, nil
}

// Report returns a stored report by ID.
func (s *TrainService) Report(ctx context.Context, id string) (*models.ModelReport, error) {
	return s.builder.store.Get(ctx, id)
}
