package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"FinSelect/internal/domain/models"
	domrepo "FinSelect/internal/domain/repository"
	pkgkafka "FinSelect/pkg/kafka"
	xlogger "FinSelect/pkg/logger"
	"FinSelect/pkg/queue"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var requestValidator = validator.New()

// TrainRequestsHandler turns messages on the train topic into queued builds.
// Messages carry the same JSON body as POST /api/models.
type TrainRequestsHandler struct {
	topic   string
	train   *TrainService
	metrics domrepo.Metrics
	logger  *xlogger.Logger
}

func NewTrainRequestsHandler(topic string, train *TrainService, metrics domrepo.Metrics, logger *xlogger.Logger) *TrainRequestsHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &TrainRequestsHandler{topic: topic, train: train, metrics: metrics, logger: logger}
}

func (h *TrainRequestsHandler) Topic() string { return h.topic }

// Handle validates the request and submits it asynchronously. Malformed
// requests are permanent failures.
func (h *TrainRequestsHandler) Handle(ctx context.Context, b []byte) error {
	req := &models.TrainRequest{}
	if err := json.Unmarshal(b, req); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return queue.Permanent(fmt.Errorf("decode train request: %w", err))
	}
	if err := defaults.Set(req); err != nil {
		return queue.Permanent(err)
	}
	if err := requestValidator.StructCtx(ctx, req); err != nil {
		h.metrics.RecordError("consumer_invalid")
		return queue.Permanent(fmt.Errorf("%w: %v", ErrInvalidParams, err))
	}
	req.Async = true

	r, err := h.train.Submit(ctx, req)
	if err != nil {
		if IsClientError(err) {
			return queue.Permanent(err)
		}
		return err
	}
	h.logger.Info("train request accepted",
		xlogger.String("topic", h.topic),
		xlogger.String("report_id", r.ID),
		xlogger.String("symbol", r.Symbol),
		xlogger.String("status", string(r.Status)),
	)
	return nil
}

var _ pkgkafka.MessageHandler = (*TrainRequestsHandler)(nil)
