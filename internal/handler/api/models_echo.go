package api

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	models "FinSelect/internal/domain/models"
	domrepo "FinSelect/internal/domain/repository"
	"FinSelect/internal/services/elasticnet"
	"FinSelect/internal/services/features"
	"FinSelect/internal/usecase"
	xhttp "FinSelect/pkg/http"
	xlogger "FinSelect/pkg/logger"
	xutil "FinSelect/pkg/util"

	"github.com/labstack/echo/v4"
)

// ModelsEchoHandler serves model builds, stored reports, grid previews and
// the underlying price data.
type ModelsEchoHandler struct {
	logger  *xlogger.Logger
	train   *usecase.TrainService
	candles *usecase.CandlesUseCase
	mw      []echo.MiddlewareFunc
}

func NewModelsEchoHandler(
	logger *xlogger.Logger,
	train *usecase.TrainService,
	candles *usecase.CandlesUseCase,
	mw ...echo.MiddlewareFunc,
) *ModelsEchoHandler {
	return &ModelsEchoHandler{logger: logger, train: train, candles: candles, mw: mw}
}

func (h *ModelsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api", h.mw...)
	g.POST("/models", h.Train)
	g.GET("/models/:id", h.Report)
	g.GET("/specs", h.Specs)
	g.GET("/candles", h.Candles)
}

// Train runs a build inline, or queues it and answers 202 when async is set.
func (h *ModelsEchoHandler) Train(c echo.Context) error {
	req := &models.TrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	r, err := h.train.Submit(c.Request().Context(), req)
	if err != nil {
		h.logger.Warn("train request failed",
			xlogger.String("symbol", req.Symbol),
			xlogger.Bool("async", req.Async),
			xlogger.Error(err),
		)
		appErr := toAppError(err)
		if r != nil {
			appErr.WithParam("report_id", r.ID)
		}
		return xhttp.AppErrorResponse(c, appErr)
	}
	if r.Status == models.StatusQueued {
		c.Response().Header().Set(echo.HeaderLocation, "/api/models/"+r.ID)
		return xhttp.AcceptedResponse(c, r)
	}
	return xhttp.CreatedResponse(c, r)
}

func (h *ModelsEchoHandler) Report(c echo.Context) error {
	req := &models.ReportQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	r, err := h.train.Report(c.Request().Context(), req.ID)
	if err != nil {
		if !errors.Is(err, domrepo.ErrReportNotFound) {
			h.logger.Error("report lookup failed", xlogger.String("id", req.ID), xlogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	if r.Finished() {
		c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=300")
	} else {
		c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	}
	return xhttp.SuccessResponse(c, r)
}

// SpecView is one candidate feature in a grid preview.
type SpecView struct {
	models.IndicatorSpec
	Name     string `json:"name"`
	Lookback int    `json:"lookback"`
}

func (h *ModelsEchoHandler) Specs(c echo.Context) error {
	req := &models.SpecsQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	grid, err := gridFromQuery(req)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	specs, err := features.GenerateSpecs(grid)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	rows := make([]SpecView, len(specs))
	for i, s := range specs {
		rows[i] = SpecView{IndicatorSpec: s, Name: s.Name(), Lookback: s.Lookback()}
	}
	c.Response().Header().Set("X-Max-Lookback", strconv.Itoa(features.MaxLookback(specs)))
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *ModelsEchoHandler) Candles(c echo.Context) error {
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	to := xhttp.ParseTimeDefault(req.To, time.Now().UTC())
	from := xhttp.ParseTimeDefault(req.From, to.AddDate(0, 0, -30))

	res, err := h.candles.GetCandles(c.Request().Context(), usecase.GetCandlesParams{
		Symbol:    req.Symbol,
		Source:    req.Source,
		From:      from,
		To:        to,
		Timeframe: domrepo.NormalizeTimeframe(req.TF),
		Limit:     req.Limit,
	})
	if err != nil {
		h.logger.Warn("candles request failed", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func gridFromQuery(q *models.SpecsQuery) (models.IndicatorGrid, error) {
	g := models.IndicatorGrid{
		LookbackInc: q.LookbackInc,
		NLong:       q.NLong,
		NShort:      q.NShort,
	}
	for _, t := range xutil.SplitList(q.Types) {
		g.CrossoverTypes = append(g.CrossoverTypes, models.IndicatorKind(t))
	}
	for _, p := range xutil.SplitList(q.RSI) {
		v, err := xutil.ParseInts(p, ":")
		if err != nil || len(v) != 1 {
			return g, fmt.Errorf("rsi period %q is not an integer", p)
		}
		g.RSIPeriods = append(g.RSIPeriods, v[0])
	}
	for _, m := range xutil.SplitList(q.MACD) {
		v, err := xutil.ParseInts(m, ":")
		if err != nil || len(v) != 3 {
			return g, fmt.Errorf("macd %q must be fast:slow:signal", m)
		}
		g.MACD = append(g.MACD, models.MACDParams{Fast: v[0], Slow: v[1], Signal: v[2]})
	}
	return g, nil
}

// toAppError maps domain and engine errors to HTTP errors.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, domrepo.ErrReportNotFound):
		return xhttp.NotFoundError("model report not found").WithError(err)
	case errors.Is(err, usecase.ErrBuildInProgress):
		return xhttp.ConflictError(err.Error()).WithError(err)
	case errors.Is(err, elasticnet.ErrInsufficientData):
		return xhttp.UnprocessableError(err.Error()).WithError(err)
	case usecase.IsClientError(err):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	default:
		return xhttp.InternalError("model build failed").WithError(err)
	}
}
