package usecase

import (
	"context"
	"fmt"
	"time"

	"FinSelect/internal/domain/models"
	domrepo "FinSelect/internal/domain/repository"
	"FinSelect/internal/services/features"
	xutil "FinSelect/pkg/util"
)

// CandlesUseCase reads the price history a model would be trained on.
type CandlesUseCase struct {
	sources map[string]domrepo.PriceSource
}

func NewCandlesUseCase(sources map[string]domrepo.PriceSource) *CandlesUseCase {
	return &CandlesUseCase{sources: sources}
}

type GetCandlesParams struct {
	Symbol    string
	Source    string
	From      time.Time
	To        time.Time
	Timeframe domrepo.Timeframe
	Limit     int
}

type GetCandlesResult struct {
	Symbol     string          `json:"symbol"`
	Source     string          `json:"source"`
	Timeframe  string          `json:"tf"`
	From       time.Time       `json:"from"`
	To         time.Time       `json:"to"`
	Count      int             `json:"count"`
	Candles    []models.Candle `json:"candles"`
	LogReturns []float64       `json:"log_returns"`
}

func (uc *CandlesUseCase) GetCandles(ctx context.Context, p GetCandlesParams) (*GetCandlesResult, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("%w: symbol required", ErrInvalidParams)
	}
	if p.From.After(p.To) {
		return nil, fmt.Errorf("%w: from must be <= to", ErrInvalidParams)
	}
	src, ok := uc.sources[p.Source]
	if !ok || src == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, p.Source)
	}
	if p.Limit <= 0 {
		p.Limit = 10000
	}
	if p.Limit > 50000 {
		p.Limit = 50000
	}
	p.From, p.To = xutil.AlignFromTo(p.From, p.To, p.Timeframe.Duration())

	candles, err := src.GetCandles(ctx, p.Symbol, p.From, p.To, p.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("get candles: %w", err)
	}
	if len(candles) > p.Limit {
		candles = candles[len(candles)-p.Limit:]
	}
	closes, err := features.ClosePrices(candles)
	if err != nil {
		return nil, err
	}

	return &GetCandlesResult{
		Symbol:     p.Symbol,
		Source:     p.Source,
		Timeframe:  string(p.Timeframe),
		From:       p.From,
		To:         p.To,
		Count:      len(candles),
		Candles:    candles,
		LogReturns: features.LogReturns(closes),
	}, nil
}
