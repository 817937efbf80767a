package repository

import (
	"context"
	"time"

	"FinSelect/internal/domain/models"
)

// PriceSource provides read-only access to chronologically ordered candles.
type PriceSource interface {
	GetCandles(ctx context.Context, symbol string, from, to time.Time, tf Timeframe) ([]models.Candle, error)
	GetLatestNCandles(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.Candle, error)
}
