package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"FinSelect/internal/domain/models"
	domrepo "FinSelect/internal/domain/repository"
	pkgch "FinSelect/pkg/clickhouse"
	applogger "FinSelect/pkg/logger"
)

// CHPriceSource implements PriceSource backed by ClickHouse candle tables.
type CHPriceSource struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHPriceSource(ch *pkgch.Client) *CHPriceSource {
	return &CHPriceSource{db: ch.DB(), database: ch.Database(), l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHPriceSource) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

// CandleSchema returns idempotent DDL for the candle tables read by CHPriceSource.
func CandleSchema(database string) []string {
	stmts := []string{fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database)}
	for _, tf := range []domrepo.Timeframe{domrepo.TF1m, domrepo.TF5m, domrepo.TF1h, domrepo.TF1d} {
		table, _ := tableForTF(database, tf)
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    bucket DateTime64(3, 'UTC'),
    symbol LowCardinality(String),
    open Float64,
    high Float64,
    low Float64,
    close Float64,
    vol Float64
) ENGINE = ReplacingMergeTree
ORDER BY (symbol, bucket)`, table))
	}
	return stmts
}

func (s *CHPriceSource) GetCandles(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Candle, error) {
	table, err := tableForTF(s.database, tf)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
        SELECT bucket, symbol, open, high, low, close, vol
        FROM %s FINAL
        WHERE symbol = ? AND bucket >= ? AND bucket <= ?
        ORDER BY bucket ASC
    `, table)
	return s.query(ctx, "get_candles", table, symbol, tf, false, q, symbol, from, to)
}

// GetLatestNCandles returns up to n most recent candles in ascending order.
func (s *CHPriceSource) GetLatestNCandles(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
	if n <= 0 {
		return nil, fmt.Errorf("latest candles: n must be positive, got %d", n)
	}
	table, err := tableForTF(s.database, tf)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
        SELECT bucket, symbol, open, high, low, close, vol
        FROM %s FINAL
        WHERE symbol = ?
        ORDER BY bucket DESC
        LIMIT ?
    `, table)
	return s.query(ctx, "latest_candles", table, symbol, tf, true, q, symbol, n)
}

func (s *CHPriceSource) query(ctx context.Context, op, table, symbol string, tf domrepo.Timeframe, reverse bool, q string, args ...interface{}) ([]models.Candle, error) {
	start := time.Now()
	fail := func(stage string, err error) error {
		s.l.Error("clickhouse "+op+" "+stage+" error",
			applogger.String("table", table),
			applogger.String("symbol", symbol),
			applogger.String("tf", string(tf)),
			applogger.Error(err),
		)
		return fmt.Errorf("%s %s: %w", op, stage, err)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fail("query", err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, 1024)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Bucket, &c.Symbol, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fail("scan", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("rows", err)
	}
	if reverse {
		reverseCandles(out)
	}

	s.l.Debug("clickhouse "+op+" ok",
		applogger.String("table", table),
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func reverseCandles(c []models.Candle) {
	for i, j := 0, len(c)-1; i < j; i, j = i+1, j-1 {
		c[i], c[j] = c[j], c[i]
	}
}

func tableForTF(database string, tf domrepo.Timeframe) (string, error) {
	if !domrepo.IsValidTimeframe(tf) {
		return "", fmt.Errorf("unsupported timeframe: %s", tf)
	}
	return fmt.Sprintf("%s.candles_%s", database, tf), nil
}
