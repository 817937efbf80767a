package models

// Request DTOs for the HTTP API. Bound by echo, defaulted by creasty/defaults
// and validated by validator/v10.

// TrainRequest is the body of POST /api/models.
type TrainRequest struct {
	Symbol    string `json:"symbol" validate:"required"`
	Timeframe string `json:"tf" default:"1d" validate:"oneof=1m 5m 1h 1d"`
	// Source, Alpha, NFolds and Workers fall back to the server configuration when zero.
	Source string `json:"source" validate:"omitempty,oneof=clickhouse file"`
	N      int    `json:"n" default:"2000" validate:"gte=50,lte=100000"`

	// Buffer widens the CV purge. Values below the grid's max lookback are raised to it.
	Alpha   float64 `json:"alpha" validate:"omitempty,gt=0,lte=1"`
	NFolds  int     `json:"n_folds" validate:"omitempty,gte=2,lte=50"`
	NTest   int     `json:"n_test" validate:"gte=0"`
	Buffer  int     `json:"buffer" validate:"gte=0"`
	Async   bool    `json:"async"`
	Workers int     `json:"workers" validate:"gte=0,lte=64"`

	Grid *IndicatorGrid `json:"grid,omitempty"`
}

// ReportQuery selects a stored report.
type ReportQuery struct {
	ID string `param:"id" validate:"required,uuid"`
}

// SpecsQuery previews the candidate features a grid would generate. RSI lists
// periods and MACD lists fast:slow:signal triples, both comma separated.
type SpecsQuery struct {
	LookbackInc int    `query:"lookback_inc" default:"5" validate:"gte=1,lte=500"`
	NLong       int    `query:"n_long" default:"4" validate:"gte=1,lte=50"`
	NShort      int    `query:"n_short" default:"3" validate:"gte=1,lte=50"`
	Types       string `query:"types" default:"ma,ema,roc,rsi_cross,macd_cross"`
	RSI         string `query:"rsi" default:"14"`
	MACD        string `query:"macd" default:"12:26:9"`
}

// CandlesRequest reads a price range for inspection.
type CandlesRequest struct {
	Symbol string `query:"symbol" validate:"required"`
	TF     string `query:"tf" default:"1d" validate:"oneof=1m 5m 1h 1d"`
	Source string `query:"source" default:"clickhouse" validate:"oneof=clickhouse file"`
	From   string `query:"from"`
	To     string `query:"to"`
	Limit  int    `query:"limit" default:"1000" validate:"gte=1,lte=50000"`
}
