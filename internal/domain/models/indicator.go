package models

import "fmt"

// IndicatorKind names an indicator family.
type IndicatorKind string

const (
	// Crossovers: short-period value minus long-period value.
	KindMA        IndicatorKind = "ma"
	KindEMA       IndicatorKind = "ema"
	KindROC       IndicatorKind = "roc"
	KindRSICross  IndicatorKind = "rsi_cross"
	KindMACDCross IndicatorKind = "macd_cross"

	// Standalone oscillators.
	KindRSI  IndicatorKind = "rsi"
	KindMACD IndicatorKind = "macd"
)

// MACDCrossSignal is the signal period used by MACD crossovers.
const MACDCrossSignal = 9

// IsCrossover reports whether k is built from a (short, long) pair.
func (k IndicatorKind) IsCrossover() bool {
	switch k {
	case KindMA, KindEMA, KindROC, KindRSICross, KindMACDCross:
		return true
	}
	return false
}

// IndicatorSpec describes one candidate feature column. Only the parameters of
// its Kind are meaningful; the rest stay zero.
type IndicatorSpec struct {
	Kind   IndicatorKind `json:"kind"`
	Short  int           `json:"short,omitempty"`
	Long   int           `json:"long,omitempty"`
	Period int           `json:"period,omitempty"`
	Fast   int           `json:"fast,omitempty"`
	Slow   int           `json:"slow,omitempty"`
	Signal int           `json:"signal,omitempty"`
}

func MACrossover(short, long int) IndicatorSpec {
	return IndicatorSpec{Kind: KindMA, Short: short, Long: long}
}

func EMACrossover(short, long int) IndicatorSpec {
	return IndicatorSpec{Kind: KindEMA, Short: short, Long: long}
}

func ROCCrossover(short, long int) IndicatorSpec {
	return IndicatorSpec{Kind: KindROC, Short: short, Long: long}
}

func RSICrossover(short, long int) IndicatorSpec {
	return IndicatorSpec{Kind: KindRSICross, Short: short, Long: long}
}

// MACDCrossover is the MACD histogram with fast=short, slow=long and a 9-bar signal.
func MACDCrossover(short, long int) IndicatorSpec {
	return IndicatorSpec{Kind: KindMACDCross, Short: short, Long: long}
}

func RSI(period int) IndicatorSpec {
	return IndicatorSpec{Kind: KindRSI, Period: period}
}

func MACD(fast, slow, signal int) IndicatorSpec {
	return IndicatorSpec{Kind: KindMACD, Fast: fast, Slow: slow, Signal: signal}
}

// Crossover returns the crossover spec of kind k, or false if k is not a crossover.
func Crossover(k IndicatorKind, short, long int) (IndicatorSpec, bool) {
	if !k.IsCrossover() {
		return IndicatorSpec{}, false
	}
	return IndicatorSpec{Kind: k, Short: short, Long: long}, true
}

// Lookback is the number of prior prices the indicator needs before its first value.
func (s IndicatorSpec) Lookback() int {
	switch s.Kind {
	case KindMACDCross:
		return s.Long + MACDCrossSignal
	case KindMA, KindEMA, KindROC, KindRSICross:
		return s.Long
	case KindRSI:
		return s.Period
	case KindMACD:
		return s.Slow + s.Signal
	default:
		return 0
	}
}

// Name is a stable column label such as "ema_5_20" or "macd_12_26_9".
func (s IndicatorSpec) Name() string {
	switch s.Kind {
	case KindRSI:
		return fmt.Sprintf("rsi_%d", s.Period)
	case KindMACD:
		return fmt.Sprintf("macd_%d_%d_%d", s.Fast, s.Slow, s.Signal)
	default:
		return fmt.Sprintf("%s_%d_%d", s.Kind, s.Short, s.Long)
	}
}

func (s IndicatorSpec) String() string { return s.Name() }

// MACDParams is one (fast, slow, signal) triple.
type MACDParams struct {
	Fast   int `yaml:"fast" json:"fast" validate:"gte=1"`
	Slow   int `yaml:"slow" json:"slow" validate:"gtfield=Fast"`
	Signal int `yaml:"signal" json:"signal" validate:"gte=1"`
}

// IndicatorGrid enumerates candidate indicators: every crossover type over
// NLong long lookbacks (multiples of LookbackInc) and NShort shorts per long,
// then the standalone RSI periods and MACD triples.
type IndicatorGrid struct {
	LookbackInc    int             `yaml:"lookback_inc" json:"lookback_inc" validate:"gte=0"`
	NLong          int             `yaml:"n_long" json:"n_long" validate:"gte=0"`
	NShort         int             `yaml:"n_short" json:"n_short" validate:"gte=0"`
	CrossoverTypes []IndicatorKind `yaml:"crossover_types" json:"crossover_types" validate:"unique,dive,oneof=ma ema roc rsi_cross macd_cross"`
	RSIPeriods     []int           `yaml:"rsi_periods" json:"rsi_periods" validate:"unique,dive,gte=2"`
	MACD           []MACDParams    `yaml:"macd" json:"macd" validate:"dive"`
}

// ExpectedCount is the number of specs the grid generates.
func (g IndicatorGrid) ExpectedCount() int {
	return g.NLong*g.NShort*len(g.CrossoverTypes) + len(g.RSIPeriods) + len(g.MACD)
}
