// Package indicator holds the pure numeric parts of the strategy: EMA
// computation and crossover signal detection.
package indicator

import (
	"errors"
	"math"
)

var (
	ErrInsufficientData = errors.New("indicator: insufficient data")
	ErrInvalidPeriod    = errors.New("indicator: period must be positive")
)

// EmaResult holds the final EMA value and every value computed on the way.
// Series[0] is the SMA seed.
type EmaResult struct {
	Period int       `json:"period"`
	Value  float64   `json:"value"`
	Series []float64 `json:"series"`
}

type EmaEngine struct{}

func NewEmaEngine() *EmaEngine {
	return &EmaEngine{}
}

// Compute returns one EmaResult per requested period, or ErrInsufficientData
// if any period has fewer valid closes than it needs. Non-finite closes are ignored.
func (e *EmaEngine) Compute(closes []float64, periods []int) (map[int]EmaResult, error) {
	if len(periods) == 0 {
		return nil, ErrInvalidPeriod
	}
	valid := SanitizeCloses(closes)

	maxPeriod := 0
	for _, p := range periods {
		if p <= 0 {
			return nil, ErrInvalidPeriod
		}
		if p > maxPeriod {
			maxPeriod = p
		}
	}
	if len(valid) < maxPeriod {
		return nil, ErrInsufficientData
	}

	out := make(map[int]EmaResult, len(periods))
	for _, p := range periods {
		if _, ok := out[p]; ok {
			continue
		}
		series := emaSeries(valid, p)
		out[p] = EmaResult{
			Period: p,
			Value:  series[len(series)-1],
			Series: series,
		}
	}
	return out, nil
}

func emaSeries(closes []float64, period int) []float64 {
	k := 2.0 / (float64(period) + 1.0)
	series := make([]float64, 0, len(closes)-period+1)

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += closes[i]
	}
	ema := sum / float64(period)
	series = append(series, ema)

	for i := period; i < len(closes); i++ {
		ema = closes[i]*k + ema*(1-k)
		series = append(series, ema)
	}
	return series
}

// SanitizeCloses drops NaN and infinite values, keeping order.
func SanitizeCloses(closes []float64) []float64 {
	out := make([]float64, 0, len(closes))
	for _, c := range closes {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			continue
		}
		out = append(out, c)
	}
	return out
}
