// Package ta computes technical indicators over close-price series. Every
// function is pure: identical input yields identical output.
package ta

import (
	"errors"
	"fmt"
)

// ErrInsufficientData means the series is shorter than the longest period an
// indicator needs; the calculator refuses to compute over a short window.
var ErrInsufficientData = errors.New("insufficient data")

// rsiEpsilon floors a near-zero average loss so the ratio stays finite.
const rsiEpsilon = 1e-9

// EMA returns the exponential moving average with smoothing k=2/(period+1),
// seeded with the simple average of the first period values. The output is
// period-1 shorter than the input: out[0] corresponds to xs[period-1].
func EMA(period int, xs []float64) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("ema: period must be positive, got %d", period)
	}
	if len(xs) < period {
		return nil, fmt.Errorf("%w: ema(%d) needs %d points, got %d", ErrInsufficientData, period, period, len(xs))
	}
	var seed float64
	for _, v := range xs[:period] {
		seed += v
	}
	seed /= float64(period)

	k := 2.0 / float64(period+1)
	out := make([]float64, 0, len(xs)-period+1)
	out = append(out, seed)
	e := seed
	for _, v := range xs[period:] {
		e = v*k + e*(1-k)
		out = append(out, e)
	}
	return out, nil
}

// SMA returns the windowed mean aligned to the input: positions before the
// window fills are nil, matching the series length.
func SMA(period int, xs []float64) ([]*float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("sma: period must be positive, got %d", period)
	}
	if len(xs) < period {
		return nil, fmt.Errorf("%w: sma(%d) needs %d points, got %d", ErrInsufficientData, period, period, len(xs))
	}
	out := make([]*float64, len(xs))
	var sum float64
	for i, v := range xs {
		sum += v
		if i >= period {
			sum -= xs[i-period]
		}
		if i >= period-1 {
			m := sum / float64(period)
			out[i] = &m
		}
	}
	return out, nil
}

// RSI returns Wilder's smoothed relative strength index. The seed averages
// gains and losses over the first period deltas; later values use the
// recursion avg = (avg*(period-1)+delta)/period. Output starts at
// xs[period] and stays within [0,100].
func RSI(period int, xs []float64) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("rsi: period must be positive, got %d", period)
	}
	if len(xs) < period+1 {
		return nil, fmt.Errorf("%w: rsi(%d) needs %d points, got %d", ErrInsufficientData, period, period+1, len(xs))
	}
	var gains, losses float64
	for i := 1; i <= period; i++ {
		d := xs[i] - xs[i-1]
		if d > 0 {
			gains += d
		} else {
			losses -= d
		}
	}
	avgG := gains / float64(period)
	avgL := losses / float64(period)

	out := make([]float64, 0, len(xs)-period)
	out = append(out, rsiValue(avgG, avgL))
	for i := period + 1; i < len(xs); i++ {
		d := xs[i] - xs[i-1]
		var g, l float64
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgG = (avgG*float64(period-1) + g) / float64(period)
		avgL = (avgL*float64(period-1) + l) / float64(period)
		out = append(out, rsiValue(avgG, avgL))
	}
	return out, nil
}

func rsiValue(avgG, avgL float64) float64 {
	if avgL == 0 {
		if avgG == 0 {
			return 50 // flat series: no gains, no losses
		}
		return 100 // losses sum to zero: saturated, never NaN/Inf
	}
	if avgL < rsiEpsilon {
		avgL = rsiEpsilon
	}
	return 100 - 100/(1+avgG/avgL)
}

// MACDResult carries the three MACD series aligned on the overlapping index
// range: element i of each slice refers to the same input position.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes macd = ema(fast) - ema(slow) over the overlapping range,
// signal = ema(signalPeriod) of the macd line, histogram = macd - signal.
func MACD(xs []float64, fast, slow, signalPeriod int) (MACDResult, error) {
	if fast <= 0 || slow <= 0 || signalPeriod <= 0 {
		return MACDResult{}, fmt.Errorf("macd: periods must be positive")
	}
	if fast >= slow {
		return MACDResult{}, fmt.Errorf("macd: fast period %d must be below slow period %d", fast, slow)
	}
	need := slow + signalPeriod - 1
	if len(xs) < need {
		return MACDResult{}, fmt.Errorf("%w: macd(%d,%d,%d) needs %d points, got %d", ErrInsufficientData, fast, slow, signalPeriod, need, len(xs))
	}
	emaFast, err := EMA(fast, xs)
	if err != nil {
		return MACDResult{}, err
	}
	emaSlow, err := EMA(slow, xs)
	if err != nil {
		return MACDResult{}, err
	}
	// emaFast is longer; drop its head so both start at xs[slow-1].
	offset := len(emaFast) - len(emaSlow)
	macd := make([]float64, len(emaSlow))
	for i := range emaSlow {
		macd[i] = emaFast[i+offset] - emaSlow[i]
	}
	signal, err := EMA(signalPeriod, macd)
	if err != nil {
		return MACDResult{}, err
	}
	// Align all three on the signal's range.
	macdTail := macd[len(macd)-len(signal):]
	hist := make([]float64, len(signal))
	for i := range signal {
		hist[i] = macdTail[i] - signal[i]
	}
	return MACDResult{MACD: macdTail, Signal: signal, Histogram: hist}, nil
}
