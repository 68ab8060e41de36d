package ta

import (
	"fmt"

	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/market"
)

// Trend labels derived from the close vs EMA12 vs EMA26 ordering.
const (
	TrendBullish = "bullish"
	TrendBearish = "bearish"
	TrendNeutral = "neutral"
)

// Report holds the latest indicator values for one series.
type Report struct {
	LastClose float64  `json:"last_close"`
	EMA12     float64  `json:"ema12"`
	EMA26     float64  `json:"ema26"`
	SMA20     *float64 `json:"sma20,omitempty"`
	RSI14     float64  `json:"rsi14"`
	MACD      float64  `json:"macd"`
	Signal    float64  `json:"signal"`
	Histogram float64  `json:"histogram"`
	Trend     string   `json:"trend"`
	Summary   string   `json:"summary"`
}

// BuildReport computes the standard indicator set over a candle series.
// Returns ErrInsufficientData when the series cannot cover MACD(12,26,9),
// the longest requirement.
func BuildReport(series market.CandleSeries) (Report, error) {
	closes := series.Closes()

	macd, err := MACD(closes, 12, 26, 9)
	if err != nil {
		return Report{}, err
	}
	ema12, err := EMA(12, closes)
	if err != nil {
		return Report{}, err
	}
	ema26, err := EMA(26, closes)
	if err != nil {
		return Report{}, err
	}
	rsi14, err := RSI(14, closes)
	if err != nil {
		return Report{}, err
	}
	sma20, err := SMA(20, closes)
	if err != nil {
		return Report{}, err
	}

	r := Report{
		LastClose: closes[len(closes)-1],
		EMA12:     ema12[len(ema12)-1],
		EMA26:     ema26[len(ema26)-1],
		SMA20:     sma20[len(sma20)-1],
		RSI14:     rsi14[len(rsi14)-1],
		MACD:      macd.MACD[len(macd.MACD)-1],
		Signal:    macd.Signal[len(macd.Signal)-1],
		Histogram: macd.Histogram[len(macd.Histogram)-1],
	}
	r.Trend = Trend(r.LastClose, r.EMA12, r.EMA26)
	r.Summary = r.summary()
	return r, nil
}

// Trend is bullish when close > ema12 > ema26, bearish when
// close < ema12 < ema26, neutral otherwise.
func Trend(lastClose, ema12, ema26 float64) string {
	switch {
	case lastClose > ema12 && ema12 > ema26:
		return TrendBullish
	case lastClose < ema12 && ema12 < ema26:
		return TrendBearish
	default:
		return TrendNeutral
	}
}

func (r Report) summary() string {
	momentum := "bearish"
	if r.Histogram > 0 {
		momentum = "bullish"
	}
	zone := "neutral"
	switch {
	case r.RSI14 > 70:
		zone = "overbought"
	case r.RSI14 < 30:
		zone = "oversold"
	}
	return fmt.Sprintf(
		"last=%.2f ema12=%.2f ema26=%.2f trend=%s | macd=%.3f signal=%.3f hist=%.3f (%s) | rsi14=%.1f (%s)",
		r.LastClose, r.EMA12, r.EMA26, r.Trend, r.MACD, r.Signal, r.Histogram, momentum, r.RSI14, zone,
	)
}
