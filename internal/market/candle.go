package market

import "time"

// Candle is one OHLCV bar. OpenTime is Unix milliseconds as delivered by the
// exchanges.
type Candle struct {
	OpenTime int64   `json:"t"`
	Open     float64 `json:"o"`
	High     float64 `json:"h"`
	Low      float64 `json:"l"`
	Close    float64 `json:"c"`
	Volume   float64 `json:"v"`
}

// CandleSeries is a time-ordered bar sequence, strictly increasing OpenTime.
// Immutable once fetched.
type CandleSeries []Candle

// Closes extracts the close-price sequence for indicator math.
func (s CandleSeries) Closes() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Close
	}
	return out
}

// Sorted reports whether OpenTime is strictly increasing.
func (s CandleSeries) Sorted() bool {
	for i := 1; i < len(s); i++ {
		if s[i].OpenTime <= s[i-1].OpenTime {
			return false
		}
	}
	return true
}

// Last returns the final bar, or a zero bar for an empty series.
func (s CandleSeries) Last() Candle {
	if len(s) == 0 {
		return Candle{}
	}
	return s[len(s)-1]
}

func (c Candle) Time() time.Time { return time.UnixMilli(c.OpenTime).UTC() }
