package ta

import (
	"errors"
	"math"
	"testing"
)

func seq(from, to float64) []float64 {
	var out []float64
	for v := from; v <= to; v++ {
		out = append(out, v)
	}
	return out
}

func TestEMA_SmallFixture_ExactValues(t *testing.T) {
	// period=3 over 1..6: seed=(1+2+3)/3=2, k=0.5
	// then 4*.5+2*.5=3, 5*.5+3*.5=4, 6*.5+4*.5=5
	out, err := EMA(3, seq(1, 6))
	if err != nil {
		t.Fatalf("ema: %v", err)
	}
	want := []float64{2, 3, 4, 5}
	if len(out) != len(want) {
		t.Fatalf("len=%d want %d: %v", len(out), len(want), out)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out[%d]=%v want %v", i, out[i], want[i])
		}
	}
}

func TestEMA_MatchesRecursiveDefinition(t *testing.T) {
	xs := seq(1, 30)
	out, err := EMA(12, xs)
	if err != nil {
		t.Fatalf("ema: %v", err)
	}
	if len(out) != len(xs)-11 {
		t.Fatalf("len=%d want %d", len(out), len(xs)-11)
	}

	// Independent closed-form recursion.
	var seed float64
	for _, v := range xs[:12] {
		seed += v
	}
	seed /= 12
	k := 2.0 / 13.0
	e := seed
	if out[0] != seed {
		t.Fatalf("seed=%v want %v", out[0], seed)
	}
	for i, v := range xs[12:] {
		e = v*k + e*(1-k)
		if math.Abs(out[i+1]-e) > 1e-12 {
			t.Fatalf("out[%d]=%v want %v", i+1, out[i+1], e)
		}
	}
}

func TestEMA_InsufficientData(t *testing.T) {
	if _, err := EMA(12, seq(1, 5)); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("want ErrInsufficientData, got %v", err)
	}
}

func TestSMA_LeadingPositionsUndefined(t *testing.T) {
	out, err := SMA(3, []float64{1, 2, 3, 4, 5})
	if err != nil {
		t.Fatalf("sma: %v", err)
	}
	if len(out) != 5 {
		t.Fatalf("len=%d want 5", len(out))
	}
	if out[0] != nil || out[1] != nil {
		t.Fatalf("leading positions must be nil: %v %v", out[0], out[1])
	}
	for i, want := range []float64{2, 3, 4} {
		got := out[i+2]
		if got == nil || *got != want {
			t.Fatalf("out[%d]=%v want %v", i+2, got, want)
		}
	}
}

func TestRSI_BoundedAndFinite(t *testing.T) {
	xs := []float64{44.34, 44.09, 44.15, 43.61, 44.33, 44.83, 45.10, 45.42,
		45.84, 46.08, 45.89, 46.03, 45.61, 46.28, 46.28, 46.00, 46.03, 46.41,
		46.22, 45.64, 46.21, 46.25, 45.71, 46.45, 45.78, 45.35, 44.03, 44.18,
		44.22, 44.57}
	out, err := RSI(14, xs)
	if err != nil {
		t.Fatalf("rsi: %v", err)
	}
	if len(out) != len(xs)-14 {
		t.Fatalf("len=%d want %d", len(out), len(xs)-14)
	}
	for i, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 100 {
			t.Fatalf("out[%d]=%v outside [0,100]", i, v)
		}
	}
}

func TestRSI_AllGains_ExactlyHundred(t *testing.T) {
	out, err := RSI(14, seq(1, 20))
	if err != nil {
		t.Fatalf("rsi: %v", err)
	}
	for i, v := range out {
		if v != 100 {
			t.Fatalf("out[%d]=%v want exactly 100", i, v)
		}
	}
}

func TestRSI_FlatSeries_Neutral(t *testing.T) {
	xs := make([]float64, 20)
	for i := range xs {
		xs[i] = 7
	}
	out, err := RSI(14, xs)
	if err != nil {
		t.Fatalf("rsi: %v", err)
	}
	for i, v := range out {
		if v != 50 {
			t.Fatalf("out[%d]=%v want 50 for flat series", i, v)
		}
	}
}

func TestRSI_InsufficientData(t *testing.T) {
	if _, err := RSI(14, seq(1, 14)); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("want ErrInsufficientData, got %v", err)
	}
}

func TestMACD_AlignmentAndDeterminism(t *testing.T) {
	xs := make([]float64, 60)
	for i := range xs {
		xs[i] = 100 + 10*math.Sin(float64(i)/5)
	}
	a, err := MACD(xs, 12, 26, 9)
	if err != nil {
		t.Fatalf("macd: %v", err)
	}
	if len(a.MACD) != len(a.Signal) || len(a.Signal) != len(a.Histogram) {
		t.Fatalf("series misaligned: %d %d %d", len(a.MACD), len(a.Signal), len(a.Histogram))
	}
	// macd line spans n-slow+1, signal trims signalPeriod-1 more
	if want := len(xs) - 26 + 1 - 9 + 1; len(a.Signal) != want {
		t.Fatalf("signal len=%d want %d", len(a.Signal), want)
	}
	for i := range a.MACD {
		if a.Histogram[i] != a.MACD[i]-a.Signal[i] {
			t.Fatalf("histogram[%d] inconsistent", i)
		}
	}

	b, err := MACD(xs, 12, 26, 9)
	if err != nil {
		t.Fatalf("macd repeat: %v", err)
	}
	for i := range a.MACD {
		if a.MACD[i] != b.MACD[i] || a.Signal[i] != b.Signal[i] {
			t.Fatalf("macd not deterministic at %d", i)
		}
	}
}

func TestMACD_InsufficientData(t *testing.T) {
	if _, err := MACD(seq(1, 30), 12, 26, 9); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("want ErrInsufficientData, got %v", err)
	}
}
