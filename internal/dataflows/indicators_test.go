package dataflows

import (
	"fmt"
	"math"
	"testing"
)

func barsFromCloses(closes []float64) []PriceBar {
	bars := make([]PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = PriceBar{
			Date:   fmt.Sprintf("2025-01-%02d", i+1),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func TestSMASeries(t *testing.T) {
	bars := barsFromCloses([]float64{1, 2, 3, 4, 5})
	series := smaSeries(bars, 3)

	if len(series) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(series))
	}
	if got := series["2025-01-03"]; got != 2 {
		t.Errorf("sma(1,2,3) = %v, want 2", got)
	}
	if got := series["2025-01-05"]; got != 4 {
		t.Errorf("sma(3,4,5) = %v, want 4", got)
	}
	if _, ok := series["2025-01-02"]; ok {
		t.Error("warm-up dates must be absent")
	}
}

func TestEMASeriesSeed(t *testing.T) {
	bars := barsFromCloses([]float64{2, 4, 6, 8})
	series := emaSeries(bars, 3)

	// Seeded with the SMA of the first three closes.
	if got := series["2025-01-03"]; got != 4 {
		t.Errorf("ema seed = %v, want 4", got)
	}
	// Next value: 8*0.5 + 4*0.5 = 6.
	if got := series["2025-01-04"]; got != 6 {
		t.Errorf("ema step = %v, want 6", got)
	}
}

func TestRSIAllGains(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	series := rsiSeries(barsFromCloses(closes), 14)

	if len(series) == 0 {
		t.Fatal("expected rsi samples")
	}
	for date, v := range series {
		if v != 100 {
			t.Errorf("rsi with only gains must be 100, got %v at %s", v, date)
		}
	}
}

func TestBollingerBandOrdering(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + math.Sin(float64(i))*5
	}
	bars := barsFromCloses(closes)

	mid := smaSeries(bars, 20)
	upper := bollingerSeries(bars, 20, 2)
	lower := bollingerSeries(bars, 20, -2)

	for date, m := range mid {
		if !(lower[date] < m && m < upper[date]) {
			t.Errorf("band ordering violated at %s: %v / %v / %v", date, lower[date], m, upper[date])
		}
	}
}

func TestATRConstantRange(t *testing.T) {
	// Constant closes with High-Low spread of 2 give a constant ATR of 2.
	series := atrSeries(barsFromCloses(make([]float64, 20)), 14)
	if len(series) == 0 {
		t.Fatal("expected atr samples")
	}
	for date, v := range series {
		if v != 2 {
			t.Errorf("atr = %v at %s, want 2", v, date)
		}
	}
}

func TestVWMAWeightsByVolume(t *testing.T) {
	bars := barsFromCloses([]float64{10, 20})
	bars[0].Volume = 1
	bars[1].Volume = 3
	series := vwmaSeries(bars, 2)

	want := (10.0*1 + 20.0*3) / 4
	if got := series["2025-01-02"]; got != want {
		t.Errorf("vwma = %v, want %v", got, want)
	}
}

func TestMACDAlignment(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i%7)
	}
	bars := barsFromCloses(closes)

	macd, err := IndicatorSeries(bars, "macd")
	if err != nil {
		t.Fatalf("IndicatorSeries: %v", err)
	}
	if _, ok := macd[bars[24].Date]; ok {
		t.Error("macd defined before the 26-bar warm-up")
	}
	if _, ok := macd[bars[25].Date]; !ok {
		t.Error("macd missing at the first defined bar")
	}

	signal, err := IndicatorSeries(bars, "macds")
	if err != nil {
		t.Fatalf("IndicatorSeries: %v", err)
	}
	if _, ok := signal[bars[32].Date]; ok {
		t.Error("signal defined before its warm-up")
	}
	if _, ok := signal[bars[33].Date]; !ok {
		t.Error("signal missing at its first defined bar")
	}

	hist, err := IndicatorSeries(bars, "macdh")
	if err != nil {
		t.Fatalf("IndicatorSeries: %v", err)
	}
	for date, h := range hist {
		want := macd[date] - signal[date]
		if math.Abs(h-want) > 1e-9 {
			t.Errorf("histogram at %s = %v, want %v", date, h, want)
		}
	}
}

func TestIndicatorSeriesUnknown(t *testing.T) {
	if _, err := IndicatorSeries(nil, "obv"); err == nil {
		t.Fatal("expected error for unknown indicator")
	}
}

func TestIndicatorSeriesSortsInput(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	bars := barsFromCloses(closes)
	// Reverse the slice; IndicatorSeries must sort by date before computing.
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}

	series, err := IndicatorSeries(bars, "close_10_ema")
	if err != nil {
		t.Fatalf("IndicatorSeries: %v", err)
	}
	// The seed at the tenth chronological bar is the SMA of closes 1..10.
	if got := series["2025-01-10"]; got != 5.5 {
		t.Errorf("ema seed = %v, want 5.5", got)
	}
}
