package dataflows

import (
	"fmt"
	"math"
	"sort"
)

// IndicatorSeries computes the named indicator for every bar date it can be
// evaluated on, returning a date → value mapping. Dates inside the warm-up
// window of an indicator are simply absent.
func IndicatorSeries(bars []PriceBar, indicator string) (map[string]float64, error) {
	data := make([]PriceBar, len(bars))
	copy(data, bars)
	sort.Slice(data, func(i, j int) bool { return data[i].Date < data[j].Date })

	switch indicator {
	case "close_10_ema":
		return emaSeries(data, 10), nil
	case "close_50_sma":
		return smaSeries(data, 50), nil
	case "close_200_sma":
		return smaSeries(data, 200), nil
	case "rsi":
		return rsiSeries(data, 14), nil
	case "macd":
		return macdSeries(data), nil
	case "macds":
		return macdSignalSeries(data), nil
	case "macdh":
		return macdHistogramSeries(data), nil
	case "boll":
		return smaSeries(data, 20), nil
	case "boll_ub":
		return bollingerSeries(data, 20, 2), nil
	case "boll_lb":
		return bollingerSeries(data, 20, -2), nil
	case "atr":
		return atrSeries(data, 14), nil
	case "vwma":
		return vwmaSeries(data, 20), nil
	case "mfi":
		return mfiSeries(data, 14), nil
	default:
		return nil, fmt.Errorf("unknown indicator %s", indicator)
	}
}

func smaSeries(data []PriceBar, period int) map[string]float64 {
	result := make(map[string]float64)
	for i := period - 1; i < len(data); i++ {
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			sum += data[j].Close
		}
		result[data[i].Date] = sum / float64(period)
	}
	return result
}

// emaValues returns EMA values aligned so index k corresponds to
// data[period-1+k], seeded with the SMA of the first period bars.
func emaValues(closes []float64, period int) []float64 {
	if len(closes) < period {
		return nil
	}

	multiplier := 2.0 / (float64(period) + 1.0)
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += closes[i]
	}
	ema := sum / float64(period)

	result := []float64{ema}
	for i := period; i < len(closes); i++ {
		ema = (closes[i] * multiplier) + (ema * (1 - multiplier))
		result = append(result, ema)
	}
	return result
}

func closePrices(data []PriceBar) []float64 {
	closes := make([]float64, len(data))
	for i, bar := range data {
		closes[i] = bar.Close
	}
	return closes
}

func emaSeries(data []PriceBar, period int) map[string]float64 {
	result := make(map[string]float64)
	for k, v := range emaValues(closePrices(data), period) {
		result[data[period-1+k].Date] = v
	}
	return result
}

func rsiSeries(data []PriceBar, period int) map[string]float64 {
	result := make(map[string]float64)
	if len(data) < period+1 {
		return result
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := data[i].Close - data[i-1].Close
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period; i < len(data); i++ {
		if i > period {
			change := data[i].Close - data[i-1].Close
			var gain, loss float64
			if change > 0 {
				gain = change
			} else {
				loss = -change
			}
			avgGain = (avgGain*float64(period-1) + gain) / float64(period)
			avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		}

		if avgLoss == 0 {
			result[data[i].Date] = 100
		} else {
			rs := avgGain / avgLoss
			result[data[i].Date] = 100 - (100 / (1 + rs))
		}
	}
	return result
}

// macdLine returns the MACD values aligned so index k corresponds to
// data[25+k] (the 26-period warm-up).
func macdLine(data []PriceBar) []float64 {
	closes := closePrices(data)
	ema12 := emaValues(closes, 12)
	ema26 := emaValues(closes, 26)
	if ema26 == nil {
		return nil
	}

	// ema12[k] sits at data[11+k]; shift so both align at data[25+k].
	offset := 26 - 12
	n := len(ema26)
	macd := make([]float64, 0, n)
	for k := 0; k < n && offset+k < len(ema12); k++ {
		macd = append(macd, ema12[offset+k]-ema26[k])
	}
	return macd
}

func macdSeries(data []PriceBar) map[string]float64 {
	result := make(map[string]float64)
	for k, v := range macdLine(data) {
		result[data[25+k].Date] = v
	}
	return result
}

func macdSignalSeries(data []PriceBar) map[string]float64 {
	result := make(map[string]float64)
	macd := macdLine(data)
	// signal[k] aligns at macd index 8+k, i.e. data[25+8+k]
	for k, v := range emaValues(macd, 9) {
		result[data[33+k].Date] = v
	}
	return result
}

func macdHistogramSeries(data []PriceBar) map[string]float64 {
	macd := macdSeries(data)
	signal := macdSignalSeries(data)

	result := make(map[string]float64)
	for date, m := range macd {
		if s, ok := signal[date]; ok {
			result[date] = m - s
		}
	}
	return result
}

func bollingerSeries(data []PriceBar, period int, multiplier float64) map[string]float64 {
	result := make(map[string]float64)
	for i := period - 1; i < len(data); i++ {
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			sum += data[j].Close
		}
		sma := sum / float64(period)

		var variance float64
		for j := i - period + 1; j <= i; j++ {
			diff := data[j].Close - sma
			variance += diff * diff
		}
		variance /= float64(period)

		result[data[i].Date] = sma + multiplier*math.Sqrt(variance)
	}
	return result
}

func atrSeries(data []PriceBar, period int) map[string]float64 {
	result := make(map[string]float64)
	if len(data) < period+1 {
		return result
	}

	trueRanges := make([]float64, 0, len(data)-1)
	for i := 1; i < len(data); i++ {
		tr1 := data[i].High - data[i].Low
		tr2 := math.Abs(data[i].High - data[i-1].Close)
		tr3 := math.Abs(data[i].Low - data[i-1].Close)
		trueRanges = append(trueRanges, math.Max(tr1, math.Max(tr2, tr3)))
	}

	for i := period - 1; i < len(trueRanges); i++ {
		atr := 0.0
		for j := i - period + 1; j <= i; j++ {
			atr += trueRanges[j]
		}
		result[data[i+1].Date] = atr / float64(period)
	}
	return result
}

func vwmaSeries(data []PriceBar, period int) map[string]float64 {
	result := make(map[string]float64)
	for i := period - 1; i < len(data); i++ {
		var totalVolume, weightedSum float64
		for j := i - period + 1; j <= i; j++ {
			totalVolume += float64(data[j].Volume)
			weightedSum += data[j].Close * float64(data[j].Volume)
		}
		if totalVolume > 0 {
			result[data[i].Date] = weightedSum / totalVolume
		}
	}
	return result
}

func mfiSeries(data []PriceBar, period int) map[string]float64 {
	result := make(map[string]float64)
	if len(data) < period+1 {
		return result
	}

	for i := period; i < len(data); i++ {
		var positiveFlow, negativeFlow float64
		for j := i - period + 1; j <= i; j++ {
			typical := (data[j].High + data[j].Low + data[j].Close) / 3
			prevTypical := (data[j-1].High + data[j-1].Low + data[j-1].Close) / 3
			rawFlow := typical * float64(data[j].Volume)

			if typical > prevTypical {
				positiveFlow += rawFlow
			} else if typical < prevTypical {
				negativeFlow += rawFlow
			}
		}

		if negativeFlow == 0 {
			result[data[i].Date] = 100
		} else {
			ratio := positiveFlow / negativeFlow
			result[data[i].Date] = 100 - (100 / (1 + ratio))
		}
	}
	return result
}
