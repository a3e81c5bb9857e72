package dataflows

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

// indicatorDescriptions is the fixed catalogue of supported indicators and
// the guidance text appended to every indicator report.
var indicatorDescriptions = map[string]string{
	// Moving Averages
	"close_50_sma": "50 SMA: A medium-term trend indicator. " +
		"Usage: Identify trend direction and serve as dynamic support/resistance. " +
		"Tips: It lags price; combine with faster indicators for timely signals.",
	"close_200_sma": "200 SMA: A long-term trend benchmark. " +
		"Usage: Confirm overall market trend and identify golden/death cross setups. " +
		"Tips: It reacts slowly; best for strategic trend confirmation rather than frequent trading entries.",
	"close_10_ema": "10 EMA: A responsive short-term average. " +
		"Usage: Capture quick shifts in momentum and potential entry points. " +
		"Tips: Prone to noise in choppy markets; use alongside longer averages for filtering false signals.",
	// MACD Related
	"macd": "MACD: Computes momentum via differences of EMAs. " +
		"Usage: Look for crossovers and divergence as signals of trend changes. " +
		"Tips: Confirm with other indicators in low-volatility or sideways markets.",
	"macds": "MACD Signal: An EMA smoothing of the MACD line. " +
		"Usage: Use crossovers with the MACD line to trigger trades. " +
		"Tips: Should be part of a broader strategy to avoid false positives.",
	"macdh": "MACD Histogram: Shows the gap between the MACD line and its signal. " +
		"Usage: Visualize momentum strength and spot divergence early. " +
		"Tips: Can be volatile; complement with additional filters in fast-moving markets.",
	// Momentum Indicators
	"rsi": "RSI: Measures momentum to flag overbought/oversold conditions. " +
		"Usage: Apply 70/30 thresholds and watch for divergence to signal reversals. " +
		"Tips: In strong trends, RSI may remain extreme; always cross-check with trend analysis.",
	// Volatility Indicators
	"boll": "Bollinger Middle: A 20 SMA serving as the basis for Bollinger Bands. " +
		"Usage: Acts as a dynamic benchmark for price movement. " +
		"Tips: Combine with the upper and lower bands to effectively spot breakouts or reversals.",
	"boll_ub": "Bollinger Upper Band: Typically 2 standard deviations above the middle line. " +
		"Usage: Signals potential overbought conditions and breakout zones. " +
		"Tips: Confirm signals with other tools; prices may ride the band in strong trends.",
	"boll_lb": "Bollinger Lower Band: Typically 2 standard deviations below the middle line. " +
		"Usage: Indicates potential oversold conditions. " +
		"Tips: Use additional analysis to avoid false reversal signals.",
	"atr": "ATR: Averages true range to measure volatility. " +
		"Usage: Set stop-loss levels and adjust position sizes based on current market volatility. " +
		"Tips: It's a reactive measure, so use it as part of a broader risk management strategy.",
	// Volume-Based Indicators
	"vwma": "VWMA: A moving average weighted by volume. " +
		"Usage: Confirm trends by integrating price action with volume data. " +
		"Tips: Watch for skewed results from volume spikes; use in combination with other volume analyses.",
	"mfi": "MFI: The Money Flow Index is a momentum indicator that uses both price and volume to measure buying and selling pressure. " +
		"Usage: Identify overbought (>80) or oversold (<20) conditions and confirm the strength of trends or reversals. " +
		"Tips: Use alongside RSI or MACD to confirm signals; divergence between price and MFI can indicate potential reversals.",
}

// SupportedIndicators lists every indicator name the window computer
// accepts, sorted for stable error messages.
func SupportedIndicators() []string {
	names := make([]string, 0, len(indicatorDescriptions))
	for name := range indicatorDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StockStatsIndicatorsWindow iterates one calendar day backward at a time
// from currDate until currDate-lookBackDays and renders one sample per
// computed day. Offline mode only computes on trading days present in the
// bounded price snapshot; online mode emits a line for every calendar day.
// An unsupported indicator name is a hard input-validation failure.
func (df *DataFlows) StockStatsIndicatorsWindow(ctx context.Context, symbol, indicator, currDate string, lookBackDays int, online bool) (string, error) {
	description, ok := indicatorDescriptions[indicator]
	if !ok {
		return "", fmt.Errorf("indicator %s is not supported, please choose from: %s",
			indicator, strings.Join(SupportedIndicators(), ", "))
	}

	symbol = NormalizeSymbol(symbol)
	end, err := time.Parse(dateLayout, currDate)
	if err != nil {
		return "", fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", currDate, err)
	}
	before := end.AddDate(0, 0, -lookBackDays)

	var lines strings.Builder

	if !online {
		snap, err := LoadPriceSnapshot(df.cfg.DataDir, symbol)
		if err != nil {
			return "", err
		}

		series, err := IndicatorSeries(snap.Bars, indicator)
		if err != nil {
			return "", err
		}

		for cursor := end; !cursor.Before(before); cursor = cursor.AddDate(0, 0, -1) {
			day := cursor.Format(dateLayout)
			if !snap.HasDate(day) {
				continue // non-trading day
			}
			writeIndicatorLine(&lines, day, series)
		}
	} else {
		// Fetch enough history ahead of the window to warm up the slowest
		// indicator (200 SMA needs ~200 trading days).
		bars, err := df.yahoo.HistoricalBars(ctx, symbol, before.AddDate(0, 0, -450), end)
		if err != nil {
			log.Printf("online indicator data unavailable for %s: %v", symbol, err)
			bars = nil
		}

		series, err := IndicatorSeries(bars, indicator)
		if err != nil {
			return "", err
		}

		for cursor := end; !cursor.Before(before); cursor = cursor.AddDate(0, 0, -1) {
			writeIndicatorLine(&lines, cursor.Format(dateLayout), series)
		}
	}

	return formatIndicatorReport(indicator, before.Format(dateLayout), currDate, lines.String(), description), nil
}

// writeIndicatorLine renders one sample; a date the engine could not
// evaluate renders with an empty value rather than failing the call.
func writeIndicatorLine(b *strings.Builder, day string, series map[string]float64) {
	if value, ok := series[day]; ok {
		fmt.Fprintf(b, "%s: %s\n", day, formatNumber(value))
	} else {
		fmt.Fprintf(b, "%s: \n", day)
	}
}
