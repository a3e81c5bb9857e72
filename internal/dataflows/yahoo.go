package dataflows

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"
)

// YahooClient fetches live price data from Yahoo Finance.
type YahooClient struct {
	cache *CacheManager
}

// NewYahooClient creates a new Yahoo Finance client
func NewYahooClient(cfg *Config) *YahooClient {
	cacheDir := filepath.Join(cfg.DataCacheDir, "yahoo_finance")
	cache := NewCacheManager(cacheDir, 24*time.Hour, cfg.CacheEnabled)

	return &YahooClient{cache: cache}
}

// HistoricalBars fetches daily bars for [start, end], both ends inclusive.
func (yc *YahooClient) HistoricalBars(ctx context.Context, symbol string, start, end time.Time) ([]PriceBar, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	cacheKey := map[string]interface{}{
		"symbol": symbol,
		"start":  start.Format(dateLayout),
		"end":    end.Format(dateLayout),
	}
	var cached []PriceBar
	if yc.cache.Get("yahoo", "historical", cacheKey, &cached) {
		return cached, nil
	}

	// Yahoo treats the end bound as exclusive; extend one day so the
	// requested range stays inclusive, then clamp when converting.
	fetchEnd := end.AddDate(0, 0, 1)
	endDay := end.Format(dateLayout)

	var result []PriceBar
	err := WithRetry(DefaultRetryConfig(), func() error {
		params := &chart.Params{
			Symbol:   symbol,
			Start:    datetime.New(&start),
			End:      datetime.New(&fetchEnd),
			Interval: datetime.OneDay,
		}

		iter := chart.Get(params)

		result = result[:0]
		for iter.Next() {
			bar := iter.Bar()

			open, _ := bar.Open.Float64()
			high, _ := bar.High.Float64()
			low, _ := bar.Low.Float64()
			closePrice, _ := bar.Close.Float64()
			adjClose, _ := bar.AdjClose.Float64()

			day := time.Unix(int64(bar.Timestamp), 0).Format(dateLayout)
			if day > endDay {
				continue
			}

			result = append(result, PriceBar{
				Date:     day,
				Open:     open,
				High:     high,
				Low:      low,
				Close:    closePrice,
				AdjClose: adjClose,
				Volume:   int64(bar.Volume),
			})
		}

		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to get historical data for %s: %w", symbol, err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	yc.cache.Set("yahoo", "historical", cacheKey, result)
	return result, nil
}

// Quote returns the latest market bar for a symbol.
func (yc *YahooClient) Quote(symbol string) (*PriceBar, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	q, err := quote.Get(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to get quote for %s: %w", symbol, err)
	}

	return &PriceBar{
		Date:     time.Now().Format(dateLayout),
		Open:     q.RegularMarketOpen,
		High:     q.RegularMarketDayHigh,
		Low:      q.RegularMarketDayLow,
		Close:    q.RegularMarketPrice,
		AdjClose: q.RegularMarketPrice,
		Volume:   int64(q.RegularMarketVolume),
	}, nil
}
