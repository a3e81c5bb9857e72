package dataflows

import (
	"context"
	"errors"

	lpconfig "github.com/longportapp/openapi-go/config"
	"github.com/longportapp/openapi-go/quote"
)

// LongportClient is an optional live candlestick source, used by the quote
// command when Longport credentials are configured.
type LongportClient struct {
	quoteCtx *quote.QuoteContext
}

func NewLongportClient(cfg *Config) (*LongportClient, error) {
	if cfg.LongportAppKey == "" || cfg.LongportAppSecret == "" || cfg.LongportAccessToken == "" {
		return nil, errors.New("longport API credentials not configured")
	}

	conf, err := lpconfig.New(lpconfig.WithConfigKey(cfg.LongportAppKey, cfg.LongportAppSecret, cfg.LongportAccessToken))
	if err != nil {
		return nil, err
	}

	quoteContext, err := quote.NewFromCfg(conf)
	if err != nil {
		return nil, err
	}

	return &LongportClient{quoteCtx: quoteContext}, nil
}

// DailyCandles returns the latest count daily candlesticks for symbol.
func (lc *LongportClient) DailyCandles(ctx context.Context, symbol string, count int) ([]*quote.Candlestick, error) {
	if lc.quoteCtx == nil {
		return nil, errors.New("quote context is nil")
	}
	return lc.quoteCtx.Candlesticks(ctx, symbol, quote.PeriodDay, int32(count), quote.AdjustTypeNo)
}

func (lc *LongportClient) Close() {
	if lc.quoteCtx != nil {
		lc.quoteCtx.Close()
	}
}
