package dataflows

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const finnhubBaseURL = "https://finnhub.io/api/v1"

// FinnhubClient is the live remote provider. Each method performs one
// authenticated round trip and returns parsed records or an error; it never
// returns a partial structure. The fallback policy lives in the caller.
type FinnhubClient struct {
	client  *resty.Client
	cache   *CacheManager
	limiter *rate.Limiter

	// Retry controls the backoff applied to each request.
	Retry *RetryConfig
}

// NewFinnhubClient creates a new Finnhub client
func NewFinnhubClient(cfg *Config) *FinnhubClient {
	baseURL := cfg.FinnhubBaseURL
	if baseURL == "" {
		baseURL = finnhubBaseURL
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(10 * time.Second)
	client.SetHeader("X-Finnhub-Token", cfg.FinnhubAPIKey)

	cacheDir := filepath.Join(cfg.DataCacheDir, "finnhub")
	cache := NewCacheManager(cacheDir, 6*time.Hour, cfg.CacheEnabled)

	// Finnhub's free tier allows 60 calls/minute.
	limiter := rate.NewLimiter(rate.Every(time.Second), 5)

	return &FinnhubClient{
		client:  client,
		cache:   cache,
		limiter: limiter,
		Retry:   DefaultRetryConfig(),
	}
}

// finnhubNews is the raw company-news response item.
type finnhubNews struct {
	Category string `json:"category"`
	DateTime int64  `json:"datetime"`
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// CompanyNews gets news articles for a company inside [from, to]. Finnhub
// takes the bounds as unix timestamps for this endpoint.
func (fc *FinnhubClient) CompanyNews(ctx context.Context, symbol, from, to string) ([]NewsRecord, error) {
	symbol = NormalizeSymbol(symbol)

	cacheKey := map[string]interface{}{"symbol": symbol, "from": from, "to": to}
	var cached []NewsRecord
	if fc.cache.Get("finnhub", "company_news", cacheKey, &cached) {
		return cached, nil
	}

	fromTS, err := dateToUnix(from)
	if err != nil {
		return nil, err
	}
	toTS, err := dateToUnix(to)
	if err != nil {
		return nil, err
	}

	var raw []finnhubNews
	err = fc.get(ctx, "/company-news", map[string]string{
		"symbol": symbol,
		"from":   strconv.FormatInt(fromTS, 10),
		"to":     strconv.FormatInt(toTS, 10),
	}, &raw)
	if err != nil {
		return nil, err
	}

	result := make([]NewsRecord, 0, len(raw))
	for _, item := range raw {
		result = append(result, NewsRecord{
			Headline: item.Headline,
			Summary:  item.Summary,
			Date:     time.Unix(item.DateTime, 0).Format(dateLayout),
		})
	}

	fc.cache.Set("finnhub", "company_news", cacheKey, result)
	return result, nil
}

// InsiderSentiment gets monthly insider sentiment for a company.
func (fc *FinnhubClient) InsiderSentiment(ctx context.Context, symbol, from, to string) ([]InsiderSentiment, error) {
	symbol = NormalizeSymbol(symbol)

	cacheKey := map[string]interface{}{"symbol": symbol, "from": from, "to": to}
	var cached []InsiderSentiment
	if fc.cache.Get("finnhub", "insider_sentiment", cacheKey, &cached) {
		return cached, nil
	}

	var resp struct {
		Data []InsiderSentiment `json:"data"`
	}
	err := fc.get(ctx, "/stock/insider-sentiment", map[string]string{
		"symbol": symbol,
		"from":   from,
		"to":     to,
	}, &resp)
	if err != nil {
		return nil, err
	}

	fc.cache.Set("finnhub", "insider_sentiment", cacheKey, resp.Data)
	return resp.Data, nil
}

// InsiderTransactions gets insider trading filings for a company.
func (fc *FinnhubClient) InsiderTransactions(ctx context.Context, symbol, from, to string) ([]InsiderTransaction, error) {
	symbol = NormalizeSymbol(symbol)

	cacheKey := map[string]interface{}{"symbol": symbol, "from": from, "to": to}
	var cached []InsiderTransaction
	if fc.cache.Get("finnhub", "insider_transactions", cacheKey, &cached) {
		return cached, nil
	}

	var resp struct {
		Data []InsiderTransaction `json:"data"`
	}
	err := fc.get(ctx, "/stock/insider-transactions", map[string]string{
		"symbol": symbol,
		"from":   from,
		"to":     to,
	}, &resp)
	if err != nil {
		return nil, err
	}

	fc.cache.Set("finnhub", "insider_transactions", cacheKey, resp.Data)
	return resp.Data, nil
}

// CompanyProfile gets the company profile for a symbol.
func (fc *FinnhubClient) CompanyProfile(ctx context.Context, symbol string) (*CompanyProfile, error) {
	symbol = NormalizeSymbol(symbol)

	var cached CompanyProfile
	if fc.cache.Get("finnhub", "company_profile", symbol, &cached) {
		return &cached, nil
	}

	var profile CompanyProfile
	err := fc.get(ctx, "/stock/profile2", map[string]string{"symbol": symbol}, &profile)
	if err != nil {
		return nil, err
	}

	fc.cache.Set("finnhub", "company_profile", symbol, profile)
	return &profile, nil
}

// BasicFinancials gets the flat metric mapping for a symbol.
func (fc *FinnhubClient) BasicFinancials(ctx context.Context, symbol string) (map[string]interface{}, error) {
	symbol = NormalizeSymbol(symbol)

	var cached map[string]interface{}
	if fc.cache.Get("finnhub", "basic_financials", symbol, &cached) {
		return cached, nil
	}

	var resp struct {
		Metric map[string]interface{} `json:"metric"`
	}
	err := fc.get(ctx, "/stock/metric", map[string]string{
		"symbol": symbol,
		"metric": "all",
	}, &resp)
	if err != nil {
		return nil, err
	}

	fc.cache.Set("finnhub", "basic_financials", symbol, resp.Metric)
	return resp.Metric, nil
}

// get performs one rate-limited, retried GET and unmarshals the body.
func (fc *FinnhubClient) get(ctx context.Context, endpoint string, params map[string]string, out interface{}) error {
	if err := fc.limiter.Wait(ctx); err != nil {
		return err
	}

	return WithRetry(fc.Retry, func() error {
		resp, err := fc.client.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get(endpoint)

		if err != nil {
			return fmt.Errorf("finnhub request %s failed: %w", endpoint, err)
		}

		if resp.StatusCode() != 200 {
			return fmt.Errorf("finnhub API error %d: %s", resp.StatusCode(), resp.String())
		}

		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("failed to parse %s response: %w", endpoint, err)
		}

		return nil
	})
}

func dateToUnix(date string) (int64, error) {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", date, err)
	}
	return t.Unix(), nil
}
