package dataflows

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Source tags where a retrieval outcome came from.
type Source string

const (
	SourceRealtime Source = "real-time"
	SourceCached   Source = "cached"
	SourceNone     Source = "none"
)

// Retrieval is the outcome of one fallback-resolved query. Report always
// holds renderable text, including the explicit no-data message when neither
// source had anything. Diagnostic carries the remote failure that triggered
// a fallback, if any; it is informational, never a call failure.
type Retrieval struct {
	Source     Source
	Report     string
	Diagnostic error
}

// DataFlows resolves each query against the live provider first (when a
// credential and the feature flag allow it) and transparently falls back to
// the local snapshot store. Remote attempts always precede cache reads; an
// empty-but-successful remote response also falls through to the cache.
type DataFlows struct {
	cfg     *Config
	finnhub *FinnhubClient
	yahoo   *YahooClient
	scraper *NewsScraperClient
}

func New(cfg *Config) *DataFlows {
	return &DataFlows{
		cfg:     cfg,
		finnhub: NewFinnhubClient(cfg),
		yahoo:   NewYahooClient(cfg),
		scraper: NewNewsScraperClient(cfg),
	}
}

// Finnhub exposes the underlying remote client.
func (df *DataFlows) Finnhub() *FinnhubClient {
	return df.finnhub
}

// remoteEnabled is the ATTEMPT_REMOTE gate: credential present and the
// live-data flag on. Anything else routes straight to the cache.
func (df *DataFlows) remoteEnabled() bool {
	return df.cfg.FinnhubAPIKey != "" && df.cfg.UseFinnhubAPI
}

// FinnhubNews retrieves company news for the look-back window ending at
// currDate.
func (df *DataFlows) FinnhubNews(ctx context.Context, symbol, currDate string, lookBackDays int) (Retrieval, error) {
	symbol = NormalizeSymbol(symbol)
	if err := ValidateSymbol(symbol); err != nil {
		return Retrieval{}, err
	}
	from, err := lookBackWindow(currDate, lookBackDays)
	if err != nil {
		return Retrieval{}, err
	}

	var diag error
	if df.remoteEnabled() {
		items, err := df.finnhub.CompanyNews(ctx, symbol, from, currDate)
		switch {
		case err != nil:
			diag = err
			log.Printf("finnhub news error, falling back to cached data: %v", err)
		case len(items) > 0:
			return Retrieval{Source: SourceRealtime, Report: formatNewsRealtime(symbol, from, currDate, items)}, nil
		}
	}

	byDay := GetDataInRange[NewsRecord](df.cfg.DataDir, "news_data", symbol, "", from, currDate)
	if len(byDay) == 0 {
		return Retrieval{Source: SourceNone, Report: emptyNewsMessage(symbol, from, currDate), Diagnostic: diag}, nil
	}
	return Retrieval{Source: SourceCached, Report: formatNewsCached(symbol, from, currDate, byDay), Diagnostic: diag}, nil
}

// FinnhubInsiderSentiment retrieves monthly insider sentiment. The cached
// path deduplicates on full-value equality.
func (df *DataFlows) FinnhubInsiderSentiment(ctx context.Context, symbol, currDate string, lookBackDays int) (Retrieval, error) {
	symbol = NormalizeSymbol(symbol)
	if err := ValidateSymbol(symbol); err != nil {
		return Retrieval{}, err
	}
	from, err := lookBackWindow(currDate, lookBackDays)
	if err != nil {
		return Retrieval{}, err
	}

	var diag error
	if df.remoteEnabled() {
		entries, err := df.finnhub.InsiderSentiment(ctx, symbol, from, currDate)
		switch {
		case err != nil:
			diag = err
			log.Printf("finnhub insider sentiment error, falling back to cached data: %v", err)
		case len(entries) > 0:
			return Retrieval{Source: SourceRealtime, Report: formatSentimentReport(symbol, from, currDate, SourceRealtime, entries)}, nil
		}
	}

	byDay := GetDataInRange[InsiderSentiment](df.cfg.DataDir, "insider_senti", symbol, "", from, currDate)
	if len(byDay) == 0 {
		return Retrieval{Source: SourceNone, Report: emptySentimentMessage(symbol, from, currDate), Diagnostic: diag}, nil
	}

	var merged []InsiderSentiment
	for _, day := range sortedDays(byDay) {
		merged = append(merged, byDay[day]...)
	}
	merged = DedupBy(merged, sentimentKey)

	return Retrieval{Source: SourceCached, Report: formatSentimentReport(symbol, from, currDate, SourceCached, merged), Diagnostic: diag}, nil
}

// FinnhubInsiderTransactions retrieves insider trade filings. Both paths
// deduplicate on the (filingDate, name, change) composite key.
func (df *DataFlows) FinnhubInsiderTransactions(ctx context.Context, symbol, currDate string, lookBackDays int) (Retrieval, error) {
	symbol = NormalizeSymbol(symbol)
	if err := ValidateSymbol(symbol); err != nil {
		return Retrieval{}, err
	}
	from, err := lookBackWindow(currDate, lookBackDays)
	if err != nil {
		return Retrieval{}, err
	}

	var diag error
	if df.remoteEnabled() {
		entries, err := df.finnhub.InsiderTransactions(ctx, symbol, from, currDate)
		switch {
		case err != nil:
			diag = err
			log.Printf("finnhub insider transactions error, falling back to cached data: %v", err)
		case len(entries) > 0:
			entries = DedupBy(entries, transactionKey)
			return Retrieval{Source: SourceRealtime, Report: formatTransactionsReport(symbol, from, currDate, SourceRealtime, entries)}, nil
		}
	}

	byDay := GetDataInRange[InsiderTransaction](df.cfg.DataDir, "insider_trans", symbol, "", from, currDate)
	if len(byDay) == 0 {
		return Retrieval{Source: SourceNone, Report: emptyTransactionsMessage(symbol, from, currDate), Diagnostic: diag}, nil
	}

	var merged []InsiderTransaction
	for _, day := range sortedDays(byDay) {
		merged = append(merged, byDay[day]...)
	}
	merged = DedupBy(merged, transactionKey)

	return Retrieval{Source: SourceCached, Report: formatTransactionsReport(symbol, from, currDate, SourceCached, merged), Diagnostic: diag}, nil
}

// FinnhubCompanyProfile retrieves the company profile. There is no snapshot
// for profiles: a failed or empty remote attempt yields the no-data message.
func (df *DataFlows) FinnhubCompanyProfile(ctx context.Context, symbol string) (Retrieval, error) {
	symbol = NormalizeSymbol(symbol)
	if err := ValidateSymbol(symbol); err != nil {
		return Retrieval{}, err
	}

	var diag error
	if df.remoteEnabled() {
		profile, err := df.finnhub.CompanyProfile(ctx, symbol)
		switch {
		case err != nil:
			diag = err
			log.Printf("finnhub company profile error: %v", err)
		case profile.Name != "" || profile.Exchange != "":
			return Retrieval{Source: SourceRealtime, Report: formatProfileReport(symbol, profile)}, nil
		}
	}

	return Retrieval{Source: SourceNone, Report: emptyProfileMessage(symbol), Diagnostic: diag}, nil
}

// FinnhubBasicFinancials retrieves the flat ratio mapping. Like profiles,
// financials have no snapshot fallback.
func (df *DataFlows) FinnhubBasicFinancials(ctx context.Context, symbol string) (Retrieval, error) {
	symbol = NormalizeSymbol(symbol)
	if err := ValidateSymbol(symbol); err != nil {
		return Retrieval{}, err
	}

	var diag error
	if df.remoteEnabled() {
		metrics, err := df.finnhub.BasicFinancials(ctx, symbol)
		switch {
		case err != nil:
			diag = err
			log.Printf("finnhub basic financials error: %v", err)
		case len(metrics) > 0:
			return Retrieval{Source: SourceRealtime, Report: formatFinancialsReport(symbol, metrics)}, nil
		}
	}

	return Retrieval{Source: SourceNone, Report: emptyFinancialsMessage(symbol), Diagnostic: diag}, nil
}

// GoogleNews scrapes news for a free-form query over the look-back window.
// Scrape failures degrade to an empty report, mirroring the live-data policy.
func (df *DataFlows) GoogleNews(ctx context.Context, query, currDate string, lookBackDays int) (string, error) {
	from, err := lookBackWindow(currDate, lookBackDays)
	if err != nil {
		return "", err
	}

	items, err := df.scraper.Search(ctx, query, from, currDate)
	if err != nil {
		log.Printf("google news scrape failed for %q: %v", query, err)
		return "", nil
	}

	return formatGoogleNewsReport(query, from, currDate, items), nil
}

// YFinData slices the bounded historical snapshot over [startDate, endDate].
// An end date past the snapshot bound is a hard error.
func (df *DataFlows) YFinData(symbol, startDate, endDate string) (string, error) {
	symbol = NormalizeSymbol(symbol)
	snap, err := LoadPriceSnapshot(df.cfg.DataDir, symbol)
	if err != nil {
		return "", err
	}

	bars, err := snap.Range(startDate, endDate)
	if err != nil {
		return "", err
	}

	return formatPriceWindowReport(symbol, startDate, endDate, bars), nil
}

// YFinDataWindow renders the look-back window ending at currDate from the
// bounded snapshot.
func (df *DataFlows) YFinDataWindow(symbol, currDate string, lookBackDays int) (string, error) {
	from, err := lookBackWindow(currDate, lookBackDays)
	if err != nil {
		return "", err
	}
	return df.YFinData(symbol, from, currDate)
}

// YFinDataOnline fetches [startDate, endDate] live from Yahoo Finance.
func (df *DataFlows) YFinDataOnline(ctx context.Context, symbol, startDate, endDate string) (string, error) {
	symbol = NormalizeSymbol(symbol)
	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return "", fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", startDate, err)
	}
	end, err := time.Parse(dateLayout, endDate)
	if err != nil {
		return "", fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", endDate, err)
	}

	bars, err := df.yahoo.HistoricalBars(ctx, symbol, start, end)
	if err != nil {
		return "", err
	}
	if len(bars) == 0 {
		return fmt.Sprintf("No data found for symbol '%s' between %s and %s", symbol, startDate, endDate), nil
	}

	return formatPriceOnlineReport(symbol, startDate, endDate, bars), nil
}

// DefaultReportIndicators are the indicator reports SymbolReports includes.
var DefaultReportIndicators = []string{"close_50_sma", "close_10_ema", "rsi", "macd", "boll"}

// SymbolReports runs every retrieval for one symbol and returns the reports
// keyed by file-friendly names.
func (df *DataFlows) SymbolReports(ctx context.Context, symbol, currDate string, lookBackDays int, indicators []string) (map[string]string, error) {
	if len(indicators) == 0 {
		indicators = DefaultReportIndicators
	}

	reports := make(map[string]string)

	news, err := df.FinnhubNews(ctx, symbol, currDate, lookBackDays)
	if err != nil {
		return nil, err
	}
	reports["news_report"] = news.Report

	sentiment, err := df.FinnhubInsiderSentiment(ctx, symbol, currDate, lookBackDays)
	if err != nil {
		return nil, err
	}
	reports["insider_sentiment_report"] = sentiment.Report

	transactions, err := df.FinnhubInsiderTransactions(ctx, symbol, currDate, lookBackDays)
	if err != nil {
		return nil, err
	}
	reports["insider_transactions_report"] = transactions.Report

	profile, err := df.FinnhubCompanyProfile(ctx, symbol)
	if err != nil {
		return nil, err
	}
	reports["company_profile_report"] = profile.Report

	financials, err := df.FinnhubBasicFinancials(ctx, symbol)
	if err != nil {
		return nil, err
	}
	reports["basic_financials_report"] = financials.Report

	if df.cfg.OnlineTools {
		google, err := df.GoogleNews(ctx, symbol, currDate, lookBackDays)
		if err != nil {
			return nil, err
		}
		if google != "" {
			reports["google_news_report"] = google
		}

		from, err := lookBackWindow(currDate, lookBackDays)
		if err != nil {
			return nil, err
		}
		market, err := df.YFinDataOnline(ctx, symbol, from, currDate)
		if err != nil {
			log.Printf("online market data unavailable for %s: %v", symbol, err)
		} else {
			reports["market_data_report"] = market
		}
	} else {
		market, err := df.YFinDataWindow(symbol, currDate, lookBackDays)
		if err != nil {
			log.Printf("market data snapshot unavailable for %s: %v", symbol, err)
		} else {
			reports["market_data_report"] = market
		}
	}

	for _, indicator := range indicators {
		report, err := df.StockStatsIndicatorsWindow(ctx, symbol, indicator, currDate, lookBackDays, df.cfg.OnlineTools)
		if err != nil {
			return nil, err
		}
		reports["indicator_"+indicator+"_report"] = report
	}

	return reports, nil
}

// BatchReports fans SymbolReports out over symbols with bounded
// concurrency. Each symbol's retrievals stay sequential; only symbols run
// in parallel, so the per-call remote-before-cache ordering is preserved.
func (df *DataFlows) BatchReports(ctx context.Context, symbols []string, currDate string, lookBackDays, maxParallel int, indicators []string) (map[string]map[string]string, error) {
	if maxParallel <= 0 {
		maxParallel = 4
	}

	results := make(map[string]map[string]string, len(symbols))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)

	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			reports, err := df.SymbolReports(ctx, symbol, currDate, lookBackDays, indicators)
			if err != nil {
				return fmt.Errorf("reports for %s: %w", symbol, err)
			}
			mu.Lock()
			results[NormalizeSymbol(symbol)] = reports
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
