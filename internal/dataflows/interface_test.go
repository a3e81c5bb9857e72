package dataflows

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func fastRetry() *RetryConfig {
	return &RetryConfig{
		MaxRetries: 1,
		BaseDelay:  time.Millisecond,
		MaxDelay:   time.Millisecond,
		Multiplier: 1,
	}
}

func testConfig(t *testing.T, baseURL string) *Config {
	t.Helper()
	return &Config{
		DataDir:        t.TempDir(),
		DataCacheDir:   t.TempDir(),
		ResultsDir:     t.TempDir(),
		FinnhubAPIKey:  "test-key",
		FinnhubBaseURL: baseURL,
		UseFinnhubAPI:  true,
		CacheEnabled:   false,
	}
}

func TestFinnhubNewsRealtime(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/company-news" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`[{"headline":"Apple beats estimates","summary":"Earnings up.","datetime":1753228800}]`))
	}))
	defer server.Close()

	cfg := testConfig(t, server.URL)
	df := New(cfg)
	df.finnhub.Retry = fastRetry()

	got, err := df.FinnhubNews(context.Background(), "AAPL", "2025-07-24", 7)
	if err != nil {
		t.Fatalf("FinnhubNews: %v", err)
	}
	if got.Source != SourceRealtime {
		t.Fatalf("source = %s, want real-time", got.Source)
	}
	if !strings.Contains(got.Report, "## AAPL Real-time News from 2025-07-17 to 2025-07-24:") {
		t.Fatalf("wrong report header: %q", got.Report)
	}
	if !strings.Contains(got.Report, "Apple beats estimates") {
		t.Error("remote headline missing from report")
	}
	if got.Diagnostic != nil {
		t.Errorf("unexpected diagnostic: %v", got.Diagnostic)
	}
}

func TestFinnhubNewsRemoteFailureFallsBackToCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := testConfig(t, server.URL)
	writeNewsSnapshot(t, cfg.DataDir, "AAPL", map[string][]NewsRecord{
		"2025-07-20": {{Headline: "Cached story", Summary: "From the snapshot."}},
	})

	df := New(cfg)
	df.finnhub.Retry = fastRetry()

	got, err := df.FinnhubNews(context.Background(), "AAPL", "2025-07-24", 7)
	if err != nil {
		t.Fatalf("FinnhubNews: %v", err)
	}
	if got.Source != SourceCached {
		t.Fatalf("source = %s, want cached", got.Source)
	}
	if !strings.Contains(got.Report, "## AAPL Cached News from 2025-07-17 to 2025-07-24:") {
		t.Fatalf("wrong report header: %q", got.Report)
	}
	if !strings.Contains(got.Report, "Cached story") {
		t.Error("cached headline missing from report")
	}
	if got.Diagnostic == nil {
		t.Error("fallback after a remote failure must carry a diagnostic")
	}
}

func TestFinnhubNewsEmptyRemoteFallsBackToCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	cfg := testConfig(t, server.URL)
	writeNewsSnapshot(t, cfg.DataDir, "AAPL", map[string][]NewsRecord{
		"2025-07-20": {{Headline: "Cached story"}},
	})

	df := New(cfg)
	df.finnhub.Retry = fastRetry()

	got, err := df.FinnhubNews(context.Background(), "AAPL", "2025-07-24", 7)
	if err != nil {
		t.Fatalf("FinnhubNews: %v", err)
	}
	if got.Source != SourceCached {
		t.Fatalf("an empty remote result must fall through to cache, got %s", got.Source)
	}
	if got.Diagnostic != nil {
		t.Errorf("empty remote result is not a failure, diagnostic = %v", got.Diagnostic)
	}
}

func TestFinnhubNewsBothSourcesEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	cfg := testConfig(t, server.URL)
	df := New(cfg)
	df.finnhub.Retry = fastRetry()

	got, err := df.FinnhubNews(context.Background(), "AAPL", "2025-07-24", 7)
	if err != nil {
		t.Fatalf("FinnhubNews: %v", err)
	}
	if got.Source != SourceNone {
		t.Fatalf("source = %s, want none", got.Source)
	}
	if got.Report != "No news data available for AAPL from 2025-07-17 to 2025-07-24" {
		t.Fatalf("wrong empty message: %q", got.Report)
	}
}

func TestNoCredentialSkipsRemote(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	cfg := testConfig(t, server.URL)
	cfg.FinnhubAPIKey = ""
	writeNewsSnapshot(t, cfg.DataDir, "NVDA", map[string][]NewsRecord{
		"2025-07-18": {{Headline: "Snapshot only"}},
	})

	df := New(cfg)
	df.finnhub.Retry = fastRetry()

	got, err := df.FinnhubNews(context.Background(), "NVDA", "2025-07-24", 7)
	if err != nil {
		t.Fatalf("FinnhubNews: %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("no remote call may happen without a credential, saw %d", calls.Load())
	}
	if got.Source != SourceCached {
		t.Fatalf("source = %s, want cached", got.Source)
	}
}

func TestUseFinnhubAPIFlagSkipsRemote(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	cfg := testConfig(t, server.URL)
	cfg.UseFinnhubAPI = false

	df := New(cfg)
	df.finnhub.Retry = fastRetry()

	if _, err := df.FinnhubNews(context.Background(), "AAPL", "2025-07-24", 7); err != nil {
		t.Fatalf("FinnhubNews: %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("remote disabled by flag, saw %d calls", calls.Load())
	}
}

func TestInsiderSentimentCachedDedup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := testConfig(t, server.URL)
	writeJSONSnapshot(t, cfg.DataDir, "insider_senti", "AAPL",
		`{"2025-07-01":[{"year":2025,"month":6,"change":100,"mspr":12.5},{"year":2025,"month":6,"change":100,"mspr":12.5},{"year":2025,"month":6,"change":100,"mspr":13}]}`)

	df := New(cfg)
	df.finnhub.Retry = fastRetry()

	got, err := df.FinnhubInsiderSentiment(context.Background(), "AAPL", "2025-07-24", 30)
	if err != nil {
		t.Fatalf("FinnhubInsiderSentiment: %v", err)
	}
	if got.Source != SourceCached {
		t.Fatalf("source = %s, want cached", got.Source)
	}
	if n := strings.Count(got.Report, "### 2025-6:"); n != 2 {
		t.Fatalf("expected identical rows to collapse to 2 entries, got %d:\n%s", n, got.Report)
	}
}

func TestInsiderTransactionsCachedDedup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := testConfig(t, server.URL)
	writeJSONSnapshot(t, cfg.DataDir, "insider_trans", "AAPL",
		`{"2025-07-20":[
			{"filingDate":"2025-07-20","name":"Jane Doe","change":-1000,"share":5000,"transactionPrice":120.5,"transactionCode":"S"},
			{"filingDate":"2025-07-20","name":"Jane Doe","change":-1000,"share":9999,"transactionPrice":1,"transactionCode":"P"},
			{"filingDate":"2025-07-20","name":"John Roe","change":-1000,"share":5000,"transactionPrice":120.5,"transactionCode":"S"}
		]}`)

	df := New(cfg)
	df.finnhub.Retry = fastRetry()

	got, err := df.FinnhubInsiderTransactions(context.Background(), "AAPL", "2025-07-24", 7)
	if err != nil {
		t.Fatalf("FinnhubInsiderTransactions: %v", err)
	}
	if n := strings.Count(got.Report, "### Filing Date:"); n != 2 {
		t.Fatalf("composite key should collapse to 2 entries, got %d:\n%s", n, got.Report)
	}
	if !strings.Contains(got.Report, "Shares: 5000") {
		t.Error("first-seen record should survive dedup")
	}
}

func TestInsiderTransactionsRealtimeDedup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[
			{"filingDate":"2025-07-20","name":"Jane Doe","change":-1000,"share":5000,"transactionPrice":120.5,"transactionCode":"S"},
			{"filingDate":"2025-07-20","name":"Jane Doe","change":-1000,"share":9999,"transactionPrice":1,"transactionCode":"P"}
		]}`))
	}))
	defer server.Close()

	cfg := testConfig(t, server.URL)
	df := New(cfg)
	df.finnhub.Retry = fastRetry()

	got, err := df.FinnhubInsiderTransactions(context.Background(), "AAPL", "2025-07-24", 7)
	if err != nil {
		t.Fatalf("FinnhubInsiderTransactions: %v", err)
	}
	if got.Source != SourceRealtime {
		t.Fatalf("source = %s, want real-time", got.Source)
	}
	if n := strings.Count(got.Report, "### Filing Date:"); n != 1 {
		t.Fatalf("dedup applies on the real-time path too, got %d entries", n)
	}
}

func TestCompanyProfileNoFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := testConfig(t, server.URL)
	df := New(cfg)
	df.finnhub.Retry = fastRetry()

	got, err := df.FinnhubCompanyProfile(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("FinnhubCompanyProfile: %v", err)
	}
	if got.Source != SourceNone {
		t.Fatalf("profiles have no snapshot fallback, source = %s", got.Source)
	}
	if got.Report != "Company profile data not available for AAPL" {
		t.Fatalf("wrong message: %q", got.Report)
	}
	if got.Diagnostic == nil {
		t.Error("expected a diagnostic for the failed remote attempt")
	}
}

func TestBasicFinancialsRealtime(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"metric":{"peBasicExclExtraTTM":28.5,"roeTTM":145.2}}`))
	}))
	defer server.Close()

	cfg := testConfig(t, server.URL)
	df := New(cfg)
	df.finnhub.Retry = fastRetry()

	got, err := df.FinnhubBasicFinancials(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("FinnhubBasicFinancials: %v", err)
	}
	if got.Source != SourceRealtime {
		t.Fatalf("source = %s, want real-time", got.Source)
	}
	if !strings.Contains(got.Report, "**P/E Ratio (TTM)**: 28.5") {
		t.Fatalf("metric missing: %q", got.Report)
	}
}

func stubFinnhub(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/company-news":
			w.Write([]byte(`[{"headline":"Launch day","summary":"New chip.","datetime":1742428800}]`))
		case "/stock/insider-sentiment":
			w.Write([]byte(`{"data":[{"year":2025,"month":2,"change":500,"mspr":10.1}]}`))
		case "/stock/insider-transactions":
			w.Write([]byte(`{"data":[{"filingDate":"2025-03-18","name":"Jane Doe","change":-100,"share":100,"transactionPrice":90,"transactionCode":"S"}]}`))
		case "/stock/profile2":
			w.Write([]byte(`{"name":"NVIDIA Corp","exchange":"NASDAQ","finnhubIndustry":"Semiconductors","marketCapitalization":3200000,"country":"US","currency":"USD","ipo":"1999-01-22","shareOutstanding":24400,"weburl":"https://nvidia.com"}`))
		case "/stock/metric":
			w.Write([]byte(`{"metric":{"peBasicExclExtraTTM":55.3}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
}

func TestBatchReportsOffline(t *testing.T) {
	server := stubFinnhub(t)
	defer server.Close()

	cfg := testConfig(t, server.URL)
	writePriceSnapshot(t, cfg.DataDir, "NVDA", "2015-01-01", "2025-03-25",
		weekdayBars("2025-01-02", "2025-03-21"))
	writePriceSnapshot(t, cfg.DataDir, "AAPL", "2015-01-01", "2025-03-25",
		weekdayBars("2025-01-02", "2025-03-21"))

	df := New(cfg)
	df.finnhub.Retry = fastRetry()
	df.finnhub.limiter.SetLimit(rate.Inf)

	results, err := df.BatchReports(context.Background(), []string{"nvda", "AAPL"}, "2025-03-21", 7, 2, []string{"rsi"})
	if err != nil {
		t.Fatalf("BatchReports: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 symbols, got %d", len(results))
	}

	reports, ok := results["NVDA"]
	if !ok {
		t.Fatal("symbol keys must be normalized to upper case")
	}
	for _, name := range []string{
		"news_report",
		"insider_sentiment_report",
		"insider_transactions_report",
		"company_profile_report",
		"basic_financials_report",
		"market_data_report",
		"indicator_rsi_report",
	} {
		if _, ok := reports[name]; !ok {
			t.Errorf("missing report %s", name)
		}
	}
	if !strings.Contains(reports["news_report"], "Launch day") {
		t.Error("news report missing remote headline")
	}
	if !strings.Contains(reports["market_data_report"], "## Raw Market Data for NVDA") {
		t.Errorf("market data not from the offline snapshot: %q", reports["market_data_report"])
	}
	if !strings.Contains(reports["indicator_rsi_report"], "## rsi values from 2025-03-14 to 2025-03-21:") {
		t.Error("indicator window header wrong")
	}
}

func TestInvalidSymbolRejected(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:0")
	df := New(cfg)

	if _, err := df.FinnhubNews(context.Background(), "", "2025-07-24", 7); err == nil {
		t.Fatal("empty symbol must be rejected")
	}
	if _, err := df.FinnhubNews(context.Background(), "AAPL", "24-07-2025", 7); err == nil {
		t.Fatal("malformed date must be rejected")
	}
}
