package dataflows

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// NewsScraperClient scrapes Google News search results for a query.
type NewsScraperClient struct {
	client *resty.Client
	cache  *CacheManager
}

// GoogleNewsItem is one scraped search result.
type GoogleNewsItem struct {
	Title   string `json:"title"`
	Source  string `json:"source"`
	Snippet string `json:"snippet"`
	Date    string `json:"date"`
}

// NewNewsScraperClient creates a new news scraper client
func NewNewsScraperClient(cfg *Config) *NewsScraperClient {
	cacheDir := filepath.Join(cfg.DataCacheDir, "news_scraper")
	cache := NewCacheManager(cacheDir, 2*time.Hour, cfg.CacheEnabled)

	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")

	return &NewsScraperClient{
		client: client,
		cache:  cache,
	}
}

// Search scrapes Google News results for query restricted to
// [startDate, endDate] (YYYY-MM-DD bounds, inclusive).
func (ns *NewsScraperClient) Search(ctx context.Context, query, startDate, endDate string) ([]GoogleNewsItem, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}

	cacheKey := map[string]string{"query": query, "start": startDate, "end": endDate}
	var cached []GoogleNewsItem
	if ns.cache.Get("google_news", "search", cacheKey, &cached) {
		return cached, nil
	}

	searchURL, err := buildNewsSearchURL(query, startDate, endDate)
	if err != nil {
		return nil, err
	}

	var result []GoogleNewsItem
	err = WithRetry(DefaultRetryConfig(), func() error {
		resp, err := ns.client.R().SetContext(ctx).Get(searchURL)
		if err != nil {
			return fmt.Errorf("failed to fetch Google News: %w", err)
		}

		if resp.StatusCode() != 200 {
			return fmt.Errorf("HTTP error %d when fetching Google News", resp.StatusCode())
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
		if err != nil {
			return fmt.Errorf("failed to parse HTML: %w", err)
		}

		result = parseNewsResults(doc)
		return nil
	})

	if err != nil {
		return nil, err
	}

	ns.cache.Set("google_news", "search", cacheKey, result)
	return result, nil
}

// buildNewsSearchURL constructs a date-bounded news search URL.
func buildNewsSearchURL(query, startDate, endDate string) (string, error) {
	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return "", fmt.Errorf("invalid start date %q: %w", startDate, err)
	}
	end, err := time.Parse(dateLayout, endDate)
	if err != nil {
		return "", fmt.Errorf("invalid end date %q: %w", endDate, err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("tbm", "nws")
	params.Set("tbs", fmt.Sprintf("cdr:1,cd_min:%s,cd_max:%s",
		start.Format("01/02/2006"), end.Format("01/02/2006")))

	return "https://www.google.com/search?" + params.Encode(), nil
}

// parseNewsResults extracts result cards from the search page. The class
// names track Google's current news-result markup.
func parseNewsResults(doc *goquery.Document) []GoogleNewsItem {
	var items []GoogleNewsItem

	doc.Find("div.SoaBEf").Each(func(i int, s *goquery.Selection) {
		title := strings.TrimSpace(s.Find("div.MBeuO").Text())
		if title == "" {
			return
		}

		items = append(items, GoogleNewsItem{
			Title:   title,
			Source:  strings.TrimSpace(s.Find("div.NUnG9d span").First().Text()),
			Snippet: strings.TrimSpace(s.Find("div.GI74Re").Text()),
			Date:    strings.TrimSpace(s.Find("div.OSrXXb span").First().Text()),
		})
	})

	return items
}
