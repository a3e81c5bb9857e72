package dataflows

import (
	"github.com/dyike/TradeDataGo/internal/config"
	"github.com/shopspring/decimal"
)

// Config is an alias for the main application config
type Config = config.Config

// NewsRecord is a single company news item. Cached snapshots store them
// without a date (the snapshot key carries it); remote results fill Date.
type NewsRecord struct {
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	Date     string `json:"date,omitempty"`
}

// InsiderSentiment is one month of aggregate insider sentiment.
type InsiderSentiment struct {
	Year   int             `json:"year"`
	Month  int             `json:"month"`
	Change float64         `json:"change"`
	MSPR   decimal.Decimal `json:"mspr"` // Monthly Share Purchase Ratio
}

// InsiderTransaction is a single SEC-reported insider trade. The same shape
// serves both the remote response and the cached snapshot records.
type InsiderTransaction struct {
	FilingDate       string          `json:"filingDate"`
	Name             string          `json:"name"`
	Change           float64         `json:"change"`
	Share            float64         `json:"share"`
	TransactionPrice decimal.Decimal `json:"transactionPrice"`
	TransactionCode  string          `json:"transactionCode"`
}

// CompanyProfile is the singleton per-symbol company record.
type CompanyProfile struct {
	Name              string  `json:"name"`
	Industry          string  `json:"finnhubIndustry"`
	MarketCap         float64 `json:"marketCapitalization"`
	Country           string  `json:"country"`
	Currency          string  `json:"currency"`
	Exchange          string  `json:"exchange"`
	IPODate           string  `json:"ipo"`
	SharesOutstanding float64 `json:"shareOutstanding"`
	Website           string  `json:"weburl"`
	Description       string  `json:"description,omitempty"`
}

// PriceBar is one daily OHLCV bar, date in YYYY-MM-DD form.
type PriceBar struct {
	Date     string  `json:"date"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	AdjClose float64 `json:"adj_close"`
	Volume   int64   `json:"volume"`
}

// IndicatorValue is a single indicator sample at a specific date.
type IndicatorValue struct {
	Date  string
	Value float64
}
