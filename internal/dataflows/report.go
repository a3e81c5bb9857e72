package dataflows

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
)

// The report wording below is consumed verbatim by downstream report
// assembly and must not drift.

const sentimentTrailer = "The change field refers to the net buying/selling from all insiders' transactions. The mspr field refers to monthly share purchase ratio."

const transactionsRealtimeTrailer = "The change field reflects the variation in share count—here a negative number indicates a reduction in holdings—while share specifies the total number of shares involved. The transactionPrice denotes the per-share price at which the trade was executed, and transactionDate marks when the transaction occurred. The name field identifies the insider making the trade, and transactionCode (e.g., S for sale) clarifies the nature of the transaction. FilingDate records when the transaction was officially reported, and the unique id links to the specific SEC filing, as indicated by the source."

const transactionsCachedTrailer = transactionsRealtimeTrailer + " Additionally, the symbol ties the transaction to a particular company, isDerivative flags whether the trade involves derivative securities, and currency notes the currency context of the transaction."

func formatNewsRealtime(symbol, from, to string, items []NewsRecord) string {
	var b strings.Builder
	for _, n := range items {
		headline := n.Headline
		if headline == "" {
			headline = "No headline"
		}
		summary := n.Summary
		if summary == "" {
			summary = "No summary available"
		}
		fmt.Fprintf(&b, "### %s (%s)\n%s\n\n", headline, n.Date, summary)
	}
	return fmt.Sprintf("## %s Real-time News from %s to %s:\n", symbol, from, to) + b.String()
}

func formatNewsCached(symbol, from, to string, byDay map[string][]NewsRecord) string {
	var b strings.Builder
	for _, day := range sortedDays(byDay) {
		for _, n := range byDay[day] {
			fmt.Fprintf(&b, "### %s (%s)\n%s\n\n", n.Headline, day, n.Summary)
		}
	}
	return fmt.Sprintf("## %s Cached News from %s to %s:\n", symbol, from, to) + b.String()
}

func emptyNewsMessage(symbol, from, to string) string {
	return fmt.Sprintf("No news data available for %s from %s to %s", symbol, from, to)
}

func formatSentimentEntries(entries []InsiderSentiment) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "### %d-%d:\nChange: %s\nMonthly Share Purchase Ratio: %s\n\n",
			e.Year, e.Month, formatNumber(e.Change), e.MSPR.String())
	}
	return b.String()
}

func formatSentimentReport(symbol, from, to string, source Source, entries []InsiderSentiment) string {
	label := "Cached"
	if source == SourceRealtime {
		label = "Real-time"
	}
	return fmt.Sprintf("## %s %s Insider Sentiment from %s to %s:\n", symbol, label, from, to) +
		formatSentimentEntries(entries) + sentimentTrailer
}

func emptySentimentMessage(symbol, from, to string) string {
	return fmt.Sprintf("No insider sentiment data available for %s from %s to %s", symbol, from, to)
}

func formatTransactionsReport(symbol, from, to string, source Source, entries []InsiderTransaction) string {
	var b strings.Builder
	if source == SourceRealtime {
		for _, t := range entries {
			fmt.Fprintf(&b, "### Filing Date: %s, %s:\nChange: %s\nShares: %s\nTransaction Price: %s\nTransaction Code: %s\n\n",
				orNA(t.FilingDate), orNA(t.Name), formatNumber(t.Change), formatNumber(t.Share),
				t.TransactionPrice.String(), orNA(t.TransactionCode))
		}
		return fmt.Sprintf("## %s Real-time Insider Transactions from %s to %s:\n", symbol, from, to) +
			b.String() + transactionsRealtimeTrailer
	}
	for _, t := range entries {
		fmt.Fprintf(&b, "### Filing Date: %s, %s:\nChange:%s\nShares: %s\nTransaction Price: %s\nTransaction Code: %s\n\n",
			t.FilingDate, t.Name, formatNumber(t.Change), formatNumber(t.Share),
			t.TransactionPrice.String(), t.TransactionCode)
	}
	return fmt.Sprintf("## %s Cached Insider Transactions from %s to %s:\n", symbol, from, to) +
		b.String() + transactionsCachedTrailer
}

func emptyTransactionsMessage(symbol, from, to string) string {
	return fmt.Sprintf("No insider transaction data available for %s from %s to %s", symbol, from, to)
}

func formatProfileReport(symbol string, p *CompanyProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s Company Profile:\n\n", symbol)
	fmt.Fprintf(&b, "**Company Name**: %s\n", orNA(p.Name))
	fmt.Fprintf(&b, "**Industry**: %s\n", orNA(p.Industry))
	fmt.Fprintf(&b, "**Market Cap**: $%sM\n", numberOrNA(p.MarketCap))
	fmt.Fprintf(&b, "**Country**: %s\n", orNA(p.Country))
	fmt.Fprintf(&b, "**Currency**: %s\n", orNA(p.Currency))
	fmt.Fprintf(&b, "**Exchange**: %s\n", orNA(p.Exchange))
	fmt.Fprintf(&b, "**IPO Date**: %s\n", orNA(p.IPODate))
	fmt.Fprintf(&b, "**Outstanding Shares**: %sM\n", numberOrNA(p.SharesOutstanding))
	fmt.Fprintf(&b, "**Website**: %s\n\n", orNA(p.Website))

	if p.Description != "" {
		desc := p.Description
		if len(desc) > 500 {
			desc = desc[:500] + "..."
		}
		fmt.Fprintf(&b, "**Description**: %s\n", desc)
	}

	return b.String()
}

func emptyProfileMessage(symbol string) string {
	return fmt.Sprintf("Company profile data not available for %s", symbol)
}

func formatFinancialsReport(symbol string, metrics map[string]interface{}) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s Basic Financial Metrics:\n\n", symbol)

	b.WriteString("### Valuation Metrics\n")
	fmt.Fprintf(&b, "**P/E Ratio (TTM)**: %s\n", metricString(metrics, "peBasicExclExtraTTM"))
	fmt.Fprintf(&b, "**P/B Ratio (TTM)**: %s\n", metricString(metrics, "pbAnnual"))
	fmt.Fprintf(&b, "**P/S Ratio (TTM)**: %s\n", metricString(metrics, "psAnnual"))
	fmt.Fprintf(&b, "**EV/EBITDA (TTM)**: %s\n\n", metricString(metrics, "evEbitdaTTM"))

	b.WriteString("### Profitability Metrics\n")
	fmt.Fprintf(&b, "**ROE (TTM)**: %s%%\n", metricString(metrics, "roeTTM"))
	fmt.Fprintf(&b, "**ROA (TTM)**: %s%%\n", metricString(metrics, "roaTTM"))
	fmt.Fprintf(&b, "**ROI (TTM)**: %s%%\n", metricString(metrics, "roiTTM"))
	fmt.Fprintf(&b, "**Gross Margin (TTM)**: %s%%\n", metricString(metrics, "grossMarginTTM"))
	fmt.Fprintf(&b, "**Operating Margin (TTM)**: %s%%\n", metricString(metrics, "operatingMarginTTM"))
	fmt.Fprintf(&b, "**Net Profit Margin (TTM)**: %s%%\n\n", metricString(metrics, "netProfitMarginTTM"))

	b.WriteString("### Financial Health\n")
	fmt.Fprintf(&b, "**Current Ratio (Annual)**: %s\n", metricString(metrics, "currentRatioAnnual"))
	fmt.Fprintf(&b, "**Quick Ratio (Annual)**: %s\n", metricString(metrics, "quickRatioAnnual"))
	fmt.Fprintf(&b, "**Debt/Equity (Annual)**: %s\n", metricString(metrics, "totalDebtToEquityAnnual"))
	fmt.Fprintf(&b, "**Long-term Debt/Capital (Annual)**: %s\n\n", metricString(metrics, "longTermDebtCapitalAnnual"))

	b.WriteString("### Growth Metrics\n")
	fmt.Fprintf(&b, "**Revenue Growth (TTM YoY)**: %s%%\n", metricString(metrics, "revenueGrowthTTMYoy"))
	fmt.Fprintf(&b, "**EPS Growth (TTM YoY)**: %s%%\n", metricString(metrics, "epsGrowthTTMYoy"))

	return b.String()
}

func emptyFinancialsMessage(symbol string) string {
	return fmt.Sprintf("Basic financial metrics not available for %s", symbol)
}

func formatGoogleNewsReport(query, from, to string, items []GoogleNewsItem) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	for _, n := range items {
		fmt.Fprintf(&b, "### %s (source: %s) \n\n%s\n\n", n.Title, n.Source, n.Snippet)
	}
	return fmt.Sprintf("## %s Google News, from %s to %s:\n\n%s", query, from, to, b.String())
}

// formatPriceTable renders daily bars as a fixed-width table.
func formatPriceTable(bars []PriceBar) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Date\tOpen\tHigh\tLow\tClose\tAdj Close\tVolume")
	for _, bar := range bars {
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%d\n",
			bar.Date, bar.Open, bar.High, bar.Low, bar.Close, bar.AdjClose, bar.Volume)
	}
	w.Flush()
	return b.String()
}

func formatPriceWindowReport(symbol, from, to string, bars []PriceBar) string {
	return fmt.Sprintf("## Raw Market Data for %s from %s to %s:\n\n", symbol, from, to) +
		formatPriceTable(bars)
}

func formatPriceOnlineReport(symbol, from, to string, bars []PriceBar) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Stock data for %s from %s to %s\n", symbol, from, to)
	fmt.Fprintf(&b, "# Total records: %d\n", len(bars))
	fmt.Fprintf(&b, "# Data retrieved on: %s\n\n", time.Now().Format("2006-01-02 15:04:05"))
	b.WriteString("Date,Open,High,Low,Close,Adj Close,Volume\n")
	for _, bar := range bars {
		fmt.Fprintf(&b, "%s,%.2f,%.2f,%.2f,%.2f,%.2f,%d\n",
			bar.Date, bar.Open, bar.High, bar.Low, bar.Close, bar.AdjClose, bar.Volume)
	}
	return b.String()
}

func formatIndicatorReport(indicator, from, to, lines, description string) string {
	return fmt.Sprintf("## %s values from %s to %s:\n\n", indicator, from, to) +
		lines + "\n\n" + description
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func numberOrNA(v float64) string {
	if v == 0 {
		return "N/A"
	}
	return formatNumber(v)
}

// metricString fetches a named ratio defensively: absent or non-numeric
// values render as N/A so downstream formatting stays total.
func metricString(metrics map[string]interface{}, key string) string {
	v, ok := metrics[key]
	if !ok || v == nil {
		return "N/A"
	}
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case string:
		return n
	default:
		return fmt.Sprintf("%v", n)
	}
}
