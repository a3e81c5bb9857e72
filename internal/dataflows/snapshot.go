package dataflows

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// GetDataInRange reads a locally persisted provider snapshot and returns the
// subset of records whose date key falls inside [startDate, endDate], both
// ends inclusive. Days with an empty record list are discarded. A missing or
// unparsable snapshot yields an empty mapping, not an error: it just means
// there is nothing cached for this (dataType, symbol) pair.
func GetDataInRange[T any](dataDir, dataType, symbol, period, startDate, endDate string) map[string][]T {
	name := fmt.Sprintf("%s_data_formatted.json", symbol)
	if period != "" {
		name = fmt.Sprintf("%s_%s_data_formatted.json", symbol, period)
	}
	dataPath := filepath.Join(dataDir, "finnhub_data", dataType, name)

	raw, err := os.ReadFile(dataPath)
	if err != nil {
		return map[string][]T{}
	}

	var data map[string][]T
	if err := json.Unmarshal(raw, &data); err != nil {
		return map[string][]T{}
	}

	filtered := make(map[string][]T)
	for key, records := range data {
		if startDate <= key && key <= endDate && len(records) > 0 {
			filtered[key] = records
		}
	}
	return filtered
}

// sortedDays returns the date keys of a snapshot subset in ascending order.
// Snapshot files carry no ordering guarantee, so callers sort explicitly.
func sortedDays[T any](byDay map[string][]T) []string {
	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)
	return days
}

// PriceSnapshot is the immutable historical price series for one symbol,
// bounded to the fixed range encoded in its file name.
type PriceSnapshot struct {
	Symbol string
	Start  string
	End    string
	Bars   []PriceBar

	dates map[string]struct{}
}

// LoadPriceSnapshot locates and parses the bounded price CSV for symbol,
// stored as {SYMBOL}-YFin-data-{start}-{end}.csv under market_data/price_data.
func LoadPriceSnapshot(dataDir, symbol string) (*PriceSnapshot, error) {
	symbol = NormalizeSymbol(symbol)
	pattern := filepath.Join(dataDir, "market_data", "price_data",
		fmt.Sprintf("%s-YFin-data-*.csv", symbol))

	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return nil, fmt.Errorf("no price snapshot found for %s under %s", symbol, dataDir)
	}
	path := matches[0]

	base := strings.TrimSuffix(filepath.Base(path), ".csv")
	bounds := strings.TrimPrefix(base, fmt.Sprintf("%s-YFin-data-", symbol))
	if len(bounds) != 21 { // YYYY-MM-DD-YYYY-MM-DD
		return nil, fmt.Errorf("malformed price snapshot name %s", filepath.Base(path))
	}

	snap := &PriceSnapshot{
		Symbol: symbol,
		Start:  bounds[:10],
		End:    bounds[11:],
		dates:  make(map[string]struct{}),
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open price snapshot: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse price snapshot %s: %w", filepath.Base(path), err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("price snapshot %s has no data rows", filepath.Base(path))
	}

	col := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		col[strings.TrimSpace(h)] = i
	}
	for _, required := range []string{"Date", "Open", "High", "Low", "Close", "Volume"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("price snapshot %s missing column %s", filepath.Base(path), required)
		}
	}

	for _, row := range rows[1:] {
		date := row[col["Date"]]
		if len(date) > 10 {
			date = date[:10] // strip time/zone suffix
		}
		bar := PriceBar{
			Date:  date,
			Open:  parseFloat(row[col["Open"]]),
			High:  parseFloat(row[col["High"]]),
			Low:   parseFloat(row[col["Low"]]),
			Close: parseFloat(row[col["Close"]]),
		}
		if i, ok := col["Adj Close"]; ok {
			bar.AdjClose = parseFloat(row[i])
		} else {
			bar.AdjClose = bar.Close
		}
		bar.Volume = int64(parseFloat(row[col["Volume"]]))

		snap.Bars = append(snap.Bars, bar)
		snap.dates[date] = struct{}{}
	}

	sort.Slice(snap.Bars, func(i, j int) bool { return snap.Bars[i].Date < snap.Bars[j].Date })

	return snap, nil
}

// HasDate reports whether date is a trading day present in the snapshot.
func (s *PriceSnapshot) HasDate(date string) bool {
	_, ok := s.dates[date]
	return ok
}

// Range returns the bars inside [start, end] inclusive. An end date past the
// snapshot's upper bound is a hard error: unlike the live query kinds there
// is no fallback source for history outside the known range.
func (s *PriceSnapshot) Range(start, end string) ([]PriceBar, error) {
	if end > s.End {
		return nil, fmt.Errorf("%s is outside of the data range of %s to %s", end, s.Start, s.End)
	}

	var bars []PriceBar
	for _, bar := range s.Bars {
		if start <= bar.Date && bar.Date <= end {
			bars = append(bars, bar)
		}
	}
	return bars, nil
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}
