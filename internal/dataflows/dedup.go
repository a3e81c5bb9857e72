package dataflows

import "fmt"

// DedupBy drops records whose composite key was already seen, preserving
// first-seen order. The input slice is never mutated and the function is
// idempotent: DedupBy(DedupBy(x, k), k) == DedupBy(x, k).
func DedupBy[T any](records []T, key func(T) string) []T {
	seen := make(map[string]struct{}, len(records))
	out := make([]T, 0, len(records))
	for _, record := range records {
		k := key(record)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, record)
	}
	return out
}

// sentimentKey is full-value equality: two sentiment rows are duplicates
// only when every field matches. MSPR goes through formatNumber so equal
// values with different decimal scales compare equal.
func sentimentKey(s InsiderSentiment) string {
	return fmt.Sprintf("%d|%d|%s|%s", s.Year, s.Month, formatNumber(s.Change), formatNumber(s.MSPR.InexactFloat64()))
}

// transactionKey is deliberately narrower than full equality: filings that
// differ only in share count, price or code collapse to one record.
func transactionKey(t InsiderTransaction) string {
	return fmt.Sprintf("%s|%s|%s", t.FilingDate, t.Name, formatNumber(t.Change))
}
