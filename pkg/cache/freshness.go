package cache

import "time"

// DefaultValidityMinutes is the freshness tolerance applied when a caller
// does not supply one.
const DefaultValidityMinutes = 5

// IsFresh reports whether a record stamped at lastUpdated is still recent
// enough to reuse without refetching. A zero lastUpdated (never synced) is
// never fresh. The same predicate serves nations, alliances and any other
// timestamped cached value.
func IsFresh(lastUpdated time.Time, validityMinutes int) bool {
	return isFreshAt(time.Now(), lastUpdated, validityMinutes)
}

func isFreshAt(now, lastUpdated time.Time, validityMinutes int) bool {
	if lastUpdated.IsZero() {
		return false
	}
	return now.Sub(lastUpdated) <= time.Duration(validityMinutes)*time.Minute
}
