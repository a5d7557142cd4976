package safety

import "time"

// ShouldRefresh reports whether a cached verdict must be re-validated.
// A verdict missing either timestamp was never completed and always needs a check.
func ShouldRefresh(lastChecked, cacheExpiry *time.Time, now time.Time) bool {
	if lastChecked == nil || cacheExpiry == nil {
		return true
	}
	return now.After(*cacheExpiry)
}

// ErrorRecheck caps how long a verdict from a failed provider call is trusted.
const ErrorRecheck = 5 * time.Minute

// Expiry returns when v should be re-validated. A verdict carrying a
// provider error expires after ErrorRecheck at the latest.
func Expiry(v Verdict) time.Time {
	if v.Err == nil {
		return v.CacheExpiry
	}
	if short := v.CheckedAt.Add(ErrorRecheck); short.Before(v.CacheExpiry) {
		return short
	}
	return v.CacheExpiry
}
