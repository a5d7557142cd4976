package safety

import "time"

const (
	ThreatAPIError  = "API_ERROR"
	PlatformError   = "ERROR"
	DefaultCacheTTL = 24 * time.Hour
)

// Verdict is the result of one classification. Err is set whenever the
// provider call failed, independent of IsSafe, so callers can tell a
// fail-open pass from a clean one.
type Verdict struct {
	IsSafe         bool      `json:"isSafe"`
	ThreatTypes    []string  `json:"threatTypes"`
	PlatformStatus []string  `json:"platformStatus"`
	Err            error     `json:"-"`
	CheckedAt      time.Time `json:"checkedAt"`
	CacheExpiry    time.Time `json:"cacheExpiry"`
}

func safeVerdict(now time.Time, ttl time.Duration, err error) Verdict {
	return Verdict{
		IsSafe:         true,
		ThreatTypes:    []string{},
		PlatformStatus: []string{},
		Err:            err,
		CheckedAt:      now,
		CacheExpiry:    now.Add(ttl),
	}
}

func apiErrorVerdict(now time.Time, ttl time.Duration, err error) Verdict {
	return Verdict{
		IsSafe:         false,
		ThreatTypes:    []string{ThreatAPIError},
		PlatformStatus: []string{PlatformError},
		Err:            err,
		CheckedAt:      now,
		CacheExpiry:    now.Add(ttl),
	}
}
