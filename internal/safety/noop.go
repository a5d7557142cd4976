package safety

import (
	"context"
	"time"
)

// Noop reports every URL safe. It stands in when no provider is configured.
type Noop struct {
	ttl time.Duration
	now func() time.Time
}

func NewNoop(ttl time.Duration, now func() time.Time) *Noop {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Noop{ttl: ttl, now: now}
}

func (n *Noop) CheckURL(context.Context, string) Verdict {
	return safeVerdict(n.now(), n.ttl, nil)
}

func (n *Noop) CheckURLs(ctx context.Context, urls []string) map[string]Verdict {
	out := make(map[string]Verdict, len(urls))
	for _, u := range urls {
		out[u] = n.CheckURL(ctx, u)
	}
	return out
}
