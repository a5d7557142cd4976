// Package safety decides whether a destination URL may be served, using a
// cached verdict where it is still fresh and the Safe Browsing lookup API otherwise.
package safety

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/sundayezeilo/linkshield/internal/breaker"
	"github.com/sundayezeilo/linkshield/internal/metrics"
)

const (
	DefaultEndpoint      = "https://safebrowsing.googleapis.com/v4/threatMatches:find"
	DefaultClientID      = "linkshield-pro"
	DefaultClientVersion = "1.0.0"
	DefaultTimeout       = 5 * time.Second
	DefaultConcurrency   = 8

	maxResponseBody = 1 << 20
)

var requestedThreatTypes = []string{
	"MALWARE",
	"SOCIAL_ENGINEERING",
	"UNWANTED_SOFTWARE",
	"POTENTIALLY_HARMFUL_APPLICATION",
}

// Classifier produces safety verdicts. CheckURL never fails: provider errors
// are folded into the verdict.
type Classifier interface {
	CheckURL(ctx context.Context, rawURL string) Verdict
	CheckURLs(ctx context.Context, urls []string) map[string]Verdict
}

// Config configures the Safe Browsing classifier.
type Config struct {
	APIKey        string
	Endpoint      string
	ClientID      string
	ClientVersion string
	Timeout       time.Duration
	CacheTTL      time.Duration
	Concurrency   int // max in-flight calls for CheckURLs
	HTTPClient    *http.Client
	Logger        *slog.Logger
	Now           func() time.Time
}

// New returns a Safe Browsing classifier, or a Noop classifier when no API
// key is configured.
func New(cfg Config) Classifier {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.APIKey == "" {
		cfg.Logger.Warn("safe browsing api key not set, url safety checks are disabled")
		return NewNoop(cfg.CacheTTL, cfg.Now)
	}
	return NewSafeBrowsing(cfg)
}

// SafeBrowsing classifies URLs with the threatMatches:find endpoint.
type SafeBrowsing struct {
	apiKey        string
	endpoint      string
	clientID      string
	clientVersion string
	timeout       time.Duration
	ttl           time.Duration
	concurrency   int
	http          *http.Client
	cb            *breaker.Breaker[providerReply]
	logger        *slog.Logger
	now           func() time.Time
}

func NewSafeBrowsing(cfg Config) *SafeBrowsing {
	s := &SafeBrowsing{
		apiKey:        cfg.APIKey,
		endpoint:      cfg.Endpoint,
		clientID:      cfg.ClientID,
		clientVersion: cfg.ClientVersion,
		timeout:       cfg.Timeout,
		ttl:           cfg.CacheTTL,
		concurrency:   cfg.Concurrency,
		http:          cfg.HTTPClient,
		logger:        cfg.Logger,
		now:           cfg.Now,
	}
	if s.endpoint == "" {
		s.endpoint = DefaultEndpoint
	}
	if s.clientID == "" {
		s.clientID = DefaultClientID
	}
	if s.clientVersion == "" {
		s.clientVersion = DefaultClientVersion
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.ttl <= 0 {
		s.ttl = DefaultCacheTTL
	}
	if s.concurrency <= 0 {
		s.concurrency = DefaultConcurrency
	}
	if s.http == nil {
		s.http = &http.Client{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.cb = breaker.New[providerReply]("safe-browsing", breaker.Settings{Logger: s.logger})
	return s
}

type threatEntry struct {
	URL string `json:"url"`
}

type lookupRequest struct {
	Client struct {
		ClientID      string `json:"clientId"`
		ClientVersion string `json:"clientVersion"`
	} `json:"client"`
	ThreatInfo struct {
		ThreatTypes      []string      `json:"threatTypes"`
		PlatformTypes    []string      `json:"platformTypes"`
		ThreatEntryTypes []string      `json:"threatEntryTypes"`
		ThreatEntries    []threatEntry `json:"threatEntries"`
	} `json:"threatInfo"`
}

type threatMatch struct {
	ThreatType   string `json:"threatType"`
	PlatformType string `json:"platformType"`
}

type lookupResponse struct {
	Matches []threatMatch `json:"matches"`
}

// providerReply is what passes back through the breaker. Client-side
// statuses (400, 429) are replies, not breaker failures.
type providerReply struct {
	status int
	body   []byte
}

// StatusError is a non-2xx reply from the provider.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("safe browsing: unexpected status %d", e.StatusCode)
}

// failsClosed reports statuses that point at our own misconfiguration or quota.
func failsClosed(status int) bool {
	return status == http.StatusBadRequest || status == http.StatusTooManyRequests
}

func (s *SafeBrowsing) CheckURL(ctx context.Context, rawURL string) Verdict {
	start := time.Now()
	defer func() { metrics.SafetyCheckDuration.Observe(time.Since(start).Seconds()) }()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reply, err := s.cb.Execute(func() (providerReply, error) {
		return s.call(ctx, rawURL)
	})
	now := s.now()

	if err != nil {
		s.logger.WarnContext(ctx, "safe browsing lookup failed, failing open",
			"url", rawURL,
			"error", err.Error(),
			"breaker_rejected", breaker.IsRejected(err),
		)
		metrics.SafetyChecks.WithLabelValues("fail_open").Inc()
		return safeVerdict(now, s.ttl, err)
	}

	if failsClosed(reply.status) {
		serr := &StatusError{StatusCode: reply.status}
		s.logger.ErrorContext(ctx, "safe browsing rejected the request, failing closed",
			"url", rawURL,
			"status", reply.status,
		)
		metrics.SafetyChecks.WithLabelValues("fail_closed").Inc()
		return apiErrorVerdict(now, s.ttl, serr)
	}

	if reply.status < 200 || reply.status > 299 {
		serr := &StatusError{StatusCode: reply.status}
		s.logger.WarnContext(ctx, "safe browsing returned unexpected status, failing open",
			"url", rawURL,
			"status", reply.status,
		)
		metrics.SafetyChecks.WithLabelValues("fail_open").Inc()
		return safeVerdict(now, s.ttl, serr)
	}

	var resp lookupResponse
	if len(bytes.TrimSpace(reply.body)) > 0 {
		if err := json.Unmarshal(reply.body, &resp); err != nil {
			s.logger.WarnContext(ctx, "safe browsing response not decodable, failing open",
				"url", rawURL,
				"error", err.Error(),
			)
			metrics.SafetyChecks.WithLabelValues("fail_open").Inc()
			return safeVerdict(now, s.ttl, fmt.Errorf("decode safe browsing response: %w", err))
		}
	}

	if len(resp.Matches) == 0 {
		metrics.SafetyChecks.WithLabelValues("safe").Inc()
		return safeVerdict(now, s.ttl, nil)
	}

	v := Verdict{
		IsSafe:         false,
		ThreatTypes:    make([]string, 0, len(resp.Matches)),
		PlatformStatus: make([]string, 0, len(resp.Matches)),
		CheckedAt:      now,
		CacheExpiry:    now.Add(s.ttl),
	}
	for _, m := range resp.Matches {
		v.ThreatTypes = append(v.ThreatTypes, m.ThreatType)
		v.PlatformStatus = append(v.PlatformStatus, m.PlatformType)
	}
	s.logger.InfoContext(ctx, "url flagged by safe browsing",
		"url", rawURL,
		"threat_types", v.ThreatTypes,
	)
	metrics.SafetyChecks.WithLabelValues("unsafe").Inc()
	return v
}

// CheckURLs classifies every url independently and concurrently.
func (s *SafeBrowsing) CheckURLs(ctx context.Context, urls []string) map[string]Verdict {
	results := make([]Verdict, len(urls))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, u := range urls {
		g.Go(func() error {
			results[i] = s.CheckURL(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]Verdict, len(urls))
	for i, u := range urls {
		out[u] = results[i]
	}
	return out
}

func (s *SafeBrowsing) call(ctx context.Context, rawURL string) (providerReply, error) {
	var payload lookupRequest
	payload.Client.ClientID = s.clientID
	payload.Client.ClientVersion = s.clientVersion
	payload.ThreatInfo.ThreatTypes = requestedThreatTypes
	payload.ThreatInfo.PlatformTypes = []string{"ANY_PLATFORM"}
	payload.ThreatInfo.ThreatEntryTypes = []string{"URL"}
	payload.ThreatInfo.ThreatEntries = []threatEntry{{URL: rawURL}}

	body, err := json.Marshal(payload)
	if err != nil {
		return providerReply{}, fmt.Errorf("encode safe browsing request: %w", err)
	}

	endpoint, err := url.Parse(s.endpoint)
	if err != nil {
		return providerReply{}, fmt.Errorf("parse safe browsing endpoint: %w", err)
	}
	q := endpoint.Query()
	q.Set("key", s.apiKey)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return providerReply{}, fmt.Errorf("build safe browsing request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return providerReply{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return providerReply{}, fmt.Errorf("read safe browsing response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return providerReply{}, &StatusError{StatusCode: resp.StatusCode}
	}
	return providerReply{status: resp.StatusCode, body: raw}, nil
}
