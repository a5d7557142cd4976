package geo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/netip"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/sundayezeilo/linkshield/internal/breaker"
	"github.com/sundayezeilo/linkshield/internal/metrics"
)

const (
	DefaultBaseURL = "http://ip-api.com/json"
	DefaultTimeout = 5 * time.Second

	ipAPIFields = "status,message,country,countryCode,region,regionName,city,lat,lon,isp,timezone"
)

// IPAPIConfig configures the ip-api.com resolver.
type IPAPIConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// IPAPI resolves addresses with the ip-api.com JSON endpoint.
type IPAPI struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	cb      *breaker.Breaker[Location]
	logger  *slog.Logger
}

func NewIPAPI(cfg IPAPIConfig) *IPAPI {
	p := &IPAPI{
		baseURL: cfg.BaseURL,
		timeout: cfg.Timeout,
		http:    cfg.HTTPClient,
		logger:  cfg.Logger,
	}
	if p.baseURL == "" {
		p.baseURL = DefaultBaseURL
	}
	if p.timeout <= 0 {
		p.timeout = DefaultTimeout
	}
	if p.http == nil {
		p.http = &http.Client{}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.cb = breaker.New[Location]("geo-ip-api", breaker.Settings{Logger: p.logger})
	return p
}

type ipAPIResponse struct {
	Status      string  `json:"status"`
	Message     string  `json:"message"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	Region      string  `json:"region"`
	RegionName  string  `json:"regionName"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	ISP         string  `json:"isp"`
	Timezone    string  `json:"timezone"`
}

func (p *IPAPI) Resolve(ctx context.Context, ip string) (Location, error) {
	if IsLocal(ip) {
		metrics.GeoLookups.WithLabelValues("local").Inc()
		return Local(), nil
	}
	if _, err := netip.ParseAddr(ip); err != nil {
		metrics.GeoLookups.WithLabelValues("fallback").Inc()
		return Location{}, fmt.Errorf("invalid ip address %q: %w", ip, err)
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	loc, err := p.cb.Execute(func() (Location, error) {
		return p.query(ctx, ip)
	})
	metrics.GeoLookupDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GeoLookups.WithLabelValues("fallback").Inc()
		return Location{}, err
	}

	metrics.GeoLookups.WithLabelValues("success").Inc()
	return loc, nil
}

func (p *IPAPI) query(ctx context.Context, ip string) (Location, error) {
	endpoint := fmt.Sprintf("%s/%s?fields=%s", p.baseURL, url.PathEscape(ip), ipAPIFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return Location{}, fmt.Errorf("build ip-api request: %w", err)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("query ip-api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Location{}, fmt.Errorf("ip-api returned status %d", resp.StatusCode)
	}

	var body ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}, fmt.Errorf("decode ip-api response: %w", err)
	}
	if body.Status != "success" {
		return Location{}, fmt.Errorf("ip-api lookup failed: %s", body.Message)
	}

	return Location{
		Country:     orDefault(body.Country, UnknownName),
		CountryCode: orDefault(body.CountryCode, UnknownCode),
		Region:      orDefault(body.RegionName, UnknownName),
		City:        orDefault(body.City, UnknownName),
		Lat:         body.Lat,
		Lon:         body.Lon,
		ISP:         orDefault(body.ISP, UnknownName),
		Timezone:    orDefault(body.Timezone, DefaultTimezone),
	}, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
