package e2e

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sundayezeilo/linkshield/internal/app"
	"github.com/sundayezeilo/linkshield/internal/config"
	"github.com/sundayezeilo/linkshield/internal/db/migrate"
	"github.com/sundayezeilo/linkshield/internal/httpx"
	"github.com/sundayezeilo/linkshield/internal/server"
)

const (
	testJWTSecret = "e2e-secret-e2e-secret-e2e-secret!"
	testBaseURL   = "http://lnk.test"
)

// fakeSafeBrowsing answers threatMatches:find, reporting MALWARE for any
// URL marked with flag.
type fakeSafeBrowsing struct {
	*httptest.Server
	calls atomic.Int64

	mu      sync.Mutex
	flagged map[string]bool
}

func newFakeSafeBrowsing(t *testing.T) *fakeSafeBrowsing {
	t.Helper()
	f := &fakeSafeBrowsing{flagged: map[string]bool{}}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)

		var req struct {
			ThreatInfo struct {
				ThreatEntries []struct {
					URL string `json:"url"`
				} `json:"threatEntries"`
			} `json:"threatInfo"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		type match struct {
			ThreatType   string `json:"threatType"`
			PlatformType string `json:"platformType"`
		}
		resp := struct {
			Matches []match `json:"matches,omitempty"`
		}{}
		for _, e := range req.ThreatInfo.ThreatEntries {
			if f.isFlagged(e.URL) {
				resp.Matches = append(resp.Matches, match{ThreatType: "MALWARE", PlatformType: "ANY_PLATFORM"})
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeSafeBrowsing) flag(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flagged[url] = true
}

func (f *fakeSafeBrowsing) isFlagged(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flagged[url]
}

// testApp is the full router served over a real listener.
type testApp struct {
	ts     *httptest.Server
	pool   *pgxpool.Pool
	sb     *fakeSafeBrowsing
	client *http.Client
	owner  uuid.UUID
	token  string
	admin  string
}

type appOptions struct {
	redis         bool
	trackingMode  string
	anonLinkLimit int
}

func setupTestApp(t *testing.T, opts appOptions) *testApp {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	connStr := startPostgres(t, ctx)
	logger := setupTestLogger()

	if err := migrate.Up(connStr, logger); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}
	poolConfig.MaxConns = 20
	poolConfig.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	var rdb redis.Cmdable
	if opts.redis {
		rdb = startRedis(t, ctx)
	}

	sb := newFakeSafeBrowsing(t)
	cfg := testConfig(sb.URL, opts)

	c := app.Wire(cfg, logger, pool, rdb)
	t.Cleanup(func() {
		if err := c.Dispatcher.Close(context.Background()); err != nil {
			t.Errorf("failed to close dispatcher: %v", err)
		}
	})

	srv := server.New(cfg, logger, server.Deps{
		Links:      c.Handler,
		Admin:      c.AdminAPI,
		Redirector: c.Redirector,
		DB:         pool,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	owner := uuid.New()
	token, err := httpx.SignToken(httpx.AuthConfig{Secret: []byte(testJWTSecret)}, httpx.Identity{Owner: owner}, time.Hour)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	adminToken, err := httpx.SignToken(httpx.AuthConfig{Secret: []byte(testJWTSecret)},
		httpx.Identity{Owner: uuid.New(), Role: httpx.RoleAdmin}, time.Hour)
	if err != nil {
		t.Fatalf("failed to sign admin token: %v", err)
	}

	return &testApp{
		ts:   ts,
		pool: pool,
		sb:   sb,
		client: &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		owner: owner,
		token: token,
		admin: adminToken,
	}
}

func startPostgres(t *testing.T, ctx context.Context) string {
	t.Helper()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Errorf("failed to terminate postgres container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}
	return connStr
}

func startRedis(t *testing.T, ctx context.Context) *redis.Client {
	t.Helper()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Errorf("failed to terminate redis container: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get redis connection string: %v", err)
	}
	redisOpts, err := redis.ParseURL(uri)
	if err != nil {
		t.Fatalf("failed to parse redis url: %v", err)
	}
	rdb := redis.NewClient(redisOpts)
	t.Cleanup(func() { _ = rdb.Close() })

	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Fatalf("failed to ping redis: %v", err)
	}
	return rdb
}

func testConfig(safeBrowsingURL string, opts appOptions) *config.Config {
	mode := opts.trackingMode
	if mode == "" {
		mode = "inline"
	}
	anonLimit := opts.anonLinkLimit
	if anonLimit == 0 {
		anonLimit = 3
	}

	return &config.Config{
		Server: config.ServerConfig{
			Port:            "8080",
			Host:            "localhost",
			BaseURL:         testBaseURL,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORSOrigin:      "*",
		},
		App: config.AppConfig{
			Environment: "test",
			LogLevel:    "error",
		},
		Observability: config.ObservabilityConfig{
			MetricsEnabled: true,
			MetricsPath:    "/metrics",
			ServiceName:    "linkshield-test",
			ServiceVersion: "test",
		},
		Auth: config.AuthConfig{
			JWTSecret: testJWTSecret,
		},
		SafeBrowsing: config.SafeBrowsingConfig{
			APIKey:        "test-key",
			URL:           safeBrowsingURL,
			Timeout:       5 * time.Second,
			CacheTTL:      24 * time.Hour,
			ClientID:      "linkshield-test",
			ClientVersion: "test",
			Concurrency:   4,
		},
		Geo: config.GeoConfig{
			// Loopback callers never reach the provider.
			BaseURL: "http://127.0.0.1:1",
			Timeout: time.Second,
		},
		Tracking: config.TrackingConfig{
			Mode:               mode,
			Workers:            2,
			QueueSize:          64,
			Timeout:            5 * time.Second,
			AnonClickThreshold: 3,
			AnonLinkLimit:      anonLimit,
			AnonWindow:         24 * time.Hour,
			AnonLinkTTL:        7 * 24 * time.Hour,
		},
		RateLimit: config.RateLimitConfig{
			Create: 1000,
			Window: time.Minute,
		},
	}
}

func setupTestLogger() *slog.Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	})
	return slog.New(handler)
}

/*** Request helpers ***/

func (a *testApp) do(t *testing.T, method, path string, body any, header http.Header) (*http.Response, []byte) {
	t.Helper()

	var r io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		r = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, a.ts.URL+path, r)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := a.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

func (a *testApp) authHeader() http.Header {
	return http.Header{"Authorization": {"Bearer " + a.token}}
}

func (a *testApp) adminHeader() http.Header {
	return http.Header{"Authorization": {"Bearer " + a.admin}}
}

type linkBody struct {
	ID          string     `json:"id"`
	ShortCode   string     `json:"shortCode"`
	ShortURL    string     `json:"shortUrl"`
	OriginalURL string     `json:"originalUrl"`
	IsAnonymous bool       `json:"isAnonymous"`
	Status      string     `json:"status"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	ClickCount  int64      `json:"clickCount"`
}

func (a *testApp) createLink(t *testing.T, body map[string]any) linkBody {
	t.Helper()
	resp, raw := a.do(t, http.MethodPost, "/api/links", body, a.authHeader())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create link: status %d, body %s", resp.StatusCode, raw)
	}
	var link linkBody
	if err := json.Unmarshal(raw, &link); err != nil {
		t.Fatalf("decode link: %v", err)
	}
	return link
}

func (a *testApp) redirect(t *testing.T, code string) (*http.Response, []byte) {
	t.Helper()
	return a.do(t, http.MethodGet, "/r/"+code, nil, nil)
}

func (a *testApp) exec(t *testing.T, sql string, args ...any) {
	t.Helper()
	if _, err := a.pool.Exec(context.Background(), sql, args...); err != nil {
		t.Fatalf("exec %q: %v", strings.SplitN(sql, "\n", 2)[0], err)
	}
}

func (a *testApp) queryInt(t *testing.T, sql string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := a.pool.QueryRow(context.Background(), sql, args...).Scan(&n); err != nil {
		t.Fatalf("query %q: %v", sql, err)
	}
	return n
}

func (a *testApp) queryString(t *testing.T, sql string, args ...any) string {
	t.Helper()
	var s string
	if err := a.pool.QueryRow(context.Background(), sql, args...).Scan(&s); err != nil {
		t.Fatalf("query %q: %v", sql, err)
	}
	return s
}

func decodeError(t *testing.T, raw []byte) httpx.ErrorResponse {
	t.Helper()
	var body httpx.ErrorResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, raw)
	}
	return body
}

// waitForClicks polls until the async dispatcher has persisted want clicks.
func waitForClicks(t *testing.T, a *testApp, linkID string, want int64) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for {
		got := a.queryInt(t, `SELECT count(*) FROM clicks WHERE link_id = $1`, linkID)
		if got >= want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("clicks = %d after 10s, want %d", got, want)
		}
		time.Sleep(50 * time.Millisecond)
	}
}
