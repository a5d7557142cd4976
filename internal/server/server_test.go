package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/linkshield/internal/config"
	"github.com/sundayezeilo/linkshield/internal/errx"
	"github.com/sundayezeilo/linkshield/internal/httpx"
	"github.com/sundayezeilo/linkshield/internal/shortener"
)

const testSecret = "server-test-secret-server-test-secret"

/*** Mocks ***/

type mockPinger struct {
	err error
}

func (m mockPinger) Ping(context.Context) error { return m.err }

// mockRepository implements only what the redirect path reads.
type mockRepository struct {
	shortener.Repository
	GetByShortCodeFunc func(ctx context.Context, code string) (shortener.Link, error)
}

func (m *mockRepository) GetByShortCode(ctx context.Context, code string) (shortener.Link, error) {
	return m.GetByShortCodeFunc(ctx, code)
}

type mockService struct {
	shortener.Service
	CreateFunc func(ctx context.Context, req shortener.CreateLinkRequest) (shortener.Link, error)
	ListFunc   func(ctx context.Context, owner uuid.UUID) ([]shortener.Link, error)
}

func (m *mockService) Create(ctx context.Context, req shortener.CreateLinkRequest) (shortener.Link, error) {
	return m.CreateFunc(ctx, req)
}

func (m *mockService) List(ctx context.Context, owner uuid.UUID) ([]shortener.Link, error) {
	return m.ListFunc(ctx, owner)
}

type mockAdmin struct {
	shortener.Admin
	DashboardFunc func(ctx context.Context) (shortener.PlatformStats, error)
}

func (m *mockAdmin) Dashboard(ctx context.Context) (shortener.PlatformStats, error) {
	return m.DashboardFunc(ctx)
}

/*** Helpers ***/

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:            "0",
			Host:            "127.0.0.1",
			BaseURL:         "http://lnk.test",
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			IdleTimeout:     time.Second,
			ShutdownTimeout: time.Second,
			CORSOrigin:      "*",
		},
		Observability: config.ObservabilityConfig{
			MetricsEnabled: true,
			MetricsPath:    "/metrics",
			ServiceName:    "linkshield-test",
			ServiceVersion: "test",
		},
		Auth:      config.AuthConfig{JWTSecret: testSecret},
		RateLimit: config.RateLimitConfig{Create: 100, Window: time.Minute},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func activeLink(code string) shortener.Link {
	return shortener.Link{
		ID:          uuid.New(),
		ShortCode:   code,
		OriginalURL: "https://example.com/" + code,
		Status:      shortener.StatusActive,
	}
}

func newTestServer(t *testing.T, cfg *config.Config, svc *mockService, db Pinger) http.Handler {
	t.Helper()
	if svc == nil {
		svc = &mockService{}
	}
	repo := &mockRepository{
		GetByShortCodeFunc: func(_ context.Context, code string) (shortener.Link, error) {
			if code == "abc1234" {
				return activeLink(code), nil
			}
			return shortener.Link{}, errx.E("test.GetByShortCode", errx.NotFound, errors.New("no rows"))
		},
	}

	logger := discardLogger()
	srv := New(cfg, logger, Deps{
		Links: shortener.NewHandler(shortener.HandlerConfig{
			Service: svc,
			Logger:  logger,
			BaseURL: cfg.Server.BaseURL,
		}),
		Redirector: shortener.NewRedirector(shortener.RedirectorConfig{
			Repo:   repo,
			Logger: logger,
		}),
		Admin: shortener.NewAdminHandler(shortener.AdminHandlerConfig{
			Admin: &mockAdmin{
				DashboardFunc: func(context.Context) (shortener.PlatformStats, error) {
					return shortener.PlatformStats{TotalLinks: 1}, nil
				},
			},
			Logger:  logger,
			BaseURL: cfg.Server.BaseURL,
		}),
		DB: db,
	})
	return srv.Handler()
}

func serve(h http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	var r io.Reader = http.NoBody
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.RemoteAddr = "198.51.100.20:5000"
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func bearer(t *testing.T, owner uuid.UUID) http.Header {
	t.Helper()
	return signed(t, httpx.Identity{Owner: owner}, time.Hour)
}

// signed issues a token for id; a negative ttl yields an expired token.
func signed(t *testing.T, id httpx.Identity, ttl time.Duration) http.Header {
	t.Helper()
	token, err := httpx.SignToken(httpx.AuthConfig{Secret: []byte(testSecret)}, id, ttl)
	if err != nil {
		t.Fatal(err)
	}
	return http.Header{"Authorization": {"Bearer " + token}}
}

/*** Tests ***/

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		db         Pinger
		wantStatus int
		wantBody   string
	}{
		{name: "no database configured", db: nil, wantStatus: http.StatusOK, wantBody: `"status":"ok"`},
		{name: "database reachable", db: mockPinger{}, wantStatus: http.StatusOK, wantBody: `"status":"ok"`},
		{name: "database down", db: mockPinger{err: errors.New("refused")}, wantStatus: http.StatusServiceUnavailable, wantBody: `"status":"degraded"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, testConfig(), nil, tt.db)
			rec := serve(h, http.MethodGet, "/x/health", "", nil)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want %s", rec.Body.String(), tt.wantBody)
			}
			if rec.Header().Get(httpx.RequestIDHeader) == "" {
				t.Error("missing request id header")
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		h := newTestServer(t, testConfig(), nil, nil)
		serve(h, http.MethodGet, "/x/health", "", nil)

		rec := serve(h, http.MethodGet, "/metrics", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "linkshield_http_requests_total") {
			t.Error("expected http request counter in exposition")
		}
	})

	t.Run("disabled falls through to short codes", func(t *testing.T) {
		cfg := testConfig()
		cfg.Observability.MetricsEnabled = false
		h := newTestServer(t, cfg, nil, nil)

		rec := serve(h, http.MethodGet, "/metrics", "", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}

func TestRedirectRoutes(t *testing.T) {
	h := newTestServer(t, testConfig(), nil, nil)

	for _, path := range []string{"/r/abc1234", "/abc1234"} {
		t.Run(path, func(t *testing.T) {
			rec := serve(h, http.MethodGet, path, "", nil)
			if rec.Code != http.StatusFound {
				t.Fatalf("status = %d, want 302", rec.Code)
			}
			if got := rec.Header().Get("Location"); got != "https://example.com/abc1234" {
				t.Errorf("Location = %q", got)
			}
		})
	}

	rec := serve(h, http.MethodGet, "/r/missing", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing code: status = %d, want 404", rec.Code)
	}
}

func TestRedirectRoutes_IgnoreBadTokens(t *testing.T) {
	h := newTestServer(t, testConfig(), nil, nil)

	tests := []struct {
		name   string
		header http.Header
	}{
		{"expired token", signed(t, httpx.Identity{Owner: uuid.New()}, -time.Hour)},
		{"garbage token", http.Header{"Authorization": {"Bearer nope"}}},
		{"non-bearer scheme", http.Header{"Authorization": {"Basic dXNlcjpwYXNz"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, http.MethodGet, "/r/abc1234", "", tt.header)
			if rec.Code != http.StatusFound {
				t.Fatalf("status = %d, want 302 (%s)", rec.Code, rec.Body.String())
			}
			if got := rec.Header().Get("Location"); got != "https://example.com/abc1234" {
				t.Errorf("Location = %q", got)
			}
		})
	}
}

func TestOwnerRoutes_Authentication(t *testing.T) {
	owner := uuid.New()
	var listedFor uuid.UUID
	svc := &mockService{
		ListFunc: func(_ context.Context, o uuid.UUID) ([]shortener.Link, error) {
			listedFor = o
			return nil, nil
		},
	}
	h := newTestServer(t, testConfig(), svc, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		header     http.Header
		wantStatus int
		wantMsg    string
	}{
		{name: "list without token", method: http.MethodGet, path: "/api/links", wantStatus: http.StatusUnauthorized},
		{name: "create without token", method: http.MethodPost, path: "/api/links", wantStatus: http.StatusUnauthorized},
		{name: "stats without token", method: http.MethodGet, path: "/api/links/" + uuid.NewString() + "/stats", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", method: http.MethodGet, path: "/api/links", header: http.Header{"Authorization": {"Bearer nope"}}, wantStatus: http.StatusUnauthorized, wantMsg: "invalid or expired token"},
		{name: "expired token", method: http.MethodGet, path: "/api/links", header: signed(t, httpx.Identity{Owner: owner}, -time.Hour), wantStatus: http.StatusUnauthorized, wantMsg: "invalid or expired token"},
		{name: "overview without token", method: http.MethodGet, path: "/api/stats", wantStatus: http.StatusUnauthorized, wantMsg: "authentication required"},
		{name: "valid token", method: http.MethodGet, path: "/api/links", header: bearer(t, owner), wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, tt.method, tt.path, "", tt.header)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantMsg != "" && !strings.Contains(rec.Body.String(), tt.wantMsg) {
				t.Errorf("body = %s, want message %q", rec.Body.String(), tt.wantMsg)
			}
		})
	}

	if listedFor != owner {
		t.Errorf("List called for %s, want %s", listedFor, owner)
	}
}

func TestAdminRoutes_Authorization(t *testing.T) {
	h := newTestServer(t, testConfig(), nil, nil)
	admin := httpx.Identity{Owner: uuid.New(), Role: httpx.RoleAdmin}

	tests := []struct {
		name       string
		header     http.Header
		wantStatus int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"expired admin token", signed(t, admin, -time.Hour), http.StatusUnauthorized},
		{"regular owner", bearer(t, uuid.New()), http.StatusForbidden},
		{"admin", signed(t, admin, time.Hour), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, http.MethodGet, "/api/admin/dashboard", "", tt.header)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestAnonymousCreate_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Create = 1
	svc := &mockService{
		CreateFunc: func(_ context.Context, req shortener.CreateLinkRequest) (shortener.Link, error) {
			l := activeLink("anon123")
			l.OriginalURL = req.OriginalURL
			l.IsAnonymous = true
			return l, nil
		},
	}
	h := newTestServer(t, cfg, svc, nil)

	body := `{"url":"https://example.com/anon"}`
	header := http.Header{"Content-Type": {"application/json"}}

	if rec := serve(h, http.MethodPost, "/api/links/anonymous", body, header); rec.Code != http.StatusCreated {
		t.Fatalf("first create: status = %d, want 201 (%s)", rec.Code, rec.Body.String())
	}
	rec := serve(h, http.MethodPost, "/api/links/anonymous", body, header)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second create: status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

func TestCORSOrigins(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"*", nil},
		{"", nil},
		{"https://a.example", []string{"https://a.example"}},
		{" https://a.example , https://b.example ,", []string{"https://a.example", "https://b.example"}},
		{"https://a.example,*", nil},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := corsOrigins(tt.raw); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("corsOrigins(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}
